package model

// UnknownValue は上流ドキュメントに値がない項目に設定される既定値。
const UnknownValue = "Unknown"

// Author は本の著者を表す。
type Author struct {
	Name          string `json:"name"`
	ImageURL      string `json:"image_url"`
	SmallImageURL string `json:"small_image_url"`
	Link          string `json:"link"`
}

// Book はシェルフ上の1冊を表す。
// 上流ドキュメントの1レビューエントリから生成され、生成後は変更しない。
type Book struct {
	ID            string `json:"id"` // レビューID
	Title         string `json:"title"`
	Link          string `json:"link"`
	Author        Author `json:"author"`
	Description   string `json:"description"` // タグ除去済みプレーンテキスト
	Format        string `json:"format"`
	Pages         string `json:"pages"`
	ISBN          string `json:"isbn"`
	Shelf         string `json:"shelf"`
	CoverURL      string `json:"cover_url"`
	SmallCoverURL string `json:"small_cover_url"`
}
