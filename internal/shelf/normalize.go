package shelf

import (
	"fmt"
	"strings"

	"github.com/hitoshi/shelfman/internal/model"
	"github.com/hitoshi/shelfman/internal/security"
)

const (
	// noCoverMarker は上流が表紙画像を持たない場合の画像URLに含まれる文字列。
	noCoverMarker = "nocover"
	// fallbackCoverURL は代替表紙画像のURLテンプレート（ISBN, ズーム）。
	fallbackCoverURL = "http://books.google.com/books?vid=ISBN%s&printsec=frontcover&img=1&zoom=%d"
	// 代替表紙画像のズーム値。1が通常、5が小サイズ。
	fallbackZoomCover = 1
	fallbackZoomSmall = 5
)

// normalizer はレビュー一覧をmodel.Bookの列に変換する。I/Oは行わない。
type normalizer struct {
	stripper         security.TextStripperService
	useFallbackCover bool
}

// normalize は入力順を保ったまま1レビューにつき1冊を返す。
// レビューが0件の場合は空のスライスを返す。
func (n *normalizer) normalize(doc *reviewList) []model.Book {
	books := make([]model.Book, 0, len(doc.Reviews))
	for _, r := range doc.Reviews {
		books = append(books, n.book(r))
	}
	return books
}

func (n *normalizer) book(r reviewXML) model.Book {
	b := r.Book
	book := model.Book{
		ID:          strings.TrimSpace(r.ID),
		Title:       strings.TrimSpace(b.Title),
		Link:        strings.TrimSpace(b.Link),
		Description: n.description(b.Description),
		Format:      orUnknown(b.Format),
		Pages:       orUnknown(b.NumPages),
		ISBN:        strings.TrimSpace(b.ISBN13),
	}
	if b.ISBN.present() {
		book.ISBN = strings.TrimSpace(b.ISBN.Value)
	}

	if len(r.Shelves) > 0 {
		book.Shelf = r.Shelves[0].Name
	}

	// 共著の場合も先頭の著者のみを扱う
	if len(b.Authors) > 0 {
		a := b.Authors[0]
		book.Author = model.Author{
			Name:          strings.TrimSpace(a.Name),
			ImageURL:      strings.TrimSpace(a.ImageURL),
			SmallImageURL: strings.TrimSpace(a.SmallImageURL),
			Link:          strings.TrimSpace(a.Link),
		}
	}

	cover := strings.TrimSpace(b.ImageURL)
	if n.useFallbackCover && strings.Contains(cover, noCoverMarker) {
		book.CoverURL = fmt.Sprintf(fallbackCoverURL, book.ISBN, fallbackZoomCover)
		book.SmallCoverURL = fmt.Sprintf(fallbackCoverURL, book.ISBN, fallbackZoomSmall)
	} else {
		book.CoverURL = cover
		book.SmallCoverURL = strings.TrimSpace(b.SmallImageURL)
	}

	return book
}

// description はタグを除去した説明文を返す。空の場合はUnknownとする。
func (n *normalizer) description(raw string) string {
	if isEmpty(raw) {
		return model.UnknownValue
	}
	return orUnknown(n.stripper.StripTags(raw))
}

func orUnknown(s string) string {
	if isEmpty(s) {
		return model.UnknownValue
	}
	return strings.TrimSpace(s)
}

// isEmpty は空白のみ、または "0" の値を空とみなす。
// ページ数などで上流が0を返すのは値がない場合である。
func isEmpty(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "0"
}
