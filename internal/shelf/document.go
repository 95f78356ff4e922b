package shelf

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

// Source はシェルフの取得元の種類を表す。
type Source string

const (
	// SourceAPI はレビュー一覧APIのXML（v2）から取得する。
	SourceAPI Source = "api"
	// SourceRSS は同じシェルフのRSSフィードから取得する。
	SourceRSS Source = "rss"
)

// ParseSource は文字列からSourceを得る。空文字列はSourceAPIとする。
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case "", SourceAPI:
		return SourceAPI, nil
	case SourceRSS:
		return SourceRSS, nil
	default:
		return "", fmt.Errorf("unknown shelf source: %q", s)
	}
}

// reviewList はレビュー一覧APIのレスポンス文書。
type reviewList struct {
	XMLName xml.Name    `xml:"GoodreadsResponse"`
	Reviews []reviewXML `xml:"reviews>review"`
}

type reviewXML struct {
	ID      string     `xml:"id"`
	Book    bookXML    `xml:"book"`
	Shelves []shelfXML `xml:"shelves>shelf"`
}

type bookXML struct {
	ISBN          isbnXML     `xml:"isbn"`
	ISBN13        string      `xml:"isbn13"`
	Title         string      `xml:"title"`
	ImageURL      string      `xml:"image_url"`
	SmallImageURL string      `xml:"small_image_url"`
	Link          string      `xml:"link"`
	NumPages      string      `xml:"num_pages"`
	Format        string      `xml:"format"`
	Description   string      `xml:"description"`
	Authors       []authorXML `xml:"authors>author"`
}

// isbnXML はISBN要素。値がない場合、上流は <isbn nil="true"/> を返す。
type isbnXML struct {
	Value string `xml:",chardata"`
	Nil   string `xml:"nil,attr"`
}

// present はISBNが値を持つかを返す。
func (i isbnXML) present() bool {
	return i.Nil != "true" && strings.TrimSpace(i.Value) != ""
}

type authorXML struct {
	Name          string `xml:"name"`
	ImageURL      string `xml:"image_url"`
	SmallImageURL string `xml:"small_image_url"`
	Link          string `xml:"link"`
}

type shelfXML struct {
	Name string `xml:"name,attr"`
}

// parseReviewList はレビュー一覧APIのXMLを解析する。
// 整形式でない文書、またはルート要素が異なる文書はエラーとする。
func parseReviewList(data []byte) (*reviewList, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("empty document")
	}
	var doc reviewList
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// parseRSS はシェルフのRSSフィードを解析し、レビュー一覧と同じ形に変換する。
// RSSにはフォーマットや著者画像が含まれないため、それらは空のままとなる。
// defaultShelfはアイテムにuser_shelvesがない場合のシェルフ名。
func parseRSS(data []byte, defaultShelf string) (*reviewList, error) {
	feed, err := gofeed.NewParser().ParseString(string(data))
	if err != nil {
		return nil, err
	}

	doc := &reviewList{Reviews: make([]reviewXML, 0, len(feed.Items))}
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		custom := item.Custom

		shelfName := defaultShelf
		if s := strings.TrimSpace(custom["user_shelves"]); s != "" {
			shelfName = strings.TrimSpace(strings.Split(s, ",")[0])
		}

		author := authorXML{Name: custom["author_name"]}
		if author.Name == "" && item.Author != nil {
			author.Name = item.Author.Name
		}

		doc.Reviews = append(doc.Reviews, reviewXML{
			ID: item.GUID,
			Book: bookXML{
				ISBN:          isbnXML{Value: custom["isbn"]},
				Title:         item.Title,
				ImageURL:      custom["book_image_url"],
				SmallImageURL: custom["book_small_image_url"],
				Link:          item.Link,
				NumPages:      custom["num_pages"],
				Description:   custom["book_description"],
				Authors:       []authorXML{author},
			},
			Shelves: []shelfXML{{Name: shelfName}},
		})
	}
	return doc, nil
}
