// Package render はシェルフをHTMLページとして出力する。
package render

import (
	"fmt"
	"html/template"
	"io"

	"github.com/hitoshi/shelfman/internal/model"
)

const (
	// DefaultPerRow は1行あたりの表示冊数。
	DefaultPerRow = 4
	// DefaultLimit はページに表示する最大冊数。
	DefaultLimit = 8
)

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}}</h1>
{{- if not .Rows}}
<p class="empty">No books on this shelf.</p>
{{- end}}
{{- range .Rows}}
<div class="row">
{{- range .}}
<div class="book">
<a href="{{.Link}}"><img src="{{.CoverURL}}" alt="{{.Title}}"></a>
<h2 class="title">{{.Title}}</h2>
<p class="author">{{.Author.Name}}</p>
<a class="link" href="{{.Link}}">View on Goodreads</a>
</div>
{{- end}}
</div>
{{- end}}
</body>
</html>
`

var page = template.Must(template.New("shelf").Parse(pageTemplate))

// Page はページの描画に必要な値。
type Page struct {
	Title string
	Rows  [][]model.Book
}

// Rows はbooksの先頭limit冊をperRow冊ずつの行に分割する。
// 冊数がlimitに満たない場合は存在する分だけを返す。最後の行は短くなりうる。
// limitが0以下の場合は全件を対象とする。
func Rows(books []model.Book, perRow, limit int) [][]model.Book {
	if perRow <= 0 {
		perRow = DefaultPerRow
	}
	if limit > 0 && len(books) > limit {
		books = books[:limit]
	}

	rows := make([][]model.Book, 0, (len(books)+perRow-1)/perRow)
	for start := 0; start < len(books); start += perRow {
		end := start + perRow
		if end > len(books) {
			end = len(books)
		}
		rows = append(rows, books[start:end])
	}
	return rows
}

// Write はシェルフのページをwに書き込む。
func Write(w io.Writer, shelf string, books []model.Book, limit int) error {
	p := Page{
		Title: fmt.Sprintf("Shelf: %s", shelf),
		Rows:  Rows(books, DefaultPerRow, limit),
	}
	if err := page.Execute(w, p); err != nil {
		return fmt.Errorf("failed to render shelf page: %w", err)
	}
	return nil
}
