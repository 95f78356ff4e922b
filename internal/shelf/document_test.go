package shelf

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/hitoshi/shelfman/internal/model"
)

const shelfRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Kurtis's bookshelf: read</title>
    <link>https://www.goodreads.com/review/list_rss/21293144?shelf=read</link>
    <description>Kurtis's bookshelf: read</description>
    <item>
      <guid>https://www.goodreads.com/review/show/1001</guid>
      <title>Dune</title>
      <link>https://www.goodreads.com/review/show/1001</link>
      <book_id>234225</book_id>
      <book_image_url><![CDATA[https://images.example.com/books/dune.jpg]]></book_image_url>
      <book_small_image_url><![CDATA[https://images.example.com/books/dune_small.jpg]]></book_small_image_url>
      <book_description><![CDATA[<p>Set on the desert planet <b>Arrakis</b>.</p>]]></book_description>
      <author_name>Frank Herbert</author_name>
      <isbn>0441172717</isbn>
      <user_shelves>favorites, sci-fi</user_shelves>
    </item>
    <item>
      <guid>https://www.goodreads.com/review/show/1002</guid>
      <title>Untitled Draft</title>
      <link>https://www.goodreads.com/review/show/1002</link>
      <book_image_url><![CDATA[https://s.gr-assets.com/assets/nophoto/book/111x148-nocover.png]]></book_image_url>
      <book_small_image_url><![CDATA[https://s.gr-assets.com/assets/nophoto/book/50x75-nocover.png]]></book_small_image_url>
      <book_description></book_description>
      <author_name>Anonymous</author_name>
      <isbn>0000000002</isbn>
      <user_shelves></user_shelves>
    </item>
  </channel>
</rss>`

func TestParseSource(t *testing.T) {
	tests := []struct {
		in      string
		want    Source
		wantErr bool
	}{
		{"", SourceAPI, false},
		{"api", SourceAPI, false},
		{" RSS ", SourceRSS, false},
		{"atom", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSource(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSource(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSource(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseRSS_NormalizesToBooks(t *testing.T) {
	doc, err := parseRSS([]byte(shelfRSS), "read")
	if err != nil {
		t.Fatalf("parseRSS がエラーを返した: %v", err)
	}
	books := newNormalizer(true).normalize(doc)

	if len(books) != 2 {
		t.Fatalf("len(books) = %d, want 2", len(books))
	}

	b := books[0]
	if b.ID != "https://www.goodreads.com/review/show/1001" {
		t.Errorf("ID = %q", b.ID)
	}
	if b.Title != "Dune" {
		t.Errorf("Title = %q, want Dune", b.Title)
	}
	if b.Author.Name != "Frank Herbert" {
		t.Errorf("Author.Name = %q, want Frank Herbert", b.Author.Name)
	}
	if b.Description != "Set on the desert planet Arrakis." {
		t.Errorf("Description = %q", b.Description)
	}
	if b.ISBN != "0441172717" {
		t.Errorf("ISBN = %q, want 0441172717", b.ISBN)
	}
	if b.Shelf != "favorites" {
		t.Errorf("Shelf = %q, want favorites", b.Shelf)
	}
	if b.CoverURL != "https://images.example.com/books/dune.jpg" {
		t.Errorf("CoverURL = %q", b.CoverURL)
	}
	if b.Format != model.UnknownValue || b.Pages != model.UnknownValue {
		t.Errorf("format/pages = %q/%q, want Unknown (not in feed)", b.Format, b.Pages)
	}

	b = books[1]
	if b.Shelf != "read" {
		t.Errorf("Shelf = %q, want the requested shelf", b.Shelf)
	}
	if b.Description != model.UnknownValue {
		t.Errorf("Description = %q, want Unknown", b.Description)
	}
	wantCover := "http://books.google.com/books?vid=ISBN0000000002&printsec=frontcover&img=1&zoom=1"
	if b.CoverURL != wantCover {
		t.Errorf("CoverURL = %q, want %q", b.CoverURL, wantCover)
	}
}

func TestParseRSS_Malformed(t *testing.T) {
	if _, err := parseRSS([]byte("<rss><channel><item>"), "read"); err == nil {
		t.Error("parseRSS should have returned error")
	}
}

func TestGetShelf_RSSSource(t *testing.T) {
	u := newUpstream(t, http.StatusOK, shelfRSS)
	c := newTestClient(t, u, map[string]string{"cache_enabled": "false", "shelf": "read"}, false, WithSource(SourceRSS))

	books, err := c.GetShelf(context.Background())
	if err != nil {
		t.Fatalf("GetShelf がエラーを返した: %v", err)
	}
	if len(books) != 2 {
		t.Errorf("len(books) = %d, want 2", len(books))
	}

	got, _ := url.Parse(u.lastURL.Load().(string))
	if got.Path != "/review/list_rss/"+testUserID {
		t.Errorf("path = %q, want /review/list_rss/%s", got.Path, testUserID)
	}
	if got.Query().Get("key") != testAPIKey || got.Query().Get("shelf") != "read" {
		t.Errorf("query = %v", got.Query())
	}
	if got.Query().Has("v") {
		t.Error("RSS endpoint does not take the v parameter")
	}
}
