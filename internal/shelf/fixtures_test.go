package shelf

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

const (
	testAPIKey = "HjeXmA0cB3OA7KdOvV9wVg"
	testUserID = "21293144"
)

// reviewListXML は2件のレビューを含むレビュー一覧APIのレスポンス。
// 2件目は表紙画像がなく、ISBNがnil、説明文とページ数が空である。
const reviewListXML = `<?xml version="1.0" encoding="UTF-8"?>
<GoodreadsResponse>
  <Request>
    <authentication>true</authentication>
    <method><![CDATA[review_list]]></method>
  </Request>
  <reviews start="1" end="2" total="2">
    <review>
      <id>1001</id>
      <book>
        <id type="integer">234225</id>
        <isbn>0441172717</isbn>
        <isbn13>9780441172719</isbn13>
        <title>Dune</title>
        <image_url>https://images.example.com/books/dune.jpg</image_url>
        <small_image_url>https://images.example.com/books/dune_small.jpg</small_image_url>
        <link>https://www.goodreads.com/book/show/234225.Dune</link>
        <num_pages>604</num_pages>
        <format>Paperback</format>
        <description><![CDATA[<b>Set on the desert planet Arrakis</b>, Dune is the story of <i>Paul Atreides</i>.]]></description>
        <authors>
          <author>
            <id>58</id>
            <name>Frank Herbert</name>
            <image_url nophoto="false">https://images.example.com/authors/58.jpg</image_url>
            <small_image_url nophoto="false">https://images.example.com/authors/58_small.jpg</small_image_url>
            <link>https://www.goodreads.com/author/show/58.Frank_Herbert</link>
          </author>
        </authors>
      </book>
      <shelves>
        <shelf name="read" exclusive="true" />
      </shelves>
    </review>
    <review>
      <id>1002</id>
      <book>
        <id type="integer">99</id>
        <isbn nil="true"/>
        <isbn13>9780000000002</isbn13>
        <title>Untitled Draft</title>
        <image_url>https://s.gr-assets.com/assets/nophoto/book/111x148-nocover.png</image_url>
        <small_image_url>https://s.gr-assets.com/assets/nophoto/book/50x75-nocover.png</small_image_url>
        <link>https://www.goodreads.com/book/show/99</link>
        <num_pages></num_pages>
        <format></format>
        <description></description>
        <authors>
          <author>
            <name>Anonymous</name>
          </author>
        </authors>
      </book>
      <shelves>
        <shelf name="read" exclusive="true" />
      </shelves>
    </review>
  </reviews>
</GoodreadsResponse>`

// cachedReviewListXML はキャッシュファイルとして事前に置く、1件だけの文書。
const cachedReviewListXML = `<GoodreadsResponse><reviews>
  <review><id>7</id><book><isbn>1111111111</isbn><title>From Cache</title></book></review>
</reviews></GoodreadsResponse>`

// emptyReviewListXML はレビューが0件の文書。
const emptyReviewListXML = `<GoodreadsResponse><reviews start="0" end="0" total="0"></reviews></GoodreadsResponse>`

// upstream はリクエスト数を数えるテスト用の上流APIサーバー。
type upstream struct {
	*httptest.Server
	hits    atomic.Int32
	lastURL atomic.Value
}

// newUpstream はstatusとbodyを返すテスト用サーバーを起動する。
func newUpstream(t *testing.T, status int, body string) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		u.lastURL.Store(r.URL.String())
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) requestCount() int {
	return int(u.hits.Load())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient はテスト用サーバーに向けたClientを生成する。
func newTestClient(t *testing.T, u *upstream, overrides map[string]string, forceRefresh bool, extra ...ClientOption) *Client {
	t.Helper()
	options := append([]ClientOption{
		WithHTTPClient(u.Client()),
		WithBaseURL(u.URL),
		WithLogger(discardLogger()),
	}, extra...)

	c, err := New(Credentials{APIKey: testAPIKey, UserID: testUserID}, overrides, forceRefresh, options...)
	if err != nil {
		t.Fatalf("New がエラーを返した: %v", err)
	}
	return c
}
