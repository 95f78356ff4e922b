// Package shelf はGoodreadsのシェルフ取得クライアントを提供する。
//
// Clientは上流APIのレビュー一覧をローカルファイルに時間制限付きでキャッシュし、
// 文書をmodel.Bookの列に正規化する。1つのClientは最初のGetShelfの結果を保持し、
// 以降の呼び出しでは再解決しない。
package shelf

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/shelfman/internal/metrics"
	"github.com/hitoshi/shelfman/internal/model"
	"github.com/hitoshi/shelfman/internal/security"
)

const (
	// DefaultBaseURL は上流APIのベースURL。
	DefaultBaseURL = "https://www.goodreads.com"
	// DefaultTimeout は既定のHTTPタイムアウト。
	DefaultTimeout = 10 * time.Second
	// DefaultMaxBodySize は受け付けるレスポンスボディの上限。
	DefaultMaxBodySize int64 = 5 << 20
)

// Client はシェルフの取得・キャッシュ・正規化を行う。
type Client struct {
	creds Credentials

	mu    sync.Mutex
	opts  Options
	books []model.Book // nilは未解決

	source      Source
	baseURL     string
	httpClient  *http.Client
	maxBodySize int64
	now         func() time.Time
	logger      *slog.Logger
	metrics     metrics.MetricsCollector
	stripper    security.TextStripperService
}

// ClientOption はClientの依存関係を差し替える。
type ClientOption func(*Client)

// WithHTTPClient は上流APIへのリクエストに使うHTTPクライアントを指定する。
// 未指定の場合はsafeurlでラップしたクライアントを使用する。
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL は上流APIのベースURLを指定する。
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithSource は取得元（APIまたはRSS）を指定する。
func WithSource(source Source) ClientOption {
	return func(c *Client) { c.source = source }
}

// WithMaxBodySize はレスポンスボディの上限バイト数を指定する。
func WithMaxBodySize(n int64) ClientOption {
	return func(c *Client) { c.maxBodySize = n }
}

// WithClock はキャッシュの期限判定に使う現在時刻の関数を指定する。
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// WithLogger はロガーを指定する。
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics はメトリクスの記録先を指定する。
func WithMetrics(m metrics.MetricsCollector) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// New はClientを生成する。
// overridesは既定のOptionsにマージされ、未知のキーや不正な値は設定エラーとなる。
// forceRefreshがtrueの場合、既存のキャッシュファイルを生成時に削除し、
// 最初の解決で必ず上流APIから取得する。
func New(creds Credentials, overrides map[string]string, forceRefresh bool, options ...ClientOption) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, model.NewInvalidConfigError("APIキーまたはユーザーIDが不正です", err)
	}

	opts, err := DefaultOptions().Merge(overrides)
	if err != nil {
		return nil, model.NewInvalidConfigError("オプションが不正です", err)
	}

	c := &Client{
		creds:       creds,
		opts:        opts,
		source:      SourceAPI,
		baseURL:     DefaultBaseURL,
		maxBodySize: DefaultMaxBodySize,
		now:         time.Now,
		logger:      slog.Default(),
		metrics:     metrics.Nop{},
		stripper:    security.NewTextStripper(),
	}
	for _, o := range options {
		o(c)
	}
	if c.httpClient == nil {
		c.httpClient = security.NewUpstreamGuard().NewSafeClient(DefaultTimeout)
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.source != SourceAPI && c.source != SourceRSS {
		return nil, model.NewInvalidConfigError(fmt.Sprintf("不明な取得元です: %q", c.source), nil)
	}

	if forceRefresh {
		if err := removeCache(opts.CachePath); err != nil {
			return nil, model.NewCacheWriteFailedError(opts.CachePath, err)
		}
	}

	return c, nil
}

// Options は現在のオプションを返す。
func (c *Client) Options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// UpdateOptions は既知のキーのみをマージし、検証に成功した場合に反映する。
// 反映後は保持しているシェルフを破棄し、次のGetShelfで再解決する。
func (c *Client) UpdateOptions(overrides map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged, err := c.opts.Merge(overrides)
	if err != nil {
		return model.NewInvalidConfigError("オプションが不正です", err)
	}
	c.opts = merged
	c.books = nil
	return nil
}

// GetShelf はシェルフ上の本を上流の並び順で返す。
// 同じClientでの2回目以降の呼び出しは、最初に解決した結果（同一のスライス）を返す。
// 返されたスライスは呼び出し元で変更しないこと。
func (c *Client) GetShelf(ctx context.Context) ([]model.Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.books != nil {
		return c.books, nil
	}

	start := time.Now()
	doc, res, err := c.resolve(ctx, c.opts)
	if err != nil {
		return nil, err
	}

	n := &normalizer{stripper: c.stripper, useFallbackCover: c.opts.UseFallbackCover}
	c.books = n.normalize(doc)
	c.metrics.RecordBooksNormalized(len(c.books))

	c.logger.Info("シェルフを解決しました",
		slog.String("user_id", c.creds.UserID),
		slog.String("shelf", c.opts.Shelf),
		slog.String("source", string(c.source)),
		slog.String("resolution", string(res)),
		slog.Int("books", len(c.books)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return c.books, nil
}

// endpointURL は上流APIのURLを組み立てる。
// クエリにはOptions.Queryの5項目のみを含める。
func (c *Client) endpointURL(opts Options) string {
	key := url.QueryEscape(c.creds.APIKey)
	query := opts.Query().Encode()
	switch c.source {
	case SourceRSS:
		return fmt.Sprintf("%s/review/list_rss/%s?key=%s&%s", c.baseURL, c.creds.UserID, key, query)
	default:
		return fmt.Sprintf("%s/review/list/%s.xml?v=2&key=%s&%s", c.baseURL, c.creds.UserID, key, query)
	}
}
