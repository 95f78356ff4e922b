package shelf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hitoshi/shelfman/internal/model"
)

// resolution は1回の解決がどの経路を通ったかを表す。
type resolution string

const (
	resolutionCacheHit      resolution = "cache_hit"
	resolutionCacheMiss     resolution = "cache_miss"
	resolutionCacheDisabled resolution = "cache_disabled"
)

// resolve はキャッシュまたは上流APIからシェルフ文書を取得して解析する。
//
//	キャッシュ無効            → 取得 → 解析
//	キャッシュ有効・期限内    → キャッシュを解析
//	キャッシュ有効・なし/期限切れ → 取得 → 解析 → キャッシュへ書き込み
//
// 取得した文書は解析に成功してから書き込むため、不正な応答で既存のキャッシュを上書きしない。
func (c *Client) resolve(ctx context.Context, opts Options) (*reviewList, resolution, error) {
	if !opts.CacheEnabled {
		data, err := c.fetch(ctx, opts)
		if err != nil {
			return nil, resolutionCacheDisabled, err
		}
		doc, err := c.parse(data, opts, "network")
		return doc, resolutionCacheDisabled, err
	}

	if c.cacheFresh(opts) {
		data, err := os.ReadFile(opts.CachePath)
		if err != nil {
			return nil, resolutionCacheHit, model.NewFetchFailedError("キャッシュファイルの読み取りに失敗しました", err)
		}
		c.metrics.RecordCacheHit()
		doc, err := c.parse(data, opts, "cache")
		return doc, resolutionCacheHit, err
	}

	c.metrics.RecordCacheMiss()
	data, err := c.fetch(ctx, opts)
	if err != nil {
		return nil, resolutionCacheMiss, err
	}
	doc, err := c.parse(data, opts, "network")
	if err != nil {
		return nil, resolutionCacheMiss, err
	}
	if err := writeCache(opts.CachePath, data); err != nil {
		return nil, resolutionCacheMiss, model.NewCacheWriteFailedError(opts.CachePath, err)
	}
	return doc, resolutionCacheMiss, nil
}

// cacheFresh はキャッシュファイルが存在し、最終更新からTTL未満であるかを返す。
// TTLが0の場合は常に期限切れとなる。
func (c *Client) cacheFresh(opts Options) bool {
	info, err := os.Stat(opts.CachePath)
	if err != nil || info.IsDir() {
		return false
	}
	ttl := time.Duration(opts.CacheTTLHours) * time.Hour
	return c.now().Sub(info.ModTime()) < ttl
}

// fetch は上流APIからシェルフ文書の生バイト列を取得する。
func (c *Client) fetch(ctx context.Context, opts Options) ([]byte, error) {
	start := time.Now()
	endpoint := c.endpointURL(opts)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, model.NewFetchFailedError("リクエスト作成に失敗しました", err)
	}
	req.Header.Set("User-Agent", "Shelfman/1.0")
	req.Header.Set("Accept", "application/xml, text/xml, application/rss+xml, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordFetchFailure("transport")
		return nil, model.NewFetchFailedError("HTTPリクエスト失敗", err)
	}
	defer resp.Body.Close()

	c.metrics.RecordHTTPStatus(resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordFetchFailure("status")
		return nil, model.NewFetchFailedError(fmt.Sprintf("HTTPステータス %d", resp.StatusCode), nil)
	}

	// 上限+1バイトまで読み、超過を検出する
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		c.metrics.RecordFetchFailure("read")
		return nil, model.NewFetchFailedError("レスポンス読み取り失敗", err)
	}
	if int64(len(body)) > c.maxBodySize {
		c.metrics.RecordFetchFailure("too_large")
		return nil, model.NewFetchFailedError(fmt.Sprintf("レスポンスが上限 %d バイトを超えました", c.maxBodySize), nil)
	}

	duration := time.Since(start)
	c.metrics.RecordFetchSuccess()
	c.metrics.RecordFetchLatency(duration)
	c.logger.Debug("シェルフを取得しました",
		slog.String("user_id", c.creds.UserID),
		slog.String("shelf", opts.Shelf),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("bytes", len(body)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return body, nil
}

// parse は取得元に応じて文書を解析する。sourceはエラーとメトリクスのラベル。
func (c *Client) parse(data []byte, opts Options, source string) (*reviewList, error) {
	var (
		doc *reviewList
		err error
	)
	switch c.source {
	case SourceRSS:
		doc, err = parseRSS(data, opts.Shelf)
	default:
		doc, err = parseReviewList(data)
	}
	if err != nil {
		c.metrics.RecordParseFailure(source)
		return nil, model.NewParseFailedError(source, err)
	}
	return doc, nil
}

// writeCache は生の文書をキャッシュパスに書き込む。
// 同じディレクトリの一時ファイルに書いてからリネームするため、
// 読み手が書きかけのファイルを見ることはない。
func writeCache(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// removeCache はキャッシュファイルを削除する。存在しない場合は何もしない。
func removeCache(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
