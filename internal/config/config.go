package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Goodreads
	APIKey  string
	UserID  string
	BaseURL string

	// Shelf
	ShelfSource  string
	ForceRefresh bool
	shelfEnv     map[string]string

	// Fetch
	FetchTimeout time.Duration
	FetchMaxSize int64

	// Server
	ServerPort        string
	RateLimitGeneral  int
	CORSAllowedOrigin string

	// Render
	RenderLimit int

	// Logging
	LogLevel string
}

// shelfEnvKeys は環境変数とシェルフのオプションキーの対応。
var shelfEnvKeys = []struct {
	env    string
	option string
}{
	{"SHELF_NAME", "shelf"},
	{"SHELF_SORT", "sort"},
	{"SHELF_ORDER", "order"},
	{"SHELF_PAGE", "page"},
	{"SHELF_PER_PAGE", "per_page"},
	{"SHELF_USE_FALLBACK_COVER", "use_fallback_cover"},
	{"SHELF_CACHE_ENABLED", "cache_enabled"},
	{"SHELF_CACHE_TTL_HOURS", "cache_ttl_hours"},
	{"SHELF_CACHE_PATH", "cache_path"},
}

// LoadDotEnv は.envファイルを読み込み、未設定の環境変数のみを補う。
// ファイルが存在しない場合は何もしない。
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// APIキーとユーザーIDの形式はシェルフクライアントの生成時に検証する。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.APIKey = os.Getenv("GOODREADS_API_KEY")
	if cfg.APIKey == "" {
		missing = append(missing, "GOODREADS_API_KEY")
	}

	cfg.UserID = os.Getenv("GOODREADS_USER_ID")
	if cfg.UserID == "" {
		missing = append(missing, "GOODREADS_USER_ID")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// シェルフのオプションは設定されたものだけを渡し、既定値はクライアント側に任せる
	cfg.shelfEnv = make(map[string]string)
	for _, k := range shelfEnvKeys {
		if v := os.Getenv(k.env); v != "" {
			cfg.shelfEnv[k.option] = v
		}
	}

	cfg.BaseURL = getEnvString("GOODREADS_BASE_URL", "https://www.goodreads.com")
	cfg.ShelfSource = getEnvString("SHELF_SOURCE", "api")
	cfg.ForceRefresh = getEnvBool("SHELF_FORCE_REFRESH", false)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")
	cfg.RenderLimit = getEnvInt("RENDER_LIMIT", 8)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

// ShelfOverrides はシェルフクライアントに渡すオプションのマップを返す。
// 呼び出し元が変更しても設定には影響しない。
func (c *Config) ShelfOverrides() map[string]string {
	out := make(map[string]string, len(c.shelfEnv))
	for k, v := range c.shelfEnv {
		out[k] = v
	}
	return out
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
