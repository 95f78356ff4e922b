package shelf

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// オプションキー。先頭5つ（shelf, sort, order, page, per_page）のみ上流APIに送信する。
const (
	OptShelf            = "shelf"
	OptSort             = "sort"
	OptOrder            = "order"
	OptPage             = "page"
	OptPerPage          = "per_page"
	OptUseFallbackCover = "use_fallback_cover"
	OptCacheEnabled     = "cache_enabled"
	OptCacheTTLHours    = "cache_ttl_hours"
	OptCachePath        = "cache_path"
)

// 並び順
const (
	OrderAscending  = "a"
	OrderDescending = "d"
)

// DefaultCachePath はキャッシュファイルの既定パス。
const DefaultCachePath = "shelf-cache.xml"

// Credentials は上流APIの認証情報を保持する。
type Credentials struct {
	APIKey string `validate:"required,alphanum"`
	UserID string `validate:"required,number"`
}

// Options はシェルフ取得のオプションを保持する。
type Options struct {
	Shelf            string `validate:"required,max=64,shelfname"`
	Sort             string `validate:"omitempty,sortfield"`
	Order            string `validate:"oneof=a d"`
	Page             int    `validate:"min=0"` // 0は未指定
	PerPage          int    `validate:"min=1,max=200"`
	UseFallbackCover bool
	CacheEnabled     bool
	CacheTTLHours    int    `validate:"min=0"`
	CachePath        string `validate:"required"`
}

// DefaultOptions は既定値のOptionsを返す。
func DefaultOptions() Options {
	return Options{
		Shelf:            "read",
		Order:            OrderDescending,
		PerPage:          20,
		UseFallbackCover: true,
		CacheEnabled:     true,
		CacheTTLHours:    12,
		CachePath:        DefaultCachePath,
	}
}

// sortFields は上流APIがサポートする並び替えフィールド。
var sortFields = map[string]struct{}{
	"title": {}, "author": {}, "cover": {}, "rating": {}, "year_pub": {}, "date_pub": {},
	"date_pub_edition": {}, "date_started": {}, "date_read": {}, "date_updated": {},
	"date_added": {}, "recommender": {}, "avg_rating": {}, "num_ratings": {}, "review": {},
	"read_count": {}, "votes": {}, "random": {}, "comments": {}, "notes": {}, "isbn": {},
	"isbn13": {}, "asin": {}, "num_pages": {}, "format": {}, "position": {}, "shelves": {},
	"owned": {}, "date_purchased": {}, "purchase_location": {}, "condition": {},
}

// validate は構造体タグによる検証器。パッケージ内で共有する。
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// シェルフ名は既定の3種に加え、ユーザー作成のシェルフ（英小文字・数字・-・_）を許可する
	_ = v.RegisterValidation("shelfname", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
				return false
			}
		}
		return true
	})
	_ = v.RegisterValidation("sortfield", func(fl validator.FieldLevel) bool {
		_, ok := sortFields[fl.Field().String()]
		return ok
	})
	return v
}

// Validate は認証情報を検証する。
func (c Credentials) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}
	return nil
}

// Validate はオプションの値域を検証する。
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// Merge はキーと文字列値のマップをoにマージした新しいOptionsを返す。
// 未知のキー、解釈できない値、検証に失敗した結果はエラーとし、oは変更しない。
func (o Options) Merge(overrides map[string]string) (Options, error) {
	merged := o
	// エラーメッセージを安定させるためキー順に処理する
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := merged.set(key, strings.TrimSpace(overrides[key])); err != nil {
			return o, err
		}
	}
	if err := merged.Validate(); err != nil {
		return o, err
	}
	return merged, nil
}

// set は1つのオプションを設定する。
func (o *Options) set(key, value string) error {
	switch key {
	case OptShelf:
		o.Shelf = value
	case OptSort:
		o.Sort = value
	case OptOrder:
		order, err := parseOrder(value)
		if err != nil {
			return err
		}
		o.Order = order
	case OptPage:
		if value == "" {
			o.Page = 0
			return nil
		}
		return setInt(&o.Page, key, value)
	case OptPerPage:
		return setInt(&o.PerPage, key, value)
	case OptUseFallbackCover:
		return setBool(&o.UseFallbackCover, key, value)
	case OptCacheEnabled:
		return setBool(&o.CacheEnabled, key, value)
	case OptCacheTTLHours:
		return setInt(&o.CacheTTLHours, key, value)
	case OptCachePath:
		o.CachePath = value
	default:
		return fmt.Errorf("unknown option: %q", key)
	}
	return nil
}

// Query は上流APIに送信するクエリ文字列を返す。
// クライアント側の挙動にのみ関わるオプション（カバー代替、キャッシュ）は含めない。
func (o Options) Query() url.Values {
	q := url.Values{}
	q.Set(OptShelf, o.Shelf)
	if o.Sort != "" {
		q.Set(OptSort, o.Sort)
	}
	q.Set(OptOrder, o.Order)
	if o.Page > 0 {
		q.Set(OptPage, strconv.Itoa(o.Page))
	}
	q.Set(OptPerPage, strconv.Itoa(o.PerPage))
	return q
}

func parseOrder(value string) (string, error) {
	switch strings.ToLower(value) {
	case "a", "asc", "ascending":
		return OrderAscending, nil
	case "d", "desc", "descending":
		return OrderDescending, nil
	default:
		return "", fmt.Errorf("invalid value for %s: %q", OptOrder, value)
	}
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q", key, value)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q", key, value)
	}
	*dst = b
	return nil
}
