// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: config, retrieval, persistence, system
	Action   string // ユーザー向け対処方法
	Err      error  // 原因エラー（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// エラーカテゴリ
const (
	CategoryConfig      = "config"
	CategoryRetrieval   = "retrieval"
	CategoryPersistence = "persistence"
	CategorySystem      = "system"
)

// 定義済みエラーコード
const (
	ErrCodeInvalidConfig    = "INVALID_CONFIG"
	ErrCodeFetchFailed      = "FETCH_FAILED"
	ErrCodeParseFailed      = "PARSE_FAILED"
	ErrCodeCacheWriteFailed = "CACHE_WRITE_FAILED"
)

// IsCategory はerrのチェーン中にcategoryのAPIErrorが含まれるかを判定する。
func IsCategory(err error, category string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category == category
	}
	return false
}

// NewInvalidConfigError は設定不正エラーを生成する。
func NewInvalidConfigError(reason string, err error) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidConfig,
		Message:  fmt.Sprintf("設定が不正です: %s", reason),
		Category: CategoryConfig,
		Action:   "APIキー、ユーザーID、シェルフのオプションを確認してください。",
		Err:      err,
	}
}

// NewFetchFailedError はシェルフ取得失敗エラーを生成する。
func NewFetchFailedError(reason string, err error) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("シェルフの取得に失敗しました: %s", reason),
		Category: CategoryRetrieval,
		Action:   "ネットワーク接続とAPIキーを確認し、しばらく待ってから再度お試しください。",
		Err:      err,
	}
}

// NewParseFailedError はドキュメント解析失敗エラーを生成する。
// sourceは解析対象（"cache" または "network"）。
func NewParseFailedError(source string, err error) *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  fmt.Sprintf("シェルフの解析に失敗しました（%s）", source),
		Category: CategoryRetrieval,
		Action:   "キャッシュファイルを削除するか、強制リフレッシュで再取得してください。",
		Err:      err,
	}
}

// NewCacheWriteFailedError はキャッシュファイル書き込み失敗エラーを生成する。
func NewCacheWriteFailedError(path string, err error) *APIError {
	return &APIError{
		Code:     ErrCodeCacheWriteFailed,
		Message:  fmt.Sprintf("キャッシュファイルを書き込めませんでした: %s", path),
		Category: CategoryPersistence,
		Action:   "キャッシュパスのディレクトリと書き込み権限を確認してください。",
		Err:      err,
	}
}
