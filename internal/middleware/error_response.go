package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/shelfman/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	Action    string `json:"action"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
// 原因エラー（APIError.Err）はレスポンスに含めない。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Category:  apiErr.Category,
		Action:    apiErr.Action,
		RequestID: w.Header().Get(RequestIDHeader),
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: model.CategorySystem,
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// StatusForError はエラーのカテゴリに対応するHTTPステータスコードを返す。
//
//	retrieval   → 502（上流APIまたは取得した文書の問題）
//	config      → 500（サーバー側の設定の問題）
//	persistence → 500
func StatusForError(err error) int {
	if model.IsCategory(err, model.CategoryRetrieval) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// WriteError はerrを統一エラーフォーマットで書き込む。
// APIErrorでないエラーは内部エラーとして扱い、詳細はログのみに記録する。
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	attrs := []any{
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	}
	if id := RequestIDFromContext(r.Context()); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("unexpected error", attrs...)
		WriteInternalServerError(w)
		return
	}

	slog.Error("request failed", append(attrs, slog.String("code", apiErr.Code))...)
	WriteErrorResponse(w, StatusForError(err), apiErr)
}
