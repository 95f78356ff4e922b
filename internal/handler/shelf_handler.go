package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/shelfman/internal/middleware"
	"github.com/hitoshi/shelfman/internal/model"
	"github.com/hitoshi/shelfman/internal/render"
	"github.com/hitoshi/shelfman/internal/shelf"
)

// ShelfGetter はシェルフハンドラーが必要とするクライアントのインターフェース。
// shelf.Clientが満たす。
type ShelfGetter interface {
	// GetShelf はシェルフ上の本を返す。
	GetShelf(ctx context.Context) ([]model.Book, error)
	// Options は現在のオプションを返す。
	Options() shelf.Options
}

// ShelfClientFactory はリクエストごとにクライアントを生成する。
// クライアントは結果を保持するため、リクエスト間で共有するのはキャッシュファイルのみとなる。
type ShelfClientFactory func() (ShelfGetter, error)

// ShelfHandler はシェルフの表示と取得のHTTPハンドラー。
type ShelfHandler struct {
	newClient   ShelfClientFactory
	renderLimit int
}

// NewShelfHandler はShelfHandlerを生成する。
// renderLimitが0以下の場合は既定の冊数を表示する。
func NewShelfHandler(newClient ShelfClientFactory, renderLimit int) *ShelfHandler {
	if renderLimit <= 0 {
		renderLimit = render.DefaultLimit
	}
	return &ShelfHandler{
		newClient:   newClient,
		renderLimit: renderLimit,
	}
}

// shelfResponse はシェルフ取得のAPIレスポンス。
type shelfResponse struct {
	Shelf string       `json:"shelf"`
	Count int          `json:"count"`
	Books []model.Book `json:"books"`
}

// resolve はクライアントを生成してシェルフを取得する。
func (h *ShelfHandler) resolve(r *http.Request) (string, []model.Book, error) {
	client, err := h.newClient()
	if err != nil {
		return "", nil, err
	}
	books, err := client.GetShelf(r.Context())
	if err != nil {
		return "", nil, err
	}
	return client.Options().Shelf, books, nil
}

// GetShelf はシェルフの本をJSONで返す。
// GET /api/shelf
func (h *ShelfHandler) GetShelf(w http.ResponseWriter, r *http.Request) {
	name, books, err := h.resolve(r)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(shelfResponse{
		Shelf: name,
		Count: len(books),
		Books: books,
	})
}

// Page はシェルフをHTMLページとして返す。
// GET /
func (h *ShelfHandler) Page(w http.ResponseWriter, r *http.Request) {
	name, books, err := h.resolve(r)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.Write(w, name, books, h.renderLimit); err != nil {
		// ヘッダー送信後のためステータスは変更できない
		slog.Error("failed to render page",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
	}
}

// Health はヘルスチェックに応答する。上流APIへは問い合わせない。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
