// Package app はコマンドの解析と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/shelfman/internal/config"
	"github.com/hitoshi/shelfman/internal/handler"
	"github.com/hitoshi/shelfman/internal/logger"
	"github.com/hitoshi/shelfman/internal/metrics"
	"github.com/hitoshi/shelfman/internal/middleware"
	"github.com/hitoshi/shelfman/internal/model"
	"github.com/hitoshi/shelfman/internal/render"
	"github.com/hitoshi/shelfman/internal/security"
	"github.com/hitoshi/shelfman/internal/shelf"
)

// Init はアプリケーションの初期化を行う。
// .envファイルを読み込んだ後に環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// logWがnilの場合は標準エラー出力にログを出力する。
func Init(logW io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(logW, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. .envファイルの読み込み（既存の環境変数は上書きしない）
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// .envでLOG_LEVELが指定された場合に備えて再設定する
	logger.SetupDefault(logW, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。wはfetch/renderコマンドの出力先。
func Run(w io.Writer, args []string) error {
	return (&runner{out: w}).run(args)
}

// runner はコマンドの実行に必要な出力先と差し替え可能な依存関係を保持する。
type runner struct {
	out  io.Writer
	logW io.Writer

	// httpClientがnilの場合はsafeurlでラップしたクライアントを使い、ベースURLを検証する
	httpClient *http.Client
}

func (a *runner) run(args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(a.logW)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("user_id", cfg.UserID),
		slog.String("source", cfg.ShelfSource),
		slog.Bool("force_refresh", cfg.ForceRefresh),
	)

	switch cmd {
	case CommandFetch:
		return a.runFetch(cfg)
	case CommandRender:
		return a.runRender(cfg)
	default:
		return a.runServe(cfg)
	}
}

// shelfClientFactory は設定からシェルフクライアントの生成関数を組み立てる。
// 生成関数のforceRefresh引数はキャッシュファイルを削除するかどうか。
func (a *runner) shelfClientFactory(cfg *config.Config, collector metrics.MetricsCollector) (func(forceRefresh bool) (*shelf.Client, error), error) {
	source, err := shelf.ParseSource(cfg.ShelfSource)
	if err != nil {
		return nil, model.NewInvalidConfigError("SHELF_SOURCEが不正です", err)
	}

	httpClient := a.httpClient
	if httpClient == nil {
		guard := security.NewUpstreamGuard()
		if err := guard.ValidateBaseURL(cfg.BaseURL); err != nil {
			return nil, model.NewInvalidConfigError("GOODREADS_BASE_URLが不正です", err)
		}
		httpClient = guard.NewSafeClient(cfg.FetchTimeout)
	}

	creds := shelf.Credentials{APIKey: cfg.APIKey, UserID: cfg.UserID}
	options := []shelf.ClientOption{
		shelf.WithHTTPClient(httpClient),
		shelf.WithBaseURL(cfg.BaseURL),
		shelf.WithSource(source),
		shelf.WithMaxBodySize(cfg.FetchMaxSize),
		shelf.WithLogger(slog.Default()),
	}
	if collector != nil {
		options = append(options, shelf.WithMetrics(collector))
	}

	return func(forceRefresh bool) (*shelf.Client, error) {
		return shelf.New(creds, cfg.ShelfOverrides(), forceRefresh, options...)
	}, nil
}

// resolveOnce はシェルフを1回解決する。fetch/renderコマンドで使用する。
func (a *runner) resolveOnce(cfg *config.Config) (*shelf.Client, []model.Book, error) {
	newClient, err := a.shelfClientFactory(cfg, nil)
	if err != nil {
		return nil, nil, err
	}
	client, err := newClient(cfg.ForceRefresh)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout+5*time.Second)
	defer cancel()

	books, err := client.GetShelf(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get shelf: %w", err)
	}
	return client, books, nil
}

// runFetch はシェルフの本をJSON配列で出力する。
func (a *runner) runFetch(cfg *config.Config) error {
	_, books, err := a.resolveOnce(cfg)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(books); err != nil {
		return fmt.Errorf("failed to write books: %w", err)
	}
	return nil
}

// runRender はシェルフのHTMLページを出力する。
func (a *runner) runRender(cfg *config.Config) error {
	client, books, err := a.resolveOnce(cfg)
	if err != nil {
		return err
	}
	return render.Write(a.out, client.Options().Shelf, books, cfg.RenderLimit)
}

// runServe はHTTPサーバーモードで起動する。
// 強制リフレッシュは起動時に1回だけ適用し、以降のリクエストはキャッシュを共有する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func (a *runner) runServe(cfg *config.Config) error {
	// 1. メトリクスの初期化
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. シェルフクライアントの生成関数（起動時に設定を検証する）
	newClient, err := a.shelfClientFactory(cfg, collector)
	if err != nil {
		return err
	}
	if _, err := newClient(cfg.ForceRefresh); err != nil {
		return err
	}

	// 3. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		NewShelfClient: func() (handler.ShelfGetter, error) {
			return newClient(false)
		},
		RenderLimit:    cfg.RenderLimit,
		MetricsHandler: metrics.Handler(reg),
	})

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.FetchTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("HTTP server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
