package app

import (
	"context"
	"errors"
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
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/perfreview/internal/apilog"
	"github.com/hitoshi/perfreview/internal/config"
	"github.com/hitoshi/perfreview/internal/database"
	"github.com/hitoshi/perfreview/internal/gateway"
	"github.com/hitoshi/perfreview/internal/handler"
	"github.com/hitoshi/perfreview/internal/logger"
	"github.com/hitoshi/perfreview/internal/metrics"
	"github.com/hitoshi/perfreview/internal/middleware"
	"github.com/hitoshi/perfreview/internal/realtime"
	"github.com/hitoshi/perfreview/internal/security"
	"github.com/hitoshi/perfreview/internal/session"
	"github.com/hitoshi/perfreview/internal/worker/cleanup"
)

const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, rest, err := ParseCommand(args)
	if err != nil {
		return err
	}

	if cmd == CommandHelp {
		if w == nil {
			w = os.Stdout
		}
		fmt.Fprintln(w, usage)
		return nil
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("session_store", cfg.SessionStore),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg, rest)
	default:
		return runServe(ctx, cfg)
	}
}

// Server は配線済みのHTTPサーバーとバックグラウンドジョブ。
type Server struct {
	HTTP    *http.Server
	Cleanup *cleanup.SessionCleanupJob

	limiter *middleware.RateLimiter
}

// newServer は全依存関係をワイヤリングしたServerを返す。
// セッションストアの寿命は呼び出し側が管理する。
func newServer(cfg *config.Config, store *sessionBackend, log *slog.Logger) (*Server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	logs := apilog.NewBuffer(cfg.APILogCapacity)
	api, err := gateway.NewClient(gateway.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
	}, logs, collector, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	sessions := session.NewManager(store.Store, session.ManagerConfig{
		Secret:       cfg.SessionSecret,
		IdleTimeout:  cfg.SessionIdleTimeout,
		CookieSecure: cfg.CookieSecure,
		CookieDomain: cfg.CookieDomain,
	}, log)

	view, err := handler.NewRenderer(log)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	san := security.NewSanitizer()

	hub := realtime.NewHub(log, collector)
	endpoint := realtime.NewEndpoint(hub, sessions, api, realtime.EndpointConfig{
		OriginPatterns: cfg.WSAllowedOrigins,
	}, log)
	push := realtime.NewPushHandler(hub, cfg.PushAPIKey, san, log)

	limiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitLogin),
		collector,
	)

	router := handler.NewRouter(&handler.RouterDeps{
		API:         api,
		Sessions:    sessions,
		Renderer:    view,
		Sanitizer:   san,
		RateLimiter: limiter,
		CSRF: middleware.CSRFConfig{
			CookieSecure:   cfg.CookieSecure,
			CookieDomain:   cfg.CookieDomain,
			ExemptPrefixes: []string{handler.PushPathPrefix},
		},
		Location: time.Local,
		Hub:      endpoint,
		Push:     push,
		Metrics:  metrics.Handler(reg),
		Health:   store.Health,
		Logs:     logs,
		Logger:   log,
	})

	return &Server{
		HTTP: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			// WebSocketはハイジャック後も接続の書き込み期限を引き継ぐ
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		Cleanup: cleanup.NewSessionCleanupJob(store.Store, collector, log),
		limiter: limiter,
	}, nil
}

// runServe はWebサーバーモードで起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	store, err := openSessionBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	srv, err := newServer(cfg, store, slog.Default())
	if err != nil {
		return err
	}
	defer srv.limiter.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("web server starting", slog.String("addr", srv.HTTP.Addr))
		if err := srv.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		srv.Cleanup.Start(gctx, cfg.SessionCleanupInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down web server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.HTTP.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除だけを定期実行する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	if cfg.SessionStore == config.StoreMemory {
		return errors.New("worker requires a shared session store (redis or postgres)")
	}

	store, err := openSessionBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	job := cleanup.NewSessionCleanupJob(store.Store, nil, slog.Default())

	slog.Info("worker starting", slog.Duration("cleanup_interval", cfg.SessionCleanupInterval))
	job.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はsessionsテーブルのマイグレーションを実行する。
// args[0] が version の場合は適用済みバージョンを表示するだけにする。
func runMigrate(cfg *config.Config, args []string) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("%w: DATABASE_URL", config.ErrMissingEnv)
	}

	var arg string
	if len(args) > 0 {
		arg = args[0]
	}

	if arg == "version" {
		v, dirty, err := database.Version(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		slog.Info("migration version", slog.Uint64("version", uint64(v)), slog.Bool("dirty", dirty))
		return nil
	}

	dir, err := database.ParseDirection(arg)
	if err != nil {
		return err
	}

	slog.Info("running database migrations",
		slog.String("direction", string(dir)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.Migrate(cfg.DatabaseURL, dir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
