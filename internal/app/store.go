package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/hitoshi/perfreview/internal/config"
	"github.com/hitoshi/perfreview/internal/database"
	"github.com/hitoshi/perfreview/internal/handler"
	"github.com/hitoshi/perfreview/internal/session"
)

// sessionBackend はSESSION_STOREに応じて開いたセッションストアと付随リソース。
type sessionBackend struct {
	Store session.Store
	// Health はヘルスチェック対象。メモリストアではnil。
	Health handler.HealthChecker
	close  func() error
}

// Close はストアが保持する接続を閉じる。
func (b *sessionBackend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// dbPinger は*sql.DBをHealthCheckerに合わせる。
type dbPinger struct {
	db *sql.DB
}

func (p dbPinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// openSessionBackend は設定に従ってセッションストアを開く。
func openSessionBackend(ctx context.Context, cfg *config.Config) (*sessionBackend, error) {
	switch cfg.SessionStore {
	case config.StoreMemory:
		store := session.NewMemoryStore()
		return &sessionBackend{Store: store}, nil

	case config.StoreRedis:
		store, err := session.NewRedisStore(ctx, session.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("session store connected", slog.String("store", "redis"), slog.String("addr", cfg.RedisAddr))
		return &sessionBackend{Store: store, Health: store, close: store.Close}, nil

	case config.StorePostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("session store connected",
			slog.String("store", "postgres"),
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		)
		store := session.NewPostgresStore(db)
		return &sessionBackend{Store: store, Health: dbPinger{db: db}, close: db.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported session store: %q", cfg.SessionStore)
	}
}
