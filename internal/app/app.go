package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vkral/souffleur/internal/eventlog"
	"github.com/vkral/souffleur/internal/httpapi"
	"github.com/vkral/souffleur/internal/store"
)

type App struct {
	cfg      Config
	logger   *log.Logger
	db       *pgxpool.Pool
	store    *store.Store
	eventLog *eventlog.Logger
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// Migrations are applied externally by the CI deploy job (docker exec psql).
	// No automatic migration runner at startup.

	return &App{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		store:    store.New(db),
		eventLog: eventlog.New(db),
	}, nil
}

func (a *App) Store() *store.Store {
	return a.store
}

func (a *App) Router(sessions *httpapi.SessionRegistry) http.Handler {
	routerCfg := httpapi.RouterConfig{
		PublicBaseURL:     a.cfg.PublicBaseURL,
		DeepgramAPIKey:    a.cfg.DeepgramAPIKey,
		OpenRouterAPIKey:  a.cfg.OpenRouterAPIKey,
		LLMModel:          a.cfg.LLMModel,
		STTLanguage:       a.cfg.STTLanguage,
		SilenceThreshold:  time.Duration(a.cfg.SilenceThresholdMs) * time.Millisecond,
		MinUtteranceWords: a.cfg.MinUtteranceWords,
		CountdownInterval: a.cfg.CountdownInterval,
		StartingMinutes:   a.cfg.StartingMinutes,
		JWTSecret:         a.cfg.JWTSecret,
		JWTExpiry:         a.cfg.JWTExpiry,
	}
	return httpapi.NewRouter(routerCfg, a.logger, a.store, a.eventLog, sessions)
}

func (a *App) Close() error {
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
