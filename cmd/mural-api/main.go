// @title         Mural API
// @version       0.1.0
// @description   Ephemeral audio board with live fan-out

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"mural/internal/platform/config"
	"mural/internal/platform/logger"
	phttp "mural/internal/platform/net/http"
	"mural/internal/platform/store"

	"mural/internal/services/api"
)

func main() {
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")

	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, storeConfig(root), store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	// http server (reads CORE_API_PORT / CORE_API_ADDR)
	srv := phttp.NewServer(apiCfg)

	app := api.Mount(
		srv.Router(),
		api.Options{
			Config:         root,
			Store:          st,
			Logger:         l,
			EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
			EnableProfiler: apiCfg.MayBool("PROFILER", false),
		},
	)
	defer app.Hub.Stop()

	// in-process eviction scheduler, lives as long as the server does
	go func() {
		if err := app.Sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			l.Error().Err(err).Msg("sweeper stopped")
		}
	}()

	l.Info().Str("addr", srv.Addr()).Msg("mural-api listening")
	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Panic().Err(err).Msg("http server stopped")
	}
}

// storeConfig enables only the backends this deployment asked for
func storeConfig(root config.Conf) store.Config {
	backend := root.Prefix("MURAL_BOARD_").MayEnum("STORE", "memory", "memory", "postgres", "redis")
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	rdCfg := root.Prefix("SERVICE_REDIS_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")

	cfg := store.Config{AppName: "mural"}

	if backend == "postgres" || pgCfg.MayBool("ENABLED", false) {
		cfg.PG = store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
			OpTimeout:   pgCfg.MayDuration("OP_TIMEOUT", 5*time.Second),
		}
	}
	if backend == "redis" || rdCfg.MayBool("ENABLED", false) {
		cfg.RD = store.RDConfig{
			Enabled:  true,
			Addr:     rdCfg.MustString("ADDR"),
			Password: rdCfg.MayString("PASSWORD", ""),
			DB:       rdCfg.MayInt("DB", 0),
		}
	}
	if chCfg.MayBool("ENABLED", false) {
		cfg.CH = store.CHConfig{
			Enabled: true,
			URL:     chCfg.MustString("DBURL"),
		}
	}
	return cfg
}
