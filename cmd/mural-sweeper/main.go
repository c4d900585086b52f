// mural-sweeper runs eviction cycles against a durable note store without
// serving HTTP, useful when the API runs elsewhere or is down
package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"mural/internal/modkit"
	"mural/internal/platform/config"
	"mural/internal/platform/logger"
	"mural/internal/platform/store"

	boardmod "mural/internal/services/board/module"
	sweepermod "mural/internal/services/sweeper/module"
)

func main() {
	var (
		fOnce = flag.Bool("once", false, "run a single sweep cycle and exit")
	)
	flag.Parse()

	root := config.New()
	backend := root.Prefix("MURAL_BOARD_").MayEnum("STORE", "memory", "memory", "postgres", "redis")

	l := logger.Get()
	if backend == "memory" {
		l.Panic().Msg("mural-sweeper needs a durable store, set MURAL_BOARD_STORE=postgres or redis")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, storeConfig(root, backend), store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.Deps{
		Log: *l,
		Cfg: root,
		PG:  st.PG,
		RD:  st.RD,
		CH:  st.CH,
	}

	// no hub in this process, deletions only matter to the store here;
	// viewers connected to the API learn of them via its own sweeps and reads
	board := boardmod.New(deps)
	janitor := board.Ports().(boardmod.Ports).Janitor
	sweeper := sweepermod.New(deps, janitor)
	runner := sweeper.Ports().(sweepermod.Ports).Runner

	if *fOnce {
		removed, err := runner.SweepOnce(ctx)
		if err != nil {
			l.Panic().Err(err).Msg("sweep failed")
		}
		l.Info().Int("removed", len(removed)).Msg("sweep complete")
		return
	}

	l.Info().Str("store", backend).Msg("mural-sweeper running")
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		l.Panic().Err(err).Msg("sweeper stopped")
	}
}

func storeConfig(root config.Conf, backend string) store.Config {
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	rdCfg := root.Prefix("SERVICE_REDIS_")

	cfg := store.Config{AppName: "mural"}
	switch backend {
	case "postgres":
		cfg.PG = store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 2)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
			OpTimeout:   pgCfg.MayDuration("OP_TIMEOUT", 5*time.Second),
		}
	case "redis":
		cfg.RD = store.RDConfig{
			Enabled:  true,
			Addr:     rdCfg.MustString("ADDR"),
			Password: rdCfg.MayString("PASSWORD", ""),
			DB:       rdCfg.MayInt("DB", 0),
		}
	}
	return cfg
}
