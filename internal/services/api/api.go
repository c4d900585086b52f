// Package api composes the HTTP surface of the application
package api

import (
	"mural/internal/platform/config"
	"mural/internal/platform/logger"
	phttp "mural/internal/platform/net/http"
	"mural/internal/platform/store"

	"mural/internal/modkit"
	"mural/internal/modkit/httpkit"
	"mural/internal/modkit/module"
	"mural/internal/modkit/swaggerkit"

	metamod "mural/internal/services/api/meta/module"
	boardmod "mural/internal/services/board/module"
	livemod "mural/internal/services/live/module"
	livesvc "mural/internal/services/live/service"
	sweepermod "mural/internal/services/sweeper/module"
	swsvc "mural/internal/services/sweeper/service"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool
}

// App exposes the long-lived pieces main needs to run and stop
type App struct {
	Hub     *livesvc.Hub
	Sweeper *swsvc.Service
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) *App {
	// shared deps for modules
	deps := modkit.Deps{
		Log: *opt.Logger,
		Cfg: opt.Config,
		PG:  opt.Store.PG,
		RD:  opt.Store.RD,
		CH:  opt.Store.CH,
	}

	// The hub exists before the board so the board can publish into it;
	// its snapshot source is bound once the board's reader port exists.
	queueSize := opt.Config.Prefix("CORE_API_").MayInt("SSE_QUEUE", livesvc.DefaultQueueSize)
	hub := livesvc.NewHub(deps.Log, queueSize)

	board := boardmod.New(deps, modkit.WithPorts(boardmod.InPorts{Events: hub}))
	boardPorts := board.Ports().(boardmod.Ports)
	hub.BindSnapshot(boardPorts.Reader.Snapshot)

	live := livemod.New(deps, hub)
	sweeper := sweepermod.New(deps, boardPorts.Janitor)
	meta := metamod.New(deps, opt.Store)

	mods := []module.Module{
		meta,
		board,
		live,
		sweeper,
	}

	// versioned API with a common middleware stack
	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		swaggerkit.Mount(r, opt.EnableSwagger)
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range mods {
			module.Register(m.Name(), m.Ports())
			m.MountRoutes(api)
		}
	})

	return &App{
		Hub:     hub,
		Sweeper: sweeper.Ports().(sweepermod.Ports).Runner,
	}
}
