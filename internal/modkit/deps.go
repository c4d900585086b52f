package modkit

import (
	"mural/internal/modkit/repokit"
	"mural/internal/platform/config"
	"mural/internal/platform/logger"
	"mural/internal/platform/store"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	RD  store.Redis
	CH  store.Analytics
}

// ZeroOK returns true when deps are safe to use with zero values in tests
// consumers should still nil check for optional stores
func (d Deps) ZeroOK() bool { return true }
