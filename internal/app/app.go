package app

import (
	"github.com/drewster99/FishIdentifierCam/internal/config"
	"github.com/drewster99/FishIdentifierCam/internal/metrics"
	"github.com/drewster99/FishIdentifierCam/internal/utils"
)

type App struct {
	Config   *config.Config
	Counters *metrics.CounterStore
}

func NewApp(cfg *config.Config) (*App, error) {
	// The counter store is best-effort observability. If it cannot open
	// we run without it rather than refusing to start.
	counters, err := metrics.NewCounterStore(cfg.CounterDBPath)
	if err != nil {
		utils.Logger.WithError(err).Warn("Failed to open counter store; activity counters disabled")
		counters = nil
	}

	return &App{
		Config:   cfg,
		Counters: counters,
	}, nil
}

func (a *App) Close() {
	if a.Counters != nil {
		a.Counters.Close()
		utils.Logger.Info("Counter store closed.")
	}
}
