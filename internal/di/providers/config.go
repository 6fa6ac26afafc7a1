package providers

import (
	"github.com/samber/do/v2"

	"github.com/rugbymap/rugbymap/internal/config"
	"github.com/rugbymap/rugbymap/internal/logger"
	"github.com/rugbymap/rugbymap/internal/metrics"
)

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Debug("Configuration loaded",
		"environment", cfg.App.Environment,
		"season", cfg.App.Season,
		"data_dir", cfg.Data.BaseDir,
		"cache", cfg.Data.CacheBackend,
	)

	return log, nil
}

// ProvideMetrics provides the Prometheus collectors shared by every stage.
func ProvideMetrics(_ do.Injector) (*metrics.Metrics, error) {
	return metrics.New(), nil
}
