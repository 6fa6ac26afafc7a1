package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/rugbymap/rugbymap/internal/config"
	"github.com/rugbymap/rugbymap/internal/logger"
	"github.com/rugbymap/rugbymap/internal/source"
	"github.com/rugbymap/rugbymap/internal/stages"
	"github.com/rugbymap/rugbymap/internal/store"
	"github.com/rugbymap/rugbymap/internal/validation"
)

// CacheHandle wraps the resolver cache with shutdown capability.
type CacheHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideCache opens the configured cache backend.
func ProvideCache(i do.Injector) (*CacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s, err := store.Open(ctx, store.Options{
		Backend:   cfg.Data.CacheBackend,
		Dir:       filepath.Join(cfg.Data.BaseDir, "cache"),
		RedisAddr: cfg.Data.RedisAddr,
		RedisDB:   cfg.Data.RedisDB,
		Logger:    log.Component("cache"),
	})
	if err != nil {
		return nil, err
	}

	log.Info("Cache opened", "backend", cfg.Data.CacheBackend)
	return &CacheHandle{Store: s}, nil
}

// ProvideStages provides the stage output store.
func ProvideStages(i do.Injector) (*stages.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return stages.New(cfg.Data.BaseDir, store.RenameWriter{}), nil
}

// ProvideSource provides the league listing reader.
func ProvideSource(i do.Injector) (*source.LeagueFiles, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	return source.NewLeagueFiles(cfg.Data.LeagueDir, validation.New(), log.Component("source")), nil
}
