package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/rugbymap/rugbymap/internal/api"
	"github.com/rugbymap/rugbymap/internal/config"
	"github.com/rugbymap/rugbymap/internal/errors"
	"github.com/rugbymap/rugbymap/internal/geo"
	"github.com/rugbymap/rugbymap/internal/logger"
	"github.com/rugbymap/rugbymap/internal/metrics"
	"github.com/rugbymap/rugbymap/internal/stages"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the read-only API server. It is not started.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	st := do.MustInvoke[*stages.Store](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	projector, ok := geo.ProjectorByName(cfg.Territory.Projection)
	if !ok {
		return nil, errors.Configurationf("unknown projection %q", cfg.Territory.Projection)
	}

	handler := api.NewServer(api.Config{
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
		Burst:             cfg.Server.Burst,
		Projection:        projector,
	}, st, m.Handler(), log.Component("api"))

	return &HTTPServerHandle{Server: &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}}, nil
}
