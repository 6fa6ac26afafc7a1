package di

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rugbymap/rugbymap/internal/config"
	"github.com/rugbymap/rugbymap/internal/di/providers"
	"github.com/rugbymap/rugbymap/internal/pipeline"
	"github.com/rugbymap/rugbymap/internal/territory"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	return &config.Config{
		App:    config.AppConfig{Environment: "production", Season: "2025-2026"},
		Logger: config.LoggerConfig{Level: "error"},
		Data: config.DataConfig{
			BaseDir:      base,
			LeagueDir:    filepath.Join(base, "league_data"),
			CacheBackend: "memory",
		},
		Addresses: config.AddressConfig{
			Concurrency: 2, MaxRetries: 1, BaseBackoff: time.Second, MaxBackoff: time.Second,
			Timeout: time.Second, ProfileBaseURL: "https://clubs.example.org", UserAgent: "test",
		},
		Geocoding: config.GeocodingConfig{
			Concurrency: 1, MaxRetries: 1, BaseBackoff: time.Second, MaxBackoff: time.Second,
			Timeout: time.Second, RequestsPerSecond: 1, Endpoint: "https://geo.example.org", UserAgent: "test",
		},
		Territory: config.TerritoryConfig{
			BoundaryDir:   filepath.Join(base, "boundaries"),
			Detail:        "BUC",
			BoundaryFile:  "countries.geojson",
			FeatureFilter: []string{"CTRY24NM=England"},
			Groupings:     []string{"tier", "all"},
			Projection:    "mercator",
			LayerWorkers:  2,
		},
		Server: config.ServerConfig{Port: "0"},
	}
}

func TestNewContainer_WiresPipeline(t *testing.T) {
	injector := NewContainer(testConfig(t))
	t.Cleanup(func() { injector.Shutdown() })

	p, err := do.Invoke[*pipeline.Pipeline](injector)
	require.NoError(t, err)
	assert.NotNil(t, p)

	opts, err := do.Invoke[pipeline.Options](injector)
	require.NoError(t, err)
	assert.Equal(t, "2025-2026", opts.Season)
	assert.Equal(t, []territory.Grouping{{Kind: territory.KindTier}, {Kind: territory.KindAll}}, opts.Groupings)
}

func TestNewContainer_WiresServer(t *testing.T) {
	injector := NewContainer(testConfig(t))
	t.Cleanup(func() { injector.Shutdown() })

	srv, err := do.Invoke[*providers.HTTPServerHandle](injector)
	require.NoError(t, err)
	assert.Equal(t, ":0", srv.Addr)
	assert.NotNil(t, srv.Handler)
}

func TestNewContainer_RejectsBadGrouping(t *testing.T) {
	cfg := testConfig(t)
	cfg.Territory.Groupings = []string{"postcode"}
	injector := NewContainer(cfg)
	t.Cleanup(func() { injector.Shutdown() })

	_, err := do.Invoke[pipeline.Options](injector)
	assert.Error(t, err)
}
