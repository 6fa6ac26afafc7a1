// Package config provides pipeline configuration loaded from command-line flags,
// environment variables, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/rugbymap/rugbymap/internal/validation"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig       `json:"app"`
	Logger    LoggerConfig    `json:"logger"`
	Data      DataConfig      `json:"data"`
	Addresses AddressConfig   `json:"addresses"`
	Geocoding GeocodingConfig `json:"geocoding"`
	Territory TerritoryConfig `json:"territory"`
	Server    ServerConfig    `json:"server"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `json:"environment" validate:"oneof=development staging production"`
	Season      string `json:"season" validate:"required,season"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `json:"level" validate:"oneof=debug info warn error"`
}

// DataConfig holds on-disk layout and cache backend settings.
type DataConfig struct {
	BaseDir string `json:"base_dir" validate:"required"`
	// LeagueDir holds league_data/<season>/*.json listings.
	LeagueDir    string `json:"league_dir" validate:"required"`
	CacheBackend string `json:"cache_backend" validate:"oneof=badger file redis memory"`
	RedisAddr    string `json:"redis_addr"`
	RedisDB      int    `json:"redis_db" validate:"gte=0"`
}

// AddressConfig tunes the club profile address resolver.
type AddressConfig struct {
	Concurrency    int           `json:"concurrency" validate:"gte=1"`
	Delay          time.Duration `json:"delay" validate:"gte=0"`
	MaxRetries     int           `json:"max_retries" validate:"gte=0"`
	BaseBackoff    time.Duration `json:"base_backoff" validate:"gt=0"`
	MaxBackoff     time.Duration `json:"max_backoff" validate:"gtefield=BaseBackoff"`
	Timeout        time.Duration `json:"timeout" validate:"gt=0"`
	ProfileBaseURL string        `json:"profile_base_url" validate:"required,url"`
	UserAgent      string        `json:"user_agent" validate:"required"`
	RetryFailed    bool          `json:"retry_failed"`
}

// GeocodingConfig tunes the geocoding resolver.
type GeocodingConfig struct {
	Concurrency       int           `json:"concurrency" validate:"gte=1"`
	MaxRetries        int           `json:"max_retries" validate:"gte=0"`
	BaseBackoff       time.Duration `json:"base_backoff" validate:"gt=0"`
	MaxBackoff        time.Duration `json:"max_backoff" validate:"gtefield=BaseBackoff"`
	Timeout           time.Duration `json:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `json:"requests_per_second" validate:"gt=0"`
	Endpoint          string        `json:"endpoint" validate:"required,url"`
	UserAgent         string        `json:"user_agent" validate:"required"`
	CountryCodes      []string      `json:"country_codes"`
	AmbiguityKm       float64       `json:"ambiguity_km" validate:"gte=0"`
	RetryFailed       bool          `json:"retry_failed"`
}

// TerritoryConfig controls tessellation and layer assembly.
type TerritoryConfig struct {
	BoundaryDir    string   `json:"boundary_dir" validate:"required"`
	Detail         string   `json:"detail" validate:"oneof=BFE BFC BGC BSC BUC"`
	BoundaryFile   string   `json:"boundary_file" validate:"required"`
	FeatureFilter  []string `json:"feature_filter"`
	Groupings      []string `json:"groupings" validate:"min=1"`
	Projection     string   `json:"projection" validate:"oneof=mercator identity"`
	MarginFactor   float64  `json:"margin_factor" validate:"gt=0"`
	JitterFraction float64  `json:"jitter_fraction" validate:"gt=0,lt=0.01"`
	LayerWorkers   int      `json:"layer_workers" validate:"gte=1"`
	// RegionFiles hold the ITL levels, widest first, that teams are placed
	// in and layers claim; empty disables regions.
	RegionFiles []string `json:"region_files" validate:"max=3"`
}

// ServerConfig holds read-only API server configuration.
type ServerConfig struct {
	Port           string        `json:"port" validate:"required"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	IdleTimeout    time.Duration `json:"idle_timeout"`
	AllowedOrigins []string      `json:"allowed_origins"`

	// RequestsPerMinute is the per-client budget; zero disables limiting.
	RequestsPerMinute int `json:"requests_per_minute" validate:"gte=0"`
	Burst             int `json:"burst" validate:"gte=0"`
}

// BoundaryPath returns <BoundaryDir>/<Detail>/<BoundaryFile>.
func (t TerritoryConfig) BoundaryPath() string {
	return filepath.Join(t.BoundaryDir, t.Detail, t.BoundaryFile)
}

// RegionPaths returns <BoundaryDir>/<Detail>/<file> for each region file.
func (t TerritoryConfig) RegionPaths() []string {
	paths := make([]string, 0, len(t.RegionFiles))
	for _, f := range t.RegionFiles {
		paths = append(paths, filepath.Join(t.BoundaryDir, t.Detail, f))
	}
	return paths
}

// Load builds configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
//
// args excludes the program name and subcommand. Unparsed positional
// arguments are returned alongside the config.
func Load(name string, args []string) (*Config, []string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	season := fs.String("season", "", "Season identifier, e.g. 2025-2026")
	dataDir := fs.String("data-dir", "", "Base directory for stage outputs and caches")
	leagueDir := fs.String("league-dir", "", "Directory of league listing JSON (default: {data-dir}/league_data)")
	cacheBackend := fs.String("cache", "", "Cache backend: badger, file, redis, memory")
	redisAddr := fs.String("redis-addr", "", "Redis address when -cache=redis")

	addrConcurrency := fs.String("address-concurrency", "", "Concurrent profile fetches (default: 4)")
	addrDelay := fs.String("address-delay", "", "Minimum delay between requests per worker (default: 500ms)")
	addrRetries := fs.String("address-retries", "", "Retries for transient profile fetch failures (default: 3)")
	retryFailed := fs.Bool("retry-failed", false, "Retry clubs with cached permanent failures")

	geoConcurrency := fs.String("geocode-concurrency", "", "Concurrent geocode workers (default: 2)")
	geoRetries := fs.String("geocode-retries", "", "Retries for transient geocode failures (default: 3)")
	geoRPS := fs.String("geocode-rps", "", "Global geocode request rate (default: 1)")

	boundaryDir := fs.String("boundary-dir", "", "Boundary GeoJSON root (default: {data-dir}/boundaries)")
	detail := fs.String("detail", "", "Boundary detail level: BFE, BFC, BGC, BSC, BUC (default: BUC)")
	groupings := fs.String("groupings", "", "Comma-separated groupings: tier, league, all, division, tier:<name>, league:<id>")

	port := fs.String("port", "", "API server port (default: 8080)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	// Missing .env files are fine.
	_ = godotenv.Load(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			Season:      getConfigValue(*season, "SEASON", "2025-2026"),
		},
		Logger: LoggerConfig{
			Level: strings.ToLower(getConfigValue(*logLevel, "LOG_LEVEL", "info")),
		},
		Data: DataConfig{
			BaseDir:      getConfigValue(*dataDir, "DATA_DIR", "data"),
			LeagueDir:    getConfigValue(*leagueDir, "LEAGUE_DIR", ""),
			CacheBackend: getConfigValue(*cacheBackend, "CACHE_BACKEND", "badger"),
			RedisAddr:    getConfigValue(*redisAddr, "REDIS_ADDR", "localhost:6379"),
			RedisDB:      getIntConfigValue("", "REDIS_DB", 0),
		},
		Addresses: AddressConfig{
			Concurrency:    getIntConfigValue(*addrConcurrency, "ADDRESS_CONCURRENCY", 4),
			MaxRetries:     getIntConfigValue(*addrRetries, "ADDRESS_RETRIES", 3),
			ProfileBaseURL: getConfigValue("", "PROFILE_BASE_URL", "https://www.englandrugby.com"),
			UserAgent:      getConfigValue("", "ADDRESS_USER_AGENT", "Mozilla/5.0 (compatible; rugbymap/1.0)"),
			RetryFailed:    *retryFailed || getBoolConfigValue("", "ADDRESS_RETRY_FAILED", false),
		},
		Geocoding: GeocodingConfig{
			Concurrency:  getIntConfigValue(*geoConcurrency, "GEOCODE_CONCURRENCY", 2),
			MaxRetries:   getIntConfigValue(*geoRetries, "GEOCODE_RETRIES", 3),
			Endpoint:     getConfigValue("", "GEOCODE_ENDPOINT", "https://nominatim.openstreetmap.org"),
			UserAgent:    getConfigValue("", "GEOCODE_USER_AGENT", "rugbymap/1.0 (club territory maps)"),
			CountryCodes: splitList(getConfigValue("", "GEOCODE_COUNTRY_CODES", "gb,im,je,gg")),
			RetryFailed:  *retryFailed || getBoolConfigValue("", "GEOCODE_RETRY_FAILED", false),
		},
		Territory: TerritoryConfig{
			BoundaryDir:   getConfigValue(*boundaryDir, "BOUNDARY_DIR", ""),
			Detail:        strings.ToUpper(getConfigValue(*detail, "BOUNDARY_DETAIL", "BUC")),
			BoundaryFile:  getConfigValue("", "BOUNDARY_FILE", "countries.geojson"),
			FeatureFilter: splitList(getConfigValue("", "BOUNDARY_FEATURES", "CTRY24NM=England")),
			Groupings:     splitList(getConfigValue(*groupings, "GROUPINGS", "tier,all")),
			Projection:    getConfigValue("", "PROJECTION", "mercator"),
			LayerWorkers:  getIntConfigValue("", "LAYER_WORKERS", 4),
			RegionFiles:   splitList(getConfigValue("", "REGION_FILES", "ITL_1.geojson,ITL_2.geojson,ITL_3.geojson")),
		},
		Server: ServerConfig{
			Port:              getConfigValue(*port, "SERVER_PORT", "8080"),
			AllowedOrigins:    splitList(getConfigValue("", "ALLOWED_ORIGINS", "*")),
			RequestsPerMinute: getIntConfigValue("", "RATE_LIMIT_RPM", 300),
			Burst:             getIntConfigValue("", "RATE_LIMIT_BURST", 50),
		},
	}

	var errs []error
	parseDuration := func(dst *time.Duration, flagValue, envKey, def string) {
		d, err := getDurationConfigValue(flagValue, envKey, def)
		if err != nil {
			errs = append(errs, err)
			return
		}
		*dst = d
	}
	parseFloat := func(dst *float64, flagValue, envKey string, def float64) {
		f, err := getFloatConfigValue(flagValue, envKey, def)
		if err != nil {
			errs = append(errs, err)
			return
		}
		*dst = f
	}

	parseDuration(&cfg.Addresses.Delay, *addrDelay, "ADDRESS_DELAY", "500ms")
	parseDuration(&cfg.Addresses.BaseBackoff, "", "ADDRESS_BASE_BACKOFF", "1s")
	parseDuration(&cfg.Addresses.MaxBackoff, "", "ADDRESS_MAX_BACKOFF", "30s")
	parseDuration(&cfg.Addresses.Timeout, "", "ADDRESS_TIMEOUT", "30s")
	parseDuration(&cfg.Geocoding.BaseBackoff, "", "GEOCODE_BASE_BACKOFF", "2s")
	parseDuration(&cfg.Geocoding.MaxBackoff, "", "GEOCODE_MAX_BACKOFF", "60s")
	parseDuration(&cfg.Geocoding.Timeout, "", "GEOCODE_TIMEOUT", "30s")
	parseDuration(&cfg.Server.ReadTimeout, "", "SERVER_READ_TIMEOUT", "15s")
	parseDuration(&cfg.Server.WriteTimeout, "", "SERVER_WRITE_TIMEOUT", "30s")
	parseDuration(&cfg.Server.IdleTimeout, "", "SERVER_IDLE_TIMEOUT", "60s")
	parseFloat(&cfg.Geocoding.RequestsPerSecond, *geoRPS, "GEOCODE_RPS", 1)
	parseFloat(&cfg.Geocoding.AmbiguityKm, "", "GEOCODE_AMBIGUITY_KM", 25)
	parseFloat(&cfg.Territory.MarginFactor, "", "TERRITORY_MARGIN", 1)
	parseFloat(&cfg.Territory.JitterFraction, "", "TERRITORY_JITTER", 1e-6)

	if err := errors.Join(errs...); err != nil {
		return nil, nil, err
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, nil, fmt.Errorf("invalid data paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, fs.Args(), nil
}

// Validate checks that all config values are present and consistent.
func (c *Config) Validate() error {
	if err := validation.New().Validate(c); err != nil {
		return err
	}
	if c.Data.CacheBackend == "redis" && c.Data.RedisAddr == "" {
		return errors.New("redis cache backend requires REDIS_ADDR")
	}
	return nil
}

// expandPaths resolves ~ and relative paths, deriving defaults from BaseDir.
func (c *Config) expandPaths() error {
	base, err := expandPath(c.Data.BaseDir, "")
	if err != nil {
		return err
	}
	c.Data.BaseDir = base

	if c.Data.LeagueDir, err = expandPath(c.Data.LeagueDir, filepath.Join(base, "league_data")); err != nil {
		return err
	}
	if c.Territory.BoundaryDir, err = expandPath(c.Territory.BoundaryDir, filepath.Join(base, "boundaries")); err != nil {
		return err
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return n
}

func getFloatConfigValue(flagValue, envKey string, defaultValue float64) (float64, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return f, nil
}

func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
