// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, rating parameters, points
// derivation, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-rewards-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// RatingConfig defines the tunables of the skill-rating engine. Zero values
// are replaced with the engine's built-in defaults at load time.
type RatingConfig struct {
	InitialLevel      float64       // RATING_INITIAL_LEVEL
	InitialRD         float64       // RATING_INITIAL_RD
	InitialVolatility float64       // RATING_INITIAL_VOLATILITY
	Tau               float64       // RATING_TAU
	Period            time.Duration // RATING_PERIOD (one rating period)
	DecayThreshold    time.Duration // RATING_DECAY_THRESHOLD (inactivity before decay)
	MinRD             float64       // RATING_MIN_RD
	MaxRD             float64       // RATING_MAX_RD
	MinLevel          float64       // RATING_MIN_LEVEL
	MaxLevel          float64       // RATING_MAX_LEVEL
}

// PointsConfig defines how rating movement converts into ledger points.
type PointsConfig struct {
	BasePoints       int     // POINTS_BASE (flat award per completion)
	PerLevelGain     float64 // POINTS_PER_LEVEL_GAIN (bonus per rating point gained)
	AlgorithmVersion string  // POINTS_ALGORITHM_VERSION (stamped on events)
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath             string   // SQLite path
	Domains            []string // DOMAINS (CSV allowlist; empty accepts any code)
	SeedBadges         bool     // SEED_BADGES (install default catalog when empty)
	StreakLookbackDays int      // STREAK_LOOKBACK_DAYS

	// Engine
	Rating RatingConfig
	Points PointsConfig

	// Pagination
	DefaultPageSize  int // DEFAULT_PAGE_SIZE
	MaxPageSize      int // MAX_PAGE_SIZE
	LeaderboardLimit int // LEADERBOARD_LIMIT (default top-N)
	LeaderboardMax   int // LEADERBOARD_MAX

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:             getenv("DB_PATH", "rewards.db"),
		Domains:            splitCSV(strings.ToLower(getenv("DOMAINS", ""))),
		SeedBadges:         getbool("SEED_BADGES", true),
		StreakLookbackDays: getint("STREAK_LOOKBACK_DAYS", 366),

		// Engine
		Rating: RatingConfig{
			InitialLevel:      getfloat("RATING_INITIAL_LEVEL", 1500),
			InitialRD:         getfloat("RATING_INITIAL_RD", 350),
			InitialVolatility: getfloat("RATING_INITIAL_VOLATILITY", 0.06),
			Tau:               getfloat("RATING_TAU", 0.5),
			Period:            getdur("RATING_PERIOD", 24*time.Hour),
			DecayThreshold:    getdur("RATING_DECAY_THRESHOLD", 7*24*time.Hour),
			MinRD:             getfloat("RATING_MIN_RD", 30),
			MaxRD:             getfloat("RATING_MAX_RD", 350),
			MinLevel:          getfloat("RATING_MIN_LEVEL", 100),
			MaxLevel:          getfloat("RATING_MAX_LEVEL", 4000),
		},
		Points: PointsConfig{
			BasePoints:       getint("POINTS_BASE", 10),
			PerLevelGain:     getfloat("POINTS_PER_LEVEL_GAIN", 2.0),
			AlgorithmVersion: getenv("POINTS_ALGORITHM_VERSION", "v1"),
		},

		// Pagination
		DefaultPageSize:  getint("DEFAULT_PAGE_SIZE", 20),
		MaxPageSize:      getint("MAX_PAGE_SIZE", 100),
		LeaderboardLimit: getint("LEADERBOARD_LIMIT", 50),
		LeaderboardMax:   getint("LEADERBOARD_MAX", 200),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-rewards-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.StreakLookbackDays < 1 {
		return cfg, errors.New("STREAK_LOOKBACK_DAYS must be >= 1")
	}
	r := cfg.Rating
	if r.InitialRD <= 0 || r.MinRD <= 0 || r.MaxRD < r.MinRD {
		return cfg, errors.New("RATING_MIN_RD/RATING_MAX_RD must be positive with min <= max")
	}
	if r.InitialVolatility <= 0 || r.Tau <= 0 {
		return cfg, errors.New("RATING_INITIAL_VOLATILITY and RATING_TAU must be > 0")
	}
	if r.Period <= 0 || r.DecayThreshold <= 0 {
		return cfg, errors.New("RATING_PERIOD and RATING_DECAY_THRESHOLD must be > 0")
	}
	if r.MaxLevel <= r.MinLevel {
		return cfg, errors.New("RATING_MAX_LEVEL must exceed RATING_MIN_LEVEL")
	}
	if r.InitialLevel < r.MinLevel || r.InitialLevel > r.MaxLevel {
		return cfg, errors.New("RATING_INITIAL_LEVEL must lie within the level bounds")
	}
	if cfg.Points.BasePoints < 0 || cfg.Points.PerLevelGain < 0 {
		return cfg, errors.New("POINTS_BASE and POINTS_PER_LEVEL_GAIN must be >= 0")
	}
	if strings.TrimSpace(cfg.Points.AlgorithmVersion) == "" {
		return cfg, errors.New("POINTS_ALGORITHM_VERSION must not be empty")
	}
	if cfg.DefaultPageSize < 1 || cfg.MaxPageSize < cfg.DefaultPageSize {
		return cfg, errors.New("DEFAULT_PAGE_SIZE/MAX_PAGE_SIZE must be >= 1 with default <= max")
	}
	if cfg.LeaderboardLimit < 1 || cfg.LeaderboardMax < cfg.LeaderboardLimit {
		return cfg, errors.New("LEADERBOARD_LIMIT/LEADERBOARD_MAX must be >= 1 with default <= max")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// DomainSet returns the configured domain allowlist as a set; empty when any
// code is accepted.
func (c Config) DomainSet() map[string]struct{} {
	if len(c.Domains) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(c.Domains))
	for _, d := range c.Domains {
		out[d] = struct{}{}
	}
	return out
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
