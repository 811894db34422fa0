package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultListenAddr        = ":8080"
	defaultDBPath            = "taskroute.db"
	defaultLogMaxSizeMB      = 100
	defaultLogMaxBackups     = 3
	defaultLogMaxAgeDays     = 28
	defaultCostRate          = 0.25
	defaultDefaultPlatform   = "local_dev"
	defaultStepTick          = 200 * time.Millisecond
	defaultStepIncrement     = 10
	defaultOracleTimeout     = 5 * time.Second
	defaultOracleModel       = "gpt-4o"
	defaultTelemetryInterval = 3 * time.Second

	envListenAddr        = "TASKROUTE_LISTEN_ADDR"
	envDBPath            = "TASKROUTE_DB_PATH"
	envLogLevel          = "TASKROUTE_LOG_LEVEL"
	envLogFile           = "TASKROUTE_LOG_FILE"
	envLogMaxSizeMB      = "TASKROUTE_LOG_MAX_SIZE_MB"
	envLogMaxBackups     = "TASKROUTE_LOG_MAX_BACKUPS"
	envLogMaxAgeDays     = "TASKROUTE_LOG_MAX_AGE_DAYS"
	envCatalogPath       = "TASKROUTE_CATALOG_PATH"
	envCostRate          = "TASKROUTE_COST_RATE"
	envDefaultPlatform   = "TASKROUTE_DEFAULT_PLATFORM"
	envStepTick          = "TASKROUTE_STEP_TICK"
	envStepIncrement     = "TASKROUTE_STEP_INCREMENT"
	envOracleTimeout     = "TASKROUTE_ORACLE_TIMEOUT"
	envOracleBaseURL     = "TASKROUTE_ORACLE_BASE_URL"
	envOracleAPIKey      = "TASKROUTE_ORACLE_API_KEY"
	envOracleModel       = "TASKROUTE_ORACLE_MODEL"
	envTelemetryInterval = "TASKROUTE_TELEMETRY_INTERVAL"
	envExcludePlatforms  = "TASKROUTE_EXCLUDE_PLATFORMS"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string

	LogLevel      slog.Level
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// CatalogPath overrides the embedded platform catalog when set.
	CatalogPath     string
	CostRate        float64
	DefaultPlatform string

	StepTick      time.Duration
	StepIncrement int

	OracleTimeout time.Duration
	OracleBaseURL string
	OracleAPIKey  string
	OracleModel   string

	TelemetryInterval time.Duration
	ExcludePlatforms  []string
}

// OracleEnabled reports whether an oracle API key is configured.
func (c Config) OracleEnabled() bool {
	return c.OracleAPIKey != ""
}

// Load reads configuration from environment variables with sensible defaults.
// Values that fail to parse keep their default.
func Load() Config {
	cfg := Config{
		ListenAddr:        defaultListenAddr,
		DBPath:            defaultDBPath,
		LogLevel:          slog.LevelInfo,
		LogMaxSizeMB:      defaultLogMaxSizeMB,
		LogMaxBackups:     defaultLogMaxBackups,
		LogMaxAgeDays:     defaultLogMaxAgeDays,
		CostRate:          defaultCostRate,
		DefaultPlatform:   defaultDefaultPlatform,
		StepTick:          defaultStepTick,
		StepIncrement:     defaultStepIncrement,
		OracleTimeout:     defaultOracleTimeout,
		OracleModel:       defaultOracleModel,
		TelemetryInterval: defaultTelemetryInterval,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	cfg.LogFile = os.Getenv(envLogFile)
	cfg.LogMaxSizeMB = envInt(envLogMaxSizeMB, cfg.LogMaxSizeMB)
	cfg.LogMaxBackups = envInt(envLogMaxBackups, cfg.LogMaxBackups)
	cfg.LogMaxAgeDays = envInt(envLogMaxAgeDays, cfg.LogMaxAgeDays)

	cfg.CatalogPath = os.Getenv(envCatalogPath)
	if v := os.Getenv(envCostRate); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.CostRate = f
		}
	}
	if v := os.Getenv(envDefaultPlatform); v != "" {
		cfg.DefaultPlatform = v
	}

	cfg.StepTick = envDuration(envStepTick, cfg.StepTick)
	if n := envInt(envStepIncrement, cfg.StepIncrement); n > 0 && n <= 100 {
		cfg.StepIncrement = n
	}

	cfg.OracleTimeout = envDuration(envOracleTimeout, cfg.OracleTimeout)
	cfg.OracleBaseURL = os.Getenv(envOracleBaseURL)
	cfg.OracleAPIKey = os.Getenv(envOracleAPIKey)
	if v := os.Getenv(envOracleModel); v != "" {
		cfg.OracleModel = v
	}

	cfg.TelemetryInterval = envDuration(envTelemetryInterval, cfg.TelemetryInterval)
	cfg.ExcludePlatforms = splitList(os.Getenv(envExcludePlatforms))

	return cfg
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogWriter returns stdout, or stdout teed to a rotating log file when
// LogFile is set. The returned closer releases the file.
func (c Config) LogWriter(stdout io.Writer) (io.Writer, io.Closer) {
	if c.LogFile == "" {
		return stdout, nopCloser{}
	}
	file := &lumberjack.Logger{
		Filename:   c.LogFile,
		MaxSize:    c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAge:     c.LogMaxAgeDays,
	}
	return io.MultiWriter(stdout, file), file
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
