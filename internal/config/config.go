package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "QUERYCRAFT_"

// DefaultSeedSourceURL is the public Chinook SQLite script.
const DefaultSeedSourceURL = "https://raw.githubusercontent.com/lerocha/chinook-database/master/ChinookDatabase/DataSources/Chinook_Sqlite.sql"

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Store         StoreConfig
	Engine        EngineConfig
	Guard         GuardConfig
	Seed          SeedConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

type StoreConfig struct {
	Dialect         string
	DSN             string
	Schema          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	MaxRows         int
}

type EngineConfig struct {
	Enabled     bool
	BaseURL     string
	API         string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Concurrency int
	Probe       bool
}

type GuardConfig struct {
	Mode string
}

type SeedConfig struct {
	SourceURL string
	ObjectKey string
}

type ObjectStoreConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Prefix          string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup(envPrefix + "PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid %sPROFILE: %q", envPrefix, profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	l := loader{lookup: lookup}
	l.text("SERVICE_NAME", &cfg.Service.Name)

	l.text("HTTP_ADDR", &cfg.HTTP.Address)
	l.duration("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout)
	l.duration("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout)
	l.duration("HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout)
	l.list("HTTP_CORS_ORIGINS", &cfg.HTTP.CORSOrigins)

	l.text("STORE_DIALECT", &cfg.Store.Dialect)
	l.text("STORE_DSN", &cfg.Store.DSN)
	l.text("STORE_SCHEMA", &cfg.Store.Schema)
	l.integer("STORE_MAX_OPEN_CONNS", &cfg.Store.MaxOpenConns)
	l.integer("STORE_MAX_IDLE_CONNS", &cfg.Store.MaxIdleConns)
	l.duration("STORE_CONN_MAX_IDLE_TIME", &cfg.Store.ConnMaxIdleTime)
	l.duration("STORE_CONN_MAX_LIFETIME", &cfg.Store.ConnMaxLifetime)
	l.integer("STORE_MAX_ROWS", &cfg.Store.MaxRows)

	l.flag("ENGINE_ENABLED", &cfg.Engine.Enabled)
	l.text("ENGINE_BASE_URL", &cfg.Engine.BaseURL)
	l.text("ENGINE_API", &cfg.Engine.API)
	l.text("ENGINE_API_KEY", &cfg.Engine.APIKey)
	l.text("ENGINE_MODEL", &cfg.Engine.Model)
	l.number("ENGINE_TEMPERATURE", &cfg.Engine.Temperature)
	l.integer("ENGINE_MAX_TOKENS", &cfg.Engine.MaxTokens)
	l.duration("ENGINE_TIMEOUT", &cfg.Engine.Timeout)
	l.integer("ENGINE_CONCURRENCY", &cfg.Engine.Concurrency)
	l.flag("ENGINE_PROBE", &cfg.Engine.Probe)

	l.text("GUARD_MODE", &cfg.Guard.Mode)

	l.text("SEED_SOURCE_URL", &cfg.Seed.SourceURL)
	l.text("SEED_OBJECT_KEY", &cfg.Seed.ObjectKey)

	l.text("OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint)
	l.text("OBJECTSTORE_REGION", &cfg.ObjectStore.Region)
	l.text("OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket)
	l.text("OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID)
	l.text("OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
	l.flag("OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL)
	l.text("OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix)

	l.flag("LOG_JSON", &cfg.Observability.LogJSON)
	l.logLevel("LOG_LEVEL", &cfg.Observability.LogLevel)

	if l.err != nil {
		return Config{}, l.err
	}
	cfg.Store.Dialect = strings.ToLower(cfg.Store.Dialect)
	cfg.Engine.API = strings.ToLower(cfg.Engine.API)
	cfg.Guard.Mode = strings.ToLower(cfg.Guard.Mode)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}
	switch cfg.Store.Dialect {
	case "sqlite", "duckdb", "postgres", "mysql":
	default:
		return fmt.Errorf("invalid %sSTORE_DIALECT: %q", envPrefix, cfg.Store.Dialect)
	}
	if cfg.Store.Dialect != "duckdb" && cfg.Store.DSN == "" {
		return fmt.Errorf("store dsn is required")
	}
	if cfg.Store.MaxRows < 0 {
		return fmt.Errorf("invalid %sSTORE_MAX_ROWS: must not be negative", envPrefix)
	}
	switch cfg.Engine.API {
	case "completions", "chat":
	default:
		return fmt.Errorf("invalid %sENGINE_API: %q", envPrefix, cfg.Engine.API)
	}
	if cfg.Engine.Enabled && cfg.Engine.Model == "" {
		return fmt.Errorf("engine model is required")
	}
	if cfg.Engine.Concurrency <= 0 {
		return fmt.Errorf("invalid %sENGINE_CONCURRENCY: must be positive", envPrefix)
	}
	switch cfg.Guard.Mode {
	case "prefix", "strict":
	default:
		return fmt.Errorf("invalid %sGUARD_MODE: %q", envPrefix, cfg.Guard.Mode)
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "querycraft-api"},
		HTTP: HTTPConfig{
			Address:      ":8000",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  120 * time.Second,
			CORSOrigins:  []string{"*"},
		},
		Store: StoreConfig{
			Dialect:         "sqlite",
			DSN:             "database/chinook.db",
			Schema:          "public",
			MaxOpenConns:    8,
			MaxIdleConns:    8,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
			MaxRows:         0,
		},
		Engine: EngineConfig{
			Enabled:     true,
			BaseURL:     "http://localhost:8080",
			API:         "completions",
			Model:       "sqlcoder-7b.Q4_K_M.gguf",
			Temperature: 0,
			MaxTokens:   256,
			Timeout:     60 * time.Second,
			Concurrency: 2,
			Probe:       false,
		},
		Guard: GuardConfig{Mode: "prefix"},
		Seed: SeedConfig{
			SourceURL: DefaultSeedSourceURL,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:        "localhost:9000",
			Region:          "us-east-1",
			Bucket:          "querycraft",
			AccessKeyID:     "minio",
			SecretAccessKey: "miniostorage",
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18000"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.ObjectStore.UseSSL = true
		cfg.Engine.Probe = true
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

// loader applies QUERYCRAFT_* overrides and keeps the first parse error.
type loader struct {
	lookup LookupFunc
	err    error
}

func (l *loader) apply(fn func() error) {
	if l.err != nil {
		return
	}
	l.err = fn()
}

func (l *loader) text(key string, dst *string) {
	l.apply(func() error { return applyString(l.lookup, envPrefix+key, dst) })
}

func (l *loader) list(key string, dst *[]string) {
	l.apply(func() error { return applyList(l.lookup, envPrefix+key, dst) })
}

func (l *loader) integer(key string, dst *int) {
	l.apply(func() error { return applyInt(l.lookup, envPrefix+key, dst) })
}

func (l *loader) flag(key string, dst *bool) {
	l.apply(func() error { return applyBool(l.lookup, envPrefix+key, dst) })
}

func (l *loader) number(key string, dst *float64) {
	l.apply(func() error { return applyFloat(l.lookup, envPrefix+key, dst) })
}

func (l *loader) duration(key string, dst *time.Duration) {
	l.apply(func() error { return applyDuration(l.lookup, envPrefix+key, dst) })
}

func (l *loader) logLevel(key string, dst *slog.Level) {
	l.apply(func() error { return applyLogLevel(l.lookup, envPrefix+key, dst) })
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	*dst = values
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
