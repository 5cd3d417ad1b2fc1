package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/points/pkg/points"
)

const (
	StoreMemory = "memory"
	StoreGorm   = "gorm"
	StorePgx    = "pgx"

	LogModeProduction  = "production"
	LogModeDevelopment = "development"

	defaultStoreKind      = StoreGorm
	defaultDatabaseURL    = "sqlite:///tmp/points.db"
	defaultHTTPListenAddr = ":8080"
	defaultGRPCListenAddr = ":7000"
	defaultAllowedOrigin  = "http://localhost:8000"
	defaultRequestTimeout = 3 * time.Second
	defaultLogMode        = LogModeProduction
)

var ErrInvalidConfig = errors.New("invalid config")

// Config aggregates runtime settings for pointd.
type Config struct {
	StoreKind      string
	DatabaseURL    string
	HTTPListenAddr string
	GRPCListenAddr string
	AllowedOrigins []string
	RequestTimeout time.Duration
	LogMode        string
	Limits         points.Limits
	EvictIdleLocks bool
}

// Validate fills defaults and ensures the configuration contains sane values.
func (cfg *Config) Validate() error {
	cfg.StoreKind = strings.ToLower(defaultIfEmpty(cfg.StoreKind, defaultStoreKind))
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, defaultDatabaseURL)
	cfg.HTTPListenAddr = defaultIfEmpty(cfg.HTTPListenAddr, defaultHTTPListenAddr)
	cfg.GRPCListenAddr = defaultIfEmpty(cfg.GRPCListenAddr, defaultGRPCListenAddr)
	cfg.LogMode = strings.ToLower(defaultIfEmpty(cfg.LogMode, defaultLogMode))
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	cfg.Limits = withDefaultLimits(cfg.Limits)

	switch cfg.StoreKind {
	case StoreMemory, StoreGorm:
	case StorePgx:
		if !IsPostgresURL(cfg.DatabaseURL) {
			return fmt.Errorf("%w: store %q requires a postgres database url", ErrInvalidConfig, StorePgx)
		}
	default:
		return fmt.Errorf("%w: unsupported store %q", ErrInvalidConfig, cfg.StoreKind)
	}
	switch cfg.LogMode {
	case LogModeProduction, LogModeDevelopment:
	default:
		return fmt.Errorf("%w: unsupported log mode %q", ErrInvalidConfig, cfg.LogMode)
	}
	if err := cfg.Limits.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// IsPostgresURL reports whether dsn names a postgres server rather than a sqlite file.
func IsPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}

func withDefaultLimits(limits points.Limits) points.Limits {
	defaults := points.DefaultLimits()
	if limits.MaxAmount == 0 {
		limits.MaxAmount = defaults.MaxAmount
	}
	if limits.MinAmount == 0 {
		limits.MinAmount = defaults.MinAmount
	}
	if limits.AmountUnit == 0 {
		limits.AmountUnit = defaults.AmountUnit
	}
	if limits.MaxTotalPoints == 0 {
		limits.MaxTotalPoints = defaults.MaxTotalPoints
	}
	return limits
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
