package config

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/points/pkg/points"
)

func TestValidateFillsDefaults(test *testing.T) {
	test.Parallel()
	cfg := Config{}
	if err := cfg.Validate(); err != nil {
		test.Fatalf("validate: %v", err)
	}
	if cfg.StoreKind != StoreGorm {
		test.Fatalf("unexpected store kind %q", cfg.StoreKind)
	}
	if cfg.DatabaseURL != defaultDatabaseURL || cfg.HTTPListenAddr != defaultHTTPListenAddr || cfg.GRPCListenAddr != defaultGRPCListenAddr {
		test.Fatalf("unexpected addresses: %+v", cfg)
	}
	if cfg.RequestTimeout != 3*time.Second {
		test.Fatalf("unexpected timeout %s", cfg.RequestTimeout)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{defaultAllowedOrigin}) {
		test.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.Limits != points.DefaultLimits() {
		test.Fatalf("unexpected limits %+v", cfg.Limits)
	}
	if cfg.LogMode != LogModeProduction {
		test.Fatalf("unexpected log mode %q", cfg.LogMode)
	}
}

func TestValidateRejectsBadValues(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name      string
		configure func(*Config)
	}{
		{
			name:      "unknown store",
			configure: func(cfg *Config) { cfg.StoreKind = "redis" },
		},
		{
			name: "pgx with sqlite url",
			configure: func(cfg *Config) {
				cfg.StoreKind = StorePgx
				cfg.DatabaseURL = "sqlite:///tmp/points.db"
			},
		},
		{
			name:      "unknown log mode",
			configure: func(cfg *Config) { cfg.LogMode = "verbose" },
		},
		{
			name:      "min above max",
			configure: func(cfg *Config) { cfg.Limits = points.Limits{MaxAmount: 1_000, MinAmount: 2_000} },
		},
		{
			name:      "ceiling beyond exact integers",
			configure: func(cfg *Config) { cfg.Limits.MaxTotalPoints = math.MaxInt64 },
		},
		{
			name:      "negative unit",
			configure: func(cfg *Config) { cfg.Limits.AmountUnit = -1 },
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			cfg := Config{}
			testCase.configure(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				test.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidateAcceptsPgxWithPostgresURL(test *testing.T) {
	test.Parallel()
	cfg := Config{StoreKind: "PGX", DatabaseURL: "postgres://points@localhost:5432/points"}
	if err := cfg.Validate(); err != nil {
		test.Fatalf("validate: %v", err)
	}
	if cfg.StoreKind != StorePgx {
		test.Fatalf("expected normalized store kind, got %q", cfg.StoreKind)
	}
}

func TestValidateKeepsPartialLimits(test *testing.T) {
	test.Parallel()
	cfg := Config{Limits: points.Limits{MaxTotalPoints: 2_000_000}}
	if err := cfg.Validate(); err != nil {
		test.Fatalf("validate: %v", err)
	}
	if cfg.Limits.MaxTotalPoints != 2_000_000 || cfg.Limits.MaxAmount != points.DefaultLimits().MaxAmount {
		test.Fatalf("unexpected limits %+v", cfg.Limits)
	}
}

func TestParseAllowedOrigins(test *testing.T) {
	test.Parallel()
	origins := ParseAllowedOrigins(" http://a.test , ,http://b.test")
	if !reflect.DeepEqual(origins, []string{"http://a.test", "http://b.test"}) {
		test.Fatalf("unexpected origins %v", origins)
	}
	if len(ParseAllowedOrigins("  ")) != 0 {
		test.Fatalf("expected no origins")
	}
}
