package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/points/internal/config"
	"github.com/MarkoPoloResearchLab/points/internal/grpcserver"
	"github.com/MarkoPoloResearchLab/points/internal/httpapi"
	"github.com/MarkoPoloResearchLab/points/internal/oplog"
	"github.com/MarkoPoloResearchLab/points/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/points/internal/store/memstore"
	"github.com/MarkoPoloResearchLab/points/internal/store/pgstore"
	"github.com/MarkoPoloResearchLab/points/pkg/points"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	envPrefix = "POINTD"

	flagStore          = "store"
	flagDatabaseURL    = "database-url"
	flagHTTPListenAddr = "http-listen-addr"
	flagGRPCListenAddr = "grpc-listen-addr"
	flagAllowedOrigins = "allowed-origins"
	flagRequestTimeout = "request-timeout"
	flagLogMode        = "log-mode"
	flagMaxAmount      = "max-amount"
	flagMinAmount      = "min-amount"
	flagAmountUnit     = "amount-unit"
	flagMaxTotalPoints = "max-total-points"
	flagEvictIdleLocks = "evict-idle-locks"

	driverPostgres    = "postgres"
	driverSQLite      = "sqlite"
	sqliteScheme      = "sqlite://"
	sqliteMemory      = ":memory:"
	defaultSQLiteFile = "points.db"

	shutdownTimeout = 5 * time.Second
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pointd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &config.Config{}
	defaults := points.DefaultLimits()
	cmd := &cobra.Command{
		Use:           "pointd",
		Short:         "User point balance server (HTTP and gRPC)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, viper.New(), cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagStore, config.StoreGorm, "storage backend: memory, gorm or pgx")
	cmd.Flags().String(flagDatabaseURL, "sqlite:///tmp/points.db", "sqlite path or PostgreSQL connection string")
	cmd.Flags().String(flagHTTPListenAddr, ":8080", "HTTP listen address")
	cmd.Flags().String(flagGRPCListenAddr, ":7000", "gRPC listen address")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-separated CORS origins")
	cmd.Flags().Duration(flagRequestTimeout, 3*time.Second, "per-request timeout")
	cmd.Flags().String(flagLogMode, config.LogModeProduction, "log mode: production or development")
	cmd.Flags().Int64(flagMaxAmount, defaults.MaxAmount, "largest single charge")
	cmd.Flags().Int64(flagMinAmount, defaults.MinAmount, "smallest single charge")
	cmd.Flags().Int64(flagAmountUnit, defaults.AmountUnit, "charge granularity")
	cmd.Flags().Int64(flagMaxTotalPoints, defaults.MaxTotalPoints, "balance ceiling")
	cmd.Flags().Bool(flagEvictIdleLocks, false, "drop per-user locks once idle")

	return cmd
}

func loadConfig(cmd *cobra.Command, v *viper.Viper, cfg *config.Config) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg.StoreKind = v.GetString(flagStore)
	cfg.DatabaseURL = v.GetString(flagDatabaseURL)
	cfg.HTTPListenAddr = v.GetString(flagHTTPListenAddr)
	cfg.GRPCListenAddr = v.GetString(flagGRPCListenAddr)
	cfg.AllowedOrigins = config.ParseAllowedOrigins(v.GetString(flagAllowedOrigins))
	cfg.RequestTimeout = v.GetDuration(flagRequestTimeout)
	cfg.LogMode = v.GetString(flagLogMode)
	cfg.Limits = points.Limits{
		MaxAmount:      v.GetInt64(flagMaxAmount),
		MinAmount:      v.GetInt64(flagMinAmount),
		AmountUnit:     v.GetInt64(flagAmountUnit),
		MaxTotalPoints: v.GetInt64(flagMaxTotalPoints),
	}
	cfg.EvictIdleLocks = v.GetBool(flagEvictIdleLocks)
	return cfg.Validate()
}

func runServer(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	clock := func() int64 { return time.Now().UnixMilli() }
	options := []points.ServiceOption{
		points.WithLimits(cfg.Limits),
		points.WithOperationLogger(oplog.New(logger)),
	}
	if cfg.EvictIdleLocks {
		options = append(options, points.WithIdleLockEviction())
	}
	pointService, err := points.NewService(store, clock, options...)
	if err != nil {
		return fmt.Errorf("point service init: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr: cfg.HTTPListenAddr,
		Handler: httpapi.NewRouter(pointService, httpapi.Options{
			Logger:         logger,
			AllowedOrigins: cfg.AllowedOrigins,
			RequestTimeout: cfg.RequestTimeout,
		}),
		ReadHeaderTimeout: cfg.RequestTimeout,
	}
	grpcServer, healthServer := grpcserver.NewServer(pointService, logger)
	lis, err := net.Listen("tcp", cfg.GRPCListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("HTTP server starting", zap.String("listen_addr", cfg.HTTPListenAddr), zap.String("store", cfg.StoreKind))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		logger.Info("gRPC server starting", zap.String("listen_addr", cfg.GRPCListenAddr))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown requested")
		healthServer.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown error", zap.Error(err))
		}
		grpcServer.GracefulStop()
		return nil
	})
	return group.Wait()
}

func newLogger(mode string) (*zap.Logger, error) {
	if mode == config.LogModeDevelopment {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openStore(ctx context.Context, cfg *config.Config) (points.Store, func(), error) {
	switch cfg.StoreKind {
	case config.StoreMemory:
		return memstore.New(), func() {}, nil
	case config.StorePgx:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("database open: %w", err)
		}
		store := pgstore.New(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	default:
		gormDB, cleanup, err := openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("database open: %w", err)
		}
		store := gormstore.New(gormDB)
		if err := store.Migrate(ctx); err != nil {
			_ = cleanup()
			return nil, nil, err
		}
		return store, func() { _ = cleanup() }, nil
	}
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, err
	}

	var db *gorm.DB
	switch driver {
	case driverPostgres:
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case driverSQLite:
		db, err = gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{})
	default:
		return nil, nil, fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	if driver == driverSQLite {
		// sqlite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if config.IsPostgresURL(dsn) {
		return driverPostgres, "", nil
	}
	path := dsn
	if strings.HasPrefix(dsn, sqliteScheme) {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		// sqlite:///abs/points.db keeps the root; sqlite://data/points.db is relative.
		path = u.Host + u.Path
		if path == "" || path == "/" {
			path = defaultSQLiteFile
		}
	}
	sqlitePath, err := normalizeSQLitePath(path)
	return driverSQLite, sqlitePath, err
}

// normalizeSQLitePath cleans path and creates its parent directory.
func normalizeSQLitePath(path string) (string, error) {
	if path == sqliteMemory {
		return path, nil
	}
	cleaned := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleaned), 0o755); err != nil {
		return "", fmt.Errorf("create sqlite directory: %w", err)
	}
	return cleaned, nil
}
