package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fekuna/omnipos-inventory-service/config"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	invRepoPkg "github.com/fekuna/omnipos-inventory-service/internal/inventory/repository"
	"github.com/fekuna/omnipos-inventory-service/internal/lock"
	"github.com/fekuna/omnipos-inventory-service/internal/logger"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "inventory",
		Short:        "OmniPOS inventory and reservation service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the gRPC server, background jobs and the order listener",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Expire overdue reservations once and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSweep(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the inventory tables in PostgreSQL",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(cmd.Context())
			},
		},
	)
	return root
}

func loadConfig() *config.Config {
	_ = godotenv.Load() // Load .env file if it exists
	return config.LoadEnv()
}

func newLogger(cfg *config.Config) logger.ZapLogger {
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     cfg.Server.AppEnv == "dev" || cfg.Server.AppEnv == "development",
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	return logger.NewZapLogger(logConfig)
}

func postgresDSN(cfg config.PostgresConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

func connectPostgres(ctx context.Context, cfg config.PostgresConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", postgresDSN(cfg))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Second)
	return db, nil
}

// openStore returns the repository selected by INVENTORY_STORE_BACKEND and a
// func releasing whatever it holds.
func openStore(ctx context.Context, cfg *config.Config, log logger.ZapLogger) (inventory.Repository, func(), error) {
	switch cfg.Inventory.StoreBackend {
	case "", "memory":
		log.Warn("Using in-memory inventory store; state is lost on restart")
		return invRepoPkg.NewMemoryRepository(), func() {}, nil
	case "postgres":
		db, err := connectPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))
		return invRepoPkg.NewPGRepository(db), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Inventory.StoreBackend)
	}
}

func openLocker(ctx context.Context, cfg *config.Config, log logger.ZapLogger) (lock.Locker, func(), error) {
	switch cfg.Inventory.LockBackend {
	case "", "memory":
		return lock.NewKeyedMutex(), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
		locker := lock.NewRedisLocker(client, lock.RedisConfig{
			TTL:  cfg.Inventory.LockTTL,
			Wait: cfg.Inventory.LockWait,
		})
		return locker, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown lock backend %q", cfg.Inventory.LockBackend)
	}
}

func runMigrate(ctx context.Context) error {
	cfg := loadConfig()
	appLogger := newLogger(cfg)
	defer appLogger.Sync()

	db, err := connectPostgres(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if err := invRepoPkg.NewPGRepository(db).Migrate(ctx); err != nil {
		return err
	}
	appLogger.Info("Inventory schema applied", zap.String("db_name", cfg.Postgres.DBName))
	return nil
}
