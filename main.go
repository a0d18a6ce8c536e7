package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"partygame/internal/api"
	"partygame/internal/logging"
	"partygame/internal/middleware"
	"partygame/internal/models"
	"partygame/internal/repository"
	"partygame/internal/service"
	"partygame/internal/storage"
	"partygame/pkg/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:          "partygame",
		Short:        "Live trivia and poll session server",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./config.yaml or ./pkg/config/config.yaml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP and WebSocket server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(configFile)
				if err != nil {
					return err
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return serve(ctx, cfg)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the PostgreSQL schema",
			RunE: func(_ *cobra.Command, _ []string) error {
				cfg, err := loadConfig(configFile)
				if err != nil {
					return err
				}
				return migrate(cfg)
			},
		},
	)
	return root
}

// loadConfig 載入應用程式配置，未指定檔案時依預設路徑搜尋
func loadConfig(file string) (*config.Config, error) {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	// 初始化持久化後端
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// 排行榜鏡像為選用，Redis 無法連線時只記錄警告
	board, closeBoard := openLeaderboard(ctx, cfg, logger)
	defer closeBoard()

	services := service.NewServices(cfg, store, board, logger)

	// 設置 Gin 路由
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(logger), middleware.RequestLogger(logger))
	api.SetupRoutes(r, services, cfg.Server)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening",
			slog.String("address", cfg.Server.Address),
			slog.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to run server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return services.Registry.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if closeErr := services.Close(shutdownCtx); err == nil {
			err = closeErr
		}
		return err
	})

	return g.Wait()
}

func migrate(cfg *config.Config) error {
	if cfg.Storage.Driver != "postgres" {
		return fmt.Errorf("migrate requires storage.driver=postgres, got %q", cfg.Storage.Driver)
	}
	db, err := storage.NewPostgresDB(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("failed to auto migrate database: %w", err)
	}
	return nil
}

func openStore(cfg *config.Config) (repository.Store, func(), error) {
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := storage.NewPostgresDB(cfg.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		// 自動遷移資料庫結構
		if err := db.AutoMigrate(models.AllModels()...); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to auto migrate database: %w", err)
		}
		return repository.NewRepositories(db), func() { db.Close() }, nil
	default:
		return repository.NewMemoryStore(), func() {}, nil
	}
}

func openLeaderboard(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.LeaderboardMirror, func()) {
	client, err := storage.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("leaderboard mirror disabled", slog.Any("error", err))
		return nil, func() {}
	}
	if client == nil {
		return nil, func() {}
	}
	return repository.NewLeaderboardCache(client, cfg.Redis.TTL), func() { client.Close() }
}
