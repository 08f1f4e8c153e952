package cli

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"trivia-bot-service/internal/app"
	"trivia-bot-service/internal/config"
	"trivia-bot-service/internal/generator"
	"trivia-bot-service/internal/infra/memory"
	pgstore "trivia-bot-service/internal/infra/postgres"
	redisindex "trivia-bot-service/internal/infra/redis"
	"trivia-bot-service/internal/scheduler"
	transport "trivia-bot-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	award := config.IntOr(cfg.Quiz.Award, 10)
	freshness := config.Duration(cfg.Quiz.Freshness, 24*time.Hour)
	cooldown := config.Duration(cfg.Quiz.Cooldown, 7*time.Second)

	var store app.Store = memory.NewStore(award)
	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()
		store = pgstore.NewStore(db, award)
	}

	var active app.ActiveIndex = memory.NewActiveIndex()
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		active = redisindex.NewActiveIndex(redisClient, freshness)
	}

	questions := memory.NewQuestionCache(store, 10*time.Minute)
	source := generator.FromConfig(cfg, logger)

	service := app.NewQuizService(store, active, questions, source, app.Options{
		Freshness:       freshness,
		Cooldown:        cooldown,
		LeaderboardSize: config.IntOr(cfg.Quiz.LeaderboardSize, 10),
		Logger:          logger,
	})

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		service.SetHistoryProvider(pgstore.NewHistoryLoader(pool))
	}

	if err := service.Hydrate(ctx); err != nil {
		logger.Warn("hydration failed, starting with empty active index", zap.Error(err))
	}

	dispatcher, err := scheduler.New(service, nil, nil, cfg.Schedule.Cron, cfg.Schedule.Timezone, logger)
	if err != nil {
		return err
	}
	dispatcher.Start()
	defer dispatcher.Stop()

	handler := transport.NewHandler(service, logger)
	handler.SetDailyTrigger(dispatcher.DispatchDaily)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting trivia service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
