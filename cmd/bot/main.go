package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/guildwatch/bot/internal/biz"
	bizrepo "github.com/guildwatch/bot/internal/biz/repo"
	"github.com/guildwatch/bot/internal/conf"
	"github.com/guildwatch/bot/internal/data"
	"github.com/guildwatch/bot/internal/infra/discord"
	"github.com/guildwatch/bot/internal/infra/queue"
	"github.com/guildwatch/bot/internal/service"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	repos, err := data.NewRepositories(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer repos.Close()
	logger.Info("database ready", zap.String("path", cfg.Database.Path))

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	providers := []bizrepo.IdentityProvider{
		data.NewFxProvider(cfg.Providers.FxBaseURL, nil),
		data.NewVxProvider(cfg.Providers.VxBaseURL, nil),
	}
	usecases := biz.NewUsecases(repos.Cache, repos.Audit, repos.Blocklist, providers, logger)

	q := queue.New(rdb, logger, queue.Options{
		Stages: map[string]queue.StageConfig{
			bizrepo.StageResolve: {Attempts: 3, Backoff: 2 * time.Second},
			bizrepo.StageCheck:   {Attempts: 3, Backoff: 2 * time.Second},
			bizrepo.StageAct:     {Attempts: 5, Backoff: 5 * time.Second},
		},
	})

	chat := discord.NewClient(cfg.Discord.Token, cfg.Discord.BaseURL, nil)

	pipeline := service.NewPipeline(
		q, repos.Message, repos.Guild, repos.Audit, chat,
		usecases.Resolver, usecases.Blocklist, logger,
	)

	q.Start(ctx)
	defer q.Stop()

	recovery := service.NewRecovery(repos.Message, pipeline, logger)
	if err := recovery.Start(ctx, cfg.Recovery.Schedule); err != nil {
		logger.Fatal("failed to start recovery", zap.Error(err))
	}
	defer recovery.Stop()

	logger.Info("guildwatch started", zap.String("recovery_schedule", cfg.Recovery.Schedule))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
