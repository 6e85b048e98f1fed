// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/agent"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/agent/tools"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/config"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/dispatcher"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/ports/adapter"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/ports/repository"
	aiAdapters "github.com/Mamik153/AI-Research-Assistant-Backend/internal/infra/adapters/ai"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/infra/adapters/notify"
	pg "github.com/Mamik153/AI-Research-Assistant-Backend/internal/infra/db/postgres"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/infra/logging"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/infra/metrics"
	red "github.com/Mamik153/AI-Research-Assistant-Backend/internal/infra/redis"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/infra/store"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/infra/web"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/infra/worker"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/pipeline"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (canned AI responses)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Job store (Postgres -> Redis -> memory) ----
	var jobs repository.JobRepository
	switch {
	case cfg.Database.URL != "":
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		repo := pg.NewJobRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("postgres schema: %v", err)
		}
		jobs = repo
		logger.Info().Msg("job store: postgres")
	case cfg.Redis.URL != "":
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
		jobs = red.NewJobStore(redisClient, cfg.Redis.TTL)
		logger.Info().Msg("job store: redis")
	default:
		jobs = store.NewMemoryJobStore()
		logger.Warn().Msg("job store: in-memory (records are lost on restart)")
	}

	// ---- AI adapter (OpenAI -> Gemini -> dev noop) ----
	var ai adapter.AIServiceAdapter
	var provider string
	switch {
	case cfg.AI.OpenAIKey != "":
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel)
		if err != nil {
			log.Fatalf("openai adapter: %v", err)
		}
		provider = "openai"
	case cfg.AI.GeminiKey != "":
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, 0)
		if err != nil {
			log.Fatalf("gemini adapter: %v", err)
		}
		provider = "gemini"
	case cfg.Runtime.Dev:
		ai = aiAdapters.NewNoopAIAdapter()
		provider = "noop"
	default:
		log.Fatalf("no AI provider configured: set ai.openai_key or ai.gemini_key in %s", *cfgPath)
	}
	ai = aiAdapters.NewLimitedAI(ai, cfg.AI.ConcurrentLimit)
	logger.Info().Str("provider", provider).Str("model", cfg.AI.DefaultModel).Msg("AI adapter ready")

	// ---- Pipeline ----
	var graph *pipeline.Graph
	if cfg.Pipeline.Path != "" {
		graph, err = pipeline.LoadGraph(cfg.Pipeline.Path)
		if err != nil {
			log.Fatalf("pipeline descriptor: %v", err)
		}
	} else {
		graph, err = pipeline.NewGraph(pipeline.DefaultSpecs())
		if err != nil {
			log.Fatalf("default pipeline: %v", err)
		}
	}

	arxiv := tools.NewArxivSearch(cfg.Pipeline.ArxivURL, cfg.Pipeline.ArxivMaxResults)
	exec := agent.NewModelExecutor(ai, []agent.Tool{arxiv}, provider, cfg.AI.DefaultModel, cfg.AI.MaxPromptTokens, logger)
	runner := pipeline.NewRunner(jobs, exec, graph, cfg.Pipeline.StageTimeout, logger)

	// ---- Notifier ----
	var notifier adapter.Notifier = notify.NewNoopNotifier()
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != 0 {
		tn, err := notify.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, logger)
		if err != nil {
			log.Fatalf("telegram notifier: %v", err)
		}
		notifier = tn
	}

	// ---- Dispatcher + worker pool ----
	pool := worker.NewPool(cfg.Pipeline.Workers, cfg.Pipeline.QueueSize, logger)
	pool.Start(ctx)
	disp := dispatcher.New(jobs, runner, pool, notifier, cfg.Pipeline.JobTimeout, logger)

	// ---- HTTP server ----
	var auth *web.AuthManager
	if cfg.Admin.APIKey != "" && cfg.Admin.JWTSecret != "" {
		auth = web.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.APIKey, !cfg.Runtime.Dev, cfg.Admin.SessionTTL)
	}
	srv := web.NewServer(disp, auth, cfg.Server.Port, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
	pool.Stop()
}
