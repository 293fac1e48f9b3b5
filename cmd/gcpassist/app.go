package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/voicekit/gcpassist/config"
	"github.com/voicekit/gcpassist/convlog"
	"github.com/voicekit/gcpassist/embedding"
	"github.com/voicekit/gcpassist/internal/metrics"
	"github.com/voicekit/gcpassist/internal/server"
	"github.com/voicekit/gcpassist/llm"
	"github.com/voicekit/gcpassist/pipeline"
	"github.com/voicekit/gcpassist/rag"
	"github.com/voicekit/gcpassist/reward"
	"github.com/voicekit/gcpassist/speech"
	"github.com/voicekit/gcpassist/transport"
)

// app holds the assembled components for the serve command.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	redis     *redis.Client
	collector *metrics.Collector
	contexts  *rag.ContextStore
	retriever *rag.Retriever
	rewards   *reward.Aggregator
	wsServer  *transport.Server
	control   *server.Server
}

// newApp constructs every component from config. Redis being unreachable is
// not fatal: rewards degrade to the in-memory store and retrieval failures
// keep the current context.
func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis not reachable, rewards will be held in memory", zap.Error(err))
	}

	collector := metrics.NewCollector("gcpassist", logger)
	contexts := rag.NewContextStore(logger)

	redisStore := reward.NewRedisStore(redisClient, reward.DefaultKeyPrefix, logger)
	rewards := reward.NewAggregator(redisStore, logger,
		reward.WithStoreTimeout(cfg.Redis.OpTimeout),
		reward.WithRecordHook(collector.RecordReward),
	)

	var retriever *rag.Retriever
	if cfg.Embedding.APIKey != "" {
		embedder := embedding.NewGeminiProvider(embedding.GeminiConfig{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    cfg.Embedding.Timeout,
		})
		retriever = rag.NewRetriever(redisClient, embedder, rag.RetrieverConfig{
			IndexName: cfg.Agent.KnowledgeIndex,
			TopK:      cfg.Agent.RetrievalTopK,
		}, logger)

		idxCtx, cancelIdx := context.WithTimeout(context.Background(), 5*time.Second)
		if err := retriever.EnsureIndex(idxCtx); err != nil {
			logger.Warn("knowledge index not available, retrieval disabled until it is", zap.Error(err))
		}
		cancelIdx()
	} else {
		logger.Info("no embedding API key configured, query-time retrieval disabled")
	}

	llmSvc := llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	transcriber := speech.NewDeepgram(speech.DeepgramConfig{
		APIKey:  cfg.STT.APIKey,
		BaseURL: cfg.STT.BaseURL,
		Model:   cfg.STT.Model,
		Timeout: cfg.STT.Timeout,
	})

	var synthesizer speech.Synthesizer
	if cfg.TTS.APIKey != "" {
		synthesizer = speech.NewCartesia(speech.CartesiaConfig{
			APIKey:     cfg.TTS.APIKey,
			BaseURL:    cfg.TTS.BaseURL,
			Model:      cfg.TTS.Model,
			Voice:      cfg.TTS.Voice,
			SampleRate: cfg.TTS.SampleRate,
			Timeout:    cfg.TTS.Timeout,
		})
	} else {
		logger.Info("no TTS API key configured, replies are text-only")
	}

	conv, err := convlog.New(cfg.Agent.LogsDir, logger)
	if err != nil {
		return nil, fmt.Errorf("conversation logger: %w", err)
	}

	handlersCfg := pipeline.DefaultHandlersConfig()
	handlersCfg.PromptTemplate = cfg.Agent.PromptTemplate
	handlersCfg.RetrievalTopK = cfg.Agent.RetrievalTopK

	var pipelineRetriever pipeline.Retriever
	if retriever != nil {
		pipelineRetriever = retriever
	}
	handlers := pipeline.NewHandlers(handlersCfg, contexts, pipelineRetriever, rewards, llmSvc, conv, collector, logger)
	pipe := pipeline.New(handlers, llmSvc, transcriber, synthesizer, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		redis:     redisClient,
		collector: collector,
		contexts:  contexts,
		retriever: retriever,
		rewards:   rewards,
		wsServer:  transport.NewServer(pipe, logger),
		control:   server.New(contexts, rewards, collector, logger),
	}, nil
}

// Run serves the WebSocket endpoint and the control API until SIGINT or
// SIGTERM, then shuts both down gracefully.
func (a *app) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wsAddr := fmt.Sprintf("%s:%d", a.cfg.Server.WSHost, a.cfg.Server.WSPort)
	controlAddr := fmt.Sprintf("%s:%d", a.cfg.Server.WSHost, a.cfg.Server.ControlPort)

	mux := http.NewServeMux()
	mux.Handle("/ws", a.wsServer)
	wsSrv := &http.Server{
		Addr:         wsAddr,
		Handler:      mux,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("WebSocket endpoint listening", zap.String("addr", wsAddr), zap.String("path", "/ws"))
		if err := wsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("websocket server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := a.control.Run(gctx, controlAddr, server.Options{
			RateLimitRPS:   float64(a.cfg.Server.RateLimitRPS),
			RateLimitBurst: a.cfg.Server.RateLimitBurst,
			Done:           gctx.Done(),
		})
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("control API: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := wsSrv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("websocket server shutdown", zap.Error(err))
		}
		return a.redis.Close()
	})

	return g.Wait()
}
