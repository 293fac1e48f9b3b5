package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/voicekit/gcpassist/embedding"
	"github.com/voicekit/gcpassist/rag"
)

// runIngest loads knowledge chunks from a JSON file into the Redis index.
// The file holds an array of {"chunk_id": "...", "text": "..."} objects.
func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	filePath := fs.String("file", "", "JSON file of knowledge chunks")
	fs.Parse(args)

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "ingest requires --file")
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	if cfg.Embedding.APIKey == "" {
		fmt.Fprintln(os.Stderr, "ingest requires an embedding API key")
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	data, err := os.ReadFile(*filePath)
	if err != nil {
		logger.Fatal("Failed to read chunks file", zap.Error(err))
	}
	var chunks []rag.KnowledgeChunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		logger.Fatal("Failed to parse chunks file", zap.Error(err))
	}
	if len(chunks) == 0 {
		logger.Fatal("Chunks file is empty")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	embedder := embedding.NewGeminiProvider(embedding.GeminiConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout,
	})
	retriever := rag.NewRetriever(redisClient, embedder, rag.RetrieverConfig{
		IndexName: cfg.Agent.KnowledgeIndex,
		TopK:      cfg.Agent.RetrievalTopK,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := retriever.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to create knowledge index", zap.Error(err))
	}
	if err := retriever.Ingest(ctx, chunks); err != nil {
		logger.Fatal("Failed to ingest chunks", zap.Error(err))
	}

	logger.Info("Ingest complete",
		zap.Int("chunks", len(chunks)),
		zap.String("index", cfg.Agent.KnowledgeIndex))
}
