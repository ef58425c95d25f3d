package main

import (
	"context"
	"net/http"
	"os"

	"github.com/manuelagm/portfolio-assistant/internal/assistant"
	"github.com/manuelagm/portfolio-assistant/internal/config"
	"github.com/manuelagm/portfolio-assistant/internal/db"
	apphttp "github.com/manuelagm/portfolio-assistant/internal/http"
	"github.com/manuelagm/portfolio-assistant/internal/llm"
	applog "github.com/manuelagm/portfolio-assistant/internal/log"
)

func main() {
	ctx := context.Background()

	cfg := config.Load()
	logger := applog.New(applog.Config{JSON: cfg.LogJSON})

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	retriever := assistant.NewPgRetriever(pool, cfg.EmbeddingDim)

	gemini, err := llm.NewGeminiClient(ctx, llm.Config{
		APIKey:         cfg.GeminiAPIKey,
		EmbeddingModel: cfg.EmbeddingModel,
		ChatModel:      cfg.ChatModel,
		EmbeddingDim:   cfg.EmbeddingDim,
	})
	if err != nil {
		logger.Error("failed to init Gemini client", "error", err)
		os.Exit(1)
	}

	service := assistant.NewService(retriever, gemini, gemini,
		logger.With("component", "assistant"),
		assistant.Options{
			SimilarityThreshold: &cfg.SimilarityThreshold,
			MatchLimit:          cfg.MatchLimit,
		})

	h := apphttp.NewHandler(service, logger.With("component", "http"), cfg.RequestTimeout, cfg.Validate)
	handler := apphttp.CORS(apphttp.NewRouter(h))

	addr := ":" + cfg.Port
	logger.Info("API listening", "addr", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
