package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"docqa/internal/answer"
	"docqa/internal/api"
	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/extract"
	"docqa/internal/index"
	"docqa/internal/ingest"
	"docqa/internal/openai"
	"docqa/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the docqa server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "docqa version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	splitter, err := chunker.NewRecursiveSplitter(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("building splitter: %w", err)
	}

	client := openai.New(
		cfg.OpenAI.BaseURL,
		cfg.OpenAI.APIKey,
		cfg.OpenAI.EmbedModel,
		cfg.OpenAI.ChatModel,
		time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second,
	)

	vectorStore := index.NewSQLiteVectorStore(store.DB())
	gateway := index.NewGateway(client, vectorStore, splitter, slog.Default())
	answerer := answer.New(gateway, client, cfg.Retrieval.TopK, openai.ChatOptions{
		Temperature: cfg.Answer.Temperature,
		MaxTokens:   cfg.Answer.MaxTokens,
	}, slog.Default())
	reprocessor := ingest.NewReprocessor(cfg.Storage.DocsDir, extract.NewExtractor(), gateway, slog.Default())

	// First run (or wiped data dir): index whatever is in the docs directory.
	if !gateway.HasDocuments() {
		slog.Info("vector store is empty, processing documents", "docs_dir", cfg.Storage.DocsDir)
		if res, err := reprocessor.Reprocess(ctx, true); err != nil {
			slog.Warn("initial document processing failed, starting with empty index", "error", err)
		} else {
			slog.Info("initial indexing complete", "documents", res.DocumentsProcessed, "chunks", res.ChunksIndexed)
		}
	}

	handler := api.NewHandler(api.Deps{
		Answerer:      answerer,
		Reprocessor:   reprocessor,
		Index:         gateway,
		Token:         cfg.Server.APIToken,
		APIConfigured: cfg.OpenAI.APIKey != "",
		Logger:        slog.Default(),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP server over stdio, alongside HTTP.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Answerer: answerer,
		Searcher: gateway,
		Index:    gateway,
	})
	stdioSrv := mcpserver.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		slog.Info("docqa listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
