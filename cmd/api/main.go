package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"liberator/internal/archivestore"
	"liberator/internal/config"
	"liberator/internal/ledger"
	"liberator/internal/llmclient"
	"liberator/internal/pipeline"
	"liberator/internal/retriever"
	"liberator/internal/server"
	"liberator/internal/signature"
)

func main() {
	port := flag.String("port", "", "server port (overrides PORT)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Port = *port
	}

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	catalog := signature.Default()
	if cfg.CatalogPath != "" {
		catalog, err = signature.Load(cfg.CatalogPath)
		if err != nil {
			logger.Error("signature catalog load failed", "path", cfg.CatalogPath, "error", err)
			os.Exit(1)
		}
	}

	var records ledger.Store
	if cfg.DatabaseURL != "" {
		pg, err := ledger.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			logger.Error("ledger store init failed", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		records = pg
		logger.Info("run ledger backed by postgres")
	} else {
		records = ledger.NewMemoryStore()
		logger.Info("run ledger kept in memory")
	}

	var archives archivestore.Store
	if cfg.Archive.CanUseS3() {
		s3, err := archivestore.NewS3Store(archivestore.S3Config{
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			UseSSL:    cfg.Archive.UseSSL,
		})
		if err != nil {
			logger.Error("archive store init failed", "error", err)
			os.Exit(1)
		}
		archives = s3
		logger.Info("archives backed by s3", "endpoint", cfg.Archive.Endpoint, "bucket", cfg.Archive.Bucket)
	} else {
		archives = archivestore.NewMemoryStore()
		logger.Info("archives kept in memory")
	}

	var llm llmclient.Client
	if cfg.Gemini.APIKey != "" {
		gemini, err := llmclient.NewGeminiClient(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			logger.Error("gemini client init failed", "error", err)
			os.Exit(1)
		}
		llm = llmclient.Chain(gemini,
			llmclient.Retry(3, 2*time.Second),
			llmclient.Pace(cfg.AIDelay),
		)
		logger.Info("ai tier enabled", "model", cfg.Gemini.Model)
	} else {
		logger.Info("ai tier disabled, deterministic rewrites only")
	}

	github := retriever.New(retriever.Config{
		Token:   cfg.GitHub.Token,
		BaseURL: cfg.GitHub.BaseURL,
		Logger:  logger,
	})

	svc := pipeline.NewService(pipeline.ServiceConfig{
		GitHub:   github,
		Catalog:  catalog,
		LLM:      llm,
		Archives: archives,
		Records:  records,
		AIDelay:  cfg.AIDelay,
		Logger:   logger,
	})

	handler := server.NewHandler(svc, archives, records, logger)
	srv := server.New(cfg.Port, server.NewMux(handler), logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
		if llm != nil {
			_ = llm.Close()
		}
	}
}
