package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"yunmun/api/internal/app"
	"yunmun/api/internal/archive"
	"yunmun/api/internal/config"
	"yunmun/api/internal/email"
	"yunmun/api/internal/export"
	"yunmun/api/internal/glossary"
	"yunmun/api/internal/logging"
	"yunmun/api/internal/search"
	"yunmun/api/internal/store"
	"yunmun/api/internal/trackchanges"
	"yunmun/api/internal/translator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	ctx := context.Background()

	dialect, err := store.ParseDialect(cfg.DatabaseDriver)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	db, err := store.Open(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, dialect); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}
	dataStore := store.New(db, dialect)

	var glossaryCache glossary.Cache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisCache, err := glossary.NewRedisCache(cfg.RedisURL, cfg.GlossaryCacheTTL())
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisCache.Close()
		glossaryCache = redisCache
		logger.Info("glossary cache enabled", "backend", "redis")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
	}

	var exportOpts []export.Option
	if cfg.MinioConfigured() {
		artifacts, err := export.NewMinioArtifacts(ctx, export.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			LinkTTL:   24 * time.Hour,
		})
		if err != nil {
			log.Fatalf("object storage: %v", err)
		}
		exportOpts = append(exportOpts, export.WithArtifacts(artifacts))
	}

	if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
		log.Fatalf("failed to create archive dir: %v", err)
	}

	service := app.New(dataStore,
		app.WithLogger(logger),
		app.WithGlossary(glossary.NewService(dataStore, glossaryCache, logger)),
		app.WithSearch(search.NewService(meiliClient, dataStore, logger)),
		app.WithArchive(archive.New(cfg.ArchiveDir)),
		app.WithExporter(export.NewService(exportOpts...)),
		app.WithMailer(email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})),
		app.WithTranslator(translator.NewClient(translator.Config{
			APIKey:         cfg.TranslatorAPIKey,
			BaseURL:        cfg.TranslatorURL,
			Model:          cfg.TranslatorModel,
			TimeoutSeconds: cfg.TranslatorTimeoutSeconds,
		})),
		app.WithUndecidedPolicy(trackchanges.Policy(cfg.UndecidedPolicy)),
	)

	httpServer := app.NewHTTPServer(service, []byte(cfg.TokenSecret), cfg.CORSOrigin, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("yunmun api listening", "addr", cfg.Addr, "database", dialect)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	service.Wait()
	logger.Info("yunmun api stopped")
}
