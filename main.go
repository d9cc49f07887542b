package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"yt-elt/domain/model"
	"yt-elt/domain/repository"
	"yt-elt/infrastructure/cache"
	youtubeclient "yt-elt/infrastructure/clients/youtube"
	"yt-elt/infrastructure/configuration"
	"yt-elt/infrastructure/logger"
	"yt-elt/infrastructure/persistence"
	"yt-elt/usecase"
)

// previewCount is how many records are echoed to stdout after a run.
const previewCount = 5

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	// Load env from files (non-destructive; OS env still has precedence)
	for _, f := range configuration.LoadEnvFromFile("config.env", ".env") {
		logger.GetLogger().WithField("file", f).Info("Loaded environment file")
	}

	if err := run(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Extraction failed")
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)
	go func() {
		select {
		case <-interrupt:
			logger.GetLogger().Info("Application shutdown requested")
			cancel()
		case <-ctx.Done():
		}
	}()

	cfg, err := configuration.Load()
	if err != nil {
		return err
	}
	logger.Configure(cfg.Logger.Format, cfg.Logger.Level)

	youtubeClient, err := youtubeclient.NewYouTubeClient(ctx, cfg.YouTubeClientConfig())
	if err != nil {
		return err
	}

	extractUC := usecase.NewExtractUseCase(youtubeClient, usecase.ExtractOptions{
		PageSize:           cfg.Extract.PageSize,
		BatchSize:          cfg.Extract.BatchSize,
		MaxPages:           cfg.Extract.MaxPages,
		Concurrency:        cfg.Extract.Concurrency,
		OutputPathTemplate: cfg.Output.PathTemplate,
		PlaylistCacheTTL:   cfg.RedisClient.TTL,
	})

	if cfg.RedisClient.Enabled() {
		redisClient, err := cache.NewCache(ctx, cfg.RedisClient.Addr(), cfg.RedisClient.Username, cfg.RedisClient.Password)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Redis not available - continuing without playlist cache")
		} else {
			playlistCache := cache.NewPlaylistCache(redisClient)
			defer playlistCache.Close()
			extractUC.WithCache(playlistCache)
		}
	}

	store, db, err := InitiateStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		extractUC.WithStore(store)
	} else {
		logger.GetLogger().Info("No database configured - skipping load and quality steps")
	}

	result, err := extractUC.Run(ctx, cfg.Extract.ChannelHandle)
	if err != nil {
		return err
	}
	return printPreview(os.Stdout, result.Records, previewCount)
}

// InitiateStore opens the configured database and returns its video store.
// Both returns are nil when the selected vendor has no host configured.
func InitiateStore(ctx context.Context, cfg configuration.Database) (repository.IVideoStore, *sql.DB, error) {
	switch cfg.Vendor {
	case "mssql":
		if !cfg.Mssql.Enabled() {
			return nil, nil, nil
		}
		db, err := persistence.NewMSSQLDB(ctx, cfg.Mssql)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mssql: %w", err)
		}
		return persistence.NewVideoRepositoryMSSQL(db), db, nil
	default:
		if !cfg.Psql.Enabled() {
			return nil, nil, nil
		}
		db, err := persistence.NewPostgreSQLDB(ctx, cfg.Psql)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return persistence.NewVideoRepository(db), db, nil
	}
}

// printPreview writes the first n records as indented JSON.
func printPreview(w io.Writer, records []model.VideoRecord, n int) error {
	if len(records) > n {
		records = records[:n]
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(records)
}
