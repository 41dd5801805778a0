// Command server runs the kidscanvas core: the turn-processing background
// worker plus the minimal HTTP surface (internal event relay, room WebSocket
// fan-out) that lets a realtime gateway sit in front of it.
package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"kidscanvas/internal/access"
	"kidscanvas/internal/aiagent"
	"kidscanvas/internal/config"
	"kidscanvas/internal/eventstore"
	"kidscanvas/internal/httpapi"
	"kidscanvas/internal/moderation"
	"kidscanvas/internal/store"
	"kidscanvas/internal/turnprocessor"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}

	logOutput := io.Writer(os.Stdout)
	logFile, err := config.SetupLogFile(cfg.LogDir, cfg.MaxLogFiles)
	if err != nil {
		log.Printf("warning: log file setup failed, logging to stdout only: %v", err)
	} else {
		defer logFile.Close()
		logOutput = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOutput, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("server starting", "environment", cfg.Environment, "port", cfg.Port)

	if cfg.AuthSecretKey == "" {
		log.Fatal("AUTH_SECRET_KEY must be set")
	}

	st := openStore(cfg, logger)

	events, closeEvents := openEventStore(cfg, logger)
	defer closeEvents()

	mod := moderation.NewDefaultEngine(splitKeywords(cfg.BannedKeywords))
	agentClient := aiagent.NewClient(cfg.AgentURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	processor := turnprocessor.New(st, events, agentClient, mod, turnprocessor.Config{
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	}, agentClient.Close)
	processor.Start(ctx)

	signer := access.NewSigner(cfg.AuthSecretKey)

	app := fiber.New(fiber.Config{
		ErrorHandler: httpapi.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     strings.Join([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}, ","),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Service-Key",
		AllowCredentials: true,
	}))

	httpapi.Mount(app, httpapi.Deps{
		Store:      st,
		Events:     events,
		Signer:     signer,
		ServiceKey: cfg.ServiceKey,
		Logger:     logger,
	})

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		processor.Stop()
		if cfg.SnapshotPath != "" {
			if err := st.SaveSnapshot(cfg.SnapshotPath); err != nil {
				logger.Error("final snapshot write failed", "error", err)
			}
		}
		if err := app.Shutdown(); err != nil {
			logger.Error("fiber shutdown failed", "error", err)
		}
	}()

	logger.Info("server listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// openStore loads a store from an existing snapshot file, or starts empty
// when none is configured or none exists yet.
func openStore(cfg *config.Config, logger *slog.Logger) *store.Store {
	if cfg.SnapshotPath == "" {
		return store.New("")
	}
	if _, err := os.Stat(cfg.SnapshotPath); err == nil {
		st, err := store.LoadSnapshot(cfg.SnapshotPath, cfg.SnapshotPath)
		if err != nil {
			log.Fatalf("load snapshot: %v", err)
		}
		logger.Info("store restored from snapshot", "path", cfg.SnapshotPath)
		return st
	}
	return store.New(cfg.SnapshotPath)
}

// openEventStore wires the in-memory backend by default, or Redis Streams
// when REDIS_URL is set. The returned closer releases the Redis client (a
// no-op for the in-memory backend).
func openEventStore(cfg *config.Config, logger *slog.Logger) (eventstore.Store, func()) {
	if !cfg.UseRedis {
		logger.Info("event store backend", "backend", "memory")
		return eventstore.NewMemStore(), func() {}
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	logger.Info("event store backend", "backend", "redis")
	return eventstore.NewRedisStore(client, 5000, 10000), func() { client.Close() }
}

func splitKeywords(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
