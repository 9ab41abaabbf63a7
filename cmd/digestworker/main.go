// Command digestworker runs the Digest Pipeline (C8) as a standalone
// sidecar process, for deployments with DIGEST_RUN_MODE=sidecar
// (spec.md §6) — mutually exclusive with cmd/assistant's inline mode via
// the shared digest.Lock file.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/localmind/assistant/internal/config"
	"github.com/localmind/assistant/internal/database"
	"github.com/localmind/assistant/internal/digest"
	"github.com/localmind/assistant/pkg/slack"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(*configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}

	if cfg.Digest.RunMode != config.DigestRunSidecar {
		log.Fatalf("digestworker requires DIGEST_RUN_MODE=sidecar, got %q", cfg.Digest.RunMode)
	}
	if !cfg.Digest.Enable {
		log.Fatalf("digest pipeline is disabled (digest.enable=false); nothing to run")
	}

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("error closing database client", "error", err)
		}
	}()

	eventSource := digest.NewSQLEventSource(dbClient.DB())
	digestWriter, err := digest.NewFileDigestWriter(filepath.Join(cfg.Digest.StateDir, "digests"))
	if err != nil {
		log.Fatalf("failed to set up digest writer: %v", err)
	}
	digestStore := digest.NewStore(filepath.Join(cfg.Digest.StateDir, "digest_state.json"))
	digestLock := digest.NewLock(filepath.Join(cfg.Digest.StateDir, "digest.lock"), cfg.Digest.LockTimeout)

	var slackClient *slack.Client
	if cfg.Slack.Enabled {
		slackClient = slack.NewClient(os.Getenv(cfg.Slack.TokenEnv), cfg.Slack.Channel)
	}
	notifier := digest.NewSlackNotifier(slackClient, 5*time.Second)

	runner := digest.NewRunner(cfg.Digest, eventSource, digestWriter, digestStore, nil)
	owner := getEnv("DIGEST_WORKER_OWNER", "digestworker")
	worker := digest.NewWorker(runner, digestLock, cfg.Digest, notifier, owner)

	slog.Info("digest worker starting", "owner", owner, "schedule_hour", cfg.Digest.ScheduleHour)
	worker.Start(ctx)

	<-ctx.Done()
	slog.Info("shutdown signal received, stopping digest worker")
	worker.Stop()
	slog.Info("digest worker stopped")
}
