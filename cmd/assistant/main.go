// Command assistant runs the local-first assistant platform's HTTP API:
// the sync/stream chat surface, deep-job submission, workspace/skills
// inspection, and digest-state reporting (spec.md §6).
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/localmind/assistant/internal/api"
	"github.com/localmind/assistant/internal/config"
	"github.com/localmind/assistant/internal/contextbuilder"
	"github.com/localmind/assistant/internal/database"
	"github.com/localmind/assistant/internal/digest"
	"github.com/localmind/assistant/internal/memory"
	"github.com/localmind/assistant/internal/orchestrator"
	"github.com/localmind/assistant/internal/pipeline"
	"github.com/localmind/assistant/internal/pipeline/llmclient"
	"github.com/localmind/assistant/internal/skillauthority"
	"github.com/localmind/assistant/internal/telemetry"
	"github.com/localmind/assistant/internal/toolhub"
	"github.com/localmind/assistant/pkg/slack"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseEndpoints parses "server1=http://host1,server2=http://host2" into a
// map, the wire shape TOOLHUB_SERVER_ENDPOINTS carries since internal/config
// has no MCP-server-registry type of its own (out of scope: spec.md §1
// names no config-schema surface beyond §6).
func parseEndpoints(raw string) map[string]string {
	endpoints := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		endpoints[parts[0]] = parts[1]
	}
	return endpoints
}

func serverIDs(endpoints map[string]string) []string {
	ids := make([]string, 0, len(endpoints))
	for id := range endpoints {
		ids = append(ids, id)
	}
	return ids
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
		log.Printf("continuing with existing environment variables")
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	httpAddr := getEnv("HTTP_ADDR", ":8080")

	slog.Info("starting assistant", "config_dir", *configDir, "http_addr", httpAddr)

	ctx := context.Background()

	cfg, err := config.Initialize(*configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
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
	slog.Info("connected to postgres, schema migrated")

	store := memory.NewEntStore(dbClient.Client)
	publisher := telemetry.NewPublisher(dbClient.Client, dbClient)

	builder := contextbuilder.New(store, cfg.ContextBuilder)

	llmClient := llmclient.New(llmclient.Config{
		BaseURL:   getEnv("LLM_BASE_URL", "http://localhost:11434/v1"),
		Model:     getEnv("LLM_MODEL", "default"),
		CodeModel: getEnv("LLM_CODE_MODEL", getEnv("LLM_MODEL", "default")),
		APIKeyEnv: "LLM_API_KEY",
		Timeout:   cfg.Pipeline.LLMStageTimeout,
	})
	toolModel := llmclient.NewToolModel(llmClient)

	endpoints := parseEndpoints(os.Getenv("TOOLHUB_SERVER_ENDPOINTS"))
	toolServerClient := toolhub.NewHTTPServerClient(toolhub.HTTPServerClientConfig{
		Endpoints:   endpoints,
		BearerToken: os.Getenv("TOOLHUB_BEARER_TOKEN"),
	})
	toolRegistry := toolhub.NewRegistry(toolServerClient, serverIDs(endpoints))

	var slackClient *slack.Client
	if cfg.Slack.Enabled {
		slackClient = slack.NewClient(os.Getenv(cfg.Slack.TokenEnv), cfg.Slack.Channel)
	}

	skillRegistry := skillauthority.NewRegistry(cfg.SkillAuthority.InstalledRegistryPath)
	var allowlistSource skillauthority.AllowlistSource
	if cfg.SkillAuthority.AllowlistURL != "" {
		allowlistSource = skillauthority.NewHTTPAllowlistSource(cfg.SkillAuthority.AllowlistURL, 10*time.Second)
	}
	authority := skillauthority.NewAuthority(
		cfg.SkillAuthority,
		allowlistSource,
		skillauthority.NewUnavailableExecutor(),
		skillRegistry,
		skillauthority.NewLogGraphIndexEnqueuer(),
		skillauthority.NewSlackApprovalSink(slackClient, 5*time.Second),
	)

	pipe := pipeline.New(cfg.Pipeline, llmClient, authority, toolModel, toolRegistry, nil)

	orch := orchestrator.New(builder, pipe, store, toolRegistry, publisher)
	jobs := orchestrator.NewJobManager(orch)

	digestStore := digest.NewStore(filepath.Join(cfg.Digest.StateDir, "digest_state.json"))
	digestLock := digest.NewLock(filepath.Join(cfg.Digest.StateDir, "digest.lock"), cfg.Digest.LockTimeout)

	if cfg.Digest.Enable && cfg.Digest.RunMode == config.DigestRunInline {
		eventSource := digest.NewSQLEventSource(dbClient.DB())
		digestWriter, err := digest.NewFileDigestWriter(filepath.Join(cfg.Digest.StateDir, "digests"))
		if err != nil {
			log.Fatalf("failed to set up digest writer: %v", err)
		}
		runner := digest.NewRunner(cfg.Digest, eventSource, digestWriter, digestStore, nil)
		notifier := digest.NewSlackNotifier(slackClient, 5*time.Second)
		worker := digest.NewWorker(runner, digestLock, cfg.Digest, notifier, "assistant-inline")
		worker.Start(ctx)
		defer worker.Stop()
		slog.Info("digest pipeline running inline")
	}

	server := api.NewServer(orch, jobs, store, authority, skillRegistry, digestStore, digestLock, cfg, "0.1.0")

	slog.Info("http server listening", "addr", httpAddr)
	if err := server.Start(httpAddr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
