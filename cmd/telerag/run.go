package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/oiime/logrusbun"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/telerag/telerag/config"
	"github.com/telerag/telerag/pkg/auth"
	"github.com/telerag/telerag/pkg/bot"
	"github.com/telerag/telerag/pkg/chat"
	"github.com/telerag/telerag/pkg/ingest"
	"github.com/telerag/telerag/pkg/llms"
	"github.com/telerag/telerag/pkg/models"
	"github.com/telerag/telerag/pkg/retrieval"
	"github.com/telerag/telerag/pkg/server"
	"github.com/telerag/telerag/pkg/store/postgres"
)

const (
	ErrPostgresDSNNotSet  = "store.postgres.dsn must be set"
	ErrTelegramTokenUnset = "telegram.token must be set"
)

// run is the entrypoint for the telerag server: the Telegram poller plus
// the management HTTP API.
func run() {
	cfg := loadConfig()

	log.Infof("Starting telerag version %s", config.VersionString)

	config.SetLogLevel(cfg)
	appState := NewAppState(cfg)

	if cfg.Telegram.Token == "" {
		log.Fatal(ErrTelegramTokenUnset)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	retriever := retrieval.NewRetriever(
		appState.EmbeddingClient,
		appState.VectorIndex,
		cfg.Retrieval,
	)
	chatService := chat.NewService(appState.LLMClient, appState.SessionStore, retriever, cfg)
	telegramBot := bot.NewBot(bot.NewClient(cfg.Telegram.Token), chatService, cfg.Telegram)

	srv := server.Create(appState)
	go func() {
		log.Infof("Listening on: %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("http server stopped: %v", err)
		}
	}()

	if err := telegramBot.Run(ctx); err != nil {
		log.Errorf("bot stopped: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("error shutting down http server: %v", err)
	}
	if err := appState.SessionStore.Close(); err != nil {
		log.Errorf("error closing session store: %v", err)
	}
}

// runIngest ingests a single document, or the whole docs directory when
// filename is empty, then exits.
func runIngest(filename string) {
	cfg := loadConfig()
	config.SetLogLevel(cfg)
	appState := NewAppState(cfg)
	defer func() {
		if err := appState.SessionStore.Close(); err != nil {
			log.Errorf("error closing session store: %v", err)
		}
	}()

	ingestor := ingest.NewIngestor(
		appState.EmbeddingClient,
		appState.VectorIndex,
		cfg.Retrieval.Namespace,
		cfg.Ingest,
	)

	ctx := context.Background()
	var results []*models.IngestResult
	if filename == "" {
		var err error
		results, err = ingestor.IngestDir(ctx)
		if err != nil {
			log.Fatalf("ingestion failed: %v", err)
		}
	} else {
		result, err := ingestor.Ingest(ctx, filepath.Join(cfg.Ingest.DocsDir, filename))
		if err != nil {
			log.Fatalf("ingestion failed: %v", err)
		}
		results = append(results, result)
	}

	for _, result := range results {
		fmt.Printf(
			"%s: %d chunks, %d upserted, %d failed\n",
			result.Source,
			result.Chunks,
			result.Upserted,
			result.Failed,
		)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		log.Fatalf("Error configuring telerag: %s", err)
	}
	handleCLIOptions(cfg)
	return cfg
}

// NewAppState creates an AppState struct from the config file / ENV,
// initializes the postgres-backed stores and creates the model clients.
func NewAppState(cfg *config.Config) *models.AppState {
	ctx := context.Background()

	llmClient, err := llms.NewLLMClient(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	embedder, err := llms.NewEmbedder(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	appState := &models.AppState{
		LLMClient:       llmClient,
		EmbeddingClient: embedder,
		Config:          cfg,
	}

	initializeStores(appState)

	return appState
}

// handleCLIOptions handles CLI options that don't require the server to run
func handleCLIOptions(cfg *config.Config) {
	if showVersion {
		fmt.Println(config.VersionString)
		os.Exit(0)
	}
	if generateKey {
		fmt.Println(auth.GenerateJWT(cfg))
		os.Exit(0)
	}
	if dumpConfig {
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(string(out))
		os.Exit(0)
	}
}

// initializeStores connects to postgres and wires the session store and
// vector index into the app state.
func initializeStores(appState *models.AppState) {
	if appState.Config.Store.Postgres.DSN == "" {
		log.Fatal(ErrPostgresDSNNotSet)
	}

	db, err := postgres.NewPostgresConn(appState.Config.Store.Postgres.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if appState.Config.Log.Level == "debug" {
		pgDebugLogging(db)
	}

	if err := postgres.CreateSchema(context.Background(), appState, db); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}

	appState.SessionStore = postgres.NewSessionStore(db, appState.Config.Memory.HistoryWindow)
	appState.VectorIndex = postgres.NewVectorIndex(db)
}

func pgDebugLogging(db *bun.DB) {
	db.AddQueryHook(logrusbun.NewQueryHook(logrusbun.QueryHookOptions{
		LogSlow:         time.Second,
		Logger:          log,
		QueryLevel:      logrus.DebugLevel,
		ErrorLevel:      logrus.ErrorLevel,
		SlowLevel:       logrus.WarnLevel,
		MessageTemplate: "{{.Operation}}[{{.Duration}}]: {{.Query}}",
		ErrorTemplate:   "{{.Operation}}[{{.Duration}}]: {{.Query}}: {{.Error}}",
	}))
}
