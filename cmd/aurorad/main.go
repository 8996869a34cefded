// aurorad is the realtime assistant server: websocket transport in front of
// the message orchestration pipeline, backed by the conversation log and the
// vector memory store.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aurorahq/aurora/internal/auth"
	"github.com/aurorahq/aurora/internal/chat"
	"github.com/aurorahq/aurora/internal/config"
	"github.com/aurorahq/aurora/internal/db"
	"github.com/aurorahq/aurora/internal/llm"
	embedmock "github.com/aurorahq/aurora/internal/llm/embedder/mock"
	embedopenai "github.com/aurorahq/aurora/internal/llm/embedder/openai"
	"github.com/aurorahq/aurora/internal/logger"
	memchromem "github.com/aurorahq/aurora/internal/memory/chromem"
	"github.com/aurorahq/aurora/internal/orchestrator"
	"github.com/aurorahq/aurora/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	gdb, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal("database open failed", "driver", cfg.DBDriver, "error", err)
	}

	msgRepo := chat.NewMessageRepo(gdb, log)
	convRepo := chat.NewConversationRepo(gdb, log)

	var embedder llm.Embedder
	if cfg.EmbedAPIKey != "" {
		embedder, err = embedopenai.New(embedopenai.Config{
			BaseURL:    cfg.EmbedBaseURL,
			APIKey:     cfg.EmbedAPIKey,
			Model:      cfg.EmbedModel,
			Dimensions: cfg.EmbedDims,
		}, log)
		if err != nil {
			log.Fatal("embedder init failed", "error", err)
		}
	} else {
		log.Warn("no embedding API key configured, using the deterministic mock embedder")
		embedder = embedmock.New(cfg.EmbedDims)
	}

	model := llm.NewClient(llm.Config{
		APIKey:    cfg.AnthropicAPIKey,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
	}, embedder, log)

	store := memchromem.New(log)
	defer store.Close()

	gate, err := auth.NewGate(cfg.JWTSecret, log)
	if err != nil {
		log.Fatal("session gate init failed", "error", err)
	}

	orch := orchestrator.New(log, msgRepo, convRepo, model, store, orchestrator.Options{
		HistoryWindow: cfg.HistoryWindow,
		MemoryTopK:    cfg.MemoryTopK,
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", ws.NewServer(gate, orch, log))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("shutdown incomplete", "error", err)
	}
	// Let in-flight background writes land before the process exits.
	orch.Wait()
}
