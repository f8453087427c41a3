// Document assistant client: an HTTP session gateway and a terminal console
// in front of a document-grounded RAG backend.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rag-doc-assistant/internal/api"
	"rag-doc-assistant/internal/backend"
	"rag-doc-assistant/internal/config"
	"rag-doc-assistant/internal/console"
	"rag-doc-assistant/internal/logger"
	"rag-doc-assistant/internal/session"
	"rag-doc-assistant/internal/watcher"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const usage = `usage: docchat [serve|console]

  serve     run the HTTP session gateway (default)
  console   chat with the backend from this terminal`

func main() {
	mode := "serve"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}
	if mode != "serve" && mode != "console" {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Console mode keeps stdout for the conversation
	logOut := os.Stdout
	if mode == "console" {
		logOut = os.Stderr
	}
	logg, err := logger.New(cfg.App, logOut)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer func() { _ = logg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := backend.NewClient(cfg.Backend.BaseURL, cfg.BackendTimeout(), logg)

	switch mode {
	case "console":
		err = runConsole(ctx, cfg, client, logg)
	default:
		err = runServer(ctx, cfg, client, logg)
	}
	if err != nil {
		logg.Error("exiting", zap.Error(err))
		stop()
		_ = logg.Sync()
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfg *config.Config, client *backend.Client, logg *zap.Logger) error {
	manager := session.NewManager(client, cfg.Defaults, cfg.SessionTTL(), cfg.SessionCleanupInterval(), logg)
	server := api.NewServer(cfg, client, manager, logg)
	return server.Run(ctx)
}

func runConsole(ctx context.Context, cfg *config.Config, client *backend.Client, logg *zap.Logger) error {
	sess, err := session.New(uuid.NewString(), client, cfg.Defaults, logg)
	if err != nil {
		return err
	}
	term := console.New(sess, client, os.Stdin, os.Stdout, logg)

	if cfg.Watch.Dir != "" {
		w, err := watcher.New(cfg.Watch.Extensions, watcher.DefaultSettle, logg)
		if err != nil {
			return fmt.Errorf("start inbox watcher: %w", err)
		}
		defer func() { _ = w.Stop() }()

		inbox := watcher.NewInbox(w, cfg.Watch.Dir, sess, term.ReportUpload, logg)
		go func() {
			if err := inbox.Run(ctx); err != nil {
				logg.Error("inbox stopped", zap.Error(err))
			}
		}()
	}

	return term.Run(ctx)
}
