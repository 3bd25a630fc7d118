package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	cypherwebui "github.com/graphtalk/cypher-web-ui"
	"github.com/graphtalk/cypher-web-ui/internal/conversation"
	"github.com/graphtalk/cypher-web-ui/internal/handlers"
	"github.com/graphtalk/cypher-web-ui/internal/services"
	"github.com/graphtalk/cypher-web-ui/internal/transport"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}
	cfgPath := filepath.Join(cfgDir, "cypherwebui")
	if err := os.MkdirAll(cfgPath, 0755); err != nil {
		log.Fatal(fmt.Errorf("error creating config directory: %w", err))
	}

	cfg, err := loadConfig(filepath.Join(cfgPath, "config.yaml"))
	if err != nil {
		log.Fatal(err)
	}

	store, err := services.NewBoltDB(filepath.Join(cfgPath, "settings.db"))
	if err != nil {
		log.Fatal(fmt.Errorf("error opening settings db: %w", err))
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Best-effort startup data: a dead service degrades to an empty
	// suggestion list and an unavailability banner, never a dead UI.
	proposals := services.NewProposalClient(cfg.ServiceAPIURL, logger)

	startupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	suggestions := proposals.Proposals(startupCtx)
	serviceHasKey, probeErr := proposals.HasAPIKey(startupCtx)
	cancel()

	serviceAvailable := probeErr == nil
	if probeErr != nil {
		logger.Warn("Service availability probe failed", slog.String("err", probeErr.Error()))
	}
	keyRequired := serviceAvailable && !serviceHasKey

	client := transport.NewClient(cfg.ServiceWSURL, logger)

	// The stored key accompanies questions only while the service says it
	// needs one. Read per submit so a key saved mid-session takes effect.
	credential := func() string {
		if !keyRequired {
			return ""
		}
		key, err := store.APIKey()
		if err != nil {
			logger.Error("Failed to read stored api key", slog.String("err", err.Error()))
			return ""
		}
		return key
	}

	controller := conversation.NewController(client, cfg.Model, credential, conversation.RealScheduler(), logger)
	client.OnFrame(controller.HandleFrame)

	m, err := handlers.NewMain(controller, store, handlers.Config{
		Suggestions:      suggestions,
		KeyRequired:      keyRequired,
		ServiceAvailable: serviceAvailable,
	}, logger)
	if err != nil {
		log.Fatal(fmt.Errorf("error creating handlers: %w", err))
	}

	controller.OnChange(m.PublishSnapshot)
	client.OnStatus(func(connected bool) {
		controller.HandleTransportStatus(connected)
		m.SetConnected(connected)
	})

	go client.Run(ctx)

	staticFiles, err := fs.Sub(cypherwebui.StaticFS, "static")
	if err != nil {
		log.Fatal(fmt.Errorf("error getting static files: %w", err))
	}

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFiles))))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/chat", m.HandleChat)
	mux.HandleFunc("/sse", m.HandleSSE)
	mux.HandleFunc("/settings/apikey", m.HandleAPIKey)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			log.Printf("Failed to shutdown sse server: %v", err)
		}
	})

	serverErrors := make(chan error, 1)
	go func() {
		log.Println("Server starting on :" + cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		log.Printf("Server error: %v", err)

	case <-ctx.Done():
		log.Println("Start shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
			if err := srv.Close(); err != nil {
				log.Printf("Forcing server close: %v", err)
			}
		}
	}
}
