package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/socialcapitalacademy/coach/internal/ai"
	"github.com/socialcapitalacademy/coach/internal/blob"
	"github.com/socialcapitalacademy/coach/internal/blob/gormblob"
	"github.com/socialcapitalacademy/coach/internal/blob/redisblob"
	"github.com/socialcapitalacademy/coach/internal/config"
	"github.com/socialcapitalacademy/coach/internal/httpapi"
	"github.com/socialcapitalacademy/coach/internal/relay"
	"github.com/socialcapitalacademy/coach/internal/session"
)

func openBlobs(cfg config.Config) (blob.Store, error) {
	switch cfg.BlobDriver {
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		return gormblob.New(db)
	case "mysql":
		db, err := gorm.Open(mysql.Open(cfg.MySQLDSN), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		return gormblob.New(db)
	case "redis":
		s := redisblob.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := s.Ping(context.Background()); err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return blob.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown BLOB_DRIVER=%q", cfg.BlobDriver)
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	reg := ai.NewRegistry()
	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		if model == "" {
			model = cfg.OpenAIModel
		}
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, model), nil
	})
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		if model == "" {
			model = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, model), nil
	})

	relaySvc := relay.NewService(reg, cfg.AIProvider, "")

	blobs, err := openBlobs(cfg)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	// The store normally rides the in-process relay; RELAY_URL points
	// it at a remote one over the same wire contract.
	var storeRelay session.Relay = relaySvc
	if cfg.RelayURL != "" {
		storeRelay = relay.NewClient(cfg.RelayURL)
	}

	store, err := session.Open(context.Background(), blobs, storeRelay, session.Options{
		ContextWindow: cfg.ChatContextWindowSize,
	})
	if err != nil {
		log.Fatalf("session store: %v", err)
	}

	r := httpapi.NewRouter(cfg, relaySvc, store)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming responses have no fixed deadline
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("listening on %s (provider=%s blob=%s)", cfg.Addr, cfg.AIProvider, cfg.BlobDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	stop()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
	log.Println("server stopped")
}
