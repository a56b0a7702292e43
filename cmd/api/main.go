package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradiehub/messaging-api/internal/chat"
	"github.com/tradiehub/messaging-api/internal/config"
	"github.com/tradiehub/messaging-api/internal/data"
	"github.com/tradiehub/messaging-api/internal/db"
	"github.com/tradiehub/messaging-api/internal/identity"
	"github.com/tradiehub/messaging-api/internal/middleware"
	"github.com/tradiehub/messaging-api/internal/realtime"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = dbClient.Close(ctx)
	}()

	if err := dbClient.CreateIndexes(ctx); err != nil {
		log.Fatalf("failed to create indexes: %v", err)
	}

	convsStore := data.NewConversationsStore(dbClient.ConversationsCollection())
	msgsStore := data.NewMessagesStore(dbClient.MessagesCollection(), dbClient.CountersCollection())
	principalsStore := data.NewPrincipalsStore(dbClient.PrincipalsCollection())

	// Tokens are minted by the marketplace's identity service; this service
	// only verifies them. JWT_KEYS enables key rotation, JWT_SECRET is the
	// single-key fallback.
	var verifier *identity.Verifier
	if cfg.JWTKeys != "" {
		keys, err := identity.ParseKeys(cfg.JWTKeys)
		if err != nil {
			log.Fatalf("invalid JWT_KEYS: %v", err)
		}
		verifier = identity.NewVerifierFromKeys(keys, cfg.JWTActiveKid, 24*time.Hour)
	} else {
		verifier = identity.NewVerifier(cfg.JWTSecret, 24*time.Hour)
	}

	limiterStore := middleware.NewLimiterStore(cfg.RateLimitRPM, 10, 1*time.Minute)
	defer limiterStore.Stop()

	hub := realtime.NewHub()
	svc := chat.NewService(convsStore, msgsStore, principalsStore, realtime.NewBroadcaster(hub))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: newAPI(cfg, svc, hub, verifier, limiterStore).routes(),
	}

	go func() {
		log.Printf("messaging API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server exit: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
