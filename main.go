package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studenthub-sync/internal/api"
	"studenthub-sync/internal/cache"
	"studenthub-sync/internal/channel"
	"studenthub-sync/internal/config"
	"studenthub-sync/internal/coordinator"
	"studenthub-sync/internal/handlers"
	"studenthub-sync/internal/rabbitmq"
	"studenthub-sync/internal/reconciler"
	"studenthub-sync/internal/telemetry"
	"studenthub-sync/internal/typing"
)

const serviceName = "studenthub-sync"

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, "sync.audit", serviceName, cfg.Environment)

	store := cache.NewStore()
	client := api.NewClient(cfg.APIBaseURL, cfg.AuthToken, cfg.RequestTimeout)

	tracker := typing.NewTracker(cfg.TypingTTL)
	go tracker.Run(ctx)

	ch := channel.New(channel.Config{
		URL:                cfg.WSURL,
		Token:              cfg.AuthToken,
		ReconnectBaseDelay: cfg.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.ReconnectMaxDelay,
		MaxReconnects:      cfg.MaxReconnects,
		HeartbeatInterval:  cfg.HeartbeatInterval,
	})
	notifier := typing.NewNotifier(ch, cfg.TypingDebounce)

	recon := reconciler.New(store, tracker, client, ch, cfg.SelfID)
	ch.Subscribe(recon.HandleEvent)

	coord := coordinator.New(store, client, audit, cfg.SelfID, cfg.SelfName, recon.RefreshConversations)

	if err := ch.Connect(ctx); err != nil {
		log.Printf("initial connect failed, reconnect loop will retry: %v", err)
	}

	bootCtx, bootCancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	if err := recon.RefreshConversations(bootCtx); err != nil {
		log.Printf("initial conversation fetch failed: %v", err)
	}
	if posts, err := client.FetchFeed(bootCtx); err != nil {
		log.Printf("initial feed fetch failed: %v", err)
	} else {
		store.Apply(cache.Mutation{
			Name: "load_feed",
			Fn: func(tx *cache.Tx) {
				for _, post := range posts {
					tx.SetPost(post)
				}
			},
		})
	}
	bootCancel()

	status := handlers.NewStatusHandler(store, ch, tracker)
	router := status.Router(serviceName)
	handlers.NewActionHandler(coord, notifier, recon).Register(router)

	go func() {
		if err := router.Run(":" + cfg.StatusPort); err != nil {
			log.Fatalf("status server error: %v", err)
		}
	}()
	log.Printf("status server listening on :%s", cfg.StatusPort)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	if err := ch.Disconnect(); err != nil {
		log.Printf("channel disconnect: %v", err)
	}
	cancel()
}
