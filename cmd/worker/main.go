package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"checkin/internal/attendance"
	"checkin/internal/bootstrap"
	"checkin/internal/config"
	"checkin/internal/queue"
)

// Worker drains roster bookkeeping writes from a shared queue into the record store.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	backends, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("backend init failed: %v", err)
	}
	defer backends.Close()

	if backends.InProcessQueue() {
		log.Fatalf("QUEUE_BACKEND=%q is process local, the api drains it itself; use redis or amqp", cfg.QueueBackend)
	}
	if !backends.Store.Durable() {
		log.Printf("WARNING: store %s is not durable, bookkeeping writes will be dropped", backends.Store.Name())
	}

	repo := attendance.NewRepository(backends.Store)

	log.Println("worker started, waiting for messages...")
	if err := queue.Run(ctx, backends.Queue, func(ctx context.Context, msg queue.Message) error {
		if err := repo.SaveBookkeeping(ctx, msg); err != nil {
			return err
		}
		log.Printf("stored %s record", msg.Type)
		return nil
	}); err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker stopped")
}
