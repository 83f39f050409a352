package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/FanyNavas/Sentara.Api/internal/config"
	"github.com/FanyNavas/Sentara.Api/internal/notify"
	"github.com/FanyNavas/Sentara.Api/internal/queue"
	"github.com/FanyNavas/Sentara.Api/internal/store"
)

// Worker drains queued teacher notifications and sends them over SMTP.
// Run it with the same CONTENT_ROOT as the API so attachment paths resolve.
func main() {
	_ = godotenv.Load()
	logger := log.New(os.Stdout, "sentara-worker ", log.LstdFlags|log.LUTC)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if cfg.QueueBackend != "redis" {
		logger.Fatalf("worker needs QUEUE_BACKEND=redis, got %q", cfg.QueueBackend)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Println("shutdown signal received")
		cancel()
	}()

	rdb := store.NewRedis(cfg.RedisAddr)
	defer rdb.Close()
	if !rdb.Healthy(ctx) {
		logger.Printf("WARNING: redis %s not reachable, will keep retrying", cfg.RedisAddr)
	}

	d := &notify.Dispatcher{
		Queue: queue.NewRedisQueue(rdb.Client, queue.DefaultKey),
		Notifier: notify.NewSMTPSender(notify.SMTPConfig{
			Host:      cfg.Email.SMTPHost,
			Port:      cfg.Email.SMTPPort,
			EnableSSL: cfg.Email.EnableSSL,
			From:      cfg.Email.From,
			User:      cfg.Email.User,
			Password:  cfg.Email.Password,
			Timeout:   cfg.NotifyTimeout,
		}, logger),
		Logger: logger,
	}

	logger.Println("worker started, waiting for notifications...")
	if err := d.Run(ctx); err != nil {
		logger.Fatalf("dispatcher: %v", err)
	}
	logger.Println("worker stopped")
}
