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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/FanyNavas/Sentara.Api/internal/attendance"
	"github.com/FanyNavas/Sentara.Api/internal/auth"
	"github.com/FanyNavas/Sentara.Api/internal/config"
	"github.com/FanyNavas/Sentara.Api/internal/httpapi"
	"github.com/FanyNavas/Sentara.Api/internal/notify"
	"github.com/FanyNavas/Sentara.Api/internal/queue"
	"github.com/FanyNavas/Sentara.Api/internal/snapshot"
	"github.com/FanyNavas/Sentara.Api/internal/store"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	logger := log.New(os.Stdout, "sentara-api ", log.LstdFlags|log.LUTC)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatalf("http server failed: %v", err)
	}
}

func run(cfg config.App, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]httpapi.Pinger{}

	var recordStore attendance.Store
	if cfg.DBDriver == "memory" {
		logger.Println("WARN: DB_DRIVER=memory, records are lost on restart")
		recordStore = attendance.NewMemoryStore()
	} else {
		dialect, err := store.ParseDialect(cfg.DBDriver)
		if err != nil {
			return err
		}
		db, err := store.NewDB(ctx, dialect, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open %s database: %w", dialect, err)
		}
		defer db.Close()
		checks["db"] = db
		recordStore = attendance.NewRepository(db)
	}

	notifier, stopNotifier, err := buildNotifier(cfg, logger, checks)
	if err != nil {
		return err
	}
	// Runs after srv.Shutdown below, so jobs queued by the last requests are still sent.
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		stopNotifier(stopCtx)
	}()

	codec := snapshot.New(cfg.SnapshotDir)
	svc := attendance.NewService(recordStore, codec, notifier, logger, attendance.Policy{
		StrictManualReview: cfg.StrictManualReview,
		NotifyTimeout:      cfg.NotifyTimeout,
	})
	if cfg.LinksEnabled() {
		signer, err := auth.NewSigner(cfg.LinkSigningKey, cfg.LinkIssuer, cfg.PublicBaseURL, cfg.LinkTTL)
		if err != nil {
			return err
		}
		svc.WithLinks(signer)
	}

	opts := httpapi.Options{
		CORSOrigins:  cfg.CORSOrigins,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Checks:       checks,
		Logger:       logger,
	}
	if cfg.LinksEnabled() {
		opts.LinkSigningKey = cfg.LinkSigningKey
		opts.LinkIssuer = cfg.LinkIssuer
	}
	srv := httpapi.New(svc, codec, opts).HTTPServer(cfg.HTTPPort)

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("Starting server on :%s (db=%s, notify=%s, snapshots=%s)", cfg.HTTPPort, cfg.DBDriver, cfg.NotifyMode, cfg.SnapshotDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Server forced shutdown: %v", err)
	}
	logger.Println("Server exited")
	return nil
}

// buildNotifier picks inline SMTP or the queue. The returned stop function
// releases what was started here; with the in-memory queue it stops the
// in-process dispatcher and waits, bounded by ctx, for it to drain.
func buildNotifier(cfg config.App, logger *log.Logger, checks map[string]httpapi.Pinger) (notify.Notifier, func(ctx context.Context), error) {
	smtp := notify.NewSMTPSender(smtpConfig(cfg), logger)
	if cfg.NotifyMode != "queue" {
		return smtp, func(context.Context) {}, nil
	}

	if cfg.QueueBackend == "redis" {
		rdb := store.NewRedis(cfg.RedisAddr)
		checks["redis"] = rdb
		logger.Printf("notifications queued on redis %s", cfg.RedisAddr)
		stop := func(context.Context) {
			if err := rdb.Close(); err != nil {
				logger.Printf("WARN: close redis: %v", err)
			}
		}
		return notify.NewQueueNotifier(queue.NewRedisQueue(rdb.Client, queue.DefaultKey)), stop, nil
	}

	q := queue.NewInMemory(256)
	d := &notify.Dispatcher{Queue: q, Notifier: smtp, Logger: logger, Timeout: cfg.NotifyTimeout}
	runCtx, cancelRun := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := d.Run(runCtx); err != nil {
			logger.Printf("ERROR: notification dispatcher stopped: %v", err)
		}
	}()
	stop := func(ctx context.Context) {
		cancelRun()
		select {
		case <-done:
		case <-ctx.Done():
			logger.Printf("ERROR: notification dispatcher still draining at exit, pending emails are lost")
		}
	}
	return notify.NewQueueNotifier(q), stop, nil
}

func smtpConfig(cfg config.App) notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:      cfg.Email.SMTPHost,
		Port:      cfg.Email.SMTPPort,
		EnableSSL: cfg.Email.EnableSSL,
		From:      cfg.Email.From,
		User:      cfg.Email.User,
		Password:  cfg.Email.Password,
		Timeout:   cfg.NotifyTimeout,
	}
}
