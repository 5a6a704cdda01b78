package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/subtrackd/subtrackd/internal/config"
	"github.com/subtrackd/subtrackd/internal/database"
	"github.com/subtrackd/subtrackd/internal/logger"
	"github.com/subtrackd/subtrackd/internal/notify"
	"github.com/subtrackd/subtrackd/internal/scan"
	"github.com/subtrackd/subtrackd/internal/server"
	"github.com/subtrackd/subtrackd/internal/stripe"
	"github.com/subtrackd/subtrackd/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.InitLogger(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Info("subtrackd is starting", map[string]interface{}{
		"log_level":     cfg.LogLevel,
		"scan_timezone": cfg.ScanTimezone,
		"scan_hour":     cfg.ScanHour,
		"has_smtp":      cfg.HasSMTPConfig(),
		"has_telegram":  cfg.HasTelegramConfig(),
		"has_stripe":    cfg.HasStripeConfig(),
	})

	db, err := database.NewDB(cfg.PostgreDSN)
	if err != nil {
		logger.Error("Failed to initialize database", map[string]interface{}{
			"error": err.Error(),
		})
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Channel senders. A missing provider disables its channel and nothing
	// else; owners with that channel enabled get a "not configured" outcome.
	var emailSender notify.EmailSender
	if cfg.HasSMTPConfig() {
		sender, err := notify.NewSMTPEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPSender)
		if err != nil {
			logger.Warn("Failed to initialize SMTP sender, email channel disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			emailSender = sender
		}
	} else {
		logger.InfoMsg("SMTP not configured, email channel disabled")
	}

	var (
		bot            *telegram.Bot
		telegramSender notify.TelegramSender
	)
	if cfg.HasTelegramConfig() {
		bot, err = telegram.NewBot(cfg.TelegramBotToken, db)
		if err != nil {
			logger.Warn("Failed to initialize Telegram bot, telegram channel disabled", map[string]interface{}{
				"error": err.Error(),
			})
			bot = nil
		} else {
			telegramSender = bot
		}
	} else {
		logger.InfoMsg("Telegram not configured, telegram channel disabled")
	}

	dispatcher := notify.NewDispatcher(emailSender, telegramSender, notify.NewHTTPWebhookSender(), cfg.ChannelTimeout)
	job := scan.NewJob(db, dispatcher, cfg.BaseURL, cfg.Location())

	var stripeWebhook http.HandlerFunc
	if cfg.HasStripeConfig() {
		manager := stripe.NewManager(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
		if err := manager.Initialize(); err != nil {
			logger.Warn("Failed to initialize Stripe, billing webhook disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			stripeWebhook = manager.HandleWebhook(db)
		}
	} else {
		logger.InfoMsg("Stripe not configured, billing webhook disabled")
	}

	srv := server.New(":"+cfg.ServerPort, cfg.BaseURL, cfg.ScanSecret, db, job, stripeWebhook)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("HTTP server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	// In-process daily schedule; the /notifications/run endpoint stays
	// available for external schedulers and manual retries.
	scheduler := cron.New(cron.WithLocation(cfg.Location()))
	_, err = scheduler.AddFunc(fmt.Sprintf("0 %d * * *", cfg.ScanHour), func() {
		if _, err := job.Run(rootCtx, job.Today()); err != nil {
			logger.Error("Scheduled expiration scan failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule expiration scan: %v", err)
	}
	scheduler.Start()

	if bot != nil {
		go func() {
			if err := bot.Start(rootCtx); err != nil {
				logger.Error("Telegram bot error", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}()
	}

	logger.InfoMsg("🔔 Ready to watch subscriptions and send renewal reminders!")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("Shutting down", map[string]interface{}{
		"signal": sig.String(),
	})

	cancel()
	cronStopped := scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", map[string]interface{}{
			"error": err.Error(),
		})
	}

	select {
	case <-cronStopped.Done():
	case <-shutdownCtx.Done():
		logger.WarnMsg("Timed out waiting for running scan to finish")
	}

	logger.InfoMsg("Shutdown complete")
}
