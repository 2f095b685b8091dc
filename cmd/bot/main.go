package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"wa_farm_advisor_bot/internal/advisor"
	"wa_farm_advisor_bot/internal/config"
	"wa_farm_advisor_bot/internal/directory"
	"wa_farm_advisor_bot/internal/dispatch"
	"wa_farm_advisor_bot/internal/health"
	"wa_farm_advisor_bot/internal/logging"
	"wa_farm_advisor_bot/internal/scheduler"
	"wa_farm_advisor_bot/internal/voice"
	"wa_farm_advisor_bot/internal/weather"
	"wa_farm_advisor_bot/internal/whatsapp"
)

const (
	mongoConnectTimeout    = 10 * time.Second
	mongoIndexTimeout      = 5 * time.Second
	mongoDisconnectTimeout = 5 * time.Second
	advisorSetupTimeout    = 10 * time.Second
	httpShutdownTimeout    = 10 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":             "startup",
		"directory_backend": cfg.DirectoryBackend,
		"alert_interval":    cfg.AlertInterval.String(),
		"reminder_interval": cfg.ReminderInterval.String(),
	}).Info("configuration loaded")

	var dir directory.Directory
	var mongoManager *directory.Manager

	if cfg.UsesMongo() {
		connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
		mongoManager, err = directory.NewManager(connectCtx, cfg)
		cancel()
		if err != nil {
			logger.WithError(err).Error("mongo connection error")
			fmt.Fprintf(os.Stderr, "mongo connection error: %v\n", err)
			os.Exit(1)
		}

		indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
		err = mongoManager.EnsureIndexes(indexCtx)
		cancelIndexes()
		if err != nil {
			logger.WithError(err).Error("mongo index setup error")
			fmt.Fprintf(os.Stderr, "mongo index setup error: %v\n", err)
			os.Exit(1)
		}

		dir = directory.NewMongo(mongoManager.Users(), mongoManager)
		logger.WithField("event", "mongo_connect").Info("connected to mongo")
	} else {
		dir = directory.NewMemory()
	}

	weatherClient := weather.NewClient(cfg.OpenWeatherAPIKey, logger)

	advisorCtx, cancelAdvisor := context.WithTimeout(context.Background(), advisorSetupTimeout)
	advisorClient, err := advisor.NewClient(advisorCtx, cfg, logger)
	cancelAdvisor()
	if err != nil {
		logger.WithError(err).Error("advisor setup error")
		fmt.Fprintf(os.Stderr, "advisor setup error: %v\n", err)
		os.Exit(1)
	}

	waClient, err := whatsapp.NewClient(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("whatsapp client setup error")
		fmt.Fprintf(os.Stderr, "whatsapp client setup error: %v\n", err)
		os.Exit(1)
	}

	voicePipeline, err := buildVoicePipeline(cfg, advisorClient, logger)
	if err != nil {
		logger.WithError(err).Error("voice pipeline setup error")
		fmt.Fprintf(os.Stderr, "voice pipeline setup error: %v\n", err)
		os.Exit(1)
	}

	dispatcher := dispatch.New(dir, weatherClient, advisorClient, waClient, waClient, voicePipeline, logger)

	sched := scheduler.New(dir, weatherClient, advisorClient, waClient, cfg.AlertInterval, cfg.ReminderInterval, logger)
	if err := sched.Start(); err != nil {
		logger.WithError(err).Error("scheduler setup error")
		fmt.Fprintf(os.Stderr, "scheduler setup error: %v\n", err)
		os.Exit(1)
	}

	healthHandler := health.NewHandler(dir, logger)
	server := whatsapp.NewServer(cfg.HTTPPort, dispatcher, cfg.MediaDir, healthHandler, logger)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.ListenAndServe()
	}()

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping")
	case err := <-serverDone:
		if err != nil {
			logger.WithError(err).Error("webhook server stopped unexpectedly")
		} else {
			logger.WithField("event", "server_stopped_early").Warn("webhook server stopped before shutdown signal")
		}
	}

	sched.Stop()
	logger.WithField("event", "scheduler_stopped").Info("scheduler stopped")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), httpShutdownTimeout)
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("webhook server shutdown error")
	}
	cancelShutdown()

	if err := advisorClient.Close(); err != nil {
		logger.WithError(err).Error("advisor close error")
	}

	if mongoManager != nil {
		disconnectCtx, cancelDisconnect := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
		if err := mongoManager.Close(disconnectCtx); err != nil {
			logger.WithError(err).Error("mongo disconnect error")
		} else {
			logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
		}
		cancelDisconnect()
	}

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}

// buildVoicePipeline assembles the voice stages. Synthesis needs TTS_URL and
// a reachable media store; without them replies degrade to text.
func buildVoicePipeline(cfg config.Config, advisorClient *advisor.Client, logger *logrus.Entry) (*voice.Pipeline, error) {
	var synthesizer voice.Synthesizer
	var store voice.Store

	if cfg.TTSURL != "" && cfg.PublicBaseURL != "" {
		httpSynth, err := voice.NewHTTPSynthesizer(cfg.TTSURL)
		if err != nil {
			return nil, fmt.Errorf("text-to-speech setup: %w", err)
		}

		fileStore, err := voice.NewFileStore(cfg.MediaDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("media store setup: %w", err)
		}

		synthesizer = httpSynth
		store = fileStore
	} else {
		logger.WithField("event", "voice_text_only").Info("voice replies degrade to text without TTS_URL and PUBLIC_BASE_URL")
	}

	return voice.NewPipeline(advisorClient, advisorClient, synthesizer, store, logger), nil
}
