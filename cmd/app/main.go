package main

import (
	"DefectScope/internal/backend"
	"DefectScope/internal/config"
	"DefectScope/pkg/log"
	"DefectScope/pkg/storage"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	_ "go.uber.org/automaxprocs"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || os.Getenv("APP_ENV") == "production" {
			logger.Fatalf("Error loading .env file: %v", err)
		}
		logger.Debug("No .env file, using process environment")
	}

	validator := config.NewValidator()
	cfg, err := config.LoadAppConfig(validator)
	if err != nil {
		logger.Fatal(err)
	}

	store, err := storage.Open(storage.Options{
		Root:      cfg.WorkDir,
		OutputExt: cfg.OutputExt,
		Policy:    storage.NewPolicy(cfg.RetentionMaxAge, cfg.RetentionMaxBytes),
		Log:       logger,
	})
	if err != nil {
		logger.Fatalf("Error opening work directory: %v", err)
	}
	defer store.Close()

	model, err := backend.NewDetector(cfg, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer model.Close()

	reporter, closeReporter, err := backend.NewReporter(context.Background(), cfg)
	if err != nil {
		logger.Fatal(err)
	}
	defer closeReporter()

	server, err := config.NewServer(
		config.WithConfig(cfg),
		config.WithFiber(config.NewFiber(cfg, logger)),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithMiddleware(),
		config.WithStore(store),
		config.WithCodec(backend.NewCodec(cfg)),
		config.WithDetector(model, model.Info),
		config.WithDetectorLink(model.Link),
		config.WithReporter(reporter),
		config.WithUtils(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.WithFields(logrus.Fields{
		"port":     cfg.Port,
		"prefix":   cfg.APIPrefix,
		"video":    cfg.VideoBackend,
		"detector": cfg.DetectorBackend,
		"report":   cfg.ReportProvider,
		"work_dir": cfg.WorkDir,
	}).Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}
