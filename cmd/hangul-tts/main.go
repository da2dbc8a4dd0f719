// main package for the hangul-tts service
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/hangul-tts/internal/batch"
	"github.com/book-expert/hangul-tts/internal/config"
	"github.com/book-expert/hangul-tts/internal/index"
	"github.com/book-expert/hangul-tts/internal/notify"
	"github.com/book-expert/hangul-tts/internal/objectstore"
	"github.com/book-expert/hangul-tts/internal/server"
	"github.com/book-expert/hangul-tts/internal/storage"
	"github.com/book-expert/hangul-tts/internal/tts"
	"github.com/book-expert/hangul-tts/internal/worker"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 2 * time.Minute
	// A batch of 50 paced calls can take minutes; shutdown waits for it.
	shutdownTimeout = 10 * time.Minute
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "hangul-tts.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, finalLog)
}

func serve(parent context.Context, cfg *config.Config, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	apiKey, err := cfg.APIKey()
	if err != nil {
		log.Error("Missing API key: %v", err)

		return fmt.Errorf("failed to read api key: %w", err)
	}

	client, err := tts.NewClient(tts.Options{
		BaseURL:      cfg.OpenAI.BaseURL,
		APIKey:       apiKey,
		Model:        cfg.OpenAI.Model,
		Voice:        cfg.OpenAI.Voice,
		Instructions: cfg.OpenAI.Instructions,
		Speed:        cfg.OpenAI.Speed,
		Timeout:      cfg.Timeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to create tts client: %w", err)
	}

	store, err := storage.NewFileStore(cfg.Paths.AudioDir, log)
	if err != nil {
		return fmt.Errorf("failed to create audio store: %w", err)
	}

	opts := batch.Options{
		Synthesizer: client,
		Store:       store,
		Index:       index.NewBuilder(store, store.Root(), log),
		CallDelay:   cfg.CallDelay(),
		Log:         log,
	}

	var natsConnection *nats.Conn

	if cfg.NATSEnabled() {
		natsConnection, err = connectNATS(ctx, cfg, log, &opts)
		if err != nil {
			return err
		}

		defer natsConnection.Close()
	}

	orchestrator := batch.New(opts)

	workerDone := make(chan error, 1)
	if natsConnection != nil {
		natsWorker := worker.NewNatsWorker(natsConnection, cfg.NATS.BatchSubject, orchestrator, log)

		go func() {
			workerDone <- natsWorker.Run(ctx)
		}()
	} else {
		workerDone <- nil
	}

	handler := server.NewHandler(orchestrator, client, cfg.Batch.DefaultSize, log)

	routes, err := handler.Routes(store.Root())
	if err != nil {
		return fmt.Errorf("failed to build routes: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           routes,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	log.System("Hangul TTS service listening on %s (audio root: %s)", cfg.Server.ListenAddr, store.Root())

	select {
	case err = <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received, waiting for in-flight requests.")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	err = httpServer.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	cancel()

	err = <-workerDone
	if err != nil {
		return fmt.Errorf("nats worker failed: %w", err)
	}

	log.System("Hangul TTS service stopped.")

	return nil
}

// connectNATS dials the server and attaches the object store mirror and the event notifier to opts.
func connectNATS(ctx context.Context, cfg *config.Config, log *logger.Logger, opts *batch.Options) (*nats.Conn, error) {
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		log.Error("Failed to connect to NATS at %s: %v", cfg.NATS.URL, err)

		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	mirror, err := objectstore.New(ctx, natsConnection, cfg.NATS.AudioBucket)
	if err != nil {
		natsConnection.Close()

		return nil, fmt.Errorf("failed to open audio bucket: %w", err)
	}

	opts.Mirror = mirror
	opts.Notifier = notify.NewNatsPublisher(natsConnection, cfg.NATS.AudioCreatedSubject)

	log.Info("NATS enabled: bucket %s, events on %s, batches on %s",
		cfg.NATS.AudioBucket, cfg.NATS.AudioCreatedSubject, cfg.NATS.BatchSubject)

	return natsConnection, nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
