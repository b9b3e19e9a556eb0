package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matthewjhunter/newsquiz"
	"github.com/matthewjhunter/newsquiz/internal/logger"
	"github.com/matthewjhunter/newsquiz/internal/storage"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "config file path")
	addr := flag.String("addr", ":8080", "listen address")
	logMode := flag.String("log", "prod", "log mode: dev or prod")
	flag.Parse()

	if err := run(*configPath, *addr, *logMode); err != nil {
		fmt.Fprintf(os.Stderr, "newsquiz-web: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr, logMode string) error {
	cfg, err := storage.LoadConfig(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(logMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	engine, err := newsquiz.NewEngine(newsquiz.EngineConfig{Config: cfg, Logger: log})
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:        addr,
		Handler:     newRouter(engine, log),
		ReadTimeout: 15 * time.Second,
		// admin runs hold the connection for the whole pipeline
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	log.Info("stopped")
	return nil
}
