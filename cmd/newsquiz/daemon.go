package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"github.com/spf13/cobra"

	"github.com/matthewjhunter/newsquiz"
	"github.com/matthewjhunter/newsquiz/internal/logger"
)

func daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the pipeline, synthesis and keyword cleanup on their schedules",
		Long: `Runs each job on the cron spec configured under schedule (seconds field
included). A job still running when its next tick fires is skipped.
Handles SIGINT/SIGTERM for graceful shutdown: running jobs are cancelled and
in-flight quiz generation is drained before the store closes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(logMode)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer log.Sync()

			engine, err := newsquiz.NewEngine(newsquiz.EngineConfig{Config: cfg, Logger: log})
			if err != nil {
				return fmt.Errorf("failed to start engine: %w", err)
			}
			defer func() {
				if err := engine.Close(); err != nil {
					log.Error("close failed", "error", err)
				}
			}()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			jobs := []struct {
				name string
				spec string
				run  func(context.Context) error
			}{
				{"pipeline", cfg.Schedule.Pipeline, func(ctx context.Context) error {
					_, err := engine.RunDailyPipeline(ctx)
					return err
				}},
				{"synthetic", cfg.Schedule.Synthetic, func(ctx context.Context) error {
					_, err := engine.SynthesizeToday(ctx)
					return err
				}},
				{"keyword_cleanup", cfg.Schedule.KeywordCleanup, func(ctx context.Context) error {
					_, err := engine.CleanupKeywords(ctx)
					return err
				}},
			}

			var active sync.WaitGroup
			c := cron.NewWithLocation(cfg.Location())
			for _, j := range jobs {
				if j.spec == "" {
					log.Info("job disabled", "job", j.name)
					continue
				}
				if err := c.AddFunc(j.spec, scheduled(ctx, &active, log, j.name, j.run)); err != nil {
					return fmt.Errorf("invalid schedule for %s: %w", j.name, err)
				}
				log.Info("job scheduled", "job", j.name, "spec", j.spec)
			}

			c.Start()
			log.Info("daemon started")
			<-ctx.Done()
			log.Info("received shutdown signal, exiting")
			c.Stop()
			active.Wait()
			return nil
		},
	}
}

// scheduled wraps a job so overlapping ticks are dropped and each run is
// logged with its duration.
func scheduled(ctx context.Context, active *sync.WaitGroup, log *logger.Logger, name string, run func(context.Context) error) func() {
	running := make(chan struct{}, 1)
	return func() {
		if ctx.Err() != nil {
			return
		}
		select {
		case running <- struct{}{}:
		default:
			log.Warn("previous run still active, skipping", "job", name)
			return
		}
		defer func() { <-running }()
		active.Add(1)
		defer active.Done()

		start := time.Now()
		log.Info("job starting", "job", name)
		if err := run(ctx); err != nil {
			log.Error("job failed", "job", name, "error", err)
			return
		}
		log.Info("job completed", "job", name, "duration", time.Since(start).Round(time.Millisecond))
	}
}
