package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/matthewjhunter/newsquiz/internal/logger"
)

func TestScheduledSkipsOverlappingRuns(t *testing.T) {
	var active sync.WaitGroup
	var runs atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	job := scheduled(context.Background(), &active, logger.Nop(), "test", func(ctx context.Context) error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	})

	done := make(chan struct{})
	go func() {
		job()
		close(done)
	}()
	<-started

	// second tick while the first is still running
	job()
	close(release)
	<-done
	active.Wait()

	if got := runs.Load(); got != 1 {
		t.Errorf("runs: got %d, want 1", got)
	}
}

func TestScheduledRunsAgainAfterFailure(t *testing.T) {
	var active sync.WaitGroup
	var runs int
	job := scheduled(context.Background(), &active, logger.Nop(), "test", func(ctx context.Context) error {
		runs++
		return errors.New("boom")
	})

	job()
	job()
	if runs != 2 {
		t.Errorf("runs: got %d, want 2", runs)
	}
}

func TestScheduledSkipsAfterShutdown(t *testing.T) {
	var active sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	job := scheduled(ctx, &active, logger.Nop(), "test", func(ctx context.Context) error {
		called = true
		return nil
	})
	job()
	if called {
		t.Error("job ran after shutdown")
	}
}

func TestParseID(t *testing.T) {
	if id, err := parseID("42"); err != nil || id != 42 {
		t.Errorf("parseID(42) = %d, %v", id, err)
	}
	for _, bad := range []string{"", "0", "-3", "abc"} {
		if _, err := parseID(bad); err == nil {
			t.Errorf("parseID(%q): expected error", bad)
		}
	}
}
