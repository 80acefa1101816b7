package maxpar

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     time.Millisecond,
		MaxInterval:         5 * time.Millisecond,
		MaxElapsedTime:      time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0,
	}
}

// TestRetry tests opt-in retry behavior through the executors.
func TestRetry(t *testing.T) {
	t.Run("flaky task succeeds after retries", func(t *testing.T) {
		var attempts int64
		tasks := []Task{
			NewTask("flaky", nil, []string{"x"}, func(tc *TaskContext) error {
				if atomic.AddInt64(&attempts, 1) < 3 {
					return errors.New("transient")
				}
				return tc.Set("x", "ok")
			}),
		}
		sys, err := New(tasks, nil, WithRetry(fastRetryConfig()))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		res, err := sys.RunSequential(context.Background())
		if err != nil {
			t.Fatalf("RunSequential() error = %v", err)
		}
		if got := atomic.LoadInt64(&attempts); got != 3 {
			t.Errorf("attempts = %d, want 3", got)
		}
		if res.Snapshot["x"].(string) != "ok" {
			t.Errorf("x = %v, want ok", res.Snapshot["x"])
		}
	})

	t.Run("retry exhaustion fails the task", func(t *testing.T) {
		// Short enough to exhaust before the circuit breaker opens.
		cfg := fastRetryConfig()
		cfg.MaxElapsedTime = 5 * time.Millisecond

		persistent := errors.New("still broken")
		tasks := []Task{
			NewTask("doomed", nil, []string{"x"}, func(tc *TaskContext) error {
				return persistent
			}),
		}
		sys, err := New(tasks, nil, WithRetry(cfg))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		_, err = sys.RunSequential(context.Background())
		var execErr *TaskExecutionError
		if !errors.As(err, &execErr) {
			t.Fatalf("error = %T (%v), want *TaskExecutionError", err, err)
		}
		if !errors.Is(err, persistent) {
			t.Errorf("error chain should carry the body's error, got %v", err)
		}
	})

	t.Run("no retry without the option", func(t *testing.T) {
		var attempts int64
		tasks := []Task{
			NewTask("flaky", nil, []string{"x"}, func(tc *TaskContext) error {
				atomic.AddInt64(&attempts, 1)
				return errors.New("transient")
			}),
		}
		sys, err := New(tasks, nil)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		if _, err := sys.RunSequential(context.Background()); err == nil {
			t.Fatal("RunSequential() error = nil, want failure")
		}
		if got := atomic.LoadInt64(&attempts); got != 1 {
			t.Errorf("attempts = %d, want 1", got)
		}
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var attempts int64
		tasks := []Task{
			NewTask("flaky", nil, []string{"x"}, func(tc *TaskContext) error {
				if atomic.AddInt64(&attempts, 1) == 1 {
					cancel()
				}
				return errors.New("transient")
			}),
		}
		sys, err := New(tasks, nil, WithRetry(fastRetryConfig()))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		if _, err := sys.RunSequential(ctx); err == nil {
			t.Fatal("RunSequential() error = nil, want failure")
		}
		if got := atomic.LoadInt64(&attempts); got > 2 {
			t.Errorf("attempts = %d, retrying should stop after cancellation", got)
		}
	})
}

// TestDefaultRetryConfig pins the documented defaults.
func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.InitialInterval != 100*time.Millisecond {
		t.Errorf("InitialInterval = %v", cfg.InitialInterval)
	}
	if cfg.MaxInterval != 10*time.Second {
		t.Errorf("MaxInterval = %v", cfg.MaxInterval)
	}
	if cfg.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v", cfg.Multiplier)
	}
}

// TestBreakerRegistry tests per-task breaker identity.
func TestBreakerRegistry(t *testing.T) {
	r := newBreakerRegistry()

	a1 := r.get("a")
	a2 := r.get("a")
	b := r.get("b")

	if a1 != a2 {
		t.Error("same task name should return the same breaker")
	}
	if a1 == b {
		t.Error("different task names should get distinct breakers")
	}
	if a1.Name() != "a" {
		t.Errorf("breaker name = %q, want a", a1.Name())
	}
}
