package maxpar

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/parlab/maxpar/events"
)

// TestNew tests System construction.
func TestNew(t *testing.T) {
	t.Run("construction errors surface eagerly", func(t *testing.T) {
		_, err := New([]Task{{Name: "a"}, {Name: "a"}}, nil)
		if err == nil || !strings.Contains(err.Error(), "duplicate") {
			t.Errorf("New() error = %v, want duplicate task error", err)
		}
	})

	t.Run("declared variables exist before any run", func(t *testing.T) {
		tasks := []Task{
			{Name: "a", Reads: []string{"in"}, Writes: []string{"out"}},
		}
		sys, err := New(tasks, nil)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		names := sys.Store().Names()
		if len(names) != 2 || names[0] != "in" || names[1] != "out" {
			t.Errorf("Store().Names() = %v, want [in out]", names)
		}
	})

	t.Run("snapshot covers written variables only", func(t *testing.T) {
		tasks := []Task{
			NewTask("a", []string{"in"}, []string{"out"}, func(tc *TaskContext) error {
				v, err := tc.Get("in")
				if err != nil {
					return err
				}
				return tc.Set("out", v.(int)*2)
			}),
		}
		sys, err := New(tasks, nil)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		sys.Store().Set("in", 21)

		res, err := sys.RunSequential(context.Background())
		if err != nil {
			t.Fatalf("RunSequential() error = %v", err)
		}
		if len(res.Snapshot) != 1 || res.Snapshot["out"].(int) != 42 {
			t.Errorf("Snapshot = %v, want out=42 only", res.Snapshot)
		}
	})
}

// TestSystemEvents verifies lifecycle events reach an attached bus.
func TestSystemEvents(t *testing.T) {
	bus := events.NewBus()
	sub := bus.SubscribeAll(256)

	sys := sumPipeline(t, WithEventBus(bus))
	if _, err := sys.RunSequential(context.Background()); err != nil {
		t.Fatalf("RunSequential() error = %v", err)
	}
	bus.Close()

	var started, completed, progress, runDone int
	for ev := range sub {
		switch ev.(type) {
		case events.TaskStartedEvent:
			started++
		case events.TaskCompletedEvent:
			completed++
		case events.TaskFailedEvent:
			t.Errorf("unexpected failure event: %v", ev)
		case events.RunProgressEvent:
			progress++
		case events.RunCompletedEvent:
			runDone++
		}
	}

	if started != 3 || completed != 3 {
		t.Errorf("started = %d, completed = %d, want 3 each", started, completed)
	}
	if progress != 3 {
		t.Errorf("progress events = %d, want 3", progress)
	}
	if runDone != 1 {
		t.Errorf("run completed events = %d, want 1", runDone)
	}
}

// TestMeasurePerformance tests the sequential vs parallel benchmark.
func TestMeasurePerformance(t *testing.T) {
	tasks := []Task{
		NewTask("a", nil, []string{"x"}, func(tc *TaskContext) error {
			time.Sleep(5 * time.Millisecond)
			return tc.Set("x", 1)
		}),
		NewTask("b", nil, []string{"y"}, func(tc *TaskContext) error {
			time.Sleep(5 * time.Millisecond)
			return tc.Set("y", 2)
		}),
	}
	sys, err := New(tasks, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sys.Store().Set("x", "seed")

	report, err := sys.MeasurePerformance(context.Background(), 2, 3)
	if err != nil {
		t.Fatalf("MeasurePerformance() error = %v", err)
	}

	if report.Trials != 3 || report.Workers != 2 {
		t.Errorf("report = %+v, want Trials=3 Workers=2", report)
	}
	if report.SequentialDuration <= 0 || report.ParallelDuration <= 0 {
		t.Errorf("durations = %v / %v, want positive", report.SequentialDuration, report.ParallelDuration)
	}
	if report.Speedup <= 0 {
		t.Errorf("Speedup = %v, want positive", report.Speedup)
	}

	// Measurement must not leak final task state into the store.
	v, _ := sys.Store().Get("x")
	if v != "seed" {
		t.Errorf("x = %v after measurement, want pre-measurement seed", v)
	}
}
