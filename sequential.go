package maxpar

import (
	"context"
	"time"

	"github.com/parlab/maxpar/events"
)

// Result is the outcome of one complete run.
type Result struct {
	// Order lists task names in completion order. For the sequential
	// executor this is the deterministic topological order; for parallel
	// runs it is one of the orders the graph permits.
	Order []string

	// Snapshot holds the final values of every declared write variable.
	Snapshot map[string]any

	// Duration is the wall-clock time of the run.
	Duration time.Duration
}

// RunSequential executes every task in deterministic topological order,
// ties broken by declaration order. This is the reference semantics: given
// deterministic task bodies, repeated sequential runs are identical, and any
// valid parallel run must produce the same final snapshot.
//
// The first failing task aborts the run with a *TaskExecutionError; tasks
// after it in the order are never started.
func (s *System) RunSequential(ctx context.Context) (*Result, error) {
	start := time.Now()
	order := s.graph.topoOrder()
	completed := make([]string, 0, len(order))

	for _, idx := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.exec(ctx, s.graph.nodes[idx]); err != nil {
			s.publishRunCompleted("sequential", time.Since(start), err)
			return nil, err
		}
		completed = append(completed, s.graph.nodes[idx].task.Name)
		s.publishProgress(len(completed), 0, 0)
	}

	res := &Result{
		Order:    completed,
		Snapshot: s.store.Snapshot(s.writtenVars()...),
		Duration: time.Since(start),
	}
	s.publishRunCompleted("sequential", res.Duration, nil)
	return res, nil
}

func (s *System) publishRunCompleted(mode string, d time.Duration, err error) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.TopicRun, events.RunCompletedEvent{
		Mode:      mode,
		Duration:  d,
		Err:       err,
		Timestamp: time.Now(),
	})
}
