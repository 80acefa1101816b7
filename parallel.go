package maxpar

import (
	"context"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// pickFunc chooses the position of the next task to dispatch from a ready
// list of the given length. The default policy always picks position 0,
// which keeps the ready list's declaration-order sorting; the verifier
// substitutes a seeded random pick.
type pickFunc func(rng *rand.Rand, n int) int

// RunParallel executes the graph on a pool of worker goroutines, dispatching
// a task the moment its last predecessor completes. workers <= 0 defaults to
// the available hardware concurrency.
//
// Fail-fast: the first task error stops all further dispatch; tasks already
// running drain to completion (their side effects are not rolled back) and
// the error is returned as a *TaskExecutionError. Cancelling ctx likewise
// stops dispatch without interrupting in-flight tasks.
//
// Safety of concurrent shared-variable access is entirely structural: the
// scheduler never inspects the store, it only honors the graph's edges.
func (s *System) RunParallel(ctx context.Context, workers int) (*Result, error) {
	return s.runParallel(ctx, workers, nil, nil)
}

type taskDone struct {
	idx int
	err error
}

func (s *System) runParallel(ctx context.Context, workers int, rng *rand.Rand, pick pickFunc) (*Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	n := s.graph.Len()
	start := time.Now()
	if n == 0 {
		return &Result{Snapshot: map[string]any{}, Duration: time.Since(start)}, nil
	}
	if workers > n {
		workers = n
	}

	// Dependency counters and the ready list are owned exclusively by this
	// coordinator goroutine; workers only execute bodies and report back, so
	// no completion event can be lost or dispatched twice.
	remaining := s.graph.InDegrees()
	var ready []int
	for i, deg := range remaining {
		if deg == 0 {
			ready = append(ready, i)
		}
	}

	workCh := make(chan int)
	doneCh := make(chan taskDone, workers)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for idx := range workCh {
				doneCh <- taskDone{idx: idx, err: s.exec(ctx, s.graph.nodes[idx])}
			}
			return nil
		})
	}

	var firstErr error
	inFlight := 0
	completed := make([]string, 0, n)

	for {
		// Dispatch while a worker and a ready task are both available.
		for firstErr == nil && ctx.Err() == nil && inFlight < workers && len(ready) > 0 {
			pos := 0
			if pick != nil {
				pos = pick(rng, len(ready))
			}
			idx := ready[pos]
			ready = append(ready[:pos], ready[pos+1:]...)
			inFlight++
			workCh <- idx
		}

		if inFlight == 0 {
			break
		}

		d := <-doneCh
		inFlight--
		if d.err != nil {
			if firstErr == nil {
				firstErr = d.err
			}
			s.publishProgress(len(completed), inFlight, 1)
			continue
		}

		completed = append(completed, s.graph.nodes[d.idx].task.Name)
		for _, succ := range s.graph.succ[d.idx] {
			remaining[succ]--
			if remaining[succ] == 0 {
				ready = insertSorted(ready, succ)
			}
		}
		s.publishProgress(len(completed), inFlight, 0)
	}

	close(workCh)
	_ = g.Wait()

	elapsed := time.Since(start)
	if firstErr != nil {
		s.publishRunCompleted("parallel", elapsed, firstErr)
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		s.publishRunCompleted("parallel", elapsed, err)
		return nil, err
	}
	if len(completed) < n {
		// Cannot happen for a graph that passed validation.
		s.publishRunCompleted("parallel", elapsed, ErrStalled)
		return nil, ErrStalled
	}

	res := &Result{
		Order:    completed,
		Snapshot: s.store.Snapshot(s.writtenVars()...),
		Duration: elapsed,
	}
	s.publishRunCompleted("parallel", elapsed, nil)
	return res, nil
}

// insertSorted keeps the ready list ascending by declaration index, so the
// default pick-first policy dispatches in declaration order.
func insertSorted(ready []int, idx int) []int {
	pos := sort.SearchInts(ready, idx)
	ready = append(ready, 0)
	copy(ready[pos+1:], ready[pos:])
	ready[pos] = idx
	return ready
}
