package maxpar

import (
	"context"
	"time"
)

// PerformanceReport compares sequential and parallel wall-clock time for the
// same graph. It carries no correctness weight; both paths already went
// through the same executors the rest of the package tests.
type PerformanceReport struct {
	SequentialDuration time.Duration // average over trials
	ParallelDuration   time.Duration // average over trials
	Speedup            float64
	Workers            int
	Trials             int
}

// MeasurePerformance times the sequential and parallel executors over the
// given number of trials (default 5) and reports average durations and
// relative speedup. The store is restored to its pre-measurement contents
// between runs and before returning, so timed runs all start from the same
// state.
func (s *System) MeasurePerformance(ctx context.Context, workers, trials int) (*PerformanceReport, error) {
	if trials <= 0 {
		trials = 5
	}

	initial := s.store.Snapshot()
	defer s.store.Restore(initial)

	var seqTotal, parTotal time.Duration
	for i := 0; i < trials; i++ {
		s.store.Restore(initial)
		seqRes, err := s.RunSequential(ctx)
		if err != nil {
			return nil, err
		}
		seqTotal += seqRes.Duration

		s.store.Restore(initial)
		parRes, err := s.RunParallel(ctx, workers)
		if err != nil {
			return nil, err
		}
		parTotal += parRes.Duration
	}

	report := &PerformanceReport{
		SequentialDuration: seqTotal / time.Duration(trials),
		ParallelDuration:   parTotal / time.Duration(trials),
		Workers:            workers,
		Trials:             trials,
	}
	if report.ParallelDuration > 0 {
		report.Speedup = float64(report.SequentialDuration) / float64(report.ParallelDuration)
	}
	return report, nil
}
