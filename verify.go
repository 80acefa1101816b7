package maxpar

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/mitchellh/hashstructure/v2"
)

// SnapshotFunc extracts the state a verification trial compares. The default
// accessor snapshots every declared write variable.
type SnapshotFunc func(store *Store) map[string]any

// VerificationResult reports whether repeated randomized runs converged on
// the sequential ground truth. Nondeterminism is a result, not an error: it
// signals an under-declared access set or a graph defect, and the caller
// decides how to treat it.
type VerificationResult struct {
	Deterministic  bool
	Trials         int
	DivergingTrial int // index of the first diverging trial, -1 if none

	ExpectedHash uint64
	ActualHash   uint64
	Expected     map[string]any // sequential ground-truth snapshot
	Actual       map[string]any // diverging trial's snapshot (nil if deterministic)
}

// TestDeterminism probes the system for hidden races. It first runs the
// sequential executor to establish the ground-truth snapshot, then runs the
// parallel path trials times with randomized selection among ready tasks,
// restoring the store to its pre-verification contents before every run.
// Randomizing the ready pick (rather than always taking declaration order)
// maximizes the chance of surfacing any conflicting pair the graph failed to
// order.
//
// Trials use a single worker: task-level interleaving is what exposes a
// missing edge, and keeping one body running at a time means the probe
// itself never turns an undeclared conflict into a torn memory access.
//
// accessor may be nil, selecting the default written-variables snapshot.
// The store is restored to its pre-verification contents before returning.
func (s *System) TestDeterminism(ctx context.Context, trials int, accessor SnapshotFunc) (*VerificationResult, error) {
	if trials <= 0 {
		trials = 5
	}
	if accessor == nil {
		accessor = func(st *Store) map[string]any {
			return st.Snapshot(s.writtenVars()...)
		}
	}

	initial := s.store.Snapshot()
	defer s.store.Restore(initial)

	if _, err := s.RunSequential(ctx); err != nil {
		return nil, err
	}
	expected := accessor(s.store)
	expectedHash, err := hashstructure.Hash(expected, hashstructure.FormatV2, nil)
	if err != nil {
		return nil, fmt.Errorf("hashing ground-truth snapshot: %w", err)
	}

	master := s.rng()
	randomPick := func(rng *rand.Rand, n int) int { return rng.Intn(n) }

	for trial := 0; trial < trials; trial++ {
		s.store.Restore(initial)
		trialRng := rand.New(rand.NewSource(master.Int63()))

		if _, err := s.runParallel(ctx, 1, trialRng, randomPick); err != nil {
			return nil, err
		}

		actual := accessor(s.store)
		actualHash, err := hashstructure.Hash(actual, hashstructure.FormatV2, nil)
		if err != nil {
			return nil, fmt.Errorf("hashing trial %d snapshot: %w", trial, err)
		}
		if actualHash != expectedHash {
			return &VerificationResult{
				Deterministic:  false,
				Trials:         trials,
				DivergingTrial: trial,
				ExpectedHash:   expectedHash,
				ActualHash:     actualHash,
				Expected:       expected,
				Actual:         actual,
			}, nil
		}
	}

	return &VerificationResult{
		Deterministic:  true,
		Trials:         trials,
		DivergingTrial: -1,
		ExpectedHash:   expectedHash,
		ActualHash:     expectedHash,
		Expected:       expected,
	}, nil
}
