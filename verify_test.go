package maxpar

import (
	"context"
	"errors"
	"testing"
)

// TestDeterminismVerifier tests the randomized determinism probe.
func TestDeterminismVerifier(t *testing.T) {
	t.Run("honest access sets verify clean", func(t *testing.T) {
		sys := sumPipeline(t, WithSeed(7))
		vr, err := sys.TestDeterminism(context.Background(), 50, nil)
		if err != nil {
			t.Fatalf("TestDeterminism() error = %v", err)
		}

		if !vr.Deterministic {
			t.Fatalf("Deterministic = false at trial %d: expected %v, actual %v",
				vr.DivergingTrial, vr.Expected, vr.Actual)
		}
		if vr.Trials != 50 {
			t.Errorf("Trials = %d, want 50", vr.Trials)
		}
		if vr.DivergingTrial != -1 {
			t.Errorf("DivergingTrial = %d, want -1", vr.DivergingTrial)
		}
		if vr.Expected["z"].(int) != 3 {
			t.Errorf("ground truth z = %v, want 3", vr.Expected["z"])
		}
	})

	t.Run("hidden write surfaces as nondeterminism", func(t *testing.T) {
		// Both bodies write "winner" but only "honest" declares it, so the
		// graph leaves the pair unordered and the final value depends on
		// schedule. Lenient mode lets the undeclared write through; the
		// verifier's job is to catch exactly this.
		tasks := []Task{
			NewTask("sneaky", nil, []string{"a"}, func(tc *TaskContext) error {
				if err := tc.Set("a", 1); err != nil {
					return err
				}
				return tc.Set("winner", "sneaky")
			}),
			NewTask("honest", nil, []string{"winner"}, func(tc *TaskContext) error {
				return tc.Set("winner", "honest")
			}),
		}
		sys, err := New(tasks, nil, WithSeed(42))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		vr, err := sys.TestDeterminism(context.Background(), 100, nil)
		if err != nil {
			t.Fatalf("TestDeterminism() error = %v", err)
		}

		if vr.Deterministic {
			t.Fatal("Deterministic = true, want divergence from the hidden write")
		}
		if vr.DivergingTrial < 0 || vr.DivergingTrial >= 100 {
			t.Errorf("DivergingTrial = %d, want within [0, 100)", vr.DivergingTrial)
		}
		if vr.ExpectedHash == vr.ActualHash {
			t.Error("diverging result should carry distinct hashes")
		}
		if vr.Expected["winner"] == vr.Actual["winner"] {
			t.Errorf("expected and actual winner both %v", vr.Expected["winner"])
		}
	})

	t.Run("strict mode turns the hidden write into a failure", func(t *testing.T) {
		tasks := []Task{
			NewTask("sneaky", nil, []string{"a"}, func(tc *TaskContext) error {
				if err := tc.Set("a", 1); err != nil {
					return err
				}
				return tc.Set("winner", "sneaky")
			}),
			NewTask("honest", nil, []string{"winner"}, func(tc *TaskContext) error {
				return tc.Set("winner", "honest")
			}),
		}
		sys, err := New(tasks, nil, WithStrictAccess())
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		_, err = sys.TestDeterminism(context.Background(), 10, nil)
		var access *UndeclaredAccessError
		if !errors.As(err, &access) {
			t.Fatalf("error = %T (%v), want *UndeclaredAccessError", err, err)
		}
	})

	t.Run("store restored after verification", func(t *testing.T) {
		sys := sumPipeline(t)
		sys.Store().Set("z", "untouched")

		if _, err := sys.TestDeterminism(context.Background(), 5, nil); err != nil {
			t.Fatalf("TestDeterminism() error = %v", err)
		}

		v, _ := sys.Store().Get("z")
		if v != "untouched" {
			t.Errorf("z = %v after verification, want pre-verification value", v)
		}
	})

	t.Run("custom accessor narrows the comparison", func(t *testing.T) {
		sys := sumPipeline(t, WithSeed(1))
		accessor := func(st *Store) map[string]any {
			return st.Snapshot("z")
		}
		vr, err := sys.TestDeterminism(context.Background(), 20, accessor)
		if err != nil {
			t.Fatalf("TestDeterminism() error = %v", err)
		}
		if !vr.Deterministic {
			t.Error("custom accessor on honest system should verify clean")
		}
		if len(vr.Expected) != 1 {
			t.Errorf("Expected = %v, want only z", vr.Expected)
		}
	})

	t.Run("non-positive trials defaults to five", func(t *testing.T) {
		sys := sumPipeline(t)
		vr, err := sys.TestDeterminism(context.Background(), 0, nil)
		if err != nil {
			t.Fatalf("TestDeterminism() error = %v", err)
		}
		if vr.Trials != 5 {
			t.Errorf("Trials = %d, want default 5", vr.Trials)
		}
	})

	t.Run("fixed seed reproduces the schedule sequence", func(t *testing.T) {
		build := func() *System {
			tasks := []Task{
				NewTask("sneaky", nil, []string{"a"}, func(tc *TaskContext) error {
					if err := tc.Set("a", 1); err != nil {
						return err
					}
					return tc.Set("winner", "sneaky")
				}),
				NewTask("honest", nil, []string{"winner"}, func(tc *TaskContext) error {
					return tc.Set("winner", "honest")
				}),
			}
			sys, err := New(tasks, nil, WithSeed(99))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			return sys
		}

		first, err := build().TestDeterminism(context.Background(), 100, nil)
		if err != nil {
			t.Fatalf("TestDeterminism() error = %v", err)
		}
		second, err := build().TestDeterminism(context.Background(), 100, nil)
		if err != nil {
			t.Fatalf("TestDeterminism() error = %v", err)
		}

		if first.DivergingTrial != second.DivergingTrial {
			t.Errorf("diverging trials differ with same seed: %d vs %d",
				first.DivergingTrial, second.DivergingTrial)
		}
	})
}
