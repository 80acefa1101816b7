// Package maxpar derives the maximally parallel safe execution order for a
// set of tasks annotated with the shared variables they read and write.
//
// Callers declare tasks plus optional precedence hints; maxpar infers the
// minimal additional ordering needed to rule out data races (Bernstein's
// conditions), builds an acyclic execution graph, and runs it either
// sequentially or on a bounded worker pool with identical results.
package maxpar

// RunFunc is a task body. It receives a TaskContext scoped to the task's
// declared read/write sets and reports failure through its error return.
type RunFunc func(tc *TaskContext) error

// Task describes one unit of work together with an honest declaration of
// every shared variable its body reads and writes. The declaration is the
// contract all safety rests on: an access the body performs but does not
// declare voids the race-freedom guarantee (the verifier exists to catch
// exactly that).
//
// Tasks are copied into the System at construction and never mutated.
type Task struct {
	Name   string   // Unique identifier within a System
	Reads  []string // Shared variables the body reads
	Writes []string // Shared variables the body writes
	Run    RunFunc  // Body; nil means a no-op task
}

// NewTask constructs a Task. Provided for call-site brevity; a struct
// literal works just as well.
func NewTask(name string, reads, writes []string, run RunFunc) Task {
	return Task{Name: name, Reads: reads, Writes: writes, Run: run}
}

func toSet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}
