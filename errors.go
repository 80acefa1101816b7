package maxpar

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStalled is returned when no task is ready but the run is incomplete.
// It cannot occur for a graph that passed construction; it exists as a guard
// against scheduler bookkeeping bugs.
var ErrStalled = errors.New("scheduler stalled: no ready tasks but run incomplete")

// DuplicateTaskError reports two tasks sharing a name. Raised at construction.
type DuplicateTaskError struct {
	Name string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("duplicate task name %q", e.Name)
}

// UnknownTaskError reports a precedence hint referencing a task that does not
// exist. Raised at construction.
type UnknownTaskError struct {
	Task string // hint entry the reference appeared under ("" if the key itself is unknown)
	Ref  string // the unknown name
}

func (e *UnknownTaskError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("precedence hint for unknown task %q", e.Ref)
	}
	return fmt.Sprintf("task %q depends on unknown task %q", e.Task, e.Ref)
}

// CycleError reports a dependency cycle among the precedence hints.
// Path lists the participating task names in order, first repeated last.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "precedence hints contain a cycle"
	}
	return "precedence hints contain a cycle: " + strings.Join(e.Path, " -> ")
}

// TaskExecutionError reports the first task whose body failed during a run.
// The run is aborted: already-running tasks finish, not-yet-started tasks are
// never dispatched. The System remains usable for another run attempt.
type TaskExecutionError struct {
	Name string
	Err  error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.Name, e.Err)
}

func (e *TaskExecutionError) Unwrap() error { return e.Err }

// UndeclaredAccessError reports a strict-mode access to a variable the task
// did not declare.
type UndeclaredAccessError struct {
	Task string
	Var  string
	Op   string // "read" or "write"
}

func (e *UndeclaredAccessError) Error() string {
	return fmt.Sprintf("task %q: undeclared %s of variable %q", e.Task, e.Op, e.Var)
}

// UnknownVariableError reports an access to a variable no task declared and
// no caller seeded. Refusing these keeps the store's cell map immutable
// during runs.
type UnknownVariableError struct {
	Task string
	Var  string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("task %q: unknown shared variable %q", e.Task, e.Var)
}
