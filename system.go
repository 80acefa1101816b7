package maxpar

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/parlab/maxpar/events"
)

// System owns a set of tasks, the execution graph derived from their access
// sets and precedence hints, and the shared-variable store their bodies
// operate on.
type System struct {
	graph  *Graph
	store  *Store
	strict bool
	seed   int64
	seeded bool
	retry  *RetryConfig
	cbs    *breakerRegistry
	bus    *events.Bus
}

// Option configures a System at construction.
type Option func(*System)

// WithStrictAccess makes TaskContext reject reads and writes a task did not
// declare, turning a dishonest access set into an immediate task failure
// instead of a latent race.
func WithStrictAccess() Option {
	return func(s *System) { s.strict = true }
}

// WithSeed fixes the pseudo-random generator used for randomized ready-task
// selection, making determinism-verification runs reproducible.
func WithSeed(seed int64) Option {
	return func(s *System) {
		s.seed = seed
		s.seeded = true
	}
}

// WithRetry enables per-task retry with exponential backoff and a per-task
// circuit breaker. Both executors apply it identically. Task bodies must be
// idempotent when retry is enabled.
func WithRetry(cfg RetryConfig) Option {
	return func(s *System) { s.retry = &cfg }
}

// WithEventBus attaches a bus the executors publish task and run lifecycle
// events to. Publishing is non-blocking; slow consumers drop events.
func WithEventBus(bus *events.Bus) Option {
	return func(s *System) { s.bus = bus }
}

// New builds a System. The execution graph is constructed eagerly, so every
// structural error (duplicate name, unknown hint reference, hint cycle)
// surfaces here; no partial System is ever returned.
//
// precedences maps a task name to the names of tasks that must complete
// before it. Tasks absent from the map have no explicit prerequisites; all
// remaining ordering is inferred from the declared access sets.
func New(tasks []Task, precedences map[string][]string, opts ...Option) (*System, error) {
	graph, err := buildGraph(tasks, precedences)
	if err != nil {
		return nil, err
	}

	store := NewStore()
	for _, n := range graph.nodes {
		store.declare(n.task.Reads...)
		store.declare(n.task.Writes...)
	}

	s := &System{
		graph: graph,
		store: store,
		cbs:   newBreakerRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Graph returns the execution DAG. The returned graph is immutable; its
// Names/Edges/HasPath methods are the read-only view external consumers
// (visualization, tests) rely on.
func (s *System) Graph() *Graph { return s.graph }

// Store returns the shared-variable store, for seeding initial values and
// inspecting results between runs.
func (s *System) Store() *Store { return s.store }

// writtenVars returns the union of all declared write sets, sorted. This is
// the "relevant shared state" result snapshots cover.
func (s *System) writtenVars() []string {
	set := make(map[string]struct{})
	for _, n := range s.graph.nodes {
		for v := range n.writes {
			set[v] = struct{}{}
		}
	}
	vars := make([]string, 0, len(set))
	for v := range set {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

// rng returns the master generator for randomized scheduling: fixed when
// WithSeed was given, time-seeded otherwise.
func (s *System) rng() *rand.Rand {
	if s.seeded {
		return rand.New(rand.NewSource(s.seed))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// exec runs one task body end to end: context handle, optional retry, panic
// containment, lifecycle events. A non-nil return is always a
// *TaskExecutionError.
func (s *System) exec(ctx context.Context, n *node) error {
	name := n.task.Name
	start := time.Now()
	s.publish(events.TopicTask, events.TaskStartedEvent{Name: name, Timestamp: start})

	err := s.invoke(ctx, n)
	elapsed := time.Since(start)
	if err != nil {
		s.publish(events.TopicTask, events.TaskFailedEvent{Name: name, Err: err, Duration: elapsed, Timestamp: time.Now()})
		return &TaskExecutionError{Name: name, Err: err}
	}

	s.publish(events.TopicTask, events.TaskCompletedEvent{Name: name, Duration: elapsed, Timestamp: time.Now()})
	return nil
}

// invoke calls the task body, translating panics into errors so one bad task
// fails its run instead of killing the process.
func (s *System) invoke(ctx context.Context, n *node) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if n.task.Run == nil {
		return nil
	}

	tc := &TaskContext{
		store:  s.store,
		name:   n.task.Name,
		reads:  n.reads,
		writes: n.writes,
		strict: s.strict,
	}

	if s.retry != nil {
		return runWithRetry(ctx, func() error { return n.task.Run(tc) }, s.cbs.get(n.task.Name), *s.retry)
	}
	return n.task.Run(tc)
}

func (s *System) publish(topic string, ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(topic, ev)
	}
}

// publishProgress emits a run progress event when a bus is attached.
func (s *System) publishProgress(completed, running, failed int) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.TopicRun, events.RunProgressEvent{
		Total:     s.graph.Len(),
		Completed: completed,
		Running:   running,
		Failed:    failed,
		Timestamp: time.Now(),
	})
}
