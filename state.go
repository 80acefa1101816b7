package maxpar

import "sort"

// cell holds one shared variable. Cells are allocated before any run starts;
// during a run only the value inside a cell changes, never the cell map
// itself, so unordered tasks touching disjoint variables share the map
// without synchronization.
type cell struct {
	value any
}

// Store is the shared-variable context tasks operate on. The System owns one
// Store and declares a cell for every variable named in any task's access
// sets; callers may seed additional variables with Set before running.
//
// The Store itself performs no locking. Safety during parallel runs is
// structural: the execution graph orders every pair of tasks whose access
// sets conflict, and the cell map is frozen once a run starts.
type Store struct {
	cells map[string]*cell
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{cells: make(map[string]*cell)}
}

// Set assigns a variable, creating it if needed. Intended for seeding state
// between runs; calling it while a run is in flight is the caller's race.
func (s *Store) Set(name string, value any) {
	c, ok := s.cells[name]
	if !ok {
		c = &cell{}
		s.cells[name] = c
	}
	c.value = value
}

// Get returns a variable's current value and whether it exists.
func (s *Store) Get(name string) (any, bool) {
	c, ok := s.cells[name]
	if !ok {
		return nil, false
	}
	return c.value, true
}

// declare ensures a cell exists for each name without overwriting values.
func (s *Store) declare(names ...string) {
	for _, name := range names {
		if _, ok := s.cells[name]; !ok {
			s.cells[name] = &cell{}
		}
	}
}

// Snapshot copies the named variables (all variables when none are given)
// into a fresh map. Values are copied shallowly; tasks that share mutable
// pointer values already sit outside the declared-access contract.
func (s *Store) Snapshot(names ...string) map[string]any {
	if len(names) == 0 {
		names = s.Names()
	}
	snap := make(map[string]any, len(names))
	for _, name := range names {
		if c, ok := s.cells[name]; ok {
			snap[name] = c.value
		}
	}
	return snap
}

// Restore writes a snapshot back into the store, creating missing cells.
func (s *Store) Restore(snap map[string]any) {
	for name, value := range snap {
		s.Set(name, value)
	}
}

// Names returns all variable names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.cells))
	for name := range s.cells {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TaskContext is the per-task capability handle a RunFunc receives. It
// resolves variable accesses against the System's store and, in strict mode,
// rejects accesses the task did not declare.
type TaskContext struct {
	store  *Store
	name   string
	reads  map[string]struct{}
	writes map[string]struct{}
	strict bool
}

// Get reads a shared variable. In strict mode the variable must appear in
// the task's declared read set.
func (tc *TaskContext) Get(name string) (any, error) {
	if tc.strict {
		if _, ok := tc.reads[name]; !ok {
			return nil, &UndeclaredAccessError{Task: tc.name, Var: name, Op: "read"}
		}
	}
	c, ok := tc.store.cells[name]
	if !ok {
		return nil, &UnknownVariableError{Task: tc.name, Var: name}
	}
	return c.value, nil
}

// Set writes a shared variable. In strict mode the variable must appear in
// the task's declared write set. Variables unknown to the whole system are
// rejected in every mode: creating cells mid-run would race on the map.
func (tc *TaskContext) Set(name string, value any) error {
	if tc.strict {
		if _, ok := tc.writes[name]; !ok {
			return &UndeclaredAccessError{Task: tc.name, Var: name, Op: "write"}
		}
	}
	c, ok := tc.store.cells[name]
	if !ok {
		return &UnknownVariableError{Task: tc.name, Var: name}
	}
	c.value = value
	return nil
}

// TaskName returns the name of the task this context belongs to.
func (tc *TaskContext) TaskName() string { return tc.name }
