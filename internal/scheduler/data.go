package scheduler

import "sync"

// TasksState is a bit-vector of length N: bit i is set once worker i has,
// in its current turn, observed an empty frontier. When every bit is set
// the pool has reached quiescence and terminates. Mutations are guarded
// by a mutex so set_idle/clear_all/all_idle are atomic relative to each
// other.
type TasksState struct {
	mu   sync.Mutex
	idle []bool
}

// NewTasksState builds a state vector for n workers, all initially active.
func NewTasksState(n int) *TasksState {
	return &TasksState{idle: make([]bool, n)}
}

// SetIdle marks worker i as having observed an empty frontier this turn.
func (t *TasksState) SetIdle(i int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.idle[i] = true
}

// ClearAll invalidates any pending termination consensus: at least one
// worker has found work again, so every bit resets to active.
func (t *TasksState) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.idle {
		t.idle[i] = false
	}
}

// AllIdle reports whether every worker is currently idle.
func (t *TasksState) AllIdle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, v := range t.idle {
		if !v {
			return false
		}
	}
	return true
}
