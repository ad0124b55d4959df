package download

import (
	"sync/atomic"

	"github.com/vk/launchcraft/internal/plan"
)

// State is the lifecycle position of one download task.
type State int32

const (
	Pending State = iota
	Verifying
	Fetching
	Verified
	Failed
)

// String returns the lowercase state name for logs and progress events.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Verifying:
		return "verifying"
	case Fetching:
		return "fetching"
	case Verified:
		return "verified"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Task pairs an artifact ref with its download lifecycle. Tasks exist only
// for the duration of one orchestrator run.
type Task struct {
	Ref plan.Ref

	state    atomic.Int32
	attempts int
	err      error

	// fetched is the byte count retrieved over the network; zero when the
	// local file verified without any fetch.
	fetched int64
}

// State returns the task's current lifecycle state.
func (t *Task) State() State {
	return State(t.state.Load())
}

func (t *Task) setState(s State) {
	t.state.Store(int32(s))
}

// Err returns the terminal error for a failed task.
func (t *Task) Err() error {
	return t.err
}

// Event is one progress notification. Events are emitted on every state
// transition; consumers render them however they like.
type Event struct {
	Ref     plan.Ref
	State   State
	Attempt int
	Bytes   int64
	Err     error
}

// ProgressFunc receives progress events. It may be called from multiple
// worker goroutines concurrently.
type ProgressFunc func(Event)
