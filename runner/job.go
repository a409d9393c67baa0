package runner

import (
	"github.com/hollowcore/gjobq/codec"
)

// State is a job's position in the lifecycle of spec.md §4.9 and §9.
type State int

const (
	StateCreated State = iota
	StateSubmitted
	StateRunning
	StateSucceeded
	StateFailed
	StateTimedOut
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSubmitted:
		return "submitted"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Job is one in-flight job attempt sequence: the data a Runner threads
// through its retry loop and exposes to middleware and extension hooks.
type Job struct {
	GJSID        string
	QueueHandle  string
	FunctionName string
	Args         codec.Dict
	Attempt      int
	LogPath      string
	State        State
}
