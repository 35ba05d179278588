package capture

import "fmt"

// Kind classifies a per-job capture failure.
type Kind int

const (
	NavigationError Kind = iota + 1
	SelectorNotFound
	WriteError
	BackendError
)

func (k Kind) String() string {
	switch k {
	case NavigationError:
		return "NavigationError"
	case SelectorNotFound:
		return "SelectorNotFound"
	case WriteError:
		return "WriteError"
	case BackendError:
		return "BackendError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a failure of one job. State is the pipeline state the job was in
// when it failed.
type Error struct {
	Kind  Kind
	State State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s while %s: %v", e.Kind, e.State, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
