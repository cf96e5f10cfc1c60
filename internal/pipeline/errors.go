package pipeline

import "fmt"

// Error is a fatal failure of the decode loop at a given access unit.
type Error struct {
	Op       string
	Position uint32
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at access unit %d: %v", e.Op, e.Position, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
