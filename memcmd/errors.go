package memcmd

import "fmt"

// OpError is the error returned by a failed add-block operation. State is
// the step at which the operation failed, Err wraps one of the sentinel
// errors of the mem and addr packages.
type OpError struct {
	Name  string
	State State
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("add block %q: %s: %v", e.Name, e.State, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
