package pipeline

import "fmt"

// UnsupportedError reports a function name or expression node kind that no
// handler or converter case recognizes. It is fatal for the expression being
// compiled and is never retried.
type UnsupportedError struct {
	// Name is the function name or node kind that was not recognized.
	Name string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported operation %q", e.Name)
}

// ArgumentError reports a function invoked with the wrong arity or an
// argument of the wrong shape. Arg is the zero-based argument index, or -1
// when the complaint is about the argument list as a whole.
type ArgumentError struct {
	Function string
	Arg      int
	Reason   string
}

func (e *ArgumentError) Error() string {
	if e.Arg < 0 {
		return fmt.Sprintf("invalid arguments to %s: %s", e.Function, e.Reason)
	}
	return fmt.Sprintf("invalid argument %d to %s: %s", e.Arg, e.Function, e.Reason)
}

// PreconditionError reports an operation executed against a state missing a
// required field. It indicates a converter or caller bug, not bad input.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition violated in %s: %s", e.Op, e.Reason)
}
