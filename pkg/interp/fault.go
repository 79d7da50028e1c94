package interp

import "fmt"

// Fault represents an execution invariant violation: division by zero,
// negative shift, stack over/underflow, an out-of-range branch or constant
// or local index, a negative newarray size, or an unrecognized opcode.
// Spec §7 treats bytecode as trusted input — these are fatal, not
// recoverable, so they are raised as panics inside the dispatch loop and
// converted back into a single returned error at Execute's boundary.
type Fault struct {
	msg string
}

func (f *Fault) Error() string {
	return "interp: " + f.msg
}

func newFault(format string, args ...any) *Fault {
	return &Fault{msg: fmt.Sprintf(format, args...)}
}

func raise(format string, args ...any) {
	panic(newFault(format, args...))
}
