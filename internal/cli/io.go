package cli

import (
	"fmt"
	"io"
)

// IO bundles the streams a command reads from and writes to.
type IO struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// NewIO creates a new IO instance. in may be nil, which reads as empty.
func NewIO(in io.Reader, out, errOut io.Writer) *IO {
	return &IO{in: in, out: out, errOut: errOut}
}

// Println writes to stdout.
func (o *IO) Println(a ...any) {
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout.
func (o *IO) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// withoutInput returns a copy of o that reads nothing from stdin. The shell
// uses it so commands cannot consume the shell's own input.
func (o *IO) withoutInput() *IO {
	return &IO{out: o.out, errOut: o.errOut}
}

// toErr returns a copy of o whose stdout is stderr, for usage text printed
// alongside an error.
func (o *IO) toErr() *IO {
	return &IO{in: o.in, out: o.errOut, errOut: o.errOut}
}
