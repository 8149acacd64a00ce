package streams

// IO bundles the three standard streams so commands can be pointed at
// buffers in tests. Modeled on k8s.io/cli-runtime genericclioptions.IOStreams.

import (
	"bytes"
	"io"
	"os"
)

// IO holds the streams a command reads from and writes to. Summaries and
// catalog output go to Out, logs go to ErrOut.
type IO struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

// NewTestIO returns an IO backed by buffers, along with the buffers
func NewTestIO() (IO, *bytes.Buffer, *bytes.Buffer, *bytes.Buffer) {
	in := &bytes.Buffer{}
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	return IO{
		In:     in,
		Out:    out,
		ErrOut: errOut,
	}, in, out, errOut
}

// NewStdIO returns an IO for the process streams
func NewStdIO() IO {
	return IO{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}
