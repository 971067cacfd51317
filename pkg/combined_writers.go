package pkg

import (
	"io"

	"go.uber.org/multierr"
)

// CombinedWriter fans each write out to all of its writers, e.g. stdout and the rotating log file.
// A failing writer does not stop the others.
type CombinedWriter struct {
	Writers []io.Writer
}

func NewCombinedWriter(writers ...io.Writer) *CombinedWriter {
	return &CombinedWriter{
		Writers: append([]io.Writer(nil), writers...),
	}
}

// Write reports len(p) only if every writer took all of p. Otherwise it returns the
// smallest count written and the errors of all writers that fell short.
func (cw *CombinedWriter) Write(p []byte) (int, error) {
	n := len(p)
	var err error
	for _, w := range cw.Writers {
		written, werr := w.Write(p)
		if werr == nil && written < len(p) {
			werr = io.ErrShortWrite
		}
		if werr != nil {
			err = multierr.Append(err, werr)
		}
		n = min(n, written)
	}
	return n, err
}
