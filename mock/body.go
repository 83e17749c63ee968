package mock

import (
	"io"
	"sync/atomic"
)

// Body is an io.ReadCloser that returns Chunks one Read at a time and then
// Err (io.EOF when nil). It records whether Close was called.
type Body struct {
	Chunks []string
	Err    error

	i      int
	closed atomic.Bool
}

// Read returns the next chunk. A chunk larger than p is split across reads.
func (b *Body) Read(p []byte) (int, error) {
	for b.i < len(b.Chunks) && b.Chunks[b.i] == "" {
		b.i++
	}
	if b.i >= len(b.Chunks) {
		if b.Err != nil {
			return 0, b.Err
		}
		return 0, io.EOF
	}
	n := copy(p, b.Chunks[b.i])
	b.Chunks[b.i] = b.Chunks[b.i][n:]
	return n, nil
}

// Close marks the body closed.
func (b *Body) Close() error {
	b.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (b *Body) Closed() bool { return b.closed.Load() }
