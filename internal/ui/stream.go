package ui

import (
	"fmt"
	"io"
	"sync"
)

// LineWriter prefixes each complete line of build output with a colored
// [package] tag so interleaved parallel build logs stay attributable.
// It implements io.Writer.
type LineWriter struct {
	prefix string
	dest   io.Writer
	mu     *sync.Mutex
	buf    []byte
}

// NewLineWriter creates a LineWriter that prefixes output with [pkg].
// The mutex serializes writers sharing a destination.
func NewLineWriter(pkg string, dest io.Writer, mu *sync.Mutex) *LineWriter {
	return &LineWriter{
		prefix: PkgPrefix(pkg) + " ",
		dest:   dest,
		mu:     mu,
	}
}

func (lw *LineWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	lw.buf = append(lw.buf, p...)
	for {
		idx := -1
		for i, b := range lw.buf {
			if b == '\n' {
				idx = i
				break
			}
		}
		if idx == -1 {
			break
		}
		line := string(lw.buf[:idx])
		lw.buf = lw.buf[idx+1:]
		fmt.Fprintf(lw.dest, "  %s%s\n", lw.prefix, line)
	}
	return len(p), nil
}

// Flush writes any buffered partial line.
func (lw *LineWriter) Flush() {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if len(lw.buf) > 0 {
		fmt.Fprintf(lw.dest, "  %s%s\n", lw.prefix, string(lw.buf))
		lw.buf = nil
	}
}
