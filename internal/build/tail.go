package build

import (
	"bytes"
	"sync"
)

// maxPartial caps a line that has not seen its newline yet; only its last
// bytes are kept.
const maxPartial = 64 << 10

// tailWriter keeps the last n complete lines written to it, plus any
// trailing partial line.
type tailWriter struct {
	mu      sync.Mutex
	n       int
	lines   []string
	partial []byte
}

func newTailWriter(n int) *tailWriter {
	return &tailWriter{n: n}
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data := p
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			w.partial = append(w.partial, data...)
			if over := len(w.partial) - maxPartial; over > 0 {
				w.partial = append(w.partial[:0], w.partial[over:]...)
			}
			break
		}
		line := string(append(w.partial, data[:i]...))
		w.partial = w.partial[:0]
		w.push(line)
		data = data[i+1:]
	}
	return len(p), nil
}

func (w *tailWriter) push(line string) {
	if w.n == 0 {
		return
	}
	line = trimCR(line)
	if len(w.lines) == w.n {
		copy(w.lines, w.lines[1:])
		w.lines = w.lines[:w.n-1]
	}
	w.lines = append(w.lines, line)
}

// Lines returns the captured tail
func (w *tailWriter) Lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := append([]string{}, w.lines...)
	if len(w.partial) > 0 && w.n > 0 {
		out = append(out, trimCR(string(w.partial)))
		if len(out) > w.n {
			out = out[len(out)-w.n:]
		}
	}
	return out
}

func trimCR(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}
