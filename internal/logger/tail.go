package logger

import (
	"bytes"
	"strings"
	"sync"
)

// maxPartial caps an unterminated line; older bytes are dropped.
const maxPartial = 64 << 10

// TailBuffer is an io.Writer that keeps only the last N complete lines written to it,
// plus any trailing partial line. It is safe for concurrent use.
type TailBuffer struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial []byte
}

// NewTailBuffer returns a buffer retaining at most n lines (n <= 0 uses DefaultTailLines).
func NewTailBuffer(n int) *TailBuffer {
	return &TailBuffer{max: valOr(n, DefaultTailLines)}
}

func (t *TailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	data := p
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			t.partial = overwriteCR(append(t.partial, data...))
			if over := len(t.partial) - maxPartial; over > 0 {
				t.partial = append(t.partial[:0], t.partial[over:]...)
			}
			break
		}
		line := bytesTrimCR(string(append(t.partial, data[:i]...)))
		if j := strings.LastIndexByte(line, '\r'); j >= 0 {
			line = line[j+1:]
		}
		t.partial = t.partial[:0]
		t.push(line)
		data = data[i+1:]
	}
	return len(p), nil
}

func (t *TailBuffer) push(line string) {
	t.lines = append(t.lines, line)
	if over := len(t.lines) - t.max; over > 0 {
		t.lines = append(t.lines[:0], t.lines[over:]...)
	}
}

// Lines returns a copy of the retained lines, oldest first.
func (t *TailBuffer) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.lines)+1)
	out = append(out, t.lines...)
	if len(t.partial) > 0 {
		out = append(out, string(t.partial))
		if len(out) > t.max {
			out = out[len(out)-t.max:]
		}
	}
	return out
}

// overwriteCR keeps only what follows the last carriage return, the way a
// terminal renders progress bars. A trailing CR is kept for a following LF.
func overwriteCR(b []byte) []byte {
	i := bytes.LastIndexByte(b[:max(len(b)-1, 0)], '\r')
	if i < 0 {
		return b
	}
	return append(b[:0], b[i+1:]...)
}

func bytesTrimCR(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\r' {
		return s[:n-1]
	}
	return s
}
