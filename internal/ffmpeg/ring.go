package ffmpeg

import (
	"bytes"
	"sync"
)

// RingBuffer keeps the last N lines written to it. It is an io.Writer so it
// can sit directly on a command's stdout and stderr.
type RingBuffer struct {
	mu      sync.Mutex
	lines   []string
	pos     int
	full    bool
	partial []byte
}

func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1
	}
	return &RingBuffer{lines: make([]string, size)}
}

func (r *RingBuffer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := append(r.partial, p...)
	for {
		i := bytes.IndexAny(data, "\r\n")
		if i < 0 {
			break
		}
		if i > 0 {
			r.add(string(data[:i]))
		}
		data = data[i+1:]
	}
	r.partial = append(r.partial[:0:0], data...)
	return len(p), nil
}

func (r *RingBuffer) add(line string) {
	r.lines[r.pos] = line
	r.pos = (r.pos + 1) % len(r.lines)
	if r.pos == 0 {
		r.full = true
	}
}

// Lines returns retained lines oldest first, including an unterminated last line.
func (r *RingBuffer) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	if !r.full {
		out = append(out, r.lines[:r.pos]...)
	} else {
		out = make([]string, 0, len(r.lines)+1)
		out = append(out, r.lines[r.pos:]...)
		out = append(out, r.lines[:r.pos]...)
	}
	if len(r.partial) > 0 {
		out = append(out, string(r.partial))
	}
	return out
}
