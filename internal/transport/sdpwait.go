package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrSDPTimeout is returned when the pump has not produced a complete SDP
// file within the wait timeout.
var ErrSDPTimeout = errors.New("timed out waiting for sdp file")

// WaitForSDPFile blocks until path holds a parseable session description and
// returns its lines. Readiness is decided by the content, not by elapsed
// time: the directory is watched and the file re-checked on every event,
// with a final check when timeout expires. done, if non-nil, aborts the wait
// early (the pump exited before writing).
func WaitForSDPFile(ctx context.Context, path string, timeout time.Duration, done <-chan struct{}) ([]string, error) {
	if lines, ok := readSDPFile(path); ok {
		return lines, nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	// The file may have appeared between the first check and Add.
	if lines, ok := readSDPFile(path); ok {
		return lines, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	name := filepath.Clean(path)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil, ErrSDPTimeout
			}
			if filepath.Clean(ev.Name) != name || ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if lines, ok := readSDPFile(path); ok {
				return lines, nil
			}
		case err, ok := <-w.Errors:
			if ok && err != nil {
				return nil, fmt.Errorf("watch sdp file: %w", err)
			}
		case <-done:
			if lines, ok := readSDPFile(path); ok {
				return lines, nil
			}
			return nil, fmt.Errorf("pump exited before writing %s", filepath.Base(path))
		case <-timer.C:
			if lines, ok := readSDPFile(path); ok {
				return lines, nil
			}
			return nil, fmt.Errorf("%w: %s", ErrSDPTimeout, filepath.Base(path))
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// readSDPFile reports ok once the file exists, parses, and every media
// section carries its rtpmap. A pump writing the file in pieces can leave an
// m= line without its attributes.
func readSDPFile(path string) ([]string, bool) {
	b, err := os.ReadFile(path)
	if err != nil || len(b) == 0 {
		return nil, false
	}
	desc, err := ParseSDP(b)
	if err != nil || len(desc.MediaDescriptions) == 0 {
		return nil, false
	}
	for _, m := range desc.MediaDescriptions {
		if _, ok := m.Attribute("rtpmap"); !ok {
			return nil, false
		}
	}
	return splitLines(string(b)), true
}
