// Package persistence writes the reproducibility dumps: XYZ trajectories
// and whitespace-delimited numeric tables.
package persistence

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/sanonone/simspace/pkg/structure"
)

// TrajectoryLogger appends XYZ frames to a file. It must be closed on every
// exit path; Close flushes the buffer before releasing the handle.
type TrajectoryLogger struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	path    string
	comment string
	frames  int
	closed  bool
}

// NewTrajectoryLogger creates (or truncates) the trajectory file at path.
func NewTrajectoryLogger(path string) (*TrajectoryLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open trajectory file: %w", err)
	}
	return &TrajectoryLogger{
		file: file,
		buf:  bufio.NewWriter(file),
		path: path,
	}, nil
}

// SetComment sets the text appended to the title line of later frames.
func (t *TrajectoryLogger) SetComment(comment string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.comment = comment
}

// LogFrame appends one frame with the current positions of s.
func (t *TrajectoryLogger) LogFrame(s *structure.Structure) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if err := structure.WriteXYZ(t.buf, s, fmt.Sprintf("frame=%d %s", t.frames, t.comment)); err != nil {
		return fmt.Errorf("failed to write trajectory frame %d: %w", t.frames, err)
	}
	t.frames++
	return nil
}

// Frames returns the number of frames logged so far.
func (t *TrajectoryLogger) Frames() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

// Flush forces the buffer contents to be written to the file descriptor.
func (t *TrajectoryLogger) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	return t.buf.Flush()
}

// Close flushes and closes the underlying file. Closing twice is a no-op.
func (t *TrajectoryLogger) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.buf.Flush(); err != nil {
		_ = t.file.Close()
		return err
	}
	return t.file.Close()
}

// Path returns the file path.
func (t *TrajectoryLogger) Path() string {
	return t.path
}
