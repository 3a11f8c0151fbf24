package logging

import (
	"strings"
	"sync"
	"time"
)

// LineCapture remembers the last line written to it. It backs the
// /api/log endpoints.
type LineCapture struct {
	mu   sync.RWMutex
	line string
	at   time.Time
	seq  uint64
}

var (
	// LogCapture receives every INFO+ record of the server logger.
	LogCapture = &LineCapture{}
	// EventCapture receives every line written by LogEvent.
	EventCapture = &LineCapture{}
)

// Write implements io.Writer. Trailing newlines are dropped.
func (c *LineCapture) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\r\n")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.line = line
	c.at = time.Now()
	c.seq++
	return len(p), nil
}

// Line is a captured line. Seq increases with every write so pollers can
// tell a repeated message from a new one.
type Line struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
	Seq  uint64    `json:"seq"`
}

// Last returns the most recent line.
func (c *LineCapture) Last() Line {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Line{Text: c.line, At: c.at, Seq: c.seq}
}
