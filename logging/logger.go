// Package logging provides structured JSON logging shared by all components.
package logging

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Logger is the structured logging interface used across the app center.
type Logger interface {
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
	Debug(msg string, fields map[string]any)
}

// JSONLogger writes one JSON object per log entry to an io.Writer.
type JSONLogger struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

// NewJSONLogger creates a JSONLogger writing to w. Debug entries are only
// emitted when verbose is true.
func NewJSONLogger(w io.Writer, verbose bool) *JSONLogger {
	return &JSONLogger{w: w, verbose: verbose}
}

func (l *JSONLogger) Info(msg string, fields map[string]any)  { l.log("info", msg, fields) }
func (l *JSONLogger) Warn(msg string, fields map[string]any)  { l.log("warn", msg, fields) }
func (l *JSONLogger) Error(msg string, fields map[string]any) { l.log("error", msg, fields) }

func (l *JSONLogger) Debug(msg string, fields map[string]any) {
	if !l.verbose {
		return
	}
	l.log("debug", msg, fields)
}

func (l *JSONLogger) log(level, msg string, fields map[string]any) {
	entry := make(map[string]any, len(fields)+3)
	entry["time"] = time.Now().UTC().Format(time.RFC3339)
	entry["level"] = level
	entry["msg"] = msg
	for k, v := range fields {
		entry[k] = v
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	data, _ := json.Marshal(entry)
	data = append(data, '\n')
	l.w.Write(data) //nolint:errcheck
}

// Nop discards every entry. Components constructed without a logger use it.
type Nop struct{}

func (Nop) Info(string, map[string]any)  {}
func (Nop) Warn(string, map[string]any)  {}
func (Nop) Error(string, map[string]any) {}
func (Nop) Debug(string, map[string]any) {}

// WithComponent returns a Logger that stamps a component field onto every
// entry before delegating to l.
func WithComponent(l Logger, name string) Logger {
	return componentLogger{l: l, name: name}
}

type componentLogger struct {
	l    Logger
	name string
}

func (c componentLogger) Info(msg string, fields map[string]any)  { c.l.Info(msg, c.merge(fields)) }
func (c componentLogger) Warn(msg string, fields map[string]any)  { c.l.Warn(msg, c.merge(fields)) }
func (c componentLogger) Error(msg string, fields map[string]any) { c.l.Error(msg, c.merge(fields)) }
func (c componentLogger) Debug(msg string, fields map[string]any) { c.l.Debug(msg, c.merge(fields)) }

func (c componentLogger) merge(fields map[string]any) map[string]any {
	m := make(map[string]any, len(fields)+1)
	m["component"] = c.name
	for k, v := range fields {
		m[k] = v
	}
	return m
}
