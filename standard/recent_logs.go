// Package standard provides the diagnostics components every binding client
// carries: a bounded structured log and a connectivity tracker.
package standard

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LogLevel represents the severity of a log entry.
type LogLevel string

const (
	LevelError LogLevel = "ERROR"
	LevelWarn  LogLevel = "WARN"
	LevelInfo  LogLevel = "INFO"
	LevelDebug LogLevel = "DEBUG"
)

// LogEntry represents a single log entry.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
}

// LogStats counts the retained entries per level.
type LogStats struct {
	Total    int `json:"total_count"`
	Errors   int `json:"errors_count"`
	Warnings int `json:"warnings_count"`
	Info     int `json:"info_count"`
	Debug    int `json:"debug_count"`
	Max      int `json:"max_entries"`
}

// RecentLogs keeps the last N diagnostics and mirrors each one to a zap
// logger so they also reach the host's log stream.
type RecentLogs struct {
	mu         sync.Mutex
	entries    []LogEntry
	maxEntries int
	logger     *zap.Logger
}

// NewRecentLogs creates a ring of maxEntries (100 when <= 0). A nil logger
// discards the mirrored output.
func NewRecentLogs(maxEntries int, logger *zap.Logger) *RecentLogs {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecentLogs{
		entries:    make([]LogEntry, 0, maxEntries),
		maxEntries: maxEntries,
		logger:     logger,
	}
}

// Log records an entry. Context must be non-empty.
func (r *RecentLogs) Log(level LogLevel, message string, context map[string]any) {
	if len(context) == 0 {
		panic("RecentLogs.Log: context must be non-empty (use structured logging!)")
	}

	r.mu.Lock()
	r.entries = append(r.entries, LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Context:   context,
	})
	if len(r.entries) > r.maxEntries {
		r.entries = r.entries[len(r.entries)-r.maxEntries:]
	}
	r.mu.Unlock()

	fields := zapFields(context)
	switch level {
	case LevelError:
		r.logger.Error(message, fields...)
	case LevelWarn:
		r.logger.Warn(message, fields...)
	case LevelInfo:
		r.logger.Info(message, fields...)
	default:
		r.logger.Debug(message, fields...)
	}
}

// Error logs an error entry with context.
func (r *RecentLogs) Error(message string, context map[string]any) {
	r.Log(LevelError, message, context)
}

// Warn logs a warning entry with context.
func (r *RecentLogs) Warn(message string, context map[string]any) {
	r.Log(LevelWarn, message, context)
}

// Info logs an info entry with context.
func (r *RecentLogs) Info(message string, context map[string]any) {
	r.Log(LevelInfo, message, context)
}

// Debug logs a debug entry with context.
func (r *RecentLogs) Debug(message string, context map[string]any) {
	r.Log(LevelDebug, message, context)
}

// Entries returns a copy of the retained entries, oldest first.
func (r *RecentLogs) Entries() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LogEntry(nil), r.entries...)
}

// Stats counts retained entries per level.
func (r *RecentLogs) Stats() LogStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := LogStats{Total: len(r.entries), Max: r.maxEntries}
	for _, entry := range r.entries {
		switch entry.Level {
		case LevelError:
			stats.Errors++
		case LevelWarn:
			stats.Warnings++
		case LevelInfo:
			stats.Info++
		case LevelDebug:
			stats.Debug++
		}
	}
	return stats
}

// zapFields converts a context map to fields in key order, so output is stable.
func zapFields(context map[string]any) []zap.Field {
	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, context[k]))
	}
	return fields
}
