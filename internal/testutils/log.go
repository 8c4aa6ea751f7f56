package testutils

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// MockHandler is a slog.Handler keeping the records it handles. It is safe for concurrent use.
type MockHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

// NewMockHandler returns a MockHandler accepting every level.
func NewMockHandler() *MockHandler {
	return &MockHandler{}
}

// Enabled implements Handler.Enabled.
func (h *MockHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle implements Handler.Handle.
func (h *MockHandler) Handle(_ context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record.Clone())
	return nil
}

// WithAttrs implements Handler.WithAttrs. Attributes are dropped.
func (h *MockHandler) WithAttrs([]slog.Attr) slog.Handler {
	return h
}

// WithGroup implements Handler.WithGroup. Groups are dropped.
func (h *MockHandler) WithGroup(string) slog.Handler {
	return h
}

// Records returns the handled records, in order.
func (h *MockHandler) Records() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.records)
}

// Count returns how many records of exactly the given level were handled.
func (h *MockHandler) Count(level slog.Level) int {
	var n int
	for _, r := range h.Records() {
		if r.Level == level {
			n++
		}
	}
	return n
}
