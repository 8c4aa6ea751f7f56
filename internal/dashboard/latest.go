package dashboard

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by a run which was replaced by a newer one before it completed.
var ErrSuperseded = errors.New("superseded by a newer request")

// Latest keeps only the most recent of a series of runs: starting a run cancels the previous
// one, and the result of a run which was replaced is discarded.
// The zero Latest is ready to use.
type Latest struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelCauseFunc
}

// Run runs f under l, canceling any run still in progress.
// If another run starts before f returns, the result of f is dropped and ErrSuperseded is returned.
func Run[T any](ctx context.Context, l *Latest, f func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel(ErrSuperseded)
	}
	l.gen++
	gen := l.gen
	l.cancel = cancel
	l.mu.Unlock()

	v, err := f(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		var zero T
		return zero, ErrSuperseded
	}
	l.cancel = nil
	return v, err
}

// Cancel cancels the run in progress, if any, with cause. Its result is discarded.
func (l *Latest) Cancel(cause error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel(cause)
		l.cancel = nil
	}
	l.gen++
}
