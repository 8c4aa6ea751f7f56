package dashboard

import "time"

// WithNow sets the clock used for the visitor window.
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
