package gateway

// WithIDGenerator sets the request id generator of the client.
func WithIDGenerator(f func() string) Option {
	return func(o *options) {
		o.newID = f
	}
}
