// Package gateway implements the client of the society management gateway.
//
// The gateway fronts every stored procedure behind a single Invoke endpoint, called with a form
// encoded POST carrying the credentials, the procedure name and its positional parameters.
// Responses are JSON, whose envelope is normalized before being handed back.
package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ubuntu/societyhub/internal/constants"
	"golang.org/x/time/rate"
)

var (
	// ErrInvalidConfig is returned when the gateway configuration is incomplete.
	ErrInvalidConfig = errors.New("invalid gateway configuration")
	// ErrTransport is returned when the gateway could not be reached or did not answer in time.
	ErrTransport = errors.New("gateway unreachable")
	// ErrStatus is returned when the gateway answered with a non 2xx status code.
	ErrStatus = errors.New("gateway returned an error status")
	// ErrDecode is returned when the gateway answer is not valid JSON.
	ErrDecode = errors.New("gateway returned an invalid payload")
	// ErrCanceled is returned when the call was canceled by the caller. It is not a failure.
	ErrCanceled = errors.New("gateway call canceled")
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 32 << 20

// Config is the explicit configuration of a gateway client.
type Config struct {
	// URL is the full address of the Invoke endpoint.
	URL string `mapstructure:"url" toml:"url" yaml:"url"`
	// AuthKey is the static credential of the application.
	AuthKey string `mapstructure:"authkey" toml:"auth_key" yaml:"authkey"`
	// HostKey identifies the society (tenant) on the gateway.
	HostKey string `mapstructure:"hostkey" toml:"host_key" yaml:"hostkey"`
	// Timeout bounds a single round trip. Zero means the default of 15 seconds.
	Timeout time.Duration `mapstructure:"timeout" toml:"timeout,omitempty" yaml:"timeout"`
	// RateLimit is the maximum number of calls per second. Zero means unlimited.
	RateLimit float64 `mapstructure:"ratelimit" toml:"rate_limit,omitempty" yaml:"ratelimit"`
}

// Validate checks that every required field of the configuration is set.
func (c Config) Validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("missing URL"))
	} else if u, err := url.Parse(c.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("malformed URL %q", c.URL))
	}
	if c.AuthKey == "" {
		errs = append(errs, errors.New("missing auth key"))
	}
	if c.HostKey == "" {
		errs = append(errs, errors.New("missing host key"))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("negative timeout %s", c.Timeout))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("negative rate limit %v", c.RateLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Client calls stored procedures on the gateway.
// It holds no state between calls and is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	metrics *clientMetrics
	newID   func() string
}

type options struct {
	httpClient *http.Client
	registerer prometheus.Registerer
	newID      func() string
}

// Option overrides a Client default.
type Option func(*options)

// WithHTTPClient uses a specific HTTP client. Its Timeout is left untouched: the per call
// timeout is carried by the request context.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithRegisterer instruments the client with Prometheus collectors registered on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// New returns a Client for the given configuration.
func New(cfg Config, args ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = constants.DefaultTimeout
	}

	opts := options{
		httpClient: &http.Client{},
		newID:      uuid.NewString,
	}
	for _, opt := range args {
		opt(&opts)
	}

	c := &Client{
		cfg:   cfg,
		newID: opts.newID,
	}

	httpClient := *opts.httpClient
	if opts.registerer != nil {
		m, err := newClientMetrics(opts.registerer)
		if err != nil {
			return nil, fmt.Errorf("could not register gateway metrics: %v", err)
		}
		c.metrics = m
		httpClient.Transport = m.instrument(httpClient.Transport)
	}
	c.http = &httpClient

	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	slog.Debug("Created gateway client", "url", cfg.URL, "timeout", cfg.Timeout, "rateLimit", cfg.RateLimit)
	return c, nil
}

// Config returns the configuration of the client, with defaults applied.
func (c *Client) Config() Config {
	return c.cfg
}
