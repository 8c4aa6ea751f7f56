package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ubuntu/societyhub/internal/normalize"
)

// Invoke calls a stored procedure and returns the rows of its answer.
//
// An answer without any recognizable rows gives empty Records, not an error.
func (c *Client) Invoke(ctx context.Context, object string, values *Values) (normalize.Records, error) {
	body, err := c.InvokeRaw(ctx, object, values)
	if err != nil {
		return nil, err
	}

	records, err := normalize.Decode(body)
	if err != nil {
		c.metrics.observe(object, outcomeDecode)
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, object, err)
	}
	c.metrics.observe(object, outcomeSuccess)

	slog.Debug("Gateway answered", "object", object, "records", len(records))
	return records, nil
}

// InvokeRaw calls a stored procedure and returns the raw answer body.
func (c *Client) InvokeRaw(ctx context.Context, object string, values *Values) ([]byte, error) {
	object = strings.TrimSpace(object)
	if object == "" {
		return nil, errors.New("stored procedure name cannot be empty")
	}

	id := c.newID()
	log := slog.With("object", object, "request", id)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				c.metrics.observe(object, outcomeCanceled)
				return nil, canceled(ctx, object)
			}
			c.metrics.observe(object, outcomeTransport)
			return nil, fmt.Errorf("%w: %s: rate limiter: %v", ErrTransport, object, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	form := url.Values{}
	form.Set("AuthKey", c.cfg.AuthKey)
	form.Set("HostKey", c.cfg.HostKey)
	form.Set("Object", object)
	form.Set("Values", values.String())

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", id)

	log.Debug("Calling gateway", "values", values.String())
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Debug("Gateway call canceled")
			c.metrics.observe(object, outcomeCanceled)
			return nil, canceled(ctx, object)
		}
		c.metrics.observe(object, outcomeTransport)
		if callCtx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: no answer after %s", ErrTransport, object, c.cfg.Timeout)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrTransport, object, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.metrics.observe(object, outcomeCanceled)
			return nil, canceled(ctx, object)
		}
		c.metrics.observe(object, outcomeTransport)
		return nil, fmt.Errorf("%w: %s: failed to read answer: %v", ErrTransport, object, err)
	}
	log.Debug("Gateway call done", "status", resp.StatusCode, "duration", time.Since(start), "bytes", len(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.observe(object, outcomeStatus)
		return nil, &StatusError{Object: object, Code: resp.StatusCode, Body: snippet(body)}
	}

	return body, nil
}

// StatusError is returned when the gateway answers with a non 2xx status code.
// It matches ErrStatus with errors.Is.
type StatusError struct {
	Object string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v: %s: %d %s", ErrStatus, e.Object, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%v: %s: %d %s: %s", ErrStatus, e.Object, e.Code, http.StatusText(e.Code), e.Body)
}

// Is makes StatusError match ErrStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// canceled wraps both ErrCanceled and the context cause.
func canceled(ctx context.Context, object string) error {
	return fmt.Errorf("%w: %s: %w", ErrCanceled, object, context.Cause(ctx))
}

// snippet keeps the start of an error body for diagnostics.
func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
