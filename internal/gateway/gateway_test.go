package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/ubuntu/societyhub/internal/gateway"
	"github.com/ubuntu/societyhub/internal/normalize"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := gateway.Config{URL: "https://gw.example.com/api/rest/Invoke", AuthKey: "A", HostKey: "H"}

	tests := map[string]struct {
		change func(c *gateway.Config)

		wantErr bool
	}{
		"Valid":             {change: func(c *gateway.Config) {}},
		"Valid with limits": {change: func(c *gateway.Config) { c.Timeout = time.Second; c.RateLimit = 0.5 }},

		"Missing URL":         {change: func(c *gateway.Config) { c.URL = "" }, wantErr: true},
		"Relative URL":        {change: func(c *gateway.Config) { c.URL = "/api/rest/Invoke" }, wantErr: true},
		"Malformed URL":       {change: func(c *gateway.Config) { c.URL = "http://bad host:1234" }, wantErr: true},
		"Missing auth key":    {change: func(c *gateway.Config) { c.AuthKey = "" }, wantErr: true},
		"Missing host key":    {change: func(c *gateway.Config) { c.HostKey = "" }, wantErr: true},
		"Negative timeout":    {change: func(c *gateway.Config) { c.Timeout = -time.Second }, wantErr: true},
		"Negative rate limit": {change: func(c *gateway.Config) { c.RateLimit = -1 }, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := valid
			tc.change(&c)
			err := c.Validate()
			if tc.wantErr {
				require.ErrorIs(t, err, gateway.ErrInvalidConfig)
				_, err = gateway.New(c)
				require.ErrorIs(t, err, gateway.ErrInvalidConfig, "New should refuse an invalid configuration")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	c, err := gateway.New(gateway.Config{URL: "https://gw.example.com/api/rest/Invoke", AuthKey: "A", HostKey: "H"})
	require.NoError(t, err)
	require.Equal(t, 15*time.Second, c.Config().Timeout, "Default timeout should be 15 seconds")
}

type received struct {
	method      string
	contentType string
	requestID   string
	form        map[string]string
}

func TestInvoke(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		object         string
		values         *gateway.Values
		serverStatus   int
		serverBody     string
		serverDelay    time.Duration
		timeout        time.Duration
		noServer       bool
		cancelBeforeGo bool

		want       normalize.Records
		wantValues string
		wantErr    error
		wantAnyErr bool
		wantNoCall bool
	}{
		"Data envelope": {
			object: "UNM_SP_Unit_Get", values: (&gateway.Values{}).Set("@UserID", "5").Null("@UnitID"),
			serverBody: `{"Data":[{"UnitID":1,"UnitName":"A-101"}]}`,
			want:       normalize.Records{map[string]any{"UnitID": json.Number("1"), "UnitName": "A-101"}},
			wantValues: "@UserID=5,@UnitID=NULL",
		},
		"Bare array":      {object: "X", serverBody: `[{"a":"b"}]`, want: normalize.Records{map[string]any{"a": "b"}}},
		"Unknown shape":   {object: "X", serverBody: `"OK"`, want: normalize.Records{}},
		"No values":       {object: "X", values: nil, serverBody: `[]`, want: normalize.Records{}, wantValues: ""},
		"Created status":  {object: "X", serverStatus: http.StatusCreated, serverBody: `{"result":[]}`, want: normalize.Records{}},
		"Nested envelope": {object: "X", serverBody: `{"status":1,"rows":[{"a":"b"}]}`, want: normalize.Records{map[string]any{"a": "b"}}},

		"Empty object name": {object: " ", wantAnyErr: true, wantNoCall: true},
		"Server error":      {object: "X", serverStatus: http.StatusInternalServerError, serverBody: "boom", wantErr: gateway.ErrStatus},
		"Forbidden":         {object: "X", serverStatus: http.StatusForbidden, wantErr: gateway.ErrStatus},
		"Invalid JSON":      {object: "X", serverBody: `<html>down</html>`, wantErr: gateway.ErrDecode},
		"No server":         {object: "X", noServer: true, wantErr: gateway.ErrTransport, wantNoCall: true},
		"Timeout":           {object: "X", serverDelay: 2 * time.Second, timeout: 50 * time.Millisecond, wantErr: gateway.ErrTransport},
		"Canceled":          {object: "X", cancelBeforeGo: true, wantErr: gateway.ErrCanceled, wantNoCall: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var mu sync.Mutex
			var calls []received
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				form := make(map[string]string)
				if parsed, err := url.ParseQuery(string(body)); err == nil {
					for k := range parsed {
						form[k] = parsed.Get(k)
					}
				}
				mu.Lock()
				calls = append(calls, received{method: r.Method, contentType: r.Header.Get("Content-Type"), requestID: r.Header.Get("X-Request-ID"), form: form})
				mu.Unlock()

				if tc.serverDelay > 0 {
					select {
					case <-time.After(tc.serverDelay):
					case <-r.Context().Done():
						return
					}
				}
				status := tc.serverStatus
				if status == 0 {
					status = http.StatusOK
				}
				w.WriteHeader(status)
				_, _ = w.Write([]byte(tc.serverBody))
			}))
			t.Cleanup(ts.Close)

			url := ts.URL + "/api/rest/Invoke"
			if tc.noServer {
				ts.Close()
			}

			c, err := gateway.New(gateway.Config{URL: url, AuthKey: "auth-key", HostKey: "host-key", Timeout: tc.timeout},
				gateway.WithIDGenerator(func() string { return "req-1" }))
			require.NoError(t, err, "Setup: could not create client")

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tc.cancelBeforeGo {
				cancel()
			}

			got, err := c.Invoke(ctx, tc.object, tc.values)

			mu.Lock()
			defer mu.Unlock()
			if tc.wantNoCall {
				require.Empty(t, calls, "Gateway should not have been called")
			} else {
				require.Len(t, calls, 1, "Gateway should have been called once")
				call := calls[0]
				require.Equal(t, http.MethodPost, call.method)
				require.Equal(t, "application/x-www-form-urlencoded", call.contentType)
				require.Equal(t, "req-1", call.requestID)
				require.Equal(t, map[string]string{
					"AuthKey": "auth-key",
					"HostKey": "host-key",
					"Object":  strings.TrimSpace(tc.object),
					"Values":  tc.values.String(),
				}, call.form)
				if tc.wantValues != "" {
					require.Equal(t, tc.wantValues, call.form["Values"])
				}
			}

			if tc.wantAnyErr {
				require.Error(t, err)
				return
			}
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				if errors.Is(tc.wantErr, gateway.ErrCanceled) {
					require.ErrorIs(t, err, context.Canceled, "Cancellation should keep the context cause")
				}
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 500)))
	}))
	t.Cleanup(ts.Close)

	c, err := gateway.New(gateway.Config{URL: ts.URL, AuthKey: "A", HostKey: "H"})
	require.NoError(t, err, "Setup: could not create client")

	_, err = c.Invoke(context.Background(), "X", nil)
	var se *gateway.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusBadGateway, se.Code)
	require.Equal(t, "X", se.Object)
	require.Len(t, se.Body, 203, "Body should be truncated")
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(ts.Close)

	c, err := gateway.New(gateway.Config{URL: ts.URL, AuthKey: "A", HostKey: "H", RateLimit: 0.001})
	require.NoError(t, err, "Setup: could not create client")

	_, err = c.Invoke(context.Background(), "X", nil)
	require.NoError(t, err, "First call should use the burst")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err = c.Invoke(ctx, "X", nil)
	require.ErrorIs(t, err, gateway.ErrCanceled, "Second call should wait for the limiter until canceled")
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(readBody(r), "Object=BAD") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"Data":[]}`))
	}))
	t.Cleanup(ts.Close)

	reg := prometheus.NewRegistry()
	cfg := gateway.Config{URL: ts.URL, AuthKey: "A", HostKey: "H"}
	c, err := gateway.New(cfg, gateway.WithRegisterer(reg))
	require.NoError(t, err, "Setup: could not create client")
	// A second client on the same registry shares the collectors.
	c2, err := gateway.New(cfg, gateway.WithRegisterer(reg))
	require.NoError(t, err, "Setup: could not create second client")

	_, err = c.Invoke(context.Background(), "GOOD", nil)
	require.NoError(t, err)
	_, err = c2.Invoke(context.Background(), "GOOD", nil)
	require.NoError(t, err)
	_, err = c.Invoke(context.Background(), "BAD", nil)
	require.Error(t, err)

	n, err := testutil.GatherAndCount(reg, "societyhub_gateway_requests_total")
	require.NoError(t, err)
	require.Equal(t, 2, n, "Expected one series per status code")

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP societyhub_gateway_invocations_total Tracks stored procedure invocations by procedure and outcome.
# TYPE societyhub_gateway_invocations_total counter
societyhub_gateway_invocations_total{object="BAD",outcome="status"} 1
societyhub_gateway_invocations_total{object="GOOD",outcome="success"} 2
`), "societyhub_gateway_invocations_total"))
}

func readBody(r *http.Request) string {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return ""
	}
	return string(b)
}
