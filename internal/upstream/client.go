package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"identigraph/internal/domain"
)

// maxBodySize caps how much of an upstream response is read
const maxBodySize = 8 << 20

// HTTPClient is the subset of *http.Client used by fetchers
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a fetcher's connection to its upstream
type Options struct {
	// BaseURL overrides the upstream endpoint
	BaseURL string
	// Timeout bounds each call, DefaultTimeout when zero
	Timeout time.Duration
	// RateLimit is the sustained requests per second, 0 for unlimited
	RateLimit float64
	// Burst is the token bucket size, 1 when zero
	Burst int
	// HTTPClient overrides the transport, mainly for tests
	HTTPClient HTTPClient
	Logger     *zap.Logger
}

// requester performs classified JSON calls against one upstream
type requester struct {
	source  domain.DataSource
	client  HTTPClient
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

func newRequester(source domain.DataSource, opts Options) *requester {
	r := &requester{
		source:  source,
		client:  opts.HTTPClient,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
	if r.client == nil {
		r.client = http.DefaultClient
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.logger = r.logger.With(zap.String("source", string(source)))
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return r
}

// getJSON issues a GET and decodes the JSON response into out
func (r *requester) getJSON(ctx context.Context, url string, out any) error {
	return r.do(ctx, http.MethodGet, url, nil, out)
}

// postJSON issues a POST with a JSON body and decodes the response into out
func (r *requester) postJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return paramError(r.source, "encode request: %v", err)
	}
	return r.do(ctx, http.MethodPost, url, payload, out)
}

func (r *requester) do(ctx context.Context, method, url string, payload []byte, out any) (err error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(string(r.source)).Observe(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = string(KindOf(err))
		}
		requestsTotal.WithLabelValues(string(r.source), outcome).Inc()
	}()

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return &Error{Kind: KindTransportTimeout, Source: r.source, Message: "rate limit wait", Err: err}
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return paramError(r.source, "build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	r.logger.Debug("upstream request", zap.String("method", method), zap.String("url", url))

	resp, err := r.client.Do(req)
	if err != nil {
		return r.classifyTransport(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return r.classifyTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Kind:    KindUpstreamHTTP,
			Source:  r.source,
			Status:  resp.StatusCode,
			Message: errorMessage(data),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindMalformedResponse, Source: r.source, Err: err}
	}
	return nil
}

func (r *requester) classifyTransport(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTransportTimeout, Source: r.source, Err: err}
	}
	return &Error{Kind: KindTransport, Source: r.source, Err: err}
}

// errorMessage extracts a human-readable message from an error body. Upstreams
// disagree on the field name.
func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		for _, m := range []string{e.Message, e.Msg, e.Error} {
			if m != "" {
				return m
			}
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// recordFact increments the persisted-facts counter
func recordFact(source domain.DataSource, edge domain.EdgeType) {
	factsWritten.WithLabelValues(string(source), string(edge)).Inc()
}

// joinURL appends path to base without doubling slashes
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// wrapf annotates a classified error without losing its Kind
func wrapf(err error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
