package githubapi

import (
	"fmt"
	"net/http"

	"github.com/cam3ron2/classroom-stats/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HTTPDoer is implemented by http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CallMetadata reports execution metadata for one or more client calls.
type CallMetadata struct {
	Requests        int
	LastStatusCode  int
	LastRateHeaders RateLimitHeaders
}

// Client issues GitHub HTTP requests and records rate-limit headers.
//
// Requests are attempted exactly once; transport errors are returned to the
// caller unchanged.
type Client struct {
	doer HTTPDoer
}

// NewClient creates a GitHub API client wrapper.
func NewClient(doer HTTPDoer) *Client {
	return &Client{doer: doer}
}

// Do executes one request.
func (c *Client) Do(req *http.Request) (*http.Response, CallMetadata, error) {
	if req == nil {
		return nil, CallMetadata{}, fmt.Errorf("request is nil")
	}
	if c == nil || c.doer == nil {
		return nil, CallMetadata{}, fmt.Errorf("request client is not initialized")
	}

	ctx := req.Context()
	var span trace.Span
	if telemetry.ShouldTraceDependencies() {
		ctx, span = otel.Tracer("classroom-stats/internal/githubapi").Start(
			ctx,
			"githubapi.client.do",
			trace.WithAttributes(
				attribute.String("http.method", req.Method),
				attribute.String("http.path", req.URL.EscapedPath()),
			),
		)
		defer span.End()
	}

	metadata := CallMetadata{Requests: 1}
	resp, err := c.doer.Do(req.WithContext(ctx))
	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, metadata, err
	}

	headers := ParseRateLimitHeaders(resp.Header, resp.StatusCode)
	metadata.LastStatusCode = resp.StatusCode
	metadata.LastRateHeaders = headers

	if span != nil {
		span.SetAttributes(
			attribute.Int("http.status_code", resp.StatusCode),
			attribute.Int("github.rate_limit_remaining", headers.Remaining),
			attribute.Int64("github.rate_limit_reset_unix", headers.ResetUnix),
		)
		if resp.StatusCode >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, fmt.Sprintf("status %d", resp.StatusCode))
		} else {
			span.SetStatus(codes.Ok, "request completed")
		}
	}
	return resp, metadata, nil
}

// Merge adds incoming to m. The last status and rate headers come from
// incoming unless it made no request.
func (m CallMetadata) Merge(incoming CallMetadata) CallMetadata {
	if incoming.Requests == 0 {
		return m
	}
	m.Requests += incoming.Requests
	m.LastStatusCode = incoming.LastStatusCode
	m.LastRateHeaders = incoming.LastRateHeaders
	return m
}
