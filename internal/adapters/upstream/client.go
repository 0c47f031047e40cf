// Package upstream is the shared outbound JSON client used by the CMS and
// routing adapters.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/pinmap/internal/pkg/telemetry"
)

const maxErrorBody = 512

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream status %d", e.Status)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

// Client performs GET requests and decodes JSON bodies.
type Client struct {
	http      *fasthttp.Client
	timeout   time.Duration
	userAgent string
}

// New creates a client whose requests never outlive timeout.
func New(name string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: &fasthttp.Client{
			Name:                name,
			MaxConnsPerHost:     64,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
		timeout:   timeout,
		userAgent: name,
	}
}

// GetJSON fetches rawURL and decodes the body into dst. The response headers
// are returned so callers can read pagination metadata.
func (c *Client) GetJSON(ctx context.Context, op, rawURL string, dst any) (hdr http.Header, err error) {
	ctx, span := telemetry.StartSpan(ctx, op,
		attribute.String("http.method", fasthttp.MethodGet),
		attribute.String("http.url", Redact(rawURL)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	req.SetRequestURI(rawURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	req.Header.SetUserAgent(c.userAgent)

	done := make(chan error, 1)
	go func() { done <- c.http.DoDeadline(req, resp, c.deadline(ctx)) }()

	select {
	case <-ctx.Done():
		// The request still owns req and resp until DoDeadline returns.
		go func() {
			<-done
			release(req, resp)
		}()
		return nil, ctx.Err()
	case err = <-done:
	}
	defer release(req, resp)

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	status := resp.StatusCode()
	span.SetAttributes(attribute.Int("http.status_code", status))
	if status < 200 || status > 299 {
		body := resp.Body()
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{Status: status, Body: string(body)}
	}

	hdr = make(http.Header)
	resp.Header.VisitAll(func(k, v []byte) {
		hdr.Add(string(k), string(v))
	})

	if err := json.Unmarshal(resp.Body(), dst); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	return hdr, nil
}

func (c *Client) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}

func release(req *fasthttp.Request, resp *fasthttp.Response) {
	fasthttp.ReleaseRequest(req)
	fasthttp.ReleaseResponse(resp)
}

// Redact hides credentials carried in the query string.
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
