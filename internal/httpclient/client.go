package httpclient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/telemetry"
)

type Options struct {
	Timeout            time.Duration
	FollowRedirects    bool
	InsecureSkipVerify bool
	ProxyURL           string
}

// Sender dispatches a fully prepared request.
type Sender interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

type Client struct {
	mu          sync.Mutex
	jar         http.CookieJar
	opts        Options
	transports  map[transportKey]*http.Transport
	httpFactory func(Options) (*http.Client, error)
	telemetry   telemetry.Instrumenter
}

func NewClient(opts Options) *Client {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	c := &Client{
		jar:        jar,
		opts:       opts,
		transports: make(map[transportKey]*http.Transport),
		telemetry:  telemetry.Noop(),
	}
	c.httpFactory = c.buildHTTPClient
	return c
}

// SetHTTPFactory allows callers to override how http.Client instances are created.
// Passing nil restores the default factory.
func (c *Client) SetHTTPFactory(factory func(Options) (*http.Client, error)) {
	if factory == nil {
		factory = c.buildHTTPClient
	}
	c.httpFactory = factory
}

// SetTelemetry configures the instrumenter used to emit OpenTelemetry spans. Passing nil restores the no-op implementation.
func (c *Client) SetTelemetry(instr telemetry.Instrumenter) {
	if instr == nil {
		instr = telemetry.Noop()
	}
	c.telemetry = instr
}

// SetProxy routes subsequent requests through proxyURL. An empty value
// restores environment based proxy selection.
func (c *Client) SetProxy(proxyURL string) {
	c.mu.Lock()
	c.opts.ProxyURL = proxyURL
	c.mu.Unlock()
}

func (c *Client) Options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// Close drops idle keep-alive connections.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.transports {
		t.CloseIdleConnections()
	}
}

// Send wraps the round trip in a telemetry span. The request's own
// redirect and timeout settings override the client defaults.
func (c *Client) Send(ctx context.Context, req *Request) (resp *Response, err error) {
	opts := c.Options()
	opts.FollowRedirects = req.FollowRedirects
	if req.Timeout > 0 {
		opts.Timeout = req.Timeout
	}

	httpReq, err := req.build(ctx)
	if err != nil {
		return nil, err
	}

	client, err := c.httpFactory(opts)
	if err != nil {
		return nil, err
	}

	instr := c.telemetry
	if instr == nil {
		instr = telemetry.Noop()
	}
	spanCtx, span := instr.Start(httpReq.Context(), telemetry.RequestStart{
		Script:         req.Script,
		StatementIndex: req.Index,
		HTTPRequest:    httpReq,
		Timeout:        opts.Timeout,
	})
	httpReq = httpReq.WithContext(spanCtx)

	start := time.Now()
	defer func() {
		result := telemetry.RequestResult{Err: err, Duration: time.Since(start)}
		if resp != nil {
			result.StatusCode = resp.StatusCode
		}
		span.End(result)
	}()

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, err, "perform request")
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil && err == nil {
			err = errdef.Wrap(errdef.CodeIO, closeErr, "close response body")
		}
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classify(ctx, err, "read response body")
	}

	return &Response{
		URL:        effURL(httpReq, httpResp),
		Status:     httpResp.Status,
		StatusCode: httpResp.StatusCode,
		Proto:      httpResp.Proto,
		Headers:    httpResp.Header.Clone(),
		Body:       body,
		Duration:   time.Since(start),
	}, nil
}

func classify(ctx context.Context, err error, msg string) error {
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return errdef.Wrap(errdef.CodeCancelled, err, msg)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errdef.Wrap(errdef.CodeTimeout, err, msg)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errdef.Wrap(errdef.CodeTimeout, err, msg)
	}
	return errdef.Wrap(errdef.CodeIO, err, msg)
}

func effURL(req *http.Request, resp *http.Response) string {
	if resp != nil && resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	if req != nil && req.URL != nil {
		return req.URL.String()
	}
	return ""
}
