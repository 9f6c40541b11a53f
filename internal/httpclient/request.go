package httpclient

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/unkn0wn-root/zest/internal/errdef"
)

type BasicAuth struct {
	Username string
	Password string
}

// Request is the fully expanded form of a script request, ready to send.
type Request struct {
	Method          string
	URL             string
	Headers         http.Header
	Body            string
	Cookies         []*http.Cookie
	FollowRedirects bool
	Timeout         time.Duration
	Auth            *BasicAuth

	// Script and Index label the telemetry span.
	Script string
	Index  int
}

type Response struct {
	URL        string
	Status     string
	StatusCode int
	Proto      string
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

func (r *Request) build(ctx context.Context) (*http.Request, error) {
	if r == nil {
		return nil, errdef.New(errdef.CodeIO, "request is nil")
	}
	target := strings.TrimSpace(r.URL)
	if target == "" {
		return nil, errdef.New(errdef.CodeIO, "request url is empty")
	}
	method := strings.ToUpper(strings.TrimSpace(r.Method))
	if method == "" {
		method = http.MethodGet
	}

	var body *strings.Reader
	if r.Body != "" {
		body = strings.NewReader(r.Body)
	}
	var httpReq *http.Request
	var err error
	if body != nil {
		httpReq, err = http.NewRequestWithContext(ctx, method, target, body)
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, method, target, nil)
	}
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeIO, err, "build request")
	}

	for name, values := range r.Headers {
		for _, value := range values {
			httpReq.Header.Add(name, value)
		}
	}
	if host := httpReq.Header.Get("Host"); host != "" {
		httpReq.Host = host
		httpReq.Header.Del("Host")
	}
	for _, cookie := range r.Cookies {
		if cookie != nil {
			httpReq.AddCookie(cookie)
		}
	}
	if r.Auth != nil && httpReq.Header.Get("Authorization") == "" {
		httpReq.SetBasicAuth(r.Auth.Username, r.Auth.Password)
	}
	return httpReq, nil
}
