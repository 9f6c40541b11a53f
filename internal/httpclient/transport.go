package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unkn0wn-root/zest/internal/errdef"
)

type transportKey struct {
	proxy    string
	insecure bool
}

func (c *Client) buildHTTPClient(opts Options) (*http.Client, error) {
	transport, err := c.transportFor(opts)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Transport: transport, Jar: c.jar}
	if opts.Timeout > 0 {
		client.Timeout = opts.Timeout
	}
	if !opts.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client, nil
}

// transportFor reuses one transport per proxy and TLS combination so
// keep-alive connections survive across statements.
func (c *Client) transportFor(opts Options) (*http.Transport, error) {
	key := transportKey{proxy: opts.ProxyURL, insecure: opts.InsecureSkipVerify}

	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.transports[key]; ok {
		return t, nil
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	if opts.ProxyURL != "" {
		proxyURL, err := ParseProxy(opts.ProxyURL)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	c.transports[key] = transport
	return transport, nil
}

// ParseProxy accepts either a full url or a bare host:port.
func ParseProxy(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeUsage, err, "parse proxy url")
	}
	if u.Host == "" {
		return nil, errdef.New(errdef.CodeUsage, "proxy %q has no host", raw)
	}
	return u, nil
}
