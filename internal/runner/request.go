package runner

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/httpclient"
	"github.com/unkn0wn-root/zest/internal/printer"
	"github.com/unkn0wn-root/zest/internal/zest"
)

func (r *Runner) runRequest(ctx context.Context, req *zest.Request) error {
	pending := &httpclient.Request{
		Method:          req.Method,
		URL:             r.resolveURL(r.ReplaceVariables(req.URL, false)),
		Headers:         zest.ParseHeaders(req.Headers),
		Body:            req.Data,
		FollowRedirects: req.FollowRedirects,
		Timeout:         r.opts.Timeout,
		Script:          r.script.Title,
		Index:           req.Index,
	}
	for _, t := range req.Transformations {
		if err := r.transform(pending, t); err != nil {
			return err
		}
	}
	pending.Auth = r.authFor(pending.URL)

	expanded := make(http.Header, len(pending.Headers))
	for name, values := range pending.Headers {
		for _, value := range values {
			expanded.Add(r.ReplaceVariables(name, false), r.ReplaceVariables(value, false))
		}
	}
	pending.Headers = expanded
	pending.Body = r.ReplaceVariables(pending.Body, false)
	for _, c := range req.Cookies {
		pending.Cookies = append(pending.Cookies, &http.Cookie{
			Name:     c.Name,
			Value:    r.ReplaceVariables(c.Value, false),
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}

	if err := r.waitFor(ctx, req.TimestampDelay); err != nil {
		return err
	}

	if r.opts.Debug {
		fmt.Fprintf(r.out, "-> %s %s\n", strings.ToUpper(pending.Method), pending.URL)
	}
	r.requests++
	resp, err := r.http.Send(ctx, pending)
	r.SetStandardRequestVariables(pending)
	if err != nil {
		if !req.ResponseExpected && (errdef.Is(err, errdef.CodeIO) || errdef.Is(err, errdef.CodeTimeout)) {
			r.log.Debug().Err(err).Str("url", pending.URL).Msg("no response expected")
			return nil
		}
		return err
	}
	r.log.Debug().
		Str("method", pending.Method).
		Str("url", pending.URL).
		Int("status", resp.StatusCode).
		Dur("duration", resp.Duration).
		Msg("request")
	if r.opts.Debug {
		fmt.Fprintf(r.out, "<- %d (%dms)\n", resp.StatusCode, resp.Duration.Milliseconds())
	}
	r.SetStandardResponseVariables(resp)

	for _, a := range req.Assertions {
		if err := r.assert(ctx, req, a); err != nil {
			return err
		}
	}
	return nil
}

// resolveURL joins relative urls onto the script prefix.
func (r *Runner) resolveURL(raw string) string {
	prefix := r.script.Prefix
	if prefix == "" {
		return raw
	}
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		return raw
	}
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(raw, "/")
}

// authFor returns credentials of the first http authentication whose site
// matches the host of target.
func (r *Runner) authFor(target string) *httpclient.BasicAuth {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return nil
	}
	for _, a := range r.script.Authentication {
		auth, ok := a.(*zest.HTTPAuthentication)
		if !ok || !siteMatches(auth.Site, u) {
			continue
		}
		return &httpclient.BasicAuth{
			Username: r.ReplaceVariables(auth.Username, false),
			Password: r.ReplaceVariables(auth.Password, false),
		}
	}
	return nil
}

func siteMatches(site string, u *url.URL) bool {
	site = strings.TrimSpace(site)
	if site == "" {
		return false
	}
	if s, err := url.Parse(site); err == nil && s.Host != "" {
		site = s.Host
	}
	return strings.EqualFold(site, u.Host) || strings.EqualFold(site, u.Hostname())
}

// waitFor blocks until delay milliseconds have passed since the script start.
func (r *Runner) waitFor(ctx context.Context, delay int64) error {
	if delay <= 0 {
		return nil
	}
	wait := time.Until(r.start.Add(time.Duration(delay) * time.Millisecond))
	return sleep(ctx, wait)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return errdef.Wrap(errdef.CodeCancelled, ctx.Err(), "sleep interrupted")
	}
}

func (r *Runner) assert(ctx context.Context, req *zest.Request, a *zest.Assertion) error {
	if a == nil || a.RootExpression == nil {
		return nil
	}
	ok, err := r.evaluate(ctx, a.RootExpression)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	msg := "Assertion failed: " + printer.DescribeExpression(a.RootExpression)
	r.failures = append(r.failures, Failure{Statement: req, Message: msg})
	if r.opts.StopOnAssertFail {
		return errdef.New(errdef.CodeAssertion, "%s", msg)
	}
	fmt.Fprintln(r.out, msg)
	return nil
}

func (r *Runner) transform(pending *httpclient.Request, t zest.Transformation) error {
	switch tr := t.(type) {
	case *zest.TransformRandomInteger:
		if tr.Token == "" {
			return errdef.New(errdef.CodeTransform, "random integer transform has no token")
		}
		value := strconv.Itoa(randomInt(tr.MinInt, tr.MaxInt))
		pending.URL = strings.ReplaceAll(pending.URL, tr.Token, value)
		pending.Body = strings.ReplaceAll(pending.Body, tr.Token, value)
		for name, values := range pending.Headers {
			for i, v := range values {
				values[i] = strings.ReplaceAll(v, tr.Token, value)
			}
			pending.Headers[name] = values
		}
	case *zest.TransformFieldReplace:
		if tr.FieldName == "" {
			return errdef.New(errdef.CodeTransform, "field replace transform has no field name")
		}
		value := r.ReplaceVariables(tr.Value, false)
		if body, ok := replaceField(pending.Body, tr.FieldName, value); ok {
			pending.Body = body
			return nil
		}
		u, err := url.Parse(pending.URL)
		if err != nil {
			return errdef.Wrap(errdef.CodeTransform, err, "parse request url")
		}
		query, ok := replaceField(u.RawQuery, tr.FieldName, value)
		if !ok {
			return errdef.New(errdef.CodeTransform, "field %q not present in request", tr.FieldName)
		}
		u.RawQuery = query
		pending.URL = u.String()
	case *zest.TransformHeader:
		if tr.Name == "" {
			return errdef.New(errdef.CodeTransform, "header transform has no name")
		}
		if pending.Headers == nil {
			pending.Headers = make(http.Header)
		}
		pending.Headers.Set(tr.Name, tr.Value)
	default:
		return errdef.New(errdef.CodeUnsupported, "unsupported transformation %s", t.ElementType())
	}
	return nil
}

// randomInt returns a value in [lo, hi). An empty range yields lo.
func randomInt(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rand.Intn(hi-lo)
}

// replaceField rewrites every occurrence of field in a url-encoded form,
// keeping the order and encoding of the other pairs.
func replaceField(form, field, value string) (string, bool) {
	if form == "" {
		return form, false
	}
	pairs := strings.Split(form, "&")
	found := false
	for i, pair := range pairs {
		key, _, _ := strings.Cut(pair, "=")
		name, err := url.QueryUnescape(key)
		if err != nil {
			name = key
		}
		if name == field {
			pairs[i] = key + "=" + url.QueryEscape(value)
			found = true
		}
	}
	return strings.Join(pairs, "&"), found
}
