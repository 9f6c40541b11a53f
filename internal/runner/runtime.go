package runner

import (
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/zest/internal/httpclient"
	"github.com/unkn0wn-root/zest/internal/scripts"
	"github.com/unkn0wn-root/zest/internal/webdriver"
	"github.com/unkn0wn-root/zest/internal/zest"
)

// Variable returns the value visible under name, or "" when unknown.
func (r *Runner) Variable(name string) string {
	value, _ := r.resolver.Resolve(name)
	return value
}

func (r *Runner) SetVariable(name, value string) {
	if name == "" {
		return
	}
	r.local.Set(name, value)
}

func (r *Runner) GlobalVariable(name string) string {
	value, _ := r.globals.Get(name)
	return value
}

func (r *Runner) SetGlobalVariable(name, value string) {
	if name == "" {
		return
	}
	r.globals.Set(name, value)
}

func (r *Runner) RemoveGlobalVariable(name string) {
	r.globals.Remove(name)
}

// ScriptEngine returns the engine registered for ext, or nil.
func (r *Runner) ScriptEngine(ext string) scripts.Engine {
	return r.engines.EngineForExtension(ext)
}

func (r *Runner) LastRequest() *httpclient.Request { return r.lastReq }

func (r *Runner) LastResponse() *httpclient.Response { return r.lastResp }

// ReplaceVariables expands tokens in input, percent-encoding the
// substituted values when urlEncode is set.
func (r *Runner) ReplaceVariables(input string, urlEncode bool) string {
	return r.resolver.Expand(input, urlEncode)
}

// SetStandardRequestVariables publishes req under the request.* names,
// replacing any earlier assignment to them.
func (r *Runner) SetStandardRequestVariables(req *httpclient.Request) {
	r.lastReq = req
	r.setStandard(zest.VarRequestURL, req.URL)
	r.setStandard(zest.VarRequestMethod, strings.ToUpper(req.Method))
	r.setStandard(zest.VarRequestHeader, zest.FormatHeaders(req.Headers))
	r.setStandard(zest.VarRequestBody, req.Body)
}

func (r *Runner) SetStandardResponseVariables(resp *httpclient.Response) {
	r.lastResp = resp
	r.setStandard(zest.VarResponseURL, resp.URL)
	r.setStandard(zest.VarResponseHeader, responseHeader(resp))
	r.setStandard(zest.VarResponseBody, string(resp.Body))
	r.setStandard(zest.VarResponseStatus, strconv.Itoa(resp.StatusCode))
}

func (r *Runner) setStandard(name, value string) {
	r.local.Delete(name)
	r.standard.Set(name, value)
}

// responseHeader renders the status line followed by the header block.
func responseHeader(resp *httpclient.Response) string {
	proto := resp.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	status := resp.Status
	if status == "" {
		status = strconv.Itoa(resp.StatusCode)
	}
	return proto + " " + status + "\r\n" + zest.FormatHeaders(resp.Headers)
}

// SetProxy routes later requests and launched browsers through host:port.
// An empty host clears the proxy.
func (r *Runner) SetProxy(host string, port int) {
	if host == "" {
		r.proxy = ""
	} else {
		r.proxy = net.JoinHostPort(host, strconv.Itoa(port))
	}
	if ps, ok := r.http.(interface{ SetProxy(string) }); ok {
		ps.SetProxy(r.proxy)
	}
}

func (r *Runner) Proxy() string { return r.proxy }

// AddWebDriver registers d under handle. A driver already registered under
// the same handle is quit first unless another handle still uses it.
func (r *Runner) AddWebDriver(handle string, d webdriver.Driver) {
	r.bind(handle, &session{driver: d})
}

func (r *Runner) RemoveWebDriver(handle string) {
	delete(r.sessions, handle)
}

func (r *Runner) WebDriver(handle string) (webdriver.Driver, bool) {
	s, ok := r.sessions[handle]
	if !ok {
		return nil, false
	}
	return s.driver, true
}

func (r *Runner) WebDrivers() map[string]webdriver.Driver {
	out := make(map[string]webdriver.Driver, len(r.sessions))
	for handle, s := range r.sessions {
		out[handle] = s.driver
	}
	return out
}

func (r *Runner) handles() []string {
	out := make([]string, 0, len(r.sessions))
	for handle := range r.sessions {
		out = append(out, handle)
	}
	sort.Strings(out)
	return out
}
