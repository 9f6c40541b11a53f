// Package w3c talks to a remote WebDriver endpoint (geckodriver,
// chromedriver, safaridriver, a Selenium grid) using the W3C protocol.
package w3c

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/httpclient"
	"github.com/unkn0wn-root/zest/internal/webdriver"
)

// elementKey identifies element references in W3C payloads.
const elementKey = "element-6066-11e4-a52e-4f735466cecf"

var browserNames = map[string]string{
	"firefox":          "firefox",
	"chrome":           "chrome",
	"safari":           "safari",
	"internetexplorer": "internet explorer",
	"opera":            "opera",
	"phantomjs":        "phantomjs",
	"htmlunit":         "htmlunit",
	"jbd":              "jbd",
}

type Driver struct {
	endpoint string
	session  string
	http     *httpclient.Client
}

// NewFactory returns a factory creating sessions on endpoint.
func NewFactory(endpoint string, timeout time.Duration) webdriver.Factory {
	return webdriver.FactoryFunc(func(ctx context.Context, opts webdriver.LaunchOptions) (webdriver.Driver, error) {
		return NewSession(ctx, endpoint, timeout, opts)
	})
}

func NewSession(
	ctx context.Context,
	endpoint string,
	timeout time.Duration,
	opts webdriver.LaunchOptions,
) (*Driver, error) {
	if endpoint == "" {
		return nil, errdef.New(
			errdef.CodeClient,
			"no webdriver endpoint configured for %s",
			opts.BrowserType,
		)
	}
	d := &Driver{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     httpclient.NewClient(httpclient.Options{Timeout: timeout}),
	}
	payload, err := SessionPayload(opts)
	if err != nil {
		return nil, err
	}
	res, err := d.do(ctx, http.MethodPost, "/session", payload)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeClient, err, "create %s session", opts.BrowserType)
	}
	d.session = res.Get("sessionId").String()
	if d.session == "" {
		return nil, errdef.New(errdef.CodeClient, "create %s session: no session id", opts.BrowserType)
	}
	return d, nil
}

func capPath(key string) string {
	return "capabilities.alwaysMatch." + escapePath(key)
}

func escapePath(key string) string {
	return strings.ReplaceAll(key, ".", `\.`)
}

// SessionPayload renders the new-session request for opts, moving
// arguments and preferences into the vendor option blocks.
func SessionPayload(opts webdriver.LaunchOptions) (string, error) {
	payload := `{"capabilities":{"alwaysMatch":{}}}`
	var err error
	set := func(path string, value any) {
		if err == nil {
			payload, err = sjson.Set(payload, path, value)
		}
	}

	browser := strings.ToLower(opts.BrowserType)
	if name, ok := browserNames[browser]; ok {
		set(capPath("browserName"), name)
	}
	for key, value := range opts.Capabilities {
		set(capPath(key), value)
	}

	args := append([]string(nil), opts.Args...)
	switch browser {
	case "firefox":
		if opts.ProfilePath != "" {
			args = append(args, "-profile", opts.ProfilePath)
		}
		if len(args) > 0 {
			set(capPath("moz:firefoxOptions")+".args", args)
		}
		for key, value := range opts.Prefs {
			set(capPath("moz:firefoxOptions")+".prefs."+escapePath(key), value)
		}
	case "chrome", "opera":
		if opts.ProfilePath != "" {
			args = append(args, "--user-data-dir="+opts.ProfilePath)
		}
		if len(args) > 0 {
			set(capPath("goog:chromeOptions")+".args", args)
		}
	}
	if err != nil {
		return "", errdef.Wrap(errdef.CodeClient, err, "build capabilities")
	}
	return payload, nil
}

// do sends a command and returns its "value" member. Protocol errors are
// mapped to client errors carrying the remote message.
func (d *Driver) do(ctx context.Context, method, path, body string) (gjson.Result, error) {
	req := &httpclient.Request{
		Method:          method,
		URL:             d.endpoint + path,
		FollowRedirects: true,
	}
	if method == http.MethodPost {
		if body == "" {
			body = "{}"
		}
		req.Body = body
		req.Headers = http.Header{"Content-Type": {"application/json; charset=utf-8"}}
	}
	resp, err := d.http.Send(ctx, req)
	if err != nil {
		return gjson.Result{}, err
	}
	value := gjson.GetBytes(resp.Body, "value")
	if resp.StatusCode >= 400 || value.Get("error").Exists() {
		code := errdef.CodeClient
		if value.Get("error").String() == "timeout" {
			code = errdef.CodeTimeout
		}
		msg := value.Get("message").String()
		if msg == "" {
			msg = resp.Status
		}
		return gjson.Result{}, errdef.New(code, "%s: %s", value.Get("error").String(), msg)
	}
	return value, nil
}

func (d *Driver) sessionPath(format string, args ...any) string {
	return "/session/" + url.PathEscape(d.session) + fmt.Sprintf(format, args...)
}

func (d *Driver) Navigate(ctx context.Context, target string) error {
	body, _ := sjson.Set(`{}`, "url", target)
	_, err := d.do(ctx, http.MethodPost, d.sessionPath("/url"), body)
	return err
}

func (d *Driver) FindElements(ctx context.Context, loc webdriver.Locator) ([]webdriver.Element, error) {
	using, value := strategy(loc)
	body, _ := sjson.Set(`{}`, "using", using)
	body, _ = sjson.Set(body, "value", value)
	res, err := d.do(ctx, http.MethodPost, d.sessionPath("/elements"), body)
	if err != nil {
		return nil, err
	}
	var out []webdriver.Element
	for _, ref := range res.Array() {
		if id := ref.Get(escapePath(elementKey)).String(); id != "" {
			out = append(out, &Element{d: d, id: id})
		}
	}
	return out, nil
}

// strategy maps a locator onto the W3C strategies. Id, name and class
// lookups become attribute selectors.
func strategy(loc webdriver.Locator) (string, string) {
	switch loc.By {
	case webdriver.ByID:
		return "css selector", fmt.Sprintf(`[id="%s"]`, cssQuote(loc.Value))
	case webdriver.ByName:
		return "css selector", fmt.Sprintf(`[name="%s"]`, cssQuote(loc.Value))
	case webdriver.ByClassName:
		return "css selector", fmt.Sprintf(`[class~="%s"]`, cssQuote(loc.Value))
	case webdriver.ByLinkText:
		return "link text", loc.Value
	case webdriver.ByPartialLinkText:
		return "partial link text", loc.Value
	case webdriver.ByTagName:
		return "tag name", loc.Value
	case webdriver.ByXPath:
		return "xpath", loc.Value
	default:
		return "css selector", loc.Value
	}
}

func cssQuote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	res, err := d.do(ctx, http.MethodGet, d.sessionPath("/url"), "")
	return res.String(), err
}

func (d *Driver) PageSource(ctx context.Context) (string, error) {
	res, err := d.do(ctx, http.MethodGet, d.sessionPath("/source"), "")
	return res.String(), err
}

func (d *Driver) WindowHandles(ctx context.Context) ([]string, error) {
	res, err := d.do(ctx, http.MethodGet, d.sessionPath("/window/handles"), "")
	if err != nil {
		return nil, err
	}
	var handles []string
	for _, h := range res.Array() {
		handles = append(handles, h.String())
	}
	return handles, nil
}

func (d *Driver) CurrentWindow(ctx context.Context) (string, error) {
	res, err := d.do(ctx, http.MethodGet, d.sessionPath("/window"), "")
	return res.String(), err
}

func (d *Driver) SwitchToWindow(ctx context.Context, handle string) error {
	body, _ := sjson.Set(`{}`, "handle", handle)
	_, err := d.do(ctx, http.MethodPost, d.sessionPath("/window"), body)
	return err
}

func (d *Driver) SwitchToFrame(ctx context.Context, ref webdriver.FrameRef) error {
	if ref.Parent {
		_, err := d.do(ctx, http.MethodPost, d.sessionPath("/frame/parent"), "")
		return err
	}
	body := `{}`
	if ref.Index >= 0 {
		body, _ = sjson.Set(body, "id", ref.Index)
	} else {
		found, err := d.FindElements(ctx, webdriver.Locator{
			By:    webdriver.ByCSSSelector,
			Value: fmt.Sprintf(`frame[name="%[1]s"], iframe[name="%[1]s"], frame[id="%[1]s"], iframe[id="%[1]s"]`, cssQuote(ref.Name)),
		})
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return errdef.New(errdef.CodeClient, "no frame named %q", ref.Name)
		}
		body, _ = sjson.Set(body, "id", map[string]string{elementKey: found[0].(*Element).id})
	}
	_, err := d.do(ctx, http.MethodPost, d.sessionPath("/frame"), body)
	return err
}

func (d *Driver) Close(ctx context.Context) error {
	_, err := d.do(ctx, http.MethodDelete, d.sessionPath("/window"), "")
	return err
}

func (d *Driver) Quit(ctx context.Context) error {
	defer d.http.Close()
	_, err := d.do(ctx, http.MethodDelete, d.sessionPath(""), "")
	return err
}
