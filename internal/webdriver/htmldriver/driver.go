// Package htmldriver is an in-process browser without a script engine.
// Pages are fetched over HTTP, parsed into a goquery document and queried
// with CSS selectors or XPath. It serves the HtmlUnit browser type.
package htmldriver

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/httpclient"
	"github.com/unkn0wn-root/zest/internal/webdriver"
)

const blankURL = "about:blank"

type page struct {
	url  *url.URL
	doc  *goquery.Document
	root *html.Node
}

type window struct {
	handle string
	top    *page
	// frames holds the chain of selected frames below top.
	frames []*page
}

func (w *window) current() *page {
	if n := len(w.frames); n > 0 {
		return w.frames[n-1]
	}
	return w.top
}

// replace swaps the page of the current browsing context.
func (w *window) replace(p *page) {
	if n := len(w.frames); n > 0 {
		w.frames[n-1] = p
		return
	}
	w.top = p
}

type Driver struct {
	client  *httpclient.Client
	windows map[string]*window
	order   []string
	current string
}

// Factory registers the driver in a webdriver.Registry.
var Factory = webdriver.FactoryFunc(func(_ context.Context, opts webdriver.LaunchOptions) (webdriver.Driver, error) {
	return New(opts)
})

func New(opts webdriver.LaunchOptions) (*Driver, error) {
	insecure, _ := opts.Capabilities[webdriver.CapAcceptInsecureCerts].(bool)
	if opts.Proxy != "" {
		if _, err := httpclient.ParseProxy(opts.Proxy); err != nil {
			return nil, errdef.Wrap(errdef.CodeClient, err, "htmlunit proxy")
		}
	}
	d := &Driver{
		client: httpclient.NewClient(httpclient.Options{
			FollowRedirects:    true,
			InsecureSkipVerify: insecure,
			ProxyURL:           opts.Proxy,
		}),
		windows: make(map[string]*window),
	}
	d.openWindow()
	return d, nil
}

func (d *Driver) openWindow() *window {
	w := &window{handle: uuid.NewString(), top: blankPage()}
	d.windows[w.handle] = w
	d.order = append(d.order, w.handle)
	if d.current == "" {
		d.current = w.handle
	}
	return w
}

func blankPage() *page {
	p, _ := parsePage(&url.URL{Scheme: "about", Opaque: "blank"}, "")
	return p
}

func parsePage(u *url.URL, body string) (*page, error) {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeClient, err, "parse %s", u)
	}
	return &page{url: u, doc: goquery.NewDocumentFromNode(root), root: root}, nil
}

func (d *Driver) window() (*window, error) {
	w, ok := d.windows[d.current]
	if !ok {
		return nil, errdef.New(errdef.CodeClient, "no such window")
	}
	return w, nil
}

func (d *Driver) fetch(ctx context.Context, method, target string, form url.Values) (*page, error) {
	req := &httpclient.Request{
		Method:          method,
		URL:             target,
		FollowRedirects: true,
	}
	if form != nil {
		if method == http.MethodGet {
			u, err := url.Parse(target)
			if err != nil {
				return nil, errdef.Wrap(errdef.CodeClient, err, "parse %s", target)
			}
			u.RawQuery = form.Encode()
			req.URL = u.String()
		} else {
			req.Body = form.Encode()
			req.Headers = http.Header{"Content-Type": {"application/x-www-form-urlencoded"}}
		}
	}
	resp, err := d.client.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(resp.URL)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeClient, err, "parse %s", resp.URL)
	}
	return parsePage(u, string(resp.Body))
}

func (d *Driver) Navigate(ctx context.Context, target string) error {
	w, err := d.window()
	if err != nil {
		return err
	}
	if target == blankURL {
		w.top, w.frames = blankPage(), nil
		return nil
	}
	p, err := d.fetch(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	w.top, w.frames = p, nil
	return nil
}

func (d *Driver) FindElements(_ context.Context, loc webdriver.Locator) ([]webdriver.Element, error) {
	w, err := d.window()
	if err != nil {
		return nil, err
	}
	p := w.current()
	nodes, err := p.find(loc)
	if err != nil {
		return nil, err
	}
	out := make([]webdriver.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &Element{d: d, w: w, p: p, sel: p.doc.FindNodes(n)})
	}
	return out, nil
}

func (p *page) find(loc webdriver.Locator) ([]*html.Node, error) {
	if loc.By == webdriver.ByXPath {
		nodes, err := htmlquery.QueryAll(p.root, loc.Value)
		if err != nil {
			return nil, errdef.Wrap(errdef.CodeClient, err, "invalid xpath %q", loc.Value)
		}
		elements := nodes[:0]
		for _, n := range nodes {
			if n.Type == html.ElementNode {
				elements = append(elements, n)
			}
		}
		return elements, nil
	}

	var sel *goquery.Selection
	all := p.doc.Find("*")
	switch loc.By {
	case webdriver.ByID:
		sel = all.FilterFunction(attrEquals("id", loc.Value))
	case webdriver.ByName:
		sel = all.FilterFunction(attrEquals("name", loc.Value))
	case webdriver.ByClassName:
		sel = all.FilterFunction(func(_ int, s *goquery.Selection) bool {
			class, _ := s.Attr("class")
			for _, c := range strings.Fields(class) {
				if c == loc.Value {
					return true
				}
			}
			return false
		})
	case webdriver.ByCSSSelector:
		sel = p.doc.Find(loc.Value)
	case webdriver.ByLinkText:
		sel = p.doc.Find("a").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return visibleText(s) == strings.TrimSpace(loc.Value)
		})
	case webdriver.ByPartialLinkText:
		sel = p.doc.Find("a").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.Contains(visibleText(s), loc.Value)
		})
	case webdriver.ByTagName:
		sel = all.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.EqualFold(goquery.NodeName(s), loc.Value)
		})
	default:
		return nil, errdef.New(errdef.CodeClient, "unsupported locator type %q", loc.By)
	}
	return sel.Nodes, nil
}

func attrEquals(name, value string) func(int, *goquery.Selection) bool {
	return func(_ int, s *goquery.Selection) bool {
		v, ok := s.Attr(name)
		return ok && v == value
	}
}

func visibleText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func (d *Driver) CurrentURL(context.Context) (string, error) {
	w, err := d.window()
	if err != nil {
		return "", err
	}
	return w.top.url.String(), nil
}

func (d *Driver) PageSource(context.Context) (string, error) {
	w, err := d.window()
	if err != nil {
		return "", err
	}
	return htmlquery.OutputHTML(w.current().root, false), nil
}

func (d *Driver) WindowHandles(context.Context) ([]string, error) {
	return append([]string(nil), d.order...), nil
}

func (d *Driver) CurrentWindow(context.Context) (string, error) {
	if _, err := d.window(); err != nil {
		return "", err
	}
	return d.current, nil
}

func (d *Driver) SwitchToWindow(_ context.Context, handle string) error {
	if _, ok := d.windows[handle]; !ok {
		return errdef.New(errdef.CodeClient, "no such window %q", handle)
	}
	d.current = handle
	return nil
}

func (d *Driver) SwitchToFrame(ctx context.Context, ref webdriver.FrameRef) error {
	w, err := d.window()
	if err != nil {
		return err
	}
	if ref.Parent {
		if n := len(w.frames); n > 0 {
			w.frames = w.frames[:n-1]
		}
		return nil
	}

	p := w.current()
	frames := p.doc.Find("frame, iframe")
	var target *goquery.Selection
	if ref.Index >= 0 {
		if ref.Index >= frames.Length() {
			return errdef.New(errdef.CodeClient, "no frame at index %d", ref.Index)
		}
		target = frames.Eq(ref.Index)
	} else {
		byName, byID := attrEquals("name", ref.Name), attrEquals("id", ref.Name)
		target = frames.FilterFunction(func(i int, s *goquery.Selection) bool {
			return byName(i, s) || byID(i, s)
		}).First()
		if target.Length() == 0 {
			return errdef.New(errdef.CodeClient, "no frame named %q", ref.Name)
		}
	}

	src, _ := target.Attr("src")
	frameURL, err := p.resolve(src)
	if err != nil {
		return err
	}
	framePage, err := d.fetch(ctx, http.MethodGet, frameURL, nil)
	if err != nil {
		return err
	}
	w.frames = append(w.frames, framePage)
	return nil
}

// Close closes the current window. The first remaining window becomes
// current.
func (d *Driver) Close(context.Context) error {
	if _, ok := d.windows[d.current]; !ok {
		return errdef.New(errdef.CodeClient, "no such window")
	}
	delete(d.windows, d.current)
	for i, h := range d.order {
		if h == d.current {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.current = ""
	if len(d.order) > 0 {
		d.current = d.order[0]
	}
	if len(d.windows) == 0 {
		d.client.Close()
	}
	return nil
}

func (d *Driver) Quit(context.Context) error {
	d.windows = make(map[string]*window)
	d.order = nil
	d.current = ""
	d.client.Close()
	return nil
}

// resolve turns a link or form action into an absolute url.
func (p *page) resolve(ref string) (string, error) {
	u, err := p.url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", errdef.Wrap(errdef.CodeClient, err, "resolve %q", ref)
	}
	return u.String(), nil
}
