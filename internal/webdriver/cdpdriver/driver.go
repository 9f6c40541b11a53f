// Package cdpdriver drives Chrome over the DevTools protocol. Each window
// handle is a page target; elements are addressed by their locator and
// position and every operation is evaluated in the page.
package cdpdriver

import (
	"context"
	"fmt"
	"time"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/input"
	"github.com/mafredri/cdp/protocol/page"
	cdpruntime "github.com/mafredri/cdp/protocol/runtime"
	"github.com/mafredri/cdp/rpcc"
	"github.com/tidwall/gjson"

	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/webdriver"
)

type Config struct {
	// ExecPath overrides Chrome discovery.
	ExecPath string
	// DevToolsURL attaches to an already running browser instead of
	// starting one.
	DevToolsURL  string
	StartTimeout time.Duration
	LoadTimeout  time.Duration
}

type tab struct {
	target *devtool.Target
	conn   *rpcc.Conn
	client *cdp.Client
	frames []int
}

type Driver struct {
	cfg     Config
	browser *browser
	dt      *devtool.DevTools
	tabs    map[string]*tab
	current string
}

// NewFactory returns a factory launching Chrome with cfg.
func NewFactory(cfg Config) webdriver.Factory {
	return webdriver.FactoryFunc(func(ctx context.Context, opts webdriver.LaunchOptions) (webdriver.Driver, error) {
		return Launch(ctx, cfg, opts)
	})
}

func Launch(ctx context.Context, cfg Config, opts webdriver.LaunchOptions) (*Driver, error) {
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 15 * time.Second
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 30 * time.Second
	}
	d := &Driver{cfg: cfg, tabs: make(map[string]*tab)}

	devToolsURL := cfg.DevToolsURL
	if devToolsURL == "" {
		b, err := startBrowser(ctx, launchConfig{
			ExecPath:    cfg.ExecPath,
			UserDataDir: opts.ProfilePath,
			Proxy:       opts.Proxy,
			Args:        opts.Args,
		}, cfg.StartTimeout)
		if err != nil {
			return nil, errdef.Wrap(errdef.CodeClient, err, "launch chrome")
		}
		d.browser = b
		devToolsURL = b.devToolsURL
	}
	d.dt = devtool.New(devToolsURL)

	target, err := d.dt.Get(ctx, devtool.Page)
	if err != nil {
		target, err = d.dt.Create(ctx)
	}
	if err != nil {
		_ = d.Quit(ctx)
		return nil, errdef.Wrap(errdef.CodeClient, err, "open page target")
	}
	if _, err := d.attach(ctx, target); err != nil {
		_ = d.Quit(ctx)
		return nil, err
	}
	d.current = string(target.ID)
	return d, nil
}

func (d *Driver) attach(ctx context.Context, target *devtool.Target) (*tab, error) {
	if t, ok := d.tabs[string(target.ID)]; ok {
		return t, nil
	}
	conn, err := rpcc.DialContext(ctx, target.WebSocketDebuggerURL)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeClient, err, "connect to %s", target.ID)
	}
	client := cdp.NewClient(conn)
	if err := client.Page.Enable(ctx); err != nil {
		conn.Close()
		return nil, errdef.Wrap(errdef.CodeClient, err, "enable page domain")
	}
	t := &tab{target: target, conn: conn, client: client}
	d.tabs[string(target.ID)] = t
	return t, nil
}

func (d *Driver) tab() (*tab, error) {
	t, ok := d.tabs[d.current]
	if !ok {
		return nil, errdef.New(errdef.CodeClient, "no such window")
	}
	return t, nil
}

// eval runs expr in the current window and returns the by-value result.
func (d *Driver) eval(ctx context.Context, expr string) (gjson.Result, error) {
	t, err := d.tab()
	if err != nil {
		return gjson.Result{}, err
	}
	args := cdpruntime.NewEvaluateArgs(expr).SetReturnByValue(true).SetAwaitPromise(true)
	reply, err := t.client.Runtime.Evaluate(ctx, args)
	if err != nil {
		return gjson.Result{}, errdef.Wrap(errdef.CodeClient, err, "evaluate")
	}
	if reply.ExceptionDetails != nil {
		msg := reply.ExceptionDetails.Text
		if ex := reply.ExceptionDetails.Exception; ex != nil && ex.Description != nil {
			msg = *ex.Description
		}
		return gjson.Result{}, errdef.New(errdef.CodeClient, "script error: %s", msg)
	}
	return gjson.ParseBytes(reply.Result.Value), nil
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	t, err := d.tab()
	if err != nil {
		return err
	}
	loadCtx, cancel := context.WithTimeout(ctx, d.cfg.LoadTimeout)
	defer cancel()
	loaded, err := t.client.Page.LoadEventFired(loadCtx)
	if err != nil {
		return errdef.Wrap(errdef.CodeClient, err, "subscribe load event")
	}
	defer loaded.Close()

	reply, err := t.client.Page.Navigate(loadCtx, page.NewNavigateArgs(url))
	if err != nil {
		return errdef.Wrap(errdef.CodeClient, err, "navigate to %s", url)
	}
	if reply.ErrorText != nil && *reply.ErrorText != "" {
		return errdef.New(errdef.CodeClient, "navigate to %s: %s", url, *reply.ErrorText)
	}
	if _, err := loaded.Recv(); err != nil {
		if loadCtx.Err() != nil && ctx.Err() == nil {
			return errdef.Wrap(errdef.CodeTimeout, err, "wait for %s", url)
		}
		return errdef.Wrap(errdef.CodeClient, err, "wait for %s", url)
	}
	t.frames = nil
	return nil
}

func (d *Driver) FindElements(ctx context.Context, loc webdriver.Locator) ([]webdriver.Element, error) {
	t, err := d.tab()
	if err != nil {
		return nil, err
	}
	find, err := findExpr(documentExpr(t.frames), loc)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeClient, err, "find elements")
	}
	count, err := d.eval(ctx, fmt.Sprintf("(%s).length", find))
	if err != nil {
		return nil, err
	}
	out := make([]webdriver.Element, 0, count.Int())
	for i := 0; i < int(count.Int()); i++ {
		out = append(out, &Element{d: d, handle: d.current, find: find, index: i})
	}
	return out, nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	res, err := d.eval(ctx, "location.href")
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

func (d *Driver) PageSource(ctx context.Context) (string, error) {
	t, err := d.tab()
	if err != nil {
		return "", err
	}
	res, err := d.eval(ctx, fmt.Sprintf("(%s).documentElement.outerHTML", documentExpr(t.frames)))
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

func (d *Driver) WindowHandles(ctx context.Context) ([]string, error) {
	targets, err := d.dt.List(ctx)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeClient, err, "list windows")
	}
	var handles []string
	for _, t := range targets {
		if t != nil && t.Type == devtool.Page {
			handles = append(handles, string(t.ID))
		}
	}
	return handles, nil
}

func (d *Driver) CurrentWindow(context.Context) (string, error) {
	if _, err := d.tab(); err != nil {
		return "", err
	}
	return d.current, nil
}

func (d *Driver) SwitchToWindow(ctx context.Context, handle string) error {
	targets, err := d.dt.List(ctx)
	if err != nil {
		return errdef.Wrap(errdef.CodeClient, err, "list windows")
	}
	for _, target := range targets {
		if string(target.ID) != handle {
			continue
		}
		if _, err := d.attach(ctx, target); err != nil {
			return err
		}
		_ = d.dt.Activate(ctx, target)
		d.current = handle
		return nil
	}
	return errdef.New(errdef.CodeClient, "no such window %q", handle)
}

func (d *Driver) SwitchToFrame(ctx context.Context, ref webdriver.FrameRef) error {
	t, err := d.tab()
	if err != nil {
		return err
	}
	if ref.Parent {
		if n := len(t.frames); n > 0 {
			t.frames = t.frames[:n-1]
		}
		return nil
	}
	doc := documentExpr(t.frames)
	index := ref.Index
	if index < 0 {
		res, err := d.eval(ctx, fmt.Sprintf(
			"Array.from((%s).querySelectorAll('frame, iframe')).findIndex(f => f.name === %s || f.id === %s)",
			doc, jsString(ref.Name), jsString(ref.Name),
		))
		if err != nil {
			return err
		}
		if index = int(res.Int()); index < 0 {
			return errdef.New(errdef.CodeClient, "no frame named %q", ref.Name)
		}
	}
	next := append(append([]int(nil), t.frames...), index)
	ok, err := d.eval(ctx, fmt.Sprintf("!!(%s)", documentExpr(next)))
	if err != nil || !ok.Bool() {
		return errdef.New(errdef.CodeClient, "no accessible frame at index %d", index)
	}
	t.frames = next
	return nil
}

// Close closes the current window and detaches from it.
func (d *Driver) Close(ctx context.Context) error {
	t, err := d.tab()
	if err != nil {
		return err
	}
	delete(d.tabs, d.current)
	_ = t.conn.Close()
	if err := d.dt.Close(ctx, t.target); err != nil {
		return errdef.Wrap(errdef.CodeClient, err, "close window")
	}
	d.current = ""
	for handle := range d.tabs {
		d.current = handle
		break
	}
	return nil
}

func (d *Driver) Quit(context.Context) error {
	for handle, t := range d.tabs {
		_ = t.conn.Close()
		delete(d.tabs, handle)
	}
	d.current = ""
	if d.browser != nil {
		err := d.browser.stop(5 * time.Second)
		d.browser = nil
		if err != nil {
			return errdef.Wrap(errdef.CodeClient, err, "stop chrome")
		}
	}
	return nil
}

func (d *Driver) typeText(ctx context.Context, text string) error {
	t, err := d.tab()
	if err != nil {
		return err
	}
	for _, r := range text {
		args := input.NewDispatchKeyEventArgs("char").SetText(string(r))
		if err := t.client.Input.DispatchKeyEvent(ctx, args); err != nil {
			return errdef.Wrap(errdef.CodeClient, err, "type %q", r)
		}
	}
	return nil
}
