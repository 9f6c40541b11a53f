package runner

import (
	"context"
	"time"

	"github.com/unkn0wn-root/zest/internal/errdef"
	"github.com/unkn0wn-root/zest/internal/webdriver"
	"github.com/unkn0wn-root/zest/internal/zest"
)

// session is a handle binding: the driver and, for handles created by a
// window-handle statement, the browser window they refer to.
type session struct {
	driver webdriver.Driver
	window string
}

func (r *Runner) bind(handle string, s *session) {
	if prev, ok := r.sessions[handle]; ok && prev.driver != s.driver && !r.shared(handle, prev.driver) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := prev.driver.Quit(ctx); err != nil {
			r.log.Warn().Err(err).Str("handle", handle).Msg("quit replaced driver")
		}
	}
	r.sessions[handle] = s
}

// shared reports whether a handle other than handle uses d.
func (r *Runner) shared(handle string, d webdriver.Driver) bool {
	for other, s := range r.sessions {
		if other != handle && s.driver == d {
			return true
		}
	}
	return false
}

// driverFor returns the driver under handle, focused on the handle's window.
func (r *Runner) driverFor(ctx context.Context, handle string) (webdriver.Driver, error) {
	s, ok := r.sessions[handle]
	if !ok {
		return nil, errdef.New(errdef.CodeClient, "no window registered for handle %q", handle)
	}
	if s.window != "" {
		current, err := s.driver.CurrentWindow(ctx)
		if err != nil {
			return nil, err
		}
		if current != s.window {
			if err := s.driver.SwitchToWindow(ctx, s.window); err != nil {
				return nil, err
			}
		}
	}
	return s.driver, nil
}

func (r *Runner) element(ctx context.Context, l *zest.ElementLocator) (webdriver.Element, error) {
	d, err := r.driverFor(ctx, l.WindowHandle)
	if err != nil {
		return nil, err
	}
	loc, err := webdriver.ParseLocator(l.Type, r.ReplaceVariables(l.Element, false))
	if err != nil {
		return nil, err
	}
	return webdriver.FindElement(ctx, d, loc)
}

func (r *Runner) clientLaunch(ctx context.Context, c *zest.ClientLaunch) error {
	opts, err := webdriver.NewLaunchOptions(c.BrowserType, c.Headless, r.proxy, c.Capabilities)
	if err != nil {
		return err
	}
	opts.ProfilePath = r.ReplaceVariables(c.ProfilePath, false)
	d, err := r.drivers.Launch(ctx, opts)
	if err != nil {
		return err
	}
	d = webdriver.WithTimeout(d, r.opts.DriverTimeout)
	r.AddWebDriver(c.WindowHandle, d)
	if c.URL == "" {
		return nil
	}
	target := r.ReplaceVariables(c.URL, true)
	if err := d.Navigate(ctx, target); err != nil {
		return navigateErr(err, target)
	}
	return nil
}

// clientWindowClose closes the handle's window when other handles still
// use the same browser, and quits the browser otherwise.
func (r *Runner) clientWindowClose(ctx context.Context, c *zest.ClientWindowClose) error {
	s, ok := r.sessions[c.WindowHandle]
	if !ok {
		return errdef.New(errdef.CodeClient, "no window registered for handle %q", c.WindowHandle)
	}
	if c.SleepInSeconds > 0 {
		if err := sleep(ctx, time.Duration(c.SleepInSeconds)*time.Second); err != nil {
			return err
		}
	}
	r.RemoveWebDriver(c.WindowHandle)
	if r.shared(c.WindowHandle, s.driver) {
		if s.window != "" {
			if err := s.driver.SwitchToWindow(ctx, s.window); err != nil {
				return err
			}
		}
		return s.driver.Close(ctx)
	}
	return s.driver.Quit(ctx)
}

func (r *Runner) clientElement(ctx context.Context, stmt zest.Locating) error {
	el, err := r.element(ctx, stmt.Locator())
	if err != nil {
		return err
	}
	switch st := stmt.(type) {
	case *zest.ClientElementClick:
		return el.Click(ctx)
	case *zest.ClientElementSendKeys:
		return el.SendKeys(ctx, r.ReplaceVariables(st.Value, false))
	case *zest.ClientElementSubmit:
		return el.Submit(ctx)
	case *zest.ClientElementClear:
		return el.Clear(ctx)
	case *zest.ClientElementSendKeysBySequence:
		delay := time.Duration(st.DelayInMs) * time.Millisecond
		for i, key := range []rune(r.ReplaceVariables(st.Value, false)) {
			if i > 0 {
				if err := sleep(ctx, delay); err != nil {
					return err
				}
			}
			if err := el.SendKeys(ctx, string(key)); err != nil {
				return err
			}
		}
		return nil
	default:
		return errdef.New(errdef.CodeUnsupported, "unsupported element statement %s", stmt.ElementType())
	}
}

func (r *Runner) clientSwitchToFrame(ctx context.Context, c *zest.ClientSwitchToFrame) error {
	d, err := r.driverFor(ctx, c.WindowHandle)
	if err != nil {
		return err
	}
	return d.SwitchToFrame(ctx, webdriver.FrameRef{
		Index:  c.FrameIndex,
		Name:   r.ReplaceVariables(c.FrameName, false),
		Parent: c.Parent,
	})
}

// clientWindowHandle searches every open browser window for one whose url
// equals the target, or matches it when Regex is set, and binds it.
func (r *Runner) clientWindowHandle(ctx context.Context, c *zest.ClientWindowHandle) error {
	target := r.ReplaceVariables(c.URL, false)
	match := func(u string) (bool, error) {
		if c.Regex {
			return r.matches(target, true, u)
		}
		return u == target, nil
	}

	seen := make(map[webdriver.Driver]bool)
	for _, handle := range r.handles() {
		d := r.sessions[handle].driver
		if seen[d] {
			continue
		}
		seen[d] = true
		original, err := d.CurrentWindow(ctx)
		if err != nil {
			return err
		}
		windows, err := d.WindowHandles(ctx)
		if err != nil {
			return err
		}
		for _, w := range windows {
			if err := d.SwitchToWindow(ctx, w); err != nil {
				return err
			}
			u, err := d.CurrentURL(ctx)
			if err != nil {
				return err
			}
			ok, err := match(u)
			if err != nil {
				return err
			}
			if ok {
				r.bind(c.WindowHandle, &session{driver: d, window: w})
				return nil
			}
		}
		if err := d.SwitchToWindow(ctx, original); err != nil {
			return err
		}
	}
	return errdef.New(errdef.CodeClient, "no window found for %s", target)
}

func (r *Runner) clientOpenURL(ctx context.Context, c *zest.ClientWindowOpenURL) error {
	d, err := r.driverFor(ctx, c.WindowHandle)
	if err != nil {
		return err
	}
	target := r.ReplaceVariables(c.URL, true)
	if err := d.Navigate(ctx, target); err != nil {
		return navigateErr(err, target)
	}
	return nil
}

// navigateErr classifies a failed page load as a client failure unless the
// driver already reported a timeout.
func navigateErr(err error, target string) error {
	code := errdef.CodeClient
	if errdef.Is(err, errdef.CodeTimeout) {
		code = errdef.CodeTimeout
	}
	return errdef.Wrap(code, err, "open %s", target)
}
