package webdriver

import (
	"context"
	"time"

	"github.com/unkn0wn-root/zest/internal/errdef"
)

// WithTimeout bounds every call on d, and on the elements it finds, by
// timeout. A call that runs out of time fails with errdef.CodeTimeout.
// A zero timeout returns d unchanged.
func WithTimeout(d Driver, timeout time.Duration) Driver {
	if d == nil || timeout <= 0 {
		return d
	}
	if td, ok := d.(*timeoutDriver); ok {
		d = td.Driver
	}
	return &timeoutDriver{Driver: d, timeout: timeout}
}

type timeoutDriver struct {
	Driver
	timeout time.Duration
}

type timeoutElement struct {
	Element
	timeout time.Duration
}

func bounded(ctx context.Context, timeout time.Duration, op string, call func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := call(callCtx)
	if err != nil && ctx.Err() == nil && callCtx.Err() == context.DeadlineExceeded {
		return errdef.Wrap(errdef.CodeTimeout, err, "%s timed out after %s", op, timeout)
	}
	return err
}

func (d *timeoutDriver) Navigate(ctx context.Context, url string) error {
	return bounded(ctx, d.timeout, "navigate", func(ctx context.Context) error {
		return d.Driver.Navigate(ctx, url)
	})
}

func (d *timeoutDriver) FindElements(ctx context.Context, loc Locator) ([]Element, error) {
	var found []Element
	err := bounded(ctx, d.timeout, "find "+loc.String(), func(ctx context.Context) error {
		var err error
		found, err = d.Driver.FindElements(ctx, loc)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(found))
	for i, el := range found {
		out[i] = &timeoutElement{Element: el, timeout: d.timeout}
	}
	return out, nil
}

func (d *timeoutDriver) CurrentURL(ctx context.Context) (string, error) {
	return boundedString(ctx, d.timeout, "current url", d.Driver.CurrentURL)
}

func (d *timeoutDriver) PageSource(ctx context.Context) (string, error) {
	return boundedString(ctx, d.timeout, "page source", d.Driver.PageSource)
}

func (d *timeoutDriver) WindowHandles(ctx context.Context) ([]string, error) {
	var handles []string
	err := bounded(ctx, d.timeout, "window handles", func(ctx context.Context) error {
		var err error
		handles, err = d.Driver.WindowHandles(ctx)
		return err
	})
	return handles, err
}

func (d *timeoutDriver) CurrentWindow(ctx context.Context) (string, error) {
	return boundedString(ctx, d.timeout, "current window", d.Driver.CurrentWindow)
}

func (d *timeoutDriver) SwitchToWindow(ctx context.Context, handle string) error {
	return bounded(ctx, d.timeout, "switch to window", func(ctx context.Context) error {
		return d.Driver.SwitchToWindow(ctx, handle)
	})
}

func (d *timeoutDriver) SwitchToFrame(ctx context.Context, ref FrameRef) error {
	return bounded(ctx, d.timeout, "switch to frame", func(ctx context.Context) error {
		return d.Driver.SwitchToFrame(ctx, ref)
	})
}

func (d *timeoutDriver) Close(ctx context.Context) error {
	return bounded(ctx, d.timeout, "close window", d.Driver.Close)
}

func (d *timeoutDriver) Quit(ctx context.Context) error {
	return bounded(ctx, d.timeout, "quit", d.Driver.Quit)
}

func boundedString(ctx context.Context, timeout time.Duration, op string, call func(context.Context) (string, error)) (string, error) {
	var out string
	err := bounded(ctx, timeout, op, func(ctx context.Context) error {
		var err error
		out, err = call(ctx)
		return err
	})
	return out, err
}

func (e *timeoutElement) Click(ctx context.Context) error {
	return bounded(ctx, e.timeout, "click", e.Element.Click)
}

func (e *timeoutElement) SendKeys(ctx context.Context, keys string) error {
	return bounded(ctx, e.timeout, "send keys", func(ctx context.Context) error {
		return e.Element.SendKeys(ctx, keys)
	})
}

func (e *timeoutElement) Clear(ctx context.Context) error {
	return bounded(ctx, e.timeout, "clear", e.Element.Clear)
}

func (e *timeoutElement) Submit(ctx context.Context) error {
	return bounded(ctx, e.timeout, "submit", e.Element.Submit)
}

func (e *timeoutElement) Attribute(ctx context.Context, name string) (string, error) {
	return boundedString(ctx, e.timeout, "attribute "+name, func(ctx context.Context) (string, error) {
		return e.Element.Attribute(ctx, name)
	})
}

func (e *timeoutElement) Text(ctx context.Context) (string, error) {
	return boundedString(ctx, e.timeout, "text", e.Element.Text)
}

func (e *timeoutElement) TagName(ctx context.Context) (string, error) {
	return boundedString(ctx, e.timeout, "tag name", e.Element.TagName)
}
