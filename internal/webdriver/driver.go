// Package webdriver defines the browser collaborator used by client
// statements: drivers, elements, locators and the factory registry that
// turns a browser type name into a running driver.
package webdriver

import (
	"context"
	"strings"

	"github.com/unkn0wn-root/zest/internal/errdef"
)

type By string

const (
	ByID              By = "id"
	ByName            By = "name"
	ByClassName       By = "className"
	ByCSSSelector     By = "cssSelector"
	ByLinkText        By = "linkText"
	ByPartialLinkText By = "partialLinkText"
	ByTagName         By = "tagName"
	ByXPath           By = "xpath"
)

var locatorKinds = []By{
	ByID,
	ByName,
	ByClassName,
	ByCSSSelector,
	ByLinkText,
	ByPartialLinkText,
	ByTagName,
	ByXPath,
}

type Locator struct {
	By    By
	Value string
}

func (l Locator) String() string {
	return string(l.By) + "=" + l.Value
}

// ParseLocator matches kind case-insensitively against the known locator
// types.
func ParseLocator(kind, value string) (Locator, error) {
	kind = strings.TrimSpace(kind)
	for _, known := range locatorKinds {
		if strings.EqualFold(kind, string(known)) {
			return Locator{By: known, Value: value}, nil
		}
	}
	return Locator{}, errdef.New(errdef.CodeClient, "unsupported locator type %q", kind)
}

type Element interface {
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, keys string) error
	Clear(ctx context.Context) error
	Submit(ctx context.Context) error
	Attribute(ctx context.Context, name string) (string, error)
	Text(ctx context.Context) (string, error)
	TagName(ctx context.Context) (string, error)
}

// FrameRef selects a frame. Parent wins over Index, and Index (when >= 0)
// wins over Name.
type FrameRef struct {
	Index  int
	Name   string
	Parent bool
}

// Driver is a live browser session. Close closes the current window only;
// Quit ends the session and every window it owns.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	FindElements(ctx context.Context, loc Locator) ([]Element, error)
	CurrentURL(ctx context.Context) (string, error)
	PageSource(ctx context.Context) (string, error)
	WindowHandles(ctx context.Context) ([]string, error)
	CurrentWindow(ctx context.Context) (string, error)
	SwitchToWindow(ctx context.Context, handle string) error
	SwitchToFrame(ctx context.Context, ref FrameRef) error
	Close(ctx context.Context) error
	Quit(ctx context.Context) error
}

// FindElement returns the first match for loc or a client error naming the
// locator when nothing matches.
func FindElement(ctx context.Context, d Driver, loc Locator) (Element, error) {
	found, err := d.FindElements(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, errdef.New(errdef.CodeClient, "no element found for %s", loc)
	}
	return found[0], nil
}

// Project reads the named property of el. "text" and "tagName" map to the
// element text and tag; anything else is read as an attribute.
func Project(ctx context.Context, el Element, attribute string) (string, error) {
	switch attribute {
	case "text":
		return el.Text(ctx)
	case "tagName":
		return el.TagName(ctx)
	default:
		return el.Attribute(ctx, attribute)
	}
}
