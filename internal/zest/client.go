package zest

import "strings"

// Locator type names accepted by element statements. Matching is case-insensitive.
const (
	LocateByID              = "id"
	LocateByName            = "name"
	LocateByClassName       = "className"
	LocateByCSSSelector     = "cssSelector"
	LocateByLinkText        = "linkText"
	LocateByPartialLinkText = "partialLinkText"
	LocateByTagName         = "tagName"
	LocateByXPath           = "xpath"
)

func LocatorTypes() []string {
	return []string{
		LocateByID,
		LocateByName,
		LocateByClassName,
		LocateByCSSSelector,
		LocateByLinkText,
		LocateByPartialLinkText,
		LocateByTagName,
		LocateByXPath,
	}
}

// ValidLocatorType reports whether t names a known locator type.
func ValidLocatorType(t string) bool {
	for _, known := range LocatorTypes() {
		if strings.EqualFold(t, known) {
			return true
		}
	}
	return false
}

// ElementLocator names a window and an element within it.
type ElementLocator struct {
	WindowHandle string `zest:"windowHandle"`
	Type         string `zest:"type"`
	Element      string `zest:"element"`
}

func (l *ElementLocator) Handle() string { return l.WindowHandle }

func (l *ElementLocator) Locator() *ElementLocator { return l }

// Locating is implemented by statements that resolve an element.
type Locating interface {
	Statement
	Locator() *ElementLocator
}

// ClientLaunch starts a browser and registers it under WindowHandle.
// Capabilities holds newline separated key=value lines.
type ClientLaunch struct {
	StatementBase
	WindowHandle string `zest:"windowHandle"`
	BrowserType  string `zest:"browserType"`
	URL          string `zest:"url"`
	Capabilities string `zest:"capabilities"`
	Headless     bool   `zest:"headless"`
	ProfilePath  string `zest:"profilePath"`
}

func NewClientLaunch(handle, browserType, url string) *ClientLaunch {
	return &ClientLaunch{
		WindowHandle: handle,
		BrowserType:  browserType,
		URL:          url,
		Headless:     true,
	}
}

func (*ClientLaunch) ElementType() string { return "ZestClientLaunch" }

func (c *ClientLaunch) Handle() string { return c.WindowHandle }

type ClientWindowClose struct {
	StatementBase
	WindowHandle   string `zest:"windowHandle"`
	SleepInSeconds int    `zest:"sleepInSeconds"`
}

func (*ClientWindowClose) ElementType() string { return "ZestClientWindowClose" }

func (c *ClientWindowClose) Handle() string { return c.WindowHandle }

type ClientElementClick struct {
	StatementBase
	ElementLocator
}

func (*ClientElementClick) ElementType() string { return "ZestClientElementClick" }

type ClientElementSendKeys struct {
	StatementBase
	ElementLocator
	Value string `zest:"value"`
}

func (*ClientElementSendKeys) ElementType() string { return "ZestClientElementSendKeys" }

type ClientElementSubmit struct {
	StatementBase
	ElementLocator
}

func (*ClientElementSubmit) ElementType() string { return "ZestClientElementSubmit" }

type ClientElementClear struct {
	StatementBase
	ElementLocator
}

func (*ClientElementClear) ElementType() string { return "ZestClientElementClear" }

// ClientElementSendKeysBySequence types Value one key at a time,
// pausing DelayInMs between keys.
type ClientElementSendKeysBySequence struct {
	StatementBase
	ElementLocator
	Value     string `zest:"value"`
	DelayInMs int64  `zest:"delayInMs"`
}

func (*ClientElementSendKeysBySequence) ElementType() string {
	return "ZestClientElementSendKeysBySequence"
}

// ClientSwitchToFrame selects a frame by index when FrameIndex >= 0,
// otherwise by FrameName. Parent returns to the parent frame.
type ClientSwitchToFrame struct {
	StatementBase
	WindowHandle string `zest:"windowHandle"`
	FrameIndex   int    `zest:"frameIndex"`
	FrameName    string `zest:"frameName"`
	Parent       bool   `zest:"parent"`
}

func (*ClientSwitchToFrame) ElementType() string { return "ZestClientSwitchToFrame" }

func (c *ClientSwitchToFrame) Handle() string { return c.WindowHandle }

// ClientWindowHandle binds WindowHandle to an already open window whose
// url equals URL, or matches it as a pattern when Regex is set.
type ClientWindowHandle struct {
	StatementBase
	WindowHandle string `zest:"windowHandle"`
	URL          string `zest:"url"`
	Regex        bool   `zest:"regex"`
}

func (*ClientWindowHandle) ElementType() string { return "ZestClientWindowHandle" }

func (c *ClientWindowHandle) Handle() string { return c.WindowHandle }

type ClientWindowOpenURL struct {
	StatementBase
	WindowHandle string `zest:"windowHandle"`
	URL          string `zest:"url"`
}

func (*ClientWindowOpenURL) ElementType() string { return "ZestClientWindowOpenUrl" }

func (c *ClientWindowOpenURL) Handle() string { return c.WindowHandle }
