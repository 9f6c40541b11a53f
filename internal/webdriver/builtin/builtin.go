// Package builtin assembles the default driver registry: HtmlUnit runs in
// process, Chrome is driven over DevTools and every other browser goes
// through a configured remote WebDriver endpoint.
package builtin

import (
	"strings"
	"time"

	"github.com/unkn0wn-root/zest/internal/webdriver"
	"github.com/unkn0wn-root/zest/internal/webdriver/cdpdriver"
	"github.com/unkn0wn-root/zest/internal/webdriver/htmldriver"
	"github.com/unkn0wn-root/zest/internal/webdriver/w3c"
)

type Options struct {
	ChromePath string
	// Endpoints maps browser type names to remote WebDriver urls. Names
	// outside the known set register custom browser types.
	Endpoints map[string]string
	Timeout   time.Duration
}

func Registry(opts Options) *webdriver.Registry {
	reg := webdriver.NewRegistry()
	endpoints := make(map[string]string, len(opts.Endpoints))
	for name, endpoint := range opts.Endpoints {
		endpoints[strings.ToLower(strings.TrimSpace(name))] = endpoint
	}

	for _, name := range webdriver.KnownBrowsers {
		key := strings.ToLower(name)
		switch {
		case key == "htmlunit" && endpoints[key] == "":
			reg.Register(name, htmldriver.Factory)
		case key == "chrome" && endpoints[key] == "":
			reg.Register(name, cdpdriver.NewFactory(cdpdriver.Config{ExecPath: opts.ChromePath}))
		default:
			reg.Register(name, w3c.NewFactory(endpoints[key], opts.Timeout))
		}
		delete(endpoints, key)
	}
	for name, endpoint := range endpoints {
		reg.Register(name, w3c.NewFactory(endpoint, opts.Timeout))
	}
	return reg
}
