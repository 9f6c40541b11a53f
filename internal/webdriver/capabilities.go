package webdriver

import (
	"net"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/zest/internal/errdef"
)

// Capability names shared by every browser.
const (
	CapAcceptInsecureCerts = "acceptInsecureCerts"
	CapAcceptSSLCerts      = "acceptSslCerts"
	CapProxy               = "proxy"
)

const headlessArg = "--headless"

type Capabilities map[string]any

// ParseCapabilities reads newline separated key=value lines. Blank lines
// are skipped; any other line must split into exactly two non-empty parts.
func ParseCapabilities(raw string) (Capabilities, error) {
	caps := Capabilities{}
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "=")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, errdef.New(
				errdef.CodeClient,
				"Invalid capability, expected type=value : %s",
				line,
			)
		}
		caps[parts[0]] = parts[1]
	}
	return caps, nil
}

// LaunchOptions is everything a factory needs to start a browser.
type LaunchOptions struct {
	BrowserType  string
	Headless     bool
	Proxy        string
	ProfilePath  string
	Capabilities Capabilities
	Prefs        map[string]any
	Args         []string
}

// NewLaunchOptions builds the capabilities for browserType from the
// script's capability lines, the runtime proxy (host:port) and the
// headless flag, applying the per-browser adjustments.
func NewLaunchOptions(
	browserType string,
	headless bool,
	proxy string,
	capabilityLines string,
) (LaunchOptions, error) {
	opts := LaunchOptions{
		BrowserType: browserType,
		Headless:    headless,
		Proxy:       proxy,
		Capabilities: Capabilities{
			CapAcceptSSLCerts:      true,
			CapAcceptInsecureCerts: true,
		},
	}
	if proxy != "" {
		opts.Capabilities[CapProxy] = map[string]any{
			"proxyType": "manual",
			"httpProxy": proxy,
			"sslProxy":  proxy,
		}
	}

	extra, err := ParseCapabilities(capabilityLines)
	if err != nil {
		return LaunchOptions{}, err
	}
	for k, v := range extra {
		opts.Capabilities[k] = v
	}

	switch strings.ToLower(browserType) {
	case "firefox":
		if headless {
			opts.Args = append(opts.Args, headlessArg)
		}
		if proxy != "" {
			prefs, err := firefoxProxyPrefs(proxy)
			if err != nil {
				return LaunchOptions{}, err
			}
			opts.Prefs = prefs
			// the generic proxy capability is not honoured by geckodriver
			delete(opts.Capabilities, CapProxy)
		}
	case "chrome":
		if headless {
			opts.Args = append(opts.Args, headlessArg, "--ignore-certificate-errors")
		}
	case "jbd":
		opts.Capabilities["jbd.headless"] = headless
		opts.Capabilities["jbd.ssl"] = "trustanything"
	case "phantomjs":
		opts.Args = append(opts.Args, "--ssl-protocol=any", "--ignore-ssl-errors=yes")
		opts.Capabilities["phantomjs.cli.args"] = []string{
			"--ssl-protocol=any",
			"--ignore-ssl-errors=yes",
		}
	}
	return opts, nil
}

func firefoxProxyPrefs(proxy string) (map[string]any, error) {
	host, rawPort, err := net.SplitHostPort(proxy)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeClient, err, "invalid proxy %q", proxy)
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeClient, err, "invalid proxy port %q", rawPort)
	}
	return map[string]any{
		"network.proxy.type":                 1,
		"network.proxy.http":                 host,
		"network.proxy.http_port":            port,
		"network.proxy.ssl":                  host,
		"network.proxy.ssl_port":             port,
		"network.proxy.share_proxy_settings": true,
		"network.proxy.no_proxies_on":        "",
	}, nil
}
