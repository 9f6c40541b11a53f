package webdriver

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/unkn0wn-root/zest/internal/errdef"
)

// KnownBrowsers are the browser type names every registry understands.
var KnownBrowsers = []string{
	"Firefox",
	"Chrome",
	"HtmlUnit",
	"InternetExplorer",
	"JBD",
	"Opera",
	"PhantomJS",
	"Safari",
}

type Factory interface {
	New(ctx context.Context, opts LaunchOptions) (Driver, error)
}

type FactoryFunc func(ctx context.Context, opts LaunchOptions) (Driver, error)

func (f FactoryFunc) New(ctx context.Context, opts LaunchOptions) (Driver, error) {
	return f(ctx, opts)
}

// Registry maps browser type names to factories. Names are matched
// case-insensitively; any name may be registered, which is how custom
// drivers are plugged in.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(name))
	if f == nil {
		delete(r.factories, key)
		return
	}
	r.factories[key] = f
}

func (r *Registry) Lookup(name string) (Factory, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Launch starts the browser named by opts.BrowserType.
func (r *Registry) Launch(ctx context.Context, opts LaunchOptions) (Driver, error) {
	f, ok := r.Lookup(opts.BrowserType)
	if !ok {
		return nil, errdef.New(errdef.CodeClient, "Unsupported browser type: %s", opts.BrowserType)
	}
	d, err := f.New(ctx, opts)
	if err != nil {
		if errdef.CodeOf(err) == errdef.CodeUnknown {
			err = errdef.Wrap(errdef.CodeClient, err, "launch %s", opts.BrowserType)
		}
		return nil, err
	}
	return d, nil
}
