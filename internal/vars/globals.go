package vars

import (
	"sort"
	"sync"
)

// GlobalStore is shared by every runner in the process. Concurrent writers
// race with last-writer-wins semantics.
type GlobalStore struct {
	mu     sync.RWMutex
	values map[string]string
}

var defaultGlobals = NewGlobalStore()

// Globals returns the process-wide store.
func Globals() *GlobalStore {
	return defaultGlobals
}

func NewGlobalStore() *GlobalStore {
	return &GlobalStore{values: make(map[string]string)}
}

func (g *GlobalStore) Get(name string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	value, ok := g.values[name]
	return value, ok
}

func (g *GlobalStore) Set(name, value string) {
	g.mu.Lock()
	g.values[name] = value
	g.mu.Unlock()
}

func (g *GlobalStore) Remove(name string) {
	g.mu.Lock()
	delete(g.values, name)
	g.mu.Unlock()
}

func (g *GlobalStore) Names() []string {
	g.mu.RLock()
	names := make([]string, 0, len(g.values))
	for name := range g.values {
		names = append(names, name)
	}
	g.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (g *GlobalStore) Resolve(name string) (string, bool) { return g.Get(name) }

func (g *GlobalStore) Label() string { return "global" }
