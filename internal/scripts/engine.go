package scripts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/unkn0wn-root/zest/internal/errdef"
)

var ErrEngineNotFound = errors.New("script engine not found")

// Result is the value produced by the last expression of a script.
type Result struct {
	Value  string
	Truthy bool
}

type Engine interface {
	Name() string
	Extensions() []string
	Eval(ctx context.Context, source string, bindings map[string]any) (Result, error)
}

// Registry maps file extensions and engine names to engines.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
}

func NewRegistry(engines ...Engine) *Registry {
	r := &Registry{engines: make(map[string]Engine)}
	for _, e := range engines {
		r.Register(e)
	}
	return r
}

// DefaultRegistry holds the built-in JavaScript engine with console output
// sent to out.
func DefaultRegistry(out io.Writer) *Registry {
	return NewRegistry(NewJSEngine(out))
}

func (r *Registry) Register(e Engine) {
	if e == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[normalizeKey(e.Name())] = e
	for _, ext := range e.Extensions() {
		r.engines[normalizeKey(ext)] = e
	}
}

// EngineForExtension accepts "js", ".js" or an engine name. It returns nil
// when nothing is registered.
func (r *Registry) EngineForExtension(ext string) Engine {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.engines[normalizeKey(ext)]
}

// EngineForPath picks the engine registered for the extension of path.
func (r *Registry) EngineForPath(path string) (Engine, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return nil, fmt.Errorf("%w: %s has no extension", ErrEngineNotFound, path)
	}
	e := r.EngineForExtension(ext)
	if e == nil {
		return nil, fmt.Errorf("%w for extension %s", ErrEngineNotFound, ext)
	}
	return e, nil
}

func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.engines))
	for key := range r.engines {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(key), "."))
}

type JSEngine struct {
	out io.Writer
}

func NewJSEngine(out io.Writer) *JSEngine {
	return &JSEngine{out: out}
}

func (*JSEngine) Name() string { return "javascript" }

func (*JSEngine) Extensions() []string { return []string{"js", "ecmascript"} }

func (e *JSEngine) Eval(
	ctx context.Context,
	source string,
	bindings map[string]any,
) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	vm := goja.New()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-stop:
		}
	}()

	if err := bindCommon(vm, e.out); err != nil {
		return Result{}, errdef.Wrap(errdef.CodeScript, err, "bind console api")
	}
	for name, value := range bindings {
		if err := vm.Set(name, value); err != nil {
			return Result{}, errdef.Wrap(errdef.CodeScript, err, "bind %s", name)
		}
	}

	val, err := vm.RunString(source)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) && ctx.Err() != nil {
			return Result{}, errdef.Wrap(errdef.CodeCancelled, ctx.Err(), "script interrupted")
		}
		return Result{}, errdef.Wrap(errdef.CodeScript, err, "execute script")
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return Result{}, nil
	}
	return Result{Value: val.String(), Truthy: val.ToBoolean()}, nil
}

func bindCommon(vm *goja.Runtime, out io.Writer) error {
	write := func(call goja.FunctionCall) goja.Value {
		if out == nil {
			return goja.Undefined()
		}
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		fmt.Fprintln(out, strings.Join(parts, " "))
		return goja.Undefined()
	}
	console := map[string]func(goja.FunctionCall) goja.Value{
		"log":   write,
		"warn":  write,
		"error": write,
	}
	return vm.Set("console", console)
}
