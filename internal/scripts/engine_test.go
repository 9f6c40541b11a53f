package scripts

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unkn0wn-root/zest/internal/errdef"
)

func TestEngineForExtension(t *testing.T) {
	reg := DefaultRegistry(nil)
	for _, key := range []string{"js", ".js", "JS", "javascript", "ecmascript"} {
		if reg.EngineForExtension(key) == nil {
			t.Fatalf("expected engine for %q", key)
		}
	}
	if reg.EngineForExtension("py") != nil {
		t.Fatalf("expected no engine for py")
	}
	if _, err := reg.EngineForPath("script.rb"); !errors.Is(err, ErrEngineNotFound) {
		t.Fatalf("expected ErrEngineNotFound, got %v", err)
	}
	if _, err := reg.EngineForPath("noext"); !errors.Is(err, ErrEngineNotFound) {
		t.Fatalf("expected ErrEngineNotFound, got %v", err)
	}
	var nilReg *Registry
	if nilReg.EngineForExtension("js") != nil {
		t.Fatalf("nil registry should have no engines")
	}
}

func TestJSEngineBindingsAndResult(t *testing.T) {
	var out bytes.Buffer
	engine := NewJSEngine(&out)

	res, err := engine.Eval(context.Background(), `console.log("hi", name); a * 2`, map[string]any{
		"name": "alice",
		"a":    21,
	})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if res.Value != "42" || !res.Truthy {
		t.Fatalf("unexpected result %+v", res)
	}
	if out.String() != "hi alice\n" {
		t.Fatalf("unexpected console output %q", out.String())
	}

	res, err = engine.Eval(context.Background(), `var x = 1;`, nil)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if res.Value != "" || res.Truthy {
		t.Fatalf("expected empty result, got %+v", res)
	}

	res, err = engine.Eval(context.Background(), `"" + (1 > 2)`, nil)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if res.Value != "false" {
		t.Fatalf("expected false, got %+v", res)
	}
}

func TestJSEngineErrors(t *testing.T) {
	engine := NewJSEngine(nil)
	_, err := engine.Eval(context.Background(), `throw new Error("boom")`, nil)
	if errdef.CodeOf(err) != errdef.CodeScript {
		t.Fatalf("expected script error, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = engine.Eval(ctx, `for (;;) {}`, nil)
	if errdef.CodeOf(err) != errdef.CodeCancelled {
		t.Fatalf("expected cancelled error, got %v", err)
	}
}
