package vars

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestExpandFromProviders(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(NewMapProvider("params", map[string]string{
		"host":  "http://localhost:8080",
		"token": "abc123",
	}))

	got := resolver.Expand("{{host}}/api?token={{token}}", false)
	expected := "http://localhost:8080/api?token=abc123"
	if got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}

	got = resolver.Expand("{{host}}/api/{{missing}}", false)
	if got != "http://localhost:8080/api/" {
		t.Fatalf("unknown names should expand to empty, got %q", got)
	}
}

func TestExpandProviderOrder(t *testing.T) {
	t.Parallel()

	local := NewStore("local")
	local.Set("name", "local")
	resolver := NewResolver(
		local,
		NewMapProvider("params", map[string]string{"name": "param", "other": "param"}),
	)
	if got := resolver.Expand("{{name}} {{other}}", false); got != "local param" {
		t.Fatalf("unexpected precedence %q", got)
	}
}

func TestExpandIsSinglePass(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(NewMapProvider("params", map[string]string{
		"a": "{{b}}",
		"b": "nope",
	}))
	if got := resolver.Expand("x{{a}}y", false); got != "x{{b}}y" {
		t.Fatalf("replacement text must not be rescanned, got %q", got)
	}
}

func TestExpandLeavesMalformedTokens(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(NewMapProvider("params", map[string]string{"a": "1"}))
	cases := map[string]string{
		"no tokens here":  "no tokens here",
		"{{a":             "{{a",
		"a}}":             "a}}",
		"{{ a }}":         "{{ a }}",
		"{{first name}}":  "{{first name}}",
		"{{}}":            "{{}}",
		"{{x{{a}}":        "{{x1",
		"}}{{a}}{{":       "}}1{{",
		"{{a}}{{a}}{{a}}": "111",
	}
	for input, expected := range cases {
		if got := resolver.Expand(input, false); got != expected {
			t.Fatalf("Expand(%q) = %q, expected %q", input, got, expected)
		}
	}
}

func TestExpandURLEncode(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(NewMapProvider("params", map[string]string{"q": "a b&c=d/é~"}))
	got := resolver.Expand("http://x/?q={{q}}", true)
	expected := "http://x/?q=a%20b%26c%3Dd%2F%C3%A9~"
	if got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}
}

func TestExpandCustomDelimiters(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(NewMapProvider("params", map[string]string{"a": "1"}))
	resolver.SetDelimiters("${", "}")
	if got := resolver.Expand("${a}-{{a}}", false); got != "1-{{a}}" {
		t.Fatalf("unexpected expansion %q", got)
	}
	resolver.SetDelimiters("", "")
	if start, end := resolver.Delimiters(); start != DefaultStart || end != DefaultEnd {
		t.Fatalf("expected default delimiters, got %q %q", start, end)
	}
}

func TestDynamicGuidAlias(t *testing.T) {
	t.Parallel()

	resolver := NewResolver()
	expanded := resolver.Expand("{{$guid}}", false)
	if len(expanded) != 36 {
		t.Fatalf("expected uuid-style length 36, got %d (%q)", len(expanded), expanded)
	}
}

func TestDynamicCanBeShadowedByProviders(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(NewMapProvider("params", map[string]string{
		"$timestamp": "shadowed",
	}))
	if got := resolver.Expand("{{$timestamp}}", false); got != "shadowed" {
		t.Fatalf("expected provider value, got %q", got)
	}
}

func TestDynamicHelpersCaseInsensitive(t *testing.T) {
	t.Parallel()

	resolver := NewResolver()
	for _, input := range []string{"{{$UUID}}", "{{$Guid}}", "{{$TIMESTAMPISO8601}}", "{{$randomINT}}"} {
		out := resolver.Expand(input, false)
		if out == "" || strings.Contains(out, "{{") {
			t.Fatalf("expected %s to expand, got %q", input, out)
		}
	}
}

func TestGlobalStoreConcurrentAccess(t *testing.T) {
	t.Parallel()

	store := NewGlobalStore()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%4)
			store.Set(key, fmt.Sprint(i))
			store.Get(key)
			store.Names()
		}(i)
	}
	wg.Wait()

	if names := store.Names(); len(names) != 4 {
		t.Fatalf("expected 4 names, got %v", names)
	}
	store.Set("k0", "last")
	if v, _ := store.Resolve("k0"); v != "last" {
		t.Fatalf("expected last writer to win, got %q", v)
	}
	store.Remove("k0")
	if _, ok := store.Get("k0"); ok {
		t.Fatalf("expected k0 removed")
	}
}
