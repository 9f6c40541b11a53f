package errdef

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOfOutermostWins(t *testing.T) {
	inner := New(CodeIO, "read %s", "file.txt")
	outer := Wrap(CodeAction, inner, "invoke")
	if got := CodeOf(outer); got != CodeAction {
		t.Fatalf("expected %q, got %q", CodeAction, got)
	}
	if got := CodeOf(inner); got != CodeIO {
		t.Fatalf("expected %q, got %q", CodeIO, got)
	}
	if outer.Error() != "invoke: read file.txt" {
		t.Fatalf("unexpected message %q", outer.Error())
	}
}

func TestCodeOfPlainErrors(t *testing.T) {
	if got := CodeOf(nil); got != "" {
		t.Fatalf("expected empty code for nil, got %q", got)
	}
	if got := CodeOf(errors.New("boom")); got != CodeUnknown {
		t.Fatalf("expected unknown, got %q", got)
	}
	wrapped := fmt.Errorf("context: %w", New(CodeTimeout, "deadline"))
	if !Is(wrapped, CodeTimeout) {
		t.Fatalf("expected timeout code through fmt wrapping")
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(CodeIO, nil, "nothing"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
