package mctx

import (
	"net/http"
	"testing"
)

func TestSetErrorAndClear(t *testing.T) {
	ctx := New(http.Header{})
	if ctx.HasError() {
		t.Fatal("new context should not have an error")
	}
	ctx.SetError(CodeNotFound, "test", "tile %s missing", "l/0/0/0")
	if !ctx.HasError() {
		t.Fatal("expected HasError after SetError")
	}
	code, msg, source := ctx.Error()
	if code != CodeNotFound || source != "test" || msg == "" {
		t.Fatalf("unexpected error state: %d %q %q", code, msg, source)
	}
	ctx.ClearErrors()
	if ctx.HasError() {
		t.Fatal("ClearErrors should reset the error state")
	}
}

func TestPushPopErrors(t *testing.T) {
	ctx := New(http.Header{})
	ctx.SetError(CodeInternal, "outer", "boom")

	saved := ctx.PushErrors()
	if ctx.HasError() {
		t.Fatal("PushErrors should clear the live error for the speculative section")
	}
	ctx.SetError(CodeNotFound, "inner", "speculative miss")
	ctx.PopErrors(saved)

	code, _, source := ctx.Error()
	if code != CodeInternal || source != "outer" {
		t.Fatalf("PopErrors should restore the outer error, got %d/%s", code, source)
	}
}

func TestCloneReleaseCascades(t *testing.T) {
	parent := New(http.Header{})
	child := parent.Clone()

	released := false
	child.Arena.OnRelease(func() { released = true })

	parent.Release()
	if !released {
		t.Fatal("releasing the parent arena should cascade to the child arena")
	}
}
