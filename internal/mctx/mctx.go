/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

// Package mctx implements the per-request scratch arena and carried error
// value described for MapCache's context/error ledger: a single current
// error (HTTP-style code plus message) that can be saved and restored
// around speculative work (e.g. trying one cache tier, then falling back to
// the next), without ever unwinding the arena via panic/recover.
package mctx

import (
	"fmt"
	"net/http"
	"sync"
)

// Error codes. These map 1:1 to HTTP statuses at the dispatcher boundary
// (see internal/dispatch), but are carried as plain ints here so the cache
// and lock packages don't need to import net/http.
const (
	CodeNone                = 0
	CodeBadRequest          = http.StatusBadRequest
	CodeNotFound            = http.StatusNotFound
	CodeMethodNotAllowed    = http.StatusMethodNotAllowed
	CodeTooLarge            = http.StatusRequestEntityTooLarge
	CodeInternal            = http.StatusInternalServerError
	CodeServiceUnavailable  = http.StatusServiceUnavailable
)

// errState is the single carried error value. Copied by value on
// push/pop so a speculative section can be rolled back cheaply.
type errState struct {
	code    int
	message string
	source  string
}

// Arena is a minimal scoped allocator for per-request scratch buffers. It
// exists so that short-lived byte slices used while assembling a response
// (encoded tile bytes, header values, composed error bodies) have a single
// place that's released when the request ends, instead of relying on GC
// timing under heavy concurrent load.
type Arena struct {
	mu        sync.Mutex
	buffers   [][]byte
	cleanups  []func()
}

// Alloc returns a zeroed buffer of size n owned by the arena.
func (a *Arena) Alloc(n int) []byte {
	b := make([]byte, n)
	a.mu.Lock()
	a.buffers = append(a.buffers, b)
	a.mu.Unlock()
	return b
}

// OnRelease registers a cleanup function to run when the arena is released.
// Used by Context.Clone to tie a child context's lifetime to its parent.
func (a *Arena) OnRelease(f func()) {
	a.mu.Lock()
	a.cleanups = append(a.cleanups, f)
	a.mu.Unlock()
}

// Release runs all registered cleanups and drops references to scratch
// buffers. Safe to call multiple times.
func (a *Arena) Release() {
	a.mu.Lock()
	cleanups := a.cleanups
	a.cleanups = nil
	a.buffers = nil
	a.mu.Unlock()
	for _, f := range cleanups {
		f()
	}
}

// Context is the per-request arena described in spec §4.A: scratch
// allocator, a single current error, inbound headers, a redirect hint, and
// a log callback. It carries no configuration or connection-pool handle.
// It is not safe for concurrent use by multiple goroutines
// operating on the same request; Clone() is how concurrent sub-work gets
// its own context.
type Context struct {
	Arena             *Arena
	Headers           http.Header
	SupportsRedirects bool
	LogFn             func(msg string, pairs map[string]interface{})

	err    errState
	parent *Context
}

// New creates a root request context.
func New(headers http.Header) *Context {
	return &Context{
		Arena:   &Arena{},
		Headers: headers,
	}
}

// Clone returns a child context with its own arena. The child arena's
// release is registered as a cleanup of the parent arena, so releasing the
// parent guarantees the child is released too, but the child may also be
// released independently by the goroutine that owns it (e.g. one tier of a
// multi-tier read, or one path in a fallback locker).
func (c *Context) Clone() *Context {
	child := &Context{
		Arena:             &Arena{},
		Headers:           c.Headers,
		SupportsRedirects: c.SupportsRedirects,
		LogFn:             c.LogFn,
		parent:            c,
	}
	c.Arena.OnRelease(child.Arena.Release)
	return child
}

// Release tears down this context's arena (and transitively, any child
// arenas registered via Clone).
func (c *Context) Release() {
	c.Arena.Release()
}

// SetError sets the current error to code with a formatted message,
// tagged with a short source marker (e.g. the backend or locker name that
// raised it) for diagnostics.
func (c *Context) SetError(code int, source, format string, args ...interface{}) {
	c.err = errState{code: code, message: fmt.Sprintf(format, args...), source: source}
}

// HasError reports whether a current error is set.
func (c *Context) HasError() bool {
	return c.err.code != CodeNone
}

// Error returns the current error's code, message, and source marker.
func (c *Context) Error() (code int, message, source string) {
	return c.err.code, c.err.message, c.err.source
}

// ClearErrors resets the current error to the unset state.
func (c *Context) ClearErrors() {
	c.err = errState{}
}

// SavedErrors is an opaque token produced by PushErrors and consumed by
// PopErrors.
type SavedErrors struct {
	state errState
}

// PushErrors saves the current error state (for a speculative section —
// e.g. "try this cache tier") and clears the live error so the speculative
// code can set its own without disturbing the caller's.
func (c *Context) PushErrors() SavedErrors {
	saved := SavedErrors{state: c.err}
	c.err = errState{}
	return saved
}

// PopErrors restores a previously saved error state, discarding whatever
// error the speculative section set. Used when the speculative section's
// own error should be suppressed (e.g. a promotion failure in multi-tier
// cache, or an earlier locker in a fallback chain).
func (c *Context) PopErrors(saved SavedErrors) {
	c.err = saved.state
}
