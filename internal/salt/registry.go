// Package salt issues and verifies the single-use tokens that authenticate
// calls from page script.
//
// Every mutation happens under one mutex, so minting, consuming and revoking
// are atomic with respect to each other.
package salt

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	window  string
	event   bool      // Minted for an emitted event rather than a call
	expires time.Time // Zero means no expiry
}

// Registry holds outstanding salts.
type Registry struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

// NewRegistry creates a registry. A ttl of 0 disables expiry.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Generate mints a call salt bound to window.
func (r *Registry) Generate(window string) string {
	return r.generate(window, false)
}

// GenerateEvent mints a salt for one event emitted to window. Event salts
// survive RevokeCalls, so an event queued while the page reloads still
// validates in the new page.
func (r *Registry) GenerateEvent(window string) string {
	return r.generate(window, true)
}

func (r *Registry) generate(window string, event bool) string {
	token := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweepLocked(now)

	e := entry{window: window, event: event}
	if r.ttl > 0 {
		e.expires = now.Add(r.ttl)
	}
	r.entries[token] = e
	return token
}

// Verify consumes token if it is outstanding, regardless of window.
func (r *Registry) Verify(token string) bool {
	return r.verify("", token, false)
}

// VerifyFor consumes token if it is outstanding and was minted for window.
// A miss leaves the registry untouched.
func (r *Registry) VerifyFor(window, token string) bool {
	return r.verify(window, token, true)
}

func (r *Registry) verify(window, token string, bound bool) bool {
	if token == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[token]
	if !ok {
		return false
	}
	if !e.expires.IsZero() && !r.now().Before(e.expires) {
		delete(r.entries, token)
		return false
	}
	if bound && e.window != window {
		return false
	}
	delete(r.entries, token)
	return true
}

// RevokeWindow drops every salt minted for window and returns how many.
func (r *Registry) RevokeWindow(window string) int {
	return r.revoke(window, true)
}

// RevokeCalls drops the call salts of window and returns how many. Event
// salts are kept.
func (r *Registry) RevokeCalls(window string) int {
	return r.revoke(window, false)
}

func (r *Registry) revoke(window string, events bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for token, e := range r.entries {
		if e.window == window && (events || !e.event) {
			delete(r.entries, token)
			n++
		}
	}
	return n
}

// Len returns the number of outstanding salts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// sweepLocked drops expired entries. Caller must hold r.mu.
func (r *Registry) sweepLocked(now time.Time) {
	if r.ttl <= 0 {
		return
	}
	for token, e := range r.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(r.entries, token)
		}
	}
}
