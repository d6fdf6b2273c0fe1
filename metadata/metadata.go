// Package metadata implements the generic per-entity attribute store. One
// uniform mechanism backs both durable flags (freeze markers, outstanding
// password-change keys) and short-lived counters (failed-login bookkeeping),
// so no second schema is needed.
package metadata

import (
	"strings"
	"sync"
)

// Owner namespaces. Every entry belongs to exactly one owning entity,
// identified by namespace plus case-normalized name.
const (
	NamespaceAccount = "user"
	NamespaceChanAcs = "chanacs"
)

// Stable key contract: external tooling reads these keys directly, so they
// must not be renamed without a migration.
const (
	KeyLoginFailCount = "private:loginfail:failnum"
	KeyLoginFailAddr  = "private:loginfail:lastfailaddr"
	KeyLoginFailTime  = "private:loginfail:lastfailtime"

	KeyHostVHost  = "private:host:vhost"
	KeyHostActual = "private:host:actual"

	KeyFreezer      = "private:freeze:freezer"
	KeyRestrictedBy = "private:restrict:setter"
	KeyMarkedBy     = "private:mark:setter"

	KeySetpassKey        = "private:setpass:key"
	KeySendpassSender    = "private:sendpass:sender"
	KeySendpassTimestamp = "private:sendpass:timestamp"
)

// Owner identifies the entity a metadata tuple hangs off.
type Owner struct {
	Namespace string
	Name      string
}

// Account is shorthand for an account-namespace owner.
func Account(name string) Owner {
	return Owner{Namespace: NamespaceAccount, Name: name}
}

// IsPrivate reports whether a key is internally managed and must never be
// echoed verbatim to non-privileged callers.
func IsPrivate(key string) bool {
	return strings.HasPrefix(key, "private:")
}

// Store holds (owner, key) -> value tuples. Values are opaque text; numeric
// counters are encoded and decoded by the caller.
type Store struct {
	mu sync.RWMutex
	m  map[Owner]map[string]string
}

func NewStore() *Store {
	return &Store{m: make(map[Owner]map[string]string)}
}

// Get returns the value for (owner, key) and whether it exists.
func (s *Store) Get(owner Owner, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[owner][key]
	return v, ok
}

// Set stores or overwrites a value. Creating a new key is not an error.
func (s *Store) Set(owner Owner, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.m[owner]
	if !ok {
		entries = make(map[string]string)
		s.m[owner] = entries
	}
	entries[key] = value
}

// Delete removes a key and reports whether it was present.
func (s *Store) Delete(owner Owner, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.m[owner]
	if !ok {
		return false
	}
	if _, ok := entries[key]; !ok {
		return false
	}
	delete(entries, key)
	if len(entries) == 0 {
		delete(s.m, owner)
	}
	return true
}

// Entries returns a copy of all tuples for an owner.
func (s *Store) Entries(owner Owner) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.m[owner]))
	for k, v := range s.m[owner] {
		out[k] = v
	}
	return out
}

// DeleteOwner drops every tuple for an owner. Used when the owning entity is
// destroyed.
func (s *Store) DeleteOwner(owner Owner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, owner)
}

// Each calls fn for every tuple in the store. Intended for persistence
// snapshots; fn must not call back into the store.
func (s *Store) Each(fn func(owner Owner, key, value string)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for owner, entries := range s.m {
		for k, v := range entries {
			fn(owner, k, v)
		}
	}
}
