// Package session binds live connections to authenticated accounts and
// enforces the per-account session cap. It also owns the failed-login
// throttle bookkeeping kept in account metadata.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/presbrey/services/account"
	"github.com/presbrey/services/command"
)

// Session is the live binding of one connection to one account. A connection
// holds at most one session at a time.
type Session struct {
	ID      string
	ConnID  string
	Account string
	Nick    string
	Mask    string
	LoginAt time.Time
}

// Registry is the in-memory session authority. The cap check and the insert
// happen under one lock, so two concurrent authentications can never both
// pass the check and oversubscribe an account.
type Registry struct {
	mu            sync.Mutex
	maxPerAccount int
	byConn        map[string]*Session
	byAccount     map[string][]*Session // folded account name
}

func NewRegistry(maxPerAccount int) *Registry {
	return &Registry{
		maxPerAccount: maxPerAccount,
		byConn:        make(map[string]*Session),
		byAccount:     make(map[string][]*Session),
	}
}

// Max returns the configured per-account session cap.
func (r *Registry) Max() int {
	return r.maxPerAccount
}

// Lookup returns the session held by a connection, if any.
func (r *Registry) Lookup(connID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byConn[connID]
	return s, ok
}

// CountFor returns the number of live sessions on an account.
func (r *Registry) CountFor(accountName string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byAccount[account.Fold(accountName)])
}

// Count returns the total number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byConn)
}

// SessionsFor returns a copy of the account's live sessions.
func (r *Registry) SessionsFor(accountName string) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.byAccount[account.Fold(accountName)]
	out := make([]*Session, len(list))
	copy(out, list)
	return out
}

// Register creates a session for the connection, enforcing the account cap
// atomically. The connection must not already hold a session; callers tear
// down any prior session first.
func (r *Registry) Register(connID, accountName, nick, mask string, now time.Time) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byConn[connID]; ok {
		return nil, command.FaultAuthFail
	}
	key := account.Fold(accountName)
	if len(r.byAccount[key]) >= r.maxPerAccount {
		return nil, command.FaultTooMany
	}
	s := &Session{
		ID:      uuid.NewString(),
		ConnID:  connID,
		Account: accountName,
		Nick:    nick,
		Mask:    mask,
		LoginAt: now,
	}
	r.byConn[connID] = s
	r.byAccount[key] = append(r.byAccount[key], s)
	return s, nil
}

// Logout removes the connection's session and returns it, or nil if the
// connection was unauthenticated. Used for logout, displacement, and
// disconnect alike.
func (r *Registry) Logout(connID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byConn[connID]
	if !ok {
		return nil
	}
	delete(r.byConn, connID)
	key := account.Fold(s.Account)
	list := r.byAccount[key]
	for i, cur := range list {
		if cur.ConnID == connID {
			r.byAccount[key] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(r.byAccount[key]) == 0 {
		delete(r.byAccount, key)
	}
	return s
}

// DropAccount tears down every session on an account. Used on account drop.
func (r *Registry) DropAccount(accountName string) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := account.Fold(accountName)
	list := r.byAccount[key]
	for _, s := range list {
		delete(r.byConn, s.ConnID)
	}
	delete(r.byAccount, key)
	return list
}
