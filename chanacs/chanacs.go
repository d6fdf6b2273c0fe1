// Package chanacs models the persisted channel authorization layer: per
// channel, an ordered list of entries binding an account to a bitmask of
// granted (or denied) privilege flags.
package chanacs

import (
	"sync"
	"time"

	"github.com/presbrey/services/account"
	"github.com/presbrey/services/command"
)

// Flags is the per-entry privilege bitmask.
type Flags uint32

const (
	// FlagAKick denies the channel: matching users are banned and removed.
	// AKick always short-circuits privilege grants on the same entry.
	FlagAKick Flags = 1 << iota

	// FlagRemove overrides an AKick elsewhere in the mask; an entry with
	// both bits is not enforced as a ban.
	FlagRemove

	// FlagSet permits changing channel settings.
	FlagSet

	FlagOp
	FlagAutoOp
	FlagVoice
	FlagAutoVoice
	FlagHalfop
	FlagAutoHalfop
	FlagAutoOwner
	FlagAutoProtect

	// FlagUsedUpdate stamps the channel's last-used time when a matching
	// user authenticates.
	FlagUsedUpdate
)

// Has reports whether all bits in want are set.
func (f Flags) Has(want Flags) bool {
	return f&want == want
}

// ChanFlags is the per-registered-channel flag set.
type ChanFlags uint32

const (
	// ChanNoOp suppresses auto-privilege issuance on the channel.
	ChanNoOp ChanFlags = 1 << iota

	// ChanInhabit marks a channel the service is keeping populated so a
	// ban enforcement cannot empty it.
	ChanInhabit

	// ChanVerbose announces access list changes to the whole channel.
	ChanVerbose

	// ChanVerboseOps restricts those announcements to channel operators.
	ChanVerboseOps
)

// Channel is one registered channel and its ordered access entries.
type Channel struct {
	mu sync.Mutex

	Name       string
	Registered time.Time

	flags  ChanFlags
	usedAt time.Time

	entries []*Entry
}

// Entry binds one account to a flag mask on one channel. Entries hold the
// channel name, not a back-pointer, so ownership stays with the list.
type Entry struct {
	ChannelName string
	Account     string
	Flags       Flags
}

// Flags returns the channel flag set.
func (c *Channel) Flags() ChanFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags
}

// SetFlags sets and clears channel flag bits and returns the updated set.
func (c *Channel) SetFlags(set, clear ChanFlags) ChanFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags = (c.flags &^ clear) | set
	return c.flags
}

// TouchUsed stamps the channel's last-used time.
func (c *Channel) TouchUsed(now time.Time) {
	c.mu.Lock()
	c.usedAt = now
	c.mu.Unlock()
}

// UsedAt returns the last-used stamp.
func (c *Channel) UsedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedAt
}

// Entries returns a copy of the channel's access entries in grant order.
func (c *Channel) Entries() []*Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// List is the authority over all registered channels and their access
// entries, indexed both by channel and by account.
type List struct {
	mu        sync.RWMutex
	channels  map[string]*Channel // folded channel name
	byAccount map[string][]*Entry // folded account name, grant order
}

func NewList() *List {
	return &List{
		channels:  make(map[string]*Channel),
		byAccount: make(map[string][]*Entry),
	}
}

// AddChannel registers a channel, or returns the existing record.
func (l *List) AddChannel(name string, registered time.Time) *Channel {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.channels[account.Fold(name)]; ok {
		return c
	}
	c := &Channel{Name: name, Registered: registered, usedAt: registered}
	l.channels[account.Fold(name)] = c
	return c
}

// Channel looks up a registered channel.
func (l *List) Channel(name string) *Channel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.channels[account.Fold(name)]
}

// Grant adds an access entry for an account on a channel. One entry exists
// per (channel, account) pair; granting again replaces the flag mask.
func (l *List) Grant(channelName, accountName string, flags Flags) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.channels[account.Fold(channelName)]
	if !ok {
		return nil, command.FaultNoSuchTarget
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if account.Fold(e.Account) == account.Fold(accountName) {
			e.Flags = flags
			return e, nil
		}
	}
	e := &Entry{ChannelName: c.Name, Account: accountName, Flags: flags}
	c.entries = append(c.entries, e)
	key := account.Fold(accountName)
	l.byAccount[key] = append(l.byAccount[key], e)
	return e, nil
}

// Revoke removes the entry for an account on a channel.
func (l *List) Revoke(channelName, accountName string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.channels[account.Fold(channelName)]
	if !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	found := false
	for i, e := range c.entries {
		if account.Fold(e.Account) == account.Fold(accountName) {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return false
	}
	key := account.Fold(accountName)
	list := l.byAccount[key]
	for i, e := range list {
		if account.Fold(e.ChannelName) == account.Fold(channelName) {
			l.byAccount[key] = append(list[:i], list[i+1:]...)
			break
		}
	}
	return true
}

// EntriesFor returns a copy of all entries granted to the account, in grant
// order. The sweep walks this list.
func (l *List) EntriesFor(accountName string) []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	list := l.byAccount[account.Fold(accountName)]
	out := make([]*Entry, len(list))
	copy(out, list)
	return out
}

// AccountHasFlag reports whether the account's entry on the channel carries
// all the given flag bits. Used for settings-change authorization.
func (l *List) AccountHasFlag(channelName, accountName string, want Flags) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.byAccount[account.Fold(accountName)] {
		if account.Fold(e.ChannelName) == account.Fold(channelName) {
			return e.Flags.Has(want)
		}
	}
	return false
}

// EachChannel calls fn for every registered channel. Persistence helper.
func (l *List) EachChannel(fn func(c *Channel)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, c := range l.channels {
		fn(c)
	}
}
