// Package channel mirrors live channel state as seen from the network: who
// occupies each channel, which status modes they hold, and the ban and
// exception lists. The reconciliation engine reads and updates this mirror;
// the uplink keeps it in sync with network events.
package channel

import (
	"strings"
	"sync"

	"github.com/presbrey/services/account"
)

// Status is the bitmask of channel privilege modes a member holds. It doubles
// as the engine's per-sweep mode cache: every issued mode change updates it
// before the next tier is evaluated.
type Status uint32

const (
	StatusVoice Status = 1 << iota
	StatusHalfop
	StatusOp
	StatusProtect
	StatusOwner
)

// Has reports whether any of the given bits are held.
func (s Status) Has(bits Status) bool {
	return s&bits != 0
}

// Member is one occupant of a channel.
type Member struct {
	Nick   string
	Status Status
}

// Channel is the live state of one channel.
type Channel struct {
	mu      sync.RWMutex
	name    string
	members map[string]*Member // folded nick
	bans    map[string]bool    // masks
	excepts map[string]bool    // masks
}

func New(name string) *Channel {
	return &Channel{
		name:    name,
		members: make(map[string]*Member),
		bans:    make(map[string]bool),
		excepts: make(map[string]bool),
	}
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// Join adds a member, or returns the existing one.
func (c *Channel) Join(nick string) *Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.members[account.Fold(nick)]; ok {
		return m
	}
	m := &Member{Nick: nick}
	c.members[account.Fold(nick)] = m
	return m
}

// Part removes a member and reports whether they were present.
func (c *Channel) Part(nick string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.members[account.Fold(nick)]; !ok {
		return false
	}
	delete(c.members, account.Fold(nick))
	return true
}

// Member returns the live membership for a nick, if present.
func (c *Channel) Member(nick string) (*Member, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.members[account.Fold(nick)]
	return m, ok
}

// Len returns the current population.
func (c *Channel) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members)
}

// AnyMemberHas reports whether some member other than exceptNick holds any of
// the given status bits.
func (c *Channel) AnyMemberHas(bits Status, exceptNick string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for key, m := range c.members {
		if key == account.Fold(exceptNick) {
			continue
		}
		if m.Status.Has(bits) {
			return true
		}
	}
	return false
}

// AddBan records a ban mask in the mirror.
func (c *Channel) AddBan(mask string) {
	c.mu.Lock()
	c.bans[mask] = true
	c.mu.Unlock()
}

// RemoveBan clears a ban mask.
func (c *Channel) RemoveBan(mask string) {
	c.mu.Lock()
	delete(c.bans, mask)
	c.mu.Unlock()
}

// AddException records a ban exception mask.
func (c *Channel) AddException(mask string) {
	c.mu.Lock()
	c.excepts[mask] = true
	c.mu.Unlock()
}

// RemoveException clears a ban exception mask.
func (c *Channel) RemoveException(mask string) {
	c.mu.Lock()
	delete(c.excepts, mask)
	c.mu.Unlock()
}

// ExceptionsMatching returns the exception masks that would shield the given
// user mask from a ban, removing them from the mirror.
func (c *Channel) ExceptionsMatching(userMask string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for mask := range c.excepts {
		if WildcardMatch(userMask, mask) {
			out = append(out, mask)
			delete(c.excepts, mask)
		}
	}
	return out
}

// Registry tracks all live channels by name.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]*Channel)}
}

// Get returns the live channel, if one exists.
func (r *Registry) Get(name string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.channels[account.Fold(name)]
	return c, ok
}

// GetOrCreate returns the live channel, creating an empty one if needed.
func (r *Registry) GetOrCreate(name string) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.channels[account.Fold(name)]; ok {
		return c
	}
	c := New(name)
	r.channels[account.Fold(name)] = c
	return c
}

// Each calls fn for every live channel. The uplink mirror uses this to apply
// network-wide events like quits and nick changes.
func (r *Registry) Each(fn func(c *Channel)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.channels {
		fn(c)
	}
}

// Remove drops a channel once its last member leaves.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	delete(r.channels, account.Fold(name))
	r.mu.Unlock()
}

// WildcardMatch reports whether s matches an IRC mask pattern, where '*'
// matches any run and '?' any single character.
func WildcardMatch(s, pattern string) bool {
	if pattern == "*" {
		return true
	}
	return matchHere(strings.ToLower(s), strings.ToLower(pattern))
}

func matchHere(s, p string) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*':
			for i := 0; i <= len(s); i++ {
				if matchHere(s[i:], p[1:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
		default:
			if len(s) == 0 || s[0] != p[0] {
				return false
			}
		}
		s = s[1:]
		p = p[1:]
	}
	return len(s) == 0
}
