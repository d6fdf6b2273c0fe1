// Package reconcile converges live channel privilege state with the persisted
// access model. The engine runs once per successful authentication, walking
// the account's access entries in grant order and issuing the minimal set of
// mode changes: ban enforcement first and short-circuiting, then owner,
// protect, op, halfop, voice, with the member's cached status updated after
// every issuance so no sweep ever grants a redundant or duplicate mode.
package reconcile

import (
	"strings"
	"time"

	"github.com/presbrey/services/account"
	"github.com/presbrey/services/chanacs"
	"github.com/presbrey/services/channel"
	"github.com/presbrey/services/metrics"
	"github.com/presbrey/services/protocol"
)

// KickReason is the fixed reason sent with autoban removals.
const KickReason = "User is banned from this channel"

// Uplink is the outbound side of reconciliation. Implementations guarantee
// eventual, order-preserving transmission; batching is their concern, not the
// engine's.
type Uplink interface {
	// Mode queues a single mode change for a target on a channel.
	Mode(channelName string, add bool, mode byte, target string)
	// Join places the service client in a channel.
	Join(channelName string)
	// Ban sets a ban mask on a channel.
	Ban(channelName, mask string)
	// UnsetException removes a ban exception mask from a channel.
	UnsetException(channelName, mask string)
	// Kick forcibly removes a user from a channel.
	Kick(channelName, nick, reason string)
}

// Predicate decides whether a tier above op should actually be issued for a
// matching entry, given the live channel. Deployment-specific.
type Predicate func(live *channel.Channel, entry *chanacs.Entry, nick string) bool

// Engine is the privilege reconciliation engine.
type Engine struct {
	Caps   protocol.Capabilities
	Access *chanacs.List
	Live   *channel.Registry
	Uplink Uplink

	// JoinChans is set when the service maintains a standing presence in
	// registered channels; it shifts the minimum viable population for ban
	// enforcement from 1 to 2.
	JoinChans bool

	// ShouldOwner and ShouldProtect gate the two highest tiers. The
	// defaults require the matching auto-flag and no other member already
	// holding the role, so multiple eligible members do not churn the
	// role between them.
	ShouldOwner   Predicate
	ShouldProtect Predicate

	now func() time.Time
}

// NewEngine builds an engine with the default tier predicates.
func NewEngine(caps protocol.Capabilities, access *chanacs.List, live *channel.Registry, uplink Uplink, joinChans bool) *Engine {
	return &Engine{
		Caps:      caps,
		Access:    access,
		Live:      live,
		Uplink:    uplink,
		JoinChans: joinChans,
		ShouldOwner: func(ch *channel.Channel, e *chanacs.Entry, nick string) bool {
			return e.Flags.Has(chanacs.FlagAutoOwner) && !ch.AnyMemberHas(channel.StatusOwner, nick)
		},
		ShouldProtect: func(ch *channel.Channel, e *chanacs.Entry, nick string) bool {
			return e.Flags.Has(chanacs.FlagAutoProtect) && !ch.AnyMemberHas(channel.StatusProtect, nick)
		},
		now: time.Now,
	}
}

// Sweep reconciles every channel the authenticated connection occupies
// against the account's access entries. Matching is by account identity only;
// hostmask entries are deliberately not evaluated here, since shared and
// cloaked hosts would produce false positives.
func (e *Engine) Sweep(acct *account.Account, nick, userMask string) {
	metrics.Sweeps.Inc()

	noAuto := acct.Flags&account.FlagNoOp != 0
	evicted := make(map[string]bool)

	for _, entry := range e.Access.EntriesFor(acct.Name) {
		chanKey := account.Fold(entry.ChannelName)
		if evicted[chanKey] {
			continue
		}
		live, ok := e.Live.Get(entry.ChannelName)
		if !ok {
			continue
		}
		// Membership is re-checked per entry: if the connection left the
		// channel mid-sweep, pending operations for it are discarded.
		member, ok := live.Member(nick)
		if !ok {
			continue
		}
		reg := e.Access.Channel(entry.ChannelName)
		if reg == nil {
			continue
		}

		if entry.Flags.Has(chanacs.FlagAKick) && !entry.Flags.Has(chanacs.FlagRemove) {
			e.evict(reg, live, nick, userMask)
			evicted[chanKey] = true
			continue
		}

		if entry.Flags.Has(chanacs.FlagUsedUpdate) {
			reg.TouchUsed(e.now())
		}

		if reg.Flags()&chanacs.ChanNoOp != 0 || noAuto {
			continue
		}

		if e.Caps.UsesOwner && !member.Status.Has(channel.StatusOwner) && e.ShouldOwner(live, entry, nick) {
			e.grant(live, member, channel.StatusOwner, e.Caps.OwnerChar)
		}

		if e.Caps.UsesProtect && !member.Status.Has(channel.StatusProtect) && e.ShouldProtect(live, entry, nick) {
			e.grant(live, member, channel.StatusProtect, e.Caps.ProtectChar)
		}

		if !member.Status.Has(channel.StatusOp) && entry.Flags.Has(chanacs.FlagAutoOp) {
			e.grant(live, member, channel.StatusOp, protocol.OpChar)
		}

		if e.Caps.UsesHalfops && !member.Status.Has(channel.StatusOp|channel.StatusHalfop) && entry.Flags.Has(chanacs.FlagAutoHalfop) {
			e.grant(live, member, channel.StatusHalfop, e.Caps.HalfopsChar)
		}

		if !member.Status.Has(channel.StatusOp|channel.StatusHalfop|channel.StatusVoice) && entry.Flags.Has(chanacs.FlagAutoVoice) {
			e.grant(live, member, channel.StatusVoice, protocol.VoiceChar)
		}
	}
}

// grant issues one add-mode operation and updates the member's cached status
// before the next tier is evaluated.
func (e *Engine) grant(live *channel.Channel, m *channel.Member, bits channel.Status, mode byte) {
	e.Uplink.Mode(live.Name(), true, mode, m.Nick)
	m.Status |= bits
	metrics.ModeChanges.WithLabelValues(string(mode)).Inc()
}

// evict enforces an autoban: if removal would leave the channel at or below
// its minimum viable population, the service inhabits (and if necessary
// joins) the channel first, then the ban is set, shielding exceptions are
// cleared, and the user is removed.
func (e *Engine) evict(reg *chanacs.Channel, live *channel.Channel, nick, userMask string) {
	minPopulation := 1
	if e.JoinChans {
		minPopulation = 2
	}
	if live.Len() <= minPopulation {
		reg.SetFlags(chanacs.ChanInhabit, 0)
		if !e.JoinChans {
			e.Uplink.Join(live.Name())
		}
	}

	mask := banMask(userMask)
	e.Uplink.Ban(live.Name(), mask)
	live.AddBan(mask)
	for _, except := range live.ExceptionsMatching(userMask) {
		e.Uplink.UnsetException(live.Name(), except)
	}
	e.Uplink.Kick(live.Name(), nick, KickReason)
	live.Part(nick)
	metrics.Evictions.Inc()
}

// banMask converts nick!ident@host into the *!*@host form used for autobans.
func banMask(userMask string) string {
	if at := strings.LastIndexByte(userMask, '@'); at >= 0 {
		return "*!*@" + userMask[at+1:]
	}
	return userMask
}
