package reconcile

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presbrey/services/account"
	"github.com/presbrey/services/chanacs"
	"github.com/presbrey/services/channel"
	"github.com/presbrey/services/protocol"
)

// fakeUplink records outbound operations in issue order.
type fakeUplink struct {
	ops []string
}

func (f *fakeUplink) Mode(channelName string, add bool, mode byte, target string) {
	sign := "+"
	if !add {
		sign = "-"
	}
	f.ops = append(f.ops, fmt.Sprintf("MODE %s %s%c %s", channelName, sign, mode, target))
}

func (f *fakeUplink) Join(channelName string) {
	f.ops = append(f.ops, "JOIN "+channelName)
}

func (f *fakeUplink) Ban(channelName, mask string) {
	f.ops = append(f.ops, fmt.Sprintf("BAN %s %s", channelName, mask))
}

func (f *fakeUplink) UnsetException(channelName, mask string) {
	f.ops = append(f.ops, fmt.Sprintf("UNEXCEPT %s %s", channelName, mask))
}

func (f *fakeUplink) Kick(channelName, nick, reason string) {
	f.ops = append(f.ops, fmt.Sprintf("KICK %s %s :%s", channelName, nick, reason))
}

type fixture struct {
	access *chanacs.List
	live   *channel.Registry
	uplink *fakeUplink
	engine *Engine
}

func newFixture(caps protocol.Capabilities, joinChans bool) *fixture {
	access := chanacs.NewList()
	live := channel.NewRegistry()
	uplink := &fakeUplink{}
	return &fixture{
		access: access,
		live:   live,
		uplink: uplink,
		engine: NewEngine(caps, access, live, uplink, joinChans),
	}
}

func acct(name string) *account.Account {
	return &account.Account{Name: name}
}

func TestSweepAutoOp(t *testing.T) {
	f := newFixture(protocol.RFC1459, false)
	f.access.AddChannel("#go", time.Now())
	f.access.Grant("#go", "alice", chanacs.FlagOp|chanacs.FlagAutoOp)
	f.live.GetOrCreate("#go").Join("alice")
	f.live.GetOrCreate("#go").Join("bob")

	f.engine.Sweep(acct("alice"), "alice", "alice!a@home")
	assert.Equal(t, []string{"MODE #go +o alice"}, f.uplink.ops)

	// the cached status prevents a second grant
	f.uplink.ops = nil
	f.engine.Sweep(acct("alice"), "alice", "alice!a@home")
	assert.Empty(t, f.uplink.ops)
}

func TestSweepOpSubsumesLowerTiers(t *testing.T) {
	f := newFixture(protocol.Unreal, false)
	f.access.AddChannel("#go", time.Now())
	f.access.Grant("#go", "alice", chanacs.FlagAutoOp|chanacs.FlagAutoHalfop|chanacs.FlagAutoVoice)
	f.live.GetOrCreate("#go").Join("alice")

	f.engine.Sweep(acct("alice"), "alice", "alice!a@home")
	assert.Equal(t, []string{"MODE #go +o alice"}, f.uplink.ops,
		"holding op suppresses the halfop and voice tiers")
}

func TestSweepVoiceOnly(t *testing.T) {
	f := newFixture(protocol.RFC1459, false)
	f.access.AddChannel("#go", time.Now())
	f.access.Grant("#go", "carol", chanacs.FlagAutoVoice)
	f.live.GetOrCreate("#go").Join("carol")

	f.engine.Sweep(acct("carol"), "carol", "carol!c@home")
	assert.Equal(t, []string{"MODE #go +v carol"}, f.uplink.ops)
}

func TestSweepOwnerTierSkippedWhenHeldElsewhere(t *testing.T) {
	f := newFixture(protocol.Unreal, false)
	f.access.AddChannel("#go", time.Now())
	f.access.Grant("#go", "alice", chanacs.FlagAutoOwner|chanacs.FlagAutoOp)

	ch := f.live.GetOrCreate("#go")
	ch.Join("alice")
	founder := ch.Join("founder")
	founder.Status = channel.StatusOwner

	f.engine.Sweep(acct("alice"), "alice", "alice!a@home")
	assert.Equal(t, []string{"MODE #go +o alice"}, f.uplink.ops,
		"owner already held by another member; only the op tier fires")
}

func TestSweepOwnerTierFiresWhenVacant(t *testing.T) {
	f := newFixture(protocol.Unreal, false)
	f.access.AddChannel("#go", time.Now())
	f.access.Grant("#go", "alice", chanacs.FlagAutoOwner|chanacs.FlagAutoOp)
	f.live.GetOrCreate("#go").Join("alice")

	f.engine.Sweep(acct("alice"), "alice", "alice!a@home")
	assert.Equal(t, []string{"MODE #go +q alice", "MODE #go +o alice"}, f.uplink.ops)
}

func TestSweepHalfopsRequireCapability(t *testing.T) {
	f := newFixture(protocol.RFC1459, false)
	f.access.AddChannel("#go", time.Now())
	f.access.Grant("#go", "alice", chanacs.FlagAutoHalfop)
	f.live.GetOrCreate("#go").Join("alice")

	f.engine.Sweep(acct("alice"), "alice", "alice!a@home")
	assert.Empty(t, f.uplink.ops, "backend without halfops issues nothing")
}

func TestSweepNoOpChannelFlag(t *testing.T) {
	f := newFixture(protocol.RFC1459, false)
	reg := f.access.AddChannel("#go", time.Now())
	reg.SetFlags(chanacs.ChanNoOp, 0)
	f.access.Grant("#go", "alice", chanacs.FlagAutoOp)
	f.live.GetOrCreate("#go").Join("alice")

	f.engine.Sweep(acct("alice"), "alice", "alice!a@home")
	assert.Empty(t, f.uplink.ops)
}

func TestSweepNoOpAccountFlag(t *testing.T) {
	f := newFixture(protocol.RFC1459, false)
	f.access.AddChannel("#go", time.Now())
	f.access.Grant("#go", "alice", chanacs.FlagAutoOp)
	f.live.GetOrCreate("#go").Join("alice")

	a := acct("alice")
	a.Flags |= account.FlagNoOp
	f.engine.Sweep(a, "alice", "alice!a@home")
	assert.Empty(t, f.uplink.ops)
}

func TestSweepSkipsChannelsNotOccupied(t *testing.T) {
	f := newFixture(protocol.RFC1459, false)
	f.access.AddChannel("#go", time.Now())
	f.access.Grant("#go", "alice", chanacs.FlagAutoOp)
	// channel is live, but alice is not in it
	f.live.GetOrCreate("#go").Join("bob")

	f.engine.Sweep(acct("alice"), "alice", "alice!a@home")
	assert.Empty(t, f.uplink.ops)
}

func TestSweepUsedUpdate(t *testing.T) {
	f := newFixture(protocol.RFC1459, false)
	registered := time.Unix(1600000000, 0)
	reg := f.access.AddChannel("#go", registered)
	f.access.Grant("#go", "alice", chanacs.FlagUsedUpdate)
	f.live.GetOrCreate("#go").Join("alice")

	stamp := registered.Add(24 * time.Hour)
	f.engine.now = func() time.Time { return stamp }
	f.engine.Sweep(acct("alice"), "alice", "alice!a@home")
	assert.Equal(t, stamp, reg.UsedAt())
}

func TestSweepEviction(t *testing.T) {
	f := newFixture(protocol.RFC1459, false)
	f.access.AddChannel("#go", time.Now())
	f.access.Grant("#go", "bob", chanacs.FlagAKick)

	ch := f.live.GetOrCreate("#go")
	ch.Join("bob")
	ch.Join("alice")
	ch.Join("carol")

	f.engine.Sweep(acct("bob"), "bob", "bob!b@evil.example")

	assert.Equal(t, []string{
		"BAN #go *!*@evil.example",
		"KICK #go bob :" + KickReason,
	}, f.uplink.ops)
	_, present := ch.Member("bob")
	assert.False(t, present)
}

func TestSweepEvictionJoinsBeforeEmptying(t *testing.T) {
	f := newFixture(protocol.RFC1459, false)
	reg := f.access.AddChannel("#go", time.Now())
	f.access.Grant("#go", "bob", chanacs.FlagAKick)

	// bob is the only occupant: removal would empty the channel and drop
	// the ban with it, so the service joins first
	f.live.GetOrCreate("#go").Join("bob")

	f.engine.Sweep(acct("bob"), "bob", "bob!b@evil.example")

	require.NotEmpty(t, f.uplink.ops)
	assert.Equal(t, "JOIN #go", f.uplink.ops[0], "join precedes the ban and kick")
	assert.NotZero(t, reg.Flags()&chanacs.ChanInhabit)
}

func TestSweepEvictionWithStandingPresence(t *testing.T) {
	f := newFixture(protocol.RFC1459, true)
	reg := f.access.AddChannel("#go", time.Now())
	f.access.Grant("#go", "bob", chanacs.FlagAKick)

	// service already present, so population 2 is the minimum and no
	// join is issued
	ch := f.live.GetOrCreate("#go")
	ch.Join("services")
	ch.Join("bob")

	f.engine.Sweep(acct("bob"), "bob", "bob!b@evil.example")

	assert.Equal(t, []string{
		"BAN #go *!*@evil.example",
		"KICK #go bob :" + KickReason,
	}, f.uplink.ops)
	assert.NotZero(t, reg.Flags()&chanacs.ChanInhabit)
}

func TestSweepEvictionClearsShieldingExceptions(t *testing.T) {
	f := newFixture(protocol.RFC1459, false)
	f.access.AddChannel("#go", time.Now())
	f.access.Grant("#go", "bob", chanacs.FlagAKick)

	ch := f.live.GetOrCreate("#go")
	ch.Join("bob")
	ch.Join("alice")
	ch.AddException("*!*@evil.example")
	ch.AddException("*!*@unrelated.example")

	f.engine.Sweep(acct("bob"), "bob", "bob!b@evil.example")

	assert.Contains(t, f.uplink.ops, "UNEXCEPT #go *!*@evil.example")
	assert.NotContains(t, f.uplink.ops, "UNEXCEPT #go *!*@unrelated.example")

	kickIdx, exceptIdx := -1, -1
	for i, op := range f.uplink.ops {
		switch op {
		case "UNEXCEPT #go *!*@evil.example":
			exceptIdx = i
		case "KICK #go bob :" + KickReason:
			kickIdx = i
		}
	}
	assert.Less(t, exceptIdx, kickIdx, "exceptions cleared before the kick")
}

func TestSweepBanShortCircuitsAutoPrivileges(t *testing.T) {
	// a ban entry that also carries auto-privilege bits evicts and never
	// grants, whatever the channel population
	for _, population := range []int{1, 2, 5} {
		f := newFixture(protocol.Unreal, false)
		f.access.AddChannel("#go", time.Now())
		f.access.Grant("#go", "bob", chanacs.FlagAKick|chanacs.FlagAutoOp|chanacs.FlagAutoOwner)

		ch := f.live.GetOrCreate("#go")
		ch.Join("bob")
		for i := 1; i < population; i++ {
			ch.Join(fmt.Sprintf("bystander%d", i))
		}

		f.engine.Sweep(acct("bob"), "bob", "bob!b@evil.example")

		assert.Contains(t, f.uplink.ops, "KICK #go bob :"+KickReason, "population %d", population)
		assert.NotContains(t, f.uplink.ops, "MODE #go +o bob", "population %d", population)
		assert.NotContains(t, f.uplink.ops, "MODE #go +q bob", "population %d", population)
		_, present := ch.Member("bob")
		assert.False(t, present, "population %d", population)
	}
}

func TestSweepRemoveOverridesAKick(t *testing.T) {
	f := newFixture(protocol.RFC1459, false)
	f.access.AddChannel("#go", time.Now())
	f.access.Grant("#go", "bob", chanacs.FlagAKick|chanacs.FlagRemove)

	ch := f.live.GetOrCreate("#go")
	ch.Join("bob")
	ch.Join("alice")

	f.engine.Sweep(acct("bob"), "bob", "bob!b@evil.example")
	assert.Empty(t, f.uplink.ops)
	_, present := ch.Member("bob")
	assert.True(t, present)
}

func TestBanMask(t *testing.T) {
	assert.Equal(t, "*!*@evil.example", banMask("bob!ident@evil.example"))
	assert.Equal(t, "weird", banMask("weird"))
}
