package bot

import (
	"testing"

	"github.com/lrstanley/girc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presbrey/services/channel"
	"github.com/presbrey/services/protocol"
)

func newMirrorBot() *Bot {
	return &Bot{
		cfg:  Config{Nick: "NickServ"},
		Live: channel.NewRegistry(),
		Caps: protocol.Unreal,
	}
}

func modeEvent(params ...string) girc.Event {
	return girc.Event{Command: girc.MODE, Params: params}
}

func memberStatus(t *testing.T, b *Bot, channelName, nick string) channel.Status {
	t.Helper()
	ch, ok := b.Live.Get(channelName)
	require.True(t, ok)
	m, ok := ch.Member(nick)
	require.True(t, ok)
	return m.Status
}

func TestHandleModeStatusChange(t *testing.T) {
	b := newMirrorBot()
	b.Live.GetOrCreate("#go").Join("alice")

	b.handleMode(nil, modeEvent("#go", "+o", "alice"))
	assert.True(t, memberStatus(t, b, "#go", "alice").Has(channel.StatusOp))

	b.handleMode(nil, modeEvent("#go", "-o+v", "alice", "alice"))
	status := memberStatus(t, b, "#go", "alice")
	assert.False(t, status.Has(channel.StatusOp))
	assert.True(t, status.Has(channel.StatusVoice))
}

func TestHandleModeConsumesNonStatusArguments(t *testing.T) {
	b := newMirrorBot()
	b.Live.GetOrCreate("#go").Join("alice")

	// the limit argument must not be mistaken for the op target
	b.handleMode(nil, modeEvent("#go", "+lo", "10", "alice"))
	assert.True(t, memberStatus(t, b, "#go", "alice").Has(channel.StatusOp))
}

func TestHandleModeKeyAndBanAlignment(t *testing.T) {
	b := newMirrorBot()
	b.Live.GetOrCreate("#go").Join("alice")

	b.handleMode(nil, modeEvent("#go", "+kbv", "sekrit", "*!*@evil.example", "alice"))
	assert.True(t, memberStatus(t, b, "#go", "alice").Has(channel.StatusVoice))
}

func TestHandleModeUnsetLimitTakesNoArgument(t *testing.T) {
	b := newMirrorBot()
	ch := b.Live.GetOrCreate("#go")
	ch.Join("alice").Status = channel.StatusOp

	b.handleMode(nil, modeEvent("#go", "-lo", "alice"))
	assert.False(t, memberStatus(t, b, "#go", "alice").Has(channel.StatusOp),
		"-l consumes nothing, so alice is the -o target")
}

func TestHandleModeIgnoresNonChannelTarget(t *testing.T) {
	b := newMirrorBot()
	b.handleMode(nil, modeEvent("alice", "+i"))
	_, ok := b.Live.Get("alice")
	assert.False(t, ok)
}
