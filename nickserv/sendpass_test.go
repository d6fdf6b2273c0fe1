package nickserv

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presbrey/services/account"
	"github.com/presbrey/services/command"
	"github.com/presbrey/services/crypt"
	"github.com/presbrey/services/metadata"
)

func TestSendpassSuccess(t *testing.T) {
	f := newFixture(t, 5)
	f.register(t, "bob", "hunter2")

	var sentKind, sentParam string
	f.svc.SendEmail = func(a *account.Account, kind, param string) error {
		sentKind, sentParam = kind, param
		return nil
	}

	rec := &recorder{}
	f.svc.Sendpass(source(rec, "conn1", "helper"), []string{"bob"})
	assert.Empty(t, rec.failures)
	assert.Equal(t, EmailSetpass, sentKind)
	assert.NotEmpty(t, sentParam)

	owner := metadata.Account("bob")
	hash, ok := f.meta.Get(owner, metadata.KeySetpassKey)
	require.True(t, ok)
	assert.True(t, crypt.Verify(hash, sentParam), "stored hash matches the mailed key")

	sender, _ := f.meta.Get(owner, metadata.KeySendpassSender)
	assert.Equal(t, "helper", sender)
	_, ok = f.meta.Get(owner, metadata.KeySendpassTimestamp)
	assert.True(t, ok)
}

func TestSendpassEmailFailureLeavesNoKey(t *testing.T) {
	f := newFixture(t, 5)
	f.register(t, "bob", "hunter2")
	f.svc.SendEmail = func(*account.Account, string, string) error {
		return errors.New("smtp down")
	}

	rec := &recorder{}
	f.svc.Sendpass(source(rec, "conn1", "helper"), []string{"bob"})
	assert.Equal(t, command.FaultEmailFail, rec.lastFault())

	owner := metadata.Account("bob")
	for _, key := range []string{metadata.KeySetpassKey, metadata.KeySendpassSender, metadata.KeySendpassTimestamp} {
		_, ok := f.meta.Get(owner, key)
		assert.False(t, ok, "key %s must not be written on delivery failure", key)
	}
}

func TestSendpassOutstandingKey(t *testing.T) {
	f := newFixture(t, 5)
	f.register(t, "bob", "hunter2")
	f.meta.Set(metadata.Account("bob"), metadata.KeySetpassKey, "existinghash")

	rec := &recorder{}
	f.svc.Sendpass(source(rec, "conn1", "helper"), []string{"bob"})
	assert.Equal(t, command.FaultAlreadyExists, rec.lastFault())
}

func TestSendpassNoSuchTarget(t *testing.T) {
	f := newFixture(t, 5)
	rec := &recorder{}
	f.svc.Sendpass(source(rec, "conn1", "helper"), []string{"ghost"})
	assert.Equal(t, command.FaultNoSuchTarget, rec.lastFault())
}

func TestSendpassUnverifiedAccount(t *testing.T) {
	f := newFixture(t, 5)
	a := f.register(t, "bob", "hunter2")
	a.Flags |= account.FlagWaitAuth

	rec := &recorder{}
	f.svc.Sendpass(source(rec, "conn1", "helper"), []string{"bob"})
	assert.Equal(t, command.FaultBadParams, rec.lastFault())
}

func TestSendpassLoggedInSelf(t *testing.T) {
	f := newFixture(t, 5)
	f.register(t, "bob", "hunter2")
	f.login(t, "conn1", "bob", "bob", "hunter2")

	rec := &recorder{}
	src := source(rec, "conn1", "bob")
	src.Account = "bob"
	f.svc.Sendpass(src, []string{"bob"})
	assert.Equal(t, command.FaultAlreadyAuthed, rec.lastFault())
}

func TestSendpassLoggedInOther(t *testing.T) {
	f := newFixture(t, 5)
	f.register(t, "bob", "hunter2")
	f.login(t, "conn1", "bob", "bob", "hunter2")

	rec := &recorder{}
	f.svc.Sendpass(source(rec, "conn2", "helper"), []string{"bob"})
	assert.Equal(t, command.FaultNoPrivilege, rec.lastFault())
}

func TestSendpassFrozenAccount(t *testing.T) {
	f := newFixture(t, 5)
	f.register(t, "bob", "hunter2")
	f.meta.Set(metadata.Account("bob"), metadata.KeyFreezer, "oper")

	rec := &recorder{}
	f.svc.Sendpass(source(rec, "conn1", "helper"), []string{"bob"})
	assert.Equal(t, command.FaultNoPrivilege, rec.lastFault())
}

func TestSendpassForceRequiresPrivilege(t *testing.T) {
	f := newFixture(t, 5)
	f.register(t, "bob", "hunter2")

	rec := &recorder{}
	f.svc.Sendpass(source(rec, "conn1", "helper"), []string{"bob", "FORCE"})
	assert.Equal(t, command.FaultNoPrivilege, rec.lastFault())
}

func TestSendpassClear(t *testing.T) {
	f := newFixture(t, 5)
	f.register(t, "bob", "hunter2")
	owner := metadata.Account("bob")
	f.meta.Set(owner, metadata.KeySetpassKey, "hash")
	f.meta.Set(owner, metadata.KeySendpassSender, "helper")
	f.meta.Set(owner, metadata.KeySendpassTimestamp, "12345")

	rec := &recorder{}
	f.svc.Sendpass(source(rec, "conn1", "oper", command.PrivUserSendpass), []string{"bob", "CLEAR"})
	assert.Empty(t, rec.failures)

	for _, key := range []string{metadata.KeySetpassKey, metadata.KeySendpassSender, metadata.KeySendpassTimestamp} {
		_, ok := f.meta.Get(owner, key)
		assert.False(t, ok)
	}

	// nothing outstanding the second time
	rec = &recorder{}
	f.svc.Sendpass(source(rec, "conn1", "oper", command.PrivUserSendpass), []string{"bob", "CLEAR"})
	assert.Equal(t, command.FaultNoChange, rec.lastFault())
}

func TestSendpassBadOperand(t *testing.T) {
	f := newFixture(t, 5)
	f.register(t, "bob", "hunter2")

	rec := &recorder{}
	f.svc.Sendpass(source(rec, "conn1", "oper", command.PrivUserSendpass), []string{"bob", "FROB"})
	assert.Equal(t, command.FaultBadParams, rec.lastFault())
}

func TestSendpassMarkedAccountWallops(t *testing.T) {
	f := newFixture(t, 5)
	f.register(t, "bob", "hunter2")
	f.meta.Set(metadata.Account("bob"), metadata.KeyMarkedBy, "oper")

	var wallops []string
	restore := command.Wallops
	command.Wallops = func(format string, args ...any) {
		wallops = append(wallops, sprintfT(format, args...))
	}
	defer func() { command.Wallops = restore }()

	rec := &recorder{}
	f.svc.Sendpass(source(rec, "conn1", "helper"), []string{"bob"})
	assert.Empty(t, rec.failures)
	require.Len(t, wallops, 1)
	assert.Contains(t, wallops[0], "MARKED")
}
