package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinPartMember(t *testing.T) {
	c := New("#go")

	m := c.Join("Alice")
	assert.Equal(t, "Alice", m.Nick)
	assert.Equal(t, 1, c.Len())

	// rejoin returns the existing member
	again := c.Join("alice")
	assert.Same(t, m, again)
	assert.Equal(t, 1, c.Len())

	got, ok := c.Member("ALICE")
	require.True(t, ok)
	assert.Same(t, m, got)

	assert.True(t, c.Part("alice"))
	assert.False(t, c.Part("alice"))
	assert.Equal(t, 0, c.Len())
}

func TestStatusHasAnyBit(t *testing.T) {
	s := StatusOp
	assert.True(t, s.Has(StatusOp|StatusHalfop|StatusVoice), "op subsumes the lower-tier check")
	assert.False(t, s.Has(StatusOwner))
}

func TestAnyMemberHas(t *testing.T) {
	c := New("#go")
	alice := c.Join("alice")
	alice.Status = StatusOwner
	c.Join("bob")

	assert.True(t, c.AnyMemberHas(StatusOwner, "bob"))
	assert.False(t, c.AnyMemberHas(StatusOwner, "alice"), "the subject is excluded")
	assert.False(t, c.AnyMemberHas(StatusProtect, "bob"))
}

func TestExceptionsMatching(t *testing.T) {
	c := New("#go")
	c.AddException("*!*@trusted.example")
	c.AddException("bob!*@*")

	matched := c.ExceptionsMatching("bob!ident@trusted.example")
	assert.Len(t, matched, 2)

	// matching removes them from the mirror
	assert.Empty(t, c.ExceptionsMatching("bob!ident@trusted.example"))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Get("#go")
	assert.False(t, ok)

	c := r.GetOrCreate("#Go")
	got, ok := r.Get("#GO")
	require.True(t, ok)
	assert.Same(t, c, got)

	r.Remove("#go")
	_, ok = r.Get("#go")
	assert.False(t, ok)
}

func TestWildcardMatch(t *testing.T) {
	cases := []struct {
		s, pattern string
		want       bool
	}{
		{"bob!ident@host.example", "*!*@host.example", true},
		{"bob!ident@host.example", "bob!*@*", true},
		{"bob!ident@host.example", "*!*@other.example", false},
		{"bob!ident@host.example", "b?b!*@*", true},
		{"anything", "*", true},
		{"", "*", true},
		{"abc", "a?c", true},
		{"abc", "a?d", false},
		{"BOB!x@y", "bob!*@*", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, WildcardMatch(tc.s, tc.pattern), "%q vs %q", tc.s, tc.pattern)
	}
}
