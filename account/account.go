// Package account holds the directory of registered identities: credential
// hashes, account flags, timestamps, and the nicknames grouped to each
// account.
package account

import (
	"strings"
	"time"
)

// Flags is the per-account flag set. Freeze markers live in metadata, not
// here, because freezes carry setter/reason text.
type Flags uint32

const (
	// FlagWaitAuth marks an account whose email is not yet verified. Such
	// accounts do not get the on-login network burst.
	FlagWaitAuth Flags = 1 << iota

	// FlagNoOp suppresses all auto-privilege issuance for the account.
	FlagNoOp

	// FlagOper marks a network operator account; logins are announced to
	// the operator channel.
	FlagOper

	// FlagHideMail hides the email address from WHOIS-style queries.
	FlagHideMail
)

// Account is one registered identity. The Name is the designated nickname and
// always appears in Nicks.
type Account struct {
	Name         string
	Email        string
	PasswordHash string
	Flags        Flags
	Registered   time.Time
	LastLogin    time.Time
	Nicks        []string
}

// HasNick reports whether nick is grouped to the account.
func (a *Account) HasNick(nick string) bool {
	for _, n := range a.Nicks {
		if Fold(n) == Fold(nick) {
			return true
		}
	}
	return false
}

// Fold case-normalizes a nickname or account name under RFC 1459 casemapping,
// where []\~ are the uppercase forms of {}|^.
func Fold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			c += 'a' - 'A'
		case c == '[':
			c = '{'
		case c == ']':
			c = '}'
		case c == '\\':
			c = '|'
		case c == '~':
			c = '^'
		}
		b.WriteByte(c)
	}
	return b.String()
}
