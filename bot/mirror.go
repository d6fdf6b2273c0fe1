package bot

import (
	"strings"

	"github.com/lrstanley/girc"

	"github.com/presbrey/services/account"
	"github.com/presbrey/services/channel"
)

func (b *Bot) handleJoin(c *girc.Client, e girc.Event) {
	if e.Source == nil || len(e.Params) < 1 {
		return
	}
	b.Live.GetOrCreate(e.Params[0]).Join(e.Source.Name)
}

func (b *Bot) handlePart(c *girc.Client, e girc.Event) {
	if e.Source == nil || len(e.Params) < 1 {
		return
	}
	b.dropMember(e.Params[0], e.Source.Name)
}

func (b *Bot) handleKick(c *girc.Client, e girc.Event) {
	if len(e.Params) < 2 {
		return
	}
	b.dropMember(e.Params[0], e.Params[1])
}

func (b *Bot) handleQuit(c *girc.Client, e girc.Event) {
	if e.Source == nil {
		return
	}
	nick := e.Source.Name
	var empty []string
	b.Live.Each(func(ch *channel.Channel) {
		ch.Part(nick)
		if ch.Len() == 0 {
			empty = append(empty, ch.Name())
		}
	})
	for _, name := range empty {
		b.Live.Remove(name)
	}
	// a dropped connection ends its session
	if sess := b.Sessions.Logout(connID(nick)); sess != nil {
		b.NS.SessionEnded(sess)
	}
}

func (b *Bot) handleNick(c *girc.Client, e girc.Event) {
	if e.Source == nil || len(e.Params) < 1 {
		return
	}
	oldNick, newNick := e.Source.Name, e.Params[0]

	b.Live.Each(func(ch *channel.Channel) {
		if m, ok := ch.Member(oldNick); ok {
			status := m.Status
			ch.Part(oldNick)
			ch.Join(newNick).Status = status
		}
	})

	// migrate the session to the new connection key
	if sess := b.Sessions.Logout(connID(oldNick)); sess != nil {
		if moved, err := b.Sessions.Register(connID(newNick), sess.Account, newNick, sess.Mask, sess.LoginAt); err == nil {
			moved.ID = sess.ID
		}
	}
}

// handleMode applies channel mode changes to the mirror: member status modes
// per the protocol capability set, plus the ban and exception lists.
func (b *Bot) handleMode(c *girc.Client, e girc.Event) {
	if len(e.Params) < 2 || !strings.HasPrefix(e.Params[0], "#") {
		return
	}
	ch, ok := b.Live.Get(e.Params[0])
	if !ok {
		return
	}

	modes, args := e.Params[1], e.Params[2:]
	add := true
	for _, mode := range []byte(modes) {
		switch mode {
		case '+':
			add = true
		case '-':
			add = false
		default:
			if len(args) == 0 {
				continue
			}
			arg := args[0]
			if bits, ok := b.statusBits(mode); ok {
				args = args[1:]
				if m, found := ch.Member(arg); found {
					if add {
						m.Status |= bits
					} else {
						m.Status &^= bits
					}
				}
			} else if mode == 'b' {
				args = args[1:]
				if add {
					ch.AddBan(arg)
				} else {
					ch.RemoveBan(arg)
				}
			} else if mode == 'e' {
				args = args[1:]
				if add {
					ch.AddException(arg)
				} else {
					ch.RemoveException(arg)
				}
			} else if modeTakesArg(mode, add) {
				// keep the arg list aligned for modes the mirror ignores
				args = args[1:]
			}
		}
	}
}

// modeTakesArg reports whether a non-status channel mode consumes a
// parameter: key, limit, invite exceptions, and the common flood/redirect
// modes. Limit takes one only when set.
func modeTakesArg(mode byte, add bool) bool {
	switch mode {
	case 'k', 'f', 'j', 'I', 'L':
		return true
	case 'l':
		return add
	}
	return false
}

// statusBits maps a status mode character to its member status bits under the
// active protocol capability set.
func (b *Bot) statusBits(mode byte) (channel.Status, bool) {
	switch {
	case mode == 'o':
		return channel.StatusOp, true
	case mode == 'v':
		return channel.StatusVoice, true
	case b.Caps.UsesHalfops && mode == b.Caps.HalfopsChar:
		return channel.StatusHalfop, true
	case b.Caps.UsesProtect && mode == b.Caps.ProtectChar:
		return channel.StatusProtect, true
	case b.Caps.UsesOwner && mode == b.Caps.OwnerChar:
		return channel.StatusOwner, true
	}
	return 0, false
}

func (b *Bot) dropMember(channelName, nick string) {
	ch, ok := b.Live.Get(channelName)
	if !ok {
		return
	}
	ch.Part(nick)
	if ch.Len() == 0 && account.Fold(nick) != account.Fold(b.cfg.Nick) {
		b.Live.Remove(channelName)
	}
}
