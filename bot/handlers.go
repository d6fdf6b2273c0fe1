package bot

import (
	"strings"

	"github.com/lrstanley/girc"

	"github.com/presbrey/services/command"
)

// responder delivers command outcomes as notices to the requesting nick.
type responder struct {
	bot  *Bot
	nick string
}

func (r *responder) Success(format string, args ...any) {
	r.bot.notice(r.nick, sprintf(format, args...))
}

func (r *responder) Fail(fault command.Fault, format string, args ...any) {
	r.bot.notice(r.nick, sprintf(format, args...))
}

// handleMessage dispatches a service command arriving over PRIVMSG.
func (b *Bot) handleMessage(c *girc.Client, e girc.Event) {
	if e.Source == nil || len(e.Params) < 2 {
		return
	}
	// only direct messages to the service nick are commands
	if !strings.EqualFold(e.Params[0], b.cfg.Nick) {
		return
	}

	words := strings.Fields(e.Last())
	if len(words) == 0 {
		return
	}
	verb, argv := strings.ToUpper(words[0]), words[1:]

	src := b.source(e)

	switch verb {
	case "IDENTIFY", "LOGIN":
		b.NS.Identify(src, argv)
	case "LOGOUT":
		b.NS.Logout(src, argv)
	case "GROUP":
		b.NS.Group(src, argv)
	case "UNGROUP":
		b.NS.Ungroup(src, argv)
	case "FUNGROUP":
		b.NS.Fungroup(src, argv)
	case "SENDPASS":
		b.NS.Sendpass(src, argv)
	case "SET":
		// SET <#channel> VERBOSE <ON|OPS|OFF>
		if len(argv) >= 2 && strings.EqualFold(argv[1], "VERBOSE") {
			b.CS.SetVerbose(src, append([]string{argv[0]}, argv[2:]...))
			return
		}
		src.Fail(command.FaultBadParams, "Invalid \x02SET\x02 command.")
	case "HELP":
		src.Success("Commands: IDENTIFY LOGIN LOGOUT GROUP UNGROUP FUNGROUP SENDPASS SET")
	default:
		src.Fail(command.FaultBadParams, "Invalid command. Use \x02HELP\x02 for a command listing.")
	}
}

// source builds the handler context for the sending user, resolving the
// session account and its configured operator privileges.
func (b *Bot) source(e girc.Event) *command.Source {
	nick := e.Source.Name
	id := connID(nick)

	var acctName string
	if sess, ok := b.Sessions.Lookup(id); ok {
		acctName = sess.Account
	}

	var privs map[string]bool
	if acctName != "" {
		if list := b.Privs(acctName); len(list) > 0 {
			privs = make(map[string]bool, len(list))
			for _, p := range list {
				privs[p] = true
			}
		}
	}

	// girc does not surface a separate displayed host; the cloaked host is
	// what the network shows us
	return command.NewSource(&responder{bot: b, nick: nick}, id,
		nick, e.Source.Ident, e.Source.Host, e.Source.Host, privs)
}
