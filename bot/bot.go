// Package bot runs the network-facing service client: it connects to the
// uplink, mirrors channel state from network events, dispatches service
// commands arriving over PRIVMSG, and carries the reconciliation engine's
// mode changes back out.
package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lrstanley/girc"

	"github.com/presbrey/services/account"
	"github.com/presbrey/services/channel"
	"github.com/presbrey/services/chanserv"
	"github.com/presbrey/services/command"
	"github.com/presbrey/services/nickserv"
	"github.com/presbrey/services/protocol"
	"github.com/presbrey/services/session"
	"github.com/presbrey/services/wait"
)

// Config holds the uplink connection settings.
type Config struct {
	Server   string
	Port     int
	Nick     string
	User     string
	Password string
	TLS      bool

	// SnoopChannel receives operator event notices, if set.
	SnoopChannel string

	// JoinChans keeps the client in every registered channel.
	JoinChans bool
}

// Bot is the service client.
type Bot struct {
	cfg Config

	mu     sync.RWMutex
	client *girc.Client

	NS   *nickserv.Service
	CS   *chanserv.Service
	Live *channel.Registry
	Caps protocol.Capabilities

	Sessions *session.Registry

	// Privs resolves the operator privileges configured for an account.
	Privs func(accountName string) []string
}

// New builds the bot and wires the outbound contracts of the services into
// the client: wallops, snoop, account notices, and login announcements.
func New(cfg Config, caps protocol.Capabilities, ns *nickserv.Service, cs *chanserv.Service, live *channel.Registry, sessions *session.Registry) *Bot {
	if cfg.User == "" {
		cfg.User = strings.ToLower(cfg.Nick)
	}
	b := &Bot{
		cfg:      cfg,
		NS:       ns,
		CS:       cs,
		Live:     live,
		Caps:     caps,
		Sessions: sessions,
		Privs:    func(string) []string { return nil },
	}

	command.Wallops = func(format string, args ...any) {
		b.sendRawf("WALLOPS :%s", sprintf(format, args...))
	}
	command.Snoop = func(format string, args ...any) {
		if cfg.SnoopChannel != "" {
			b.message(cfg.SnoopChannel, sprintf(format, args...))
		}
	}

	ns.AccountNotice = func(accountName, format string, args ...any) {
		for _, sess := range sessions.SessionsFor(accountName) {
			b.notice(sess.Nick, sprintf(format, args...))
		}
	}
	ns.OnLogin = func(nick, accountName string) {
		b.sendRawf("SVSMODE %s +r", nick)
	}
	ns.OnLogout = func(nick, accountName string) {
		b.sendRawf("SVSMODE %s -r", nick)
	}
	cs.Announce = func(channelName, format string, args ...any) {
		b.notice(channelName, sprintf(format, args...))
	}

	return b
}

// Run connects to the uplink and serves until ctx is canceled, reconnecting
// with exponential backoff.
func (b *Bot) Run(ctx context.Context) error {
	backoff := wait.NewExponentialBackoffStrategy(time.Second, 2, time.Minute, true)

	for {
		client := b.newClient()
		b.mu.Lock()
		b.client = client
		b.mu.Unlock()

		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				client.Close()
			case <-done:
			}
		}()
		err := client.Connect()
		close(done)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Printf("[bot] uplink connection lost: %v", err)
		} else {
			backoff.Reset()
		}

		delay, _ := backoff.Next()
		log.Printf("[bot] reconnecting in %v", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Close disconnects the client.
func (b *Bot) Close() {
	b.mu.RLock()
	client := b.client
	b.mu.RUnlock()
	if client != nil {
		client.Close()
	}
}

func (b *Bot) newClient() *girc.Client {
	cfg := girc.Config{
		Server:     b.cfg.Server,
		Port:       b.cfg.Port,
		Nick:       b.cfg.Nick,
		User:       b.cfg.User,
		ServerPass: b.cfg.Password,
		SSL:        b.cfg.TLS,
	}
	client := girc.New(cfg)

	client.Handlers.Add(girc.CONNECTED, func(c *girc.Client, e girc.Event) {
		log.Printf("[bot] connected to %s as %s", b.cfg.Server, b.cfg.Nick)
		if b.cfg.SnoopChannel != "" {
			c.Cmd.Join(b.cfg.SnoopChannel)
		}
	})
	client.Handlers.Add(girc.ERROR, func(c *girc.Client, e girc.Event) {
		if len(e.Params) > 0 {
			log.Printf("[bot] uplink error: %s", e.Params[0])
		}
	})

	client.Handlers.Add(girc.PRIVMSG, b.handleMessage)

	client.Handlers.Add(girc.JOIN, b.handleJoin)
	client.Handlers.Add(girc.PART, b.handlePart)
	client.Handlers.Add(girc.KICK, b.handleKick)
	client.Handlers.Add(girc.QUIT, b.handleQuit)
	client.Handlers.Add(girc.NICK, b.handleNick)
	client.Handlers.Add(girc.MODE, b.handleMode)

	return client
}

func (b *Bot) cmd() *girc.Commands {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.client == nil {
		return nil
	}
	return b.client.Cmd
}

func (b *Bot) notice(target, message string) {
	if cmd := b.cmd(); cmd != nil {
		cmd.Notice(target, message)
	}
}

func (b *Bot) message(target, message string) {
	if cmd := b.cmd(); cmd != nil {
		cmd.Message(target, message)
	}
}

func (b *Bot) sendRawf(format string, args ...any) {
	if cmd := b.cmd(); cmd != nil {
		cmd.SendRawf(format, args...)
	}
}

// connID derives the session connection key for a network user. Nicknames are
// connection-unique on IRC, so the folded nick serves as the identifier; the
// NICK handler migrates sessions on rename.
func connID(nick string) string {
	return account.Fold(nick)
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
