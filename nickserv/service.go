// Package nickserv implements the account service command handlers:
// IDENTIFY/LOGIN, LOGOUT, GROUP/UNGROUP/FUNGROUP, and SENDPASS.
package nickserv

import (
	"time"

	"github.com/presbrey/services/account"
	"github.com/presbrey/services/command"
	"github.com/presbrey/services/metadata"
	"github.com/presbrey/services/metrics"
	"github.com/presbrey/services/reconcile"
	"github.com/presbrey/services/session"
)

// timestampFormat matches the format external tooling has always parsed out
// of service notices.
const timestampFormat = "Jan 2 15:04:05 2006"

// Service bundles the collaborators the handlers act on. The function fields
// are narrow outbound contracts: the uplink fills them in at startup, tests
// stub them.
type Service struct {
	Dir      *account.Directory
	Meta     *metadata.Store
	Sessions *session.Registry
	Throttle *session.Throttle
	Engine   *reconcile.Engine

	// MaxNicks caps the grouped-nickname set per account.
	MaxNicks int

	// NoNickOwnership switches user-facing wording from "identified for a
	// nickname" to "logged in as an account" and disables GROUP.
	NoNickOwnership bool

	// NetworkName appears in operator-facing freeze notices.
	NetworkName string

	// AccountNotice delivers a notice to every live session of an account.
	AccountNotice func(accountName, format string, args ...any)

	// OnLogin announces a completed login to the network backend.
	OnLogin func(nick, accountName string)

	// OnLogout announces a session teardown to the network backend.
	OnLogout func(nick, accountName string)

	// ReleaseNick lifts any services hold on an ungrouped nickname.
	ReleaseNick func(nick string)

	// SendEmail delivers a notification to the account's contact address.
	// kind selects the template; param carries the key or code.
	SendEmail func(a *account.Account, kind, param string) error

	now func() time.Time
}

// Email notification kinds.
const (
	EmailSetpass = "setpass"
)

// New constructs a Service with no-op outbound contracts.
func New(dir *account.Directory, meta *metadata.Store, sessions *session.Registry, throttle *session.Throttle, engine *reconcile.Engine) *Service {
	return &Service{
		Dir:           dir,
		Meta:          meta,
		Sessions:      sessions,
		Throttle:      throttle,
		Engine:        engine,
		MaxNicks:      5,
		AccountNotice: func(string, string, ...any) {},
		OnLogin:       func(string, string) {},
		OnLogout:      func(string, string) {},
		ReleaseNick:   func(string) {},
		SendEmail:     func(*account.Account, string, string) error { return nil },
		now:           time.Now,
	}
}

// Logout tears down the connection's session.
func (s *Service) Logout(src *command.Source, argv []string) {
	sess := s.Sessions.Logout(src.ConnID)
	if sess == nil {
		src.Fail(command.FaultNoChange, "You are not logged in.")
		return
	}
	metrics.Sessions.Dec()
	if a := s.Dir.FindByName(sess.Account); a != nil {
		a.LastLogin = s.now()
	}
	s.OnLogout(src.Nick, sess.Account)
	src.Account = ""
	command.Audit(command.AuditLogin, src, "LOGOUT")
	src.Success("You have been logged out of \x02%s\x02.", sess.Account)
}

// SessionEnded applies logout bookkeeping for a session already removed from
// the registry, such as on network disconnect.
func (s *Service) SessionEnded(sess *session.Session) {
	metrics.Sessions.Dec()
	if a := s.Dir.FindByName(sess.Account); a != nil {
		a.LastLogin = s.now()
	}
	s.OnLogout(sess.Nick, sess.Account)
}

// teardown removes a session during displacement, applying logout semantics
// without user-facing output.
func (s *Service) teardown(src *command.Source, sess *session.Session) {
	s.Sessions.Logout(sess.ConnID)
	metrics.Sessions.Dec()
	if a := s.Dir.FindByName(sess.Account); a != nil {
		a.LastLogin = s.now()
	}
	s.OnLogout(src.Nick, sess.Account)
	src.Account = ""
}

func (s *Service) frozen(a *account.Account) bool {
	_, ok := s.Meta.Get(metadata.Account(a.Name), metadata.KeyFreezer)
	return ok
}
