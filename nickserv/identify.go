package nickserv

import (
	"github.com/presbrey/services/account"
	"github.com/presbrey/services/command"
	"github.com/presbrey/services/crypt"
	"github.com/presbrey/services/hooks"
	"github.com/presbrey/services/metadata"
	"github.com/presbrey/services/metrics"
)

// Identify authenticates the connection against a registered account.
// Syntax: IDENTIFY [nick] <password>, or LOGIN <account> <password> on
// networks without nickname ownership.
func (s *Service) Identify(src *command.Source, argv []string) {
	var target, password string
	switch {
	case len(argv) >= 2:
		target, password = argv[0], argv[1]
	case len(argv) == 1 && !s.NoNickOwnership:
		// bare password identifies the current nick
		target, password = src.Nick, argv[0]
	default:
		src.Fail(command.FaultNeedMoreParams, "Insufficient parameters for \x02IDENTIFY\x02.")
		if s.NoNickOwnership {
			src.Fail(command.FaultNeedMoreParams, "Syntax: LOGIN <account> <password>")
		} else {
			src.Fail(command.FaultNeedMoreParams, "Syntax: IDENTIFY [nick] <password>")
		}
		return
	}

	acct := s.Dir.FindByNick(target)
	if acct == nil {
		metrics.AuthAttempts.WithLabelValues("nosuchtarget").Inc()
		src.Fail(command.FaultNoSuchTarget, "\x02%s\x02 is not a registered nickname.", target)
		return
	}

	// A frozen account fails exactly like a wrong password but is never
	// counted toward the throttle, so probing cannot distinguish the two
	// through the counter.
	if s.frozen(acct) {
		metrics.AuthAttempts.WithLabelValues("frozen").Inc()
		command.Audit(command.AuditLogin, src, "failed IDENTIFY to %s (frozen)", acct.Name)
		src.Fail(command.FaultAuthFail, "You cannot identify to \x02%s\x02 because the account has been frozen.", acct.Name)
		return
	}

	if prior, ok := s.Sessions.Lookup(src.ConnID); ok {
		if account.Fold(prior.Account) == account.Fold(acct.Name) {
			metrics.AuthAttempts.WithLabelValues("reauth").Inc()
			src.Fail(command.FaultAuthFail, "You are already logged in as \x02%s\x02.", acct.Name)
			return
		}
		// authenticated elsewhere: displace the prior session before
		// evaluating the new one
		s.teardown(src, prior)
	}

	// The cap is checked before the credential so a saturated account does
	// not leak whether the password was correct.
	if s.Sessions.CountFor(acct.Name) >= s.Sessions.Max() {
		metrics.AuthAttempts.WithLabelValues("toomany").Inc()
		command.Audit(command.AuditLogin, src, "failed IDENTIFY to %s (too many logins)", acct.Name)
		src.Fail(command.FaultTooMany, "There are already \x02%d\x02 sessions logged in to \x02%s\x02 (maximum allowed: %d).",
			s.Sessions.CountFor(acct.Name), acct.Name, s.Sessions.Max())
		return
	}

	if !crypt.Verify(acct.PasswordHash, password) {
		s.recordFailure(src, acct)
		return
	}

	if acct.Flags&account.FlagOper != 0 {
		command.Snoop("SOPER: \x02%s\x02 as \x02%s\x02", src.Nick, acct.Name)
	}

	s.AccountNotice(acct.Name, "%s has just authenticated as you (%s)", src.Mask(), acct.Name)

	sess, err := s.Sessions.Register(src.ConnID, acct.Name, src.Nick, src.Mask(), s.now())
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("toomany").Inc()
		src.Fail(command.FaultTooMany, "There are already \x02%d\x02 sessions logged in to \x02%s\x02 (maximum allowed: %d).",
			s.Sessions.CountFor(acct.Name), acct.Name, s.Sessions.Max())
		return
	}
	metrics.Sessions.Inc()
	src.Account = acct.Name

	// login address bookkeeping for users and for operator audit
	owner := metadata.Account(acct.Name)
	s.Meta.Set(owner, metadata.KeyHostVHost, src.Ident+"@"+src.VHost)
	s.Meta.Set(owner, metadata.KeyHostActual, src.Ident+"@"+src.Host)

	command.Audit(command.AuditLogin, src, "IDENTIFY")
	metrics.AuthAttempts.WithLabelValues("success").Inc()
	if s.NoNickOwnership {
		src.Success("You are now logged in as \x02%s\x02.", acct.Name)
	} else {
		src.Success("You are now identified for \x02%s\x02.", acct.Name)
	}

	// report and clear any failed attempts recorded since the last login
	if count, mask, when, ok := s.Throttle.Last(acct.Name); ok {
		plural := "logins"
		if count == 1 {
			plural = "login"
		}
		src.Success("\x02%d\x02 failed %s since %s.", count, plural, acct.LastLogin.Format(timestampFormat))
		src.Success("Last failed attempt from: \x02%s\x02 on %s.", mask, when.Format(timestampFormat))
		s.Throttle.Clear(acct.Name)
	}

	acct.LastLogin = sess.LoginAt

	// unverified accounts stay out of registered-only channels until their
	// email is confirmed
	if acct.Flags&account.FlagWaitAuth == 0 {
		s.OnLogin(src.Nick, acct.Name)
	}

	hooks.Identify.Dispatch(&hooks.IdentifyData{Account: acct.Name, Nick: src.Nick, Mask: src.Mask()})

	s.Engine.Sweep(acct, src.Nick, src.Mask())
}

func (s *Service) recordFailure(src *command.Source, acct *account.Account) {
	metrics.AuthAttempts.WithLabelValues("badpassword").Inc()
	command.Audit(command.AuditLogin, src, "failed IDENTIFY to %s (bad password)", acct.Name)
	src.Fail(command.FaultAuthFail, "Invalid password for \x02%s\x02.", acct.Name)

	now := s.now()
	_, warn := s.Throttle.RecordFailure(acct.Name, src.Mask(), now)
	if warn {
		metrics.ThrottleWarnings.Inc()
		command.Wallops("Warning: Numerous failed login attempts to \x02%s\x02. Last attempt received from \x02%s\x02 on %s.",
			acct.Name, src.Mask(), now.Format(timestampFormat))
	}
}
