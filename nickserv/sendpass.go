package nickserv

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/presbrey/services/account"
	"github.com/presbrey/services/command"
	"github.com/presbrey/services/crypt"
	"github.com/presbrey/services/metadata"
)

// Sendpass emails a password change key to an account's contact address. The
// key is only recorded after delivery succeeds; a failed delivery leaves no
// outstanding key behind.
func (s *Service) Sendpass(src *command.Source, argv []string) {
	if len(argv) < 1 {
		src.Fail(command.FaultNeedMoreParams, "Insufficient parameters for \x02SENDPASS\x02.")
		src.Fail(command.FaultNeedMoreParams, "Syntax: SENDPASS <account>")
		return
	}
	target := argv[0]

	var force, clear bool
	if len(argv) > 1 {
		if !src.HasPriv(command.PrivUserSendpass) {
			src.Fail(command.FaultNoPrivilege, "You are not authorized to perform this operation.")
			return
		}
		switch strings.ToUpper(argv[1]) {
		case "FORCE":
			force = true
		case "CLEAR":
			clear = true
		default:
			src.Fail(command.FaultBadParams, "Invalid parameters for \x02SENDPASS\x02.")
			src.Fail(command.FaultBadParams, "Syntax: SENDPASS <account> [FORCE|CLEAR]")
			return
		}
	}
	_ = force // FORCE carries only the privilege gate; the flow is unchanged

	acct := s.Dir.FindByNick(target)
	if acct == nil {
		src.Fail(command.FaultNoSuchTarget, "\x02%s\x02 is not registered.", target)
		return
	}

	if acct.Flags&account.FlagWaitAuth != 0 {
		src.Fail(command.FaultBadParams, "\x02%s\x02 is not verified.", acct.Name)
		return
	}

	owner := metadata.Account(acct.Name)
	_, marked := s.Meta.Get(owner, metadata.KeyMarkedBy)

	if clear {
		if _, outstanding := s.Meta.Get(owner, metadata.KeySetpassKey); outstanding {
			command.Audit(command.AuditAdmin, src, "SENDPASS:CLEAR: %s", acct.Name)
			s.Meta.Delete(owner, metadata.KeySetpassKey)
			s.Meta.Delete(owner, metadata.KeySendpassSender)
			s.Meta.Delete(owner, metadata.KeySendpassTimestamp)
			src.Success("The password change key for \x02%s\x02 has been cleared.", acct.Name)
		} else {
			src.Fail(command.FaultNoChange, "\x02%s\x02 did not have a password change key outstanding.", acct.Name)
		}
		return
	}

	if s.Sessions.CountFor(acct.Name) > 0 {
		if account.Fold(src.Account) == account.Fold(acct.Name) {
			src.Fail(command.FaultAlreadyAuthed, "You are logged in and can change your password using the SET PASSWORD command.")
		} else {
			src.Fail(command.FaultNoPrivilege, "This operation cannot be performed on %s, because someone is logged in to it.", acct.Name)
		}
		return
	}

	if s.frozen(acct) {
		src.Fail(command.FaultNoPrivilege, "%s has been frozen by the %s administration.", acct.Name, s.NetworkName)
		return
	}

	if _, outstanding := s.Meta.Get(owner, metadata.KeySetpassKey); outstanding {
		src.Fail(command.FaultAlreadyExists, "\x02%s\x02 already has a password change key outstanding.", acct.Name)
		if src.HasPriv(command.PrivUserSendpass) {
			src.Fail(command.FaultAlreadyExists, "Use SENDPASS %s CLEAR to clear it so that a new one can be sent.", acct.Name)
		}
		return
	}

	key := makeResetKey()
	hash, err := crypt.Produce(key)
	if err != nil {
		src.Fail(command.FaultInternalError, "Hash generation for password change key failed.")
		return
	}

	if err := s.SendEmail(acct, EmailSetpass, key); err != nil {
		src.Fail(command.FaultEmailFail, "Email send failed.")
		return
	}

	if marked {
		command.Wallops("%s sent the password for the \x02MARKED\x02 account %s.", src.Nick, acct.Name)
	}
	command.Audit(command.AuditAdmin, src, "SENDPASS: %s (change key)", target)
	s.Meta.Set(owner, metadata.KeySendpassSender, src.Nick)
	s.Meta.Set(owner, metadata.KeySendpassTimestamp, strconv.FormatInt(s.now().Unix(), 10))
	s.Meta.Set(owner, metadata.KeySetpassKey, hash)
	src.Success("The password change key for \x02%s\x02 has been sent to the corresponding email address.", acct.Name)
}

// makeResetKey generates the random change key mailed to the user.
func makeResetKey() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b)
}
