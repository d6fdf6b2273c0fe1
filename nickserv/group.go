package nickserv

import (
	"github.com/presbrey/services/account"
	"github.com/presbrey/services/command"
	"github.com/presbrey/services/hooks"
	"github.com/presbrey/services/metadata"
)

// Group registers the connection's current nickname to its account.
func (s *Service) Group(src *command.Source, argv []string) {
	sess, ok := s.Sessions.Lookup(src.ConnID)
	if !ok {
		src.Fail(command.FaultNoPrivilege, "You are not logged in.")
		return
	}
	if s.NoNickOwnership {
		src.Fail(command.FaultNoPrivilege, "Nickname ownership is disabled.")
		return
	}
	acct := s.Dir.FindByName(sess.Account)
	if acct == nil {
		src.Fail(command.FaultNoSuchTarget, "Your account no longer exists.")
		return
	}

	if len(acct.Nicks) >= s.MaxNicks && !src.HasPriv(command.PrivRegNoLimit) {
		src.Fail(command.FaultTooMany, "You have too many nicks registered already.")
		return
	}

	if owner, taken := s.Dir.NickOwner(src.Nick); taken {
		if account.Fold(owner) == account.Fold(acct.Name) {
			src.Fail(command.FaultNoChange, "Nick \x02%s\x02 is already registered to your account.", src.Nick)
		} else {
			src.Fail(command.FaultAlreadyExists, "Nick \x02%s\x02 is already registered to \x02%s\x02.", src.Nick, owner)
		}
		return
	}

	if len(src.Nick) > 0 && src.Nick[0] >= '0' && src.Nick[0] <= '9' {
		src.Fail(command.FaultBadParams, "For security reasons, you can't register your UID.")
		return
	}

	if _, restricted := s.Meta.Get(metadata.Account(acct.Name), metadata.KeyRestrictedBy); restricted {
		src.Fail(command.FaultNoPrivilege, "You have been restricted from grouping nicks by network staff.")
		return
	}

	// pre-action hook: all subscribers run, then the verdict is checked
	check := &hooks.RegisterCheck{Nick: src.Nick, Email: acct.Email}
	hooks.NickCanRegister.Dispatch(check)
	if check.Denied() {
		return
	}

	if err := s.Dir.AddNick(acct, src.Nick, s.MaxNicks, src.HasPriv(command.PrivRegNoLimit)); err != nil {
		if f, ok := err.(command.Fault); ok {
			src.Fail(f, "Could not group \x02%s\x02.", src.Nick)
		}
		return
	}

	command.Audit(command.AuditRegister, src, "GROUP: %s to %s", src.Nick, acct.Name)
	src.Success("Nick \x02%s\x02 is now registered to your account.", src.Nick)
	hooks.NickGroup.Dispatch(&hooks.NickData{Account: acct.Name, Nick: src.Nick})
}

// Ungroup removes a nickname from the requester's own account. The designated
// account name can never be removed through self-service.
func (s *Service) Ungroup(src *command.Source, argv []string) {
	target := src.Nick
	if len(argv) >= 1 {
		target = argv[0]
	}

	owner, registered := s.Dir.NickOwner(target)
	if !registered {
		src.Fail(command.FaultNoSuchTarget, "\x02%s\x02 is not registered.", target)
		return
	}

	sess, ok := s.Sessions.Lookup(src.ConnID)
	if !ok || account.Fold(owner) != account.Fold(sess.Account) {
		src.Fail(command.FaultNoPrivilege, "Nick \x02%s\x02 is not registered to your account.", target)
		return
	}
	acct := s.Dir.FindByName(sess.Account)

	if account.Fold(target) == account.Fold(acct.Name) {
		src.Fail(command.FaultNoPrivilege, "Nick \x02%s\x02 is your account name; you may not remove it.", target)
		return
	}

	command.Audit(command.AuditRegister, src, "UNGROUP: %s", target)
	hooks.NickUngroup.Dispatch(&hooks.NickData{Account: acct.Name, Nick: target})
	if err := s.Dir.RemoveNick(acct, target); err != nil {
		if f, ok := err.(command.Fault); ok {
			src.Fail(f, "Could not ungroup \x02%s\x02.", target)
		}
		return
	}
	s.ReleaseNick(target)
	src.Success("Nick \x02%s\x02 has been removed from your account.", target)
}

// Fungroup is the administrative ungroup. Removing an account's designated
// name requires naming a replacement, performed as an atomic
// rename-and-remove.
func (s *Service) Fungroup(src *command.Source, argv []string) {
	if !src.HasPriv(command.PrivUserAdmin) {
		src.Fail(command.FaultNoPrivilege, "You are not authorized to perform this operation.")
		return
	}
	if len(argv) < 1 {
		src.Fail(command.FaultNeedMoreParams, "Insufficient parameters for \x02FUNGROUP\x02.")
		src.Fail(command.FaultNeedMoreParams, "Syntax: FUNGROUP <nickname> [newaccountname]")
		return
	}

	target := argv[0]
	owner, registered := s.Dir.NickOwner(target)
	if !registered {
		src.Fail(command.FaultNoSuchTarget, "\x02%s\x02 is not registered.", target)
		return
	}
	acct := s.Dir.FindByName(owner)

	if account.Fold(target) == account.Fold(acct.Name) {
		if len(acct.Nicks) <= 1 {
			src.Fail(command.FaultNoPrivilege, "Nick \x02%s\x02 is an account name; you may not remove it.", target)
			return
		}
		if len(argv) < 2 {
			src.Fail(command.FaultNeedMoreParams, "Please specify a new account name for \x02%s\x02.", acct.Name)
			src.Fail(command.FaultNeedMoreParams, "Syntax: FUNGROUP <nickname> <newaccountname>")
			return
		}
		newName := argv[1]
		if account.Fold(newName) == account.Fold(target) {
			src.Fail(command.FaultNoPrivilege, "The new account name must be different from the nick to be ungrouped.")
			return
		}
		newOwner, ok := s.Dir.NickOwner(newName)
		if !ok {
			src.Fail(command.FaultNoSuchTarget, "\x02%s\x02 is not registered.", newName)
			return
		}
		if account.Fold(newOwner) != account.Fold(acct.Name) {
			src.Fail(command.FaultNoPrivilege, "Nick \x02%s\x02 is not registered to \x02%s\x02.", newName, acct.Name)
			return
		}

		command.Audit(command.AuditAdmin, src, "FUNGROUP: %s from %s (new account name: %s)", target, acct.Name, newName)
		command.Wallops("\x02%s\x02 dropped the nick \x02%s\x02 from %s, changing account name to \x02%s\x02",
			src.Nick, target, acct.Name, newName)
		hooks.NickUngroup.Dispatch(&hooks.NickData{Account: acct.Name, Nick: target})
		if err := s.Dir.RenameAndRemove(acct, newName); err != nil {
			if f, ok := err.(command.Fault); ok {
				src.Fail(f, "Could not rename \x02%s\x02.", acct.Name)
			}
			return
		}
		s.ReleaseNick(target)
		src.Success("Nick \x02%s\x02 has been removed from account \x02%s\x02, name changed to \x02%s\x02.", target, owner, newName)
		return
	}

	if len(argv) > 1 {
		src.Fail(command.FaultBadParams, "Nick \x02%s\x02 is not an account name so no new account name is needed.", target)
		return
	}

	command.Audit(command.AuditAdmin, src, "FUNGROUP: %s from %s", target, acct.Name)
	command.Wallops("\x02%s\x02 dropped the nick \x02%s\x02 from %s", src.Nick, target, acct.Name)
	hooks.NickUngroup.Dispatch(&hooks.NickData{Account: acct.Name, Nick: target})
	if err := s.Dir.RemoveNick(acct, target); err != nil {
		if f, ok := err.(command.Fault); ok {
			src.Fail(f, "Could not ungroup \x02%s\x02.", target)
		}
		return
	}
	s.ReleaseNick(target)
	src.Success("Nick \x02%s\x02 has been removed from account \x02%s\x02.", target, acct.Name)
}
