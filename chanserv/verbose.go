// Package chanserv implements the channel service settings handlers.
package chanserv

import (
	"strings"

	"github.com/presbrey/services/chanacs"
	"github.com/presbrey/services/command"
)

// Service bundles the channel service collaborators.
type Service struct {
	Access *chanacs.List

	// Announce delivers a settings-change notice to a channel, honoring
	// its verbose flags. The uplink fills this in at startup.
	Announce func(channelName, format string, args ...any)
}

func New(access *chanacs.List) *Service {
	return &Service{
		Access:   access,
		Announce: func(string, string, ...any) {},
	}
}

// SetVerbose toggles announcement of access-list modifications to the
// channel: ON (everyone), OPS (operators only), or OFF.
func (s *Service) SetVerbose(src *command.Source, argv []string) {
	if len(argv) < 1 {
		src.Fail(command.FaultNeedMoreParams, "Insufficient parameters for \x02SET VERBOSE\x02.")
		return
	}
	mc := s.Access.Channel(argv[0])
	if mc == nil {
		src.Fail(command.FaultNoSuchTarget, "Channel \x02%s\x02 is not registered.", argv[0])
		return
	}
	if len(argv) < 2 {
		src.Fail(command.FaultNeedMoreParams, "Insufficient parameters for \x02SET VERBOSE\x02.")
		return
	}

	if src.Account == "" || !s.Access.AccountHasFlag(mc.Name, src.Account, chanacs.FlagSet) {
		src.Fail(command.FaultNoPrivilege, "You are not authorized to perform this command.")
		return
	}

	switch strings.ToUpper(argv[1]) {
	case "ON", "ALL":
		if mc.Flags()&chanacs.ChanVerbose != 0 {
			src.Fail(command.FaultNoChange, "The \x02VERBOSE\x02 flag is already set for channel \x02%s\x02.", mc.Name)
			return
		}
		command.Audit(command.AuditSet, src, "SET:VERBOSE:ON: %s", mc.Name)
		mc.SetFlags(chanacs.ChanVerbose, chanacs.ChanVerboseOps)
		s.Announce(mc.Name, "\x02%s\x02 enabled the VERBOSE flag", src.Nick)
		src.Success("The \x02VERBOSE\x02 flag has been set for channel \x02%s\x02.", mc.Name)

	case "OPS":
		if mc.Flags()&chanacs.ChanVerboseOps != 0 {
			src.Fail(command.FaultNoChange, "The \x02VERBOSE_OPS\x02 flag is already set for channel \x02%s\x02.", mc.Name)
			return
		}
		command.Audit(command.AuditSet, src, "SET:VERBOSE:OPS: %s", mc.Name)
		if mc.Flags()&chanacs.ChanVerbose != 0 {
			s.Announce(mc.Name, "\x02%s\x02 restricted VERBOSE to chanops", src.Nick)
			mc.SetFlags(chanacs.ChanVerboseOps, chanacs.ChanVerbose)
		} else {
			mc.SetFlags(chanacs.ChanVerboseOps, 0)
			s.Announce(mc.Name, "\x02%s\x02 enabled the VERBOSE_OPS flag", src.Nick)
		}
		src.Success("The \x02VERBOSE_OPS\x02 flag has been set for channel \x02%s\x02.", mc.Name)

	case "OFF":
		if mc.Flags()&(chanacs.ChanVerbose|chanacs.ChanVerboseOps) == 0 {
			src.Fail(command.FaultNoChange, "The \x02VERBOSE\x02 flag is not set for channel \x02%s\x02.", mc.Name)
			return
		}
		command.Audit(command.AuditSet, src, "SET:VERBOSE:OFF: %s", mc.Name)
		if mc.Flags()&chanacs.ChanVerbose != 0 {
			s.Announce(mc.Name, "\x02%s\x02 disabled the VERBOSE flag", src.Nick)
		} else {
			s.Announce(mc.Name, "\x02%s\x02 disabled the VERBOSE_OPS flag", src.Nick)
		}
		mc.SetFlags(0, chanacs.ChanVerbose|chanacs.ChanVerboseOps)
		src.Success("The \x02VERBOSE\x02 flag has been removed for channel \x02%s\x02.", mc.Name)

	default:
		src.Fail(command.FaultBadParams, "Invalid parameters for \x02VERBOSE\x02.")
	}
}
