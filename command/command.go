// Package command defines the contract between the network-facing command
// dispatcher and the service handlers: the fault taxonomy surfaced to users,
// the source context a handler acts on behalf of, and the audit sink.
package command

import (
	"fmt"
	"log"
)

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// Fault is a structured outcome code returned to the requesting user when a
// command cannot be completed. Faults are values, not process errors; every
// handler path ends in either a success notice or exactly one Fault.
type Fault int

const (
	FaultNeedMoreParams Fault = iota + 1
	FaultBadParams
	FaultNoSuchTarget
	FaultNoPrivilege
	FaultAlreadyExists
	FaultNoChange
	FaultAlreadyAuthed
	FaultTooMany
	FaultAuthFail
	FaultInternalError
	FaultEmailFail
)

var faultNames = map[Fault]string{
	FaultNeedMoreParams: "insufficient parameters",
	FaultBadParams:      "invalid parameters",
	FaultNoSuchTarget:   "no such target",
	FaultNoPrivilege:    "permission denied",
	FaultAlreadyExists:  "already exists",
	FaultNoChange:       "nothing to change",
	FaultAlreadyAuthed:  "already authenticated",
	FaultTooMany:        "too many",
	FaultAuthFail:       "authentication failed",
	FaultInternalError:  "internal error",
	FaultEmailFail:      "email send failed",
}

// Error lets a Fault travel through error returns inside the core; the
// dispatcher converts it back to a user-visible failure notice.
func (f Fault) Error() string {
	if s, ok := faultNames[f]; ok {
		return s
	}
	return "unknown fault"
}

// Operator privileges checked by handlers. The privilege set attached to a
// Source is resolved by the dispatcher from the operator configuration.
const (
	PrivUserAdmin    = "user:admin"
	PrivUserSendpass = "user:sendpass"
	PrivRegNoLimit   = "reg:nolimit"
)

// Responder delivers command outcomes back to the requesting user.
type Responder interface {
	// Success sends a user-visible notice for a completed command.
	Success(format string, args ...any)
	// Fail reports a structured failure with a human-readable explanation.
	Fail(fault Fault, format string, args ...any)
}

// Source describes the live connection a command arrived from. Handlers match
// the signature func(src *Source, argv []string); argv excludes the command
// name itself.
type Source struct {
	Responder

	// ConnID uniquely identifies the network connection for session lookup.
	ConnID string

	Nick  string
	Ident string
	Host  string // actual host
	VHost string // displayed host, may equal Host

	// Account is the name of the account this connection is authenticated
	// as, or empty.
	Account string

	privs map[string]bool
}

// NewSource builds a Source for a connection. privs may be nil.
func NewSource(r Responder, connID, nick, ident, host, vhost string, privs map[string]bool) *Source {
	return &Source{
		Responder: r,
		ConnID:    connID,
		Nick:      nick,
		Ident:     ident,
		Host:      host,
		VHost:     vhost,
		privs:     privs,
	}
}

// HasPriv reports whether the source holds the named operator privilege.
func (s *Source) HasPriv(priv string) bool {
	return s.privs[priv]
}

// Mask returns the nick!ident@vhost form used in notices and ban matching.
func (s *Source) Mask() string {
	return s.Nick + "!" + s.Ident + "@" + s.VHost
}

// HostMask returns nick!ident@host with the actual host, for operator audit.
func (s *Source) HostMask() string {
	return s.Nick + "!" + s.Ident + "@" + s.Host
}

// Handler is the dispatch contract for an inbound command.
type Handler func(src *Source, argv []string)

// Audit categories.
const (
	AuditLogin    = "LOGIN"
	AuditRegister = "REGISTER"
	AuditAdmin    = "ADMIN"
	AuditSet      = "SET"
)

// Audit appends a structured audit record. Storage of the records is owned by
// the logging sink, not by this package.
func Audit(category string, src *Source, format string, args ...any) {
	log.Printf("[%s] %s %s", category, src.HostMask(), sprintf(format, args...))
}

// Wallops broadcasts a message to network operators through the registered
// broadcast function. The default prints to the process log; the uplink
// replaces it at startup.
var Wallops = func(format string, args ...any) {
	log.Printf("[WALLOPS] %s", sprintf(format, args...))
}

// Snoop reports noteworthy events to the operator channel. Like Wallops, the
// uplink replaces the default at startup.
var Snoop = func(format string, args ...any) {
	log.Printf("[SNOOP] %s", sprintf(format, args...))
}
