// Package protocol describes what the connected network backend can do. The
// descriptor is a plain immutable struct chosen at startup; swapping backends
// means swapping the struct, never recompiling the engine.
package protocol

import "strings"

// Capabilities records which privilege tiers the backend supports and the
// mode character for each. Op ('o') and voice ('v') are universal and carry
// no capability bit.
type Capabilities struct {
	Name string

	UsesOwner bool
	OwnerChar byte

	UsesProtect bool
	ProtectChar byte

	UsesHalfops bool
	HalfopsChar byte
}

// Universal mode characters.
const (
	OpChar    byte = 'o'
	VoiceChar byte = 'v'
)

// Presets for common backends.
var (
	// Unreal supports the full tier ladder.
	Unreal = Capabilities{
		Name:      "unreal",
		UsesOwner: true, OwnerChar: 'q',
		UsesProtect: true, ProtectChar: 'a',
		UsesHalfops: true, HalfopsChar: 'h',
	}

	// Hybrid has halfops but no owner or protect tiers.
	Hybrid = Capabilities{
		Name:        "hybrid",
		UsesHalfops: true, HalfopsChar: 'h',
	}

	// RFC1459 is the minimal op/voice-only backend.
	RFC1459 = Capabilities{Name: "rfc1459"}
)

// Lookup resolves a backend name from configuration. Unknown names fall back
// to the minimal backend.
func Lookup(name string) Capabilities {
	switch strings.ToLower(name) {
	case "unreal", "unrealircd":
		return Unreal
	case "hybrid", "ratbox":
		return Hybrid
	default:
		return RFC1459
	}
}
