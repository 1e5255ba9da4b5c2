package access

import "fmt"

// Kind enumerates the outcomes of a gate evaluation.
type Kind int

const (
	Allowed Kind = iota
	DeniedNoPermission
	DeniedRaidBlocked
	DeniedCombatBlocked
	DeniedOnCooldown
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case Allowed:
		return "ALLOWED"
	case DeniedNoPermission:
		return "DENIED_NO_PERMISSION"
	case DeniedRaidBlocked:
		return "DENIED_RAID_BLOCKED"
	case DeniedCombatBlocked:
		return "DENIED_COMBAT_BLOCKED"
	case DeniedOnCooldown:
		return "DENIED_ON_COOLDOWN"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Decision is the result of Gate.Evaluate.
// RemainingMinutes and VIP are only meaningful for DeniedOnCooldown.
type Decision struct {
	Kind             Kind
	RemainingMinutes int
	VIP              bool
}

// Allowed reports whether the activation may proceed.
func (d Decision) Allowed() bool {
	return d.Kind == Allowed
}

// Refunds reports whether the thrown signal is handed back. Every denial refunds.
func (d Decision) Refunds() bool {
	return d.Kind != Allowed
}

// MessageKey returns the localized message key for a denial ("" when allowed).
func (d Decision) MessageKey() string {
	switch d.Kind {
	case DeniedNoPermission:
		return "NotAllowed"
	case DeniedRaidBlocked:
		return "RaidBlocked"
	case DeniedCombatBlocked:
		return "NoEscapeBlocked"
	case DeniedOnCooldown:
		if d.VIP {
			return "VIPCooldownActive"
		}
		return "CooldownActive"
	default:
		return ""
	}
}

// MessageArgs returns the format arguments for MessageKey.
func (d Decision) MessageArgs() []any {
	if d.Kind == DeniedOnCooldown {
		return []any{d.RemainingMinutes}
	}
	return nil
}
