package model

import "strconv"

// Player identifies a connected player as reported by the host.
// Value type; the host is the source of truth for everything else about the player.
type Player struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"` // BCP 47 tag, e.g. "en", "ru-RU"
	Position Vector `json:"position"`
}

// IDString returns the decimal player ID (used as permission subject).
func (p Player) IDString() string {
	return strconv.FormatUint(p.ID, 10)
}
