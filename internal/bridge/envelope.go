// Package bridge connects the plugin to the game host over a WebSocket.
//
// The host pushes events (thrown explosives, lootable containers, commands, saves)
// and answers calls (spawning the patrol, permission lookups, chat). Both
// directions share one JSON envelope; calls and results are correlated by ID.
package bridge

import "encoding/json"

// Kind is the envelope type.
type Kind string

const (
	KindEvent  Kind = "event"
	KindCall   Kind = "call"
	KindResult Kind = "result"
)

// Envelope is one WebSocket text frame.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	ID      uint64          `json:"id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Event names pushed by the host.
const (
	EventServerInitialized = "server_initialized"
	EventExplosiveThrown   = "explosive_thrown"
	EventCanLootEntity     = "can_loot_entity"
	EventEntityKill        = "entity_kill"
	EventChatCommand       = "chat_command"
	EventConsoleCommand    = "console_command"
	EventServerSave        = "server_save"
)
