package patrolsignal

import (
	"context"

	"github.com/udisondev/patrolsignal/internal/game/access"
	"github.com/udisondev/patrolsignal/internal/game/encounter"
	"github.com/udisondev/patrolsignal/internal/model"
)

// Host is the game server as seen by the plugin.
type Host interface {
	encounter.Spawner
	encounter.GlobalFlags
	access.Permissions

	RegisterPermission(ctx context.Context, perm string) error
	// RegisterCommands asks the host to route the named chat and console commands to the plugin.
	RegisterCommands(ctx context.Context, chat, console []string) error
	SendChat(ctx context.Context, playerID uint64, text string) error
	GiveItem(ctx context.Context, playerID uint64, item model.ItemSpec) error
	// FindPlayer looks a player up by name or decimal ID.
	FindPlayer(ctx context.Context, query string) (model.Player, bool, error)
	// Log writes a line to the host's server console.
	Log(ctx context.Context, text string) error
}

// Throw is an explosive thrown by a player.
type Throw struct {
	Player    model.Player
	Shortname string
	Signal    encounter.Signal
}
