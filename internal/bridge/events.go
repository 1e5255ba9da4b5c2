package bridge

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/udisondev/patrolsignal/internal/game/patrolsignal"
	"github.com/udisondev/patrolsignal/internal/model"
)

type explosiveThrownEvent struct {
	Player    model.Player `json:"player"`
	Shortname string       `json:"shortname"`
	EntityID  uint64       `json:"entity_id"`
	SkinID    uint64       `json:"skin_id"`
}

type canLootEntityEvent struct {
	Player      model.Player `json:"player"`
	ContainerID uint64       `json:"container_id"`
	Prefab      string       `json:"prefab"`
}

type entityKillEvent struct {
	EntityID uint64 `json:"entity_id"`
}

type commandEvent struct {
	Player  model.Player `json:"player"`
	Command string       `json:"command"`
	Args    []string     `json:"args"`
}

// dispatch decodes an event on the read goroutine and runs its hook on the loop.
func (s *Server) dispatch(env Envelope) {
	p := s.bound()
	if p == nil {
		slog.Warn("dropping host event: no plugin bound", "event", env.Name)
		return
	}

	task, err := s.task(p, env)
	if err != nil {
		slog.Warn("discarding malformed host event", "event", env.Name, "error", err)
		return
	}
	if task == nil {
		slog.Debug("ignoring unknown host event", "event", env.Name)
		return
	}

	if err := s.loop.Post(func() { task(context.Background()) }); err != nil {
		slog.Error("post host event", "event", env.Name, "error", err)
	}
}

func (s *Server) task(p Plugin, env Envelope) (func(ctx context.Context), error) {
	switch env.Name {
	case EventServerInitialized:
		return func(ctx context.Context) {
			if err := p.OnServerInitialized(ctx); err != nil {
				slog.Error("server initialized hook", "error", err)
			}
		}, nil

	case EventExplosiveThrown:
		var ev explosiveThrownEvent
		if err := decode(env.Payload, &ev); err != nil {
			return nil, err
		}
		throw := patrolsignal.Throw{
			Player:    ev.Player,
			Shortname: ev.Shortname,
			Signal:    s.remote.signal(ev.EntityID, ev.SkinID),
		}
		return func(ctx context.Context) { p.OnExplosiveThrown(ctx, throw) }, nil

	case EventCanLootEntity:
		var ev canLootEntityEvent
		if err := decode(env.Payload, &ev); err != nil {
			return nil, err
		}
		c := s.remote.container(ev.ContainerID, ev.Prefab)
		return func(ctx context.Context) { p.OnContainerLootable(ctx, c) }, nil

	case EventEntityKill:
		var ev entityKillEvent
		if err := decode(env.Payload, &ev); err != nil {
			return nil, err
		}
		return func(ctx context.Context) { p.OnEntityKilled(ctx, ev.EntityID) }, nil

	case EventChatCommand, EventConsoleCommand:
		var ev commandEvent
		if err := decode(env.Payload, &ev); err != nil {
			return nil, err
		}
		console := env.Name == EventConsoleCommand
		return func(ctx context.Context) {
			var handled bool
			if console {
				handled = p.Commands().HandleConsole(ctx, ev.Player, ev.Command, ev.Args)
			} else {
				handled = p.Commands().HandleChat(ctx, ev.Player, ev.Command, ev.Args)
			}
			if !handled {
				slog.Debug("command not handled", "command", ev.Command, "console", console)
			}
		}, nil

	case EventServerSave:
		return func(ctx context.Context) {
			if err := p.OnServerSave(ctx); err != nil {
				slog.Error("server save hook", "error", err)
			}
		}, nil
	}
	return nil, nil
}

func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, v)
}
