// Package command dispatches chat and console commands to registered handlers.
package command

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/udisondev/patrolsignal/internal/model"
)

// Command handles one or more command names.
type Command interface {
	// Handle executes the command. args excludes the command name.
	// player is the zero Player for console commands issued by the server itself.
	Handle(ctx context.Context, player model.Player, args []string) error
	// Names returns all registered command names.
	Names() []string
}

// Handler dispatches chat and console commands.
// Thread-safe: commands are registered once at startup, then read-only.
type Handler struct {
	mu      sync.RWMutex
	chat    map[string]Command // name → Command (lowercase)
	console map[string]Command
}

// NewHandler creates an empty command handler.
func NewHandler() *Handler {
	return &Handler{
		chat:    make(map[string]Command, 4),
		console: make(map[string]Command, 4),
	}
}

// RegisterChat registers a chat command.
// All command names are lowercased for case-insensitive lookup.
func (h *Handler) RegisterChat(cmd Command) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, name := range cmd.Names() {
		h.chat[strings.ToLower(name)] = cmd
	}
}

// RegisterConsole registers a console command.
func (h *Handler) RegisterConsole(cmd Command) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, name := range cmd.Names() {
		h.console[strings.ToLower(name)] = cmd
	}
}

// HandleChat runs a chat command. Returns true if a command was found.
func (h *Handler) HandleChat(ctx context.Context, player model.Player, name string, args []string) bool {
	return h.handle(ctx, "chat", h.chat, player, name, args)
}

// HandleConsole runs a console command. Returns true if a command was found.
func (h *Handler) HandleConsole(ctx context.Context, player model.Player, name string, args []string) bool {
	return h.handle(ctx, "console", h.console, player, name, args)
}

// HandleChatText splits a raw chat line ("helisignal reset Bob") and runs it.
func (h *Handler) HandleChatText(ctx context.Context, player model.Player, text string) bool {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return false
	}
	return h.HandleChat(ctx, player, parts[0], parts[1:])
}

func (h *Handler) handle(ctx context.Context, kind string, cmds map[string]Command, player model.Player, name string, args []string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}

	h.mu.RLock()
	cmd, ok := cmds[name]
	h.mu.RUnlock()

	if !ok {
		return false
	}

	slog.Debug("command",
		"kind", kind,
		"player", player.Name,
		"command", name,
		"args", args)

	if err := cmd.Handle(ctx, player, args); err != nil {
		slog.Error("command failed",
			"kind", kind,
			"player", player.Name,
			"command", name,
			"error", err)
	}

	return true
}

// ChatNames returns the registered chat command names, sorted.
func (h *Handler) ChatNames() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedKeys(h.chat)
}

// ConsoleNames returns the registered console command names, sorted.
func (h *Handler) ConsoleNames() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedKeys(h.console)
}

func sortedKeys(m map[string]Command) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
