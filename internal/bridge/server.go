package bridge

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/udisondev/patrolsignal/internal/command"
	"github.com/udisondev/patrolsignal/internal/game/loot"
	"github.com/udisondev/patrolsignal/internal/game/patrolsignal"
)

// TokenHeader carries the shared secret when one is configured.
const TokenHeader = "X-Bridge-Token"

// Poster runs work on the plugin's event loop.
type Poster interface {
	Post(fn func()) error
}

// Plugin is the event sink the host drives.
type Plugin interface {
	OnServerInitialized(ctx context.Context) error
	OnExplosiveThrown(ctx context.Context, t patrolsignal.Throw)
	OnContainerLootable(ctx context.Context, c loot.Container)
	OnEntityKilled(ctx context.Context, entityID uint64)
	OnServerSave(ctx context.Context) error
	Commands() *command.Handler
}

// Options configure a Server.
type Options struct {
	// Token, when set, must match the TokenHeader of the upgrade request.
	Token string
	// CallTimeout bounds every host call. Zero means no bound beyond the caller's context.
	CallTimeout time.Duration
}

// Server accepts the host's WebSocket connection. Only one host may be connected.
type Server struct {
	loop     Poster
	opts     Options
	upgrader websocket.Upgrader
	remote   *Remote

	mu     sync.RWMutex
	plugin Plugin
	conn   *Conn
}

// NewServer creates a bridge server that posts host events onto loop.
func NewServer(loop Poster, opts Options) *Server {
	s := &Server{
		loop: loop,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			// The host is a server-side process, not a browser.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.remote = &Remote{srv: s}
	return s
}

// Remote returns the host as seen through this server's current session.
func (s *Server) Remote() *Remote {
	return s.remote
}

// Bind sets the plugin that receives host events. Events arriving before Bind are dropped.
func (s *Server) Bind(p Plugin) {
	s.mu.Lock()
	s.plugin = p
	s.mu.Unlock()
}

// Connected reports whether a host session is open.
func (s *Server) Connected() bool {
	return s.current() != nil
}

func (s *Server) current() *Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

func (s *Server) bound() Plugin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plugin
}

// ServeHTTP upgrades the host connection and serves it until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.opts.Token != "" {
		got := r.Header.Get(TokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.Token)) != 1 {
			slog.Warn("rejecting host connection with bad token", "remote", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}
	if s.Connected() {
		http.Error(w, "host already connected", http.StatusConflict)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("host upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := newConn(ws, uuid.NewString(), s.opts.CallTimeout)
	if !s.attach(conn) {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "host already connected"),
			time.Now().Add(time.Second))
		_ = ws.Close()
		return
	}
	slog.Info("host connected", "session", conn.Session(), "remote", r.RemoteAddr)

	defer func() {
		s.detach(conn)
		_ = conn.Close()
		slog.Info("host disconnected", "session", conn.Session())
	}()

	conn.readLoop(s.dispatch)
}

func (s *Server) attach(c *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return false
	}
	s.conn = c
	return true
}

func (s *Server) detach(c *Conn) {
	s.mu.Lock()
	if s.conn == c {
		s.conn = nil
	}
	s.mu.Unlock()
}

// Close drops the current host session, if any.
func (s *Server) Close() error {
	if c := s.current(); c != nil {
		return c.Close()
	}
	return nil
}
