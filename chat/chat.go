package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/onnwee/livewatch/api"
	"github.com/onnwee/livewatch/store"
	"github.com/onnwee/livewatch/telemetry"
)

var (
	// ErrChatBlocked is returned when the viewer was disabled by the server.
	ErrChatBlocked = errors.New("chat: viewer is blocked")
	// ErrRegistrationInFlight is returned when a registration is already running.
	ErrRegistrationInFlight = errors.New("chat: registration already in flight")
	// ErrNoSession is returned when sending without an attached socket.
	ErrNoSession = errors.New("chat: no session")
	// ErrNoAccessToken is returned when no token could be resolved for the socket.
	ErrNoAccessToken = errors.New("chat: no access token")
)

// Registrar exchanges a display name for an access token.
type Registrar interface {
	Register(ctx context.Context, displayName string) (api.Registration, error)
}

// Socket is a live chat connection.
type Socket interface {
	Send(v any) error
	// Close closes the connection and stops delivery to the handler.
	Close() error
}

// Dialer opens a socket authenticated by accessToken. handle is called for every
// inbound message until the socket is closed.
type Dialer interface {
	Dial(ctx context.Context, accessToken string, handle func(Message)) (Socket, error)
}

// Listener is notified of identity and policy changes. Calls are made without
// the manager's lock held.
type Listener interface {
	IdentityChanged(id Identity)
	ChatDisabled(permanent bool)
	RegistrationRequired()
}

// Manager owns the chat identity and the single live socket.
type Manager struct {
	registrar   Registrar
	dialer      Dialer
	store       store.Store
	displayName string

	mu          sync.Mutex
	listener    Listener
	socket      Socket
	gen         uint64
	registering bool
	identity    Identity
}

// NewManager creates a manager. displayName is the name requested on first
// registration when none is persisted yet; empty lets the server choose.
func NewManager(reg Registrar, dialer Dialer, st store.Store, displayName string) *Manager {
	return &Manager{registrar: reg, dialer: dialer, store: st, displayName: displayName}
}

// SetListener installs l. It must be called before EnsureSession.
func (m *Manager) SetListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

// Identity returns the current identity.
func (m *Manager) Identity() Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

// Connected reports whether a socket is attached.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.socket != nil
}

// Registering reports whether a registration call is in flight.
func (m *Manager) Registering() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registering
}

// EnsureSession resolves an access token and attaches a fresh socket for it.
// With force set, a new token is registered even if one is persisted.
func (m *Manager) EnsureSession(ctx context.Context, force bool) error {
	blocked, err := store.GetBool(ctx, m.store, store.KeyChatBlocked, false)
	if err != nil {
		return fmt.Errorf("chat: read blocked flag: %w", err)
	}
	if blocked {
		return ErrChatBlocked
	}

	token, err := store.GetString(ctx, m.store, store.KeyAccessToken)
	if err != nil {
		return fmt.Errorf("chat: read access token: %w", err)
	}
	username, err := store.GetString(ctx, m.store, store.KeyUsername)
	if err != nil {
		return fmt.Errorf("chat: read username: %w", err)
	}

	if token == "" || force {
		reg, err := m.register(ctx, username)
		if err != nil {
			return err
		}
		token, username = reg.AccessToken, reg.DisplayName
	}
	if token == "" {
		return ErrNoAccessToken
	}

	m.mu.Lock()
	m.teardownLocked()
	gen := m.gen
	sock, err := m.dialer.Dial(ctx, token, func(msg Message) { m.handle(gen, msg) })
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("chat: dial: %w", err)
	}
	m.socket = sock
	m.identity.AccessToken = token
	m.identity.Username = username
	id, l := m.identity, m.listener
	m.mu.Unlock()

	telemetry.Inc(telemetry.SocketConnects)
	slog.Info("chat: session attached", slog.String("username", username))
	if l != nil {
		l.IdentityChanged(id)
	}
	return nil
}

func (m *Manager) register(ctx context.Context, username string) (api.Registration, error) {
	m.mu.Lock()
	if m.registering {
		m.mu.Unlock()
		return api.Registration{}, ErrRegistrationInFlight
	}
	m.registering = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.registering = false
		m.mu.Unlock()
	}()

	name := username
	if name == "" {
		name = m.displayName
	}
	telemetry.Inc(telemetry.Registrations)
	var (
		reg api.Registration
		err error
	)
	telemetry.TimeFunc(telemetry.RegistrationDuration, func() {
		reg, err = m.registrar.Register(ctx, name)
	})
	if err != nil {
		telemetry.Inc(telemetry.RegistrationFailures)
		slog.Warn("chat: registration failed", slog.Any("err", err))
		return api.Registration{}, fmt.Errorf("chat: register: %w", err)
	}
	if err := m.store.Set(ctx, store.KeyAccessToken, reg.AccessToken); err != nil {
		return api.Registration{}, fmt.Errorf("chat: persist access token: %w", err)
	}
	if err := m.store.Set(ctx, store.KeyUsername, reg.DisplayName); err != nil {
		return api.Registration{}, fmt.Errorf("chat: persist username: %w", err)
	}
	return reg, nil
}

// SendNameChange asks the server to rename the viewer and records the new name.
func (m *Manager) SendNameChange(ctx context.Context, name string) error {
	m.mu.Lock()
	if m.socket == nil {
		m.mu.Unlock()
		return ErrNoSession
	}
	if err := m.socket.Send(NameChange{Type: MessageNameChange, NewName: name}); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("chat: send name change: %w", err)
	}
	m.identity.Username = name
	id, l := m.identity, m.listener
	m.mu.Unlock()

	if err := m.store.Set(ctx, store.KeyUsername, name); err != nil {
		slog.Warn("chat: persist username failed", slog.Any("err", err))
	}
	if l != nil {
		l.IdentityChanged(id)
	}
	return nil
}

// Close tears down the socket. Messages still in flight are dropped.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

// teardownLocked closes the current socket and invalidates its handler.
func (m *Manager) teardownLocked() {
	m.gen++
	if m.socket == nil {
		return
	}
	if err := m.socket.Close(); err != nil {
		slog.Debug("chat: socket close", slog.Any("err", err))
	}
	m.socket = nil
}

func (m *Manager) handle(gen uint64, msg Message) {
	m.mu.Lock()
	if gen != m.gen || m.socket == nil {
		m.mu.Unlock()
		slog.Debug("chat: dropped message from stale socket", slog.String("type", msg.Type))
		return
	}
	l := m.listener

	switch msg.Type {
	case MessageUserDisabled:
		m.teardownLocked()
		m.mu.Unlock()
		telemetry.IncControlMessage(msg.Type)
		if err := store.SetBool(context.Background(), m.store, store.KeyChatBlocked, true); err != nil {
			slog.Error("chat: persist blocked flag failed", slog.Any("err", err))
		}
		slog.Warn("chat: viewer disabled by server")
		if l != nil {
			l.ChatDisabled(true)
		}

	case MessageNeedsRegistration:
		if m.registering {
			m.mu.Unlock()
			return
		}
		m.teardownLocked()
		m.mu.Unlock()
		telemetry.IncControlMessage(msg.Type)
		if l != nil {
			l.RegistrationRequired()
		}

	case MessageMaxConnectionsExceeded:
		m.teardownLocked()
		m.mu.Unlock()
		telemetry.IncControlMessage(msg.Type)
		slog.Warn("chat: too many connections; chat disabled for this session")
		if l != nil {
			l.ChatDisabled(false)
		}

	case MessageConnectedUserInfo:
		if msg.User == nil {
			m.mu.Unlock()
			return
		}
		m.identity.Username = msg.User.DisplayName
		m.identity.IsModerator = msg.User.IsModerator()
		id := m.identity
		m.mu.Unlock()
		telemetry.IncControlMessage(msg.Type)
		if err := m.store.Set(context.Background(), store.KeyUsername, id.Username); err != nil {
			slog.Warn("chat: persist username failed", slog.Any("err", err))
		}
		if l != nil {
			l.IdentityChanged(id)
		}

	default:
		m.mu.Unlock()
	}
}
