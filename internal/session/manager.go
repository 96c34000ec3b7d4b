// Package session owns one live channel session per branch and serializes
// each branch's inbound traffic.
package session

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/attendhq/attend/internal/channel"
	"github.com/attendhq/attend/internal/config"
)

// Session states.
const (
	StateUninitialized = "uninitialized"
	StatePairing       = "pairing"
	StateReady         = "ready"
	StateDisconnected  = "disconnected"
)

// ErrSessionNotFound is returned when a branch has no session.
var ErrSessionNotFound = errors.New("session not found")

// ConnectResult is the outcome of a connect request.
type ConnectResult struct {
	Connected   bool
	PairingCode string
	Pending     bool
}

// StatusResult reports whether a branch session is ready.
type StatusResult struct {
	Connected bool `json:"connected"`
}

// StatusUpdate is pushed to Watch subscribers on every state transition.
type StatusUpdate struct {
	BranchID    string `json:"branch_id"`
	State       string `json:"state"`
	PairingCode string `json:"pairing_code,omitempty"`
}

// InboundHandler processes one message of a ready session.
type InboundHandler interface {
	HandleInbound(ctx context.Context, branchID string, sess channel.Session, msg channel.InboundMessage) error
}

// Manager is the per-branch session registry. Sessions are created lazily
// on first Connect and removed on Disconnect; at most one per branch.
type Manager struct {
	dialer      Dialer
	handler     InboundHandler
	sessionsDir string
	queueLen    int
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	watchers map[string][]chan StatusUpdate
}

// Dialer matches channel.Dialer; declared locally so tests can fake it
// without importing the concrete transport.
type Dialer interface {
	Dial(ctx context.Context, cfg channel.DialConfig, handler channel.EventHandler) (channel.Session, error)
}

// NewManager creates a session manager.
func NewManager(log *slog.Logger, dialer Dialer, handler InboundHandler, cfg config.ChannelConfig) *Manager {
	if log == nil {
		log = slog.Default()
	}
	queueLen := cfg.InboundQueueLen
	if queueLen <= 0 {
		queueLen = config.DefaultInboundQueueLen
	}
	return &Manager{
		dialer:      dialer,
		handler:     handler,
		sessionsDir: cfg.SessionsDir,
		queueLen:    queueLen,
		logger:      log.With(slog.String("component", "session")),
		sessions:    map[string]*session{},
		watchers:    map[string][]chan StatusUpdate{},
	}
}

// Connect ensures a session exists for the branch and reports progress:
// ready sessions answer connected, pairing sessions answer with the cached
// code or pending when no code has arrived yet.
func (m *Manager) Connect(ctx context.Context, branchID string) (ConnectResult, error) {
	m.mu.Lock()
	s, ok := m.sessions[branchID]
	if !ok {
		s = newSession(branchID, m)
		m.sessions[branchID] = s
		m.mu.Unlock()
		s.dial(ctx)
	} else {
		m.mu.Unlock()
	}

	state, code := s.snapshot()
	switch {
	case state == StateReady:
		return ConnectResult{Connected: true}, nil
	case state == StateDisconnected:
		// Channel loss or auth failure; connect re-initiates pairing.
		s.redial(ctx)
		return ConnectResult{Pending: true}, nil
	case code != "":
		return ConnectResult{PairingCode: code}, nil
	default:
		return ConnectResult{Pending: true}, nil
	}
}

// Status reports whether the branch session is ready. Unknown branches are
// simply not connected.
func (m *Manager) Status(branchID string) StatusResult {
	m.mu.Lock()
	s, ok := m.sessions[branchID]
	m.mu.Unlock()
	if !ok {
		return StatusResult{}
	}
	state, _ := s.snapshot()
	return StatusResult{Connected: state == StateReady}
}

// Disconnect stops and removes the branch session.
func (m *Manager) Disconnect(ctx context.Context, branchID string) error {
	m.mu.Lock()
	s, ok := m.sessions[branchID]
	delete(m.sessions, branchID)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.stop(ctx)
	return nil
}

// Shutdown stops every session. Called through the fx lifecycle.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = map[string]*session{}
	m.mu.Unlock()

	for _, s := range sessions {
		s.stop(ctx)
	}
}

// Watch subscribes to status updates for a branch. The returned cancel
// function must be called to release the subscription.
func (m *Manager) Watch(branchID string) (<-chan StatusUpdate, func()) {
	ch := make(chan StatusUpdate, 8)
	m.mu.Lock()
	m.watchers[branchID] = append(m.watchers[branchID], ch)
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.watchers[branchID]
		for i, sub := range subs {
			if sub == ch {
				m.watchers[branchID] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// notify pushes a status update to the branch's watchers. Slow subscribers
// lose updates rather than blocking the event path. Sends stay under the
// lock so a concurrent Watch cancel cannot close a channel mid-send.
func (m *Manager) notify(update StatusUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.watchers[update.BranchID] {
		select {
		case ch <- update:
		default:
		}
	}
}

func (m *Manager) credentialsPath(branchID string) string {
	return filepath.Join(m.sessionsDir, branchID)
}
