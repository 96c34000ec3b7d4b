package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/attendhq/attend/internal/channel"
	"github.com/attendhq/attend/internal/inbound"
)

// connHandoverTimeout bounds how long a queued message waits for the dial
// goroutine to assign the connection before being dropped.
const connHandoverTimeout = 5 * time.Second

// session is the live state of one branch: the channel connection, the
// pairing/ready state machine, and a single consumer goroutine that drains
// the branch's inbound queue in arrival order.
type session struct {
	branchID string
	mgr      *Manager
	logger   *slog.Logger

	mu      sync.Mutex
	state   string
	code    string
	conn    channel.Session
	dialing bool

	queue  chan channel.InboundMessage
	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(branchID string, mgr *Manager) *session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		branchID: branchID,
		mgr:      mgr,
		logger:   mgr.logger.With(slog.String("branch_id", branchID)),
		state:    StateUninitialized,
		queue:    make(chan channel.InboundMessage, mgr.queueLen),
		ctx:      ctx,
		cancel:   cancel,
	}
	go s.consume()
	return s
}

func (s *session) snapshot() (state, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.code
}

// dial opens the channel connection asynchronously; pairing progress comes
// back through onEvent.
func (s *session) dial(ctx context.Context) {
	s.mu.Lock()
	if s.dialing {
		s.mu.Unlock()
		return
	}
	s.dialing = true
	s.setStateLocked(StatePairing, "")
	s.mu.Unlock()

	go func() {
		conn, err := s.mgr.dialer.Dial(context.WithoutCancel(ctx), channel.DialConfig{
			BranchID:        s.branchID,
			CredentialsPath: s.mgr.credentialsPath(s.branchID),
		}, s.onEvent)

		s.mu.Lock()
		s.dialing = false
		if err != nil {
			s.setStateLocked(StateDisconnected, "")
			s.mu.Unlock()
			s.logger.Error("channel dial failed", slog.Any("error", err))
			return
		}
		s.conn = conn
		s.mu.Unlock()
	}()
}

// redial re-initiates pairing after a disconnect. Ready sessions and dials
// in flight are left alone.
func (s *session) redial(ctx context.Context) {
	s.mu.Lock()
	if s.dialing || s.state != StateDisconnected {
		s.mu.Unlock()
		return
	}
	old := s.conn
	s.conn = nil
	s.mu.Unlock()

	if old != nil {
		if err := old.Close(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("closing stale connection", slog.Any("error", err))
		}
	}
	s.dial(ctx)
}

func (s *session) onEvent(ctx context.Context, ev channel.Event) {
	switch e := ev.(type) {
	case channel.EventPaired:
		s.mu.Lock()
		s.setStateLocked(StatePairing, e.Code)
		s.mu.Unlock()

	case channel.EventReady:
		s.mu.Lock()
		s.setStateLocked(StateReady, "")
		s.mu.Unlock()
		s.logger.Info("session ready")

	case channel.EventAuthFailure:
		// Never retried automatically; the next connect re-pairs.
		s.mu.Lock()
		s.setStateLocked(StateDisconnected, "")
		s.mu.Unlock()
		s.logger.Error("session auth failure", slog.Any("error", e.Err))

	case channel.EventDisconnected:
		s.mu.Lock()
		s.setStateLocked(StateDisconnected, "")
		s.mu.Unlock()
		s.logger.Warn("session disconnected")

	case channel.EventMessage:
		s.enqueue(e.Message)
	}
}

// enqueue accepts a message only while ready; earlier events are dropped
// silently. A full queue drops the message with a warning.
func (s *session) enqueue(msg channel.InboundMessage) {
	s.mu.Lock()
	ready := s.state == StateReady
	s.mu.Unlock()
	if !ready {
		return
	}

	select {
	case s.queue <- msg:
	default:
		s.logger.Warn("inbound queue full, dropping message",
			slog.String("message_id", msg.ID))
	}
}

// consume drains the queue one message at a time, preserving per-branch
// arrival order. Other branches run their own consumers concurrently.
func (s *session) consume() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.queue:
			conn := s.awaitConn(connHandoverTimeout)
			if conn == nil {
				if s.ctx.Err() != nil {
					return
				}
				s.logger.Warn("dropping message, no live connection",
					slog.String("message_id", msg.ID))
				continue
			}
			if err := s.mgr.handler.HandleInbound(s.ctx, s.branchID, conn, msg); err != nil && !isExpected(err) {
				s.logger.Error("inbound processing failed",
					slog.String("message_id", msg.ID), slog.Any("error", err))
			}
		}
	}
}

// awaitConn waits for the dial goroutine to hand over the connection. The
// transport can deliver ready plus a first message before Dial returns, so
// a nil conn here usually means the handover is a few microseconds away.
func (s *session) awaitConn(timeout time.Duration) channel.Session {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn != nil {
			return conn
		}
		if time.Now().After(deadline) {
			return nil
		}
		select {
		case <-s.ctx.Done():
			return nil
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (s *session) stop(ctx context.Context) {
	s.cancel()

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.setStateLocked(StateDisconnected, "")
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Close(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("closing connection", slog.Any("error", err))
		}
	}
}

// setStateLocked updates the state machine and fans the transition out to
// watchers. Callers hold s.mu.
func (s *session) setStateLocked(state, code string) {
	s.state = state
	s.code = code
	s.mgr.notify(StatusUpdate{BranchID: s.branchID, State: state, PairingCode: code})
}

// isExpected filters pipeline outcomes that are not operator-actionable:
// redeliveries, silenced branches, and shutdown cancellations.
func isExpected(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, inbound.ErrSeenMessage) ||
		errors.Is(err, inbound.ErrInactiveBranch)
}
