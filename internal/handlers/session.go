package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/attendhq/attend/internal/branch"
	"github.com/attendhq/attend/internal/session"
)

// SessionManager is the surface the handler needs from the session manager.
type SessionManager interface {
	Connect(ctx context.Context, branchID string) (session.ConnectResult, error)
	Status(branchID string) session.StatusResult
	Watch(branchID string) (<-chan session.StatusUpdate, func())
}

type SessionHandler struct {
	manager  SessionManager
	branches *branch.Service
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewSessionHandler(log *slog.Logger, manager SessionManager, branches *branch.Service) *SessionHandler {
	return &SessionHandler{
		manager:  manager,
		branches: branches,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: log.With(slog.String("handler", "session")),
	}
}

func (h *SessionHandler) Register(e *echo.Echo) {
	e.POST("/branches/:id/connect", h.Connect)
	e.GET("/branches/:id/status", h.Status)
	e.GET("/branches/:id/status/ws", h.StatusStream)
}

// Connect answers {connected:true}, {pairing_code} or 202 {status:pending}
// depending on how far pairing has progressed.
func (h *SessionHandler) Connect(c echo.Context) error {
	ctx := c.Request().Context()
	branchID := c.Param("id")
	if _, err := h.branches.Get(ctx, branchID); err != nil {
		return mapBranchError(err)
	}

	res, err := h.manager.Connect(ctx, branchID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	switch {
	case res.Connected:
		return c.JSON(http.StatusOK, map[string]any{"connected": true})
	case res.PairingCode != "":
		return c.JSON(http.StatusOK, map[string]string{"pairing_code": res.PairingCode})
	default:
		return c.JSON(http.StatusAccepted, map[string]string{"status": "pending"})
	}
}

func (h *SessionHandler) Status(c echo.Context) error {
	if _, err := h.branches.Get(c.Request().Context(), c.Param("id")); err != nil {
		return mapBranchError(err)
	}
	return c.JSON(http.StatusOK, h.manager.Status(c.Param("id")))
}

// StatusStream pushes state transitions and pairing codes over a websocket
// until the client goes away.
func (h *SessionHandler) StatusStream(c echo.Context) error {
	branchID := c.Param("id")
	if _, err := h.branches.Get(c.Request().Context(), branchID); err != nil {
		return mapBranchError(err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	updates, cancel := h.manager.Watch(branchID)
	defer cancel()

	// Current state first so the client does not wait for a transition.
	status := h.manager.Status(branchID)
	initial := session.StatusUpdate{BranchID: branchID, State: session.StateDisconnected}
	if status.Connected {
		initial.State = session.StateReady
	}
	if err := conn.WriteJSON(initial); err != nil {
		return nil
	}

	// Reader goroutine to detect the peer closing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := conn.WriteJSON(update); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					h.logger.Debug("status stream write failed",
						slog.String("branch_id", branchID), slog.Any("error", err))
				}
				return nil
			}
		}
	}
}
