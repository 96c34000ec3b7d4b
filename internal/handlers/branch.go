package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/attendhq/attend/internal/branch"
	"github.com/attendhq/attend/internal/history"
)

// SessionCloser disconnects a branch session when the branch is removed.
type SessionCloser interface {
	Disconnect(ctx context.Context, branchID string) error
}

type BranchHandler struct {
	branches *branch.Service
	turns    *history.Service
	sessions SessionCloser
	logger   *slog.Logger
}

func NewBranchHandler(log *slog.Logger, branches *branch.Service, turns *history.Service, sessions SessionCloser) *BranchHandler {
	return &BranchHandler{
		branches: branches,
		turns:    turns,
		sessions: sessions,
		logger:   log.With(slog.String("handler", "branch")),
	}
}

func (h *BranchHandler) Register(e *echo.Echo) {
	group := e.Group("/branches")
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.PUT("/:id", h.Update)
	group.DELETE("/:id", h.Delete)

	group.POST("/:id/infos", h.AddInfo)
	group.PUT("/:id/infos/:infoId", h.UpdateInfo)
	group.DELETE("/:id/infos/:infoId", h.DeleteInfo)

	group.GET("/:id/chats/:userId", h.Chats)
}

func (h *BranchHandler) Create(c echo.Context) error {
	var req branch.CreateBranchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.branches.Create(c.Request().Context(), req)
	if err != nil {
		return mapBranchError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *BranchHandler) List(c echo.Context) error {
	items, err := h.branches.List(c.Request().Context())
	if err != nil {
		return mapBranchError(err)
	}
	return c.JSON(http.StatusOK, branch.ListBranchesResponse{Items: items})
}

func (h *BranchHandler) Get(c echo.Context) error {
	b, err := h.branches.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapBranchError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BranchHandler) Update(c echo.Context) error {
	var req branch.UpdateBranchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.branches.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return mapBranchError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *BranchHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	branchID := c.Param("id")
	if err := h.branches.Delete(ctx, branchID); err != nil {
		return mapBranchError(err)
	}
	if h.sessions != nil {
		if err := h.sessions.Disconnect(ctx, branchID); err != nil {
			h.logger.Debug("no session to disconnect", slog.String("branch_id", branchID))
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *BranchHandler) AddInfo(c echo.Context) error {
	var req branch.CreateInfoRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	info, err := h.branches.AddInfo(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return mapBranchError(err)
	}
	return c.JSON(http.StatusCreated, info)
}

func (h *BranchHandler) UpdateInfo(c echo.Context) error {
	var req branch.UpdateInfoRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	info, err := h.branches.UpdateInfo(c.Request().Context(), c.Param("id"), c.Param("infoId"), req)
	if err != nil {
		return mapBranchError(err)
	}
	return c.JSON(http.StatusOK, info)
}

func (h *BranchHandler) DeleteInfo(c echo.Context) error {
	if err := h.branches.DeleteInfo(c.Request().Context(), c.Param("id"), c.Param("infoId")); err != nil {
		return mapBranchError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *BranchHandler) Chats(c echo.Context) error {
	userID := strings.TrimSpace(c.Param("userId"))
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user id is required")
	}
	if _, err := h.branches.Get(c.Request().Context(), c.Param("id")); err != nil {
		return mapBranchError(err)
	}
	turns, err := h.turns.List(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return mapBranchError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": turns})
}

// mapBranchError turns service errors into HTTP errors. Validation problems
// surface as 400 with the validator message, never silently dropped.
func mapBranchError(err error) error {
	switch {
	case errors.Is(err, branch.ErrBranchNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "branch not found")
	case errors.Is(err, branch.ErrInfoNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "info not found")
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return echo.NewHTTPError(http.StatusBadRequest, validationErrs.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
