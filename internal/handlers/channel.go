package handlers

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/botdock/botdock/internal/channel"
)

// ChannelHandler exposes channel connection status and teardown operations.
type ChannelHandler struct {
	manager  *channel.Manager
	registry *channel.Registry
	logger   *slog.Logger
}

func NewChannelHandler(log *slog.Logger, manager *channel.Manager, registry *channel.Registry) *ChannelHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ChannelHandler{
		manager:  manager,
		registry: registry,
		logger:   log.With(slog.String("handler", "channel")),
	}
}

func (h *ChannelHandler) Register(e *echo.Echo) {
	group := e.Group("/api/channels")
	group.GET("/status", h.ListStatuses)
	group.GET("/types", h.ListTypes)
	group.POST("/refresh", h.Refresh)
	group.POST("/:config_id/teardown", h.Teardown)
}

func (h *ChannelHandler) ListStatuses(c echo.Context) error {
	statuses := h.manager.Statuses()
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].ConfigID < statuses[j].ConfigID
	})
	return c.JSON(http.StatusOK, statuses)
}

func (h *ChannelHandler) ListTypes(c echo.Context) error {
	types := h.registry.Types()
	items := make([]string, 0, len(types))
	for _, t := range types {
		items = append(items, t.String())
	}
	sort.Strings(items)
	return c.JSON(http.StatusOK, items)
}

func (h *ChannelHandler) Refresh(c echo.Context) error {
	h.manager.Refresh(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

type teardownRequest struct {
	Reason string `json:"reason"`
}

func (h *ChannelHandler) Teardown(c echo.Context) error {
	configID := strings.TrimSpace(c.Param("config_id"))
	if configID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "config_id is required")
	}
	var req teardownRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "disabled by operator"
	}
	h.manager.Teardown(c.Request().Context(), configID, reason)
	return c.NoContent(http.StatusNoContent)
}
