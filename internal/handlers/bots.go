package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/botdock/botdock/internal/bots"
)

// BotsHandler exposes read access to the bot directory.
type BotsHandler struct {
	service *bots.Service
	logger  *slog.Logger
}

func NewBotsHandler(log *slog.Logger, service *bots.Service) *BotsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &BotsHandler{
		service: service,
		logger:  log.With(slog.String("handler", "bots")),
	}
}

func (h *BotsHandler) Register(e *echo.Echo) {
	group := e.Group("/api/bots")
	group.GET("/:id", h.GetBot)
	group.GET("/:id/target", h.GetTarget)
}

func (h *BotsHandler) GetBot(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bot id is required")
	}
	bot, err := h.service.Get(c.Request().Context(), id)
	if errors.Is(err, bots.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "bot not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, bot)
}

// GetTarget resolves the bot's delivery target; useful for diagnosing why
// inbound messages are being dropped.
func (h *BotsHandler) GetTarget(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bot id is required")
	}
	target, err := h.service.ResolveTarget(c.Request().Context(), id)
	switch {
	case errors.Is(err, bots.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "bot not found")
	case errors.Is(err, bots.ErrNotRunning), errors.Is(err, bots.ErrGatewayUnconfigured):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, target)
}
