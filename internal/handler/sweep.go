package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paylink/internal/cron"
)

// SweepHandler triggers the reminder sweep on demand.
type SweepHandler struct {
	sweeper cron.SweepRunner
	logger  *zap.Logger
}

func NewSweepHandler(sweeper cron.SweepRunner, logger *zap.Logger) *SweepHandler {
	return &SweepHandler{sweeper: sweeper, logger: logger.Named("sweep_handler")}
}

// Run executes one sweep and returns its summary.
// POST /api/reminders/sweep
func (h *SweepHandler) Run(c echo.Context) error {
	summary, err := h.sweeper.Run(c.Request().Context())
	if errors.Is(err, cron.ErrSweepInProgress) {
		return c.JSON(http.StatusConflict, errorBody{Error: err.Error()})
	}
	if err != nil {
		return errorResponse(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, summary)
}
