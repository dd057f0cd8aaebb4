package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paylink/internal/apperr"
	"paylink/internal/payment"
	"paylink/internal/webhook"
)

// maxWebhookBody caps the size of a webhook payload.
const maxWebhookBody = 1 << 20

// WebhookHandler receives gateway webhook deliveries.
type WebhookHandler struct {
	reconciler *webhook.Reconciler
	logger     *zap.Logger
}

func NewWebhookHandler(reconciler *webhook.Reconciler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, logger: logger.Named("webhook_handler")}
}

// Handle verifies a delivery and acknowledges it. Once the signature checks
// out the answer is always 200, whatever happened to the event.
// ANY /webhooks/stripe
func (h *WebhookHandler) Handle(c echo.Context) error {
	if c.Request().Method != http.MethodPost {
		c.Response().Header().Set(echo.HeaderAllow, http.MethodPost)
		return c.JSON(http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "unreadable body"})
	}

	res, err := h.reconciler.Handle(c.Request().Context(), payload, c.Request().Header.Get(payment.SignatureHeader))
	switch {
	case errors.Is(err, webhook.ErrMissingSignature), errors.Is(err, webhook.ErrMissingSecret):
		h.logger.Warn("Webhook rejected", zap.Error(err))
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, apperr.ErrSignatureInvalid):
		h.logger.Warn("Webhook signature verification failed", zap.String("ip", c.RealIP()))
		return c.JSON(http.StatusBadRequest, errorBody{Error: "Webhook Error: " + err.Error()})
	case err != nil:
		// Handle only returns authentication errors; anything else is still acked.
		h.logger.Error("Unexpected webhook error", zap.Error(err))
	default:
		h.logger.Debug("Webhook handled",
			zap.String("event_id", res.EventID),
			zap.String("event_type", res.EventType),
			zap.String("outcome", res.Outcome),
		)
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
