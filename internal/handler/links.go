package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paylink/internal/apperr"
	"paylink/internal/links"
	"paylink/internal/webhook"
)

// LinksHandler exposes link issuance, status and manual reconciliation.
type LinksHandler struct {
	service    *links.Service
	reconciler *webhook.Reconciler
	logger     *zap.Logger
}

func NewLinksHandler(service *links.Service, reconciler *webhook.Reconciler, logger *zap.Logger) *LinksHandler {
	return &LinksHandler{service: service, reconciler: reconciler, logger: logger.Named("links_handler")}
}

// Issue creates a payment link.
// POST /api/payment-links
func (h *LinksHandler) Issue(c echo.Context) error {
	var req links.IssueRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, h.logger, apperr.NewValidation("body", "invalid JSON body"))
	}

	resp, err := h.service.Issue(c.Request().Context(), req)
	if err != nil {
		return errorResponse(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Status reports a record's state merged with the gateway session.
// GET /api/payment-links/:id/status
func (h *LinksHandler) Status(c echo.Context) error {
	view, err := h.service.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorResponse(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Reconcile checks the gateway for a missed payment.
// POST /api/payment-links/:id/reconcile
func (h *LinksHandler) Reconcile(c echo.Context) error {
	res, err := h.reconciler.ReconcileSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorResponse(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}
