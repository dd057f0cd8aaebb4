package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paylink/internal/apperr"
	"paylink/internal/links"
	"paylink/internal/models"
	"paylink/internal/pkg/utils"
	"paylink/internal/repository"
)

// SlotsHandler manages the inventory sold through deferred bookings.
type SlotsHandler struct {
	appointments *repository.AppointmentRepository
	service      *links.Service
	logger       *zap.Logger
}

func NewSlotsHandler(appointments *repository.AppointmentRepository, service *links.Service, logger *zap.Logger) *SlotsHandler {
	return &SlotsHandler{appointments: appointments, service: service, logger: logger.Named("slots_handler")}
}

type createSlotRequest struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price int64  `json:"price"`
}

// Create adds an available slot.
// POST /api/slots
func (h *SlotsHandler) Create(c echo.Context) error {
	var req createSlotRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, h.logger, apperr.NewValidation("body", "invalid JSON body"))
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return errorResponse(c, h.logger, apperr.NewValidation("title", "is required"))
	}
	if req.Price <= 0 {
		return errorResponse(c, h.logger, apperr.NewValidation("price", "must be greater than 0"))
	}
	if req.ID == "" {
		req.ID = utils.GenerateUUID()
	}

	ctx := c.Request().Context()
	if _, err := h.appointments.FindSlot(ctx, req.ID); err == nil {
		return errorResponse(c, h.logger, apperr.NewValidation("id", "a slot with this id already exists"))
	} else if !apperr.IsNotFound(err) {
		return errorResponse(c, h.logger, err)
	}

	slot := &models.Slot{ID: req.ID, Title: req.Title, Price: req.Price, Status: models.SlotAvailable}
	if err := h.appointments.CreateSlot(ctx, slot); err != nil {
		return errorResponse(c, h.logger, err)
	}
	h.logger.Info("Slot created", zap.String("slot_id", slot.ID), zap.Int64("price", slot.Price))
	return c.JSON(http.StatusCreated, slot)
}

// Get returns a slot with its sale state.
// GET /api/slots/:id
func (h *SlotsHandler) Get(c echo.Context) error {
	slot, err := h.appointments.FindSlot(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorResponse(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, slot)
}

// Checkout opens a hosted checkout session for an available slot.
// POST /api/slots/:id/checkout
func (h *SlotsHandler) Checkout(c echo.Context) error {
	var req links.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, h.logger, apperr.NewValidation("body", "invalid JSON body"))
	}

	checkout, err := h.service.StartCheckout(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return errorResponse(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, checkout)
}
