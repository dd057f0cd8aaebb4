package links

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"paylink/internal/apperr"
	"paylink/internal/clock"
	"paylink/internal/email"
	"paylink/internal/models"
	"paylink/internal/payment"
	"paylink/internal/pkg/utils"
	"paylink/internal/repository"
)

// IssueRequest is the input of a link issuance. Amount is in minor units.
type IssueRequest struct {
	CorrelationID    string `json:"correlation_id" validate:"required,max=64"`
	Email            string `json:"email" validate:"required,email"`
	CustomerName     string `json:"customer_name" validate:"required,max=255"`
	Amount           int64  `json:"amount" validate:"gt=0"`
	Currency         string `json:"currency" validate:"omitempty,len=3"`
	Description      string `json:"description" validate:"max=255"`
	ScheduledDate    string `json:"scheduled_date" validate:"required,datetime=2006-01-02"`
	ScheduledTime    string `json:"scheduled_time" validate:"omitempty,datetime=15:04"`
	RemindersEnabled *bool  `json:"reminders_enabled"`
}

// IssueResponse is returned to the caller after a link was created.
type IssueResponse struct {
	PaymentLink   string `json:"payment_link"`
	CorrelationID string `json:"correlation_id"`
}

// StatusView is the stored record merged with the gateway's session view.
type StatusView struct {
	ID            string                    `json:"id"`
	Status        string                    `json:"status"`
	PaymentLink   string                    `json:"payment_link"`
	Reminder1Sent bool                      `json:"reminder1_sent"`
	Reminder2Sent bool                      `json:"reminder2_sent"`
	AutoCanceled  bool                      `json:"auto_canceled"`
	Appointment   *AppointmentView          `json:"appointment,omitempty"`
	Activity      []models.ActivityLogEntry `json:"activity"`
	Session       *payment.SessionStatus    `json:"session,omitempty"`
	SessionError  string                    `json:"session_error,omitempty"`
}

// AppointmentView is the booking side of a record.
type AppointmentView struct {
	Status        string `json:"status"`
	ScheduledDate string `json:"scheduled_date"`
	ScheduledTime string `json:"scheduled_time,omitempty"`
	CancelReason  string `json:"cancel_reason,omitempty"`
	SlotTitle     string `json:"slot_title,omitempty"`
}

// Deps are the collaborators of a Service.
type Deps struct {
	Records      *repository.PaymentRecordRepository
	Appointments *repository.AppointmentRepository
	Activity     *repository.ActivityLogRepository
	Gateway      payment.Gateway
	Mailer       email.Sender
	Renderer     *email.Renderer
	Clock        clock.Clock
	Logger       *zap.Logger

	// Redirect targets of hosted checkout sessions.
	CheckoutSuccessURL string
	CheckoutCancelURL  string
}

// Service issues payment links and reports their state.
type Service struct {
	records      *repository.PaymentRecordRepository
	appointments *repository.AppointmentRepository
	activity     *repository.ActivityLogRepository
	gateway      payment.Gateway
	mailer       email.Sender
	renderer     *email.Renderer
	clock        clock.Clock
	currency     string
	successURL   string
	cancelURL    string
	validator    *requestValidator
	logger       *zap.Logger
}

// NewService builds a Service. currency is used when a request names none.
func NewService(deps Deps, currency string) *Service {
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		records:      deps.Records,
		appointments: deps.Appointments,
		activity:     deps.Activity,
		gateway:      deps.Gateway,
		mailer:       deps.Mailer,
		renderer:     deps.Renderer,
		clock:        clk,
		currency:     strings.ToLower(currency),
		successURL:   deps.CheckoutSuccessURL,
		cancelURL:    deps.CheckoutCancelURL,
		validator:    newRequestValidator(),
		logger:       deps.Logger.Named("links"),
	}
}

// Issue creates a gateway link for a booking and stores the pending record.
// The link email is best-effort once the link exists.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*IssueResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.records.FindByID(ctx, req.CorrelationID); err == nil {
		return nil, apperr.NewValidation("correlation_id", "a payment link was already issued for this id")
	} else if !apperr.IsNotFound(err) {
		return nil, apperr.Transient("find payment record", err)
	}

	currency := s.currency
	if req.Currency != "" {
		currency = strings.ToLower(req.Currency)
	}
	description := req.Description
	if description == "" {
		description = "Booking deposit " + utils.RefCode(req.CorrelationID)
	}

	link, err := s.gateway.IssueLink(ctx, payment.LinkRequest{
		Amount:      req.Amount,
		Currency:    currency,
		Description: description,
		Metadata:    map[string]string{payment.MetaRequestID: req.CorrelationID},
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	remindersEnabled := true
	if req.RemindersEnabled != nil {
		remindersEnabled = *req.RemindersEnabled
	}
	rec := &models.PaymentRecord{
		ID:               req.CorrelationID,
		Status:           models.StatusPending,
		Amount:           req.Amount,
		Currency:         currency,
		CustomerEmail:    req.Email,
		CustomerName:     req.CustomerName,
		Description:      description,
		ScheduledDate:    req.ScheduledDate,
		ScheduledTime:    req.ScheduledTime,
		LinkReference:    link.Reference,
		LinkURL:          link.URL,
		LinkIssuedAt:     &now,
		RemindersEnabled: remindersEnabled,
	}
	appt := &models.Appointment{
		ID:              utils.GenerateUUID(),
		PaymentRecordID: rec.ID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.Email,
		ScheduledDate:   req.ScheduledDate,
		ScheduledTime:   req.ScheduledTime,
		Status:          models.AppointmentAwaitingPayment,
	}
	act := repository.Activity{
		Action: models.ActionPaymentLinkSent,
		Details: map[string]interface{}{
			"link_reference": link.Reference,
			"amount":         req.Amount,
			"currency":       currency,
		},
	}
	if err := s.records.CreateWithAppointment(ctx, rec, appt, act, now); err != nil {
		s.logger.Error("Payment link issued but record not stored",
			zap.String("record_id", rec.ID),
			zap.String("link_reference", link.Reference),
			zap.Error(err),
		)
		return nil, apperr.Transient("store payment record", err)
	}

	s.sendLink(ctx, rec)

	s.logger.Info("Payment link issued",
		zap.String("record_id", rec.ID),
		zap.String("email", utils.MaskEmail(rec.CustomerEmail)),
		zap.Int64("amount", rec.Amount),
	)
	return &IssueResponse{PaymentLink: link.URL, CorrelationID: rec.ID}, nil
}

func (s *Service) sendLink(ctx context.Context, rec *models.PaymentRecord) {
	msg, err := s.renderer.Render(email.KindPaymentLink, rec)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		s.logger.Warn("Failed to send payment link email", zap.String("record_id", rec.ID), zap.Error(err))
	}
}

// Status returns the stored state of a record with its appointment, its
// activity log and, when it has a link, the gateway's session view. A gateway
// failure is reported in SessionError.
func (s *Service) Status(ctx context.Context, id string) (*StatusView, error) {
	rec, err := s.records.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &StatusView{
		ID:            rec.ID,
		Status:        rec.Status,
		PaymentLink:   rec.LinkURL,
		Reminder1Sent: rec.Reminder1SentAt != nil,
		Reminder2Sent: rec.Reminder2SentAt != nil,
		AutoCanceled:  rec.AutoCanceledAt != nil,
	}

	appt, err := s.appointmentView(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	view.Appointment = appt

	view.Activity, err = s.activity.ListByRecord(ctx, rec.ID)
	if err != nil {
		return nil, apperr.Transient("list activity", err)
	}

	if rec.LinkReference == "" {
		return view, nil
	}

	session, err := s.gateway.RetrieveSession(ctx, rec.LinkReference)
	if err != nil {
		s.logger.Warn("Session lookup failed", zap.String("record_id", rec.ID), zap.Error(err))
		view.SessionError = err.Error()
		return view, nil
	}
	view.Session = session
	return view, nil
}

func (s *Service) appointmentView(ctx context.Context, recordID string) (*AppointmentView, error) {
	appt, err := s.appointments.FindByPaymentRecord(ctx, recordID)
	if apperr.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Transient("find appointment", err)
	}

	view := &AppointmentView{
		Status:        appt.Status,
		ScheduledDate: appt.ScheduledDate,
		ScheduledTime: appt.ScheduledTime,
		CancelReason:  appt.CancelReason,
	}
	if appt.SlotID != nil && *appt.SlotID != "" {
		slot, err := s.appointments.FindSlot(ctx, *appt.SlotID)
		if err == nil {
			view.SlotTitle = slot.Title
		} else if !apperr.IsNotFound(err) {
			return nil, apperr.Transient("find slot", err)
		}
	}
	return view, nil
}
