package payment

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// EventKind is the domain classification of a gateway event.
type EventKind string

const (
	EventSucceeded EventKind = "payment_succeeded"
	EventFailed    EventKind = "payment_failed"
	EventOther     EventKind = "other"
)

// Metadata keys carried on links and checkout sessions.
const (
	MetaRequestID     = "request_id"
	MetaPaymentType   = "payment_type"
	MetaType          = "type"
	MetaSlotID        = "slot_id"
	MetaCustomerName  = "customer_name"
	MetaCustomerEmail = "customer_email"
	MetaScheduledDate = "scheduled_date"
	MetaScheduledTime = "scheduled_time"

	PaymentTypeFull     = "full"
	TypeDeferredBooking = "deferred_booking"
)

var (
	ErrInvalidPayload = errors.New("invalid event payload")
	ErrInvalidEvent   = errors.New("event without id or type")
)

// DeferredBooking is the booking data carried by checkouts whose record is
// only created once the payment succeeds.
type DeferredBooking struct {
	SlotID        string
	CustomerName  string
	CustomerEmail string
	ScheduledDate string
	ScheduledTime string
}

// Event is a parsed gateway event.
type Event struct {
	ID             string
	Type           string
	Kind           EventKind
	Created        time.Time
	CorrelationKey string
	PaymentID      string
	Amount         int64
	Currency       string
	Email          string
	FailureReason  string
	FullPayment    bool
	Deferred       *DeferredBooking
}

type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type eventObject struct {
	ID               string         `json:"id"`
	Object           string         `json:"object"`
	Amount           int64          `json:"amount"`
	AmountReceived   int64          `json:"amount_received"`
	AmountTotal      int64          `json:"amount_total"`
	Currency         string         `json:"currency"`
	PaymentIntent    string         `json:"payment_intent"`
	PaymentStatus    string         `json:"payment_status"`
	ReceiptEmail     string         `json:"receipt_email"`
	CustomerEmail    string         `json:"customer_email"`
	Metadata         map[string]any `json:"metadata"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
	CustomerDetails *struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer_details"`
}

// ParseEvent decodes a webhook body into an Event.
func ParseEvent(payload []byte) (*Event, error) {
	var raw stripeEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, ErrInvalidPayload
	}
	if strings.TrimSpace(raw.ID) == "" || strings.TrimSpace(raw.Type) == "" {
		return nil, ErrInvalidEvent
	}

	ev := &Event{
		ID:      raw.ID,
		Type:    raw.Type,
		Kind:    Classify(raw.Type),
		Created: time.Unix(raw.Created, 0).UTC(),
	}
	if ev.Kind == EventOther {
		return ev, nil
	}

	var obj eventObject
	if len(raw.Data.Object) == 0 {
		return nil, ErrInvalidPayload
	}
	if err := json.Unmarshal(raw.Data.Object, &obj); err != nil {
		return nil, ErrInvalidPayload
	}

	// A completed session paid by a delayed method is settled by a later event.
	if obj.Object == "checkout.session" && obj.PaymentStatus == "unpaid" {
		ev.Kind = EventOther
		return ev, nil
	}

	ev.CorrelationKey = readMetadataValue(obj.Metadata, MetaRequestID)
	ev.FullPayment = readMetadataValue(obj.Metadata, MetaPaymentType) == PaymentTypeFull
	ev.Currency = strings.ToUpper(obj.Currency)

	// Sessions and intents of the same payment share the intent id.
	ev.PaymentID = obj.ID
	if obj.PaymentIntent != "" {
		ev.PaymentID = obj.PaymentIntent
	}

	switch {
	case obj.AmountTotal > 0:
		ev.Amount = obj.AmountTotal
	case obj.AmountReceived > 0:
		ev.Amount = obj.AmountReceived
	default:
		ev.Amount = obj.Amount
	}

	switch {
	case obj.CustomerDetails != nil && obj.CustomerDetails.Email != "":
		ev.Email = obj.CustomerDetails.Email
	case obj.CustomerEmail != "":
		ev.Email = obj.CustomerEmail
	default:
		ev.Email = obj.ReceiptEmail
	}

	if obj.LastPaymentError != nil {
		ev.FailureReason = obj.LastPaymentError.Message
	}

	if readMetadataValue(obj.Metadata, MetaType) == TypeDeferredBooking {
		d := &DeferredBooking{
			SlotID:        readMetadataValue(obj.Metadata, MetaSlotID),
			CustomerName:  readMetadataValue(obj.Metadata, MetaCustomerName),
			CustomerEmail: readMetadataValue(obj.Metadata, MetaCustomerEmail),
			ScheduledDate: readMetadataValue(obj.Metadata, MetaScheduledDate),
			ScheduledTime: readMetadataValue(obj.Metadata, MetaScheduledTime),
		}
		if d.CustomerEmail == "" {
			d.CustomerEmail = ev.Email
		}
		if d.CustomerName == "" && obj.CustomerDetails != nil {
			d.CustomerName = obj.CustomerDetails.Name
		}
		ev.Deferred = d
	}

	return ev, nil
}

// Classify maps a gateway event type onto an EventKind.
func Classify(eventType string) EventKind {
	switch strings.TrimSpace(eventType) {
	case "checkout.session.completed", "payment_intent.succeeded":
		return EventSucceeded
	case "payment_intent.payment_failed":
		return EventFailed
	default:
		return EventOther
	}
}

func readMetadataValue(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	switch v := metadata[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return ""
}
