package payment

import "context"

// LinkRequest describes a payment link to issue. Amount is in minor units.
type LinkRequest struct {
	Amount      int64
	Currency    string
	Description string
	Metadata    map[string]string
}

// Link is an issued payment link.
type Link struct {
	Reference string `json:"reference"`
	URL       string `json:"url"`
}

// CheckoutRequest describes a hosted checkout for a single item.
type CheckoutRequest struct {
	Amount        int64
	Currency      string
	Description   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// Checkout is a created checkout session.
type Checkout struct {
	SessionID string `json:"session_id"`
	URL       string `json:"checkout_url"`
}

// SessionStatus is the gateway's view of a checkout session.
type SessionStatus struct {
	SessionID string `json:"session_id"`
	Paid      bool   `json:"paid"`
	Amount    int64  `json:"amount"`
	Email     string `json:"email"`
}

// Gateway defines the payment provider operations the service depends on.
type Gateway interface {
	// Name returns the gateway identifier.
	Name() string

	// IssueLink creates a hosted payment link. Non-2xx answers surface as
	// *apperr.GatewayError and are never retried.
	IssueLink(ctx context.Context, req LinkRequest) (*Link, error)

	// CreateCheckoutSession starts a hosted checkout. Like IssueLink it is
	// never retried.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Checkout, error)

	// DeactivateLink disables a link so it can no longer be paid.
	DeactivateLink(ctx context.Context, linkReference string) (bool, error)

	// RetrieveSession looks up a checkout session by session or link id.
	RetrieveSession(ctx context.Context, id string) (*SessionStatus, error)
}
