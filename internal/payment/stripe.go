package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"paylink/internal/apperr"
	"paylink/internal/metrics"
	"paylink/internal/pkg/httpclient"
)

const stripeDefaultBaseURL = "https://api.stripe.com"

// StripeGateway implements Gateway over the Stripe REST API.
type StripeGateway struct {
	client *httpclient.Client
}

func NewStripeGateway(secretKey, baseURL string, timeout time.Duration) *StripeGateway {
	if baseURL == "" {
		baseURL = stripeDefaultBaseURL
	}
	return &StripeGateway{
		client: httpclient.New().
			WithBaseURL(strings.TrimRight(baseURL, "/")).
			WithTimeout(timeout).
			WithRetryCount(0).
			WithBearerToken(secretKey),
	}
}

func (s *StripeGateway) Name() string {
	return "stripe"
}

func (s *StripeGateway) IssueLink(ctx context.Context, req LinkRequest) (link *Link, err error) {
	defer func() { metrics.ObserveGateway("issue_link", err) }()

	var product struct {
		ID string `json:"id"`
	}
	if err := s.post(ctx, "/v1/products", url.Values{"name": {req.Description}}, &product); err != nil {
		return nil, err
	}

	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = "eur"
	}
	var price struct {
		ID string `json:"id"`
	}
	priceForm := url.Values{
		"product":     {product.ID},
		"unit_amount": {strconv.FormatInt(req.Amount, 10)},
		"currency":    {currency},
	}
	if err := s.post(ctx, "/v1/prices", priceForm, &price); err != nil {
		return nil, err
	}

	linkForm := url.Values{
		"line_items[0][price]":    {price.ID},
		"line_items[0][quantity]": {"1"},
	}
	for k, v := range req.Metadata {
		linkForm.Set("metadata["+k+"]", v)
		linkForm.Set("payment_intent_data[metadata]["+k+"]", v)
	}
	var created struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := s.post(ctx, "/v1/payment_links", linkForm, &created); err != nil {
		return nil, err
	}
	if created.ID == "" || created.URL == "" {
		return nil, &apperr.GatewayError{Code: "invalid_response", Message: "payment link response without id or url"}
	}

	return &Link{Reference: created.ID, URL: created.URL}, nil
}

func (s *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (checkout *Checkout, err error) {
	defer func() { metrics.ObserveGateway("create_checkout_session", err) }()

	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = "eur"
	}
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", req.Description)
	if req.CustomerEmail != "" {
		form.Set("customer_email", req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		form.Set("metadata["+k+"]", v)
		form.Set("payment_intent_data[metadata]["+k+"]", v)
	}

	var created struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := s.post(ctx, "/v1/checkout/sessions", form, &created); err != nil {
		return nil, err
	}
	if created.ID == "" || created.URL == "" {
		return nil, &apperr.GatewayError{Code: "invalid_response", Message: "checkout session response without id or url"}
	}
	return &Checkout{SessionID: created.ID, URL: created.URL}, nil
}

func (s *StripeGateway) DeactivateLink(ctx context.Context, linkReference string) (ok bool, err error) {
	defer func() { metrics.ObserveGateway("deactivate_link", err) }()

	id := LinkIDFromReference(linkReference)
	if id == "" {
		return false, apperr.NewValidation("link_reference", "empty")
	}
	if err := s.post(ctx, "/v1/payment_links/"+url.PathEscape(id), url.Values{"active": {"false"}}, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (s *StripeGateway) RetrieveSession(ctx context.Context, id string) (status *SessionStatus, err error) {
	defer func() { metrics.ObserveGateway("retrieve_session", err) }()

	id = LinkIDFromReference(id)
	var session stripeSession
	switch {
	case strings.HasPrefix(id, "cs_"):
		if err := s.get(ctx, "/v1/checkout/sessions/"+url.PathEscape(id), nil, &session); err != nil {
			return nil, err
		}
	case strings.HasPrefix(id, "plink_"):
		var list struct {
			Data []stripeSession `json:"data"`
		}
		query := url.Values{"payment_link": {id}, "limit": {"1"}}
		if err := s.get(ctx, "/v1/checkout/sessions", query, &list); err != nil {
			return nil, err
		}
		if len(list.Data) == 0 {
			return &SessionStatus{}, nil
		}
		session = list.Data[0]
	default:
		return nil, apperr.NewValidation("session_id", "expected a checkout session or payment link id")
	}

	email := session.CustomerDetails.Email
	if email == "" {
		email = session.CustomerEmail
	}
	return &SessionStatus{
		SessionID: session.ID,
		Paid:      session.PaymentStatus == "paid",
		Amount:    session.AmountTotal,
		Email:     email,
	}, nil
}

type stripeSession struct {
	ID              string `json:"id"`
	PaymentStatus   string `json:"payment_status"`
	AmountTotal     int64  `json:"amount_total"`
	CustomerEmail   string `json:"customer_email"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

type stripeErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *StripeGateway) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	resp, err := s.client.PostForm(ctx, path, form)
	if err != nil {
		return &apperr.GatewayError{Code: "transport", Message: err.Error()}
	}
	return decodeStripe(resp, out)
}

func (s *StripeGateway) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	resp, err := s.client.Get(ctx, path, query)
	if err != nil {
		return &apperr.GatewayError{Code: "transport", Message: err.Error()}
	}
	return decodeStripe(resp, out)
}

func decodeStripe(resp *httpclient.Response, out interface{}) error {
	if !resp.IsSuccess() {
		var body stripeErrorBody
		_ = json.Unmarshal(resp.Body, &body)
		code := body.Error.Code
		if code == "" {
			code = body.Error.Type
		}
		if code == "" {
			code = strconv.Itoa(resp.StatusCode)
		}
		msg := body.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return &apperr.GatewayError{Code: code, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &apperr.GatewayError{Code: "invalid_response", Message: err.Error()}
	}
	return nil
}

// LinkIDFromReference accepts either a bare link id or a link URL and returns
// the id: the last path segment with any query string removed.
func LinkIDFromReference(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.TrimRight(ref, "/")
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	return ref
}
