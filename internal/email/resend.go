package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"paylink/internal/pkg/httpclient"
)

// ResendSender delivers mail through the Resend HTTP API.
type ResendSender struct {
	client *httpclient.Client
	from   string
}

func NewResendSender(baseURL, apiKey, from string, timeout time.Duration) *ResendSender {
	return &ResendSender{
		client: httpclient.New().
			WithBaseURL(strings.TrimRight(baseURL, "/")).
			WithTimeout(timeout).
			WithRetryCount(0).
			WithBearerToken(apiKey),
		from: from,
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	resp, err := s.client.PostJSON(ctx, "/emails", resendRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("resend request failed: %w", err)
	}
	if !resp.IsSuccess() {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(resp.Body, &body)
		if body.Message == "" {
			body.Message = string(resp.Body)
		}
		return fmt.Errorf("resend rejected message (status %d): %s", resp.StatusCode, body.Message)
	}
	return nil
}
