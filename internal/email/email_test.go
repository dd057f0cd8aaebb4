package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paylink/internal/config"
	"paylink/internal/models"
)

func sampleRecord() *models.PaymentRecord {
	return &models.PaymentRecord{
		ID:            "0f8e2c1a-77aa-4bb1-9c3d-123456789abc",
		Amount:        20000,
		Currency:      "eur",
		CustomerEmail: "jane@example.com",
		CustomerName:  "Jane <script>",
		ScheduledDate: "2026-11-02",
		ScheduledTime: "10:30",
		LinkURL:       "https://buy.stripe.com/test_1",
	}
}

func TestRenderKinds(t *testing.T) {
	r := NewRenderer("Studio")
	rec := sampleRecord()

	for _, kind := range []Kind{KindPaymentLink, KindReminder1, KindReminder2, KindCancellation, KindConfirmation} {
		t.Run(string(kind), func(t *testing.T) {
			msg, err := r.Render(kind, rec)
			require.NoError(t, err)
			assert.Equal(t, "jane@example.com", msg.To)
			assert.Contains(t, msg.Subject, "P0F8E2C1A")
			assert.Contains(t, msg.HTML, "200.00 EUR")
			assert.NotContains(t, msg.HTML, "<script>", "customer input is escaped")
		})
	}
}

func TestRenderLinkOnlyWherePayable(t *testing.T) {
	r := NewRenderer("Studio")
	rec := sampleRecord()

	msg, err := r.Render(KindReminder2, rec)
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, rec.LinkURL)

	msg, err = r.Render(KindCancellation, rec)
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, rec.LinkURL)
}

func TestResendSender(t *testing.T) {
	var got resendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"msg_1"}`))
	}))
	defer srv.Close()

	s := NewResendSender(srv.URL, "re_test", "bookings@example.com", time.Second)
	err := s.Send(context.Background(), Message{To: "jane@example.com", Subject: "Hi", HTML: "<p>x</p>"})
	require.NoError(t, err)
	assert.Equal(t, "bookings@example.com", got.From)
	assert.Equal(t, []string{"jane@example.com"}, got.To)
}

func TestResendSenderRejection(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid to address"}`))
	}))
	defer srv.Close()

	s := NewResendSender(srv.URL, "re_test", "bookings@example.com", time.Second)
	err := s.Send(context.Background(), Message{To: "bad", Subject: "Hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid to address")
	assert.Equal(t, 1, calls, "sends are never retried")
}

func TestNewSender(t *testing.T) {
	logger := zap.NewNop()

	s, err := NewSender(&config.EmailConfig{Provider: "log"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, s)
	assert.NoError(t, s.Send(context.Background(), Message{To: "a@example.com"}))

	s, err = NewSender(&config.EmailConfig{Provider: "smtp", SMTPHost: "smtp.example.com", SMTPPort: 587}, logger)
	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, s)

	_, err = NewSender(&config.EmailConfig{Provider: "smtp"}, logger)
	assert.Error(t, err)

	_, err = NewSender(&config.EmailConfig{Provider: "resend"}, logger)
	assert.Error(t, err)

	_, err = NewSender(&config.EmailConfig{Provider: "pigeon"}, logger)
	assert.Error(t, err)
}

func TestSMTPSenderSkipsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSMTPSender("127.0.0.1", 1, "", "", "bookings@example.com")
	assert.ErrorIs(t, s.Send(ctx, Message{To: "a@example.com"}), context.Canceled)
}
