// Package testutil holds fixtures shared by package tests: an in-memory
// store, a scripted gateway and a recording mail sender.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"paylink/internal/apperr"
	"paylink/internal/bootstrap"
	"paylink/internal/email"
	"paylink/internal/models"
	"paylink/internal/payment"
)

// NewDB opens a private in-memory SQLite database with the full schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A second connection would open a different in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, bootstrap.Migrate(db))
	return db
}

// Logger returns a logger that discards everything.
func Logger() *zap.Logger {
	return zap.NewNop()
}

// PendingRecord builds a pending record whose link was issued at issuedAt.
func PendingRecord(id string, issuedAt time.Time) *models.PaymentRecord {
	issued := issuedAt.UTC()
	return &models.PaymentRecord{
		ID:               id,
		Status:           models.StatusPending,
		Amount:           20000,
		Currency:         "eur",
		CustomerEmail:    id + "@example.com",
		CustomerName:     "Customer " + id,
		ScheduledDate:    "2026-11-02",
		ScheduledTime:    "10:30",
		LinkReference:    "plink_" + id,
		LinkURL:          "https://buy.stripe.com/test_" + id,
		LinkIssuedAt:     &issued,
		RemindersEnabled: true,
	}
}

// SeedRecord stores rec together with an appointment awaiting payment.
func SeedRecord(t *testing.T, db *gorm.DB, rec *models.PaymentRecord) {
	t.Helper()
	require.NoError(t, db.Create(rec).Error)
	require.NoError(t, db.Create(&models.Appointment{
		ID:              "appt-" + rec.ID,
		PaymentRecordID: rec.ID,
		CustomerName:    rec.CustomerName,
		CustomerEmail:   rec.CustomerEmail,
		ScheduledDate:   rec.ScheduledDate,
		ScheduledTime:   rec.ScheduledTime,
		Status:          models.AppointmentAwaitingPayment,
	}).Error)
}

// Reload reads a record back from the store.
func Reload(t *testing.T, db *gorm.DB, id string) *models.PaymentRecord {
	t.Helper()
	var rec models.PaymentRecord
	require.NoError(t, db.Where("id = ?", id).First(&rec).Error)
	return &rec
}

// CountActivity counts log entries of a record with the given action.
func CountActivity(t *testing.T, db *gorm.DB, recordID, action string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.ActivityLogEntry{}).
		Where("payment_record_id = ? AND action = ?", recordID, action).
		Count(&n).Error)
	return n
}

// FakeGateway is a scripted payment.Gateway.
type FakeGateway struct {
	mu sync.Mutex

	IssueErr      error
	DeactivateErr error
	Sessions      map[string]*payment.SessionStatus
	SessionErr    error

	Issued      []payment.LinkRequest
	Checkouts   []payment.CheckoutRequest
	Deactivated []string
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{Sessions: map[string]*payment.SessionStatus{}}
}

func (g *FakeGateway) Name() string { return "stripe" }

func (g *FakeGateway) IssueLink(_ context.Context, req payment.LinkRequest) (*payment.Link, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.IssueErr != nil {
		return nil, g.IssueErr
	}
	g.Issued = append(g.Issued, req)
	n := len(g.Issued)
	return &payment.Link{
		Reference: fmt.Sprintf("plink_test_%d", n),
		URL:       fmt.Sprintf("https://buy.stripe.com/test_%d", n),
	}, nil
}

func (g *FakeGateway) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (*payment.Checkout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.IssueErr != nil {
		return nil, g.IssueErr
	}
	g.Checkouts = append(g.Checkouts, req)
	n := len(g.Checkouts)
	return &payment.Checkout{
		SessionID: fmt.Sprintf("cs_test_%d", n),
		URL:       fmt.Sprintf("https://checkout.stripe.com/c/pay/cs_test_%d", n),
	}, nil
}

func (g *FakeGateway) DeactivateLink(_ context.Context, ref string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.DeactivateErr != nil {
		return false, g.DeactivateErr
	}
	g.Deactivated = append(g.Deactivated, ref)
	return true, nil
}

func (g *FakeGateway) RetrieveSession(_ context.Context, id string) (*payment.SessionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.SessionErr != nil {
		return nil, g.SessionErr
	}
	s, ok := g.Sessions[id]
	if !ok {
		return nil, &apperr.GatewayError{Code: "resource_missing", Message: "no session for " + id}
	}
	return s, nil
}

// DeactivatedCount returns how many links were deactivated.
func (g *FakeGateway) DeactivatedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Deactivated)
}

// FakeSender records sent messages. FailTo makes sends to an address fail.
// AfterSend, when set, runs after every successful send.
type FakeSender struct {
	mu        sync.Mutex
	Sent      []email.Message
	FailTo    map[string]bool
	AfterSend func(email.Message)
}

func NewFakeSender() *FakeSender {
	return &FakeSender{FailTo: map[string]bool{}}
}

func (s *FakeSender) Send(_ context.Context, msg email.Message) error {
	s.mu.Lock()
	if s.FailTo[msg.To] {
		s.mu.Unlock()
		return fmt.Errorf("smtp: mailbox %s unavailable", msg.To)
	}
	s.Sent = append(s.Sent, msg)
	after := s.AfterSend
	s.mu.Unlock()

	if after != nil {
		after(msg)
	}
	return nil
}

// Fail makes every later send to addr fail.
func (s *FakeSender) Fail(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailTo[addr] = true
}

// SentTo returns the messages delivered to addr.
func (s *FakeSender) SentTo(addr string) []email.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []email.Message
	for _, m := range s.Sent {
		if m.To == addr {
			out = append(out, m)
		}
	}
	return out
}

// Count returns the number of delivered messages.
func (s *FakeSender) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Sent)
}
