package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"paylink/internal/apperr"
	"paylink/internal/clock"
	"paylink/internal/email"
	"paylink/internal/events"
	"paylink/internal/metrics"
	"paylink/internal/models"
	"paylink/internal/payment"
	"paylink/internal/repository"
)

// ErrSweepInProgress is returned when another sweep holds the lock.
var ErrSweepInProgress = errors.New("reminder sweep already running")

const sweepLockKey = "paylink:lock:reminder-sweep"

// SweepSummary is the result of one sweep.
type SweepSummary struct {
	Reminder1Sent     int      `json:"reminder1_sent"`
	Reminder2Sent     int      `json:"reminder2_sent"`
	AutoCanceled      int      `json:"auto_canceled"`
	LinkDeactivations int      `json:"link_deactivations"`
	Errors            []string `json:"errors"`
}

// SweepConfig tunes the sweep.
type SweepConfig struct {
	Concurrency int
	LockTTL     time.Duration
	Thresholds  Thresholds
}

func (c SweepConfig) withDefaults() SweepConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Minute
	}
	th := c.Thresholds
	if th.Reminder1Days <= 0 || th.Reminder2Days <= th.Reminder1Days || th.CancelDays <= th.Reminder2Days {
		c.Thresholds = DefaultThresholds
	}
	return c
}

// SweepDeps bundles the collaborators of a Sweeper.
type SweepDeps struct {
	Records   *repository.PaymentRecordRepository
	Gateway   payment.Gateway
	Mailer    email.Sender
	Renderer  *email.Renderer
	Publisher events.Publisher
	Locker    Locker
	Clock     clock.Clock
	Logger    *zap.Logger
}

// Sweeper runs the reminder and auto-cancel ladder over pending records.
type Sweeper struct {
	records   *repository.PaymentRecordRepository
	gateway   payment.Gateway
	mailer    email.Sender
	renderer  *email.Renderer
	publisher events.Publisher
	locker    Locker
	clock     clock.Clock
	cfg       SweepConfig
	logger    *zap.Logger
}

func NewSweeper(deps SweepDeps, cfg SweepConfig) *Sweeper {
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}
	if deps.Locker == nil {
		deps.Locker = NewMemoryLocker()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	return &Sweeper{
		records:   deps.Records,
		gateway:   deps.Gateway,
		mailer:    deps.Mailer,
		renderer:  deps.Renderer,
		publisher: deps.Publisher,
		locker:    deps.Locker,
		clock:     deps.Clock,
		cfg:       cfg.withDefaults(),
		logger:    deps.Logger.Named("sweep"),
	}
}

type recordOutcome struct {
	action      Action
	applied     bool
	deactivated bool
	err         error
}

// Run executes one sweep. Per-record failures are collected in the summary;
// only a failure to start (lock, candidate query) is returned as an error.
// The sweep ignores cancellation of ctx and is bounded by the lock TTL
// instead, so a sent reminder is always stamped.
func (s *Sweeper) Run(ctx context.Context) (*SweepSummary, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.LockTTL)
	defer cancel()

	token, ok, err := s.locker.TryLock(ctx, sweepLockKey, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		return nil, ErrSweepInProgress
	}
	defer func() {
		if err := s.locker.Release(context.Background(), sweepLockKey, token); err != nil {
			s.logger.Warn("Failed to release sweep lock", zap.Error(err))
		}
	}()

	started := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(started).Seconds()) }()

	recs, err := s.records.ListReminderCandidates(ctx)
	if err != nil {
		return nil, apperr.Transient("list reminder candidates", err)
	}

	now := s.clock.Now()
	summary := &SweepSummary{Errors: []string{}}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i := range recs {
		rec := &recs[i]
		g.Go(func() error {
			out := s.processRecord(ctx, rec, now)
			mu.Lock()
			summary.add(rec.ID, out)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Reminder sweep completed",
		zap.Int("candidates", len(recs)),
		zap.Int("reminder1_sent", summary.Reminder1Sent),
		zap.Int("reminder2_sent", summary.Reminder2Sent),
		zap.Int("auto_canceled", summary.AutoCanceled),
		zap.Int("link_deactivations", summary.LinkDeactivations),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

func (sum *SweepSummary) add(recordID string, out recordOutcome) {
	if out.deactivated {
		sum.LinkDeactivations++
		metrics.SweepActions.WithLabelValues("link_deactivated").Inc()
	}
	if out.applied {
		switch out.action {
		case ActionReminder1:
			sum.Reminder1Sent++
		case ActionReminder2:
			sum.Reminder2Sent++
		case ActionAutoCancel:
			sum.AutoCanceled++
		}
		metrics.SweepActions.WithLabelValues(string(out.action)).Inc()
	}
	if out.err != nil {
		sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", recordID, out.err))
		metrics.SweepErrors.Inc()
	}
}

func (s *Sweeper) processRecord(ctx context.Context, rec *models.PaymentRecord, now time.Time) (out recordOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Sweep record panicked", zap.String("record_id", rec.ID), zap.Any("error", r))
			out.err = fmt.Errorf("panic: %v", r)
		}
	}()

	action, days := SelectAction(rec, now, s.cfg.Thresholds)
	out.action = action

	switch action {
	case ActionReminder1:
		out.applied, out.err = s.remind(ctx, rec, now, days, email.KindReminder1, models.ActionAutoReminder1, s.records.StampReminder1)
	case ActionReminder2:
		out.applied, out.err = s.remind(ctx, rec, now, days, email.KindReminder2, models.ActionAutoReminder2, s.records.StampReminder2)
	case ActionAutoCancel:
		out.applied, out.deactivated, out.err = s.autoCancel(ctx, rec, now, days)
	}
	if out.err != nil {
		s.logger.Error("Sweep action failed",
			zap.String("record_id", rec.ID),
			zap.String("action", string(action)),
			zap.Error(out.err),
		)
	}
	return out
}

type stampFunc func(ctx context.Context, id string, at time.Time, act repository.Activity) (bool, error)

// remind sends a reminder and then stamps it. A failed send leaves the stamp
// unset so the next sweep tries again.
func (s *Sweeper) remind(ctx context.Context, rec *models.PaymentRecord, now time.Time, days int, kind email.Kind, action string, stamp stampFunc) (bool, error) {
	if err := s.send(ctx, kind, rec); err != nil {
		return false, err
	}
	won, err := stamp(ctx, rec.ID, now, repository.Activity{
		Action:  action,
		Details: map[string]interface{}{"days_since_sent": days},
	})
	if err != nil {
		return false, apperr.Transient("stamp "+action, err)
	}
	if !won {
		s.logger.Info("Record changed during sweep, reminder not stamped", zap.String("record_id", rec.ID), zap.String("action", action))
	}
	return won, nil
}

// autoCancel deactivates the link, cancels the record and notifies the
// customer. Deactivation is best-effort and never blocks the cancellation.
func (s *Sweeper) autoCancel(ctx context.Context, rec *models.PaymentRecord, now time.Time, days int) (applied, deactivated bool, err error) {
	ok, derr := s.gateway.DeactivateLink(ctx, rec.LinkReference)
	if derr != nil {
		s.logger.Warn("Payment link deactivation failed",
			zap.String("record_id", rec.ID),
			zap.String("link_reference", rec.LinkReference),
			zap.Error(derr),
		)
	}
	deactivated = ok && derr == nil

	won, err := s.records.AutoCancel(ctx, rec.ID, now, repository.Activity{
		Action: models.ActionAutoCanceled,
		Details: map[string]interface{}{
			"days_since_sent":          days,
			"payment_link_deactivated": deactivated,
		},
	})
	if err != nil {
		return false, deactivated, apperr.Transient("auto cancel", err)
	}
	if !won {
		s.logger.Info("Record changed during sweep, not canceled", zap.String("record_id", rec.ID))
		return false, deactivated, nil
	}

	rec.Status = models.StatusCanceled
	rec.AutoCanceledAt = &now
	if err := s.publisher.Publish(ctx, events.KeyPaymentAutoCanceled, events.PaymentEvent{
		PaymentRecordID: rec.ID,
		Status:          models.StatusCanceled,
		Amount:          rec.Amount,
		Currency:        rec.Currency,
		OccurredAt:      now,
	}); err != nil {
		s.logger.Warn("Failed to publish payment event", zap.String("record_id", rec.ID), zap.Error(err))
	}

	if err := s.send(ctx, email.KindCancellation, rec); err != nil {
		return true, deactivated, err
	}
	return true, deactivated, nil
}

func (s *Sweeper) send(ctx context.Context, kind email.Kind, rec *models.PaymentRecord) error {
	msg, err := s.renderer.Render(kind, rec)
	if err != nil {
		return fmt.Errorf("render %s email: %w", kind, err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return apperr.Transient(fmt.Sprintf("send %s email", kind), err)
	}
	return nil
}
