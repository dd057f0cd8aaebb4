package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"paylink/internal/models"
)

var sweepNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func recordIssued(ago time.Duration) *models.PaymentRecord {
	issued := sweepNow.Add(-ago)
	return &models.PaymentRecord{
		ID:               "rec",
		Status:           models.StatusPending,
		CustomerEmail:    "a@example.com",
		LinkReference:    "plink_1",
		LinkIssuedAt:     &issued,
		RemindersEnabled: true,
	}
}

func TestElapsedDaysFloors(t *testing.T) {
	issued := sweepNow.Add(-47 * time.Hour)
	assert.Equal(t, 1, ElapsedDays(issued, sweepNow))
	assert.Equal(t, 2, ElapsedDays(sweepNow.Add(-48*time.Hour), sweepNow))
	assert.Equal(t, 0, ElapsedDays(sweepNow.Add(time.Hour), sweepNow))
}

func TestSelectActionLadder(t *testing.T) {
	day := 24 * time.Hour
	stamped := sweepNow.Add(-day)

	tests := []struct {
		name   string
		ago    time.Duration
		mutate func(*models.PaymentRecord)
		want   Action
		days   int
	}{
		{name: "fresh link", ago: day + 23*time.Hour, want: ActionNone, days: 1},
		{name: "day two", ago: 2 * day, want: ActionReminder1, days: 2},
		{name: "day three", ago: 3*day + time.Hour, want: ActionReminder1, days: 3},
		{
			name:   "day three after first reminder",
			ago:    3 * day,
			mutate: func(r *models.PaymentRecord) { r.Reminder1SentAt = &stamped },
			want:   ActionNone,
			days:   3,
		},
		{name: "day four skips first tier", ago: 4 * day, want: ActionReminder2, days: 4},
		{
			name:   "day five after second reminder",
			ago:    5 * day,
			mutate: func(r *models.PaymentRecord) { r.Reminder2SentAt = &stamped },
			want:   ActionNone,
			days:   5,
		},
		{name: "day six", ago: 6 * day, want: ActionAutoCancel, days: 6},
		{
			name:   "day nine with both reminders",
			ago:    9 * day,
			mutate: func(r *models.PaymentRecord) { r.Reminder1SentAt, r.Reminder2SentAt = &stamped, &stamped },
			want:   ActionAutoCancel,
			days:   9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := recordIssued(tt.ago)
			if tt.mutate != nil {
				tt.mutate(rec)
			}
			action, days := SelectAction(rec, sweepNow, DefaultThresholds)
			assert.Equal(t, tt.want, action)
			assert.Equal(t, tt.days, days)
		})
	}
}

func TestSelectActionSkipsIneligible(t *testing.T) {
	canceledAt := sweepNow

	tests := []struct {
		name   string
		mutate func(*models.PaymentRecord)
	}{
		{name: "reminders disabled", mutate: func(r *models.PaymentRecord) { r.RemindersEnabled = false }},
		{name: "no email", mutate: func(r *models.PaymentRecord) { r.CustomerEmail = "" }},
		{name: "already paid", mutate: func(r *models.PaymentRecord) { r.Status = models.StatusDepositPaid }},
		{name: "already canceled", mutate: func(r *models.PaymentRecord) { r.AutoCanceledAt = &canceledAt }},
		{name: "link never issued", mutate: func(r *models.PaymentRecord) { r.LinkIssuedAt = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := recordIssued(10 * 24 * time.Hour)
			tt.mutate(rec)
			action, _ := SelectAction(rec, sweepNow, DefaultThresholds)
			assert.Equal(t, ActionNone, action)
		})
	}
}

func TestLadderOrder(t *testing.T) {
	got := make([]Action, 0, len(Ladder))
	for _, r := range Ladder {
		got = append(got, r.Action)
	}
	assert.Equal(t, []Action{ActionAutoCancel, ActionReminder2, ActionReminder1}, got)
}
