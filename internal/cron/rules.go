package cron

import (
	"time"

	"paylink/internal/models"
)

// Action is the escalation step chosen for a record in one sweep.
type Action string

const (
	ActionNone       Action = "none"
	ActionReminder1  Action = "reminder_1"
	ActionReminder2  Action = "reminder_2"
	ActionAutoCancel Action = "auto_cancel"
)

// Thresholds are the elapsed-day boundaries of the escalation ladder.
type Thresholds struct {
	Reminder1Days int
	Reminder2Days int
	CancelDays    int
}

// DefaultThresholds is the 2/4/6 day ladder.
var DefaultThresholds = Thresholds{Reminder1Days: 2, Reminder2Days: 4, CancelDays: 6}

// Rule is one rung of the ladder.
type Rule struct {
	Action  Action
	Applies func(rec *models.PaymentRecord, days int, th Thresholds) bool
}

// Ladder lists the rules from the highest elapsed time down. The first rule
// that applies wins; at most one action runs per record per sweep.
var Ladder = []Rule{
	{
		Action: ActionAutoCancel,
		Applies: func(_ *models.PaymentRecord, days int, th Thresholds) bool {
			return days >= th.CancelDays
		},
	},
	{
		Action: ActionReminder2,
		Applies: func(rec *models.PaymentRecord, days int, th Thresholds) bool {
			return days >= th.Reminder2Days && days < th.CancelDays && rec.Reminder2SentAt == nil
		},
	},
	{
		Action: ActionReminder1,
		Applies: func(rec *models.PaymentRecord, days int, th Thresholds) bool {
			return days >= th.Reminder1Days && days < th.Reminder2Days && rec.Reminder1SentAt == nil
		},
	},
}

// ElapsedDays is the number of whole days between issued and now.
func ElapsedDays(issued, now time.Time) int {
	if now.Before(issued) {
		return 0
	}
	return int(now.Sub(issued) / (24 * time.Hour))
}

// Eligible reports whether the sweep may act on rec at all.
func Eligible(rec *models.PaymentRecord) bool {
	return rec.Status == models.StatusPending &&
		rec.AutoCanceledAt == nil &&
		rec.RemindersEnabled &&
		rec.CustomerEmail != "" &&
		rec.LinkIssuedAt != nil
}

// SelectAction evaluates the ladder for rec at now.
func SelectAction(rec *models.PaymentRecord, now time.Time, th Thresholds) (Action, int) {
	if !Eligible(rec) {
		return ActionNone, 0
	}
	days := ElapsedDays(*rec.LinkIssuedAt, now)
	for _, rule := range Ladder {
		if rule.Applies(rec, days, th) {
			return rule.Action, days
		}
	}
	return ActionNone, days
}
