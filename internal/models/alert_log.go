// Package models defines domain models for PulseBoard.
package models

import "time"

// Audit log entry types written by the alerting engine. Evaluation
// failures are logged with the failure message as the entry type, so the
// type column is not limited to these values.
const (
	LogTypeInit             = "init"
	LogTypeTrigger          = "trigger"
	LogTypeRevoke           = "revoke"
	LogTypeTriggerAndRevoke = "triggerAndRevoke"
	LogTypeInterval         = "interval"
	LogTypeUpdate           = "update"
	LogTypeTest             = "test"
)

// AlertLogEntry records one lifecycle event of an alert.
type AlertLogEntry struct {
	ID      string    `json:"id"`
	AlertID string    `json:"alert_id"`
	Type    string    `json:"type"`
	Time    time.Time `json:"time"`
}
