package models

import "time"

// NotificationKind classifies a user-facing message.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyInfo    NotificationKind = "info"
	NotifyWarning NotificationKind = "warning"
)

// Notification is an ephemeral user message. Each instance expires
// independently after its TTL unless dismissed first.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	CreatedAt time.Time        `json:"createdAt"`
	TTLMs     int64            `json:"ttlMs"`
}
