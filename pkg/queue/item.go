package queue

import (
	"time"

	"github.com/leasescan/leasescan/pkg/fingerprint"
)

// Priority orders queue items. Lower values are more urgent.
type Priority int

const (
	PriorityCritical Priority = 1 // new vehicles, scrape immediately
	PriorityHigh     Priority = 2 // changed vehicles
	PriorityNormal   Priority = 3 // stale vehicles
	PriorityLow      Priority = 4 // background refresh
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	}
	return "unknown"
}

// Status is the lifecycle state of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Item is a single unit of full-scrape work: the fingerprint that identified
// it, the original opaque vehicle payload the scraper needs, and scheduling
// state.
type Item struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	VehicleData map[string]any          `json:"vehicle_data"`

	Priority Priority `json:"priority"`
	Status   Status   `json:"status"`

	AddedAt     time.Time  `json:"added_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	AttemptCount int    `json:"attempt_count"`
	MaxAttempts  int    `json:"max_attempts"`
	LastError    string `json:"last_error,omitempty"`

	// Reason records why the item was queued, e.g. "new_vehicle",
	// "changed", "stale".
	Reason string `json:"reason,omitempty"`
}

// UniqueKey is the item's identity within the queue.
func (it *Item) UniqueKey() string {
	return it.Fingerprint.UniqueKey()
}

// Provider returns the provider the item belongs to.
func (it *Item) Provider() string {
	return it.Fingerprint.Provider
}

func (it *Item) markInProgress(now time.Time) {
	it.Status = StatusInProgress
	it.StartedAt = &now
	it.AttemptCount++
}

func (it *Item) markCompleted(now time.Time) {
	it.Status = StatusCompleted
	it.CompletedAt = &now
}

// markFailed records the error and either parks the item terminally or
// reverts it to pending for a later retry.
func (it *Item) markFailed(msg string) {
	it.LastError = msg
	if it.AttemptCount >= it.MaxAttempts {
		it.Status = StatusFailed
	} else {
		it.Status = StatusPending
	}
}
