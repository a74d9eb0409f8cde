// Package store provides the RelayOutbox interface and model for
// restart-safe delivery of relayed reports.
package store

import (
	"time"

	"github.com/weelysontheDISease/Telebot-V1/internal/models"
)

// RelayStatus represents the lifecycle state of an outbox relay.
type RelayStatus string

const (
	RelayStatusQueued  RelayStatus = "queued"
	RelayStatusSending RelayStatus = "sending"
	RelayStatusSent    RelayStatus = "sent"
)

// Relay is one durable outgoing relay record destined for a group topic.
type Relay struct {
	ID            string             `json:"id"`
	Dest          models.Destination `json:"dest"`
	Body          string             `json:"body"`
	Status        RelayStatus        `json:"status"`
	Attempts      int                `json:"attempts"`
	NextAttemptAt *time.Time         `json:"next_attempt_at"`
	LockedAt      *time.Time         `json:"locked_at"`
	LastError     string             `json:"last_error"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// RelayOutbox defines durable relay persistence. Enqueueing is the
// commit point for user-visible "sent" semantics; delivery itself is
// at-least-once via the RelaySender.
type RelayOutbox interface {
	// EnqueueRelay inserts a new queued relay and returns its ID.
	EnqueueRelay(dest models.Destination, body string) (string, error)

	// ClaimDueRelays marks up to limit queued relays whose
	// next_attempt_at <= now (or is unset) as sending and returns them.
	ClaimDueRelays(now time.Time, limit int) ([]Relay, error)

	// MarkRelaySent marks a relay as successfully delivered.
	MarkRelaySent(id string) error

	// FailRelay records a delivery failure and schedules a retry.
	FailRelay(id string, errMsg string, nextAttemptAt time.Time) error

	// RequeueStaleRelays resets relays stuck in sending since before
	// staleBefore back to queued (crash recovery).
	RequeueStaleRelays(staleBefore time.Time) (int, error)
}
