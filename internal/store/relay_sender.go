// Package store provides the RelaySender for delivering queued relays.
package store

import (
	"context"
	"log/slog"
	"time"
)

// RelaySendFunc performs the actual delivery of one relay.
type RelaySendFunc func(ctx context.Context, r Relay) error

// RelaySender periodically claims due relays and attempts delivery.
type RelaySender struct {
	outbox         RelayOutbox
	sendFunc       RelaySendFunc
	pollInterval   time.Duration
	staleThreshold time.Duration
	claimLimit     int
}

// NewRelaySender creates a new RelaySender.
func NewRelaySender(outbox RelayOutbox, sendFunc RelaySendFunc, pollInterval time.Duration) *RelaySender {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &RelaySender{
		outbox:         outbox,
		sendFunc:       sendFunc,
		pollInterval:   pollInterval,
		staleThreshold: 5 * time.Minute,
		claimLimit:     10,
	}
}

// RecoverStaleRelays requeues relays stuck in sending state. Should be
// called once at startup.
func (s *RelaySender) RecoverStaleRelays() error {
	staleBefore := time.Now().Add(-s.staleThreshold)
	n, err := s.outbox.RequeueStaleRelays(staleBefore)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("RelaySender.RecoverStaleRelays: requeued stale relays", "count", n)
	}
	return nil
}

// Run starts the polling loop. It blocks until the context is cancelled.
func (s *RelaySender) Run(ctx context.Context) {
	slog.Info("RelaySender.Run: starting relay sender", "pollInterval", s.pollInterval)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("RelaySender.Run: stopping")
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *RelaySender) poll(ctx context.Context) {
	now := time.Now()
	relays, err := s.outbox.ClaimDueRelays(now, s.claimLimit)
	if err != nil {
		slog.Error("RelaySender.poll: claim failed", "error", err)
		return
	}

	for _, r := range relays {
		slog.Debug("RelaySender.poll: delivering relay", "id", r.ID, "dest", r.Dest)
		if err := s.sendFunc(ctx, r); err != nil {
			slog.Error("RelaySender.poll: delivery failed", "id", r.ID, "dest", r.Dest, "error", err)
			// Exponential backoff: 10s, 20s, 40s, ...
			backoff := time.Duration(10*(1<<r.Attempts)) * time.Second
			if err := s.outbox.FailRelay(r.ID, err.Error(), now.Add(backoff)); err != nil {
				slog.Error("RelaySender.poll: fail relay error", "id", r.ID, "error", err)
			}
		} else {
			if err := s.outbox.MarkRelaySent(r.ID); err != nil {
				slog.Error("RelaySender.poll: mark sent error", "id", r.ID, "error", err)
			}
			slog.Debug("RelaySender.poll: relay delivered", "id", r.ID, "dest", r.Dest)
		}
	}
}
