package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinLimit(t *testing.T) {
	l := NewLimiter()
	for i := 0; i < 5; i++ {
		if !l.Allow(1, "start_pt_admin", 5, 30*time.Second) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow(1, "start_pt_admin", 5, 30*time.Second) {
		t.Error("sixth request should be throttled")
	}
}

func TestBucketsAreIndependent(t *testing.T) {
	l := NewLimiter()
	if !l.Allow(1, "a", 1, time.Minute) {
		t.Fatal("first request should pass")
	}
	if l.Allow(1, "a", 1, time.Minute) {
		t.Error("bucket a should be exhausted")
	}
	if !l.Allow(1, "b", 1, time.Minute) {
		t.Error("bucket b should be unaffected")
	}
	if !l.Allow(2, "a", 1, time.Minute) {
		t.Error("another user should be unaffected")
	}
}

func TestWindowExpiry(t *testing.T) {
	l := NewLimiter()
	current := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	if !l.Allow(1, "x", 1, 30*time.Second) {
		t.Fatal("first request should pass")
	}
	if l.Allow(1, "x", 1, 30*time.Second) {
		t.Fatal("second request should be throttled")
	}
	current = current.Add(31 * time.Second)
	if !l.Allow(1, "x", 1, 30*time.Second) {
		t.Error("request after window should pass")
	}
}

func TestZeroUserIDRejected(t *testing.T) {
	l := NewLimiter()
	if l.Allow(0, "x", 5, time.Minute) {
		t.Error("unidentified users must not be allowed")
	}
}
