package session

import (
	"testing"
	"time"

	"github.com/weelysontheDISease/Telebot-V1/internal/models"
)

func TestBeginReplacesSession(t *testing.T) {
	s := NewStore()
	first := s.Begin(1, ModeMovement)
	first.Movement = &MovementDraft{From: "DHA"}

	second := s.Begin(1, ModeSFT)
	if second.Mode != ModeSFT {
		t.Errorf("expected mode SFT, got %s", second.Mode)
	}
	if second.Movement != nil {
		t.Error("new session should not carry old drafts")
	}
	if got := s.Get(1); got != second {
		t.Error("Get should return the latest session")
	}
}

func TestResetEntryPreservesWhitelist(t *testing.T) {
	s := NewStore()
	sess := s.Begin(7, Mode(models.KindRSOReport))
	sess.Medical = &MedicalDraft{Kind: models.KindRSOReport, Name: "CPL TAN", Awaiting: AwaitSymptoms}
	sess.Pending = []models.PendingReport{{Kind: models.KindRSOReport, Name: "CPL TAN"}}
	sess.CadetNames = []string{"CPL TAN", "REC LEE"}
	sess.InstructorNames = []string{"LTA GOH"}

	reset := s.ResetEntry(7)
	if reset.Medical != nil {
		t.Error("per-record draft should be cleared")
	}
	if len(reset.Pending) != 1 || reset.Pending[0].Name != "CPL TAN" {
		t.Error("pending reports must survive the reset")
	}
	if len(reset.CadetNames) != 2 || len(reset.InstructorNames) != 1 {
		t.Error("cached name lists must survive the reset")
	}
	if reset.Mode != Mode(models.KindRSOReport) {
		t.Errorf("mode must survive the reset, got %s", reset.Mode)
	}
}

func TestResetEntryWithoutSession(t *testing.T) {
	s := NewStore()
	if got := s.ResetEntry(99); got != nil {
		t.Error("resetting a missing session should return nil")
	}
}

func TestClear(t *testing.T) {
	s := NewStore()
	s.Begin(3, ModeParade)
	s.Clear(3)
	if s.Get(3) != nil {
		t.Error("cleared session should be gone")
	}
	if s.Len() != 0 {
		t.Errorf("expected 0 sessions, got %d", s.Len())
	}
}

func TestEvictIdle(t *testing.T) {
	s := NewStore()
	current := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }

	s.Begin(1, ModeMovement)
	current = current.Add(10 * time.Minute)
	s.Begin(2, ModeSFT)
	current = current.Add(25 * time.Minute)

	evicted := s.EvictIdle(30 * time.Minute)
	if len(evicted) != 1 || evicted[0] != 1 {
		t.Errorf("expected only user 1 evicted, got %v", evicted)
	}
	if s.Get(1) != nil {
		t.Error("user 1 session should be gone")
	}
	if s.Get(2) == nil {
		t.Error("user 2 session should survive")
	}
}

func TestTouchKeepsSessionAlive(t *testing.T) {
	s := NewStore()
	current := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }

	s.Begin(1, ModeMovement)
	current = current.Add(20 * time.Minute)
	s.Touch(1)
	current = current.Add(20 * time.Minute)

	if evicted := s.EvictIdle(30 * time.Minute); len(evicted) != 0 {
		t.Errorf("touched session should survive, evicted %v", evicted)
	}
}

func TestModeKindRoundTrip(t *testing.T) {
	m := ModeForKind(models.KindRSIUpdate)
	if KindForMode(m) != models.KindRSIUpdate {
		t.Errorf("round trip failed for %s", m)
	}
	if KindForMode(ModeMovement) != "" {
		t.Error("non-medical modes should yield no kind")
	}
}
