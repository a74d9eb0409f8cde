// Package session provides the per-user conversation scratchpad the flow
// engine reads and writes.
//
// Sessions are in-memory and keyed strictly by user identity. The map is
// mutex-guarded for cross-user safety; a single user's events are
// delivered serially by the platform, so per-session locking is not
// needed.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/weelysontheDISease/Telebot-V1/internal/models"
)

// Mode tags the active workflow for a session. At most one mode is
// active per user at a time.
type Mode string

const (
	ModeNone     Mode = ""
	ModeMovement Mode = "MOVEMENT"
	ModeSFT      Mode = "SFT"
	ModePTAdmin  Mode = "PT_ADMIN"
	ModeParade   Mode = "PARADE_STATE"
	ModeImport   Mode = "IMPORT"
)

// ModeForKind returns the session mode for a medical report kind.
func ModeForKind(k models.ReportKind) Mode {
	return Mode(k)
}

// KindForMode returns the medical report kind for a session mode, or ""
// when the mode is not a medical workflow.
func KindForMode(m Mode) models.ReportKind {
	k := models.ReportKind(m)
	if models.IsValidReportKind(k) {
		return k
	}
	return ""
}

// MovementDraft holds the movement flow's in-progress fields.
type MovementDraft struct {
	Selected     map[string]bool
	From         string
	To           string
	Time         string // HHMM
	AwaitingTime bool
	Preview      string
}

// SFTDraft holds the cadet SFT submission flow's in-progress fields.
type SFTDraft struct {
	Activity string
	Location string
	Start    string // HHMM
	End      string // HHMM
}

// Admin states for the PT admin sub-flow.
const (
	AdminStateMenu      = "menu"
	AdminStateTimeRange = "awaiting_time_range"
)

// AdminDraft holds the PT admin panel's in-progress fields.
type AdminDraft struct {
	State          string
	Instructor     string
	Salutation     string
	PendingSummary string
}

// MedicalDraft holds one medical report/update cycle's in-progress
// fields. Awaiting names the free-text input the engine expects next;
// empty means no text is expected.
type MedicalDraft struct {
	Kind       models.ReportKind
	Awaiting   string
	Name       string
	Symptoms   string
	Diagnosis  string
	Status     string
	StatusType string
	Days       int
	StartDate  string // DDMMYY
	EndDate    string // DDMMYY
	RecordID   int64
	// MA fields.
	Appointment string
	Location    string
	ApptDate    string // DDMMYY
	ApptTime    string // HHMM
	Instructor  string
}

// Awaiting values for MedicalDraft.
const (
	AwaitSymptoms    = "symptoms"
	AwaitDiagnosis   = "diagnosis"
	AwaitCustomDays  = "custom_days"
	AwaitAppointment = "appointment"
	AwaitLocation    = "location"
	AwaitApptDate    = "appt_date"
	AwaitApptTime    = "appt_time"
)

// ParadeDraft holds the parade-state flow's in-progress fields.
type ParadeDraft struct {
	AwaitingCount bool
	Preview       string
}

// ImportDraft gates the next document event to the import handler.
type ImportDraft struct {
	ClearFirst       bool
	AwaitingDocument bool
}

// Session is the ephemeral per-user scratchpad. Exclusively owned by the
// flow engine for the lifetime of one workflow instance.
type Session struct {
	UserID   int64
	Mode     Mode
	Movement *MovementDraft
	SFT      *SFTDraft
	Admin    *AdminDraft
	Medical  *MedicalDraft
	Parade   *ParadeDraft
	Import   *ImportDraft

	// Batch accumulator, preserved across record-to-record resets.
	Pending        []models.PendingReport
	BatchSummary   string
	BatchPersisted bool

	// Cached name lists, preserved across record-to-record resets.
	CadetNames      []string
	InstructorNames []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store holds all live sessions, keyed by user identity.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	now      func() time.Time
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

// Get returns the live session for userID, or nil when none exists.
func (s *Store) Get(userID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID]
}

// Begin clears any prior session for userID and starts a fresh one in
// the given mode.
func (s *Store) Begin(userID int64, mode Mode) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := &Session{
		UserID:    userID,
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[userID] = sess
	slog.Debug("Session started", "userID", userID, "mode", mode)
	return sess
}

// ResetEntry clears a session's per-record fields while preserving the
// batch accumulator, cached name lists, and mode, so the next cycle of
// the same flow starts clean.
func (s *Store) ResetEntry(userID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.sessions[userID]
	if old == nil {
		return nil
	}
	sess := &Session{
		UserID:          old.UserID,
		Mode:            old.Mode,
		Pending:         old.Pending,
		BatchSummary:    old.BatchSummary,
		BatchPersisted:  old.BatchPersisted,
		CadetNames:      old.CadetNames,
		InstructorNames: old.InstructorNames,
		CreatedAt:       old.CreatedAt,
		UpdatedAt:       s.now(),
	}
	s.sessions[userID] = sess
	slog.Debug("Session entry state reset", "userID", userID, "mode", sess.Mode, "pending", len(sess.Pending))
	return sess
}

// Clear destroys the session for userID.
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	slog.Debug("Session cleared", "userID", userID)
}

// Touch bumps the session's idle timestamp.
func (s *Store) Touch(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.sessions[userID]; sess != nil {
		sess.UpdatedAt = s.now()
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// EvictIdle removes sessions idle longer than ttl and returns the
// affected user IDs.
func (s *Store) EvictIdle(ttl time.Duration) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	var evicted []int64
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			evicted = append(evicted, id)
		}
	}
	if len(evicted) > 0 {
		slog.Info("Evicted idle sessions", "count", len(evicted), "ttl", ttl)
	}
	return evicted
}

// StartJanitor evicts idle sessions every interval until ctx is
// cancelled, invoking onEvict for each evicted user.
func (s *Store) StartJanitor(ctx context.Context, ttl, interval time.Duration, onEvict func(userID int64)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Debug("Session janitor stopping")
				return
			case <-ticker.C:
				for _, id := range s.EvictIdle(ttl) {
					if onEvict != nil {
						onEvict(id)
					}
				}
			}
		}
	}()
}
