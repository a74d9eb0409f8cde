// Package store provides storage backends for Telebot.
//
// This file implements the in-memory store used by tests and available
// for single-process deployments without a database.
package store

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/weelysontheDISease/Telebot-V1/internal/models"
)

// Compile-time check that InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)

// InMemoryStore keeps all records in process memory.
type InMemoryStore struct {
	mu sync.Mutex

	users      map[int64]models.User
	nextUserID int64

	events      []models.MedicalEvent
	nextEventID int64

	statuses     []models.MedicalStatus
	nextStatusID int64

	movements      []models.MovementLog
	nextMovementID int64

	window      *models.SFTWindow
	submissions []models.SFTSubmission

	relays []Relay
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{users: make(map[int64]models.User)}
}

// ---------- Users ----------

func (s *InMemoryStore) GetUserByPlatformID(platformID int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.PlatformID == platformID {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) GetUserByUsername(username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username != "" && strings.EqualFold(u.Username, username) {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) listNamesByRole(role string) []string {
	var names []string
	for _, u := range s.users {
		if u.Role == role && u.IsActive {
			names = append(names, u.DisplayName())
		}
	}
	sort.Strings(names)
	return names
}

func (s *InMemoryStore) ListCadetNames() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listNamesByRole(models.RoleCadet), nil
}

func (s *InMemoryStore) ListInstructorNames() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listNamesByRole(models.RoleInstructor), nil
}

func (s *InMemoryStore) ListAdminPlatformIDs() ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for _, u := range s.users {
		if u.IsAdmin && u.IsActive && u.PlatformID != 0 {
			ids = append(ids, u.PlatformID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *InMemoryStore) CountActiveCadets() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.users {
		if u.Role == models.RoleCadet && u.IsActive {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) UpsertUser(u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, existing := range s.users {
		samePlatform := u.PlatformID != 0 && existing.PlatformID == u.PlatformID
		sameUsername := u.Username != "" && strings.EqualFold(existing.Username, u.Username)
		if samePlatform || sameUsername {
			u.ID = id
			u.CreatedAt = existing.CreatedAt
			u.UpdatedAt = now
			s.users[id] = u
			return nil
		}
	}

	s.nextUserID++
	u.ID = s.nextUserID
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = u
	return nil
}

func (s *InMemoryStore) DeleteAllUsers() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[int64]models.User)
	return nil
}

// ---------- Medical ----------

func (s *InMemoryStore) CreateMedicalEvent(e models.MedicalEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createEventLocked(e), nil
}

func (s *InMemoryStore) createEventLocked(e models.MedicalEvent) int64 {
	s.nextEventID++
	e.ID = s.nextEventID
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	s.events = append(s.events, e)
	return e.ID
}

func (s *InMemoryStore) UpdateMedicalEvent(e models.MedicalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateEventLocked(e)
}

func (s *InMemoryStore) updateEventLocked(e models.MedicalEvent) error {
	for i := range s.events {
		if s.events[i].ID == e.ID {
			e.CreatedAt = s.events[i].CreatedAt
			e.UpdatedAt = time.Now()
			s.events[i] = e
			return nil
		}
	}
	return fmt.Errorf("update event %d: %w", e.ID, models.ErrRecordNotFound)
}

func (s *InMemoryStore) EventsBySubject(name, eventType string) ([]models.MedicalEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MedicalEvent
	for _, e := range s.events {
		if strings.EqualFold(e.SubjectName, name) && e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListMedicalEvents() ([]models.MedicalEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.MedicalEvent, len(s.events))
	copy(out, s.events)
	return out, nil
}

func (s *InMemoryStore) CreateMedicalStatus(st models.MedicalStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createStatusLocked(st), nil
}

func (s *InMemoryStore) createStatusLocked(st models.MedicalStatus) int64 {
	s.nextStatusID++
	st.ID = s.nextStatusID
	st.CreatedAt = time.Now()
	s.statuses = append(s.statuses, st)
	return st.ID
}

func (s *InMemoryStore) ActiveMedicalStatuses(on time.Time) ([]models.MedicalStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	day := truncateToDay(on)
	var out []models.MedicalStatus
	for _, st := range s.statuses {
		// Day-inclusive: a status is active on its start and end days
		// even when the stored dates carry a time of day.
		if !truncateToDay(st.StartDate).After(day) && !truncateToDay(st.EndDate).Before(day) {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *InMemoryStore) DeleteExpiredMedical(today time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := truncateToDay(today)

	kept := s.statuses[:0]
	for _, st := range s.statuses {
		if !st.EndDate.Before(day) {
			kept = append(kept, st)
		}
	}
	s.statuses = kept

	hasStatus := make(map[int64]bool, len(s.statuses))
	for _, st := range s.statuses {
		hasStatus[st.EventID] = true
	}

	keptEvents := s.events[:0]
	for _, e := range s.events {
		expired := false
		switch e.EventType {
		case models.EventTypeMA:
			expired = e.CreatedAt.Before(day)
		default:
			expired = e.Diagnosed() && !hasStatus[e.ID]
		}
		if !expired {
			keptEvents = append(keptEvents, e)
		}
	}
	s.events = keptEvents
	return nil
}

func (s *InMemoryStore) DeleteAllMedical() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.statuses = nil
	return nil
}

// PersistPendingReports applies the batch all-or-nothing: updates are
// verified against live records before anything is written.
func (s *InMemoryStore) PersistPendingReports(reports []models.PendingReport, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range reports {
		if r.Kind.IsUpdate() && s.findEventLocked(r.RecordID) == nil {
			return fmt.Errorf("persist batch: record %d: %w", r.RecordID, models.ErrRecordNotFound)
		}
	}

	for _, r := range reports {
		if err := s.applyReportLocked(r, now); err != nil {
			return err
		}
	}
	slog.Debug("InMemoryStore persisted batch", "count", len(reports))
	return nil
}

func (s *InMemoryStore) findEventLocked(id int64) *models.MedicalEvent {
	for i := range s.events {
		if s.events[i].ID == id {
			return &s.events[i]
		}
	}
	return nil
}

func (s *InMemoryStore) applyReportLocked(r models.PendingReport, now time.Time) error {
	switch {
	case r.Kind.IsNewReport():
		s.createEventLocked(eventFromReport(r))
		return nil
	case r.Kind == models.KindMAUpdate:
		e := *s.findEventLocked(r.RecordID)
		e.Appointment = r.Appointment
		e.Location = r.Location
		e.ApptDate = r.ApptDate
		e.ApptTime = r.ApptTime
		e.EndorsedBy = r.Instructor
		return s.updateEventLocked(e)
	default: // RSO/RSI update
		e := *s.findEventLocked(r.RecordID)
		e.Diagnosis = r.Diagnosis
		e.Status = r.Status
		if err := s.updateEventLocked(e); err != nil {
			return err
		}
		if st, ok := statusFromReport(r, e, now); ok {
			s.createStatusLocked(st)
		}
		return nil
	}
}

// ---------- Movement ----------

func (s *InMemoryStore) LogMovement(m models.MovementLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMovementID++
	m.ID = s.nextMovementID
	m.CreatedAt = time.Now()
	s.movements = append(s.movements, m)
	return nil
}

// ---------- SFT ----------

func (s *InMemoryStore) SFTWindow() (*models.SFTWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.window == nil {
		return nil, nil
	}
	cp := *s.window
	return &cp, nil
}

func (s *InMemoryStore) SetSFTWindow(w models.SFTWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A new window invalidates every prior submission.
	s.window = &w
	s.submissions = nil
	slog.Info("InMemoryStore SFT window set, submissions cleared", "date", w.Date, "start", w.Start, "end", w.End)
	return nil
}

func (s *InMemoryStore) AddSFTSubmission(sub models.SFTSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.window == nil {
		return models.ErrNoActiveWindow
	}
	if !s.window.Contains(sub.Start, sub.End) {
		return fmt.Errorf("%w: %s-%s not in %s-%s", models.ErrOutsideWindow, sub.Start, sub.End, s.window.Start, s.window.End)
	}

	kept := s.submissions[:0]
	for _, existing := range s.submissions {
		if existing.UserID != sub.UserID {
			kept = append(kept, existing)
		}
	}
	s.submissions = append(kept, sub)
	return nil
}

func (s *InMemoryStore) RemoveSFTSubmission(userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.submissions[:0]
	removed := false
	for _, sub := range s.submissions {
		if sub.UserID == userID {
			removed = true
			continue
		}
		kept = append(kept, sub)
	}
	s.submissions = kept
	return removed, nil
}

func (s *InMemoryStore) SFTSubmissions(date string) ([]models.SFTSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SFTSubmission
	for _, sub := range s.submissions {
		if sub.Date == date {
			out = append(out, sub)
		}
	}
	return out, nil
}

// ---------- Relay outbox ----------

func (s *InMemoryStore) EnqueueRelay(dest models.Destination, body string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	r := Relay{
		ID:        uuid.NewString(),
		Dest:      dest,
		Body:      body,
		Status:    RelayStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.relays = append(s.relays, r)
	return r.ID, nil
}

func (s *InMemoryStore) ClaimDueRelays(now time.Time, limit int) ([]Relay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var claimed []Relay
	for i := range s.relays {
		if len(claimed) >= limit {
			break
		}
		r := &s.relays[i]
		if r.Status != RelayStatusQueued {
			continue
		}
		if r.NextAttemptAt != nil && r.NextAttemptAt.After(now) {
			continue
		}
		r.Status = RelayStatusSending
		locked := now
		r.LockedAt = &locked
		r.UpdatedAt = now
		claimed = append(claimed, *r)
	}
	return claimed, nil
}

func (s *InMemoryStore) MarkRelaySent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.relays {
		if s.relays[i].ID == id {
			s.relays[i].Status = RelayStatusSent
			s.relays[i].LockedAt = nil
			s.relays[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("mark relay sent %s: %w", id, models.ErrRecordNotFound)
}

func (s *InMemoryStore) FailRelay(id string, errMsg string, nextAttemptAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.relays {
		if s.relays[i].ID == id {
			r := &s.relays[i]
			r.Status = RelayStatusQueued
			r.Attempts++
			r.LastError = errMsg
			r.NextAttemptAt = &nextAttemptAt
			r.LockedAt = nil
			r.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("fail relay %s: %w", id, models.ErrRecordNotFound)
}

func (s *InMemoryStore) RequeueStaleRelays(staleBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.relays {
		r := &s.relays[i]
		if r.Status == RelayStatusSending && r.LockedAt != nil && r.LockedAt.Before(staleBefore) {
			r.Status = RelayStatusQueued
			r.LockedAt = nil
			r.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

// Relays returns all outbox rows (for tests).
func (s *InMemoryStore) Relays() []Relay {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Relay, len(s.relays))
	copy(out, s.relays)
	return out
}

// Movements returns all movement logs (for tests).
func (s *InMemoryStore) Movements() []models.MovementLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.MovementLog, len(s.movements))
	copy(out, s.movements)
	return out
}

// Statuses returns all medical statuses (for tests).
func (s *InMemoryStore) Statuses() []models.MedicalStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.MedicalStatus, len(s.statuses))
	copy(out, s.statuses)
	return out
}

func (s *InMemoryStore) Close() error { return nil }
