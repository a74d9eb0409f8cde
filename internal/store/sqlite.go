// Package store provides storage backends for Telebot.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/weelysontheDISease/Telebot-V1/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	slog.Debug("Opening SQLite database connection")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// ---------- Users ----------

const userColumns = `id, platform_id, username, full_name, rank, role, is_admin, is_active, created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.PlatformID, &u.Username, &u.FullName, &u.Rank, &u.Role, &u.IsAdmin, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) GetUserByPlatformID(platformID int64) (*models.User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE platform_id = ?`, platformID)
	u, err := scanUser(row)
	if err != nil {
		slog.Error("SQLiteStore GetUserByPlatformID failed", "error", err, "platformID", platformID)
		return nil, fmt.Errorf("failed to query user by platform id: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByUsername(username string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = ? COLLATE NOCASE`, username)
	u, err := scanUser(row)
	if err != nil {
		slog.Error("SQLiteStore GetUserByUsername failed", "error", err, "username", username)
		return nil, fmt.Errorf("failed to query user by username: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) listNames(role string) ([]string, error) {
	rows, err := s.db.Query(`SELECT rank, full_name FROM users WHERE role = ? AND is_active = 1 ORDER BY full_name`, role)
	if err != nil {
		slog.Error("SQLiteStore listNames query failed", "error", err, "role", role)
		return nil, fmt.Errorf("failed to query %s names: %w", role, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.Rank, &u.FullName); err != nil {
			slog.Error("SQLiteStore listNames scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan name row: %w", err)
		}
		names = append(names, u.DisplayName())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate name rows: %w", err)
	}
	return names, nil
}

func (s *SQLiteStore) ListCadetNames() ([]string, error) {
	return s.listNames(models.RoleCadet)
}

func (s *SQLiteStore) ListInstructorNames() ([]string, error) {
	return s.listNames(models.RoleInstructor)
}

func (s *SQLiteStore) ListAdminPlatformIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT platform_id FROM users WHERE is_admin = 1 AND is_active = 1 AND platform_id != 0 ORDER BY platform_id`)
	if err != nil {
		slog.Error("SQLiteStore ListAdminPlatformIDs query failed", "error", err)
		return nil, fmt.Errorf("failed to query admin ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan admin id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) CountActiveCadets() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE role = ? AND is_active = 1`, models.RoleCadet).Scan(&n)
	if err != nil {
		slog.Error("SQLiteStore CountActiveCadets failed", "error", err)
		return 0, fmt.Errorf("failed to count cadets: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) UpsertUser(u models.User) error {
	res, err := s.db.Exec(`
		UPDATE users SET platform_id = ?, username = ?, full_name = ?, rank = ?, role = ?, is_admin = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE (platform_id != 0 AND platform_id = ?) OR (username != '' AND username = ? COLLATE NOCASE)`,
		u.PlatformID, u.Username, u.FullName, u.Rank, u.Role, u.IsAdmin, u.IsActive,
		u.PlatformID, u.Username)
	if err != nil {
		slog.Error("SQLiteStore UpsertUser update failed", "error", err, "fullName", u.FullName)
		return fmt.Errorf("failed to update user %s: %w", u.FullName, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Debug("SQLiteStore UpsertUser updated", "fullName", u.FullName)
		return nil
	}

	_, err = s.db.Exec(`
		INSERT INTO users (platform_id, username, full_name, rank, role, is_admin, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.PlatformID, u.Username, u.FullName, u.Rank, u.Role, u.IsAdmin, u.IsActive)
	if err != nil {
		slog.Error("SQLiteStore UpsertUser insert failed", "error", err, "fullName", u.FullName)
		return fmt.Errorf("failed to insert user %s: %w", u.FullName, err)
	}
	slog.Debug("SQLiteStore UpsertUser inserted", "fullName", u.FullName)
	return nil
}

func (s *SQLiteStore) DeleteAllUsers() error {
	_, err := s.db.Exec(`DELETE FROM users`)
	if err != nil {
		slog.Error("SQLiteStore DeleteAllUsers failed", "error", err)
		return fmt.Errorf("failed to delete users: %w", err)
	}
	return nil
}

// ---------- Medical ----------

const eventColumns = `id, subject_name, event_type, symptoms, diagnosis, status, appointment, location, appt_date, appt_time, endorsed_by, created_at, updated_at`

func scanEvent(scan func(...any) error) (models.MedicalEvent, error) {
	var e models.MedicalEvent
	err := scan(&e.ID, &e.SubjectName, &e.EventType, &e.Symptoms, &e.Diagnosis, &e.Status, &e.Appointment, &e.Location, &e.ApptDate, &e.ApptTime, &e.EndorsedBy, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertEvent(db execer, e models.MedicalEvent) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO medical_events (subject_name, event_type, symptoms, diagnosis, status, appointment, location, appt_date, appt_time, endorsed_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SubjectName, e.EventType, e.Symptoms, e.Diagnosis, e.Status, e.Appointment, e.Location, e.ApptDate, e.ApptTime, e.EndorsedBy)
	if err != nil {
		return 0, fmt.Errorf("failed to insert medical event for %s: %w", e.SubjectName, err)
	}
	return res.LastInsertId()
}

func updateEvent(db execer, e models.MedicalEvent) error {
	res, err := db.Exec(`
		UPDATE medical_events SET symptoms = ?, diagnosis = ?, status = ?, appointment = ?, location = ?, appt_date = ?, appt_time = ?, endorsed_by = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		e.Symptoms, e.Diagnosis, e.Status, e.Appointment, e.Location, e.ApptDate, e.ApptTime, e.EndorsedBy, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update medical event %d: %w", e.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update medical event %d: %w", e.ID, models.ErrRecordNotFound)
	}
	return nil
}

func insertStatus(db execer, st models.MedicalStatus) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO medical_statuses (event_id, subject_name, status_type, description, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		st.EventID, st.SubjectName, st.StatusType, st.Description, st.StartDate, st.EndDate)
	if err != nil {
		return 0, fmt.Errorf("failed to insert medical status for %s: %w", st.SubjectName, err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) CreateMedicalEvent(e models.MedicalEvent) (int64, error) {
	id, err := insertEvent(s.db, e)
	if err != nil {
		slog.Error("SQLiteStore CreateMedicalEvent failed", "error", err, "subject", e.SubjectName)
		return 0, err
	}
	slog.Debug("SQLiteStore CreateMedicalEvent succeeded", "id", id, "subject", e.SubjectName, "type", e.EventType)
	return id, nil
}

func (s *SQLiteStore) UpdateMedicalEvent(e models.MedicalEvent) error {
	if err := updateEvent(s.db, e); err != nil {
		slog.Error("SQLiteStore UpdateMedicalEvent failed", "error", err, "id", e.ID)
		return err
	}
	slog.Debug("SQLiteStore UpdateMedicalEvent succeeded", "id", e.ID)
	return nil
}

func (s *SQLiteStore) queryEvents(query string, args ...any) ([]models.MedicalEvent, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore queryEvents failed", "error", err)
		return nil, fmt.Errorf("failed to query medical events: %w", err)
	}
	defer rows.Close()

	var events []models.MedicalEvent
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			slog.Error("SQLiteStore queryEvents scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan medical event row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) EventsBySubject(name, eventType string) ([]models.MedicalEvent, error) {
	return s.queryEvents(`SELECT `+eventColumns+` FROM medical_events WHERE subject_name = ? COLLATE NOCASE AND event_type = ?`, name, eventType)
}

func (s *SQLiteStore) ListMedicalEvents() ([]models.MedicalEvent, error) {
	return s.queryEvents(`SELECT ` + eventColumns + ` FROM medical_events ORDER BY id`)
}

func (s *SQLiteStore) CreateMedicalStatus(st models.MedicalStatus) (int64, error) {
	id, err := insertStatus(s.db, st)
	if err != nil {
		slog.Error("SQLiteStore CreateMedicalStatus failed", "error", err, "subject", st.SubjectName)
		return 0, err
	}
	return id, nil
}

func (s *SQLiteStore) ActiveMedicalStatuses(on time.Time) ([]models.MedicalStatus, error) {
	day := truncateToDay(on)
	nextDay := day.AddDate(0, 0, 1)
	// Day-inclusive bounds: stored dates may carry a time of day.
	rows, err := s.db.Query(`
		SELECT id, event_id, subject_name, status_type, description, start_date, end_date, created_at
		FROM medical_statuses WHERE start_date < ? AND end_date >= ? ORDER BY id`, nextDay, day)
	if err != nil {
		slog.Error("SQLiteStore ActiveMedicalStatuses query failed", "error", err)
		return nil, fmt.Errorf("failed to query medical statuses: %w", err)
	}
	defer rows.Close()

	var statuses []models.MedicalStatus
	for rows.Next() {
		var st models.MedicalStatus
		if err := rows.Scan(&st.ID, &st.EventID, &st.SubjectName, &st.StatusType, &st.Description, &st.StartDate, &st.EndDate, &st.CreatedAt); err != nil {
			slog.Error("SQLiteStore ActiveMedicalStatuses scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan medical status row: %w", err)
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

func (s *SQLiteStore) DeleteExpiredMedical(today time.Time) error {
	day := truncateToDay(today)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin cleanup transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM medical_statuses WHERE end_date < ?`, day); err != nil {
		slog.Error("SQLiteStore DeleteExpiredMedical statuses failed", "error", err)
		return fmt.Errorf("failed to delete expired statuses: %w", err)
	}
	if _, err := tx.Exec(`
		DELETE FROM medical_events
		WHERE event_type != ? AND diagnosis != '' AND id NOT IN (SELECT event_id FROM medical_statuses)`, models.EventTypeMA); err != nil {
		slog.Error("SQLiteStore DeleteExpiredMedical events failed", "error", err)
		return fmt.Errorf("failed to delete resolved events: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM medical_events WHERE event_type = ? AND created_at < ?`, models.EventTypeMA, day); err != nil {
		slog.Error("SQLiteStore DeleteExpiredMedical appointments failed", "error", err)
		return fmt.Errorf("failed to delete past appointments: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cleanup transaction: %w", err)
	}
	slog.Debug("SQLiteStore DeleteExpiredMedical succeeded")
	return nil
}

func (s *SQLiteStore) DeleteAllMedical() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM medical_statuses`); err != nil {
		return fmt.Errorf("failed to delete medical statuses: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM medical_events`); err != nil {
		return fmt.Errorf("failed to delete medical events: %w", err)
	}
	return tx.Commit()
}

// PersistPendingReports applies the whole batch inside one transaction.
func (s *SQLiteStore) PersistPendingReports(reports []models.PendingReport, now time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("SQLiteStore PersistPendingReports begin failed", "error", err)
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range reports {
		switch {
		case r.Kind.IsNewReport():
			if _, err := insertEvent(tx, eventFromReport(r)); err != nil {
				slog.Error("SQLiteStore PersistPendingReports insert failed", "error", err, "subject", r.Name)
				return err
			}
		default:
			e, err := scanEvent(tx.QueryRow(`SELECT `+eventColumns+` FROM medical_events WHERE id = ?`, r.RecordID).Scan)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("persist batch: record %d: %w", r.RecordID, models.ErrRecordNotFound)
			}
			if err != nil {
				return fmt.Errorf("failed to load medical event %d: %w", r.RecordID, err)
			}
			if r.Kind == models.KindMAUpdate {
				e.Appointment = r.Appointment
				e.Location = r.Location
				e.ApptDate = r.ApptDate
				e.ApptTime = r.ApptTime
				e.EndorsedBy = r.Instructor
			} else {
				e.Diagnosis = r.Diagnosis
				e.Status = r.Status
			}
			if err := updateEvent(tx, e); err != nil {
				slog.Error("SQLiteStore PersistPendingReports update failed", "error", err, "id", r.RecordID)
				return err
			}
			if st, ok := statusFromReport(r, e, now); ok {
				if _, err := insertStatus(tx, st); err != nil {
					slog.Error("SQLiteStore PersistPendingReports status failed", "error", err, "subject", r.Name)
					return err
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("SQLiteStore PersistPendingReports commit failed", "error", err)
		return fmt.Errorf("failed to commit batch transaction: %w", err)
	}
	slog.Debug("SQLiteStore PersistPendingReports succeeded", "count", len(reports))
	return nil
}

// ---------- Movement ----------

func (s *SQLiteStore) LogMovement(m models.MovementLog) error {
	_, err := s.db.Exec(`
		INSERT INTO movement_logs (names, from_location, to_location, move_time, created_by)
		VALUES (?, ?, ?, ?, ?)`,
		m.Names, m.FromLocation, m.ToLocation, m.Time, m.CreatedBy)
	if err != nil {
		slog.Error("SQLiteStore LogMovement failed", "error", err)
		return fmt.Errorf("failed to insert movement log: %w", err)
	}
	slog.Debug("SQLiteStore LogMovement succeeded", "from", m.FromLocation, "to", m.ToLocation)
	return nil
}

// ---------- SFT ----------

func (s *SQLiteStore) SFTWindow() (*models.SFTWindow, error) {
	var w models.SFTWindow
	err := s.db.QueryRow(`SELECT window_date, start_time, end_time FROM sft_window WHERE id = 1`).Scan(&w.Date, &w.Start, &w.End)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore SFTWindow failed", "error", err)
		return nil, fmt.Errorf("failed to query SFT window: %w", err)
	}
	return &w, nil
}

func (s *SQLiteStore) SetSFTWindow(w models.SFTWindow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin window transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO sft_window (id, window_date, start_time, end_time) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET window_date = excluded.window_date, start_time = excluded.start_time, end_time = excluded.end_time`,
		w.Date, w.Start, w.End); err != nil {
		slog.Error("SQLiteStore SetSFTWindow failed", "error", err)
		return fmt.Errorf("failed to set SFT window: %w", err)
	}
	// A new window invalidates every prior submission.
	if _, err := tx.Exec(`DELETE FROM sft_submissions`); err != nil {
		return fmt.Errorf("failed to clear SFT submissions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit window transaction: %w", err)
	}
	slog.Info("SQLiteStore SFT window set, submissions cleared", "date", w.Date, "start", w.Start, "end", w.End)
	return nil
}

func (s *SQLiteStore) AddSFTSubmission(sub models.SFTSubmission) error {
	w, err := s.SFTWindow()
	if err != nil {
		return err
	}
	if w == nil {
		return models.ErrNoActiveWindow
	}
	if !w.Contains(sub.Start, sub.End) {
		return fmt.Errorf("%w: %s-%s not in %s-%s", models.ErrOutsideWindow, sub.Start, sub.End, w.Start, w.End)
	}

	_, err = s.db.Exec(`
		INSERT INTO sft_submissions (user_id, user_name, activity, location, start_time, end_time, submission_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			user_name = excluded.user_name, activity = excluded.activity, location = excluded.location,
			start_time = excluded.start_time, end_time = excluded.end_time, submission_date = excluded.submission_date`,
		sub.UserID, sub.UserName, sub.Activity, sub.Location, sub.Start, sub.End, sub.Date)
	if err != nil {
		slog.Error("SQLiteStore AddSFTSubmission failed", "error", err, "userID", sub.UserID)
		return fmt.Errorf("failed to insert SFT submission: %w", err)
	}
	slog.Debug("SQLiteStore AddSFTSubmission succeeded", "userID", sub.UserID, "activity", sub.Activity)
	return nil
}

func (s *SQLiteStore) RemoveSFTSubmission(userID int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM sft_submissions WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore RemoveSFTSubmission failed", "error", err, "userID", userID)
		return false, fmt.Errorf("failed to delete SFT submission: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) SFTSubmissions(date string) ([]models.SFTSubmission, error) {
	rows, err := s.db.Query(`
		SELECT user_id, user_name, activity, location, start_time, end_time, submission_date
		FROM sft_submissions WHERE submission_date = ? ORDER BY user_name`, date)
	if err != nil {
		slog.Error("SQLiteStore SFTSubmissions query failed", "error", err)
		return nil, fmt.Errorf("failed to query SFT submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.SFTSubmission
	for rows.Next() {
		var sub models.SFTSubmission
		if err := rows.Scan(&sub.UserID, &sub.UserName, &sub.Activity, &sub.Location, &sub.Start, &sub.End, &sub.Date); err != nil {
			slog.Error("SQLiteStore SFTSubmissions scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan SFT submission row: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ---------- Relay outbox ----------

func (s *SQLiteStore) EnqueueRelay(dest models.Destination, body string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO relay_outbox (id, dest, body, status) VALUES (?, ?, ?, ?)`,
		id, string(dest), body, string(RelayStatusQueued))
	if err != nil {
		slog.Error("SQLiteStore EnqueueRelay failed", "error", err, "dest", dest)
		return "", fmt.Errorf("failed to enqueue relay: %w", err)
	}
	slog.Debug("SQLiteStore EnqueueRelay succeeded", "id", id, "dest", dest)
	return id, nil
}

func (s *SQLiteStore) ClaimDueRelays(now time.Time, limit int) ([]Relay, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id, dest, body, status, attempts, next_attempt_at, locked_at, last_error, created_at, updated_at
		FROM relay_outbox
		WHERE status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		ORDER BY created_at LIMIT ?`,
		string(RelayStatusQueued), now, limit)
	if err != nil {
		slog.Error("SQLiteStore ClaimDueRelays query failed", "error", err)
		return nil, fmt.Errorf("failed to query due relays: %w", err)
	}

	var relays []Relay
	for rows.Next() {
		var r Relay
		var nextAttempt, lockedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.Dest, &r.Body, &r.Status, &r.Attempts, &nextAttempt, &lockedAt, &r.LastError, &r.CreatedAt, &r.UpdatedAt); err != nil {
			rows.Close()
			slog.Error("SQLiteStore ClaimDueRelays scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan relay row: %w", err)
		}
		if nextAttempt.Valid {
			r.NextAttemptAt = &nextAttempt.Time
		}
		if lockedAt.Valid {
			r.LockedAt = &lockedAt.Time
		}
		relays = append(relays, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate relay rows: %w", err)
	}
	rows.Close()

	for i := range relays {
		if _, err := tx.Exec(`UPDATE relay_outbox SET status = ?, locked_at = ?, updated_at = ? WHERE id = ?`,
			string(RelayStatusSending), now, now, relays[i].ID); err != nil {
			slog.Error("SQLiteStore ClaimDueRelays lock failed", "error", err, "id", relays[i].ID)
			return nil, fmt.Errorf("failed to lock relay %s: %w", relays[i].ID, err)
		}
		relays[i].Status = RelayStatusSending
		locked := now
		relays[i].LockedAt = &locked
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim transaction: %w", err)
	}
	return relays, nil
}

func (s *SQLiteStore) MarkRelaySent(id string) error {
	_, err := s.db.Exec(`UPDATE relay_outbox SET status = ?, locked_at = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(RelayStatusSent), id)
	if err != nil {
		slog.Error("SQLiteStore MarkRelaySent failed", "error", err, "id", id)
		return fmt.Errorf("failed to mark relay sent: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FailRelay(id string, errMsg string, nextAttemptAt time.Time) error {
	_, err := s.db.Exec(`
		UPDATE relay_outbox SET status = ?, attempts = attempts + 1, last_error = ?, next_attempt_at = ?, locked_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		string(RelayStatusQueued), errMsg, nextAttemptAt, id)
	if err != nil {
		slog.Error("SQLiteStore FailRelay failed", "error", err, "id", id)
		return fmt.Errorf("failed to record relay failure: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RequeueStaleRelays(staleBefore time.Time) (int, error) {
	res, err := s.db.Exec(`
		UPDATE relay_outbox SET status = ?, locked_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE status = ? AND locked_at < ?`,
		string(RelayStatusQueued), string(RelayStatusSending), staleBefore)
	if err != nil {
		slog.Error("SQLiteStore RequeueStaleRelays failed", "error", err)
		return 0, fmt.Errorf("failed to requeue stale relays: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		slog.Info("SQLiteStore requeued stale relays", "count", n)
	}
	return int(n), nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
