// Package store provides storage backends for Telebot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/weelysontheDISease/Telebot-V1/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	slog.Debug("Opening Postgres database connection")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// ---------- Users ----------

func (s *PostgresStore) GetUserByPlatformID(platformID int64) (*models.User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE platform_id = $1`, platformID)
	u, err := scanUser(row)
	if err != nil {
		slog.Error("PostgresStore GetUserByPlatformID failed", "error", err, "platformID", platformID)
		return nil, fmt.Errorf("failed to query user by platform id: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByUsername(username string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username)
	u, err := scanUser(row)
	if err != nil {
		slog.Error("PostgresStore GetUserByUsername failed", "error", err, "username", username)
		return nil, fmt.Errorf("failed to query user by username: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) listNames(role string) ([]string, error) {
	rows, err := s.db.Query(`SELECT rank, full_name FROM users WHERE role = $1 AND is_active ORDER BY full_name`, role)
	if err != nil {
		slog.Error("PostgresStore listNames query failed", "error", err, "role", role)
		return nil, fmt.Errorf("failed to query %s names: %w", role, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.Rank, &u.FullName); err != nil {
			return nil, fmt.Errorf("failed to scan name row: %w", err)
		}
		names = append(names, u.DisplayName())
	}
	return names, rows.Err()
}

func (s *PostgresStore) ListCadetNames() ([]string, error) {
	return s.listNames(models.RoleCadet)
}

func (s *PostgresStore) ListInstructorNames() ([]string, error) {
	return s.listNames(models.RoleInstructor)
}

func (s *PostgresStore) ListAdminPlatformIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT platform_id FROM users WHERE is_admin AND is_active AND platform_id != 0 ORDER BY platform_id`)
	if err != nil {
		slog.Error("PostgresStore ListAdminPlatformIDs query failed", "error", err)
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

func (s *PostgresStore) CountActiveCadets() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE role = $1 AND is_active`, models.RoleCadet).Scan(&n)
	if err != nil {
		slog.Error("PostgresStore CountActiveCadets failed", "error", err)
		return 0, fmt.Errorf("failed to count cadets: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) UpsertUser(u models.User) error {
	res, err := s.db.Exec(`
		UPDATE users SET platform_id = $1, username = $2, full_name = $3, rank = $4, role = $5, is_admin = $6, is_active = $7, updated_at = NOW()
		WHERE (platform_id != 0 AND platform_id = $1) OR (username != '' AND LOWER(username) = LOWER($2))`,
		u.PlatformID, u.Username, u.FullName, u.Rank, u.Role, u.IsAdmin, u.IsActive)
	if err != nil {
		slog.Error("PostgresStore UpsertUser update failed", "error", err, "fullName", u.FullName)
		return fmt.Errorf("failed to update user %s: %w", u.FullName, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Debug("PostgresStore UpsertUser updated", "fullName", u.FullName)
		return nil
	}

	_, err = s.db.Exec(`
		INSERT INTO users (platform_id, username, full_name, rank, role, is_admin, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.PlatformID, u.Username, u.FullName, u.Rank, u.Role, u.IsAdmin, u.IsActive)
	if err != nil {
		slog.Error("PostgresStore UpsertUser insert failed", "error", err, "fullName", u.FullName)
		return fmt.Errorf("failed to insert user %s: %w", u.FullName, err)
	}
	slog.Debug("PostgresStore UpsertUser inserted", "fullName", u.FullName)
	return nil
}

func (s *PostgresStore) DeleteAllUsers() error {
	_, err := s.db.Exec(`DELETE FROM users`)
	if err != nil {
		slog.Error("PostgresStore DeleteAllUsers failed", "error", err)
		return fmt.Errorf("failed to delete users: %w", err)
	}
	return nil
}

// ---------- Medical ----------

type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

func pgInsertEvent(db rowQuerier, e models.MedicalEvent) (int64, error) {
	var id int64
	err := db.QueryRow(`
		INSERT INTO medical_events (subject_name, event_type, symptoms, diagnosis, status, appointment, location, appt_date, appt_time, endorsed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		e.SubjectName, e.EventType, e.Symptoms, e.Diagnosis, e.Status, e.Appointment, e.Location, e.ApptDate, e.ApptTime, e.EndorsedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert medical event for %s: %w", e.SubjectName, err)
	}
	return id, nil
}

func pgUpdateEvent(db rowQuerier, e models.MedicalEvent) error {
	res, err := db.Exec(`
		UPDATE medical_events SET symptoms = $1, diagnosis = $2, status = $3, appointment = $4, location = $5, appt_date = $6, appt_time = $7, endorsed_by = $8, updated_at = NOW()
		WHERE id = $9`,
		e.Symptoms, e.Diagnosis, e.Status, e.Appointment, e.Location, e.ApptDate, e.ApptTime, e.EndorsedBy, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update medical event %d: %w", e.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update medical event %d: %w", e.ID, models.ErrRecordNotFound)
	}
	return nil
}

func pgInsertStatus(db rowQuerier, st models.MedicalStatus) (int64, error) {
	var id int64
	err := db.QueryRow(`
		INSERT INTO medical_statuses (event_id, subject_name, status_type, description, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		st.EventID, st.SubjectName, st.StatusType, st.Description, st.StartDate, st.EndDate).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert medical status for %s: %w", st.SubjectName, err)
	}
	return id, nil
}

func (s *PostgresStore) CreateMedicalEvent(e models.MedicalEvent) (int64, error) {
	id, err := pgInsertEvent(s.db, e)
	if err != nil {
		slog.Error("PostgresStore CreateMedicalEvent failed", "error", err, "subject", e.SubjectName)
		return 0, err
	}
	slog.Debug("PostgresStore CreateMedicalEvent succeeded", "id", id, "subject", e.SubjectName, "type", e.EventType)
	return id, nil
}

func (s *PostgresStore) UpdateMedicalEvent(e models.MedicalEvent) error {
	if err := pgUpdateEvent(s.db, e); err != nil {
		slog.Error("PostgresStore UpdateMedicalEvent failed", "error", err, "id", e.ID)
		return err
	}
	return nil
}

func (s *PostgresStore) queryEvents(query string, args ...any) ([]models.MedicalEvent, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore queryEvents failed", "error", err)
		return nil, fmt.Errorf("failed to query medical events: %w", err)
	}
	defer rows.Close()

	var events []models.MedicalEvent
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan medical event row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *PostgresStore) EventsBySubject(name, eventType string) ([]models.MedicalEvent, error) {
	return s.queryEvents(`SELECT `+eventColumns+` FROM medical_events WHERE LOWER(subject_name) = LOWER($1) AND event_type = $2`, name, eventType)
}

func (s *PostgresStore) ListMedicalEvents() ([]models.MedicalEvent, error) {
	return s.queryEvents(`SELECT ` + eventColumns + ` FROM medical_events ORDER BY id`)
}

func (s *PostgresStore) CreateMedicalStatus(st models.MedicalStatus) (int64, error) {
	id, err := pgInsertStatus(s.db, st)
	if err != nil {
		slog.Error("PostgresStore CreateMedicalStatus failed", "error", err, "subject", st.SubjectName)
		return 0, err
	}
	return id, nil
}

func (s *PostgresStore) ActiveMedicalStatuses(on time.Time) ([]models.MedicalStatus, error) {
	day := truncateToDay(on)
	nextDay := day.AddDate(0, 0, 1)
	// Day-inclusive bounds: stored dates may carry a time of day.
	rows, err := s.db.Query(`
		SELECT id, event_id, subject_name, status_type, description, start_date, end_date, created_at
		FROM medical_statuses WHERE start_date < $1 AND end_date >= $2 ORDER BY id`, nextDay, day)
	if err != nil {
		slog.Error("PostgresStore ActiveMedicalStatuses query failed", "error", err)
		return nil, fmt.Errorf("failed to query medical statuses: %w", err)
	}
	defer rows.Close()

	var statuses []models.MedicalStatus
	for rows.Next() {
		var st models.MedicalStatus
		if err := rows.Scan(&st.ID, &st.EventID, &st.SubjectName, &st.StatusType, &st.Description, &st.StartDate, &st.EndDate, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan medical status row: %w", err)
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

func (s *PostgresStore) DeleteExpiredMedical(today time.Time) error {
	day := truncateToDay(today)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin cleanup transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM medical_statuses WHERE end_date < $1`, day); err != nil {
		slog.Error("PostgresStore DeleteExpiredMedical statuses failed", "error", err)
		return fmt.Errorf("failed to delete expired statuses: %w", err)
	}
	if _, err := tx.Exec(`
		DELETE FROM medical_events
		WHERE event_type != $1 AND diagnosis != '' AND id NOT IN (SELECT event_id FROM medical_statuses)`, models.EventTypeMA); err != nil {
		slog.Error("PostgresStore DeleteExpiredMedical events failed", "error", err)
		return fmt.Errorf("failed to delete resolved events: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM medical_events WHERE event_type = $1 AND created_at < $2`, models.EventTypeMA, day); err != nil {
		slog.Error("PostgresStore DeleteExpiredMedical appointments failed", "error", err)
		return fmt.Errorf("failed to delete past appointments: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cleanup transaction: %w", err)
	}
	slog.Debug("PostgresStore DeleteExpiredMedical succeeded")
	return nil
}

func (s *PostgresStore) DeleteAllMedical() error {
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
func (s *PostgresStore) PersistPendingReports(reports []models.PendingReport, now time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("PostgresStore PersistPendingReports begin failed", "error", err)
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range reports {
		switch {
		case r.Kind.IsNewReport():
			if _, err := pgInsertEvent(tx, eventFromReport(r)); err != nil {
				slog.Error("PostgresStore PersistPendingReports insert failed", "error", err, "subject", r.Name)
				return err
			}
		default:
			e, err := scanEvent(tx.QueryRow(`SELECT `+eventColumns+` FROM medical_events WHERE id = $1 FOR UPDATE`, r.RecordID).Scan)
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
			if err := pgUpdateEvent(tx, e); err != nil {
				slog.Error("PostgresStore PersistPendingReports update failed", "error", err, "id", r.RecordID)
				return err
			}
			if st, ok := statusFromReport(r, e, now); ok {
				if _, err := pgInsertStatus(tx, st); err != nil {
					slog.Error("PostgresStore PersistPendingReports status failed", "error", err, "subject", r.Name)
					return err
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("PostgresStore PersistPendingReports commit failed", "error", err)
		return fmt.Errorf("failed to commit batch transaction: %w", err)
	}
	slog.Debug("PostgresStore PersistPendingReports succeeded", "count", len(reports))
	return nil
}

// ---------- Movement ----------

func (s *PostgresStore) LogMovement(m models.MovementLog) error {
	_, err := s.db.Exec(`
		INSERT INTO movement_logs (names, from_location, to_location, move_time, created_by)
		VALUES ($1, $2, $3, $4, $5)`,
		m.Names, m.FromLocation, m.ToLocation, m.Time, m.CreatedBy)
	if err != nil {
		slog.Error("PostgresStore LogMovement failed", "error", err)
		return fmt.Errorf("failed to insert movement log: %w", err)
	}
	return nil
}

// ---------- SFT ----------

func (s *PostgresStore) SFTWindow() (*models.SFTWindow, error) {
	var w models.SFTWindow
	err := s.db.QueryRow(`SELECT window_date, start_time, end_time FROM sft_window WHERE id = 1`).Scan(&w.Date, &w.Start, &w.End)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore SFTWindow failed", "error", err)
		return nil, fmt.Errorf("failed to query SFT window: %w", err)
	}
	return &w, nil
}

func (s *PostgresStore) SetSFTWindow(w models.SFTWindow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin window transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO sft_window (id, window_date, start_time, end_time) VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET window_date = EXCLUDED.window_date, start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time`,
		w.Date, w.Start, w.End); err != nil {
		slog.Error("PostgresStore SetSFTWindow failed", "error", err)
		return fmt.Errorf("failed to set SFT window: %w", err)
	}
	// A new window invalidates every prior submission.
	if _, err := tx.Exec(`DELETE FROM sft_submissions`); err != nil {
		return fmt.Errorf("failed to clear SFT submissions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit window transaction: %w", err)
	}
	slog.Info("PostgresStore SFT window set, submissions cleared", "date", w.Date, "start", w.Start, "end", w.End)
	return nil
}

func (s *PostgresStore) AddSFTSubmission(sub models.SFTSubmission) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			user_name = EXCLUDED.user_name, activity = EXCLUDED.activity, location = EXCLUDED.location,
			start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time, submission_date = EXCLUDED.submission_date`,
		sub.UserID, sub.UserName, sub.Activity, sub.Location, sub.Start, sub.End, sub.Date)
	if err != nil {
		slog.Error("PostgresStore AddSFTSubmission failed", "error", err, "userID", sub.UserID)
		return fmt.Errorf("failed to insert SFT submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveSFTSubmission(userID int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM sft_submissions WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore RemoveSFTSubmission failed", "error", err, "userID", userID)
		return false, fmt.Errorf("failed to delete SFT submission: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *PostgresStore) SFTSubmissions(date string) ([]models.SFTSubmission, error) {
	rows, err := s.db.Query(`
		SELECT user_id, user_name, activity, location, start_time, end_time, submission_date
		FROM sft_submissions WHERE submission_date = $1 ORDER BY user_name`, date)
	if err != nil {
		slog.Error("PostgresStore SFTSubmissions query failed", "error", err)
		return nil, fmt.Errorf("failed to query SFT submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.SFTSubmission
	for rows.Next() {
		var sub models.SFTSubmission
		if err := rows.Scan(&sub.UserID, &sub.UserName, &sub.Activity, &sub.Location, &sub.Start, &sub.End, &sub.Date); err != nil {
			return nil, fmt.Errorf("failed to scan SFT submission row: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ---------- Relay outbox ----------

func (s *PostgresStore) EnqueueRelay(dest models.Destination, body string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO relay_outbox (id, dest, body, status) VALUES ($1, $2, $3, $4)`,
		id, string(dest), body, string(RelayStatusQueued))
	if err != nil {
		slog.Error("PostgresStore EnqueueRelay failed", "error", err, "dest", dest)
		return "", fmt.Errorf("failed to enqueue relay: %w", err)
	}
	slog.Debug("PostgresStore EnqueueRelay succeeded", "id", id, "dest", dest)
	return id, nil
}

func (s *PostgresStore) ClaimDueRelays(now time.Time, limit int) ([]Relay, error) {
	rows, err := s.db.Query(`
		UPDATE relay_outbox SET status = 'sending', locked_at = $1, updated_at = $1
		WHERE id IN (
		  SELECT id FROM relay_outbox WHERE status = 'queued' AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
		  ORDER BY created_at ASC LIMIT $2
		  FOR UPDATE SKIP LOCKED
		)
		RETURNING id, dest, body, status, attempts, next_attempt_at, locked_at, last_error, created_at, updated_at`,
		now, limit)
	if err != nil {
		slog.Error("PostgresStore ClaimDueRelays failed", "error", err)
		return nil, fmt.Errorf("failed to claim due relays: %w", err)
	}
	defer rows.Close()

	var relays []Relay
	for rows.Next() {
		var r Relay
		var nextAttempt, lockedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.Dest, &r.Body, &r.Status, &r.Attempts, &nextAttempt, &lockedAt, &r.LastError, &r.CreatedAt, &r.UpdatedAt); err != nil {
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
		return nil, fmt.Errorf("failed to iterate relay rows: %w", err)
	}
	return relays, nil
}

func (s *PostgresStore) MarkRelaySent(id string) error {
	_, err := s.db.Exec(`UPDATE relay_outbox SET status = 'sent', locked_at = NULL, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore MarkRelaySent failed", "error", err, "id", id)
		return fmt.Errorf("failed to mark relay sent: %w", err)
	}
	return nil
}

func (s *PostgresStore) FailRelay(id string, errMsg string, nextAttemptAt time.Time) error {
	_, err := s.db.Exec(`
		UPDATE relay_outbox SET status = 'queued', attempts = attempts + 1, last_error = $1, next_attempt_at = $2, locked_at = NULL, updated_at = NOW()
		WHERE id = $3`,
		errMsg, nextAttemptAt, id)
	if err != nil {
		slog.Error("PostgresStore FailRelay failed", "error", err, "id", id)
		return fmt.Errorf("failed to record relay failure: %w", err)
	}
	return nil
}

func (s *PostgresStore) RequeueStaleRelays(staleBefore time.Time) (int, error) {
	res, err := s.db.Exec(`
		UPDATE relay_outbox SET status = 'queued', locked_at = NULL, updated_at = NOW()
		WHERE status = 'sending' AND locked_at < $1`,
		staleBefore)
	if err != nil {
		slog.Error("PostgresStore RequeueStaleRelays failed", "error", err)
		return 0, fmt.Errorf("failed to requeue stale relays: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		slog.Info("PostgresStore requeued stale relays", "count", n)
	}
	return int(n), nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
