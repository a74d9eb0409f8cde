// Package store provides storage backends for Telebot.
//
// It includes an in-memory store for tests and single-process use, and
// SQLite/Postgres backends with embedded migrations.
package store

import (
	"time"

	"github.com/weelysontheDISease/Telebot-V1/internal/models"
)

// Opts holds configuration for store backends.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithDSN sets the database DSN (file path for SQLite, URL for Postgres).
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// Store is the record repository the conversation engine depends on.
type Store interface {
	// User directory.
	GetUserByPlatformID(platformID int64) (*models.User, error)
	GetUserByUsername(username string) (*models.User, error)
	ListCadetNames() ([]string, error)
	ListInstructorNames() ([]string, error)
	ListAdminPlatformIDs() ([]int64, error)
	CountActiveCadets() (int, error)
	UpsertUser(u models.User) error
	DeleteAllUsers() error

	// Medical events and statuses.
	CreateMedicalEvent(e models.MedicalEvent) (int64, error)
	UpdateMedicalEvent(e models.MedicalEvent) error
	EventsBySubject(name, eventType string) ([]models.MedicalEvent, error)
	ListMedicalEvents() ([]models.MedicalEvent, error)
	CreateMedicalStatus(st models.MedicalStatus) (int64, error)
	ActiveMedicalStatuses(on time.Time) ([]models.MedicalStatus, error)
	DeleteExpiredMedical(today time.Time) error
	DeleteAllMedical() error

	// PersistPendingReports applies a finalized batch atomically: new
	// reports insert events, updates rewrite their target event and, when
	// a duration was given, insert the derived status.
	PersistPendingReports(reports []models.PendingReport, now time.Time) error

	// Movement log.
	LogMovement(m models.MovementLog) error

	// SFT window and submissions.
	SFTWindow() (*models.SFTWindow, error)
	// SetSFTWindow replaces the active window and clears all existing
	// submissions in the same operation.
	SetSFTWindow(w models.SFTWindow) error
	// AddSFTSubmission stores a cadet's slot. It fails with
	// models.ErrNoActiveWindow when no window is set and with
	// models.ErrOutsideWindow when the slot falls outside the window
	// bounds. A prior submission by the same user is replaced.
	AddSFTSubmission(sub models.SFTSubmission) error
	RemoveSFTSubmission(userID int64) (bool, error)
	SFTSubmissions(date string) ([]models.SFTSubmission, error)

	RelayOutbox

	Close() error
}
