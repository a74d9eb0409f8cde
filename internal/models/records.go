package models

import "time"

// Role values for directory users.
const (
	RoleCadet      = "cadet"
	RoleInstructor = "instructor"
)

// User is one directory entry, resolved by platform identity.
type User struct {
	ID         int64     `json:"id"`
	PlatformID int64     `json:"platform_id"`
	Username   string    `json:"username,omitempty"`
	FullName   string    `json:"full_name"`
	Rank       string    `json:"rank,omitempty"`
	Role       string    `json:"role"`
	IsAdmin    bool      `json:"is_admin"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DisplayName returns "RANK FULL_NAME" or just the full name when unranked.
func (u User) DisplayName() string {
	if u.Rank == "" {
		return u.FullName
	}
	return u.Rank + " " + u.FullName
}

// EventType values for medical events.
const (
	EventTypeRSO = "RSO"
	EventTypeRSI = "RSI"
	EventTypeMC  = "MC"
	EventTypeMA  = "MA"
)

// IsValidEventType checks if the given medical event type is supported.
func IsValidEventType(t string) bool {
	switch t {
	case EventTypeRSO, EventTypeRSI, EventTypeMC, EventTypeMA:
		return true
	default:
		return false
	}
}

// MedicalEvent is one RSO/RSI/MA occurrence. New reports are append-only;
// a non-empty diagnosis freezes the record against further updates.
type MedicalEvent struct {
	ID          int64     `json:"id"`
	SubjectName string    `json:"subject_name"`
	EventType   string    `json:"event_type"`
	Symptoms    string    `json:"symptoms,omitempty"`
	Diagnosis   string    `json:"diagnosis,omitempty"`
	Status      string    `json:"status,omitempty"`
	// MA appointment fields.
	Appointment string    `json:"appointment,omitempty"`
	Location    string    `json:"location,omitempty"`
	ApptDate    string    `json:"appt_date,omitempty"` // DDMMYY
	ApptTime    string    `json:"appt_time,omitempty"` // HHMM
	EndorsedBy  string    `json:"endorsed_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Diagnosed reports whether the event carries a non-empty diagnosis.
func (e MedicalEvent) Diagnosed() bool {
	return e.Diagnosis != ""
}

// Status type values for derived medical statuses.
const (
	StatusTypeMC        = "MC"
	StatusTypeLightDuty = "LD"
)

// StatusTypeLabel maps a status type to its canonical display label.
func StatusTypeLabel(t string) string {
	if t == StatusTypeLightDuty {
		return "LIGHT DUTY"
	}
	return t
}

// MedicalStatus is a derived temporal status linked to the event that
// produced it. Never created for "no status" outcomes.
type MedicalStatus struct {
	ID          int64     `json:"id"`
	EventID     int64     `json:"event_id"`
	SubjectName string    `json:"subject_name"`
	StatusType  string    `json:"status_type"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	CreatedAt   time.Time `json:"created_at"`
}

// MovementLog records one relayed movement report.
type MovementLog struct {
	ID           int64     `json:"id"`
	Names        string    `json:"names"` // comma-separated, sorted
	FromLocation string    `json:"from_location"`
	ToLocation   string    `json:"to_location"`
	Time         string    `json:"time"` // HHMM
	CreatedBy    int64     `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// SFTWindow is the single active instructor-declared submission window.
type SFTWindow struct {
	Date  string `json:"date"`  // DDMMYYYY
	Start string `json:"start"` // HHMM
	End   string `json:"end"`   // HHMM
}

// Contains reports whether both slot bounds fall within the window.
func (w SFTWindow) Contains(start, end string) bool {
	return start >= w.Start && end <= w.End
}

// SFTSubmission is one cadet's chosen activity/time slot within the
// active window. Unique per user per window.
type SFTSubmission struct {
	UserID   int64  `json:"user_id"` // directory row ID, not the platform ID
	UserName string `json:"user_name"`
	Activity string `json:"activity"`
	Location string `json:"location"`
	Start    string `json:"start"` // HHMM
	End      string `json:"end"`   // HHMM
	Date     string `json:"date"`  // DDMMYYYY
}
