package models

// ReportKind identifies which workflow produced a pending report.
type ReportKind string

const (
	// KindRSOReport is a new RSO sick report.
	KindRSOReport ReportKind = "report"
	// KindRSOUpdate is a diagnosis/status update to an existing RSO report.
	KindRSOUpdate ReportKind = "update"
	// KindRSIReport is a new RSI sick report.
	KindRSIReport ReportKind = "rsi_report"
	// KindRSIUpdate is a diagnosis/status update to an existing RSI report.
	KindRSIUpdate ReportKind = "rsi_update"
	// KindMAReport is a new medical-appointment report.
	KindMAReport ReportKind = "ma_report"
	// KindMAUpdate is an endorsement update to an existing MA report.
	KindMAUpdate ReportKind = "ma_update"
)

// IsValidReportKind checks if the given report kind is supported.
func IsValidReportKind(k ReportKind) bool {
	switch k {
	case KindRSOReport, KindRSOUpdate, KindRSIReport, KindRSIUpdate, KindMAReport, KindMAUpdate:
		return true
	default:
		return false
	}
}

// IsNewReport reports whether the kind creates a record (as opposed to
// updating one). The duplicate-subject batch guard applies only to these.
func (k ReportKind) IsNewReport() bool {
	switch k {
	case KindRSOReport, KindRSIReport, KindMAReport:
		return true
	default:
		return false
	}
}

// IsUpdate reports whether the kind updates an existing record.
func (k ReportKind) IsUpdate() bool {
	return IsValidReportKind(k) && !k.IsNewReport()
}

// EventType returns the medical event type the kind operates on.
func (k ReportKind) EventType() string {
	switch k {
	case KindRSOReport, KindRSOUpdate:
		return EventTypeRSO
	case KindRSIReport, KindRSIUpdate:
		return EventTypeRSI
	default:
		return EventTypeMA
	}
}

// PendingReport is one completed workflow cycle awaiting batch
// finalization. Immutable once added to a session's batch.
type PendingReport struct {
	ID         string     `json:"id"`
	Kind       ReportKind `json:"kind"`
	Name       string     `json:"name"`
	Symptoms   string     `json:"symptoms,omitempty"`
	Diagnosis  string     `json:"diagnosis,omitempty"`
	Status     string     `json:"status,omitempty"`
	StatusType string     `json:"status_type,omitempty"`
	Days       int        `json:"days,omitempty"`
	StartDate  string     `json:"start_date,omitempty"` // DDMMYY
	EndDate    string     `json:"end_date,omitempty"`   // DDMMYY
	// MA fields.
	Appointment string `json:"appointment,omitempty"`
	Location    string `json:"location,omitempty"`
	ApptDate    string `json:"appt_date,omitempty"`
	ApptTime    string `json:"appt_time,omitempty"`
	Instructor  string `json:"instructor,omitempty"`
	// RecordID references the persisted record an update targets.
	RecordID int64 `json:"record_id,omitempty"`
}
