package store

import (
	"time"

	"github.com/weelysontheDISease/Telebot-V1/internal/models"
)

// ddmmyyLayout matches the short date format carried through report flows.
const ddmmyyLayout = "020106"

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// eventFromReport builds the medical event row for a new report.
func eventFromReport(r models.PendingReport) models.MedicalEvent {
	return models.MedicalEvent{
		SubjectName: r.Name,
		EventType:   r.Kind.EventType(),
		Symptoms:    r.Symptoms,
		Diagnosis:   r.Diagnosis,
		Status:      r.Status,
		Appointment: r.Appointment,
		Location:    r.Location,
		ApptDate:    r.ApptDate,
		ApptTime:    r.ApptTime,
		EndorsedBy:  r.Instructor,
	}
}

// statusFromReport derives the dated status row for an update report.
// The second return is false when the update carries no status period.
func statusFromReport(r models.PendingReport, e models.MedicalEvent, now time.Time) (models.MedicalStatus, bool) {
	if r.Days <= 0 || r.StartDate == "" || r.EndDate == "" {
		return models.MedicalStatus{}, false
	}
	start, err := time.ParseInLocation(ddmmyyLayout, r.StartDate, now.Location())
	if err != nil {
		return models.MedicalStatus{}, false
	}
	end, err := time.ParseInLocation(ddmmyyLayout, r.EndDate, now.Location())
	if err != nil {
		return models.MedicalStatus{}, false
	}
	statusType := r.StatusType
	if statusType == "" {
		statusType = models.StatusTypeMC
	}
	return models.MedicalStatus{
		EventID:     e.ID,
		SubjectName: e.SubjectName,
		StatusType:  statusType,
		Description: r.Status,
		StartDate:   start,
		EndDate:     end,
	}, true
}
