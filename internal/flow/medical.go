package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/weelysontheDISease/Telebot-V1/internal/models"
	"github.com/weelysontheDISease/Telebot-V1/internal/session"
	"github.com/weelysontheDISease/Telebot-V1/internal/validate"
)

func newReportID() string { return uuid.NewString() }

func (e *Engine) startStatusMenu(ctx context.Context, user *models.User) {
	e.sessions.Begin(user.PlatformID, session.ModeNone)
	e.sendPrompt(ctx, user.PlatformID, statusMenuPrompt())
}

func statusMenuPrompt() models.Prompt {
	return models.Prompt{
		Body: "🏥 Status reporting\nWhat would you like to report?",
		Keyboard: [][]models.Button{
			{{Label: "🤒 RSO Report", Data: models.JoinPayload("status_menu", string(models.KindRSOReport))}},
			{{Label: "📝 RSO Update", Data: models.JoinPayload("status_menu", string(models.KindRSOUpdate))}},
			{{Label: "🤧 RSI Report", Data: models.JoinPayload("status_menu", string(models.KindRSIReport))}},
			{{Label: "📝 RSI Update", Data: models.JoinPayload("status_menu", string(models.KindRSIUpdate))}},
			{{Label: "🏥 MA Report", Data: models.JoinPayload("status_menu", string(models.KindMAReport))}},
			{{Label: "📝 MA Update", Data: models.JoinPayload("status_menu", string(models.KindMAUpdate))}},
			{{Label: "❌ Cancel", Data: "cancel"}},
		},
	}
}

// nameKeyForKind returns the callback routing key the name picker uses
// for one report kind.
func nameKeyForKind(kind models.ReportKind) string {
	switch kind {
	case models.KindRSIReport:
		return "rsi_name"
	case models.KindRSOUpdate:
		return "update_name"
	case models.KindRSIUpdate:
		return "rsi_update_name"
	case models.KindMAUpdate:
		return "update_ma_name"
	default:
		return "name"
	}
}

// statusMenuChoice enters one report kind's entry cycle. The batch
// accumulator survives when the user is already mid-batch.
func (e *Engine) statusMenuChoice(ctx context.Context, user *models.User, arg string) {
	kind := models.ReportKind(arg)
	if !models.IsValidReportKind(kind) {
		e.send(ctx, user.PlatformID, "❌ Unknown report type.")
		return
	}

	// A session left over from another flow must not leak its draft in.
	sess := e.sessions.Get(user.PlatformID)
	if sess == nil || (sess.Mode != session.ModeNone && session.KindForMode(sess.Mode) == "") {
		sess = e.sessions.Begin(user.PlatformID, session.ModeForKind(kind))
	} else {
		e.sessions.Touch(user.PlatformID)
	}
	sess.Mode = session.ModeForKind(kind)
	sess.Medical = &session.MedicalDraft{Kind: kind}

	if len(sess.CadetNames) == 0 {
		names, err := e.store.ListCadetNames()
		if err != nil {
			slog.Error("Name list load failed", "error", err)
			e.send(ctx, user.PlatformID, "❌ Could not load the name list. Please try again.")
			return
		}
		if len(names) == 0 {
			e.send(ctx, user.PlatformID, "❌ No cadets found. Please import user data first.")
			return
		}
		sess.CadetNames = names
	}

	var rows [][]models.Button
	key := nameKeyForKind(kind)
	for i, name := range sess.CadetNames {
		rows = append(rows, []models.Button{{
			Label: name,
			Data:  models.JoinPayload(key, strconv.Itoa(i)),
		}})
	}
	rows = append(rows, []models.Button{{Label: "❌ Cancel", Data: "cancel"}})

	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body:     "Select a name:",
		Keyboard: rows,
	})
}

func (e *Engine) medicalSession(ctx context.Context, user *models.User) *session.Session {
	sess := e.sessions.Get(user.PlatformID)
	if sess == nil || session.KindForMode(sess.Mode) == "" || sess.Medical == nil {
		e.send(ctx, user.PlatformID, "❌ No active report session. Use /start_status.")
		return nil
	}
	e.sessions.Touch(user.PlatformID)
	return sess
}

func (e *Engine) pickedName(ctx context.Context, user *models.User, sess *session.Session, arg string) (string, bool) {
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 0 || idx >= len(sess.CadetNames) {
		e.send(ctx, user.PlatformID, "❌ Unknown name. Please start again with /start_status.")
		return "", false
	}
	return sess.CadetNames[idx], true
}

// subjectInBatch reports whether a new report of the same kind for name
// is already queued. Other kinds and updates are guarded per record.
func subjectInBatch(pending []models.PendingReport, kind models.ReportKind, name string) bool {
	for _, r := range pending {
		if r.Kind == kind && strings.EqualFold(r.Name, name) {
			return true
		}
	}
	return false
}

func updateInBatch(pending []models.PendingReport, recordID int64) bool {
	for _, r := range pending {
		if r.Kind.IsUpdate() && r.RecordID == recordID {
			return true
		}
	}
	return false
}

// medicalNamePicked handles name selection for new RSO/RSI/MA reports.
func (e *Engine) medicalNamePicked(ctx context.Context, user *models.User, arg string) {
	sess := e.medicalSession(ctx, user)
	if sess == nil {
		return
	}
	name, ok := e.pickedName(ctx, user, sess, arg)
	if !ok {
		return
	}
	if subjectInBatch(sess.Pending, sess.Medical.Kind, name) {
		e.send(ctx, user.PlatformID, fmt.Sprintf("❌ %s is already in the current batch.", name))
		return
	}

	sess.Medical.Name = name
	if sess.Medical.Kind == models.KindMAReport {
		sess.Medical.Awaiting = session.AwaitAppointment
		e.send(ctx, user.PlatformID, fmt.Sprintf("Enter the appointment for %s (e.g. DENTAL REVIEW):", name))
		return
	}
	sess.Medical.Awaiting = session.AwaitSymptoms
	e.send(ctx, user.PlatformID, fmt.Sprintf("Enter symptoms for %s:", name))
}

// medicalUpdateNamePicked handles name selection for RSO/RSI updates: the
// subject must have an open (undiagnosed) report of the matching type.
func (e *Engine) medicalUpdateNamePicked(ctx context.Context, user *models.User, arg string, kind models.ReportKind) {
	sess := e.medicalSession(ctx, user)
	if sess == nil {
		return
	}
	name, ok := e.pickedName(ctx, user, sess, arg)
	if !ok {
		return
	}

	events, err := e.store.EventsBySubject(name, kind.EventType())
	if err != nil {
		slog.Error("Event lookup failed", "error", err, "subject", name)
		e.send(ctx, user.PlatformID, "❌ Could not load the record. Please try again.")
		return
	}
	if len(events) == 0 {
		e.send(ctx, user.PlatformID, fmt.Sprintf("❌ No open %s report found for %s.", kind.EventType(), name))
		return
	}
	latest := events[len(events)-1]
	if latest.Diagnosed() {
		e.send(ctx, user.PlatformID, "❌ This record already has a diagnosis and can no longer be updated.")
		return
	}
	if updateInBatch(sess.Pending, latest.ID) {
		e.send(ctx, user.PlatformID, "❌ An update for this record is already in the batch.")
		return
	}

	sess.Medical = &session.MedicalDraft{
		Kind:     kind,
		Name:     name,
		Symptoms: latest.Symptoms,
		RecordID: latest.ID,
		Awaiting: session.AwaitDiagnosis,
	}
	e.send(ctx, user.PlatformID, fmt.Sprintf("Enter diagnosis for %s:", name))
}

// maUpdateNamePicked handles name selection for MA endorsement updates.
func (e *Engine) maUpdateNamePicked(ctx context.Context, user *models.User, arg string) {
	sess := e.medicalSession(ctx, user)
	if sess == nil {
		return
	}
	name, ok := e.pickedName(ctx, user, sess, arg)
	if !ok {
		return
	}

	events, err := e.store.EventsBySubject(name, models.EventTypeMA)
	if err != nil {
		slog.Error("Event lookup failed", "error", err, "subject", name)
		e.send(ctx, user.PlatformID, "❌ Could not load the record. Please try again.")
		return
	}
	if len(events) == 0 {
		e.send(ctx, user.PlatformID, fmt.Sprintf("❌ No MA report found for %s.", name))
		return
	}
	latest := events[len(events)-1]
	if updateInBatch(sess.Pending, latest.ID) {
		e.send(ctx, user.PlatformID, "❌ An update for this record is already in the batch.")
		return
	}

	instructors, err := e.store.ListInstructorNames()
	if err != nil {
		slog.Error("Instructor list load failed", "error", err)
		e.send(ctx, user.PlatformID, "❌ Could not load the instructor list. Please try again.")
		return
	}
	if len(instructors) == 0 {
		e.send(ctx, user.PlatformID, "❌ No instructors found. Please import user data first.")
		return
	}
	sess.InstructorNames = instructors

	sess.Medical = &session.MedicalDraft{
		Kind:        models.KindMAUpdate,
		Name:        name,
		RecordID:    latest.ID,
		Appointment: latest.Appointment,
		Location:    latest.Location,
		ApptDate:    latest.ApptDate,
		ApptTime:    latest.ApptTime,
	}

	var rows [][]models.Button
	for i, n := range instructors {
		rows = append(rows, []models.Button{{
			Label: n,
			Data:  models.JoinPayload("instructor", strconv.Itoa(i)),
		}})
	}
	rows = append(rows, []models.Button{{Label: "❌ Cancel", Data: "cancel"}})

	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body:     "Select the endorsing instructor:",
		Keyboard: rows,
	})
}

func (e *Engine) maInstructorPicked(ctx context.Context, user *models.User, arg string) {
	sess := e.medicalSession(ctx, user)
	if sess == nil {
		return
	}
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 0 || idx >= len(sess.InstructorNames) {
		e.send(ctx, user.PlatformID, "❌ Unknown instructor. Please start again with /start_status.")
		return
	}
	sess.Medical.Instructor = sess.InstructorNames[idx]
	e.medicalPreview(ctx, user, sess)
}

// daysKeyboard builds the duration picker. RSI updates get a zero-days
// "no status given" outcome; RSO updates do not.
func daysKeyboard(rsi bool) [][]models.Button {
	key := "mc_days"
	if rsi {
		key = "rsi_days"
	}
	var rows [][]models.Button
	if rsi {
		rows = append(rows, []models.Button{{Label: "No Status Given", Data: models.JoinPayload(key, "0")}})
	}
	for d := 1; d <= 5; d++ {
		rows = append(rows, []models.Button{{
			Label: strconv.Itoa(d),
			Data:  models.JoinPayload(key, strconv.Itoa(d)),
		}})
	}
	rows = append(rows, []models.Button{{Label: "Other", Data: models.JoinPayload(key, "other")}})
	rows = append(rows, []models.Button{{Label: "❌ Cancel", Data: "cancel"}})
	return rows
}

// statusString renders the canonical status line for a duration starting
// today: "3 DAYS MC (290826-310826)", "1 DAY LIGHT DUTY (290826-290826)",
// or "N/A" for zero days.
func statusString(days int, statusType string, now time.Time) string {
	if days <= 0 {
		return "N/A"
	}
	label := models.StatusTypeLabel(statusType)
	desc := fmt.Sprintf("%d DAYS %s", days, label)
	if days == 1 {
		desc = "1 DAY " + label
	}
	start := now
	end := now.AddDate(0, 0, days-1)
	return fmt.Sprintf("%s (%s-%s)", desc, start.Format("020106"), end.Format("020106"))
}

func (e *Engine) applyDays(ctx context.Context, user *models.User, sess *session.Session, days int) {
	sess.Medical.Days = days
	if days == 0 {
		sess.Medical.Status = "N/A"
		e.medicalPreview(ctx, user, sess)
		return
	}
	now := e.now()
	sess.Medical.StartDate = now.Format("020106")
	sess.Medical.EndDate = now.AddDate(0, 0, days-1).Format("020106")

	if sess.Medical.Kind == models.KindRSIUpdate {
		e.sendPrompt(ctx, user.PlatformID, models.Prompt{
			Body: "Select status type:",
			Keyboard: [][]models.Button{{
				{Label: "MC", Data: models.JoinPayload("rsi_type", models.StatusTypeMC)},
				{Label: "Light Duty", Data: models.JoinPayload("rsi_type", models.StatusTypeLightDuty)},
			}},
		})
		return
	}
	sess.Medical.StatusType = models.StatusTypeMC
	sess.Medical.Status = statusString(days, models.StatusTypeMC, now)
	e.medicalPreview(ctx, user, sess)
}

func (e *Engine) medicalDaysPicked(ctx context.Context, user *models.User, arg string, rsi bool) {
	sess := e.medicalSession(ctx, user)
	if sess == nil {
		return
	}
	if arg == "other" {
		sess.Medical.Awaiting = session.AwaitCustomDays
		e.send(ctx, user.PlatformID, "Enter number of days (1-365):")
		return
	}
	days, err := validate.ParseDayCount(arg, rsi)
	if err != nil {
		e.send(ctx, user.PlatformID, "❌ Enter a number of days between 1 and 365.")
		return
	}
	e.applyDays(ctx, user, sess, days)
}

func (e *Engine) medicalStatusTypePicked(ctx context.Context, user *models.User, arg string) {
	sess := e.medicalSession(ctx, user)
	if sess == nil {
		return
	}
	if arg != models.StatusTypeMC && arg != models.StatusTypeLightDuty {
		e.send(ctx, user.PlatformID, "❌ Unknown status type.")
		return
	}
	sess.Medical.StatusType = arg
	sess.Medical.Status = statusString(sess.Medical.Days, arg, e.now())
	e.medicalPreview(ctx, user, sess)
}

// ---------- Free text ----------

func (e *Engine) medicalText(ctx context.Context, user *models.User, sess *session.Session, text string) {
	if sess.Medical == nil || sess.Medical.Awaiting == "" {
		return
	}
	input := strings.ToUpper(strings.TrimSpace(text))

	switch sess.Medical.Awaiting {
	case session.AwaitSymptoms:
		if err := validate.WithinLen(input, models.MinFreeTextLength, models.MaxFreeTextLength); err != nil {
			if errors.Is(err, validate.ErrTooLong) {
				e.send(ctx, user.PlatformID, "❌ Symptoms can be at most 200 characters. Please try again.")
			} else {
				e.send(ctx, user.PlatformID, "❌ Symptoms must be at least 3 characters. Please try again.")
			}
			return
		}
		sess.Medical.Symptoms = input
		sess.Medical.Awaiting = ""
		e.medicalPreview(ctx, user, sess)

	case session.AwaitDiagnosis:
		if err := validate.WithinLen(input, models.MinShortTextLength, models.MaxFreeTextLength); err != nil {
			if errors.Is(err, validate.ErrTooLong) {
				e.send(ctx, user.PlatformID, "❌ Diagnosis can be at most 200 characters. Please try again.")
			} else {
				e.send(ctx, user.PlatformID, "❌ Diagnosis must be at least 2 characters. Please try again.")
			}
			return
		}
		sess.Medical.Diagnosis = input
		sess.Medical.Awaiting = ""
		e.sendPrompt(ctx, user.PlatformID, models.Prompt{
			Body:     "Select status duration:",
			Keyboard: daysKeyboard(sess.Medical.Kind == models.KindRSIUpdate),
		})

	case session.AwaitCustomDays:
		days, err := validate.ParseDayCount(input, sess.Medical.Kind == models.KindRSIUpdate)
		if err != nil {
			e.send(ctx, user.PlatformID, "❌ Enter a number of days between 1 and 365.")
			return
		}
		sess.Medical.Awaiting = ""
		e.applyDays(ctx, user, sess, days)

	case session.AwaitAppointment:
		if err := validate.WithinLen(input, models.MinShortTextLength, models.MaxFreeTextLength); err != nil {
			e.send(ctx, user.PlatformID, "❌ Appointment must be between 2 and 200 characters. Please try again.")
			return
		}
		sess.Medical.Appointment = input
		sess.Medical.Awaiting = session.AwaitLocation
		e.send(ctx, user.PlatformID, "Enter the appointment location:")

	case session.AwaitLocation:
		if err := validate.WithinLen(input, models.MinShortTextLength, models.MaxFreeTextLength); err != nil {
			e.send(ctx, user.PlatformID, "❌ Location must be between 2 and 200 characters. Please try again.")
			return
		}
		sess.Medical.Location = input
		sess.Medical.Awaiting = session.AwaitApptDate
		e.send(ctx, user.PlatformID, "Enter the appointment date (DDMMYY):")

	case session.AwaitApptDate:
		if _, err := validate.ParseDDMMYY(input, e.now(), e.cfg.Timezone); err != nil {
			if errors.Is(err, validate.ErrPastDate) {
				e.send(ctx, user.PlatformID, "❌ Date cannot be in the past. Please try again.")
			} else {
				e.send(ctx, user.PlatformID, "❌ Invalid date. Use DDMMYY.")
			}
			return
		}
		sess.Medical.ApptDate = input
		sess.Medical.Awaiting = session.AwaitApptTime
		e.send(ctx, user.PlatformID, "Enter the appointment time (HHMM):")

	case session.AwaitApptTime:
		if !validate.IsValid24hTime(input) {
			e.send(ctx, user.PlatformID, "❌ Invalid time. Use HHMM.")
			return
		}
		sess.Medical.ApptTime = input
		sess.Medical.Awaiting = ""
		e.medicalPreview(ctx, user, sess)
	}
}

// ---------- Preview and confirm ----------

func confirmKeyForKind(kind models.ReportKind) string {
	switch kind {
	case models.KindRSIReport:
		return "confirm_rsi_report"
	case models.KindRSIUpdate:
		return "confirm_rsi_update"
	case models.KindMAReport:
		return "confirm_ma"
	case models.KindMAUpdate:
		return "confirm_ma_update"
	default:
		return "confirm"
	}
}

func renderMedicalPreview(d *session.MedicalDraft) string {
	switch d.Kind {
	case models.KindMAReport:
		return fmt.Sprintf("%s\nNAME: %s\nLOCATION: %s\nDATE: %s\nTIME OF APPOINTMENT: %sH",
			d.Name, d.Appointment, d.Location, d.ApptDate, d.ApptTime)
	case models.KindMAUpdate:
		return fmt.Sprintf("%s\nNAME: %s\nLOCATION: %s\nDATE: %s\nTIME OF APPOINTMENT: %sH\nENDORSED BY: %s",
			d.Name, d.Appointment, d.Location, d.ApptDate, d.ApptTime, d.Instructor)
	default:
		return fmt.Sprintf("NAME: %s\nSYMPTOMS: %s\nDIAGNOSIS: %s\nSTATUS: %s",
			d.Name, d.Symptoms, d.Diagnosis, d.Status)
	}
}

func (e *Engine) medicalPreview(ctx context.Context, user *models.User, sess *session.Session) {
	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body: "📋 Preview Report\n\n" + renderMedicalPreview(sess.Medical),
		Keyboard: [][]models.Button{{
			{Label: "✅ Confirm", Data: confirmKeyForKind(sess.Medical.Kind)},
			{Label: "❌ Cancel", Data: "cancel"},
		}},
	})
}

// medicalConfirm moves the drafted report into the session batch and
// resets the entry state for the next record.
func (e *Engine) medicalConfirm(ctx context.Context, user *models.User) {
	sess := e.medicalSession(ctx, user)
	if sess == nil {
		return
	}
	d := sess.Medical
	if d.Name == "" {
		e.send(ctx, user.PlatformID, "❌ No report data found. Please start again with /start_status.")
		return
	}

	sess.Pending = append(sess.Pending, models.PendingReport{
		ID:          newReportID(),
		Kind:        d.Kind,
		Name:        d.Name,
		Symptoms:    d.Symptoms,
		Diagnosis:   d.Diagnosis,
		Status:      d.Status,
		StatusType:  d.StatusType,
		Days:        d.Days,
		StartDate:   d.StartDate,
		EndDate:     d.EndDate,
		Appointment: d.Appointment,
		Location:    d.Location,
		ApptDate:    d.ApptDate,
		ApptTime:    d.ApptTime,
		Instructor:  d.Instructor,
		RecordID:    d.RecordID,
	})
	kind := d.Kind
	e.sessions.ResetEntry(user.PlatformID)

	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body: "✅ Added to batch. Report another?",
		Keyboard: [][]models.Button{{
			{Label: "➕ Report another", Data: models.JoinPayload("continue_reporting", string(kind))},
			{Label: "✅ Done", Data: "done_reporting"},
		}},
	})
}
