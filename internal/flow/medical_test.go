package flow

import (
	"strings"
	"testing"

	"github.com/weelysontheDISease/Telebot-V1/internal/models"
)

func TestRSOReportBatchEndToEnd(t *testing.T) {
	e, st, msg := newTestEngine(t)
	seedRoster(t, st)

	command(e, cadetAngID, "start_status")
	if got := lastBody(t, msg); !strings.Contains(got, "What would you like to report?") {
		t.Fatalf("unexpected menu %q", got)
	}
	press(e, cadetAngID, "status_menu|report")
	press(e, cadetAngID, "name|0")
	if got := lastBody(t, msg); !strings.Contains(got, "Enter symptoms for OCT ANG BOON KENG") {
		t.Fatalf("unexpected reply %q", got)
	}

	send(e, cadetAngID, "ab")
	if got := lastBody(t, msg); !strings.Contains(got, "at least 3 characters") {
		t.Errorf("unexpected reply %q", got)
	}
	send(e, cadetAngID, "cough and flu")

	preview := lastBody(t, msg)
	for _, want := range []string{
		"NAME: OCT ANG BOON KENG",
		"SYMPTOMS: COUGH AND FLU",
		"DIAGNOSIS: \n",
		"STATUS: ",
	} {
		if !strings.Contains(preview, want) {
			t.Errorf("preview missing %q:\n%s", want, preview)
		}
	}

	press(e, cadetAngID, "confirm")
	if got := lastBody(t, msg); !strings.Contains(got, "Added to batch") {
		t.Fatalf("unexpected reply %q", got)
	}

	press(e, cadetAngID, "done_reporting")
	summary := lastBody(t, msg)
	if !strings.Contains(summary, "RSO") || !strings.Contains(summary, "1. OCT ANG BOON KENG") {
		t.Errorf("unexpected batch summary:\n%s", summary)
	}

	press(e, cadetAngID, "send_batch_ic")
	if got := lastBody(t, msg); !strings.Contains(got, "Sent to IC group") {
		t.Errorf("unexpected reply %q", got)
	}

	events, err := st.EventsBySubject("OCT ANG BOON KENG", models.EventTypeRSO)
	if err != nil {
		t.Fatalf("EventsBySubject failed: %v", err)
	}
	if len(events) != 1 || events[0].Symptoms != "COUGH AND FLU" {
		t.Fatalf("report not persisted: %+v", events)
	}
	relays := st.Relays()
	if len(relays) != 1 || relays[0].Dest != models.DestParadeState {
		t.Fatalf("expected 1 batch relay, got %+v", relays)
	}
}

func TestDuplicateSubjectGuard(t *testing.T) {
	e, st, msg := newTestEngine(t)
	seedRoster(t, st)

	command(e, cadetAngID, "start_status")
	press(e, cadetAngID, "status_menu|report")
	press(e, cadetAngID, "name|0")
	send(e, cadetAngID, "headache")
	press(e, cadetAngID, "confirm")

	// Continue drops straight back into the same flow's name picker.
	press(e, cadetAngID, "continue_reporting|report")
	if got := lastBody(t, msg); !strings.Contains(got, "Select a name:") {
		t.Fatalf("unexpected reply %q", got)
	}
	press(e, cadetAngID, "name|0")
	if got := lastBody(t, msg); !strings.Contains(got, "already in the current batch") {
		t.Errorf("unexpected reply %q", got)
	}

	// Other subjects still go through.
	press(e, cadetAngID, "name|1")
	if got := lastBody(t, msg); !strings.Contains(got, "Enter symptoms for OCT CHUA LI TING") {
		t.Errorf("unexpected reply %q", got)
	}
}

func TestSameSubjectDifferentKindAllowed(t *testing.T) {
	e, st, msg := newTestEngine(t)
	seedRoster(t, st)

	command(e, cadetAngID, "start_status")
	press(e, cadetAngID, "status_menu|report")
	press(e, cadetAngID, "name|0")
	send(e, cadetAngID, "headache")
	press(e, cadetAngID, "confirm")

	// A pending RSO report does not block an MA appointment for the
	// same cadet in the same batch.
	press(e, cadetAngID, "status_menu|ma_report")
	press(e, cadetAngID, "name|0")
	if got := lastBody(t, msg); !strings.Contains(got, "Enter the appointment for OCT ANG BOON KENG") {
		t.Errorf("unexpected reply %q", got)
	}
}

func TestEmptyBatchDone(t *testing.T) {
	e, st, msg := newTestEngine(t)
	seedRoster(t, st)

	command(e, cadetAngID, "start_status")
	press(e, cadetAngID, "done_reporting")
	if got := lastBody(t, msg); !strings.Contains(got, "All done!") {
		t.Errorf("unexpected reply %q", got)
	}
	press(e, cadetAngID, "send_batch_ic")
	if got := lastBody(t, msg); !strings.Contains(got, "No active report session") {
		t.Errorf("unexpected reply %q", got)
	}
}

func TestBatchCancelPersistsNothing(t *testing.T) {
	e, st, msg := newTestEngine(t)
	seedRoster(t, st)

	command(e, cadetAngID, "start_status")
	press(e, cadetAngID, "status_menu|report")
	press(e, cadetAngID, "name|0")
	send(e, cadetAngID, "sore throat")
	press(e, cadetAngID, "confirm")
	press(e, cadetAngID, "done_reporting")
	press(e, cadetAngID, "cancel_batch_send")

	if got := lastBody(t, msg); !strings.Contains(got, "Batch not sent") {
		t.Errorf("unexpected reply %q", got)
	}
	events, err := st.EventsBySubject("OCT ANG BOON KENG", models.EventTypeRSO)
	if err != nil {
		t.Fatalf("EventsBySubject failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("cancelled batch must not persist, got %+v", events)
	}
	if len(st.Relays()) != 0 {
		t.Error("cancelled batch must not queue a relay")
	}
}

func TestRSOUpdateFlow(t *testing.T) {
	e, st, msg := newTestEngine(t)
	seedRoster(t, st)
	if _, err := st.CreateMedicalEvent(models.MedicalEvent{
		SubjectName: "OCT ANG BOON KENG", EventType: models.EventTypeRSO, Symptoms: "FEVER",
	}); err != nil {
		t.Fatalf("CreateMedicalEvent failed: %v", err)
	}

	command(e, cadetAngID, "start_status")
	press(e, cadetAngID, "status_menu|update")
	press(e, cadetAngID, "update_name|0")
	if got := lastBody(t, msg); !strings.Contains(got, "Enter diagnosis") {
		t.Fatalf("unexpected reply %q", got)
	}
	send(e, cadetAngID, "acute bronchitis")
	if got := lastBody(t, msg); !strings.Contains(got, "Select status duration") {
		t.Fatalf("unexpected reply %q", got)
	}
	press(e, cadetAngID, "mc_days|3")

	preview := lastBody(t, msg)
	for _, want := range []string{
		"SYMPTOMS: FEVER",
		"DIAGNOSIS: ACUTE BRONCHITIS",
		"STATUS: 3 DAYS MC (290826-310826)",
	} {
		if !strings.Contains(preview, want) {
			t.Errorf("preview missing %q:\n%s", want, preview)
		}
	}

	press(e, cadetAngID, "confirm")
	press(e, cadetAngID, "done_reporting")
	press(e, cadetAngID, "send_batch_ic")

	events, err := st.EventsBySubject("OCT ANG BOON KENG", models.EventTypeRSO)
	if err != nil {
		t.Fatalf("EventsBySubject failed: %v", err)
	}
	if len(events) != 1 || events[0].Diagnosis != "ACUTE BRONCHITIS" {
		t.Fatalf("update not persisted: %+v", events)
	}
	statuses := st.Statuses()
	if len(statuses) != 1 {
		t.Fatalf("expected 1 derived status, got %d", len(statuses))
	}
	if statuses[0].StatusType != models.StatusTypeMC || statuses[0].SubjectName != "OCT ANG BOON KENG" {
		t.Errorf("unexpected status %+v", statuses[0])
	}
}

func TestUpdateGuards(t *testing.T) {
	e, st, msg := newTestEngine(t)
	seedRoster(t, st)

	// No open report at all.
	command(e, cadetAngID, "start_status")
	press(e, cadetAngID, "status_menu|update")
	press(e, cadetAngID, "update_name|0")
	if got := lastBody(t, msg); !strings.Contains(got, "No open RSO report") {
		t.Errorf("unexpected reply %q", got)
	}

	// A diagnosed record is frozen.
	if _, err := st.CreateMedicalEvent(models.MedicalEvent{
		SubjectName: "OCT CHUA LI TING", EventType: models.EventTypeRSO, Symptoms: "FEVER", Diagnosis: "FLU",
	}); err != nil {
		t.Fatalf("CreateMedicalEvent failed: %v", err)
	}
	press(e, cadetAngID, "status_menu|update")
	press(e, cadetAngID, "update_name|1")
	if got := lastBody(t, msg); !strings.Contains(got, "already has a diagnosis") {
		t.Errorf("unexpected reply %q", got)
	}
}

func TestDuplicateUpdateGuard(t *testing.T) {
	e, st, msg := newTestEngine(t)
	seedRoster(t, st)
	if _, err := st.CreateMedicalEvent(models.MedicalEvent{
		SubjectName: "OCT ANG BOON KENG", EventType: models.EventTypeRSO, Symptoms: "FEVER",
	}); err != nil {
		t.Fatalf("CreateMedicalEvent failed: %v", err)
	}

	command(e, cadetAngID, "start_status")
	press(e, cadetAngID, "status_menu|update")
	press(e, cadetAngID, "update_name|0")
	send(e, cadetAngID, "flu")
	press(e, cadetAngID, "mc_days|1")
	press(e, cadetAngID, "confirm")

	press(e, cadetAngID, "continue_reporting")
	press(e, cadetAngID, "status_menu|update")
	press(e, cadetAngID, "update_name|0")
	if got := lastBody(t, msg); !strings.Contains(got, "already in the batch") {
		t.Errorf("unexpected reply %q", got)
	}
}

func TestRSIUpdateNoStatusGiven(t *testing.T) {
	e, st, msg := newTestEngine(t)
	seedRoster(t, st)
	if _, err := st.CreateMedicalEvent(models.MedicalEvent{
		SubjectName: "OCT WONG JUN JIE", EventType: models.EventTypeRSI, Symptoms: "SPRAINED ANKLE",
	}); err != nil {
		t.Fatalf("CreateMedicalEvent failed: %v", err)
	}

	command(e, cadetAngID, "start_status")
	press(e, cadetAngID, "status_menu|rsi_update")
	press(e, cadetAngID, "rsi_update_name|2")
	send(e, cadetAngID, "mild sprain")
	press(e, cadetAngID, "rsi_days|0")

	if got := lastBody(t, msg); !strings.Contains(got, "STATUS: N/A") {
		t.Fatalf("unexpected preview %q", got)
	}
	press(e, cadetAngID, "confirm_rsi_update")
	press(e, cadetAngID, "done_reporting")
	press(e, cadetAngID, "send_batch_ic")

	if got := len(st.Statuses()); got != 0 {
		t.Errorf("no status row expected for N/A, got %d", got)
	}
}

func TestRSIUpdateLightDuty(t *testing.T) {
	e, st, msg := newTestEngine(t)
	seedRoster(t, st)
	if _, err := st.CreateMedicalEvent(models.MedicalEvent{
		SubjectName: "OCT ANG BOON KENG", EventType: models.EventTypeRSI, Symptoms: "KNEE PAIN",
	}); err != nil {
		t.Fatalf("CreateMedicalEvent failed: %v", err)
	}

	command(e, cadetAngID, "start_status")
	press(e, cadetAngID, "status_menu|rsi_update")
	press(e, cadetAngID, "rsi_update_name|0")
	send(e, cadetAngID, "patellar strain")
	press(e, cadetAngID, "rsi_days|2")
	if got := lastBody(t, msg); !strings.Contains(got, "Select status type") {
		t.Fatalf("unexpected reply %q", got)
	}
	press(e, cadetAngID, "rsi_type|LD")

	if got := lastBody(t, msg); !strings.Contains(got, "STATUS: 2 DAYS LIGHT DUTY (290826-300826)") {
		t.Errorf("unexpected preview %q", got)
	}
}

func TestCustomDayCount(t *testing.T) {
	e, st, msg := newTestEngine(t)
	seedRoster(t, st)
	if _, err := st.CreateMedicalEvent(models.MedicalEvent{
		SubjectName: "OCT ANG BOON KENG", EventType: models.EventTypeRSO, Symptoms: "FEVER",
	}); err != nil {
		t.Fatalf("CreateMedicalEvent failed: %v", err)
	}

	command(e, cadetAngID, "start_status")
	press(e, cadetAngID, "status_menu|update")
	press(e, cadetAngID, "update_name|0")
	send(e, cadetAngID, "dengue")
	press(e, cadetAngID, "mc_days|other")
	send(e, cadetAngID, "400")
	if got := lastBody(t, msg); !strings.Contains(got, "between 1 and 365") {
		t.Errorf("unexpected reply %q", got)
	}
	send(e, cadetAngID, "14")
	if got := lastBody(t, msg); !strings.Contains(got, "STATUS: 14 DAYS MC (290826-110926)") {
		t.Errorf("unexpected preview %q", got)
	}
}

func TestMAReportFlow(t *testing.T) {
	e, st, msg := newTestEngine(t)
	seedRoster(t, st)

	command(e, cadetAngID, "start_status")
	press(e, cadetAngID, "status_menu|ma_report")
	press(e, cadetAngID, "name|0")
	send(e, cadetAngID, "dental review")
	send(e, cadetAngID, "medical centre")
	send(e, cadetAngID, "280826")
	if got := lastBody(t, msg); !strings.Contains(got, "cannot be in the past") {
		t.Errorf("unexpected reply %q", got)
	}
	send(e, cadetAngID, "300826")
	send(e, cadetAngID, "0900")

	preview := lastBody(t, msg)
	for _, want := range []string{
		"OCT ANG BOON KENG",
		"NAME: DENTAL REVIEW",
		"LOCATION: MEDICAL CENTRE",
		"DATE: 300826",
		"TIME OF APPOINTMENT: 0900H",
	} {
		if !strings.Contains(preview, want) {
			t.Errorf("preview missing %q:\n%s", want, preview)
		}
	}

	press(e, cadetAngID, "confirm_ma")
	press(e, cadetAngID, "done_reporting")
	press(e, cadetAngID, "send_batch_ic")

	events, err := st.EventsBySubject("OCT ANG BOON KENG", models.EventTypeMA)
	if err != nil {
		t.Fatalf("EventsBySubject failed: %v", err)
	}
	if len(events) != 1 || events[0].Appointment != "DENTAL REVIEW" || events[0].ApptTime != "0900" {
		t.Fatalf("MA report not persisted: %+v", events)
	}
}

func TestMAUpdateFlow(t *testing.T) {
	e, st, msg := newTestEngine(t)
	seedRoster(t, st)
	if _, err := st.CreateMedicalEvent(models.MedicalEvent{
		SubjectName: "OCT ANG BOON KENG", EventType: models.EventTypeMA,
		Appointment: "PHYSIO", Location: "MEDICAL CENTRE", ApptDate: "300826", ApptTime: "1000",
	}); err != nil {
		t.Fatalf("CreateMedicalEvent failed: %v", err)
	}

	command(e, cadetAngID, "start_status")
	press(e, cadetAngID, "status_menu|ma_update")
	press(e, cadetAngID, "update_ma_name|0")
	if got := lastBody(t, msg); !strings.Contains(got, "Select the endorsing instructor") {
		t.Fatalf("unexpected reply %q", got)
	}
	press(e, cadetAngID, "instructor|0")

	preview := lastBody(t, msg)
	if !strings.Contains(preview, "ENDORSED BY: ") {
		t.Fatalf("preview missing endorsement:\n%s", preview)
	}

	press(e, cadetAngID, "confirm_ma_update")
	press(e, cadetAngID, "done_reporting")
	press(e, cadetAngID, "send_batch_ic")

	events, err := st.EventsBySubject("OCT ANG BOON KENG", models.EventTypeMA)
	if err != nil {
		t.Fatalf("EventsBySubject failed: %v", err)
	}
	if len(events) != 1 || events[0].EndorsedBy == "" {
		t.Fatalf("endorsement not persisted: %+v", events)
	}
}

func TestBatchSummaryGroupsByFamily(t *testing.T) {
	pending := []models.PendingReport{
		{Kind: models.KindRSOReport, Name: "OCT ANG BOON KENG", Symptoms: "FEVER"},
		{Kind: models.KindRSIReport, Name: "OCT CHUA LI TING", Symptoms: "KNEE PAIN"},
		{Kind: models.KindMAReport, Name: "OCT WONG JUN JIE", Appointment: "DENTAL", Location: "MEDICAL CENTRE", ApptDate: "300826", ApptTime: "0900"},
	}
	got := formatPendingReports(pending)
	for _, want := range []string{"RSO\n1. OCT ANG BOON KENG", "RSI\n1. OCT CHUA LI TING", "MA\n1. OCT WONG JUN JIE"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
}
