package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/weelysontheDISease/Telebot-V1/internal/models"
	"github.com/weelysontheDISease/Telebot-V1/internal/session"
	"github.com/weelysontheDISease/Telebot-V1/internal/validate"
)

const paradeSeparator = "--------------------------------------------------------"

func (e *Engine) startParadeState(ctx context.Context, user *models.User) {
	count, err := e.store.CountActiveCadets()
	if err != nil {
		slog.Error("Cadet count failed", "error", err)
		e.send(ctx, user.PlatformID, "❌ Could not load the roster. Please try again.")
		return
	}
	if count == 0 {
		e.send(ctx, user.PlatformID, "❌ No cadets found. Please import user data first.")
		return
	}

	sess := e.sessions.Begin(user.PlatformID, session.ModeParade)
	sess.Parade = &session.ParadeDraft{AwaitingCount: true}
	e.send(ctx, user.PlatformID, fmt.Sprintf("Enter number of personnel currently out of camp (0-%d):", count))
}

func (e *Engine) paradeCountText(ctx context.Context, user *models.User, sess *session.Session, text string) {
	if sess.Parade == nil || !sess.Parade.AwaitingCount {
		return
	}
	input := strings.TrimSpace(text)
	if !validate.IsDigits(input) {
		e.send(ctx, user.PlatformID, "❌ Enter digits only.")
		return
	}
	outOfCamp, err := strconv.Atoi(input)
	if err != nil {
		e.send(ctx, user.PlatformID, "❌ Enter digits only.")
		return
	}
	total, err := e.store.CountActiveCadets()
	if err != nil {
		slog.Error("Cadet count failed", "error", err)
		e.send(ctx, user.PlatformID, "❌ Could not load the roster. Please try again.")
		return
	}
	if outOfCamp > total {
		e.send(ctx, user.PlatformID, fmt.Sprintf("❌ Out-of-camp count cannot exceed total strength of %d.", total))
		return
	}

	body, err := e.buildParadeState(total, outOfCamp)
	if err != nil {
		slog.Error("Parade state build failed", "error", err)
		e.send(ctx, user.PlatformID, "❌ Could not build the parade state. Please try again.")
		return
	}

	sess.Parade.AwaitingCount = false
	sess.Parade.Preview = body
	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body: body,
		Keyboard: [][]models.Button{{
			{Label: "📤 Send", Data: "parade:send"},
			{Label: "❌ Cancel", Data: "parade:cancel"},
		}},
	})
}

// buildParadeState renders the full parade state as of now for the
// given roster strength and out-of-camp headcount.
func (e *Engine) buildParadeState(total, outOfCamp int) (string, error) {
	now := e.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.cfg.Timezone)

	events, err := e.store.ListMedicalEvents()
	if err != nil {
		return "", err
	}
	statuses, err := e.store.ActiveMedicalStatuses(now)
	if err != nil {
		return "", err
	}

	var ma, rso, rsi []models.MedicalEvent
	for _, ev := range events {
		switch ev.EventType {
		case models.EventTypeMA:
			if d, err := time.ParseInLocation("020106", ev.ApptDate, e.cfg.Timezone); err == nil && !d.Before(today) {
				ma = append(ma, ev)
			}
		case models.EventTypeRSO:
			if !ev.Diagnosed() {
				rso = append(rso, ev)
			}
		case models.EventTypeRSI:
			if !ev.Diagnosed() {
				rsi = append(rsi, ev)
			}
		}
	}

	var mc, ld []models.MedicalStatus
	for _, st := range statuses {
		if st.StatusType == models.StatusTypeMC {
			mc = append(mc, st)
		} else {
			ld = append(ld, st)
		}
	}

	current := total - outOfCamp

	var b strings.Builder
	fmt.Fprintf(&b, "DIS WING 14/26 PRE-MDST PARADE STATE %s, %sH\n", now.Format("020106"), now.Format("1504"))
	b.WriteString(paradeSeparator + "\n")
	fmt.Fprintf(&b, "TOTAL STRENGTH: %02d\n", total)
	fmt.Fprintf(&b, "CURRENT STRENGTH: %02d\n", current)
	fmt.Fprintf(&b, "OUT OF CAMP: %02d\n", outOfCamp)
	b.WriteString(paradeSeparator + "\n")

	fmt.Fprintf(&b, "MA: %02d\n", len(ma))
	for i, ev := range ma {
		fmt.Fprintf(&b, "%d. %s - %s @ %s, %s, %sH\n", i+1, ev.SubjectName, ev.Appointment, ev.Location, ev.ApptDate, ev.ApptTime)
	}
	b.WriteString(paradeSeparator + "\n")

	fmt.Fprintf(&b, "RSI: %02d\n", len(rsi))
	for i, ev := range rsi {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, ev.SubjectName, ev.Symptoms)
	}
	b.WriteString(paradeSeparator + "\n")

	fmt.Fprintf(&b, "RSO: %02d\n", len(rso))
	for i, ev := range rso {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, ev.SubjectName, ev.Symptoms)
	}
	b.WriteString(paradeSeparator + "\n")

	fmt.Fprintf(&b, "MC: %02d\n", len(mc))
	for i, st := range mc {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, st.SubjectName, st.Description)
	}
	b.WriteString(paradeSeparator + "\n")

	b.WriteString("OTHERS: XX\n")
	b.WriteString(paradeSeparator + "\n")

	fmt.Fprintf(&b, "STATUSES: %02d\n", len(ld))
	for i, st := range ld {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, st.SubjectName, st.Description)
	}
	b.WriteString(paradeSeparator + "\n")

	b.WriteString("PERMANENT STATUS: XX")

	body := b.String()
	if len(body) > models.MaxMessageLength {
		body = body[:models.MaxMessageLength-len(models.TruncationMarker)] + models.TruncationMarker
	}
	return body, nil
}

func (e *Engine) paradeSend(ctx context.Context, user *models.User) {
	sess := e.sessions.Get(user.PlatformID)
	if sess == nil || sess.Mode != session.ModeParade || sess.Parade == nil || sess.Parade.Preview == "" {
		e.send(ctx, user.PlatformID, "❌ No parade state to send. Use /start_parade_state.")
		return
	}
	e.sessions.Touch(user.PlatformID)

	if _, err := e.store.EnqueueRelay(models.DestParadeState, sess.Parade.Preview); err != nil {
		slog.Error("Parade state enqueue failed", "error", err)
		e.send(ctx, user.PlatformID, "❌ Could not queue the parade state. Please try again.")
		return
	}
	e.sessions.Clear(user.PlatformID)
	e.send(ctx, user.PlatformID, "✅ Parade state sent.")
}
