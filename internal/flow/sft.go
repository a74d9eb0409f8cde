package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/weelysontheDISease/Telebot-V1/internal/models"
	"github.com/weelysontheDISease/Telebot-V1/internal/session"
)

func (e *Engine) startSFT(ctx context.Context, user *models.User) {
	window, err := e.store.SFTWindow()
	if err != nil {
		slog.Error("SFT window lookup failed", "error", err)
		e.send(ctx, user.PlatformID, "❌ Could not check the SFT window. Please try again.")
		return
	}
	if window == nil {
		e.send(ctx, user.PlatformID, "❌ SFT is not opened yet. Please wait for an instructor to set the timing.")
		return
	}

	sess := e.sessions.Begin(user.PlatformID, session.ModeSFT)
	sess.SFT = &session.SFTDraft{}

	var rows [][]models.Button
	for i, a := range e.cfg.Activities {
		rows = append(rows, []models.Button{{
			Label: a.Name + " @ " + a.Location,
			Data:  models.JoinPayload("sft:activity", strconv.Itoa(i)),
		}})
	}
	rows = append(rows, []models.Button{{Label: "❌ Cancel", Data: "sft:cancel"}})

	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body:     "🏋️ SFT mode started.\nSelect your activity:",
		Keyboard: rows,
	})
}

func (e *Engine) quitSFT(ctx context.Context, user *models.User) {
	removed, err := e.store.RemoveSFTSubmission(user.ID)
	if err != nil {
		slog.Error("SFT quit failed", "error", err, "userID", user.ID)
		e.send(ctx, user.PlatformID, "❌ Could not remove your submission. Please try again.")
		return
	}
	if !removed {
		e.send(ctx, user.PlatformID, "ℹ️ You have no SFT submission to remove.")
		return
	}
	e.send(ctx, user.PlatformID, "✅ Your SFT submission has been removed.")
}

func (e *Engine) sftSession(ctx context.Context, user *models.User) *session.Session {
	sess := e.sessions.Get(user.PlatformID)
	if sess == nil || sess.Mode != session.ModeSFT || sess.SFT == nil {
		e.send(ctx, user.PlatformID, "❌ No active SFT session. Use /start_sft.")
		return nil
	}
	e.sessions.Touch(user.PlatformID)
	return sess
}

// timeSlots generates HHMM ticks covering [start, end] at the
// configured interval.
func (e *Engine) timeSlots(start, end string) []string {
	toMinutes := func(hhmm string) int {
		h, _ := strconv.Atoi(hhmm[:2])
		m, _ := strconv.Atoi(hhmm[2:])
		return h*60 + m
	}
	step := int(e.cfg.SlotInterval.Minutes())
	if step <= 0 {
		step = 15
	}
	var slots []string
	for t := toMinutes(start); t <= toMinutes(end); t += step {
		slots = append(slots, fmt.Sprintf("%02d%02d", t/60, t%60))
	}
	return slots
}

func timeSlotKeyboard(slots []string, key string) [][]models.Button {
	var rows [][]models.Button
	for _, t := range slots {
		rows = append(rows, []models.Button{{Label: t, Data: models.JoinPayload(key, t)}})
	}
	rows = append(rows, []models.Button{{Label: "❌ Cancel", Data: "sft:cancel"}})
	return rows
}

func (e *Engine) sftActivity(ctx context.Context, user *models.User, arg string) {
	sess := e.sftSession(ctx, user)
	if sess == nil {
		return
	}
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 0 || idx >= len(e.cfg.Activities) {
		e.send(ctx, user.PlatformID, "❌ Unknown activity. Please start again with /start_sft.")
		return
	}
	window, err := e.store.SFTWindow()
	if err != nil || window == nil {
		e.send(ctx, user.PlatformID, "❌ SFT is not opened yet.")
		return
	}

	activity := e.cfg.Activities[idx]
	sess.SFT.Activity = activity.Name
	sess.SFT.Location = activity.Location

	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body:     "Select START time:",
		Keyboard: timeSlotKeyboard(e.timeSlots(window.Start, window.End), "sft:start"),
	})
}

func (e *Engine) sftStart(ctx context.Context, user *models.User, start string) {
	sess := e.sftSession(ctx, user)
	if sess == nil {
		return
	}
	window, err := e.store.SFTWindow()
	if err != nil || window == nil {
		e.send(ctx, user.PlatformID, "❌ SFT is not opened yet.")
		return
	}
	sess.SFT.Start = start

	var after []string
	for _, t := range e.timeSlots(window.Start, window.End) {
		if t > start {
			after = append(after, t)
		}
	}
	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body:     "Select END time:",
		Keyboard: timeSlotKeyboard(after, "sft:end"),
	})
}

func (e *Engine) sftEnd(ctx context.Context, user *models.User, end string) {
	sess := e.sftSession(ctx, user)
	if sess == nil {
		return
	}
	if end <= sess.SFT.Start {
		e.send(ctx, user.PlatformID, "❌ END time must be after START time.")
		return
	}
	sess.SFT.End = end

	preview := fmt.Sprintf("📋 SFT Submission Preview\n\n%s\n%s @ %s\n%s-%s",
		user.DisplayName(), sess.SFT.Activity, sess.SFT.Location, sess.SFT.Start, sess.SFT.End)

	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body: preview,
		Keyboard: [][]models.Button{{
			{Label: "✅ Confirm & Submit", Data: "sft:confirm"},
			{Label: "❌ Cancel", Data: "sft:cancel"},
		}},
	})
}

func (e *Engine) sftConfirm(ctx context.Context, user *models.User) {
	sess := e.sftSession(ctx, user)
	if sess == nil {
		return
	}
	if sess.SFT.Activity == "" || sess.SFT.Start == "" || sess.SFT.End == "" {
		e.send(ctx, user.PlatformID, "❌ No SFT data found. Please start again with /start_sft.")
		return
	}

	err := e.store.AddSFTSubmission(models.SFTSubmission{
		UserID:   user.ID,
		UserName: user.DisplayName(),
		Activity: sess.SFT.Activity,
		Location: sess.SFT.Location,
		Start:    sess.SFT.Start,
		End:      sess.SFT.End,
		Date:     e.now().Format("02012006"),
	})
	switch {
	case errors.Is(err, models.ErrNoActiveWindow):
		e.send(ctx, user.PlatformID, "❌ SFT is not opened yet.")
		return
	case errors.Is(err, models.ErrOutsideWindow):
		e.send(ctx, user.PlatformID, "❌ Your timing falls outside the SFT window. Please start again with /start_sft.")
		return
	case err != nil:
		slog.Error("SFT submission failed", "error", err, "userID", user.ID)
		e.send(ctx, user.PlatformID, "❌ Could not save your submission. Please try again.")
		return
	}

	e.sessions.Clear(user.PlatformID)
	e.send(ctx, user.PlatformID, "✅ SFT successfully submitted.")
}
