package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/weelysontheDISease/Telebot-V1/internal/models"
	"github.com/weelysontheDISease/Telebot-V1/internal/session"
	"github.com/weelysontheDISease/Telebot-V1/internal/validate"
)

func (e *Engine) startMovement(ctx context.Context, user *models.User) {
	names, err := e.store.ListCadetNames()
	if err != nil {
		slog.Error("Movement cadet list failed", "error", err)
		e.send(ctx, user.PlatformID, "❌ Could not load the name list. Please try again.")
		return
	}
	if len(names) == 0 {
		e.send(ctx, user.PlatformID, "❌ No cadets found. Please import user data first.")
		return
	}

	sess := e.sessions.Begin(user.PlatformID, session.ModeMovement)
	sess.CadetNames = names
	sess.Movement = &session.MovementDraft{Selected: make(map[string]bool)}

	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body:     "🚶 Movement mode started.\nSelect personnel moving:",
		Keyboard: movementNameKeyboard(names, sess.Movement.Selected),
	})
}

func movementNameKeyboard(names []string, selected map[string]bool) [][]models.Button {
	var rows [][]models.Button
	for _, n := range names {
		prefix := "⬜"
		if selected[n] {
			prefix = "☑️"
		}
		rows = append(rows, []models.Button{{Label: prefix + " " + n, Data: models.JoinPayload("mov:name", n)}})
	}
	rows = append(rows, []models.Button{{Label: "✅ Done Selecting", Data: "mov:done"}})
	return rows
}

func locationKeyboard(locations []string, key string) [][]models.Button {
	var rows [][]models.Button
	for _, loc := range locations {
		rows = append(rows, []models.Button{{Label: loc, Data: models.JoinPayload(key, loc)}})
	}
	return rows
}

func (e *Engine) movementSession(ctx context.Context, user *models.User) *session.Session {
	sess := e.sessions.Get(user.PlatformID)
	if sess == nil || sess.Mode != session.ModeMovement || sess.Movement == nil {
		e.send(ctx, user.PlatformID, "❌ No active movement session. Use /start_movement.")
		return nil
	}
	e.sessions.Touch(user.PlatformID)
	return sess
}

func (e *Engine) movementToggleName(ctx context.Context, user *models.User, name string) {
	sess := e.movementSession(ctx, user)
	if sess == nil {
		return
	}

	if sess.Movement.Selected[name] {
		delete(sess.Movement.Selected, name)
	} else {
		sess.Movement.Selected[name] = true
	}

	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body:     "Select personnel moving:",
		Keyboard: movementNameKeyboard(sess.CadetNames, sess.Movement.Selected),
	})
}

func (e *Engine) movementDoneSelecting(ctx context.Context, user *models.User) {
	sess := e.movementSession(ctx, user)
	if sess == nil {
		return
	}
	if len(sess.Movement.Selected) == 0 {
		e.send(ctx, user.PlatformID, "Select at least one name!")
		return
	}
	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body:     "Select movement FROM:",
		Keyboard: locationKeyboard(e.cfg.Locations, "mov:from"),
	})
}

func (e *Engine) movementFrom(ctx context.Context, user *models.User, loc string) {
	sess := e.movementSession(ctx, user)
	if sess == nil {
		return
	}
	sess.Movement.From = loc
	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body:     "Select movement TO:",
		Keyboard: locationKeyboard(e.cfg.Locations, "mov:to"),
	})
}

func (e *Engine) movementTo(ctx context.Context, user *models.User, loc string) {
	sess := e.movementSession(ctx, user)
	if sess == nil {
		return
	}
	// Equality is checked on the canonical catalog strings.
	if strings.EqualFold(loc, sess.Movement.From) {
		e.send(ctx, user.PlatformID, "FROM and TO cannot be the same!")
		return
	}
	sess.Movement.To = loc
	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body: "Select movement time:",
		Keyboard: [][]models.Button{
			{{Label: "⏱ Use current time", Data: "mov:time|auto"}},
			{{Label: "⌨️ Enter time manually", Data: "mov:time|manual"}},
		},
	})
}

func (e *Engine) movementTimeChoice(ctx context.Context, user *models.User, choice string) {
	sess := e.movementSession(ctx, user)
	if sess == nil {
		return
	}
	if choice == "auto" {
		sess.Movement.Time = e.now().Format("1504")
		e.movementPreview(ctx, user, sess)
		return
	}
	sess.Movement.AwaitingTime = true
	e.send(ctx, user.PlatformID, "Enter time in HHMM (24h):")
}

func (e *Engine) movementManualTime(ctx context.Context, user *models.User, sess *session.Session, text string) {
	if sess.Movement == nil || !sess.Movement.AwaitingTime {
		return
	}
	value := strings.TrimSpace(text)
	if !validate.IsValid24hTime(value) {
		e.send(ctx, user.PlatformID, "❌ Invalid time. Use HHMM.")
		return
	}
	sess.Movement.AwaitingTime = false
	sess.Movement.Time = value
	e.movementPreview(ctx, user, sess)
}

// buildMovementMessage renders the relayed movement report.
func buildMovementMessage(selected map[string]bool, from, to, timeHHMM string) string {
	names := make([]string, 0, len(selected))
	for n := range selected {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Dear Instructors,\n\n")
	for i, n := range names {
		fmt.Fprintf(&b, "%d. %s\n", i+1, n)
	}
	fmt.Fprintf(&b, "\nMOVEMENT FROM %s TO %s @%sHRS", from, to, timeHHMM)
	return b.String()
}

func (e *Engine) movementPreview(ctx context.Context, user *models.User, sess *session.Session) {
	msg := buildMovementMessage(sess.Movement.Selected, sess.Movement.From, sess.Movement.To, sess.Movement.Time)
	sess.Movement.Preview = msg

	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body: "📋 Preview Movement Report\n\n" + msg,
		Keyboard: [][]models.Button{{
			{Label: "✅ Confirm & Send", Data: "mov:confirm"},
			{Label: "❌ Cancel", Data: "mov:cancel"},
		}},
	})
}

func (e *Engine) movementConfirm(ctx context.Context, user *models.User) {
	sess := e.movementSession(ctx, user)
	if sess == nil {
		return
	}
	if sess.Movement.Preview == "" {
		e.send(ctx, user.PlatformID, "❌ No movement data found. Please start again with /start_movement.")
		return
	}

	msg := sess.Movement.Preview
	names := make([]string, 0, len(sess.Movement.Selected))
	for n := range sess.Movement.Selected {
		names = append(names, n)
	}
	sort.Strings(names)

	if err := e.store.LogMovement(models.MovementLog{
		Names:        strings.Join(names, ", "),
		FromLocation: sess.Movement.From,
		ToLocation:   sess.Movement.To,
		Time:         sess.Movement.Time,
		CreatedBy:    user.ID,
	}); err != nil {
		slog.Error("Movement log failed", "error", err)
	}

	if _, err := e.store.EnqueueRelay(models.DestMovement, msg); err != nil {
		slog.Error("Movement relay enqueue failed", "error", err)
		e.send(ctx, user.PlatformID, "❌ Could not queue the movement report. Please try again.")
		return
	}
	e.notifyAdmins(ctx, "📣 Movement report:\n\n"+msg)

	e.sessions.Clear(user.PlatformID)
	e.send(ctx, user.PlatformID, "✅ Movement report sent.")
}
