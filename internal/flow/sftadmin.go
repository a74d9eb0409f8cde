package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/weelysontheDISease/Telebot-V1/internal/models"
	"github.com/weelysontheDISease/Telebot-V1/internal/session"
	"github.com/weelysontheDISease/Telebot-V1/internal/validate"
)

func adminPanelPrompt() models.Prompt {
	return models.Prompt{
		Body: "📋 PT Admin Panel\nChoose an action:",
		Keyboard: [][]models.Button{
			{{Label: "🕒 Set SFT Timing", Data: "ptadmin:set_timing"}},
			{{Label: "🗑️ Remove a Submission", Data: "ptadmin:remove"}},
			{{Label: "📄 Generate SFT Report", Data: "ptadmin:generate"}},
			{{Label: "❌ Close", Data: "cancel"}},
		},
	}
}

func (e *Engine) startPTAdmin(ctx context.Context, user *models.User) {
	sess := e.sessions.Begin(user.PlatformID, session.ModePTAdmin)
	sess.Admin = &session.AdminDraft{State: session.AdminStateMenu}
	e.sendPrompt(ctx, user.PlatformID, adminPanelPrompt())
}

func (e *Engine) adminSession(ctx context.Context, user *models.User) *session.Session {
	sess := e.sessions.Get(user.PlatformID)
	if sess == nil || sess.Mode != session.ModePTAdmin || sess.Admin == nil {
		e.send(ctx, user.PlatformID, "❌ No active admin session. Use /pt_admin.")
		return nil
	}
	if !e.isAdmin(user) {
		e.send(ctx, user.PlatformID, "❌ You are not authorised.")
		return nil
	}
	e.sessions.Touch(user.PlatformID)
	return sess
}

func (e *Engine) adminMenu(ctx context.Context, user *models.User) {
	sess := e.adminSession(ctx, user)
	if sess == nil {
		return
	}
	sess.Admin = &session.AdminDraft{State: session.AdminStateMenu}
	e.sendPrompt(ctx, user.PlatformID, adminPanelPrompt())
}

func (e *Engine) adminSetTiming(ctx context.Context, user *models.User) {
	sess := e.adminSession(ctx, user)
	if sess == nil {
		return
	}
	sess.Admin.State = session.AdminStateTimeRange
	e.send(ctx, user.PlatformID, "🕒 Enter SFT time range as HHMM-HHMM (e.g. 1600-1800).\n\n⚠️ Setting a new timing will clear all existing SFT submissions.")
}

func (e *Engine) adminTimeRangeText(ctx context.Context, user *models.User, sess *session.Session, text string) {
	if sess.Admin == nil || sess.Admin.State != session.AdminStateTimeRange {
		return
	}
	start, end, err := validate.ParseTimeRange(text)
	if err != nil {
		e.send(ctx, user.PlatformID, "❌ Invalid time range. Use HHMM-HHMM (e.g. 1600-1800).")
		return
	}

	window := models.SFTWindow{
		Date:  e.now().Format("02012006"),
		Start: start,
		End:   end,
	}
	if err := e.store.SetSFTWindow(window); err != nil {
		slog.Error("SFT window update failed", "error", err)
		e.send(ctx, user.PlatformID, "❌ Could not set the SFT timing. Please try again.")
		return
	}

	sess.Admin.State = session.AdminStateMenu
	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body: fmt.Sprintf("✅ PT SFT window set\n\nDate: %s\nTime: %s-%s\n\nCadets may now submit SFT.",
			formatWindowDate(window.Date), start, end),
		Keyboard: [][]models.Button{{{Label: "⬅️ Back to menu", Data: "ptadmin:menu"}}},
	})
}

// formatWindowDate renders a DDMMYYYY window date as DD/MM/YYYY.
func formatWindowDate(date string) string {
	d, err := time.Parse("02012006", date)
	if err != nil {
		return date
	}
	return d.Format("02/01/2006")
}

func (e *Engine) adminRemoveList(ctx context.Context, user *models.User) {
	sess := e.adminSession(ctx, user)
	if sess == nil {
		return
	}
	_, subs, ok := e.windowSubmissions(ctx, user)
	if !ok {
		return
	}
	if len(subs) == 0 {
		e.sendPrompt(ctx, user.PlatformID, models.Prompt{
			Body:     "ℹ️ No submissions yet.",
			Keyboard: [][]models.Button{{{Label: "⬅️ Back to menu", Data: "ptadmin:menu"}}},
		})
		return
	}

	var rows [][]models.Button
	for _, s := range subs {
		rows = append(rows, []models.Button{{
			Label: fmt.Sprintf("🗑️ %s (%s-%s)", s.UserName, s.Start, s.End),
			Data:  models.JoinPayload("ptadmin:remove_user", strconv.FormatInt(s.UserID, 10)),
		}})
	}
	rows = append(rows, []models.Button{{Label: "⬅️ Back to menu", Data: "ptadmin:menu"}})

	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body:     "Select a submission to remove:",
		Keyboard: rows,
	})
}

func (e *Engine) adminRemoveUser(ctx context.Context, user *models.User, arg string) {
	sess := e.adminSession(ctx, user)
	if sess == nil {
		return
	}
	targetID := parseInt64(arg)
	if targetID == 0 {
		e.send(ctx, user.PlatformID, "❌ Unknown submission.")
		return
	}
	removed, err := e.store.RemoveSFTSubmission(targetID)
	if err != nil {
		slog.Error("SFT submission removal failed", "error", err, "targetID", targetID)
		e.send(ctx, user.PlatformID, "❌ Could not remove the submission. Please try again.")
		return
	}
	body := "✅ Submission removed."
	if !removed {
		body = "ℹ️ Submission already removed."
	}
	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body:     body,
		Keyboard: [][]models.Button{{{Label: "⬅️ Back to menu", Data: "ptadmin:menu"}}},
	})
}

// windowSubmissions loads the active window and its submissions, turning
// a missing window into the admin-facing notice.
func (e *Engine) windowSubmissions(ctx context.Context, user *models.User) (*models.SFTWindow, []models.SFTSubmission, bool) {
	window, err := e.store.SFTWindow()
	if err != nil {
		slog.Error("SFT window lookup failed", "error", err)
		e.send(ctx, user.PlatformID, "❌ Could not check the SFT window. Please try again.")
		return nil, nil, false
	}
	if window == nil {
		e.send(ctx, user.PlatformID, "❌ No active SFT timing found. Set timing first.")
		return nil, nil, false
	}
	subs, err := e.store.SFTSubmissions(window.Date)
	if err != nil {
		slog.Error("SFT submission lookup failed", "error", err)
		e.send(ctx, user.PlatformID, "❌ Could not load submissions. Please try again.")
		return nil, nil, false
	}
	return window, subs, true
}

func (e *Engine) adminGenerate(ctx context.Context, user *models.User) {
	sess := e.adminSession(ctx, user)
	if sess == nil {
		return
	}
	_, subs, ok := e.windowSubmissions(ctx, user)
	if !ok {
		return
	}
	if len(subs) == 0 {
		e.sendPrompt(ctx, user.PlatformID, models.Prompt{
			Body:     "ℹ️ No submissions yet.",
			Keyboard: [][]models.Button{{{Label: "⬅️ Back to menu", Data: "ptadmin:menu"}}},
		})
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

	var rows [][]models.Button
	for i, name := range instructors {
		rows = append(rows, []models.Button{{
			Label: name,
			Data:  models.JoinPayload("ptadmin:pick_instructor", strconv.Itoa(i)),
		}})
	}
	rows = append(rows, []models.Button{{Label: "⬅️ Back to menu", Data: "ptadmin:menu"}})

	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body:     "Select the instructor to address:",
		Keyboard: rows,
	})
}

func (e *Engine) adminPickInstructor(ctx context.Context, user *models.User, arg string) {
	sess := e.adminSession(ctx, user)
	if sess == nil {
		return
	}
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 0 || idx >= len(sess.InstructorNames) {
		e.send(ctx, user.PlatformID, "❌ Unknown instructor. Please generate the report again.")
		return
	}
	sess.Admin.Instructor = sess.InstructorNames[idx]

	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body: "Select salutation:",
		Keyboard: [][]models.Button{{
			{Label: "Sir", Data: models.JoinPayload("ptadmin:pick_salutation", "Sir")},
			{Label: "Mdm", Data: models.JoinPayload("ptadmin:pick_salutation", "Mdm")},
		}},
	})
}

func (e *Engine) adminPickSalutation(ctx context.Context, user *models.User, arg string) {
	sess := e.adminSession(ctx, user)
	if sess == nil {
		return
	}
	if arg != "Sir" && arg != "Mdm" {
		e.send(ctx, user.PlatformID, "❌ Unknown salutation.")
		return
	}
	if sess.Admin.Instructor == "" {
		e.send(ctx, user.PlatformID, "❌ No instructor selected. Please generate the report again.")
		return
	}
	sess.Admin.Salutation = arg

	window, subs, ok := e.windowSubmissions(ctx, user)
	if !ok {
		return
	}
	summary, err := e.buildSFTSummary(*window, subs, sess.Admin.Salutation, sess.Admin.Instructor)
	if err != nil {
		var under *UnderSubscribedError
		if errors.As(err, &under) {
			e.sendPrompt(ctx, user.PlatformID, models.Prompt{
				Body:     under.Notice(),
				Keyboard: [][]models.Button{{{Label: "⬅️ Back to menu", Data: "ptadmin:menu"}}},
			})
			return
		}
		slog.Error("SFT summary build failed", "error", err)
		e.send(ctx, user.PlatformID, "❌ Could not build the report. Please try again.")
		return
	}

	sess.Admin.PendingSummary = summary
	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body: summary,
		Keyboard: [][]models.Button{{
			{Label: "📤 Send to IC chat", Data: "ptadmin:send_report"},
			{Label: "⬅️ Back to menu", Data: "ptadmin:menu"},
		}},
	})
}

// UnderSubscribedError carries the activities that block report
// generation because they fall below the minimum headcount.
type UnderSubscribedError struct {
	Min        int
	Activities []string // "Activity @ Location: N" lines
}

func (e *UnderSubscribedError) Error() string {
	return models.ErrUnderSubscribed.Error()
}

func (e *UnderSubscribedError) Unwrap() error {
	return models.ErrUnderSubscribed
}

// Notice renders the admin-facing refusal message.
func (e *UnderSubscribedError) Notice() string {
	var b strings.Builder
	fmt.Fprintf(&b, "❌ Cannot generate report. These activities have fewer than %d participants:\n", e.Min)
	for _, a := range e.Activities {
		b.WriteString("• " + a + "\n")
	}
	b.WriteString("\nAsk cadets to resubmit or remove the stray submissions first.")
	return b.String()
}

// buildSFTSummary renders the instructor-facing participation report.
// Every chosen activity must meet the minimum headcount or the whole
// report is refused.
func (e *Engine) buildSFTSummary(window models.SFTWindow, subs []models.SFTSubmission, salutation, instructor string) (string, error) {
	if len(subs) == 0 {
		return "", models.ErrEmptyBatch
	}

	type group struct {
		key  string
		subs []models.SFTSubmission
	}
	var groups []*group
	byKey := make(map[string]*group)
	for _, s := range subs {
		key := s.Activity + " @ " + s.Location
		g := byKey[key]
		if g == nil {
			g = &group{key: key}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.subs = append(g.subs, s)
	}

	var short []string
	for _, g := range groups {
		if len(g.subs) < e.cfg.MinPerActivity {
			short = append(short, fmt.Sprintf("%s: %d", g.key, len(g.subs)))
		}
	}
	if len(short) > 0 {
		return "", &UnderSubscribedError{Min: e.cfg.MinPerActivity, Activities: short}
	}

	earliest, latest := subs[0].Start, subs[0].End
	for _, s := range subs[1:] {
		if s.Start < earliest {
			earliest = s.Start
		}
		if s.End > latest {
			latest = s.End
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Good Evening %s %s, below are the cadets participating in SFT for %s from %sH to %sH.",
		salutation, instructor, formatWindowDate(window.Date), earliest, latest)

	n := 0
	for _, g := range groups {
		b.WriteString("\n\n" + g.key + ":")
		for _, s := range g.subs {
			n++
			fmt.Fprintf(&b, "\n%d. %s (%s-%s)", n, s.UserName, s.Start, s.End)
		}
	}
	return b.String(), nil
}

func (e *Engine) adminSendReport(ctx context.Context, user *models.User) {
	sess := e.adminSession(ctx, user)
	if sess == nil {
		return
	}
	if sess.Admin.PendingSummary == "" {
		e.send(ctx, user.PlatformID, "❌ No report to send. Please generate it first.")
		return
	}
	if _, err := e.store.EnqueueRelay(models.DestSFT, sess.Admin.PendingSummary); err != nil {
		slog.Error("SFT report enqueue failed", "error", err)
		e.send(ctx, user.PlatformID, "❌ Could not queue the report. Please try again.")
		return
	}
	sess.Admin.PendingSummary = ""
	sess.Admin.State = session.AdminStateMenu
	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body:     "✅ SFT report sent to IC chat.",
		Keyboard: [][]models.Button{{{Label: "⬅️ Back to menu", Data: "ptadmin:menu"}}},
	})
}
