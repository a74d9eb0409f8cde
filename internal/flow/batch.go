package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/weelysontheDISease/Telebot-V1/internal/models"
	"github.com/weelysontheDISease/Telebot-V1/internal/session"
)

func (e *Engine) batchSession(ctx context.Context, user *models.User) *session.Session {
	sess := e.sessions.Get(user.PlatformID)
	if sess == nil {
		e.send(ctx, user.PlatformID, "❌ No active report session. Use /start_status.")
		return nil
	}
	e.sessions.Touch(user.PlatformID)
	return sess
}

// batchContinue re-enters the same report flow's name picker with the
// batch intact. Without a kind it falls back to the report-type menu.
func (e *Engine) batchContinue(ctx context.Context, user *models.User, arg string) {
	sess := e.batchSession(ctx, user)
	if sess == nil {
		return
	}
	sess.Medical = nil
	if models.IsValidReportKind(models.ReportKind(arg)) {
		e.statusMenuChoice(ctx, user, arg)
		return
	}
	e.sendPrompt(ctx, user.PlatformID, statusMenuPrompt())
}

// batchDone closes the entry loop and shows the accumulated batch for a
// final send/cancel decision.
func (e *Engine) batchDone(ctx context.Context, user *models.User) {
	sess := e.batchSession(ctx, user)
	if sess == nil {
		return
	}
	if len(sess.Pending) == 0 {
		e.sessions.Clear(user.PlatformID)
		e.send(ctx, user.PlatformID, "All done! Use /start_status to report again.")
		return
	}

	sess.BatchSummary = formatPendingReports(sess.Pending)
	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body: sess.BatchSummary,
		Keyboard: [][]models.Button{{
			{Label: "📤 Send to IC group", Data: "send_batch_ic"},
			{Label: "❌ Cancel", Data: "cancel_batch_send"},
		}},
	})
}

// formatPendingReports renders the batch grouped by report family, each
// section numbered independently.
func formatPendingReports(pending []models.PendingReport) string {
	sections := []struct {
		header string
		types  string
	}{
		{"RSO", models.EventTypeRSO},
		{"RSI", models.EventTypeRSI},
		{"MA", models.EventTypeMA},
	}

	var b strings.Builder
	for _, sec := range sections {
		n := 0
		for _, r := range pending {
			if r.Kind.EventType() != sec.types {
				continue
			}
			n++
			if n == 1 {
				if b.Len() > 0 {
					b.WriteString("\n")
				}
				b.WriteString(sec.header + "\n")
			}
			if sec.types == models.EventTypeMA {
				fmt.Fprintf(&b, "%d. %s\nNAME: %s\nLOCATION: %s\nDATE: %s\nTIME OF APPOINTMENT: %sH\n",
					n, r.Name, r.Appointment, r.Location, r.ApptDate, r.ApptTime)
				if r.Instructor != "" {
					fmt.Fprintf(&b, "ENDORSED BY: %s\n", r.Instructor)
				}
			} else {
				fmt.Fprintf(&b, "%d. %s\nSYMPTOMS: %s\nDIAGNOSIS: %s\nSTATUS: %s\n",
					n, r.Name, r.Symptoms, r.Diagnosis, r.Status)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// batchSend persists the whole batch atomically, then queues the summary
// for relay. A relay failure after persistence never re-persists.
func (e *Engine) batchSend(ctx context.Context, user *models.User) {
	sess := e.batchSession(ctx, user)
	if sess == nil {
		return
	}
	if sess.BatchSummary == "" {
		e.send(ctx, user.PlatformID, "No batch summary found to send.")
		return
	}

	if !sess.BatchPersisted {
		if err := e.store.PersistPendingReports(sess.Pending, e.now()); err != nil {
			slog.Error("Batch persistence failed", "error", err, "userID", user.ID, "reports", len(sess.Pending))
			e.send(ctx, user.PlatformID, "❌ Could not save the batch. Nothing was recorded. Please try again.")
			return
		}
		sess.BatchPersisted = true
	}

	if _, err := e.store.EnqueueRelay(models.DestParadeState, sess.BatchSummary); err != nil {
		slog.Error("Batch relay enqueue failed", "error", err, "userID", user.ID)
		e.send(ctx, user.PlatformID, "❌ Saved, but could not queue the summary. Press send again to retry.")
		return
	}

	e.sessions.Clear(user.PlatformID)
	e.send(ctx, user.PlatformID, "✅ Sent to IC group.")
}

func (e *Engine) batchCancel(ctx context.Context, user *models.User) {
	e.sessions.Clear(user.PlatformID)
	e.send(ctx, user.PlatformID, "Cancelled. Batch not sent to IC group.")
}
