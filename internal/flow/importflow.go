package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/weelysontheDISease/Telebot-V1/internal/importer"
	"github.com/weelysontheDISease/Telebot-V1/internal/models"
	"github.com/weelysontheDISease/Telebot-V1/internal/session"
)

func (e *Engine) startImport(ctx context.Context, user *models.User) {
	sess := e.sessions.Begin(user.PlatformID, session.ModeImport)
	sess.Import = &session.ImportDraft{}

	e.sendPrompt(ctx, user.PlatformID, models.Prompt{
		Body: "📥 User import\nHow should the CSV be applied?",
		Keyboard: [][]models.Button{
			{{Label: "➕ Add / update users", Data: models.JoinPayload("import_user", "fresh")}},
			{{Label: "🗑️ Clear all data first", Data: models.JoinPayload("import_user", "clear")}},
			{{Label: "❌ Cancel", Data: "cancel"}},
		},
	})
}

func (e *Engine) importChoice(ctx context.Context, user *models.User, arg string) {
	sess := e.sessions.Get(user.PlatformID)
	if sess == nil || sess.Mode != session.ModeImport || sess.Import == nil {
		e.send(ctx, user.PlatformID, "❌ No active import session. Use /import_user.")
		return
	}
	if !e.isAdmin(user) {
		e.send(ctx, user.PlatformID, "❌ You are not authorised.")
		return
	}
	e.sessions.Touch(user.PlatformID)

	switch arg {
	case "fresh":
		sess.Import.ClearFirst = false
	case "clear":
		sess.Import.ClearFirst = true
	default:
		e.send(ctx, user.PlatformID, "❌ Unknown import option.")
		return
	}
	sess.Import.AwaitingDocument = true

	body := "Upload the roster CSV file (max 1 MiB)."
	if sess.Import.ClearFirst {
		body = "⚠️ All existing users and medical records will be deleted first.\n\n" + body
	}
	e.send(ctx, user.PlatformID, body)
}

func (e *Engine) importDocument(ctx context.Context, user *models.User, sess *session.Session, ev models.Event) {
	if !e.isAdmin(user) {
		e.send(ctx, user.PlatformID, "❌ You are not authorised.")
		return
	}
	doc := ev.Document
	if doc == nil {
		return
	}
	if !strings.HasSuffix(strings.ToLower(doc.FileName), ".csv") {
		e.send(ctx, user.PlatformID, "❌ Please upload a .csv file.")
		return
	}
	if doc.FileSize > models.MaxImportFileSize {
		e.send(ctx, user.PlatformID, "❌ File is too large. The limit is 1 MiB.")
		return
	}

	data, err := e.msg.FetchDocument(ctx, *doc)
	if err != nil {
		slog.Error("Import download failed", "error", err, "file", doc.FileName)
		e.send(ctx, user.PlatformID, "❌ Could not download the file. Please try again.")
		return
	}

	res, err := importer.New(e.store).Import(data, sess.Import.ClearFirst)
	if err != nil {
		slog.Error("Import failed", "error", err, "file", doc.FileName)
		e.send(ctx, user.PlatformID, fmt.Sprintf("❌ Import failed: %v", err))
		return
	}

	e.sessions.Clear(user.PlatformID)

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Import complete.\n\nRows processed: %d\nUsers imported: %d", res.Processed, res.Imported)
	if len(res.Errors) > 0 {
		fmt.Fprintf(&b, "\nRows skipped: %d\n", len(res.Errors))
		for _, msg := range res.Errors {
			b.WriteString("\n• " + msg)
		}
	}
	e.send(ctx, user.PlatformID, b.String())
}
