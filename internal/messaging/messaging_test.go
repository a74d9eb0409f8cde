package messaging

import (
	"context"
	"testing"

	"github.com/weelysontheDISease/Telebot-V1/internal/models"
)

func TestBuildKeyboard(t *testing.T) {
	rows := [][]models.Button{
		{{Label: "HQ", Data: "mov:from|HQ"}, {Label: "Mess", Data: "mov:from|Mess"}},
		{{Label: "Cancel", Data: "mov:cancel"}},
	}
	kb := buildKeyboard(rows)
	if len(kb.InlineKeyboard) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(kb.InlineKeyboard))
	}
	if len(kb.InlineKeyboard[0]) != 2 || len(kb.InlineKeyboard[1]) != 1 {
		t.Errorf("row shapes wrong: %v", kb.InlineKeyboard)
	}
	btn := kb.InlineKeyboard[0][1]
	if btn.Text != "Mess" || btn.CallbackData == nil || *btn.CallbackData != "mov:from|Mess" {
		t.Errorf("button not mapped: %+v", btn)
	}
}

func TestMockServiceRecords(t *testing.T) {
	ctx := context.Background()
	m := NewMockService()

	if err := m.SendMessage(ctx, 42, "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := m.Relay(ctx, models.DestMovement, "report"); err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if err := m.NotifyAdmins(ctx, []int64{1, 2}, "ping"); err != nil {
		t.Fatalf("NotifyAdmins: %v", err)
	}

	if last := m.LastMessage(); last == nil || last.UserID != 42 || last.Prompt.Body != "hello" {
		t.Errorf("message not recorded: %+v", last)
	}
	relays := m.Relays()
	if len(relays) != 1 || relays[0].Dest != models.DestMovement {
		t.Errorf("relay not recorded: %v", relays)
	}
	if n := m.Notifications(); len(n) != 1 || len(n[0]) != 2 {
		t.Errorf("notification not recorded: %v", n)
	}

	m.Reset()
	if m.LastMessage() != nil || len(m.Relays()) != 0 {
		t.Error("Reset did not clear recorded traffic")
	}
}

func TestMockServiceDocuments(t *testing.T) {
	ctx := context.Background()
	m := NewMockService()
	m.AddDocument("file-1", []byte("full_name,rank\n"))

	data, err := m.FetchDocument(ctx, models.DocumentRef{FileID: "file-1"})
	if err != nil {
		t.Fatalf("FetchDocument: %v", err)
	}
	if string(data) != "full_name,rank\n" {
		t.Errorf("unexpected document body %q", data)
	}

	if _, err := m.FetchDocument(ctx, models.DocumentRef{FileID: "missing"}); err == nil {
		t.Error("expected error for unknown document")
	}
}
