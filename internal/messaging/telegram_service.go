package messaging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/weelysontheDISease/Telebot-V1/internal/models"
)

// Constants for TelegramService configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for the event channel
	DefaultChannelBufferSize = 100
	// DefaultUpdateTimeout defines the long-poll timeout in seconds
	DefaultUpdateTimeout = 60
	// DefaultFetchTimeout bounds document downloads
	DefaultFetchTimeout = 30 * time.Second
)

// Compile-time check that TelegramService implements Service.
var _ Service = (*TelegramService)(nil)

// TelegramService implements Service on the Telegram Bot API.
type TelegramService struct {
	bot        *tgbotapi.BotAPI
	destChats  map[models.Destination]int64
	events     chan models.Event
	done       chan struct{}
	httpClient *http.Client
}

// NewTelegramService creates a service for the given bot token. destChats
// maps each relay destination to the group chat it posts into.
func NewTelegramService(token string, destChats map[models.Destination]int64) (*TelegramService, error) {
	slog.Debug("NewTelegramService invoked", "destinations", len(destChats))
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		slog.Error("Failed to create Telegram bot", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)

	return &TelegramService{
		bot:        bot,
		destChats:  destChats,
		events:     make(chan models.Event, DefaultChannelBufferSize),
		done:       make(chan struct{}),
		httpClient: &http.Client{Timeout: DefaultFetchTimeout},
	}, nil
}

// Start begins polling Telegram for updates and translating them to events.
func (s *TelegramService) Start(ctx context.Context) error {
	slog.Debug("TelegramService Start invoked")
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = DefaultUpdateTimeout
	updates := s.bot.GetUpdatesChan(cfg)

	go func() {
		defer close(s.events)
		for {
			select {
			case <-ctx.Done():
				slog.Debug("TelegramService update loop stopped by context")
				return
			case <-s.done:
				slog.Debug("TelegramService update loop stopped")
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				s.handleUpdate(update)
			}
		}
	}()
	slog.Info("TelegramService started")
	return nil
}

func (s *TelegramService) handleUpdate(update tgbotapi.Update) {
	ev, ok := s.translateUpdate(update)
	if !ok {
		return
	}
	select {
	case s.events <- ev:
	default:
		slog.Warn("TelegramService event channel full, dropping event", "userID", ev.UserID, "kind", ev.Kind)
	}
}

func (s *TelegramService) translateUpdate(update tgbotapi.Update) (models.Event, bool) {
	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		// Acknowledge the press so the client stops its spinner.
		if _, err := s.bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			slog.Debug("TelegramService callback ack failed", "error", err)
		}
		return models.Event{
			UserID:   cq.From.ID,
			Username: cq.From.UserName,
			Kind:     models.EventCallback,
			Data:     cq.Data,
			Time:     time.Now().Unix(),
		}, true
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil {
			return models.Event{}, false
		}
		ev := models.Event{
			UserID:   msg.From.ID,
			Username: msg.From.UserName,
			Time:     msg.Time().Unix(),
		}
		switch {
		case msg.Document != nil:
			ev.Kind = models.EventDocument
			ev.Document = &models.DocumentRef{
				FileID:   msg.Document.FileID,
				FileName: msg.Document.FileName,
				FileSize: int64(msg.Document.FileSize),
			}
		case msg.IsCommand():
			ev.Kind = models.EventCommand
			ev.Command = msg.Command()
			ev.Text = msg.CommandArguments()
		case msg.Text != "":
			ev.Kind = models.EventText
			ev.Text = msg.Text
		default:
			return models.Event{}, false
		}
		return ev, true
	}
	return models.Event{}, false
}

// Stop stops polling and closes the event channel.
func (s *TelegramService) Stop() error {
	slog.Debug("TelegramService Stop invoked")
	s.bot.StopReceivingUpdates()
	close(s.done)
	return nil
}

// Events returns the channel of inbound user events.
func (s *TelegramService) Events() <-chan models.Event {
	return s.events
}

// SendMessage sends a plain text message to a user.
func (s *TelegramService) SendMessage(ctx context.Context, userID int64, body string) error {
	return s.send(ctx, userID, models.Prompt{Body: body})
}

// SendPrompt sends a message with an optional inline keyboard.
func (s *TelegramService) SendPrompt(ctx context.Context, userID int64, prompt models.Prompt) error {
	return s.send(ctx, userID, prompt)
}

func (s *TelegramService) send(ctx context.Context, chatID int64, prompt models.Prompt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body := prompt.Body
	if len(body) > models.MaxMessageLength {
		body = body[:models.MaxMessageLength-len(models.TruncationMarker)] + models.TruncationMarker
	}
	msg := tgbotapi.NewMessage(chatID, body)
	if len(prompt.Keyboard) > 0 {
		msg.ReplyMarkup = buildKeyboard(prompt.Keyboard)
	}
	if _, err := s.bot.Send(msg); err != nil {
		slog.Error("TelegramService send failed", "error", err, "chatID", chatID)
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	slog.Debug("TelegramService send succeeded", "chatID", chatID, "buttons", len(prompt.Keyboard))
	return nil
}

func buildKeyboard(rows [][]models.Button) tgbotapi.InlineKeyboardMarkup {
	var kb [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var r []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			r = append(r, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		kb = append(kb, r)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kb...)
}

// Relay delivers a finished report into the chat configured for dest.
func (s *TelegramService) Relay(ctx context.Context, dest models.Destination, body string) error {
	chatID, ok := s.destChats[dest]
	if !ok {
		slog.Error("TelegramService relay destination not configured", "dest", dest)
		return fmt.Errorf("no chat configured for destination %s", dest)
	}
	return s.send(ctx, chatID, models.Prompt{Body: body})
}

// NotifyAdmins fans a message out to each admin. Individual failures are
// logged and do not stop delivery to the rest.
func (s *TelegramService) NotifyAdmins(ctx context.Context, adminIDs []int64, body string) error {
	var lastErr error
	for _, id := range adminIDs {
		if err := s.send(ctx, id, models.Prompt{Body: body}); err != nil {
			slog.Error("TelegramService admin notify failed", "error", err, "adminID", id)
			lastErr = err
		}
	}
	return lastErr
}

// FetchDocument downloads an attached document via the bot file API.
func (s *TelegramService) FetchDocument(ctx context.Context, doc models.DocumentRef) ([]byte, error) {
	slog.Debug("TelegramService FetchDocument invoked", "fileName", doc.FileName, "size", doc.FileSize)
	if doc.FileSize > models.MaxImportFileSize {
		return nil, fmt.Errorf("document %s exceeds size limit", doc.FileName)
	}

	file, err := s.bot.GetFile(tgbotapi.FileConfig{FileID: doc.FileID})
	if err != nil {
		slog.Error("TelegramService GetFile failed", "error", err, "fileID", doc.FileID)
		return nil, fmt.Errorf("failed to resolve document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(s.bot.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Error("TelegramService document download failed", "error", err)
		return nil, fmt.Errorf("failed to download document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("document download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, models.MaxImportFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read document body: %w", err)
	}
	if int64(len(data)) > models.MaxImportFileSize {
		return nil, fmt.Errorf("document %s exceeds size limit", doc.FileName)
	}
	slog.Debug("TelegramService FetchDocument succeeded", "bytes", len(data))
	return data, nil
}
