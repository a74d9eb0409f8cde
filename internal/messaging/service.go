// Package messaging provides the message delivery abstraction for Telebot.
package messaging

import (
	"context"

	"github.com/weelysontheDISease/Telebot-V1/internal/models"
)

// Service defines a pluggable message delivery abstraction.
// It supports sending messages and prompts to users, relaying reports
// into destination topics, and provides a channel of inbound events.
type Service interface {
	// SendMessage sends a plain text message to a user.
	SendMessage(ctx context.Context, userID int64, body string) error

	// SendPrompt sends a message with an optional inline keyboard.
	SendPrompt(ctx context.Context, userID int64, prompt models.Prompt) error

	// Relay delivers a finished report into a destination topic.
	Relay(ctx context.Context, dest models.Destination, body string) error

	// NotifyAdmins fans a message out to the given admin users.
	NotifyAdmins(ctx context.Context, adminIDs []int64, body string) error

	// FetchDocument downloads an attached document.
	FetchDocument(ctx context.Context, doc models.DocumentRef) ([]byte, error)

	// Events returns the channel of inbound user events.
	Events() <-chan models.Event

	// Start begins any background processing (e.g., polling for updates).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error
}
