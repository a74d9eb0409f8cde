// Package models defines the core data structures for Telebot.
//
// It includes inbound event and outbound prompt types, relay destinations,
// and the shared error values used across modules.
package models

import (
	"errors"
	"strings"
)

// EventKind identifies how an inbound event was produced.
type EventKind string

const (
	// EventCallback is an inline keyboard button press carrying an opaque payload.
	EventCallback EventKind = "callback"
	// EventText is a free-text message.
	EventText EventKind = "text"
	// EventCommand is a slash command such as /start_sft.
	EventCommand EventKind = "command"
	// EventDocument is a file upload.
	EventDocument EventKind = "document"
)

// Validation constants for input validation
const (
	// MinFreeTextLength is the minimum length for symptom/diagnosis style fields.
	MinFreeTextLength = 3
	// MinShortTextLength is the minimum length for appointment/location/diagnosis fields.
	MinShortTextLength = 2
	// MaxFreeTextLength is the maximum length for any free-text field.
	MaxFreeTextLength = 200
	// MaxDayCount bounds MC/status durations.
	MaxDayCount = 365
	// MaxMessageLength is the platform ceiling for one outbound message.
	MaxMessageLength = 4096
	// MaxImportFileSize bounds CSV roster uploads (1 MiB).
	MaxImportFileSize = 1 << 20
)

// TruncationMarker is appended when a rendered report exceeds MaxMessageLength.
const TruncationMarker = "\n[output truncated]"

// Error variables for better error handling and testability
var (
	ErrNotRegistered    = errors.New("user is not registered")
	ErrNotAuthorized    = errors.New("user is not authorised")
	ErrRateLimited      = errors.New("too many requests")
	ErrNoActiveWindow   = errors.New("no active SFT window")
	ErrOutsideWindow    = errors.New("submission time outside SFT window")
	ErrNoSubmission     = errors.New("no SFT submission found")
	ErrDuplicateSubject = errors.New("subject already in batch")
	ErrAlreadyDiagnosed = errors.New("record already has a diagnosis")
	ErrDuplicateUpdate  = errors.New("update already queued in batch")
	ErrRecordNotFound   = errors.New("record not found")
	ErrUnderSubscribed  = errors.New("activity below minimum headcount")
	ErrNoPreview        = errors.New("no preview data found")
	ErrEmptyBatch       = errors.New("batch is empty")
)

// DocumentRef identifies an uploaded file on the chat platform.
type DocumentRef struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

// Event represents one inbound user interaction delivered by the transport.
type Event struct {
	UserID   int64        `json:"user_id"`
	Username string       `json:"username,omitempty"`
	Kind     EventKind    `json:"kind"`
	Command  string       `json:"command,omitempty"`
	Data     string       `json:"data,omitempty"` // callback payload
	Text     string       `json:"text,omitempty"`
	Document *DocumentRef `json:"document,omitempty"`
	Time     int64        `json:"time"`
}

// Button is one inline keyboard choice.
type Button struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Prompt is an outbound message with an optional inline keyboard.
type Prompt struct {
	Body     string     `json:"body"`
	Keyboard [][]Button `json:"keyboard,omitempty"`
}

// Destination names a relay target (a group chat topic).
type Destination string

const (
	// DestMovement is the movement topic in the instructor group.
	DestMovement Destination = "movement"
	// DestSFT is the SFT topic in the instructor group.
	DestSFT Destination = "sft"
	// DestParadeState is the parade-state topic in the instructor group.
	DestParadeState Destination = "parade_state"
	// DestCadet is the cadet group chat.
	DestCadet Destination = "cadet"
)

// IsValidDestination checks if the given destination is supported.
func IsValidDestination(d Destination) bool {
	switch d {
	case DestMovement, DestSFT, DestParadeState, DestCadet:
		return true
	default:
		return false
	}
}

// SplitPayload splits an opaque callback payload "<key>|<argument>" into
// its routing key and argument. The key is everything before the first "|",
// so dispatch never depends on ambient session state.
func SplitPayload(data string) (key, arg string) {
	if i := strings.IndexByte(data, '|'); i >= 0 {
		return data[:i], data[i+1:]
	}
	return data, ""
}

// JoinPayload builds a callback payload from a routing key and argument.
func JoinPayload(key, arg string) string {
	if arg == "" {
		return key
	}
	return key + "|" + arg
}
