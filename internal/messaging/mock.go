package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/weelysontheDISease/Telebot-V1/internal/models"
)

// Compile-time check that MockService implements Service.
var _ Service = (*MockService)(nil)

// SentMessage records one outbound message from a MockService.
type SentMessage struct {
	UserID int64
	Prompt models.Prompt
}

// SentRelay records one relayed report from a MockService.
type SentRelay struct {
	Dest models.Destination
	Body string
}

// MockService is a Service implementation that records every send for
// inspection in tests. It can be primed with documents and injected errors.
type MockService struct {
	mu        sync.Mutex
	messages  []SentMessage
	relays    []SentRelay
	notified  [][]int64
	events    chan models.Event
	documents map[string][]byte

	// SendErr, when set, is returned by every send operation.
	SendErr error
	// RelayErr, when set, is returned by Relay.
	RelayErr error
}

// NewMockService creates a MockService with a buffered event channel.
func NewMockService() *MockService {
	return &MockService{
		events:    make(chan models.Event, DefaultChannelBufferSize),
		documents: make(map[string][]byte),
	}
}

func (m *MockService) SendMessage(ctx context.Context, userID int64, body string) error {
	return m.SendPrompt(ctx, userID, models.Prompt{Body: body})
}

func (m *MockService) SendPrompt(ctx context.Context, userID int64, prompt models.Prompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.messages = append(m.messages, SentMessage{UserID: userID, Prompt: prompt})
	return nil
}

func (m *MockService) Relay(ctx context.Context, dest models.Destination, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RelayErr != nil {
		return m.RelayErr
	}
	m.relays = append(m.relays, SentRelay{Dest: dest, Body: body})
	return nil
}

func (m *MockService) NotifyAdmins(ctx context.Context, adminIDs []int64, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.notified = append(m.notified, adminIDs)
	return nil
}

func (m *MockService) FetchDocument(ctx context.Context, doc models.DocumentRef) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.documents[doc.FileID]
	if !ok {
		return nil, fmt.Errorf("no document with id %s", doc.FileID)
	}
	return data, nil
}

// AddDocument primes a document for FetchDocument.
func (m *MockService) AddDocument(fileID string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[fileID] = data
}

func (m *MockService) Events() <-chan models.Event { return m.events }

// Inject pushes an inbound event as if it arrived from the transport.
func (m *MockService) Inject(ev models.Event) { m.events <- ev }

func (m *MockService) Start(ctx context.Context) error { return nil }

func (m *MockService) Stop() error {
	close(m.events)
	return nil
}

// Messages returns all recorded sends.
func (m *MockService) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// LastMessage returns the most recent send, or nil when none were made.
func (m *MockService) LastMessage() *SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return nil
	}
	msg := m.messages[len(m.messages)-1]
	return &msg
}

// Relays returns all recorded relay deliveries.
func (m *MockService) Relays() []SentRelay {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentRelay, len(m.relays))
	copy(out, m.relays)
	return out
}

// Notifications returns the admin id sets passed to NotifyAdmins.
func (m *MockService) Notifications() [][]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]int64, len(m.notified))
	copy(out, m.notified)
	return out
}

// Reset clears all recorded traffic.
func (m *MockService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
	m.relays = nil
	m.notified = nil
}
