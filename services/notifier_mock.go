package services

import (
	"context"
	"sync"

	"github.com/kendall-kelly/autoshop-crm-api/models"
)

// MockNotifier records notifications instead of sending them
type MockNotifier struct {
	sent []Notification
	mu   sync.RWMutex
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// SetAsMockForTesting sets this mock as the global notifier for testing
func (m *MockNotifier) SetAsMockForTesting() {
	SetNotifier(m)
}

// Notify records the notification
func (m *MockNotifier) Notify(_ context.Context, n Notification) {
	m.mu.Lock()
	m.sent = append(m.sent, n)
	m.mu.Unlock()
}

// Sent returns a copy of every recorded notification
func (m *MockNotifier) Sent() []Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Notification, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentOfType returns the recorded notifications of one message type
func (m *MockNotifier) SentOfType(t models.MessageType) []Notification {
	var out []Notification
	for _, n := range m.Sent() {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// Clear forgets everything recorded so far
func (m *MockNotifier) Clear() {
	m.mu.Lock()
	m.sent = nil
	m.mu.Unlock()
}

// MockPublisher records published payloads; set Err to simulate a broker failure
type MockPublisher struct {
	Err      error
	Messages map[string][][]byte
	mu       sync.Mutex
}

// NewMockPublisher creates a new mock publisher
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Messages: make(map[string][][]byte)}
}

// Publish records the payload under its topic
func (m *MockPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Messages[topic] = append(m.Messages[topic], payload)
	return nil
}

// Count returns the number of payloads published to topic
func (m *MockPublisher) Count(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages[topic])
}

// Close is a no-op
func (m *MockPublisher) Close() {}
