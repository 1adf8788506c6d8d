package alerts

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/districtops/steward/pkg/log"
	"github.com/districtops/steward/pkg/metrics"
)

// Severity grades how urgently an alert needs attention
type Severity string

const (
	SeverityInfo   Severity = "info"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Alert is one operational notification
type Alert struct {
	ID        string    `json:"id"`
	Severity  Severity  `json:"severity"`
	Component string    `json:"component"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscriber is a channel that receives alerts
type Subscriber chan *Alert

// Manager dispatches alerts to subscribers and the structured log.
// Constructed once at process start and shared by reference.
type Manager struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]bool
	logger      zerolog.Logger
}

// NewManager creates a new alert manager
func NewManager() *Manager {
	return &Manager{
		subscribers: make(map[Subscriber]bool),
		logger:      log.WithComponent("alerts"),
	}
}

// Subscribe creates a new subscription and returns a channel
func (m *Manager) Subscribe() Subscriber {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	m.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (m *Manager) Unsubscribe(sub Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, sub)
	close(sub)
}

// Dispatch logs an alert and fans it out to all subscribers. A saturated
// subscriber drops the alert rather than blocking the caller.
func (m *Manager) Dispatch(component string, severity Severity, message string, err error) *Alert {
	alert := &Alert{
		ID:        uuid.New().String(),
		Severity:  severity,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
	}
	if err != nil {
		alert.Error = err.Error()
	}

	event := m.logger.Warn()
	if severity == SeverityHigh {
		event = m.logger.Error()
	}
	event.
		Str("alert_id", alert.ID).
		Str("severity", string(severity)).
		Str("source", component).
		Err(err).
		Msg(message)

	metrics.AlertsDispatched.WithLabelValues(string(severity)).Inc()

	m.mu.RLock()
	defer m.mu.RUnlock()
	for sub := range m.subscribers {
		select {
		case sub <- alert:
		default:
			// Subscriber is saturated; drop rather than block dispatch
		}
	}

	return alert
}
