// Package events provides the structured audit trail of a diamond.
// Events capture registry mutations (cuts), bootstrap, and failed or rolled
// back invocations so off-system observers can follow every change to the
// routing table.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType classifies the kind of diamond event.
type EventType string

const (
	// Registry events
	EventDiamondCut       EventType = "diamond.cut"
	EventDiamondCutFailed EventType = "diamond.cut_failed"
	EventBootstrap        EventType = "diamond.bootstrap"

	// Deployment events
	EventFacetDeployed EventType = "facet.deployed"

	// Routing events
	EventCallFailed EventType = "diamond.call_failed"
	EventRollback   EventType = "diamond.rollback"

	// Access events
	EventOwnershipTransferred     EventType = "ownership.transferred"
	EventOwnershipTransferStarted EventType = "ownership.transfer_started"
	EventRoleGranted              EventType = "role.granted"
	EventRoleRevoked              EventType = "role.revoked"
	EventRoleAdminChanged         EventType = "role.admin_changed"

	// Journal events
	EventJournalFailed EventType = "journal.commit_failed"
)

// Severity indicates the importance of an event.
type Severity string

const (
	SeverityDebug   Severity = "debug"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// CutRecord is one applied facet cut as reported in a diamond.cut event.
type CutRecord struct {
	Facet     string   `json:"facet"`
	Action    string   `json:"action"`
	Selectors []string `json:"selectors"`
}

// InitRecord describes the initializer invoked after a cut.
type InitRecord struct {
	Facet    string `json:"facet"`
	Selector string `json:"selector"`
}

// Event represents a structured diamond event.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`

	Diamond  string `json:"diamond,omitempty"`
	Caller   string `json:"caller,omitempty"`
	Facet    string `json:"facet,omitempty"`
	Selector string `json:"selector,omitempty"`

	Cuts []CutRecord  `json:"cuts,omitempty"`
	Init *InitRecord `json:"init,omitempty"`

	Message  string            `json:"message,omitempty"`
	Error    string            `json:"error,omitempty"`
	Duration time.Duration     `json:"duration_ns,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	RequestID string `json:"request_id,omitempty"`
}

// String returns a JSON representation.
func (e Event) String() string {
	data, _ := json.Marshal(e)
	return string(data)
}

// EventHandler processes events as they occur.
type EventHandler func(Event)

// EventFilter decides whether an event should be processed.
type EventFilter func(Event) bool

// EventLogger is the interface for event logging.
type EventLogger interface {
	// Log records an event.
	Log(event Event)

	// LogWithContext records an event, copying the request id from ctx.
	LogWithContext(ctx context.Context, event Event)

	// Subscribe registers a handler for events.
	Subscribe(handler EventHandler) func()

	// SubscribeFiltered registers a handler with a filter.
	SubscribeFiltered(filter EventFilter, handler EventHandler) func()

	// Recent returns the most recent N events.
	Recent(n int) []Event

	// RecentByType returns recent events of a specific type.
	RecentByType(eventType EventType, n int) []Event
}

// RingBuffer is a thread-safe circular buffer for events.
type RingBuffer struct {
	mu       sync.RWMutex
	events   []Event
	size     int
	head     int
	count    int
	handlers []handlerEntry
	nextID   int64
}

type handlerEntry struct {
	id      int64
	filter  EventFilter
	handler EventHandler
}

// NewRingBuffer creates a new event ring buffer.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1000
	}
	return &RingBuffer{
		events: make([]Event, size),
		size:   size,
	}
}

// Log adds an event to the buffer and notifies handlers.
func (rb *RingBuffer) Log(event Event) {
	rb.mu.Lock()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	rb.events[rb.head] = event
	rb.head = (rb.head + 1) % rb.size
	if rb.count < rb.size {
		rb.count++
	}

	handlers := make([]handlerEntry, len(rb.handlers))
	copy(handlers, rb.handlers)
	rb.mu.Unlock()

	// Notify handlers outside the lock
	for _, h := range handlers {
		if h.filter == nil || h.filter(event) {
			h.handler(event)
		}
	}
}

// LogWithContext adds the request id carried by ctx before logging.
func (rb *RingBuffer) LogWithContext(ctx context.Context, event Event) {
	if id := RequestIDFrom(ctx); id != "" && event.RequestID == "" {
		event.RequestID = id
	}
	rb.Log(event)
}

// Subscribe registers a handler for all events.
func (rb *RingBuffer) Subscribe(handler EventHandler) func() {
	return rb.SubscribeFiltered(nil, handler)
}

// SubscribeFiltered registers a handler with a filter.
func (rb *RingBuffer) SubscribeFiltered(filter EventFilter, handler EventHandler) func() {
	rb.mu.Lock()
	id := rb.nextID
	rb.nextID++
	rb.handlers = append(rb.handlers, handlerEntry{
		id:      id,
		filter:  filter,
		handler: handler,
	})
	rb.mu.Unlock()

	return func() {
		rb.mu.Lock()
		defer rb.mu.Unlock()
		for i, h := range rb.handlers {
			if h.id == id {
				rb.handlers = append(rb.handlers[:i], rb.handlers[i+1:]...)
				return
			}
		}
	}
}

// Recent returns the most recent N events in reverse chronological order.
func (rb *RingBuffer) Recent(n int) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || rb.count == 0 {
		return nil
	}
	if n > rb.count {
		n = rb.count
	}

	result := make([]Event, n)
	for i := 0; i < n; i++ {
		idx := (rb.head - 1 - i + rb.size) % rb.size
		result[i] = rb.events[idx]
	}
	return result
}

// RecentByType returns recent events of a specific type.
func (rb *RingBuffer) RecentByType(eventType EventType, n int) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || rb.count == 0 {
		return nil
	}

	var result []Event
	for i := 0; i < rb.count && len(result) < n; i++ {
		idx := (rb.head - 1 - i + rb.size) % rb.size
		if rb.events[idx].Type == eventType {
			result = append(result, rb.events[idx])
		}
	}
	return result
}

// Count returns the number of events in the buffer.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Clear removes all events from the buffer.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.events = make([]Event, rb.size)
	rb.head = 0
	rb.count = 0
}

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFrom returns the request ID stored in ctx, if any.
func RequestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(requestIDKey).(string); ok {
		return s
	}
	return ""
}

// EventBuilder provides a fluent API for creating events.
type EventBuilder struct {
	event Event
}

// NewEvent creates a new EventBuilder.
func NewEvent(eventType EventType) *EventBuilder {
	return &EventBuilder{
		event: Event{
			Type:      eventType,
			Severity:  SeverityInfo,
			Timestamp: time.Now().UTC(),
		},
	}
}

// Diamond sets the diamond address.
func (b *EventBuilder) Diamond(addr string) *EventBuilder {
	b.event.Diamond = addr
	return b
}

// Caller sets the invoking address.
func (b *EventBuilder) Caller(addr string) *EventBuilder {
	b.event.Caller = addr
	return b
}

// Facet sets the facet address.
func (b *EventBuilder) Facet(addr string) *EventBuilder {
	b.event.Facet = addr
	return b
}

// Selector sets the selector.
func (b *EventBuilder) Selector(sel string) *EventBuilder {
	b.event.Selector = sel
	return b
}

// Cuts attaches the applied cuts.
func (b *EventBuilder) Cuts(cuts []CutRecord) *EventBuilder {
	b.event.Cuts = cuts
	return b
}

// Init attaches the initializer record.
func (b *EventBuilder) Init(init *InitRecord) *EventBuilder {
	b.event.Init = init
	return b
}

// Severity sets the severity.
func (b *EventBuilder) Severity(severity Severity) *EventBuilder {
	b.event.Severity = severity
	return b
}

// Message sets the message.
func (b *EventBuilder) Message(msg string) *EventBuilder {
	b.event.Message = msg
	return b
}

// ErrorFrom sets the error from an error value.
func (b *EventBuilder) ErrorFrom(err error) *EventBuilder {
	if err != nil {
		b.event.Error = err.Error()
		b.event.Severity = SeverityError
	}
	return b
}

// Duration sets the duration.
func (b *EventBuilder) Duration(d time.Duration) *EventBuilder {
	b.event.Duration = d
	return b
}

// Metadata adds metadata.
func (b *EventBuilder) Metadata(key, value string) *EventBuilder {
	if b.event.Metadata == nil {
		b.event.Metadata = make(map[string]string)
	}
	b.event.Metadata[key] = value
	return b
}

// Build returns the constructed event.
func (b *EventBuilder) Build() Event {
	if b.event.ID == "" {
		b.event.ID = uuid.NewString()
	}
	return b.event
}

// LogToWithContext logs the event with context.
func (b *EventBuilder) LogToWithContext(ctx context.Context, logger EventLogger) {
	logger.LogWithContext(ctx, b.Build())
}

// NoOpLogger is an event logger that discards all events.
type NoOpLogger struct{}

func (NoOpLogger) Log(Event)                                          {}
func (NoOpLogger) LogWithContext(context.Context, Event)              {}
func (NoOpLogger) Subscribe(EventHandler) func()                      { return func() {} }
func (NoOpLogger) SubscribeFiltered(EventFilter, EventHandler) func() { return func() {} }
func (NoOpLogger) Recent(int) []Event                                 { return nil }
func (NoOpLogger) RecentByType(EventType, int) []Event                { return nil }
