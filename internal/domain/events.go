package domain

import "time"

// DomainEvent represents a significant occurrence in the domain.
type DomainEvent interface {
	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time
	// EventType returns the type of event.
	EventType() string
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	occurredAt time.Time
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.occurredAt
}

// NewBaseEvent creates a new base event with current timestamp.
func NewBaseEvent() BaseEvent {
	return BaseEvent{occurredAt: time.Now()}
}

// ReportSkippedEvent is raised when a report is dropped from aggregation
// because it could not be parsed and the skip policy is active.
type ReportSkippedEvent struct {
	BaseEvent
	Path   string
	Format ReportFormat
	Reason string
}

// EventType returns the event type identifier.
func (e ReportSkippedEvent) EventType() string {
	return "ReportSkipped"
}

// NewReportSkippedEvent creates a new ReportSkippedEvent.
func NewReportSkippedEvent(path string, format ReportFormat, err error) ReportSkippedEvent {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return ReportSkippedEvent{
		BaseEvent: NewBaseEvent(),
		Path:      path,
		Format:    format,
		Reason:    reason,
	}
}

// CoverageComparedEvent is raised after the current coverage was compared
// with a reference value.
type CoverageComparedEvent struct {
	BaseEvent
	Coverage  CoverageRatio
	Reference CoverageRatio
	Change    float64
	Tier      ColorTier
}

// EventType returns the event type identifier.
func (e CoverageComparedEvent) EventType() string {
	return "CoverageCompared"
}

// NewCoverageComparedEvent creates a new CoverageComparedEvent.
func NewCoverageComparedEvent(m Message, tier ColorTier) CoverageComparedEvent {
	return CoverageComparedEvent{
		BaseEvent: NewBaseEvent(),
		Coverage:  m.Coverage(),
		Reference: m.Reference(),
		Change:    m.Change(),
		Tier:      tier,
	}
}

// ReferenceRecordedEvent is raised when a new reference value is stored.
type ReferenceRecordedEvent struct {
	BaseEvent
	Key      string
	Previous CoverageRatio
	Current  CoverageRatio
}

// EventType returns the event type identifier.
func (e ReferenceRecordedEvent) EventType() string {
	return "ReferenceRecorded"
}

// NewReferenceRecordedEvent creates a new ReferenceRecordedEvent.
func NewReferenceRecordedEvent(key string, previous, current CoverageRatio) ReferenceRecordedEvent {
	return ReferenceRecordedEvent{
		BaseEvent: NewBaseEvent(),
		Key:       key,
		Previous:  previous,
		Current:   current,
	}
}

// EventCollector collects domain events for later publishing.
type EventCollector struct {
	events []DomainEvent
}

// NewEventCollector creates a new event collector.
func NewEventCollector() *EventCollector {
	return &EventCollector{
		events: make([]DomainEvent, 0),
	}
}

// Record adds an event to the collector.
func (c *EventCollector) Record(event DomainEvent) {
	c.events = append(c.events, event)
}

// Events returns all collected events.
func (c *EventCollector) Events() []DomainEvent {
	return c.events
}

// Clear removes all collected events.
func (c *EventCollector) Clear() {
	c.events = make([]DomainEvent, 0)
}

// HasEvents returns true if there are any collected events.
func (c *EventCollector) HasEvents() bool {
	return len(c.events) > 0
}
