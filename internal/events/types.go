// Package events provides in-process event publication for search progress.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	SearchStarted   EventType = "SEARCH_STARTED"
	SearchProgress  EventType = "SEARCH_PROGRESS"
	SearchCompleted EventType = "SEARCH_COMPLETED"
	SearchFailed    EventType = "SEARCH_FAILED"
	ExportCompleted EventType = "EXPORT_COMPLETED"
	ErrorOccurred   EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type, for subscribers that want everything.
func AllTypes() []EventType {
	return []EventType{SearchStarted, SearchProgress, SearchCompleted, SearchFailed, ExportCompleted, ErrorOccurred}
}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
