package events

import "encoding/json"

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// SearchStartedData contains data for SearchStarted events
type SearchStartedData struct {
	RunID     string `json:"run_id"`
	Protocol  string `json:"protocol"`
	Preset    string `json:"preset,omitempty"`
	Total     int    `json:"total"`
	Workers   int    `json:"workers"`
	Precision uint   `json:"precision_bits"`
}

// EventType returns the event type for SearchStartedData
func (d *SearchStartedData) EventType() EventType {
	return SearchStarted
}

// SearchProgressData contains data for SearchProgress events
type SearchProgressData struct {
	RunID     string `json:"run_id"`
	Current   int    `json:"current"`
	Total     int    `json:"total"`
	Failed    int    `json:"failed"`
	Message   string `json:"message,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// EventType returns the event type for SearchProgressData
func (d *SearchProgressData) EventType() EventType {
	return SearchProgress
}

// SearchCompletedData contains data for SearchCompleted events
type SearchCompletedData struct {
	RunID         string  `json:"run_id"`
	Protocol      string  `json:"protocol"`
	Evaluated     int     `json:"evaluated"`
	Failed        int     `json:"failed"`
	BestName      string  `json:"best_name,omitempty"`
	BestErrorRate float64 `json:"best_error_rate,omitempty"`
	BestQubits    int     `json:"best_qubits,omitempty"`
	DurationMS    int64   `json:"duration_ms"`
}

// EventType returns the event type for SearchCompletedData
func (d *SearchCompletedData) EventType() EventType {
	return SearchCompleted
}

// SearchFailedData contains data for SearchFailed events
type SearchFailedData struct {
	RunID     string `json:"run_id"`
	Error     string `json:"error"`
	Cancelled bool   `json:"cancelled"`
}

// EventType returns the event type for SearchFailedData
func (d *SearchFailedData) EventType() EventType {
	return SearchFailed
}

// ExportCompletedData contains data for ExportCompleted events
type ExportCompletedData struct {
	RunID    string `json:"run_id"`
	Path     string `json:"path"`
	Rows     int    `json:"rows"`
	Uploaded bool   `json:"uploaded"`
	Location string `json:"location,omitempty"`
}

// EventType returns the event type for ExportCompletedData
func (d *ExportCompletedData) EventType() EventType {
	return ExportCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// GetTypedData converts the event's data map back to its typed form.
// Returns nil for unknown types or undecodable data.
func (e *Event) GetTypedData() EventData {
	if e.Data == nil {
		return nil
	}
	var data EventData
	switch e.Type {
	case SearchStarted:
		data = &SearchStartedData{}
	case SearchProgress:
		data = &SearchProgressData{}
	case SearchCompleted:
		data = &SearchCompletedData{}
	case SearchFailed:
		data = &SearchFailedData{}
	case ExportCompleted:
		data = &ExportCompletedData{}
	case ErrorOccurred:
		data = &ErrorEventData{}
	default:
		return nil
	}
	if err := convertMapToStruct(e.Data, data); err != nil {
		return nil
	}
	return data
}

// convertMapToStruct converts a map[string]interface{} to a struct
func convertMapToStruct(m map[string]interface{}, v interface{}) error {
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonBytes, v)
}
