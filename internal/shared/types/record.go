package types

// RawIngestMessage is one frame pushed by an agent over the ingestion
// connection: a single log line wrapped with its origin and capture time.
// Immutable once received.
type RawIngestMessage struct {
	Timestamp float64                `json:"timestamp"` // unix seconds
	RawLine   string                 `json:"raw_line"`
	Source    string                 `json:"source"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ParsedFields holds the structured fields extracted from a raw access-log
// line. Every field is always populated; parsing failures produce defaults,
// never partial values.
type ParsedFields struct {
	StatusCode   int    `json:"status_code"`
	ClientIP     string `json:"client_ip"`
	Method       string `json:"method"`
	Path         string `json:"path"`
	ResponseSize int    `json:"response_size"`
	UserAgent    string `json:"user_agent"`
}

// LogRecord is the unit stored in the record buffer and broadcast to
// subscribers. Only Acknowledged/AcknowledgedAt mutate after creation.
type LogRecord struct {
	ID             string                 `json:"id"`
	Timestamp      float64                `json:"timestamp"`
	RawLine        string                 `json:"raw_line"`
	Source         string                 `json:"source"`
	Parsed         ParsedFields           `json:"parsed_data"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Acknowledged   bool                   `json:"acknowledged"`
	AcknowledgedAt *float64               `json:"acknowledged_at,omitempty"`
}

// IsError reports whether the record represents a failed request.
func (r *LogRecord) IsError() bool {
	return r.Parsed.StatusCode >= 400
}

// StoreStats summarizes the records currently retained in the buffer.
type StoreStats struct {
	Total        int     `json:"total_logs"`
	ErrorCount   int     `json:"error_count"`
	SuccessCount int     `json:"success_count"`
	ErrorRate    float64 `json:"error_rate"`
}

// AckStatus is the outcome of an acknowledgment request.
type AckStatus string

const (
	AckAcknowledged AckStatus = "acknowledged"
	AckNotFound     AckStatus = "not_found"
)

// AckResult is the structured outcome of acknowledging a record. A missing
// record is a normal result, not an error.
type AckResult struct {
	Status AckStatus `json:"status"`
	LogID  string    `json:"log_id"`
}

// AcknowledgeRequest is the query-layer payload for acknowledging a record.
type AcknowledgeRequest struct {
	LogID     string  `json:"log_id" binding:"required"`
	Timestamp float64 `json:"timestamp"`
}
