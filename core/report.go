package core

import "time"

// Report is the OCR text of one uploaded medical report, scoped to a session.
type Report struct {
	SessionID  string    `json:"session_id"`
	Text       string    `json:"text"`
	SourceType string    `json:"source_type,omitempty"` // format name of the uploaded image, e.g. "jpeg"
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasText reports whether the report can ground an answer.
func (r *Report) HasText() bool {
	return r != nil && r.Text != ""
}

// IngestStatusCode is the outcome of a single ingestion request.
type IngestStatusCode string

const (
	IngestSuccess         IngestStatusCode = "success"
	IngestInvalidInput    IngestStatusCode = "invalid_input"
	IngestNoTextDetected  IngestStatusCode = "no_text_detected"
	IngestProcessingError IngestStatusCode = "processing_error"
)

// IngestStatus is returned by the ingestion pipeline. SessionID is set only on success.
type IngestStatus struct {
	Code      IngestStatusCode `json:"status"`
	Message   string           `json:"message"`
	SessionID string           `json:"session_id,omitempty"`
	Err       error            `json:"-"`
}

// OK reports whether the report text was stored.
func (s IngestStatus) OK() bool {
	return s.Code == IngestSuccess
}
