package core

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure. Every request that fails ends with exactly one Kind.
type Kind string

const (
	KindNone                Kind = ""
	KindInvalidInput        Kind = "invalid_input"
	KindNoTextDetected      Kind = "no_text_detected"
	KindProcessingError     Kind = "processing_error"
	KindUnrecognized        Kind = "unrecognized"
	KindNoReportUploaded    Kind = "no_report_uploaded"
	KindGenerationError     Kind = "generation_error"
	KindNoAnswer            Kind = "no_answer"
	KindUnsupportedLanguage Kind = "unsupported_language"
	KindSessionNotFound     Kind = "session_not_found"
)

// User-facing messages returned by the two pipelines.
const (
	MsgInvalidImage   = "Please upload a valid image."
	MsgNoTextDetected = "No text detected in the uploaded image. Please upload a clearer image."
	MsgIngestSuccess  = "Medical report text has been successfully extracted. " +
		"You can now ask questions about the report in the chatbot section."
	MsgUnrecognized = "Sorry, I could not understand your speech. Please try again."
	MsgNoReport     = "No medical report has been uploaded yet. Please upload a report before asking questions."
	MsgNoAnswer     = "Unable to process your question. Please try again."
	MsgInvalidAudio = "Please record a question before sending."
)

// Sentinel errors for errors.Is matching. A *Error matches the sentinel of its Kind.
var (
	ErrInvalidInput        = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrNoTextDetected      = &Error{Kind: KindNoTextDetected, Message: "no text detected"}
	ErrUnrecognized        = &Error{Kind: KindUnrecognized, Message: "speech could not be understood"}
	ErrNoReportUploaded    = &Error{Kind: KindNoReportUploaded, Message: "no report uploaded"}
	ErrNoAnswer            = &Error{Kind: KindNoAnswer, Message: "generation returned no candidates"}
	ErrUnsupportedLanguage = &Error{Kind: KindUnsupportedLanguage, Message: "language not supported by synthesizer"}
	ErrSessionNotFound     = &Error{Kind: KindSessionNotFound, Message: "session not found"}
)

// Error is a typed pipeline error. StatusCode is set for generation API failures.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so that wrapped errors match the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds a typed error of the given kind wrapping err.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// GenerationStatusError reports a non-success HTTP status from the generation API.
func GenerationStatusError(status int, body string) *Error {
	e := &Error{Kind: KindGenerationError, Message: "generation api returned non-success status", StatusCode: status}
	if body != "" {
		e.Err = errors.New(body)
	}
	return e
}

// KindOf extracts the Kind of err, defaulting to KindProcessingError for untyped errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindProcessingError
}

// StatusCodeOf returns the HTTP status carried by a generation error, or 0.
func StatusCodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// UserMessage converts a pipeline error into the text shown to the user.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindNone:
		return ""
	case KindInvalidInput:
		return MsgInvalidImage
	case KindNoTextDetected:
		return MsgNoTextDetected
	case KindUnrecognized:
		return MsgUnrecognized
	case KindNoReportUploaded, KindSessionNotFound:
		return MsgNoReport
	case KindNoAnswer:
		return MsgNoAnswer
	case KindGenerationError:
		if code := StatusCodeOf(err); code != 0 {
			return fmt.Sprintf("Error: Received a bad response from the API. Status code: %d", code)
		}
	}
	return "Error: " + err.Error()
}
