// Package models defines the core data structures for Clarity Room.
//
// It includes moods, sentiment results, session snapshots, journal entries and
// delivery receipts, which are shared across modules.
package models

import "time"

// JournalEntry is a finished reflection recorded after an accepted submission.
type JournalEntry struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Mood         Mood      `json:"mood"`
	Prompts      []string  `json:"prompts"`
	Text         string    `json:"text"`
	Polarity     float64   `json:"polarity"`
	Subjectivity float64   `json:"subjectivity"`
	Band         Band      `json:"band"`
	Feedback     string    `json:"feedback"`
	CreatedAt    time.Time `json:"created_at"`
}

// MessageKind identifies why an outbound message was sent.
type MessageKind string

const (
	// MessageKindShare is a finished reflection shared by the user.
	MessageKindShare MessageKind = "share"
	// MessageKindReminder is a scheduled check-in reminder.
	MessageKindReminder MessageKind = "reminder"
)

// MessageStatus represents the delivery status of a message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusFailed indicates the message failed to send.
	MessageStatusFailed MessageStatus = "failed"
)

// Receipt records one outbound message attempt.
type Receipt struct {
	To     string        `json:"to"`
	Kind   MessageKind   `json:"kind"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for errors and warnings
	Result  interface{} `json:"result,omitempty"`  // optional result data
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// ErrorWithResult creates an error API response that still carries data, such as
// the unchanged session snapshot after a rejected submission.
func ErrorWithResult(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Reminder is a recurring check-in message scheduled for a recipient.
type Reminder struct {
	ID        string    `json:"id"`
	To        string    `json:"to"`
	Cron      string    `json:"cron"`
	CreatedAt time.Time `json:"created_at"`
}
