// Package messaging delivers finished reflections and check-in reminders over
// an outbound channel such as WhatsApp.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
)

// MinRecipientDigits is the shortest phone number accepted.
const MinRecipientDigits = 6

var (
	// ErrServiceStopped is returned by SendMessage after Stop.
	ErrServiceStopped = errors.New("messaging service stopped")
	// ErrInvalidRecipient is returned for recipients that cannot be canonicalized.
	ErrInvalidRecipient = errors.New("invalid recipient")
)

var phoneNumberRegex = regexp.MustCompile(`\D`)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient identifier.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing.
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error
}

// canonicalizePhone strips everything but digits and requires at least
// MinRecipientDigits of them.
func canonicalizePhone(service, recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("%w: recipient cannot be empty", ErrInvalidRecipient)
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("%w: no digits found in recipient %q", ErrInvalidRecipient, recipient)
	}
	if len(canonical) < MinRecipientDigits {
		return "", fmt.Errorf("%w: %q is too short (minimum %d digits required)", ErrInvalidRecipient, canonical, MinRecipientDigits)
	}
	if canonical != recipient {
		slog.Debug(service+" canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}
