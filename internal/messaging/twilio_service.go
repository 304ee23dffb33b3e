package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/BTreeMap/ClarityRoom/internal/twiliowhatsapp"
)

// TwilioService implements Service using the Twilio API.
type TwilioService struct {
	client  twiliowhatsapp.Sender // real Twilio client or MockClient
	mu      sync.RWMutex
	stopped bool
}

// NewTwilioService creates a TwilioService around client.
func NewTwilioService(client twiliowhatsapp.Sender) *TwilioService {
	return &TwilioService{client: client}
}

// ValidateAndCanonicalizeRecipient removes all non-numeric characters and
// requires at least six digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone("TwilioService", recipient)
}

// Start is a no-op for Twilio.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop marks the service stopped. Later sends fail with ErrServiceStopped.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

// SendMessage validates the recipient and sends body via Twilio.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return ErrServiceStopped
	}

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		slog.Error("TwilioService SendMessage error", "error", err, "to", canonicalTo)
		return err
	}
	slog.Info("TwilioService message sent", "to", canonicalTo, "body_length", len(body))
	return nil
}
