package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/BTreeMap/ClarityRoom/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// WhatsAppService implements Service using the whatsmeow-based client.
type WhatsAppService struct {
	client   whatsapp.Sender
	waClient *whatsapp.Client // set when client is a real connection
	mu       sync.RWMutex
	stopped  bool
	handler  uint32
}

// NewWhatsAppService creates a new WhatsAppService wrapping client.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	s := &WhatsAppService{client: client}
	if waClient, ok := client.(*whatsapp.Client); ok {
		s.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}
	return s
}

// ValidateAndCanonicalizeRecipient removes all non-numeric characters and
// requires at least six digits.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone("WhatsAppService", recipient)
}

// Start registers a connection and delivery event logger on the real client.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Debug("WhatsAppService no full client available, skipping event handling (likely mock)")
		return nil
	}
	s.handler = s.waClient.GetClient().AddEventHandler(logEvent)
	slog.Debug("WhatsAppService event handler registered")
	return nil
}

// Stop removes the event handler and disconnects.
func (s *WhatsAppService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	if s.waClient != nil && s.waClient.GetClient() != nil {
		s.waClient.GetClient().RemoveEventHandler(s.handler)
		s.waClient.Disconnect()
	}
	slog.Info("WhatsAppService stopped")
	return nil
}

// SendMessage validates the recipient and sends body over WhatsApp.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return ErrServiceStopped
	}

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService SendMessage validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", canonicalTo)
		return err
	}
	slog.Info("WhatsAppService message sent", "to", canonicalTo, "body_length", len(body))
	return nil
}

func logEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		slog.Info("WhatsAppService connected")
	case *events.Disconnected:
		slog.Warn("WhatsAppService disconnected")
	case *events.Receipt:
		slog.Debug("WhatsAppService receipt", "from", v.MessageSource.Sender.User, "type", v.Type, "count", len(v.MessageIDs))
	}
}
