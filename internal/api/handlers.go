package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/BTreeMap/ClarityRoom/internal/catalog"
	"github.com/BTreeMap/ClarityRoom/internal/models"
)

// moodRequest is the body of POST /sessions/{id}/mood.
type moodRequest struct {
	Mood string `json:"mood"`
}

// entryRequest is the body of POST /sessions/{id}/entries.
type entryRequest struct {
	Text string `json:"text"`
}

// recipientRequest is the body of POST /sessions/{id}/share.
type recipientRequest struct {
	To string `json:"to"`
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(v)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"sessions":  s.sessions.Len(),
		"messaging": s.msgService != nil,
		"storage":   s.st != nil,
	}))
}

func (s *Server) moodsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	themes := catalog.Themes()
	out := make([]catalog.Theme, 0, len(themes))
	for _, mood := range catalog.Moods() {
		out = append(out, themes[mood])
	}
	writeJSONResponse(w, http.StatusOK, models.Success(out))
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.createSessionHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	sess := s.sessions.Create()
	slog.Info("Server.createSessionHandler: session created", "session_id", sess.ID)
	writeJSONResponse(w, http.StatusCreated, models.Success(newSessionView(sess)))
}

func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		sess, err := s.sessions.Get(id)
		if err != nil {
			writeFlowError(w, err, nil)
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(newSessionView(sess)))
	case http.MethodDelete:
		if err := s.sessions.Delete(id); err != nil {
			writeFlowError(w, err, nil)
			return
		}
		slog.Info("Server.sessionHandler: session deleted", "session_id", id)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session deleted", nil))
	default:
		writeMethodNotAllowed(w, "GET, DELETE")
	}
}

func (s *Server) pickMoodHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var req moodRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.pickMoodHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	mood, err := models.ParseMood(req.Mood)
	if err != nil {
		writeFlowError(w, err, nil)
		return
	}

	s.applyTransition(w, r.PathValue("id"), func(sess models.Session) (models.Session, error) {
		return s.controller.Pick(sess, mood)
	})
}

func (s *Server) generatePromptsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	s.applyTransition(w, r.PathValue("id"), s.controller.Generate)
}

func (s *Server) submitEntryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.submitEntryHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.AnalyzeTimeout)
	defer cancel()
	s.applyTransition(w, r.PathValue("id"), func(sess models.Session) (models.Session, error) {
		return s.controller.Submit(ctx, sess, req.Text)
	})
}

// applyTransition loads the session, runs one flow operation and stores the
// new snapshot. A rejected operation leaves the stored session untouched.
func (s *Server) applyTransition(w http.ResponseWriter, id string, op func(models.Session) (models.Session, error)) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		writeFlowError(w, err, nil)
		return
	}
	next, err := op(sess)
	if err != nil {
		writeFlowError(w, err, &sess)
		return
	}
	if err := s.sessions.Save(next); err != nil {
		// Deleted while the operation ran.
		writeFlowError(w, err, nil)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(newSessionView(next)))
}

func (s *Server) shareHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.shareHandler: processing share request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if s.msgService == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Messaging is not configured"))
		return
	}
	var req recipientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.shareHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeFlowError(w, err, nil)
		return
	}
	if sess.State != models.StateResultShown || sess.Result == nil {
		writeFlowError(w, fmt.Errorf("%w: nothing to share in state %s", models.ErrInvalidTransition, sess.State), &sess)
		return
	}

	canonicalTo, err := s.msgService.ValidateAndCanonicalizeRecipient(req.To)
	if err != nil {
		slog.Warn("Server.shareHandler: recipient validation failed", "error", err, "original_to", req.To)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.SendTimeout)
	defer cancel()
	sendErr := s.msgService.SendMessage(ctx, canonicalTo, formatReflection(sess))
	receipt := s.recordReceipt(canonicalTo, models.MessageKindShare, sendErr)
	if sendErr != nil {
		slog.Error("Server.shareHandler: failed to send reflection", "error", sendErr, "to", canonicalTo, "session_id", sess.ID)
		writeJSONResponse(w, http.StatusBadGateway, models.ErrorWithResult("Failed to send message", receipt))
		return
	}
	slog.Info("Server.shareHandler: reflection shared", "to", canonicalTo, "session_id", sess.ID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Reflection shared", receipt))
}

// recordReceipt stores the outcome of one send attempt. Store failures are
// logged only.
func (s *Server) recordReceipt(to string, kind models.MessageKind, sendErr error) models.Receipt {
	receipt := models.Receipt{
		To:     to,
		Kind:   kind,
		Status: models.MessageStatusSent,
		Time:   s.now().Unix(),
	}
	if sendErr != nil {
		receipt.Status = models.MessageStatusFailed
	}
	if s.st == nil {
		return receipt
	}
	if err := s.st.AddReceipt(receipt); err != nil {
		slog.Error("Server.recordReceipt: failed to store receipt", "error", err, "to", to, "kind", kind)
	}
	return receipt
}

func (s *Server) entriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if s.st == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Storage is not configured"))
		return
	}
	limit := DefaultEntriesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	entries, err := s.st.ListEntries(limit)
	if err != nil {
		slog.Error("Server.entriesHandler: failed to list entries", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load journal entries"))
		return
	}
	if entries == nil {
		entries = []models.JournalEntry{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(entries))
}

func (s *Server) receiptsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	receipts := []models.Receipt{}
	if s.st != nil {
		stored, err := s.st.GetReceipts()
		if err != nil {
			slog.Error("Server.receiptsHandler: failed to get receipts", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load receipts"))
			return
		}
		receipts = append(receipts, stored...)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(receipts))
}

// formatReflection renders a finished session as a plain text message.
func formatReflection(sess models.Session) string {
	var b strings.Builder
	b.WriteString("Clarity Room reflection\n")
	if th, err := catalog.Lookup(sess.Mood); err == nil {
		fmt.Fprintf(&b, "Mood: %s %s\n", th.Emoji, th.Label)
	}
	if len(sess.Prompts) > 0 {
		b.WriteString("\nPrompts:\n")
		for _, p := range sess.Prompts {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	if sess.Result != nil {
		fmt.Fprintf(&b, "\nSentiment: %s (polarity %.2f, subjectivity %.2f)\n",
			sess.Result.Band, sess.Result.Sentiment.Polarity, sess.Result.Sentiment.Subjectivity)
		b.WriteString(sess.Result.Feedback)
	}
	return strings.TrimRight(b.String(), "\n")
}
