package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/ClarityRoom/internal/catalog"
	"github.com/BTreeMap/ClarityRoom/internal/models"
)

// Pre-marshaled fallback responses to avoid runtime JSON encoding failures
var (
	fallbackErrorResponse []byte
)

// init validates that our fallback responses can be marshaled
func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response to the http.ResponseWriter with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	// Marshal the response to JSON first to catch encoding errors before writing headers
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// writeFlowError maps a journaling error onto a status code. When snapshot is
// non-nil the unchanged session is returned alongside the message.
func writeFlowError(w http.ResponseWriter, err error, snapshot *models.Session) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		status, message = http.StatusUnprocessableEntity, ve.Warning
	case errors.Is(err, models.ErrSessionNotFound):
		status, message = http.StatusNotFound, "Session not found"
		snapshot = nil
	case errors.Is(err, models.ErrInvalidArgument):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrInvalidTransition):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, models.ErrCollaboratorFailure):
		status, message = http.StatusBadGateway, "Sentiment analysis is unavailable, please try again"
	default:
		slog.Error("Server.writeFlowError: unexpected error", "error", err)
	}

	if snapshot == nil {
		writeJSONResponse(w, status, models.Error(message))
		return
	}
	writeJSONResponse(w, status, models.ErrorWithResult(message, newSessionView(*snapshot)))
}

// writeMethodNotAllowed replies 405 listing the allowed methods.
func writeMethodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
}

// themeView is the presentation subset of a mood theme.
type themeView struct {
	Label  string `json:"label"`
	Color  string `json:"color"`
	Accent string `json:"accent"`
	Emoji  string `json:"emoji"`
}

// sessionView is a session snapshot plus the theme of its mood.
type sessionView struct {
	models.Session
	Theme *themeView `json:"theme,omitempty"`
}

func newSessionView(s models.Session) sessionView {
	v := sessionView{Session: s}
	if th, err := catalog.Lookup(s.Mood); err == nil {
		v.Theme = &themeView{Label: th.Label, Color: th.Color, Accent: th.Accent, Emoji: th.Emoji}
	}
	return v
}
