package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BTreeMap/ClarityRoom/internal/models"
	"github.com/BTreeMap/ClarityRoom/internal/scheduler"
	"github.com/BTreeMap/ClarityRoom/internal/store"
	"github.com/BTreeMap/ClarityRoom/internal/util"
)

// reminderHeader opens every check-in reminder.
const reminderHeader = "🧘 Time for a Clarity Room check-in."

// reminderRequest is the body of POST /reminders.
type reminderRequest struct {
	To   string `json:"to"`
	Cron string `json:"cron"`
}

func (s *Server) remindersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodPost:
		s.createReminder(w, r)
	case http.MethodGet:
		s.listReminders(w)
	default:
		writeMethodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) createReminder(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.createReminder: processing reminder request", "method", r.Method, "path", r.URL.Path)
	if s.msgService == nil || s.sched == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Messaging is not configured"))
		return
	}
	if s.st == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Storage is not configured"))
		return
	}
	var req reminderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.createReminder: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	expr := strings.TrimSpace(req.Cron)
	if expr == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: cron"))
		return
	}
	if err := scheduler.Validate(expr); err != nil {
		slog.Warn("Server.createReminder: invalid cron expression", "error", err, "cron", expr)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	canonicalTo, err := s.msgService.ValidateAndCanonicalizeRecipient(req.To)
	if err != nil {
		slog.Warn("Server.createReminder: recipient validation failed", "error", err, "original_to", req.To)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	rem := models.Reminder{
		ID:        util.GenerateReminderID(),
		To:        canonicalTo,
		Cron:      expr,
		CreatedAt: s.now().UTC(),
	}
	if err := s.st.AddReminder(rem); err != nil {
		slog.Error("Server.createReminder: failed to store reminder", "error", err, "reminder_id", rem.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store reminder"))
		return
	}
	if err := s.sched.Schedule(rem.ID, rem.Cron, s.reminderTask(rem.ID, rem.To)); err != nil {
		slog.Error("Server.createReminder: failed to schedule reminder", "error", err, "reminder_id", rem.ID)
		if delErr := s.st.DeleteReminder(rem.ID); delErr != nil {
			slog.Error("Server.createReminder: failed to roll back stored reminder", "error", delErr, "reminder_id", rem.ID)
		}
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to schedule reminder"))
		return
	}

	slog.Info("Server.createReminder: reminder scheduled", "reminder_id", rem.ID, "to", rem.To, "cron", rem.Cron)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Reminder scheduled", rem))
}

func (s *Server) listReminders(w http.ResponseWriter) {
	if s.st == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Storage is not configured"))
		return
	}
	reminders, err := s.st.ListReminders()
	if err != nil {
		slog.Error("Server.listReminders: failed to list reminders", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load reminders"))
		return
	}
	if reminders == nil {
		reminders = []models.Reminder{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(reminders))
}

func (s *Server) reminderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w, http.MethodDelete)
		return
	}
	if s.st == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Storage is not configured"))
		return
	}
	id := r.PathValue("id")
	err := s.st.DeleteReminder(id)
	if err != nil && !errors.Is(err, store.ErrReminderNotFound) {
		// Keep the job running while the row is still stored.
		slog.Error("Server.reminderHandler: failed to delete reminder", "error", err, "reminder_id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to delete reminder"))
		return
	}
	if s.sched != nil {
		s.sched.Remove(id)
	}
	if err != nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Reminder not found"))
		return
	}
	slog.Info("Server.reminderHandler: reminder cancelled", "reminder_id", id)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Reminder cancelled", nil))
}

// reminderTask returns the scheduled job that sends one neutral check-in
// prompt to the reminder's recipient.
func (s *Server) reminderTask(id, to string) func() {
	return func() {
		body := reminderHeader
		if prompts, err := s.opts.Selector.Select(models.MoodNeutral, 1); err == nil && len(prompts) == 1 {
			body += "\n\n" + prompts[0]
		} else if err != nil {
			slog.Warn("Server.reminderTask: prompt selection failed", "error", err, "reminder_id", id)
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.SendTimeout)
		defer cancel()
		err := s.msgService.SendMessage(ctx, to, body)
		s.recordReceipt(to, models.MessageKindReminder, err)
		if err != nil {
			slog.Error("Server.reminderTask: failed to send reminder", "error", err, "reminder_id", id, "to", to)
			return
		}
		slog.Info("Server.reminderTask: reminder sent", "reminder_id", id, "to", to)
	}
}
