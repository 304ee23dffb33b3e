package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/ClarityRoom/internal/api"
	"github.com/BTreeMap/ClarityRoom/internal/catalog"
	"github.com/BTreeMap/ClarityRoom/internal/flow"
	"github.com/BTreeMap/ClarityRoom/internal/models"
	"github.com/BTreeMap/ClarityRoom/internal/testutil"
)

type sessionResult struct {
	models.Session
	Theme *struct {
		Label string `json:"label"`
		Emoji string `json:"emoji"`
	} `json:"theme"`
}

func createSession(t *testing.T, env *testutil.TestEnv) sessionResult {
	t.Helper()
	rr := env.Do(testutil.CreateHTTPRequest(t, "POST", "/sessions", nil))
	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "create session")
	var s sessionResult
	testutil.DecodeResult(t, rr, &s)
	return s
}

func post(t *testing.T, env *testutil.TestEnv, path string, body interface{}) (int, sessionResult) {
	t.Helper()
	rr := env.Do(testutil.CreateHTTPRequest(t, "POST", path, body))
	var s sessionResult
	if rr.Code == http.StatusOK || rr.Code == http.StatusUnprocessableEntity || rr.Code == http.StatusConflict || rr.Code == http.StatusBadGateway {
		testutil.DecodeResult(t, rr, &s)
	}
	return rr.Code, s
}

// advanceToResult drives a new session through mood, prompts and a submission.
func advanceToResult(t *testing.T, env *testutil.TestEnv) sessionResult {
	t.Helper()
	s := createSession(t, env)
	if code, _ := post(t, env, "/sessions/"+s.ID+"/mood", map[string]string{"mood": "happy"}); code != http.StatusOK {
		t.Fatalf("pick mood: status %d", code)
	}
	if code, _ := post(t, env, "/sessions/"+s.ID+"/prompts", nil); code != http.StatusOK {
		t.Fatalf("generate prompts: status %d", code)
	}
	code, res := post(t, env, "/sessions/"+s.ID+"/entries", map[string]string{"text": "A calm and lovely morning."})
	if code != http.StatusOK {
		t.Fatalf("submit entry: status %d", code)
	}
	return res
}

func TestHealthHandler(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()

	rr := env.Do(testutil.CreateHTTPRequest(t, "GET", "/health", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	result, ok := resp["result"].(map[string]interface{})
	if !ok || result["messaging"] != true || result["storage"] != true {
		t.Errorf("unexpected health result: %v", resp["result"])
	}
}

func TestMoodsHandler_ListsCatalogInOrder(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()

	rr := env.Do(testutil.CreateHTTPRequest(t, "GET", "/moods", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "moods")
	var themes []catalog.Theme
	testutil.DecodeResult(t, rr, &themes)

	moods := catalog.Moods()
	if len(themes) != len(moods) {
		t.Fatalf("expected %d themes, got %d", len(moods), len(themes))
	}
	for i, th := range themes {
		if th.Mood != moods[i] {
			t.Errorf("theme %d: expected mood %s, got %s", i, moods[i], th.Mood)
		}
	}
}

func TestSessionFlow_HappyPath(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()

	s := createSession(t, env)
	if s.State != models.StateNoMoodSelected || s.ID == "" {
		t.Fatalf("unexpected new session: %+v", s.Session)
	}

	code, s := post(t, env, "/sessions/"+s.ID+"/mood", map[string]string{"mood": "Happy"})
	testutil.AssertHTTPStatus(t, http.StatusOK, code, "pick mood")
	if s.State != models.StateMoodSelected || s.Mood != models.MoodHappy {
		t.Errorf("after pick: %+v", s.Session)
	}
	if s.Theme == nil || s.Theme.Emoji != "😊" {
		t.Errorf("expected happy theme, got %+v", s.Theme)
	}

	code, s = post(t, env, "/sessions/"+s.ID+"/prompts", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, code, "generate prompts")
	if s.State != models.StatePromptsShown || len(s.Prompts) != flow.DefaultPromptCount {
		t.Fatalf("after generate: %+v", s.Session)
	}
	if s.Prompts[0] == s.Prompts[1] {
		t.Errorf("prompts are not distinct: %v", s.Prompts)
	}
	for _, p := range s.Prompts {
		if !catalog.Contains(models.MoodHappy, p) {
			t.Errorf("prompt %q is not a happy prompt", p)
		}
	}

	code, s = post(t, env, "/sessions/"+s.ID+"/entries", map[string]string{"text": "I had a wonderful day"})
	testutil.AssertHTTPStatus(t, http.StatusOK, code, "submit entry")
	if s.State != models.StateResultShown || s.Result == nil {
		t.Fatalf("after submit: %+v", s.Session)
	}
	if s.Result.Band != models.BandPositive || s.Result.Sentiment.Polarity != 0.6 {
		t.Errorf("unexpected reflection: %+v", *s.Result)
	}

	testutil.AssertEntryCount(t, env.Store, 1, "after submit")

	rr := env.Do(testutil.CreateHTTPRequest(t, "GET", "/sessions/"+s.ID, nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "get session")
	var stored sessionResult
	testutil.DecodeResult(t, rr, &stored)
	testutil.AssertSessionEquals(t, s.Session, stored.Session, "stored session")
}

func TestSubmitEntry_EmptyTextRejected(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()

	s := createSession(t, env)
	post(t, env, "/sessions/"+s.ID+"/mood", map[string]string{"mood": "sad"})
	_, before := post(t, env, "/sessions/"+s.ID+"/prompts", nil)

	rr := env.Do(testutil.CreateHTTPRequest(t, "POST", "/sessions/"+s.ID+"/entries", map[string]string{"text": "   \n\t"}))
	testutil.AssertHTTPStatus(t, http.StatusUnprocessableEntity, rr.Code, "empty entry")
	body := rr.Body.String()
	if !strings.Contains(body, flow.EmptyEntryWarning) {
		t.Errorf("expected warning in response, got %s", body)
	}
	var after sessionResult
	testutil.DecodeResult(t, rr, &after)
	testutil.AssertSessionEquals(t, before.Session, after.Session, "rejected submission")

	if env.Analyzer.CallCount() != 0 {
		t.Errorf("analyzer must not run for empty text, ran %d times", env.Analyzer.CallCount())
	}
	testutil.AssertEntryCount(t, env.Store, 0, "after rejected submission")
}

func TestSubmitEntry_InvalidTransition(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()

	s := createSession(t, env)
	post(t, env, "/sessions/"+s.ID+"/mood", map[string]string{"mood": "angry"})

	code, after := post(t, env, "/sessions/"+s.ID+"/entries", map[string]string{"text": "hello"})
	testutil.AssertHTTPStatus(t, http.StatusConflict, code, "submit before prompts")
	if after.State != models.StateMoodSelected {
		t.Errorf("session should be unchanged, got state %s", after.State)
	}
}

func TestGeneratePrompts_WithoutMood(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()

	s := createSession(t, env)
	code, _ := post(t, env, "/sessions/"+s.ID+"/prompts", nil)
	testutil.AssertHTTPStatus(t, http.StatusConflict, code, "generate without mood")
}

func TestPickMood_Unknown(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()

	s := createSession(t, env)
	rr := env.Do(testutil.CreateHTTPRequest(t, "POST", "/sessions/"+s.ID+"/mood", map[string]string{"mood": "bored"}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "unknown mood")
	testutil.AssertJSONResponse(t, rr, "error")
}

func TestPickMood_InvalidJSON(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()

	s := createSession(t, env)
	rr := env.Do(testutil.CreateJSONRequest(t, "POST", "/sessions/"+s.ID+"/mood", `{"mood":`))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid JSON")
}

func TestSession_NotFound(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()

	for _, tc := range []struct{ method, path string }{
		{"GET", "/sessions/s_missing"},
		{"DELETE", "/sessions/s_missing"},
		{"POST", "/sessions/s_missing/prompts"},
	} {
		rr := env.Do(testutil.CreateHTTPRequest(t, tc.method, tc.path, nil))
		testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, tc.method+" "+tc.path)
	}
	rr := env.Do(testutil.CreateHTTPRequest(t, "POST", "/sessions/s_missing/mood", map[string]string{"mood": "happy"}))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "pick on missing session")
}

func TestDeleteSession(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()

	s := createSession(t, env)
	rr := env.Do(testutil.CreateHTTPRequest(t, "DELETE", "/sessions/"+s.ID, nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "delete session")

	rr = env.Do(testutil.CreateHTTPRequest(t, "GET", "/sessions/"+s.ID, nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "get deleted session")
}

func TestSubmitEntry_CollaboratorFailure(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()

	s := createSession(t, env)
	post(t, env, "/sessions/"+s.ID+"/mood", map[string]string{"mood": "anxious"})
	_, before := post(t, env, "/sessions/"+s.ID+"/prompts", nil)

	env.Analyzer.Err = errors.New("model offline")
	code, after := post(t, env, "/sessions/"+s.ID+"/entries", map[string]string{"text": "so much to do"})
	testutil.AssertHTTPStatus(t, http.StatusBadGateway, code, "analyzer failure")
	testutil.AssertSessionEquals(t, before.Session, after.Session, "session after analyzer failure")
	testutil.AssertEntryCount(t, env.Store, 0, "after analyzer failure")
}

func TestMethodNotAllowed(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()

	rr := env.Do(testutil.CreateHTTPRequest(t, "GET", "/sessions", nil))
	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "GET /sessions")
	if allow := rr.Header().Get("Allow"); allow != http.MethodPost {
		t.Errorf("expected Allow %q, got %q", http.MethodPost, allow)
	}

	rr = env.Do(testutil.CreateHTTPRequest(t, "PUT", "/reminders", nil))
	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "PUT /reminders")
}

func TestShare_SendsReflection(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()

	s := advanceToResult(t, env)
	rr := env.Do(testutil.CreateHTTPRequest(t, "POST", "/sessions/"+s.ID+"/share", map[string]string{"to": "+1 (555) 123-4567"}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "share")

	sent := env.Sender.Messages()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	if sent[0].To != "15551234567" {
		t.Errorf("expected canonical recipient, got %q", sent[0].To)
	}
	if !strings.Contains(sent[0].Body, "Mood: 😊 Happy") || !strings.Contains(sent[0].Body, "positive") {
		t.Errorf("unexpected message body:\n%s", sent[0].Body)
	}
	if strings.Contains(sent[0].Body, "A calm and lovely morning.") {
		t.Error("shared message must not include the journal text")
	}

	receipts, _ := env.Store.GetReceipts()
	if len(receipts) != 1 || receipts[0].Status != models.MessageStatusSent || receipts[0].Kind != models.MessageKindShare {
		t.Errorf("unexpected receipts: %+v", receipts)
	}
}

func TestShare_BeforeResult(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()

	s := createSession(t, env)
	rr := env.Do(testutil.CreateHTTPRequest(t, "POST", "/sessions/"+s.ID+"/share", map[string]string{"to": "15551234567"}))
	testutil.AssertHTTPStatus(t, http.StatusConflict, rr.Code, "share before result")
	if len(env.Sender.Messages()) != 0 {
		t.Error("nothing should be sent")
	}
}

func TestShare_InvalidRecipient(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()

	s := advanceToResult(t, env)
	rr := env.Do(testutil.CreateHTTPRequest(t, "POST", "/sessions/"+s.ID+"/share", map[string]string{"to": "12"}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "short recipient")
}

func TestShare_SendFailureRecordsReceipt(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()

	s := advanceToResult(t, env)
	env.Sender.Err = errors.New("not connected")
	rr := env.Do(testutil.CreateHTTPRequest(t, "POST", "/sessions/"+s.ID+"/share", map[string]string{"to": "15551234567"}))
	testutil.AssertHTTPStatus(t, http.StatusBadGateway, rr.Code, "send failure")

	receipts, _ := env.Store.GetReceipts()
	if len(receipts) != 1 || receipts[0].Status != models.MessageStatusFailed {
		t.Errorf("expected one failed receipt, got %+v", receipts)
	}
}

func TestShare_NoMessagingConfigured(t *testing.T) {
	controller := flow.NewController(&testutil.StubAnalyzer{})
	server := api.NewServer(controller, nil, nil, nil, nil)
	h := server.Handler()

	req := testutil.CreateHTTPRequest(t, "POST", "/sessions/s_1/share", map[string]string{"to": "15551234567"})
	rec := doHandler(h, req)
	testutil.AssertHTTPStatus(t, http.StatusServiceUnavailable, rec.Code, "share without messaging")

	rec = doHandler(h, testutil.CreateHTTPRequest(t, "GET", "/entries", nil))
	testutil.AssertHTTPStatus(t, http.StatusServiceUnavailable, rec.Code, "entries without store")

	rec = doHandler(h, testutil.CreateHTTPRequest(t, "GET", "/receipts", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rec.Code, "receipts without store")
}

func doHandler(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestEntriesHandler_Limit(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()
	testutil.SeedTestData(t, env.Store)

	rr := env.Do(testutil.CreateHTTPRequest(t, "GET", "/entries?limit=1", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "entries limit=1")
	var entries []models.JournalEntry
	testutil.DecodeResult(t, rr, &entries)
	if len(entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(entries))
	}

	rr = env.Do(testutil.CreateHTTPRequest(t, "GET", "/entries", nil))
	testutil.DecodeResult(t, rr, &entries)
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}

	rr = env.Do(testutil.CreateHTTPRequest(t, "GET", "/entries?limit=abc", nil))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "bad limit")
}

func TestReceiptsHandler(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()
	testutil.SeedTestData(t, env.Store)

	rr := env.Do(testutil.CreateHTTPRequest(t, "GET", "/receipts", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "receipts")
	var receipts []models.Receipt
	testutil.DecodeResult(t, rr, &receipts)
	if len(receipts) != 2 {
		t.Errorf("expected 2 receipts, got %d", len(receipts))
	}
}

func TestReminders_Lifecycle(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()

	rr := env.Do(testutil.CreateHTTPRequest(t, "POST", "/reminders", map[string]string{"to": "+1 555 123 4567", "cron": "0 9 * * *"}))
	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "create reminder")
	var rem models.Reminder
	testutil.DecodeResult(t, rr, &rem)
	if !strings.HasPrefix(rem.ID, "rem_") || rem.To != "15551234567" || rem.Cron != "0 9 * * *" {
		t.Errorf("unexpected reminder: %+v", rem)
	}
	if !env.Sched.Has(rem.ID) {
		t.Error("reminder should be scheduled")
	}

	rr = env.Do(testutil.CreateHTTPRequest(t, "GET", "/reminders", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "list reminders")
	var reminders []models.Reminder
	testutil.DecodeResult(t, rr, &reminders)
	if len(reminders) != 1 || reminders[0].ID != rem.ID {
		t.Errorf("unexpected reminders: %+v", reminders)
	}

	rr = env.Do(testutil.CreateHTTPRequest(t, "DELETE", "/reminders/"+rem.ID, nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "delete reminder")
	if env.Sched.Has(rem.ID) {
		t.Error("reminder should be unscheduled")
	}

	rr = env.Do(testutil.CreateHTTPRequest(t, "DELETE", "/reminders/"+rem.ID, nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "delete missing reminder")
}

func TestReminders_Validation(t *testing.T) {
	env := testutil.NewTestEnv()
	defer env.Close()

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing cron", map[string]string{"to": "15551234567"}},
		{"invalid cron", map[string]string{"to": "15551234567", "cron": "every day"}},
		{"invalid recipient", map[string]string{"to": "abc", "cron": "@daily"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.Do(testutil.CreateHTTPRequest(t, "POST", "/reminders", tt.body))
			testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, tt.name)
		})
	}
	reminders, _ := env.Store.ListReminders()
	if len(reminders) != 0 {
		t.Errorf("rejected reminders must not be stored, got %d", len(reminders))
	}
}

func TestStart_RecoversStoredReminders(t *testing.T) {
	env := testutil.NewTestEnv(api.WithSessionIdleTimeout(time.Hour))
	defer env.Close()

	rem := models.Reminder{ID: "rem_recovered", To: "15551234567", Cron: "@daily", CreatedAt: time.Now()}
	if err := env.Store.AddReminder(rem); err != nil {
		t.Fatalf("AddReminder: %v", err)
	}

	if err := env.Server.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !env.Sched.Has(rem.ID) {
		t.Error("stored reminder should be rescheduled on start")
	}
	// Recovered reminder plus the idle session sweep.
	if env.Sched.Len() != 2 {
		t.Errorf("expected 2 scheduled entries, got %d", env.Sched.Len())
	}
}
