// Package testutil provides common test utilities and helpers for Clarity Room tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/BTreeMap/ClarityRoom/internal/api"
	"github.com/BTreeMap/ClarityRoom/internal/catalog"
	"github.com/BTreeMap/ClarityRoom/internal/flow"
	"github.com/BTreeMap/ClarityRoom/internal/messaging"
	"github.com/BTreeMap/ClarityRoom/internal/models"
	"github.com/BTreeMap/ClarityRoom/internal/scheduler"
	"github.com/BTreeMap/ClarityRoom/internal/store"
	"github.com/BTreeMap/ClarityRoom/internal/whatsapp"
)

// TB is the subset of testing.TB used by the assertion helpers.
type TB interface {
	Helper()
	Errorf(format string, args ...interface{})
	Error(args ...interface{})
	Fatalf(format string, args ...interface{})
	Fatal(args ...interface{})
}

// StubAnalyzer returns a fixed sentiment result, or Err when set.
type StubAnalyzer struct {
	mu     sync.Mutex
	Result models.SentimentResult
	Err    error
	Calls  int
}

// Analyze implements sentiment.Analyzer.
func (a *StubAnalyzer) Analyze(ctx context.Context, text string) (models.SentimentResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Calls++
	if a.Err != nil {
		return models.SentimentResult{}, a.Err
	}
	return a.Result, nil
}

// CallCount returns how many times Analyze ran.
func (a *StubAnalyzer) CallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Calls
}

// TestEnv bundles a test API server with handles on its in-memory dependencies.
type TestEnv struct {
	Server   *api.Server
	Handler  http.Handler
	Analyzer *StubAnalyzer
	Sender   *whatsapp.MockClient
	Store    *store.InMemoryStore
	Sched    *scheduler.Scheduler
}

// NewTestEnv creates a test API server with in-memory dependencies, a seeded
// prompt selector and a mock WhatsApp sender. Callers should Close it.
func NewTestEnv(opts ...api.Option) *TestEnv {
	analyzer := &StubAnalyzer{Result: models.SentimentResult{Polarity: 0.6, Subjectivity: 0.7}}
	sender := whatsapp.NewMockClient()
	st := store.NewInMemoryStore()
	sched := scheduler.NewScheduler()

	controller := flow.NewController(analyzer,
		flow.WithSelector(catalog.NewSeededSelector(1)),
		flow.WithRecorder(st),
	)
	opts = append([]api.Option{api.WithSelector(catalog.NewSeededSelector(2))}, opts...)
	server := api.NewServer(controller, flow.NewSessionManager(), messaging.NewWhatsAppService(sender), sched, st, opts...)

	return &TestEnv{
		Server:   server,
		Handler:  server.Handler(),
		Analyzer: analyzer,
		Sender:   sender,
		Store:    st,
		Sched:    sched,
	}
}

// Close stops the environment's scheduler.
func (e *TestEnv) Close() {
	e.Sched.Stop()
}

// Do serves one request against the environment's handler.
func (e *TestEnv) Do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.Handler.ServeHTTP(rr, req)
	return rr
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t TB, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t TB, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// DecodeResult decodes the "result" field of an APIResponse body into target.
func DecodeResult(t TB, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	var envelope struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if len(envelope.Result) == 0 {
		t.Fatalf("response has no result: %s", rr.Body.String())
	}
	if err := json.Unmarshal(envelope.Result, target); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t TB, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// CreateJSONRequest creates an HTTP request from a raw JSON string.
func CreateJSONRequest(t TB, method, url, jsonBody string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(jsonBody))
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertEntryCount validates the number of journal entries in store matches expected.
func AssertEntryCount(t TB, st store.Store, expected int, context string) {
	t.Helper()
	entries, err := st.ListEntries(0)
	if err != nil {
		t.Fatalf("%s: failed to list entries: %v", context, err)
	}
	if len(entries) != expected {
		t.Errorf("%s: expected %d entries, got %d", context, expected, len(entries))
	}
}

// SeedTestData adds sample data to the store for testing.
func SeedTestData(t TB, st store.Store) {
	t.Helper()

	testReceipts := []models.Receipt{
		{To: "15551230001", Kind: models.MessageKindShare, Status: models.MessageStatusSent, Time: 1},
		{To: "15551230002", Kind: models.MessageKindReminder, Status: models.MessageStatusFailed, Time: 2},
	}
	for _, receipt := range testReceipts {
		if err := st.AddReceipt(receipt); err != nil {
			t.Fatalf("failed to add test receipt: %v", err)
		}
	}

	testEntries := []models.JournalEntry{
		{ID: "e1", SessionID: "s_1", Mood: models.MoodHappy, Prompts: []string{"What's bringing you joy today?"}, Text: "sunny walk", Polarity: 0.5, Subjectivity: 0.6, Band: models.BandPositive},
		{ID: "e2", SessionID: "s_2", Mood: models.MoodSad, Prompts: []string{"What might help you feel a little better?"}, Text: "long day", Polarity: -0.3, Subjectivity: 0.4, Band: models.BandNegative},
	}
	for _, entry := range testEntries {
		if err := st.AddEntry(entry); err != nil {
			t.Fatalf("failed to add test entry: %v", err)
		}
	}
}

// AssertSessionEquals compares the observable parts of two session snapshots.
func AssertSessionEquals(t TB, expected, actual models.Session, context string) {
	t.Helper()
	if actual.ID != expected.ID ||
		actual.State != expected.State ||
		actual.Mood != expected.Mood {
		t.Errorf("%s: sessions don't match\nexpected: %+v\nactual: %+v", context, expected, actual)
		return
	}

	if len(actual.Prompts) != len(expected.Prompts) {
		t.Errorf("%s: prompts length mismatch: expected %d, got %d",
			context, len(expected.Prompts), len(actual.Prompts))
		return
	}
	for i := range expected.Prompts {
		if actual.Prompts[i] != expected.Prompts[i] {
			t.Errorf("%s: prompt %d mismatch: expected %q, got %q", context, i, expected.Prompts[i], actual.Prompts[i])
		}
	}

	if (expected.Result == nil) != (actual.Result == nil) {
		t.Errorf("%s: result presence mismatch: expected %v, got %v", context, expected.Result, actual.Result)
		return
	}
	if expected.Result != nil && *expected.Result != *actual.Result {
		t.Errorf("%s: result mismatch\nexpected: %+v\nactual: %+v", context, *expected.Result, *actual.Result)
	}
}
