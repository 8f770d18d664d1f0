package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/generallabsolutions/crm-backend/internal/activities"
	"github.com/generallabsolutions/crm-backend/internal/audit"
	"github.com/generallabsolutions/crm-backend/internal/auth"
	"github.com/generallabsolutions/crm-backend/internal/leads"
	"github.com/generallabsolutions/crm-backend/internal/notes"
	"github.com/generallabsolutions/crm-backend/internal/tasks"
	"github.com/generallabsolutions/crm-backend/internal/users"
)

const (
	testAPIKey        = "test-key"
	testSigningSecret = "test-signing-secret"
)

func newTestRouter(testContext *testing.T) http.Handler {
	testContext.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(
		&leads.Lead{}, &tasks.Task{}, &activities.Activity{},
		&notes.Note{}, &audit.Entry{}, &users.User{},
	); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	feed := NewEventFeed()
	auditService, err := audit.NewService(audit.ServiceConfig{Database: database, Notifier: feed})
	if err != nil {
		testContext.Fatalf("failed to build audit service: %v", err)
	}
	leadService, err := leads.NewService(leads.ServiceConfig{Database: database, Audit: auditService})
	if err != nil {
		testContext.Fatalf("failed to build lead service: %v", err)
	}
	taskService, err := tasks.NewService(tasks.ServiceConfig{Database: database, Audit: auditService})
	if err != nil {
		testContext.Fatalf("failed to build task service: %v", err)
	}
	activityService, err := activities.NewService(activities.ServiceConfig{Database: database, Audit: auditService})
	if err != nil {
		testContext.Fatalf("failed to build activity service: %v", err)
	}
	noteService, err := notes.NewService(notes.ServiceConfig{Database: database, Audit: auditService})
	if err != nil {
		testContext.Fatalf("failed to build note service: %v", err)
	}
	userService, err := users.NewService(database)
	if err != nil {
		testContext.Fatalf("failed to build user service: %v", err)
	}
	if err := userService.EnsureDefaultTeam(context.Background()); err != nil {
		testContext.Fatalf("failed to seed users: %v", err)
	}

	issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        "crm-api",
		Audience:      "crm-dashboard",
	})

	handler, err := NewHTTPHandler(Dependencies{
		Leads:      leadService,
		Tasks:      taskService,
		Activities: activityService,
		Notes:      noteService,
		Audit:      auditService,
		Users:      userService,
		Tokens:     issuer,
		APIKey:     testAPIKey,
		Feed:       feed,
	})
	if err != nil {
		testContext.Fatalf("failed to build router: %v", err)
	}
	return handler
}

func performJSON(testContext *testing.T, handler http.Handler, method, target string, payload any, headers map[string]string) *httptest.ResponseRecorder {
	testContext.Helper()

	var body *bytes.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			testContext.Fatalf("failed to encode payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	} else {
		body = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, target, body)
	request.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody[T any](testContext *testing.T, recorder *httptest.ResponseRecorder) T {
	testContext.Helper()
	var decoded T
	if err := json.Unmarshal(recorder.Body.Bytes(), &decoded); err != nil {
		testContext.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return decoded
}

func TestCreateLeadAppliesDefaults(testContext *testing.T) {
	handler := newTestRouter(testContext)

	recorder := performJSON(testContext, handler, http.MethodPost, "/api/leads",
		map[string]any{"name": "Ava Thompson", "email": "ava@example.com"}, nil)
	if recorder.Code != http.StatusCreated {
		testContext.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}

	created := decodeBody[leads.Lead](testContext, recorder)
	if created.Status != leads.StatusNew {
		testContext.Fatalf("expected default status new, got %q", created.Status)
	}
	if created.Score != 50 {
		testContext.Fatalf("expected default score 50, got %d", created.Score)
	}
	if created.Temperature != leads.TemperatureWarm {
		testContext.Fatalf("expected default temperature warm, got %q", created.Temperature)
	}
	if created.Responsible == "" {
		testContext.Fatalf("expected an assigned responsible")
	}
}

func TestCreateLeadDuplicateEmailConflicts(testContext *testing.T) {
	handler := newTestRouter(testContext)

	payload := map[string]any{"name": "Ava Thompson", "email": "ava@example.com"}
	if recorder := performJSON(testContext, handler, http.MethodPost, "/api/leads", payload, nil); recorder.Code != http.StatusCreated {
		testContext.Fatalf("expected 201, got %d", recorder.Code)
	}
	recorder := performJSON(testContext, handler, http.MethodPost, "/api/leads", payload, nil)
	if recorder.Code != http.StatusConflict {
		testContext.Fatalf("expected 409 for duplicate email, got %d", recorder.Code)
	}
}

func TestLeadStatusUpdateAppearsInLogs(testContext *testing.T) {
	handler := newTestRouter(testContext)

	created := decodeBody[leads.Lead](testContext, performJSON(testContext, handler, http.MethodPost, "/api/leads",
		map[string]any{"name": "Ava Thompson", "email": "ava@example.com"}, nil))

	recorder := performJSON(testContext, handler, http.MethodPut,
		fmt.Sprintf("/api/leads/%d/status", created.ID),
		map[string]any{"status": "qualified"}, nil)
	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	updated := decodeBody[leads.Lead](testContext, recorder)
	if updated.Status != leads.StatusQualified {
		testContext.Fatalf("expected qualified, got %q", updated.Status)
	}

	logsRecorder := performJSON(testContext, handler, http.MethodGet, "/api/logs?type=lead", nil, nil)
	if logsRecorder.Code != http.StatusOK {
		testContext.Fatalf("expected 200, got %d", logsRecorder.Code)
	}
	entries := decodeBody[[]audit.Entry](testContext, logsRecorder)
	if len(entries) != 2 {
		testContext.Fatalf("expected 2 lead entries (create + transition), got %d", len(entries))
	}
	if entries[0].Title != "Lead status updated" {
		testContext.Fatalf("expected newest entry to be the transition, got %q", entries[0].Title)
	}
	if entries[0].Description != "Lead Ava Thompson moved from new to qualified" {
		testContext.Fatalf("unexpected transition description %q", entries[0].Description)
	}
}

func TestLeadStatusRejectsUnknownStage(testContext *testing.T) {
	handler := newTestRouter(testContext)

	created := decodeBody[leads.Lead](testContext, performJSON(testContext, handler, http.MethodPost, "/api/leads",
		map[string]any{"name": "Ava Thompson", "email": "ava@example.com"}, nil))

	recorder := performJSON(testContext, handler, http.MethodPut,
		fmt.Sprintf("/api/leads/%d/status", created.ID),
		map[string]any{"status": "frozen"}, nil)
	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected 400 for unknown stage, got %d", recorder.Code)
	}
}

func TestUpdateMissingLeadNotFound(testContext *testing.T) {
	handler := newTestRouter(testContext)

	recorder := performJSON(testContext, handler, http.MethodPut, "/api/leads/4242",
		map[string]any{"name": "Ghost", "email": "ghost@example.com"}, nil)
	if recorder.Code != http.StatusNotFound {
		testContext.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestDeleteLeadIsIdempotent(testContext *testing.T) {
	handler := newTestRouter(testContext)

	created := decodeBody[leads.Lead](testContext, performJSON(testContext, handler, http.MethodPost, "/api/leads",
		map[string]any{"name": "Ava Thompson", "email": "ava@example.com"}, nil))

	target := fmt.Sprintf("/api/leads/%d", created.ID)
	if recorder := performJSON(testContext, handler, http.MethodDelete, target, nil, nil); recorder.Code != http.StatusNoContent {
		testContext.Fatalf("expected 204, got %d", recorder.Code)
	}
	if recorder := performJSON(testContext, handler, http.MethodDelete, target, nil, nil); recorder.Code != http.StatusNoContent {
		testContext.Fatalf("expected repeated delete to return 204, got %d", recorder.Code)
	}
}

func TestNotesFilteredByLead(testContext *testing.T) {
	handler := newTestRouter(testContext)

	created := decodeBody[leads.Lead](testContext, performJSON(testContext, handler, http.MethodPost, "/api/leads",
		map[string]any{"name": "Ava Thompson", "email": "ava@example.com"}, nil))

	if recorder := performJSON(testContext, handler, http.MethodPost, "/api/notes",
		map[string]any{"lead_id": created.ID, "content": "call back friday"}, nil); recorder.Code != http.StatusCreated {
		testContext.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if recorder := performJSON(testContext, handler, http.MethodPost, "/api/notes",
		map[string]any{"lead_id": created.ID + 1, "content": "unrelated"}, nil); recorder.Code != http.StatusCreated {
		testContext.Fatalf("expected 201, got %d", recorder.Code)
	}

	recorder := performJSON(testContext, handler, http.MethodGet,
		fmt.Sprintf("/api/notes?lead_id=%d", created.ID), nil, nil)
	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected 200, got %d", recorder.Code)
	}
	listed := decodeBody[[]notes.Note](testContext, recorder)
	if len(listed) != 1 || listed[0].Content != "call back friday" {
		testContext.Fatalf("expected only the lead's note, got %+v", listed)
	}
}

func TestTaskLifecycle(testContext *testing.T) {
	handler := newTestRouter(testContext)

	recorder := performJSON(testContext, handler, http.MethodPost, "/api/tasks",
		map[string]any{"title": "Follow up"}, nil)
	if recorder.Code != http.StatusCreated {
		testContext.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	created := decodeBody[tasks.Task](testContext, recorder)
	if created.Priority != tasks.PriorityMedium || created.Status != tasks.StatusPending {
		testContext.Fatalf("expected defaults medium/pending, got %q/%q", created.Priority, created.Status)
	}

	statusRecorder := performJSON(testContext, handler, http.MethodPut,
		fmt.Sprintf("/api/tasks/%d/status", created.ID),
		map[string]any{"status": "completed"}, nil)
	if statusRecorder.Code != http.StatusOK {
		testContext.Fatalf("expected 200, got %d", statusRecorder.Code)
	}

	deleteRecorder := performJSON(testContext, handler, http.MethodDelete,
		fmt.Sprintf("/api/tasks/%d", created.ID), nil, nil)
	if deleteRecorder.Code != http.StatusNoContent {
		testContext.Fatalf("expected 204, got %d", deleteRecorder.Code)
	}
}

func TestSessionPinsAuditActor(testContext *testing.T) {
	handler := newTestRouter(testContext)

	sessionRecorder := performJSON(testContext, handler, http.MethodPost, "/api/auth/session",
		map[string]any{"api_key": testAPIKey, "user_id": "maria"}, nil)
	if sessionRecorder.Code != http.StatusOK {
		testContext.Fatalf("expected 200, got %d: %s", sessionRecorder.Code, sessionRecorder.Body.String())
	}
	session := decodeBody[sessionResponsePayload](testContext, sessionRecorder)
	if session.AccessToken == "" || session.TokenType != "Bearer" {
		testContext.Fatalf("unexpected session payload: %+v", session)
	}

	headers := map[string]string{"Authorization": "Bearer " + session.AccessToken}
	if recorder := performJSON(testContext, handler, http.MethodPost, "/api/leads",
		map[string]any{"name": "Ava Thompson", "email": "ava@example.com"}, headers); recorder.Code != http.StatusCreated {
		testContext.Fatalf("expected 201, got %d", recorder.Code)
	}

	logsRecorder := performJSON(testContext, handler, http.MethodGet, "/api/logs?type=lead", nil, nil)
	entries := decodeBody[[]audit.Entry](testContext, logsRecorder)
	if len(entries) != 1 || entries[0].UserID != "maria" {
		testContext.Fatalf("expected audit entry attributed to maria, got %+v", entries)
	}
}

func TestSessionRejectsWrongAPIKey(testContext *testing.T) {
	handler := newTestRouter(testContext)

	recorder := performJSON(testContext, handler, http.MethodPost, "/api/auth/session",
		map[string]any{"api_key": "wrong", "user_id": "maria"}, nil)
	if recorder.Code != http.StatusUnauthorized {
		testContext.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestSessionRejectsUnknownUser(testContext *testing.T) {
	handler := newTestRouter(testContext)

	recorder := performJSON(testContext, handler, http.MethodPost, "/api/auth/session",
		map[string]any{"api_key": testAPIKey, "user_id": "nobody"}, nil)
	if recorder.Code != http.StatusUnauthorized {
		testContext.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestForgedBearerTokenRejected(testContext *testing.T) {
	handler := newTestRouter(testContext)

	recorder := performJSON(testContext, handler, http.MethodGet, "/api/leads", nil,
		map[string]string{"Authorization": "Bearer not-a-token"})
	if recorder.Code != http.StatusUnauthorized {
		testContext.Fatalf("expected 401 for a forged token, got %d", recorder.Code)
	}
}

func TestAnonymousRequestsAllowed(testContext *testing.T) {
	handler := newTestRouter(testContext)

	recorder := performJSON(testContext, handler, http.MethodGet, "/api/leads", nil, nil)
	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected anonymous access, got %d", recorder.Code)
	}
}

func TestLogFiltersRejectMalformedDates(testContext *testing.T) {
	handler := newTestRouter(testContext)

	recorder := performJSON(testContext, handler, http.MethodGet, "/api/logs?start_date=yesterday", nil, nil)
	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected 400 for malformed date, got %d", recorder.Code)
	}
}

func TestManualLogEntryStored(testContext *testing.T) {
	handler := newTestRouter(testContext)

	recorder := performJSON(testContext, handler, http.MethodPost, "/api/logs",
		map[string]any{"type": "system", "title": "Import finished", "description": "42 leads imported"}, nil)
	if recorder.Code != http.StatusCreated {
		testContext.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	stored := decodeBody[audit.Entry](testContext, recorder)
	if stored.ID == 0 || stored.Timestamp.IsZero() {
		testContext.Fatalf("expected stored entry with id and timestamp, got %+v", stored)
	}
}

func TestCORSPreflightAllowsDashboardOrigin(testContext *testing.T) {
	handler := newTestRouter(testContext)

	request := httptest.NewRequest(http.MethodOptions, "/api/leads", nil)
	request.Header.Set("Origin", "http://localhost:3000")
	request.Header.Set("Access-Control-Request-Method", http.MethodPut)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent && recorder.Code != http.StatusOK {
		testContext.Fatalf("unexpected preflight status %d", recorder.Code)
	}
	if allow := recorder.Header().Get("Access-Control-Allow-Origin"); allow != "*" {
		testContext.Fatalf("expected wildcard origin, got %q", allow)
	}
}
