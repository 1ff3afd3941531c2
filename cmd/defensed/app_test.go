package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/defense-scheduler/internal/config"
	"github.com/example/defense-scheduler/internal/testfixtures"
)

func newTestApp(t *testing.T) *app {
	t.Helper()

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "defenses.db")
	cfg.Notify.Workers = 1

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := newApp(context.Background(), &cfg, logger, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, a.Close(ctx))
	})

	for _, u := range testfixtures.Directory() {
		require.NoError(t, a.storage.Users.UpsertUser(context.Background(), u.Persistence()))
	}
	return a
}

func call(t *testing.T, h http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// futureDate returns a date a month ahead in the institution zone.
func futureDate() string {
	return time.Now().In(testfixtures.Location()).AddDate(0, 1, 0).Format("2006-01-02")
}

func createBody(title, venue string, panel ...string) map[string]any {
	return map[string]any{
		"title":        title,
		"candidateId":  testfixtures.CandidateID,
		"panelistIds":  panel,
		"supervisorId": testfixtures.SupervisorID,
		"date":         futureDate(),
		"startTime":    "10:00",
		"durationMins": 60,
		"bufferMins":   15,
		"modality":     "in-person",
		"venue":        venue,
	}
}

func TestAppSchedulesDefenseAndDeliversInbox(t *testing.T) {
	a := newTestApp(t)

	rec := call(t, a.handler, http.MethodPost, "/defenses", testfixtures.CoordinatorID,
		createBody("Distributed Consensus", "Room 101", testfixtures.PanelistAID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Defense struct {
			ID        string `json:"id"`
			Status    string `json:"status"`
			Responses []struct {
				UserID string `json:"userId"`
				Status string `json:"status"`
			} `json:"responses"`
		} `json:"defense"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Defense.ID)
	assert.Equal(t, "scheduled", created.Defense.Status)
	assert.Len(t, created.Defense.Responses, 2)

	rec = call(t, a.handler, http.MethodGet, "/defenses/"+created.Defense.ID, testfixtures.PanelistAID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		rec := call(t, a.handler, http.MethodGet, "/notifications", testfixtures.PanelistAID, nil)
		return rec.Code == http.StatusOK && strings.Contains(rec.Body.String(), created.Defense.ID)
	}, 5*time.Second, 20*time.Millisecond)

	rec = call(t, a.handler, http.MethodGet, "/notifications", testfixtures.CandidateID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), created.Defense.ID)
}

func TestAppRejectsConflictingBooking(t *testing.T) {
	a := newTestApp(t)

	rec := call(t, a.handler, http.MethodPost, "/defenses", testfixtures.CoordinatorID,
		createBody("First", "Room 101", testfixtures.PanelistAID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Same panelist, different room, same slot.
	rec = call(t, a.handler, http.MethodPost, "/defenses", testfixtures.CoordinatorID,
		createBody("Second", "Room 202", testfixtures.PanelistAID))
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"kind":"conflict"`)

	// Disjoint people, same room.
	second := testfixtures.NewUserFixture(testfixtures.WithUserID("student-2"), testfixtures.WithUserRole(testfixtures.RoleStudent))
	require.NoError(t, a.storage.Users.UpsertUser(context.Background(), second.Persistence()))
	body := createBody("Third", "Room 101", testfixtures.PanelistBID)
	body["candidateId"] = second.ID
	delete(body, "supervisorId")
	rec = call(t, a.handler, http.MethodPost, "/defenses", testfixtures.CoordinatorID, body)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	body["venue"] = "Room 303"
	rec = call(t, a.handler, http.MethodPost, "/defenses", testfixtures.CoordinatorID, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestAppUnknownPersonIsNotFound(t *testing.T) {
	a := newTestApp(t)

	rec := call(t, a.handler, http.MethodPost, "/defenses", testfixtures.CoordinatorID,
		createBody("Ghost Panel", "Room 101", "nobody"))
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "nobody")
}

func TestAppHealthAndMetrics(t *testing.T) {
	a := newTestApp(t)

	rec := call(t, a.handler, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, a.handler, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "notification_queue_depth")
}

func TestAppRequiresCaller(t *testing.T) {
	a := newTestApp(t)

	rec := call(t, a.handler, http.MethodGet, "/defenses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
