package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/defense-scheduler/internal/application"
	"github.com/example/defense-scheduler/internal/scheduler"
)

func TestRequirePrincipal(t *testing.T) {
	t.Parallel()

	t.Run("rejects requests without a caller id", func(t *testing.T) {
		t.Parallel()

		handler := RequirePrincipal(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("next handler should not be called")
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/defenses", nil))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
		if kind := decodeError(t, rec).Kind; kind != kindUnauthenticated {
			t.Fatalf("kind = %q", kind)
		}
	})

	t.Run("attaches the principal to the request context", func(t *testing.T) {
		t.Parallel()

		var got application.Principal
		handler := RequirePrincipal(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = PrincipalFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))
		req := httptest.NewRequest(http.MethodGet, "/defenses", nil)
		req.Header.Set(HeaderUserID, "  u-coord ")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent || got.UserID != "u-coord" {
			t.Fatalf("status = %d principal = %+v", rec.Code, got)
		}
	})
}

func TestRouter_RecoversPanics(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := RequestLogger(logger)(Recoverer(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get(HeaderRequestID) != "req-42" {
		t.Fatalf("request id header = %q", rec.Header().Get(HeaderRequestID))
	}
	if kind := decodeError(t, rec).Kind; kind != application.KindUnexpected {
		t.Fatalf("kind = %q", kind)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	t.Parallel()

	router := NewRouter(RouterConfig{
		Defenses:    NewDefenseHandler(&defenseServiceStub{}, scheduler.NewCalendar(addisAbaba, nil), nil),
		CORSOrigins: []string{"https://portal.example.edu"},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	req := httptest.NewRequest(http.MethodOptions, "/defenses", nil)
	req.Header.Set("Origin", "https://portal.example.edu")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", HeaderUserID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://portal.example.edu" {
		t.Fatalf("allow origin = %q (status %d)", got, rec.Code)
	}
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	healthy := NewRouter(RouterConfig{Health: func(context.Context) error { return nil }})
	rec := doRequest(t, healthy, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthy status = %d", rec.Code)
	}

	failing := NewRouter(RouterConfig{
		Health: func(context.Context) error { return errors.New("database unreachable") },
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	rec = doRequest(t, failing, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("failing status = %d", rec.Code)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestRouter(&defenseServiceStub{}), http.MethodPut, "/defenses/d-1", "u-coord", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}
