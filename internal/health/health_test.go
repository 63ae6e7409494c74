package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthzAlwaysOK(t *testing.T) {
	h := New(Checker{Name: "broken", Check: func(context.Context) error {
		return errors.New("down")
	}})

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestReadyzReportsCheckers(t *testing.T) {
	t.Run("all passing", func(t *testing.T) {
		h := New(
			Checker{Name: "pipeline", Check: func(context.Context) error { return nil }},
			Checker{Name: "store", Check: func(context.Context) error { return nil }},
		)

		rec := httptest.NewRecorder()
		h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Status != "ok" || body.Checks["pipeline"] != "ok" || body.Checks["store"] != "ok" {
			t.Errorf("body = %+v", body)
		}
	})

	t.Run("one failing", func(t *testing.T) {
		h := New(
			Checker{Name: "pipeline", Check: func(context.Context) error { return nil }},
			Checker{Name: "store", Check: func(context.Context) error { return errors.New("no connection") }},
		)

		rec := httptest.NewRecorder()
		h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Status != "fail" || body.Checks["store"] != "fail: no connection" {
			t.Errorf("body = %+v", body)
		}
	})
}
