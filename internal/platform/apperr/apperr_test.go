package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"direct", New(KindNotFound, "missing"), KindNotFound},
		{"wrapped", fmt.Errorf("outer: %w", New(KindInsufficientStock, "low")), KindInsufficientStock},
		{"pgx no rows", fmt.Errorf("query: %w", pgx.ErrNoRows), KindNotFound},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"plain", errors.New("boom"), KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindInvalidInput, http.StatusBadRequest},
		{KindInvalidQuantity, http.StatusBadRequest},
		{KindInvalidStatus, http.StatusBadRequest},
		{KindInvalidKind, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindInsufficientStock, http.StatusConflict},
		{KindUnavailable, http.StatusServiceUnavailable},
		{KindTimeout, http.StatusGatewayTimeout},
		{KindUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.kind); got != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.kind, tc.want, got)
		}
	}
}

func TestErrorHandler_Envelope(t *testing.T) {
	e := echo.New()
	handler := ErrorHandler(zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler(New(KindInsufficientStock, "insufficient stock"), c)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["message"] != "insufficient stock" {
		t.Errorf("unexpected message: %q", body["message"])
	}
}

func TestErrorHandler_MasksInternal(t *testing.T) {
	e := echo.New()
	handler := ErrorHandler(zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler(errors.New("pq: column users.secret does not exist"), c)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["message"] != "internal server error" {
		t.Errorf("internal details leaked: %q", body["message"])
	}
}

func TestError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := Wrap(KindUnavailable, "store unreachable", inner)
	if !errors.Is(err, inner) {
		t.Error("expected wrapped error to match errors.Is")
	}
}
