package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/versafe/versafe-core/internal/apperr"
)

func TestWriteErrorMapsKindToStatus(t *testing.T) {
	cases := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindValidation, http.StatusBadRequest},
		{apperr.KindAuth, http.StatusUnauthorized},
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindConflict, http.StatusConflict},
		{apperr.KindSecurity, http.StatusForbidden},
		{apperr.KindLedgerUnavailable, http.StatusServiceUnavailable},
		{apperr.KindIntegrity, http.StatusUnprocessableEntity},
		{apperr.KindInternal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, nil, "corr-1", apperr.New(c.kind, "boom"))
		if rec.Code != c.want {
			t.Errorf("kind %s: status = %d, want %d", c.kind, rec.Code, c.want)
		}
	}
}

func TestWriteErrorWrapsUntranslatedErrorAsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, nil, "corr-2", errors.New("raw database error"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 for an untranslated error", rec.Code)
	}
}

func TestWriteDataSetsSuccessTrue(t *testing.T) {
	rec := httptest.NewRecorder()
	writeData(rec, http.StatusOK, map[string]string{"k": "v"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got == "" {
		t.Fatal("expected a non-empty body")
	}
}
