package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/syndication-service/internal/domain"
)

func TestErr(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", domain.NewNotFoundError("post", "1"), http.StatusNotFound, "NOT_FOUND"},
		{"busy", fmt.Errorf("site post 1 is writing: %w", domain.ErrBusy), http.StatusLocked, "BUSY"},
		{"duplicate", domain.NewDuplicateError("slug", "a"), http.StatusConflict, "ALREADY_EXISTS"},
		{"nothing to publish", domain.ErrNothingToPublish, http.StatusConflict, "NOTHING_TO_PUBLISH"},
		{"inherited field", fmt.Errorf("title: %w", domain.ErrInheritedField), http.StatusConflict, "INHERITED_FIELD"},
		{"validation", domain.NewValidationError("field", "x", "unknown"), http.StatusBadRequest, "BAD_REQUEST"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Err(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Nil(t, resp.Data)
		})
	}
}

func TestInternalErrorHidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	Err(w, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("password=secret"))
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestOK(t *testing.T) {
	w := httptest.NewRecorder()
	OK(w, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"status":"ok"},"error":null}`, w.Body.String())
}
