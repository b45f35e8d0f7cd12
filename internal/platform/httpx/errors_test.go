package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockroom-erp/stockroom/internal/shared"
)

func respond(t *testing.T, err error) (int, ProblemDetail) {
	t.Helper()
	rec := httptest.NewRecorder()
	RespondError(rec, err)

	var problem ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	return rec.Code, problem
}

func TestRespondErrorStorageFailure(t *testing.T) {
	wrapped := fmt.Errorf("commit tx: %w: connection reset", shared.ErrStorage)

	code, problem := respond(t, wrapped)
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, "Storage Failure", problem.Title)
	require.Equal(t, "storage failure, the operation was not committed", problem.Detail)
}

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", shared.ErrNotFound, http.StatusNotFound},
		{"conflict", shared.ErrConflict, http.StatusConflict},
		{"credentials", shared.ErrInvalidCredentials, http.StatusUnauthorized},
		{"validation", shared.NewValidationError("name", "required"), http.StatusBadRequest},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, problem := respond(t, tc.err)
			require.Equal(t, tc.status, code)
			require.Equal(t, tc.status, problem.Status)
		})
	}
}
