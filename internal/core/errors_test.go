// AngelaMos | 2026
// errors_test.go

package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorUnwrap(t *testing.T) {
	err := TokenRevokedError()

	assert.ErrorIs(t, err, ErrTokenRevoked)
	assert.True(t, IsAppError(err))
	assert.False(t, IsAppError(errors.New("plain")))
}

func TestJSONErrorAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONError(rec, ForbiddenError(""))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.False(t, body.Success)
	assert.Equal(t, "FORBIDDEN", body.Error.Code)
	assert.Equal(t, "insufficient permissions", body.Error.Message)
}

func TestJSONErrorPlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONError(rec, errors.New("pg: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// Internal details never leak to the client.
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.Contains(t, rec.Body.String(), "INTERNAL")
}

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]string{"username": "mlopez"})

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "mlopez", body.Data["username"])
}
