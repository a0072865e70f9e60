package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorWithDetails(t *testing.T) {
	recorder := httptest.NewRecorder()

	ErrorWithDetails(recorder, http.StatusUnprocessableEntity, "validation failed", []string{"Field 'Email' is required"})

	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"validation failed","details":["Field 'Email' is required"]}`, recorder.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	var payload struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"contact"}`))
	require.NoError(t, DecodeJSON(req, &payload))
	assert.Equal(t, "contact", payload.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.EqualError(t, DecodeJSON(req, &payload), "request body is empty")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":true}`))
	assert.Error(t, DecodeJSON(req, &payload))
}

func TestHealthz(t *testing.T) {
	server := New()
	recorder := httptest.NewRecorder()

	server.Router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())
}
