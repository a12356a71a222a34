package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hopoff/tripwatch/internal/handler"
	"github.com/hopoff/tripwatch/internal/service"
)

func TestGetHealth(t *testing.T) {
	srv := handler.NewServer(&mockTracker{}, &mockPositions{}, nil, service.NewEventHub())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
