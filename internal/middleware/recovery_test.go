package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/partyfinder/pkg/logger"
	"github.com/charlesng35/partyfinder/pkg/response"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload), w.Body.String())
	require.False(t, payload.Success)
	require.NotNil(t, payload.Error)
	return payload
}

func TestRecoveryHidesPanicAndLogsActor(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.ErrorLevel)
	prev := logger.Logger()
	logger.Replace(zap.New(core))
	t.Cleanup(func() { logger.Replace(prev) })

	r := gin.New()
	r.Use(Recovery())
	r.POST("/api/parties/:id/close", func(c *gin.Context) {
		c.Set(CtxUserIDKey, "owner-1")
		panic("slot table corrupted")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/parties/p-1/close", nil))

	payload := decodeEnvelope(t, w)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "INTERNAL_SERVER_ERROR", payload.Error.Code)
	require.NotContains(t, w.Body.String(), "slot table corrupted")

	entries := logs.FilterMessage("panic").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "owner-1", fields["user_id"])
	require.Equal(t, "/api/parties/p-1/close", fields["path"])
}

func TestNotFoundHandlerNamesRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.NoRoute(NotFoundHandler)

	for _, path := range []string{"/api/party", "/api/parties/p-1/slots"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		payload := decodeEnvelope(t, w)
		require.Equal(t, http.StatusNotFound, w.Code)
		require.Equal(t, "NOT_FOUND", payload.Error.Code)
		require.Contains(t, payload.Error.Message, path)
	}
}
