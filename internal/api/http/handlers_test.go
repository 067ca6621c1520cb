package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherdlog/shepherd/internal/domain/broadcast"
	"github.com/shepherdlog/shepherd/internal/domain/query"
	"github.com/shepherdlog/shepherd/internal/domain/store"
	"github.com/shepherdlog/shepherd/internal/shared/types"
)

func newRouter(st *store.Store) (*gin.Engine, *broadcast.Broadcaster) {
	gin.SetMode(gin.TestMode)

	b := broadcast.New(broadcast.DefaultBuffer, nil)
	h := NewHandlers(query.NewService(st), st, b)

	router := gin.New()
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/logs", h.GetLogs)
	router.GET("/stats", h.GetStats)
	router.POST("/acknowledge", h.Acknowledge)
	return router, b
}

func seedStore(n int) *store.Store {
	st := store.New(store.DefaultCapacity)
	for i := 0; i < n; i++ {
		status := 200
		if i%4 == 0 {
			status = 500
		}
		st.Append(types.LogRecord{
			ID:     fmt.Sprintf("rec_%03d", i),
			Parsed: types.ParsedFields{StatusCode: status},
		})
	}
	return st
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	return w, parsed
}

func TestRoot(t *testing.T) {
	router, b := newRouter(seedStore(7))
	sub := b.Register()
	defer b.Unregister(sub)

	w, body := doJSON(t, router, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Shepherd Log Pipeline", body["message"])
	assert.Equal(t, float64(1), body["active_connections"])
	assert.Equal(t, float64(7), body["log_buffer_size"])
}

func TestGetLogsDefaultLimit(t *testing.T) {
	router, _ := newRouter(seedStore(150))

	w, body := doJSON(t, router, http.MethodGet, "/logs", "")

	assert.Equal(t, http.StatusOK, w.Code)
	logs := body["logs"].([]interface{})
	require.Len(t, logs, query.DefaultLimit)
	first := logs[0].(map[string]interface{})
	assert.Equal(t, "rec_050", first["id"])
}

func TestGetLogsExplicitLimit(t *testing.T) {
	router, _ := newRouter(seedStore(20))

	_, body := doJSON(t, router, http.MethodGet, "/logs?limit=5", "")
	assert.Len(t, body["logs"].([]interface{}), 5)

	w, _ := doJSON(t, router, http.MethodGet, "/logs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStats(t *testing.T) {
	router, _ := newRouter(seedStore(8))

	w, body := doJSON(t, router, http.MethodGet, "/stats", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(8), body["total_logs"])
	assert.Equal(t, float64(2), body["error_count"])
	assert.Equal(t, float64(6), body["success_count"])
	assert.Equal(t, 0.25, body["error_rate"])
}

func TestGetStatsEmpty(t *testing.T) {
	router, _ := newRouter(store.New(store.DefaultCapacity))

	_, body := doJSON(t, router, http.MethodGet, "/stats", "")

	assert.Equal(t, float64(0), body["total_logs"])
	assert.Equal(t, float64(0), body["error_rate"])
}

func TestAcknowledge(t *testing.T) {
	st := seedStore(3)
	router, _ := newRouter(st)

	w, body := doJSON(t, router, http.MethodPost, "/acknowledge", `{"log_id": "rec_001", "timestamp": 1700000000}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acknowledged", body["status"])
	assert.Equal(t, "rec_001", body["log_id"])

	rec, ok := st.Find("rec_001")
	require.True(t, ok)
	assert.True(t, rec.Acknowledged)
	require.NotNil(t, rec.AcknowledgedAt)
	assert.Equal(t, float64(1700000000), *rec.AcknowledgedAt)
}

func TestAcknowledgeNotFound(t *testing.T) {
	router, _ := newRouter(seedStore(1))

	w, body := doJSON(t, router, http.MethodPost, "/acknowledge", `{"log_id": "rec_ghost"}`)

	// A missing record is a normal outcome, not an HTTP error.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "not_found", body["status"])
	assert.Equal(t, "Log entry not found", body["message"])
}

func TestAcknowledgeRejectsMissingID(t *testing.T) {
	router, _ := newRouter(seedStore(1))

	w, _ := doJSON(t, router, http.MethodPost, "/acknowledge", `{"timestamp": 5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
