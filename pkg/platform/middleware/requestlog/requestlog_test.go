package requestlog

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

type recordingObserver struct {
	route  string
	status int
}

func (o *recordingObserver) ObserveHTTPRequest(_ string, route string, status int, _ time.Duration) {
	o.route = route
	o.status = status
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	obs := &recordingObserver{}

	r := chi.NewRouter()
	r.Use(Middleware(logger, obs))
	r.Get("/api/news/{slug}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/news/hello", nil))

	assert.Equal(t, "/api/news/{slug}", obs.route)
	assert.Equal(t, http.StatusTeapot, obs.status)
	assert.Contains(t, buf.String(), "status=418")
}
