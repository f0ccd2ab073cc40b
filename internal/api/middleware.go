package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"flowpay/internal/idempotency"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayKey      = "X-Idempotency-Key"
	headerReplayed       = "X-Idempotency-Replayed"
)

// responseRecorder buffers the downstream response so it can be cached and
// replayed byte for byte.
type responseRecorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{header: make(http.Header), status: http.StatusOK}
}

func (r *responseRecorder) Header() http.Header { return r.header }

func (r *responseRecorder) WriteHeader(status int) { r.status = status }

func (r *responseRecorder) Write(b []byte) (int, error) { return r.body.Write(b) }

// idempotencyMiddleware replays cached responses for repeated POSTs bearing
// the same Idempotency-Key. The operation identity includes the path, so the
// same key on different endpoints executes independently.
func (h *Handler) idempotencyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(headerIdempotencyKey)
		if r.Method != http.MethodPost || key == "" {
			next.ServeHTTP(w, r)
			return
		}

		operation := r.Method + " " + r.URL.Path
		result, replayed, err := h.idempotency.Execute(key, operation, func() (idempotency.Result, error) {
			rec := newResponseRecorder()
			next.ServeHTTP(rec, r)
			return idempotency.Result{StatusCode: rec.status, Body: rec.body.Bytes()}, nil
		})
		if err != nil {
			h.sendError(w, err)
			return
		}

		if replayed {
			h.collector.RecordReplay()
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set(headerReplayKey, key)
		if replayed {
			w.Header().Set(headerReplayed, "true")
		} else {
			w.Header().Set(headerReplayed, "false")
		}
		w.WriteHeader(result.StatusCode)
		w.Write(result.Body)
	})
}

func (h *Handler) requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		h.collector.RecordRequest(r.Method, route, ww.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
