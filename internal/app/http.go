// Package app wires the scrape run and the leaderboard server.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cam3ron2/classroom-stats/internal/exporter"
	"github.com/cam3ron2/classroom-stats/internal/stats"
	"github.com/cam3ron2/classroom-stats/internal/store"
	"github.com/cam3ron2/classroom-stats/internal/telemetry"
)

// SnapshotReaderFunc adapts a function to exporter.SnapshotReader.
type SnapshotReaderFunc func(ctx context.Context) ([]stats.RepoStats, error)

// Latest calls f(ctx).
func (f SnapshotReaderFunc) Latest(ctx context.Context) ([]stats.RepoStats, error) {
	return f(ctx)
}

// NewHTTPHandler wires metrics, stats and health endpoints on a single router.
func NewHTTPHandler(metricsHandler, statsHandler, healthHandler http.Handler) http.Handler {
	router := chi.NewRouter()
	traceMode := telemetry.TraceMode()
	router.Handle("/metrics", wrapHTTPHandler(traceMode, "metrics", metricsHandler))
	router.Handle("/api/stats", wrapHTTPHandler(traceMode, "stats", statsHandler))
	router.Handle("/livez", wrapHTTPHandler(traceMode, "livez", healthHandler))
	router.Handle("/readyz", wrapHTTPHandler(traceMode, "readyz", healthHandler))
	router.Handle("/healthz", wrapHTTPHandler(traceMode, "healthz", healthHandler))
	return router
}

// NewStatsHandler serves the latest snapshot as the persisted JSON list.
func NewStatsHandler(reader exporter.SnapshotReader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if reader == nil {
			writeJSONError(w, http.StatusServiceUnavailable, store.ErrNoSnapshot.Error())
			return
		}

		records, err := reader.Latest(r.Context())
		switch {
		case errors.Is(err, store.ErrNoSnapshot):
			writeJSONError(w, http.StatusServiceUnavailable, err.Error())
			return
		case err != nil:
			writeJSONError(w, http.StatusInternalServerError, "read snapshot")
			return
		}

		payload, err := store.Snapshot{Records: records}.MarshalRecords()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "encode snapshot")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		//nolint:gosec // Payload is the server's own snapshot encoding.
		_, _ = w.Write(payload)
	})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	payload, _ := json.Marshal(map[string]string{"error": message})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func wrapHTTPHandler(traceMode, route string, handler http.Handler) http.Handler {
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	if strings.EqualFold(strings.TrimSpace(traceMode), "off") {
		return handler
	}

	operation := strings.TrimSpace(route)
	if operation == "" {
		operation = "handler"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := otel.Tracer("classroom-stats/internal/app").Start(
			r.Context(),
			"http.server."+operation,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			),
		)
		defer span.End()

		recorder := &statusCapturingResponseWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
		}
		handler.ServeHTTP(recorder, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.status_code", recorder.status))
		if recorder.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(recorder.status))
			return
		}
		span.SetStatus(codes.Ok, "request completed")
	})
}

type statusCapturingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingResponseWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
