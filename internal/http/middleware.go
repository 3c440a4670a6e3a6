package httpapi

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/example/shelter-matching/internal/observability"
)

type traceKey struct{}

// trace is the per-request record the access log is written from. Handlers
// fill in the run id once a match has been ranked.
type trace struct {
	requestID string
	runID     string
}

func traceFrom(ctx context.Context) *trace {
	if t, ok := ctx.Value(traceKey{}).(*trace); ok {
		return t
	}
	return &trace{}
}

func requestIDFromContext(ctx context.Context) string { return traceFrom(ctx).requestID }

func setRunID(ctx context.Context, runID string) { traceFrom(ctx).runID = runID }

func (s *Server) registerMiddleware() {
	s.mux.Use(s.traceMiddleware)
	s.mux.Use(s.accessMiddleware)
}

// traceMiddleware assigns the request id and echoes it so callers can quote it
// when reporting a failed match.
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := &trace{requestID: r.Header.Get("X-Request-ID")}
		if t.requestID == "" {
			t.requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", t.requestID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), traceKey{}, t)))
	})
}

// accessMiddleware records metrics and one log line per request, and turns a
// panic into the usual {success:false} body when nothing was written yet.
func (s *Server) accessMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		route := routeTemplate(r)

		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("panic recovered", "route", route, "request_id", requestIDFromContext(r.Context()), "panic", p)
				if !rec.wrote {
					writeError(rec, http.StatusInternalServerError, "internal error")
				} else {
					rec.status = http.StatusInternalServerError
				}
			}

			status := strconv.Itoa(rec.status)
			elapsed := time.Since(start)
			observability.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			observability.HTTPRequestDuration.WithLabelValues(r.Method, route, status).Observe(elapsed.Seconds())

			s.logger.Log(r.Context(), accessLevel(route, rec.status), "http_request", accessAttrs(r, route, rec.status, elapsed)...)
		}()

		next.ServeHTTP(rec, r)
	})
}

func accessAttrs(r *http.Request, route string, status int, elapsed time.Duration) []any {
	t := traceFrom(r.Context())
	args := []any{
		"method", r.Method,
		"route", route,
		"status", status,
		"duration_ms", elapsed.Milliseconds(),
		"request_id", t.requestID,
	}
	vars := mux.Vars(r)
	if id := vars["user_id"]; id != "" {
		args = append(args, "user_id", id)
	}
	if id := vars["shelter_id"]; id != "" {
		args = append(args, "shelter_id", id)
	}
	if t.runID != "" {
		args = append(args, "run_id", t.runID)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		args = append(args, "remote_addr", host)
	}
	return args
}

// probes and scrapes stay at debug so they do not drown out match traffic
func accessLevel(route string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case route == "/healthz" || route == "/ready" || route == "/metrics":
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wrote {
		r.status, r.wrote = code, true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(b)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	r.wrote, r.status = true, http.StatusSwitchingProtocols
	return h.Hijack()
}

func routeTemplate(r *http.Request) string {
	if current := mux.CurrentRoute(r); current != nil {
		if tmpl, err := current.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}
