package service

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ctxKey int

const logStateKey ctxKey = iota

// RequestIDHeader carries the id assigned to every request.
const RequestIDHeader = "X-Request-Id"

// logState collects what handlers learn about a request so the middleware
// can log it in one line.
type logState struct {
	err   error
	attrs []any
}

// note attaches err and extra attributes to the request's log line.
func note(r *http.Request, err error, attrs ...any) {
	st, ok := r.Context().Value(logStateKey).(*logState)
	if !ok {
		return
	}
	if err != nil {
		st.err = err
	}
	st.attrs = append(st.attrs, attrs...)
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// requestContext assigns a request id, then logs and counts the request once
// the handler returns.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		id := uuid.NewString()
		w.Header().Set(RequestIDHeader, id)

		st := &logState{}
		sw := &statusWriter{ResponseWriter: w}
		r = r.WithContext(context.WithValue(r.Context(), logStateKey, st))
		next.ServeHTTP(sw, r)

		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		if s.metrics != nil && route != "/metrics" {
			s.metrics.Requests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		}

		attrs := []any{
			"request_id", id,
			"method", r.Method,
			"route", route,
			"status", sw.status,
			"bytes", sw.bytes,
			"duration", s.now().Sub(start),
		}
		attrs = append(attrs, st.attrs...)
		if st.err != nil {
			attrs = append(attrs, "error_code", errorCode(st.err), "error", st.err.Error())
			s.logger.Warn("request failed", attrs...)
			return
		}
		s.logger.Info("request", attrs...)
	})
}

// rateLimit answers 429 once a client has spent its burst.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientKey(r), s.now()) {
			if s.metrics != nil {
				s.metrics.RateLimited.Inc()
			}
			reject(w, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
