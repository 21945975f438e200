package server

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// statusRecorder remembers the status code a handler wrote.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.code = code
	sr.ResponseWriter.WriteHeader(code)
}

// route wraps h with CORS handling and request metrics. Routes that run a
// pass (calibrate, rectify, compare) are also gated by the limiter.
func (s *Server) route(name string, h http.HandlerFunc, gated bool) http.HandlerFunc {
	if gated {
		h = s.gate(h)
	}
	return s.withCORS(instrument(name, h))
}

// withCORS answers preflight requests itself and stamps the allowed origin
// on everything else.
func (s *Server) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Access-Control-Allow-Origin", s.corsOrigin)
		hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		hdr.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		hdr.Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

func instrument(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next(sr, r)
		httpRequestDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(name, r.Method, strconv.Itoa(sr.code)).Inc()
	}
}

// gate turns requests away with 429 while every pass slot is taken.
func (s *Server) gate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.TryAcquire() {
			rejectedRequests.Inc()
			slog.Warn("Rejecting request, all pass slots busy",
				"client", clientAddr(r), "path", r.URL.Path, "capacity", s.limiter.Capacity())
			w.Header().Set("Retry-After", "1")
			s.writeErrorResponse(w, "too many passes in progress", "", http.StatusTooManyRequests)
			return
		}
		defer s.limiter.Release()
		next(w, r)
	}
}

// clientAddr names the caller for log lines. Proxy headers win over the
// socket address; only the first hop of X-Forwarded-For is used.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
