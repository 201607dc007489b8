// internal/server/middleware.go
package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestID returns the id assigned to the request, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// observeMiddleware logs each request and feeds the HTTP metrics
func (s *Server) observeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		if s.metrics != nil {
			s.metrics.IncRequestsInFlight()
			defer s.metrics.DecRequestsInFlight()
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		duration := time.Since(start)

		if s.metrics != nil {
			s.metrics.RecordRequest(route, r.Method, rec.status, duration)
		}
		s.logger.WithFields(map[string]interface{}{
			"request_id": RequestID(r.Context()),
			"method":     r.Method,
			"route":      route,
			"status":     rec.status,
			"duration":   duration.String(),
		}).Debug("request served")
	})
}

// corsPolicy answers preflights and tags responses for allowed origins
type corsPolicy struct {
	mu       sync.RWMutex
	any      bool
	explicit map[string]bool
}

func newCORSPolicy(origins []string) *corsPolicy {
	p := &corsPolicy{}
	p.set(origins)
	return p
}

func (p *corsPolicy) set(origins []string) {
	explicit := make(map[string]bool, len(origins))
	anyOrigin := len(origins) == 0
	for _, origin := range origins {
		if origin == "*" {
			anyOrigin = true
			continue
		}
		explicit[strings.TrimRight(origin, "/")] = true
	}

	p.mu.Lock()
	p.any = anyOrigin
	p.explicit = explicit
	p.mu.Unlock()
}

func (p *corsPolicy) allowOrigin(origin string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.any {
		return "*", true
	}
	if origin != "" && p.explicit[origin] {
		return origin, true
	}
	return "", false
}

func (p *corsPolicy) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allowed, ok := p.allowOrigin(r.Header.Get("Origin")); ok {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)
			h.Set("Access-Control-Max-Age", "86400")
			if allowed != "*" {
				h.Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
