package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bher20/tariffmanager/internal/metrics"
)

// instrument records request count, duration and error metrics labelled by
// industry and route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		industry := s.industryLabel(chi.URLParam(r, "industry"))
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		metrics.RequestsTotal.WithLabelValues(industry, path).Inc()
		metrics.RequestDurationSeconds.WithLabelValues(industry, path).Observe(time.Since(start).Seconds())
		if status := ww.Status(); status >= http.StatusBadRequest {
			metrics.RequestErrorsTotal.WithLabelValues(industry, path, strconv.Itoa(status)).Inc()
		}
	})
}

// industryLabel keeps the label set bounded to catalog keys.
func (s *Server) industryLabel(key string) string {
	if key == "" {
		return "none"
	}
	if _, err := s.catalog.Get(key); err != nil {
		return "unknown"
	}
	return key
}
