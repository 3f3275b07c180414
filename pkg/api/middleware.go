package api

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-Id"

// requestLogger logs each request with its response status. Server errors
// log at warn, client errors at info, everything else at debug.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		reqID := chimw.GetReqID(r.Context())
		if reqID != "" {
			ww.Header().Set(requestIDHeader, reqID)
		}

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		entry := s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"remote":     r.RemoteAddr,
			"status":     status,
			"bytes":      ww.BytesWritten(),
			"request_id": reqID,
			"duration":   time.Since(start),
		})

		switch {
		case status >= http.StatusInternalServerError:
			entry.Warn("Request handled")
		case status >= http.StatusBadRequest:
			entry.Info("Request handled")
		default:
			entry.Debug("Request handled")
		}
	})
}
