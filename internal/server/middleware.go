package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

const hstsValue = "max-age=31536000; includeSubDomains; preload"

// strictTransportSecurity tells browsers to use HTTPS for this domain and its
// subdomains for a year.
func strictTransportSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Strict-Transport-Security", hstsValue)
		next.ServeHTTP(w, r)
	})
}

// requestLogger writes one line per request to the service log.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			s.Log.Info("%s %s %d %s - %d bytes",
				r.Method, r.URL.RequestURI(), status, time.Since(start).Round(time.Microsecond), ww.BytesWritten())
		}()

		next.ServeHTTP(ww, r)
	})
}

// recoverer turns a panicking handler into a logged 500.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}

			if rvr == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
				panic(rvr)
			}

			Error(w, r, s.Log, fmt.Errorf("panic: %v\n%s", rvr, debug.Stack()))
		}()

		next.ServeHTTP(w, r)
	})
}
