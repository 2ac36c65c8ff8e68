package server

import (
	"net/http"

	"github.com/book-expert/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// Error logs err and answers with a bodiless 500. Details never reach the client.
func Error(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	log.Error("http error: %s %s [%s]: %v",
		r.Method, r.URL.Path, middleware.GetReqID(r.Context()), err)

	w.WriteHeader(http.StatusInternalServerError)
}
