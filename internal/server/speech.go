package server

import (
	"net/http"
	"strconv"

	"github.com/book-expert/speech-service/internal/core"
)

// Query parameter names accepted by /speech.
const (
	paramText     = "text"
	paramEncoding = "encoding"
	paramLanguage = "language"
	paramVoice    = "voice"
	paramGender   = "gender"
	paramRate     = "rate"
	paramPitch    = "pitch"
)

const headerCache = "X-Cache"

// ParseParams reads the raw speech parameters from a query string.
func ParseParams(r *http.Request) core.Params {
	query := r.URL.Query()

	return core.Params{
		Text:     query.Get(paramText),
		Language: query.Get(paramLanguage),
		Voice:    query.Get(paramVoice),
		Gender:   query.Get(paramGender),
		Encoding: query.Get(paramEncoding),
		Rate:     query.Get(paramRate),
		Pitch:    query.Get(paramPitch),
	}
}

// handleSpeech serves synthesized audio for the query parameters.
func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	req := core.Normalize(ParseParams(r), s.Defaults)

	result, err := s.Resolver.Resolve(r.Context(), req)
	if err != nil {
		Error(w, r, s.Log, err)

		return
	}

	cacheStatus := "MISS"
	if result.Cached {
		cacheStatus = "HIT"
	}

	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Audio)))
	w.Header().Set(headerCache, cacheStatus)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Audio)
}
