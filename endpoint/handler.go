package endpoint

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mkaldis/go-token-service/oauth2"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Handler adapts the orchestrator to net/http. Protocol errors map 1:1
// onto the wire error body; everything else is a store or internal
// failure and becomes a plain 500 with no detail.
func (e *Endpoint) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response, err := e.Handle(r)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		_ = json.NewEncoder(w).Encode(response)
	}
}

func writeError(w http.ResponseWriter, err error) {
	protoErr, ok := oauth2.AsError(err)
	if !ok {
		log.Error().Err(err).Msg("token request failed on a non-protocol error")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	status := http.StatusBadRequest
	if protoErr.Code == oauth2.ErrCodeInvalidClient {
		// RFC 6749 §5.2: failed client authentication gets 401 and the
		// authentication-scheme header.
		status = http.StatusUnauthorized
		w.Header().Set("WWW-Authenticate", `Basic realm="token endpoint"`)
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(protoErr)
}
