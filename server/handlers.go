package server

import (
	"encoding/json"
	"net/http"
)

const contentTypeJSON = "application/json; charset=utf-8"

// JWKS returns the JSON Web Key Set used to validate issued tokens.
// Only meaningful for asymmetric signers.
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, err := s.issuer.GetJWKS()
		if err != nil {
			http.Error(w, "JWKS not available", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_ = json.NewEncoder(w).Encode(jwks)
	}
}

// Introspect reports metadata about an access token (RFC 7662). The
// requesting client must authenticate the same way it does at the token
// endpoint.
func (s *Server) Introspect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "failed to parse form data", http.StatusBadRequest)
			return
		}

		if _, err := s.authenticator.Authenticate(r.Context(), r, r.PostForm); err != nil {
			writeJSONError(w, "invalid_client", "client authentication failed", http.StatusUnauthorized)
			return
		}

		rawToken := r.PostForm.Get("token")
		if rawToken == "" {
			writeJSONError(w, "invalid_request", "token parameter is required", http.StatusBadRequest)
			return
		}

		introspection, err := s.issuer.Introspect(rawToken)
		if err != nil {
			writeJSONError(w, "server_error", "introspection failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(introspection)
	}
}

// Revoke revokes an access or refresh token (RFC 7009). Revoking an
// unknown token still returns 200, per the RFC.
func (s *Server) Revoke() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "failed to parse form data", http.StatusBadRequest)
			return
		}

		if _, err := s.authenticator.Authenticate(r.Context(), r, r.PostForm); err != nil {
			writeJSONError(w, "invalid_client", "client authentication failed", http.StatusUnauthorized)
			return
		}

		rawToken := r.PostForm.Get("token")
		if rawToken == "" {
			writeJSONError(w, "invalid_request", "token parameter is required", http.StatusBadRequest)
			return
		}

		if r.PostForm.Get("token_type_hint") == "refresh_token" {
			_ = s.refreshMgr.Revoke(r.Context(), rawToken)
		} else {
			_ = s.issuer.RevokeAccessToken(rawToken)
		}

		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, status int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
