package server

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mkaldis/go-token-service/clientauth"
	"github.com/mkaldis/go-token-service/endpoint"
	"github.com/mkaldis/go-token-service/internal/config"
	"github.com/mkaldis/go-token-service/token"
	"github.com/mkaldis/go-token-service/token/refresh"
)

// Server is the HTTP surface over the token-issuance core: the token
// endpoint itself plus the supporting JWKS, introspection, and
// revocation routes.
type Server struct {
	env           string
	mux           *http.ServeMux
	routes        []string
	config        config.Config
	tokenEndpoint *endpoint.Endpoint
	authenticator *clientauth.Authenticator
	issuer        *token.Issuer
	refreshMgr    *refresh.Manager
}

func New(cfg config.Config, tokenEndpoint *endpoint.Endpoint, authenticator *clientauth.Authenticator, issuer *token.Issuer, refreshMgr *refresh.Manager) (*Server, error) {
	if tokenEndpoint == nil {
		return nil, errors.New("[server.New] token endpoint is required")
	}
	if authenticator == nil {
		return nil, errors.New("[server.New] authenticator is required")
	}
	if issuer == nil {
		return nil, errors.New("[server.New] issuer is required")
	}
	if refreshMgr == nil {
		return nil, errors.New("[server.New] refresh token manager is required")
	}

	s := &Server{
		env:           cfg.GetEnv(),
		mux:           http.NewServeMux(),
		config:        cfg,
		tokenEndpoint: tokenEndpoint,
		authenticator: authenticator,
		issuer:        issuer,
		refreshMgr:    refreshMgr,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) == 2 {
			log.Info().Str("method", parts[0]).Str("path", parts[1]).Msg("route registered")
		} else {
			log.Info().Str("path", route).Msg("route registered")
		}
	}
}
