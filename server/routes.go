package server

// Route path constants
const (
	RouteOAuth2Token      = "/oauth2/token"
	RouteOAuth2Introspect = "/oauth2/introspect"
	RouteOAuth2Revoke     = "/oauth2/revoke"
	RouteWellKnownJWKS    = "/.well-known/jwks.json"
	RouteHealth           = "/healthz"
)

func (s *Server) initRoutes() {
	// The token route is registered without a method so the endpoint's
	// own transport check can answer non-POST requests with the
	// protocol-conformant invalid_request body instead of a mux 405.
	s.RegisterRouteFunc(RouteOAuth2Token, ChainMiddleware(s.tokenEndpoint.Handler(), s.APIMiddleware()...))

	s.RegisterRouteFunc("POST "+RouteOAuth2Introspect, ChainMiddleware(s.Introspect(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteOAuth2Revoke, ChainMiddleware(s.Revoke(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteWellKnownJWKS, ChainMiddleware(s.JWKS(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteHealth, s.Health())
}
