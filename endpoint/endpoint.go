// Package endpoint sequences the token request pipeline: transport
// check, client authentication, grant validation, token issuance. Any
// failed step exits the pipeline with a protocol error; store breakage
// passes through untranslated for the transport layer to surface as a
// server failure.
package endpoint

import (
	"mime"
	"net/http"

	"github.com/pkg/errors"

	"github.com/mkaldis/go-token-service/clientauth"
	"github.com/mkaldis/go-token-service/grants"
	"github.com/mkaldis/go-token-service/oauth2"
	"github.com/mkaldis/go-token-service/token"
)

const formContentType = "application/x-www-form-urlencoded"

// Endpoint is the token endpoint orchestrator. It performs no I/O of
// its own; everything durable happens inside the three components it
// sequences.
type Endpoint struct {
	authenticator *clientauth.Authenticator
	validator     *grants.Validator
	issuer        *token.Issuer
}

func New(authenticator *clientauth.Authenticator, validator *grants.Validator, issuer *token.Issuer) (*Endpoint, error) {
	if authenticator == nil {
		return nil, errors.New("[endpoint.New] authenticator is required")
	}
	if validator == nil {
		return nil, errors.New("[endpoint.New] validator is required")
	}
	if issuer == nil {
		return nil, errors.New("[endpoint.New] issuer is required")
	}
	return &Endpoint{
		authenticator: authenticator,
		validator:     validator,
		issuer:        issuer,
	}, nil
}

// Handle runs a single token request through the pipeline. The
// transport check runs before anything touches a store, and its failure
// is deliberately coarse: one invalid_request regardless of what was
// wrong with the request shape.
func (e *Endpoint) Handle(r *http.Request) (*oauth2.TokenResponse, error) {
	if err := checkTransport(r); err != nil {
		return nil, err
	}

	if err := r.ParseForm(); err != nil {
		return nil, oauth2.InvalidRequestError()
	}
	form := r.PostForm

	authResult, err := e.authenticator.Authenticate(r.Context(), r, form)
	if err != nil {
		return nil, err
	}

	grantRequest, err := grants.ParseRequest(form)
	if err != nil {
		return nil, err
	}

	validated, err := e.validator.Validate(r.Context(), authResult.Client, grantRequest)
	if err != nil {
		return nil, err
	}

	response, err := e.issuer.Issue(r.Context(), validated)
	if err != nil {
		return nil, err
	}

	return response, nil
}

func checkTransport(r *http.Request) error {
	if r.Method != http.MethodPost {
		return oauth2.InvalidRequestError()
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != formContentType {
		return oauth2.InvalidRequestError()
	}
	return nil
}
