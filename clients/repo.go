package clients

import (
	"context"
	"errors"
)

// ErrClientNotFound is returned by Repo.Get for unknown client ids.
// Callers in the authentication path must not expose this to the wire.
var ErrClientNotFound = errors.New("client not found")

// Repo is the client store the token-issuance core reads from.
type Repo interface {
	Get(ctx context.Context, clientID string) (*Client, error)
	Upsert(ctx context.Context, clientData *Client) error
	Delete(ctx context.Context, clientID string) error
	List(ctx context.Context, offset, limit int) ([]*Client, error)
}
