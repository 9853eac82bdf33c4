// Package tokenstore persists the admin token table described by the
// protocol's add_token operation. add_token is the only writer; no request
// path consults the table for authorization. It plays the role the
// teacher's bus package played for Pod-to-Pod fanout, but the table itself is
// small, flat, and needs no pub/sub — just a set membership check — so the
// Redis usage here is narrower than bus's.
package tokenstore

import "context"

// Store is satisfied by both the Redis-backed and in-memory implementations,
// so the videoroom Engine that holds it can remain storage-agnostic.
type Store interface {
	// AddToken records a token as valid. Re-adding an already-known token is
	// not an error.
	AddToken(ctx context.Context, token string) error

	// TokenSeen reports whether token was previously added.
	TokenSeen(ctx context.Context, token string) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}
