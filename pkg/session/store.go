// Package session provides the session-scoped key-value store shared by the
// intake pipeline: draft snapshots, duplicate-guard recency entries, and
// engagement counters all live here under distinct namespaced keys. The store
// lives exactly as long as the browsing session it belongs to.
package session

import "context"

// Store is a key-value store scoped to one browsing session. Get reports
// whether the key was present so callers can distinguish "absent" from
// "empty string".
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Provider hands out the Store for a given session ID. Implementations are
// safe for concurrent use; the returned stores share the provider's backing.
type Provider interface {
	ForSession(id string) Store
	// EndSession tears down all keys belonging to the session.
	EndSession(ctx context.Context, id string) error
}
