package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jordanlanch/leadintake/pkg/models"
)

const metaKey = "meta"

// ErrNotFound means the session ID is unknown or has expired
var ErrNotFound = errors.New("session not found")

// Meta is the per-session bookkeeping written at session start
type Meta struct {
	Source    string           `json:"source"`
	UserAgent string           `json:"user_agent"`
	UTM       models.UTMParams `json:"utm"`
	CreatedAt time.Time        `json:"created_at"`
}

// Manager mints intake session IDs and owns session init/teardown
type Manager struct {
	provider Provider
}

// NewManager creates a session manager on top of a store provider
func NewManager(provider Provider) *Manager {
	return &Manager{provider: provider}
}

// Start mints a new session ID and records its origin metadata
func (m *Manager) Start(ctx context.Context, source, userAgent string, utm models.UTMParams) (string, error) {
	id := uuid.NewString()

	meta := Meta{
		Source:    source,
		UserAgent: userAgent,
		UTM:       utm,
		CreatedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session meta: %w", err)
	}

	if err := m.provider.ForSession(id).Set(ctx, metaKey, string(raw)); err != nil {
		return "", fmt.Errorf("failed to persist session meta: %w", err)
	}
	return id, nil
}

// Meta loads the session's origin metadata; found is false for unknown or
// expired sessions
func (m *Manager) Meta(ctx context.Context, id string) (Meta, bool, error) {
	raw, ok, err := m.provider.ForSession(id).Get(ctx, metaKey)
	if err != nil || !ok {
		return Meta{}, false, err
	}

	var meta Meta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return Meta{}, false, fmt.Errorf("corrupt session meta: %w", err)
	}
	return meta, true, nil
}

// Store returns the key-value store scoped to the session
func (m *Manager) Store(id string) Store {
	return m.provider.ForSession(id)
}

// End tears the session down
func (m *Manager) End(ctx context.Context, id string) error {
	return m.provider.EndSession(ctx, id)
}
