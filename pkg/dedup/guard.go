package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jordanlanch/leadintake/pkg/logger"
	"github.com/jordanlanch/leadintake/pkg/session"
)

const recentKey = "dedup:recent"

// ErrDuplicate classifies a submission as a repeat of a recent one. Distinct
// from validation failure so the caller can surface the right message.
var ErrDuplicate = errors.New("duplicate submission")

// RemoteChecker is the authoritative backend lookup: does a lead with this
// mobile or email already exist?
type RemoteChecker interface {
	Exists(ctx context.Context, fp Fingerprint) (bool, error)
}

// Tiers reported to the observer when a duplicate is caught
const (
	TierLocal  = "local"
	TierRemote = "remote"
)

// Observer receives guard outcomes, for metrics and error reporting
type Observer interface {
	DuplicateBlocked(tier string)
	CheckFailedOpen(err error)
}

// Guard prevents duplicate lead creation for one browsing session. It checks
// a local recency store first (no network), then the backend. The remote
// check failing is never a reason to block a legitimate lead: the guard
// fails open and the outage is logged, not surfaced.
type Guard struct {
	store  session.Store
	remote RemoteChecker
	window time.Duration
	log    logger.Logger
	obs    Observer
}

// NewGuard creates a duplicate guard for one session's store
func NewGuard(store session.Store, remote RemoteChecker, window time.Duration, log logger.Logger) *Guard {
	if log == nil {
		log = logger.Default()
	}
	return &Guard{store: store, remote: remote, window: window, log: log}
}

// Observe attaches an outcome observer. Optional; a nil observer is never
// called.
func (g *Guard) Observe(obs Observer) {
	g.obs = obs
}

// Check runs the two-tier duplicate check, short-circuiting on the first
// positive. Returns ErrDuplicate when the submission is a repeat, nil when
// it may proceed. Local and remote are strictly sequential: the remote call
// is only issued when the local path found nothing.
func (g *Guard) Check(ctx context.Context, fp Fingerprint) error {
	if fp.IsZero() {
		return nil
	}

	local, err := g.localHit(ctx, fp)
	if err != nil {
		// A broken recency store degrades to the remote check
		g.log.Warn("duplicate guard: local recency store unreadable", "error", err)
	}
	if local {
		if g.obs != nil {
			g.obs.DuplicateBlocked(TierLocal)
		}
		return ErrDuplicate
	}

	exists, err := g.remote.Exists(ctx, fp)
	if err != nil {
		// Fail open: an unreachable duplicate check must not block a
		// legitimate lead
		g.log.Warn("duplicate guard: remote check unavailable, failing open", "error", err)
		if g.obs != nil {
			g.obs.CheckFailedOpen(err)
		}
		return nil
	}
	if exists {
		if g.obs != nil {
			g.obs.DuplicateBlocked(TierRemote)
		}
		return ErrDuplicate
	}
	return nil
}

// Record writes the fingerprint into the local recency store after a
// confirmed successful submission. Best effort: a failed write is logged
// and swallowed.
func (g *Guard) Record(ctx context.Context, fp Fingerprint) {
	if fp.IsZero() {
		return
	}

	recent, err := g.loadRecent(ctx)
	if err != nil {
		g.log.Warn("duplicate guard: could not load recency store", "error", err)
		recent = map[string]time.Time{}
	}
	recent[fp.Key()] = time.Now().UTC()

	raw, err := json.Marshal(recent)
	if err != nil {
		g.log.Warn("duplicate guard: could not marshal recency store", "error", err)
		return
	}
	if err := g.store.Set(ctx, recentKey, string(raw)); err != nil {
		g.log.Warn("duplicate guard: could not record fingerprint", "error", err)
	}
}

func (g *Guard) localHit(ctx context.Context, fp Fingerprint) (bool, error) {
	recent, err := g.loadRecent(ctx)
	if err != nil {
		return false, err
	}

	seenAt, ok := recent[fp.Key()]
	if !ok {
		return false, nil
	}
	if time.Since(seenAt) > g.window {
		// Entry aged out of the dedup window; drop it opportunistically
		delete(recent, fp.Key())
		if raw, err := json.Marshal(recent); err == nil {
			_ = g.store.Set(ctx, recentKey, string(raw))
		}
		return false, nil
	}
	return true, nil
}

func (g *Guard) loadRecent(ctx context.Context) (map[string]time.Time, error) {
	raw, ok, err := g.store.Get(ctx, recentKey)
	if err != nil {
		return nil, err
	}
	recent := map[string]time.Time{}
	if !ok {
		return recent, nil
	}
	if err := json.Unmarshal([]byte(raw), &recent); err != nil {
		return nil, err
	}
	return recent, nil
}
