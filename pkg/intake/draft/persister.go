// Package draft makes in-progress form input durable across reloads. Writes
// are debounced; the stored draft is cleared only after a successful
// submission, never on failure, so a visitor does not lose input to a
// transient error.
package draft

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jordanlanch/leadintake/pkg/logger"
	"github.com/jordanlanch/leadintake/pkg/models"
	"github.com/jordanlanch/leadintake/pkg/session"
)

const draftKey = "draft"

// Persister shadows one session's draft into the session store.
//
// The mutex is held across store writes, not just state changes. A debounced
// write that has already started must finish before Clear can remove the
// key; otherwise a slow Set lands after the clear and resurrects a
// submitted draft.
type Persister struct {
	store    session.Store
	debounce time.Duration
	log      logger.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending *models.LeadDraft
}

// NewPersister creates a draft persister for one session's store
func NewPersister(store session.Store, debounce time.Duration, log logger.Logger) *Persister {
	if log == nil {
		log = logger.Default()
	}
	return &Persister{store: store, debounce: debounce, log: log}
}

// NotifyChange schedules a debounced save of the given snapshot. A later
// call supersedes the pending one; the last snapshot before the timer fires
// is what lands.
func (p *Persister) NotifyChange(d models.LeadDraft) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := d
	p.pending = &snapshot

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.debounce, p.flushPending)
}

// Flush writes any pending snapshot immediately, cancelling the debounce
// timer. Used before submission starts so the stored draft matches what was
// submitted.
func (p *Persister) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.pending == nil {
		return nil
	}
	pending := *p.pending
	p.pending = nil
	return p.write(ctx, pending)
}

// Restore loads the stored draft, if any. Unknown stored keys are ignored
// and missing keys keep their schema defaults, so drafts written by older
// or newer builds restore cleanly. A corrupt draft is treated as absent.
func (p *Persister) Restore(ctx context.Context) (models.LeadDraft, bool, error) {
	var d models.LeadDraft

	raw, ok, err := p.store.Get(ctx, draftKey)
	if err != nil {
		return d, false, err
	}
	if !ok {
		return d, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		p.log.Warn("draft restore: corrupt stored draft, discarding", "error", err)
		return models.LeadDraft{}, false, nil
	}
	return d, true, nil
}

// Clear cancels any pending debounced write and removes the stored draft.
// Taking the mutex both drops the queued snapshot and waits out a write
// that already started, so nothing can land after the Remove.
func (p *Persister) Clear(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.pending = nil

	return p.store.Remove(ctx, draftKey)
}

func (p *Persister) flushPending() {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending := p.pending
	p.pending = nil
	p.timer = nil
	if pending == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.write(ctx, *pending); err != nil {
		p.log.Warn("draft save failed", "error", err)
	}
}

func (p *Persister) write(ctx context.Context, d models.LeadDraft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return p.store.Set(ctx, draftKey, string(raw))
}
