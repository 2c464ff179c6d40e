// Package telemetry collects best-effort client context: network-derived
// location, device class, raw user agent. It is never a blocking dependency
// of submission; consumers read whatever snapshot is current and a failed or
// slow lookup resolves to fallback values instead of an error.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/jordanlanch/leadintake/pkg/logger"
	"github.com/jordanlanch/leadintake/pkg/models"
)

// State describes how far the lookup has gotten
type State string

const (
	// StatePending means the lookup has not finished; the snapshot holds
	// fallback values
	StatePending State = "pending"
	// StateResolved means real values were fetched
	StateResolved State = "resolved"
	// StateFallback means the lookup failed or timed out and the fallback
	// values are final for this attempt
	StateFallback State = "fallback"
)

// Provider is the external lookup call
type Provider interface {
	Lookup(ctx context.Context) (models.TrackingContext, error)
}

// Snapshot is the current best-known tracking context
type Snapshot struct {
	Context models.TrackingContext
	State   State
}

// Acquirer owns one session's tracking context. Created at session start
// with fallback values, updated asynchronously by Start or Refresh.
type Acquirer struct {
	provider   Provider
	timeout    time.Duration
	log        logger.Logger
	onFallback func()

	mu      sync.Mutex
	current models.TrackingContext
	state   State
}

// NewAcquirer creates an acquirer seeded with fallback values. userAgent is
// known synchronously from the request and survives even when the network
// lookup never resolves.
func NewAcquirer(provider Provider, timeout time.Duration, userAgent string, log logger.Logger) *Acquirer {
	if log == nil {
		log = logger.Default()
	}
	return &Acquirer{
		provider: provider,
		timeout:  timeout,
		log:      log,
		current:  models.FallbackTrackingContext(userAgent),
		state:    StatePending,
	}
}

// OnFallback registers a hook fired whenever a lookup resolves to fallback
// values. Optional; used for metrics.
func (a *Acquirer) OnFallback(fn func()) {
	a.onFallback = fn
}

// Start kicks off the lookup without blocking the caller
func (a *Acquirer) Start(ctx context.Context) {
	go a.Refresh(ctx)
}

// Refresh runs the lookup synchronously with the bounded timeout and updates
// the snapshot. A failure is not an application error: the snapshot keeps
// its fallback values and the state moves to StateFallback.
func (a *Acquirer) Refresh(ctx context.Context) {
	lookupCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	fetched, err := a.provider.Lookup(lookupCtx)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		a.log.Debug("telemetry lookup failed, keeping fallbacks", "error", err)
		a.state = StateFallback
		if a.onFallback != nil {
			a.onFallback()
		}
		return
	}

	// The user agent came from the request, not the lookup; keep it
	fetched.UserAgentString = a.current.UserAgentString
	if fetched.DeviceClass == "" {
		fetched.DeviceClass = ClassifyDevice(fetched.UserAgentString)
	}
	applyFallbacks(&fetched)

	a.current = fetched
	a.state = StateResolved
}

// Current returns the best-known snapshot without waiting for any in-flight
// lookup
func (a *Acquirer) Current() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{Context: a.current, State: a.state}
}

// applyFallbacks fills any blank field a sloppy provider left empty
func applyFallbacks(tc *models.TrackingContext) {
	if tc.IPAddress == "" {
		tc.IPAddress = models.TrackingFallback
	}
	if tc.Location.City == "" {
		tc.Location.City = models.TrackingFallback
	}
	if tc.Location.State == "" {
		tc.Location.State = models.TrackingFallback
	}
	if tc.Location.Country == "" {
		tc.Location.Country = models.TrackingFallback
	}
	if tc.UserAgentString == "" {
		tc.UserAgentString = models.TrackingFallback
	}
	if tc.DeviceClass == "" {
		tc.DeviceClass = models.TrackingFallbackDevice
	}
}
