// Package intake owns the lead form lifecycle: field values, derived
// visibility, validation state and the submission sequence. One Controller
// serves one form instance within one browsing session.
package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/jordanlanch/leadintake/pkg/dedup"
	"github.com/jordanlanch/leadintake/pkg/intake/draft"
	"github.com/jordanlanch/leadintake/pkg/logger"
	"github.com/jordanlanch/leadintake/pkg/models"
	"github.com/jordanlanch/leadintake/pkg/telemetry"
)

// Submitter performs the final create call against the lead collection API
type Submitter interface {
	Create(ctx context.Context, rec models.LeadRecord) error
}

// Config wires a Controller's collaborators
type Config struct {
	Persister          *draft.Persister
	Guard              *dedup.Guard
	Telemetry          *telemetry.Acquirer
	Submitter          Submitter
	UTM                models.UTMParams
	DefaultPhoneRegion string
	Logger             logger.Logger
}

// Controller is the single authoritative owner of form state
type Controller struct {
	mu sync.Mutex

	draft   models.LeadDraft
	status  Status
	failure *Failure

	validate  *validator.Validate
	persister *draft.Persister
	guard     *dedup.Guard
	telemetry *telemetry.Acquirer
	submitter Submitter
	utm       models.UTMParams
	region    string
	log       logger.Logger
}

// NewController creates a form controller, restoring any draft the session
// saved before a reload.
func NewController(ctx context.Context, cfg Config) (*Controller, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	c := &Controller{
		status:    StatusIdle,
		validate:  newValidator(cfg.DefaultPhoneRegion),
		persister: cfg.Persister,
		guard:     cfg.Guard,
		telemetry: cfg.Telemetry,
		submitter: cfg.Submitter,
		utm:       cfg.UTM,
		region:    cfg.DefaultPhoneRegion,
		log:       log,
	}

	restored, ok, err := cfg.Persister.Restore(ctx)
	if err != nil {
		return nil, fmt.Errorf("draft restore failed: %w", err)
	}
	if ok {
		c.draft = restored
	}
	return c, nil
}

// SetSource records which UI surface originated the draft. Idempotent for
// the same tag; a different tag after the first is a programming error.
func (c *Controller) SetSource(tag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.draft.Source != "" && c.draft.Source != tag {
		return ErrSourceConflict
	}
	c.draft.Source = tag
	return nil
}

// SetField mutates one draft field by its schema name. Any retained failure
// for that field is cleared and the draft is marked dirty, scheduling a
// debounced save.
func (c *Controller) SetField(name string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusSubmitting {
		return ErrSubmissionInFlight
	}
	if c.status == StatusSucceeded {
		return ErrFormSpent
	}

	if err := c.applyField(name, value); err != nil {
		return err
	}

	// An edit recovers from a retained failure
	if c.failure != nil {
		if c.failure.Fields != nil {
			delete(c.failure.Fields, name)
		}
		if c.failure.Kind != FailureValidation || len(c.failure.Fields) == 0 {
			c.failure = nil
		}
	}

	c.persister.NotifyChange(c.draft)
	return nil
}

func (c *Controller) applyField(name string, value any) error {
	switch name {
	case "name":
		return setString(&c.draft.Name, value)
	case "email":
		return setString(&c.draft.Email, value)
	case "mobile":
		return setString(&c.draft.Mobile, value)
	case "message":
		return setString(&c.draft.Message, value)
	case "wants_site_visit":
		return setBool(&c.draft.WantsSiteVisit, value)
	case "visit_date":
		return setString(&c.draft.SiteVisit.VisitDate, value)
	case "visit_time":
		return setString(&c.draft.SiteVisit.VisitTime, value)
	case "wants_pickup_drop":
		return setBool(&c.draft.SiteVisit.WantsPickupDrop, value)
	case "pickup_location":
		if err := setString(&c.draft.SiteVisit.PickupLocation, value); err != nil {
			return err
		}
		// One-directional sync while the mirror flag is on
		if c.draft.SiteVisit.SameAsPickup {
			c.draft.SiteVisit.DropLocation = c.draft.SiteVisit.PickupLocation
		}
		return nil
	case "drop_location":
		if c.draft.SiteVisit.SameAsPickup {
			return ErrDropLocationLocked
		}
		return setString(&c.draft.SiteVisit.DropLocation, value)
	case "same_as_pickup":
		if err := setBool(&c.draft.SiteVisit.SameAsPickup, value); err != nil {
			return err
		}
		if c.draft.SiteVisit.SameAsPickup {
			c.draft.SiteVisit.DropLocation = c.draft.SiteVisit.PickupLocation
		}
		return nil
	case "wants_meal":
		return setBool(&c.draft.SiteVisit.WantsMeal, value)
	case "meal_preference":
		return setString(&c.draft.SiteVisit.MealPreference, value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
}

// Submit runs the full submission sequence: schema validation, duplicate
// check, payload construction with the current telemetry snapshot, and the
// create call. It never waits on a pending telemetry lookup. A call while a
// submission is in flight is a no-op.
func (c *Controller) Submit(ctx context.Context) (*models.LeadRecord, error) {
	c.mu.Lock()
	switch c.status {
	case StatusSubmitting, StatusValidating:
		c.mu.Unlock()
		return nil, ErrSubmissionInFlight
	case StatusSucceeded:
		c.mu.Unlock()
		return nil, ErrFormSpent
	}

	c.status = StatusValidating
	snapshot := c.draft

	if verr := validateDraft(c.validate, snapshot); verr != nil {
		c.failure = &Failure{Kind: FailureValidation, Message: verr.Error(), Fields: verr.Fields}
		c.status = StatusIdle
		c.mu.Unlock()
		return nil, verr
	}

	c.status = StatusSubmitting
	c.mu.Unlock()

	// Land any debounced write now so the stored draft matches the snapshot
	// being submitted; if the process dies mid-submission, nothing is lost
	if err := c.persister.Flush(ctx); err != nil {
		c.log.Warn("draft flush before submission failed", "error", err)
	}

	fp := dedup.NewFingerprint(snapshot.Mobile, snapshot.Email, c.region)

	if err := c.guard.Check(ctx, fp); err != nil {
		if errors.Is(err, dedup.ErrDuplicate) {
			c.fail(Failure{Kind: FailureDuplicate, Message: "It looks like you've already submitted an enquiry. We'll be in touch soon."})
			return nil, err
		}
		// The guard itself only errors on duplicates; anything else is
		// absorbed inside it. Treat the unexpected as retryable.
		c.fail(Failure{Kind: FailureSubmission, Message: "Something went wrong. Please try again."})
		return nil, &SubmissionError{Err: err}
	}

	record := BuildLeadRecord(snapshot, c.telemetry.Current().Context, c.utm)

	if err := c.submitter.Create(ctx, record); err != nil {
		c.log.Warn("lead submission failed", "error", err)
		c.fail(Failure{Kind: FailureSubmission, Message: "We couldn't send your enquiry. Please try again."})
		return nil, &SubmissionError{Err: err}
	}

	// Recording the fingerprint is best effort and must not delay success
	go c.guard.Record(context.WithoutCancel(ctx), fp)

	if err := c.persister.Clear(ctx); err != nil {
		c.log.Warn("draft clear after submission failed", "error", err)
	}

	c.mu.Lock()
	c.draft = models.LeadDraft{Source: c.draft.Source}
	c.failure = nil
	c.status = StatusSucceeded
	c.mu.Unlock()

	return &record, nil
}

func (c *Controller) fail(f Failure) {
	c.mu.Lock()
	c.failure = &f
	c.status = StatusIdle
	c.mu.Unlock()
}

// ClearError drops the retained failure
func (c *Controller) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failure = nil
}

// Status returns the current lifecycle state
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Failure returns the retained failure, if any
func (c *Controller) Failure() *Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failure == nil {
		return nil
	}
	f := *c.failure
	return &f
}

// Draft returns a snapshot of the current draft
func (c *Controller) Draft() models.LeadDraft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Visibility returns the derived conditional-field state for the current
// draft
func (c *Controller) Visibility() Visibility {
	return DeriveVisibility(c.Draft())
}
