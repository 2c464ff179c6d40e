package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadintake/config"
	apierrors "github.com/jordanlanch/leadintake/pkg/api/errors"
	"github.com/jordanlanch/leadintake/pkg/dedup"
	"github.com/jordanlanch/leadintake/pkg/engagement"
	"github.com/jordanlanch/leadintake/pkg/intake"
	"github.com/jordanlanch/leadintake/pkg/intake/draft"
	"github.com/jordanlanch/leadintake/pkg/logger"
	"github.com/jordanlanch/leadintake/pkg/metrics"
	"github.com/jordanlanch/leadintake/pkg/models"
	"github.com/jordanlanch/leadintake/pkg/session"
	"github.com/jordanlanch/leadintake/pkg/telemetry"
)

// pipeline bundles the per-session collaborators built at session start
type pipeline struct {
	ctrl     *intake.Controller
	throttle *engagement.Throttle
	tele     *telemetry.Acquirer
}

// guardObserver feeds duplicate-guard outcomes into metrics and reports
// fail-opens as Sentry warnings
type guardObserver struct {
	metrics *metrics.Metrics
}

func (o guardObserver) DuplicateBlocked(tier string) {
	o.metrics.DuplicatesBlocked.WithLabelValues(tier).Inc()
}

func (o guardObserver) CheckFailedOpen(err error) {
	o.metrics.DedupCheckFailOpens.Inc()
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		sentry.CaptureException(err)
	})
}

// IntakeHandler exposes the visitor-facing intake pipeline over HTTP. One
// pipeline instance lives per session, built at session start and torn down
// when the session ends.
type IntakeHandler struct {
	sessions  *session.Manager
	submitter intake.Submitter
	remote    dedup.RemoteChecker
	teleProv  telemetry.Provider
	config    *config.Config
	metrics   *metrics.Metrics
	log       logger.Logger
	validator *validator.Validate

	mu        sync.Mutex
	pipelines map[string]*pipeline
}

// NewIntakeHandler creates a new intake handler
func NewIntakeHandler(sessions *session.Manager, submitter intake.Submitter, remote dedup.RemoteChecker, teleProv telemetry.Provider, cfg *config.Config, m *metrics.Metrics, log logger.Logger) *IntakeHandler {
	return &IntakeHandler{
		sessions:  sessions,
		submitter: submitter,
		remote:    remote,
		teleProv:  teleProv,
		config:    cfg,
		metrics:   m,
		log:       log,
		validator: validator.New(),
		pipelines: make(map[string]*pipeline),
	}
}

// StartSession godoc
// @Summary Open an intake session
// @Description Mint a session, restore any saved draft and begin the telemetry lookup
// @Tags Intake
// @Accept json
// @Produce json
// @Param request body models.StartSessionRequest true "Session attribution"
// @Success 201 {object} models.StartSessionResponse "Session opened"
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /intake/sessions [post]
func (h *IntakeHandler) StartSession(c echo.Context) error {
	var req models.StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	if req.UserAgent == "" {
		req.UserAgent = c.Request().UserAgent()
	}

	id, err := h.sessions.Start(c.Request().Context(), req.Source, req.UserAgent, req.UTM)
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	p, err := h.buildPipeline(c.Request().Context(), id, req.Source, req.UserAgent, req.UTM)
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	h.mu.Lock()
	h.pipelines[id] = p
	h.mu.Unlock()

	// Telemetry resolves in the background; submissions never wait for it
	p.tele.Start(context.WithoutCancel(c.Request().Context()))

	return c.JSON(http.StatusCreated, models.StartSessionResponse{SessionID: id})
}

// UpdateField godoc
// @Summary Update one draft field
// @Tags Intake
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body models.FieldUpdateRequest true "Field name and value"
// @Success 200 {object} models.APIResponse "Field applied"
// @Failure 400 {object} models.ErrorResponse "Unknown field or wrong type"
// @Failure 404 {object} models.ErrorResponse "Session not found"
// @Failure 409 {object} models.ErrorResponse "Edit rejected"
// @Router /intake/sessions/{id}/fields [put]
func (h *IntakeHandler) UpdateField(c echo.Context) error {
	p, err := h.getPipeline(c)
	if err != nil {
		return apierrors.NotFoundError(c, "session")
	}

	var req models.FieldUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	if err := p.ctrl.SetField(req.Field, req.Value); err != nil {
		switch {
		case errors.Is(err, intake.ErrSubmissionInFlight):
			return c.JSON(http.StatusConflict, models.ErrorResponse{
				Error:   "submission_in_flight",
				Message: "A submission is in progress. Please wait.",
			})
		case errors.Is(err, intake.ErrFormSpent):
			return c.JSON(http.StatusGone, models.ErrorResponse{
				Error:   "form_spent",
				Message: "This enquiry was already submitted.",
			})
		case errors.Is(err, intake.ErrDropLocationLocked):
			return c.JSON(http.StatusConflict, models.ErrorResponse{
				Error:   "field_locked",
				Message: "Drop location follows the pickup location while they are linked.",
			})
		default:
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid_field",
				Message: err.Error(),
			})
		}
	}

	return c.JSON(http.StatusOK, models.APIResponse{Success: true})
}

// GetState godoc
// @Summary Read the current form state
// @Tags Intake
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.APIResponse "Draft, status, visibility and any retained error"
// @Failure 404 {object} models.ErrorResponse "Session not found"
// @Router /intake/sessions/{id} [get]
func (h *IntakeHandler) GetState(c echo.Context) error {
	p, err := h.getPipeline(c)
	if err != nil {
		return apierrors.NotFoundError(c, "session")
	}

	state := map[string]any{
		"status":     string(p.ctrl.Status()),
		"draft":      p.ctrl.Draft(),
		"visibility": p.ctrl.Visibility(),
	}
	if f := p.ctrl.Failure(); f != nil {
		state["failure"] = map[string]any{
			"kind":    string(f.Kind),
			"message": f.Message,
			"fields":  f.Fields,
		}
	}

	return c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: state})
}

// ClearError godoc
// @Summary Drop the retained submission error
// @Tags Intake
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.ErrorResponse "Session not found"
// @Router /intake/sessions/{id}/error [delete]
func (h *IntakeHandler) ClearError(c echo.Context) error {
	p, err := h.getPipeline(c)
	if err != nil {
		return apierrors.NotFoundError(c, "session")
	}
	p.ctrl.ClearError()
	return c.JSON(http.StatusOK, models.APIResponse{Success: true})
}

// Submit godoc
// @Summary Submit the enquiry
// @Description Validate the draft, run the duplicate check and create the lead
// @Tags Intake
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.SubmitResponse "Lead created"
// @Failure 400 {object} models.ErrorResponse "Validation failed"
// @Failure 404 {object} models.ErrorResponse "Session not found"
// @Failure 409 {object} models.ErrorResponse "Duplicate or in-flight submission"
// @Failure 410 {object} models.ErrorResponse "Form already submitted"
// @Failure 502 {object} models.ErrorResponse "Lead collection API unreachable"
// @Router /intake/sessions/{id}/submit [post]
func (h *IntakeHandler) Submit(c echo.Context) error {
	p, err := h.getPipeline(c)
	if err != nil {
		return apierrors.NotFoundError(c, "session")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.config.SubmitTimeout)
	defer cancel()

	record, err := p.ctrl.Submit(ctx)
	if err != nil {
		var verr *intake.ValidationError
		switch {
		case errors.As(err, &verr):
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "validation_error",
				Message: "Please fix the highlighted fields and try again.",
				Fields:  verr.Fields,
			})
		case errors.Is(err, dedup.ErrDuplicate):
			return c.JSON(http.StatusConflict, models.ErrorResponse{
				Error:   "duplicate_lead",
				Message: "It looks like you've already submitted an enquiry. We'll be in touch soon.",
			})
		case errors.Is(err, intake.ErrSubmissionInFlight):
			return c.JSON(http.StatusConflict, models.ErrorResponse{
				Error:   "submission_in_flight",
				Message: "A submission is already in progress.",
			})
		case errors.Is(err, intake.ErrFormSpent):
			return c.JSON(http.StatusGone, models.ErrorResponse{
				Error:   "form_spent",
				Message: "This enquiry was already submitted.",
			})
		default:
			h.metrics.SubmissionFailures.Inc()
			sentry.WithScope(func(scope *sentry.Scope) {
				scope.SetLevel(sentry.LevelWarning)
				sentry.CaptureException(err)
			})
			return c.JSON(http.StatusBadGateway, models.ErrorResponse{
				Error:   "submission_failed",
				Message: "We couldn't send your enquiry. Please try again.",
			})
		}
	}

	h.metrics.LeadsSubmitted.Inc()
	return c.JSON(http.StatusOK, models.SubmitResponse{Status: string(p.ctrl.Status()), Lead: record})
}

// RequestShow godoc
// @Summary Ask permission to show a re-solicitation prompt
// @Tags Engagement
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body models.RequestShowRequest true "Trigger category"
// @Success 200 {object} models.RequestShowResponse "Throttle decision"
// @Failure 404 {object} models.ErrorResponse "Session not found"
// @Router /intake/sessions/{id}/engagement/show [post]
func (h *IntakeHandler) RequestShow(c echo.Context) error {
	p, err := h.getPipeline(c)
	if err != nil {
		return apierrors.NotFoundError(c, "session")
	}

	var req models.RequestShowRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	allowed, err := p.throttle.RequestShow(c.Request().Context(), req.Trigger, req.Force)
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	if allowed {
		h.metrics.PopupsShown.WithLabelValues(req.Trigger).Inc()
	} else {
		h.metrics.PopupsSuppressed.WithLabelValues(req.Trigger).Inc()
	}

	return c.JSON(http.StatusOK, models.RequestShowResponse{Allowed: allowed})
}

// Dismiss godoc
// @Summary Record a prompt dismissal
// @Tags Engagement
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body models.DismissRequest true "Dismissal scope"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.ErrorResponse "Session not found"
// @Router /intake/sessions/{id}/engagement/dismiss [post]
func (h *IntakeHandler) Dismiss(c echo.Context) error {
	p, err := h.getPipeline(c)
	if err != nil {
		return apierrors.NotFoundError(c, "session")
	}

	var req models.DismissRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := p.throttle.Dismiss(c.Request().Context(), req.Permanent); err != nil {
		return apierrors.InternalError(c, err)
	}
	return c.JSON(http.StatusOK, models.APIResponse{Success: true})
}

// EndSession godoc
// @Summary Close an intake session
// @Description Release all of the session's state, drafts included
// @Tags Intake
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.ErrorResponse "Session not found"
// @Router /intake/sessions/{id} [delete]
func (h *IntakeHandler) EndSession(c echo.Context) error {
	id := c.Param("id")

	h.mu.Lock()
	_, ok := h.pipelines[id]
	delete(h.pipelines, id)
	h.mu.Unlock()

	if !ok {
		return apierrors.NotFoundError(c, "session")
	}

	if err := h.sessions.End(c.Request().Context(), id); err != nil {
		return apierrors.InternalError(c, err)
	}
	return c.JSON(http.StatusOK, models.APIResponse{Success: true})
}

// PruneStale drops pipelines whose backing session has expired, returning how
// many were released. Without this the registry grows for as long as the
// process lives.
func (h *IntakeHandler) PruneStale(ctx context.Context) int {
	h.mu.Lock()
	ids := make([]string, 0, len(h.pipelines))
	for id := range h.pipelines {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	pruned := 0
	for _, id := range ids {
		_, found, err := h.sessions.Meta(ctx, id)
		if err != nil || found {
			continue
		}
		h.mu.Lock()
		if _, ok := h.pipelines[id]; ok {
			delete(h.pipelines, id)
			pruned++
		}
		h.mu.Unlock()
	}
	return pruned
}

// getPipeline resolves the session's pipeline, rebuilding it from persisted
// session state after a process restart.
func (h *IntakeHandler) getPipeline(c echo.Context) (*pipeline, error) {
	id := c.Param("id")

	h.mu.Lock()
	p, ok := h.pipelines[id]
	h.mu.Unlock()
	if ok {
		return p, nil
	}

	meta, found, err := h.sessions.Meta(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, session.ErrNotFound
	}

	p, err = h.buildPipeline(c.Request().Context(), id, meta.Source, meta.UserAgent, meta.UTM)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	if existing, ok := h.pipelines[id]; ok {
		p = existing
	} else {
		h.pipelines[id] = p
	}
	h.mu.Unlock()

	p.tele.Start(context.WithoutCancel(c.Request().Context()))
	return p, nil
}

func (h *IntakeHandler) buildPipeline(ctx context.Context, id, source, userAgent string, utm models.UTMParams) (*pipeline, error) {
	store := h.sessions.Store(id)

	persister := draft.NewPersister(store, h.config.DraftDebounce, h.log)

	guard := dedup.NewGuard(store, h.remote, h.config.DedupWindow, h.log)
	guard.Observe(guardObserver{metrics: h.metrics})

	tele := telemetry.NewAcquirer(h.teleProv, h.config.TelemetryTimeout, userAgent, h.log)
	tele.OnFallback(h.metrics.TelemetryFallbacks.Inc)

	ctrl, err := intake.NewController(ctx, intake.Config{
		Persister:          persister,
		Guard:              guard,
		Telemetry:          tele,
		Submitter:          h.submitter,
		UTM:                utm,
		DefaultPhoneRegion: h.config.DefaultPhoneRegion,
		Logger:             h.log,
	})
	if err != nil {
		return nil, err
	}
	if source != "" {
		if err := ctrl.SetSource(source); err != nil {
			return nil, err
		}
	}

	return &pipeline{
		ctrl:     ctrl,
		throttle: engagement.NewThrottle(store, h.config.PopupSessionCap, h.log),
		tele:     tele,
	}, nil
}
