package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/leadintake/config"
	"github.com/jordanlanch/leadintake/pkg/dedup"
	"github.com/jordanlanch/leadintake/pkg/logger"
	"github.com/jordanlanch/leadintake/pkg/metrics"
	"github.com/jordanlanch/leadintake/pkg/models"
	"github.com/jordanlanch/leadintake/pkg/session"
)

// Prometheus collectors register globally, so the package shares one set
var testMetrics = metrics.New()

type stubSubmitter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubSubmitter) Create(ctx context.Context, rec models.LeadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *stubSubmitter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubRemote struct {
	exists bool
	err    error
}

func (s *stubRemote) Exists(ctx context.Context, fp dedup.Fingerprint) (bool, error) {
	return s.exists, s.err
}

type stubTeleProvider struct{}

func (stubTeleProvider) Lookup(ctx context.Context) (models.TrackingContext, error) {
	return models.TrackingContext{}, errors.New("lookup disabled in tests")
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:          "test-secret",
		JWTExpirationHours: 1,
		TelemetryTimeout:   50 * time.Millisecond,
		DraftDebounce:      5 * time.Millisecond,
		DedupWindow:        time.Hour,
		SubmitTimeout:      time.Second,
		PopupSessionCap:    3,
		DefaultPhoneRegion: "IN",
	}
}

func newTestIntakeHandler(submitter *stubSubmitter, remote *stubRemote) *IntakeHandler {
	sessions := session.NewManager(session.NewMemoryProvider(time.Hour))
	return NewIntakeHandler(sessions, submitter, remote, stubTeleProvider{}, testConfig(), testMetrics, logger.Nop())
}

func doJSON(e *echo.Echo, method, path string, body string, paramNames, paramValues []string) (echo.Context, *httptest.ResponseRecorder) {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(paramNames) > 0 {
		c.SetParamNames(paramNames...)
		c.SetParamValues(paramValues...)
	}
	return c, rec
}

func startSession(t *testing.T, e *echo.Echo, h *IntakeHandler) string {
	t.Helper()

	c, rec := doJSON(e, http.MethodPost, "/intake/sessions",
		`{"source":"contact_page","user_agent":"Mozilla/5.0 test","utm":{"utm_source":"google"}}`, nil, nil)
	require.NoError(t, h.StartSession(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp models.StartSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func setField(t *testing.T, e *echo.Echo, h *IntakeHandler, id, field string, value any) {
	t.Helper()

	raw, err := json.Marshal(map[string]any{"field": field, "value": value})
	require.NoError(t, err)

	c, rec := doJSON(e, http.MethodPut, "/intake/sessions/"+id+"/fields", string(raw),
		[]string{"id"}, []string{id})
	require.NoError(t, h.UpdateField(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func fillValidDraft(t *testing.T, e *echo.Echo, h *IntakeHandler, id string) {
	t.Helper()
	setField(t, e, h, id, "name", "Asha Rao")
	setField(t, e, h, id, "email", "asha@example.com")
	setField(t, e, h, id, "mobile", "+91 98765 43210")
}

func TestStartSession(t *testing.T) {
	e := echo.New()
	h := newTestIntakeHandler(&stubSubmitter{}, &stubRemote{})

	t.Run("mints a session and serves its state", func(t *testing.T) {
		id := startSession(t, e, h)

		c, rec := doJSON(e, http.MethodGet, "/intake/sessions/"+id, "", []string{"id"}, []string{id})
		require.NoError(t, h.GetState(c))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Success bool `json:"success"`
			Data    struct {
				Status string           `json:"status"`
				Draft  models.LeadDraft `json:"draft"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "idle", resp.Data.Status)
		assert.Equal(t, "contact_page", resp.Data.Draft.Source)
	})

	t.Run("rejects a missing source", func(t *testing.T) {
		c, rec := doJSON(e, http.MethodPost, "/intake/sessions", `{"source":""}`, nil, nil)
		require.NoError(t, h.StartSession(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown session is a 404", func(t *testing.T) {
		c, rec := doJSON(e, http.MethodGet, "/intake/sessions/nope", "", []string{"id"}, []string{"nope"})
		require.NoError(t, h.GetState(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUpdateField(t *testing.T) {
	e := echo.New()
	h := newTestIntakeHandler(&stubSubmitter{}, &stubRemote{})
	id := startSession(t, e, h)

	t.Run("applies a known field", func(t *testing.T) {
		setField(t, e, h, id, "name", "Asha Rao")

		c, rec := doJSON(e, http.MethodGet, "/intake/sessions/"+id, "", []string{"id"}, []string{id})
		require.NoError(t, h.GetState(c))

		var resp struct {
			Data struct {
				Draft models.LeadDraft `json:"draft"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Asha Rao", resp.Data.Draft.Name)
	})

	t.Run("rejects an unknown field", func(t *testing.T) {
		c, rec := doJSON(e, http.MethodPut, "/intake/sessions/"+id+"/fields",
			`{"field":"favourite_color","value":"blue"}`, []string{"id"}, []string{id})
		require.NoError(t, h.UpdateField(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects a direct drop location edit while mirrored", func(t *testing.T) {
		setField(t, e, h, id, "wants_site_visit", true)
		setField(t, e, h, id, "same_as_pickup", true)

		c, rec := doJSON(e, http.MethodPut, "/intake/sessions/"+id+"/fields",
			`{"field":"drop_location","value":"Airport"}`, []string{"id"}, []string{id})
		require.NoError(t, h.UpdateField(c))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "field_locked")
	})
}

func TestSubmit(t *testing.T) {
	t.Run("validation failure names the offending fields", func(t *testing.T) {
		e := echo.New()
		h := newTestIntakeHandler(&stubSubmitter{}, &stubRemote{})
		id := startSession(t, e, h)

		c, rec := doJSON(e, http.MethodPost, "/intake/sessions/"+id+"/submit", "", []string{"id"}, []string{id})
		require.NoError(t, h.Submit(c))
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp models.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "validation_error", resp.Error)
		assert.Contains(t, resp.Fields, "name")
		assert.Contains(t, resp.Fields, "mobile")
	})

	t.Run("valid draft submits once and spends the form", func(t *testing.T) {
		e := echo.New()
		submitter := &stubSubmitter{}
		h := newTestIntakeHandler(submitter, &stubRemote{})
		id := startSession(t, e, h)
		fillValidDraft(t, e, h, id)

		c, rec := doJSON(e, http.MethodPost, "/intake/sessions/"+id+"/submit", "", []string{"id"}, []string{id})
		require.NoError(t, h.Submit(c))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp models.SubmitResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "succeeded", resp.Status)
		require.NotNil(t, resp.Lead)
		assert.Equal(t, "Asha Rao", resp.Lead.Name)
		assert.Equal(t, "contact_page", resp.Lead.Source)
		assert.Equal(t, 1, submitter.callCount())

		c, rec = doJSON(e, http.MethodPost, "/intake/sessions/"+id+"/submit", "", []string{"id"}, []string{id})
		require.NoError(t, h.Submit(c))
		assert.Equal(t, http.StatusGone, rec.Code)
		assert.Equal(t, 1, submitter.callCount())
	})

	t.Run("known duplicate is a conflict", func(t *testing.T) {
		e := echo.New()
		h := newTestIntakeHandler(&stubSubmitter{}, &stubRemote{exists: true})
		id := startSession(t, e, h)
		fillValidDraft(t, e, h, id)

		before := testutil.ToFloat64(testMetrics.DuplicatesBlocked.WithLabelValues(dedup.TierRemote))

		c, rec := doJSON(e, http.MethodPost, "/intake/sessions/"+id+"/submit", "", []string{"id"}, []string{id})
		require.NoError(t, h.Submit(c))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "duplicate_lead")
		assert.Equal(t, before+1, testutil.ToFloat64(testMetrics.DuplicatesBlocked.WithLabelValues(dedup.TierRemote)))
	})

	t.Run("duplicate check outage fails open and is counted", func(t *testing.T) {
		e := echo.New()
		submitter := &stubSubmitter{}
		h := newTestIntakeHandler(submitter, &stubRemote{err: errors.New("redis down")})
		id := startSession(t, e, h)
		fillValidDraft(t, e, h, id)

		before := testutil.ToFloat64(testMetrics.DedupCheckFailOpens)

		c, rec := doJSON(e, http.MethodPost, "/intake/sessions/"+id+"/submit", "", []string{"id"}, []string{id})
		require.NoError(t, h.Submit(c))
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 1, submitter.callCount())
		assert.Equal(t, before+1, testutil.ToFloat64(testMetrics.DedupCheckFailOpens))
	})

	t.Run("backend failure is retryable through the same session", func(t *testing.T) {
		e := echo.New()
		submitter := &stubSubmitter{err: errors.New("connection refused")}
		h := newTestIntakeHandler(submitter, &stubRemote{})
		id := startSession(t, e, h)
		fillValidDraft(t, e, h, id)

		c, rec := doJSON(e, http.MethodPost, "/intake/sessions/"+id+"/submit", "", []string{"id"}, []string{id})
		require.NoError(t, h.Submit(c))
		assert.Equal(t, http.StatusBadGateway, rec.Code)

		submitter.mu.Lock()
		submitter.err = nil
		submitter.mu.Unlock()

		c, rec = doJSON(e, http.MethodPost, "/intake/sessions/"+id+"/submit", "", []string{"id"}, []string{id})
		require.NoError(t, h.Submit(c))
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}

func TestEngagementEndpoints(t *testing.T) {
	e := echo.New()
	h := newTestIntakeHandler(&stubSubmitter{}, &stubRemote{})
	id := startSession(t, e, h)

	requestShow := func(trigger string, force bool) bool {
		body := fmt.Sprintf(`{"trigger":%q,"force":%t}`, trigger, force)
		c, rec := doJSON(e, http.MethodPost, "/intake/sessions/"+id+"/engagement/show", body,
			[]string{"id"}, []string{id})
		require.NoError(t, h.RequestShow(c))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp models.RequestShowResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp.Allowed
	}

	t.Run("session cap suppresses the fourth prompt", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			assert.True(t, requestShow("scroll_depth", false))
		}
		assert.False(t, requestShow("scroll_depth", false))
	})

	t.Run("force bypasses the cap", func(t *testing.T) {
		assert.True(t, requestShow("cta_click", true))
	})

	t.Run("dismissal suppresses further prompts", func(t *testing.T) {
		c, rec := doJSON(e, http.MethodPost, "/intake/sessions/"+id+"/engagement/dismiss",
			`{"permanent":true}`, []string{"id"}, []string{id})
		require.NoError(t, h.Dismiss(c))
		require.Equal(t, http.StatusOK, rec.Code)

		assert.False(t, requestShow("scroll_depth", false))
	})
}

func TestEndSession(t *testing.T) {
	e := echo.New()
	h := newTestIntakeHandler(&stubSubmitter{}, &stubRemote{})
	id := startSession(t, e, h)
	setField(t, e, h, id, "name", "Asha Rao")

	c, rec := doJSON(e, http.MethodDelete, "/intake/sessions/"+id, "", []string{"id"}, []string{id})
	require.NoError(t, h.EndSession(c))
	require.Equal(t, http.StatusOK, rec.Code)

	c, rec = doJSON(e, http.MethodGet, "/intake/sessions/"+id, "", []string{"id"}, []string{id})
	require.NoError(t, h.GetState(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
