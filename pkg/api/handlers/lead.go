package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/jordanlanch/leadintake/pkg/api/errors"
	"github.com/jordanlanch/leadintake/pkg/leads"
	"github.com/jordanlanch/leadintake/pkg/models"
)

// LeadHandler exposes the lead collection API: the create and duplicate-check
// endpoints the intake pipeline calls, plus the admin listing.
type LeadHandler struct {
	service   *leads.Service
	validator *validator.Validate
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(service *leads.Service) *LeadHandler {
	return &LeadHandler{
		service:   service,
		validator: validator.New(),
	}
}

// CreateLead godoc
// @Summary Create a lead
// @Description Store a submitted lead record
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body models.LeadRecord true "Lead record"
// @Success 201 {object} models.APIResponse "Lead stored"
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /leads [post]
func (h *LeadHandler) CreateLead(c echo.Context) error {
	var rec models.LeadRecord
	if err := c.Bind(&rec); err != nil {
		return c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   "invalid request body",
		})
	}

	if rec.Name == "" || rec.Email == "" || rec.Mobile == "" {
		return c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   "name, email and mobile are required",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	lead, err := h.service.Create(ctx, rec)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   "failed to store lead",
		})
	}

	return c.JSON(http.StatusCreated, models.APIResponse{
		Success: true,
		Data:    map[string]any{"id": lead.ID},
	})
}

// CheckLead godoc
// @Summary Check for an existing lead
// @Description Report whether a lead with the given mobile or email already exists
// @Tags Leads
// @Produce json
// @Param mobile query string false "Mobile number"
// @Param email query string false "Email address"
// @Success 200 {object} models.APIResponse "Existence flag"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /leads/check [get]
func (h *LeadHandler) CheckLead(c echo.Context) error {
	mobile := c.QueryParam("mobile")
	email := c.QueryParam("email")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	exists, err := h.service.ExistsByIdentity(ctx, mobile, email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   "failed to check for existing lead",
		})
	}

	return c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    map[string]any{"exists": exists},
	})
}

// ListLeads godoc
// @Summary List leads
// @Description Paginated lead listing for the back office
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status" Enums(new, read, contacted, closed)
// @Param source query string false "Filter by source tag"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} models.APIResponse "Leads and pagination"
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /admin/leads [get]
func (h *LeadHandler) ListLeads(c echo.Context) error {
	var req models.LeadListRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid query parameters",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	items, pagination, err := h.service.List(ctx, req)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data: map[string]any{
			"leads":      items,
			"pagination": pagination,
		},
	})
}
