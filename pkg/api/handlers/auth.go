package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadintake/config"
	apierrors "github.com/jordanlanch/leadintake/pkg/api/errors"
	"github.com/jordanlanch/leadintake/pkg/auth"
	"github.com/jordanlanch/leadintake/pkg/models"
)

// AuthHandler handles back-office authentication. There is a single admin
// account configured through the environment; no self-service registration.
type AuthHandler struct {
	config    *config.Config
	validator *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		config:    cfg,
		validator: validator.New(),
	}
}

// Login godoc
// @Summary Log in to the back office
// @Description Exchange admin credentials for a JWT
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Credentials"
// @Success 200 {object} models.LoginResponse "Signed token"
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 401 {object} models.ErrorResponse "Wrong credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	// An unset hash disables the back office entirely
	if h.config.AdminPasswordHash == "" ||
		req.Email != h.config.AdminEmail ||
		!auth.CheckPassword(req.Password, h.config.AdminPasswordHash) {
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "invalid_credentials",
			Message: "Email or password is incorrect.",
		})
	}

	token, expiresAt, err := auth.GenerateJWT(req.Email, "admin", h.config.JWTSecret, h.config.JWTExpirationHours)
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
	})
}
