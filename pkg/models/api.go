package models

// ErrorResponse is the standard error envelope for API responses
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// APIResponse is the success/data envelope the lead collection API speaks
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StartSessionRequest opens an intake session for a visitor
type StartSessionRequest struct {
	Source    string    `json:"source" validate:"required,max=50"`
	UserAgent string    `json:"user_agent"`
	UTM       UTMParams `json:"utm"`
}

// StartSessionResponse returns the minted session ID
type StartSessionResponse struct {
	SessionID string `json:"session_id"`
}

// FieldUpdateRequest mutates one draft field
type FieldUpdateRequest struct {
	Field string `json:"field" validate:"required"`
	Value any    `json:"value"`
}

// SubmitResponse reports the outcome of a submission attempt
type SubmitResponse struct {
	Status string      `json:"status"`
	Lead   *LeadRecord `json:"lead,omitempty"`
}

// RequestShowRequest asks the engagement throttle for permission to show a
// re-solicitation prompt
type RequestShowRequest struct {
	Trigger string `json:"trigger" validate:"required,max=50"`
	Force   bool   `json:"force"`
}

// RequestShowResponse carries the throttle's decision
type RequestShowResponse struct {
	Allowed bool `json:"allowed"`
}

// DismissRequest records a prompt dismissal
type DismissRequest struct {
	Permanent bool `json:"permanent"`
}

// LoginRequest authenticates a back-office user
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the signed token
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// LeadListRequest is the admin-side paginated lead query
type LeadListRequest struct {
	Status string `query:"status" validate:"omitempty,oneof=new read contacted closed"`
	Source string `query:"source"`
	Page   int    `query:"page"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// PaginationInfo contains pagination metadata
type PaginationInfo struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}
