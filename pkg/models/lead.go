package models

// Lead status and priority values derived at record construction
const (
	LeadStatusNew      = "new"
	LeadPriorityHigh   = "high"
	LeadPriorityMedium = "medium"
)

// SiteVisitDetails is the nested sub-record gated by WantsSiteVisit. Its
// fields are ignored for payload construction whenever the owning flag is
// false, regardless of what was typed while the flag was on.
type SiteVisitDetails struct {
	VisitDate       string `json:"visit_date"`
	VisitTime       string `json:"visit_time"`
	WantsPickupDrop bool   `json:"wants_pickup_drop"`
	PickupLocation  string `json:"pickup_location"`
	DropLocation    string `json:"drop_location"`
	SameAsPickup    bool   `json:"same_as_pickup"`
	WantsMeal       bool   `json:"wants_meal"`
	MealPreference  string `json:"meal_preference"`
}

// LeadDraft is the mutable in-progress representation of a lead before
// submission
type LeadDraft struct {
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Mobile  string `json:"mobile" validate:"required,mobile"`
	Message string `json:"message" validate:"max=2000"`

	WantsSiteVisit bool             `json:"wants_site_visit"`
	SiteVisit      SiteVisitDetails `json:"site_visit"`

	// Source tags which UI surface originated the draft
	Source string `json:"source"`
}

// UTMParams carries the attribution fields captured at session start
type UTMParams struct {
	Source   *string `json:"utm_source,omitempty"`
	Medium   *string `json:"utm_medium,omitempty"`
	Campaign *string `json:"utm_campaign,omitempty"`
	Term     *string `json:"utm_term,omitempty"`
	Content  *string `json:"utm_content,omitempty"`
}

// Location is the network-derived location portion of TrackingContext
type Location struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// TrackingContext is best-effort client metadata, populated asynchronously
// after session start. Until resolved, consumers use the declared fallbacks
// instead of blocking.
type TrackingContext struct {
	IPAddress       string   `json:"ip_address"`
	Location        Location `json:"location"`
	UserAgentString string   `json:"user_agent"`
	DeviceClass     string   `json:"device_class"`
}

// Tracking fallbacks used while telemetry is pending or failed
const (
	TrackingFallback       = "Unknown"
	TrackingFallbackDevice = "unknown"
)

// FallbackTrackingContext returns the declared fallback values
func FallbackTrackingContext(userAgent string) TrackingContext {
	if userAgent == "" {
		userAgent = TrackingFallback
	}
	return TrackingContext{
		IPAddress: TrackingFallback,
		Location: Location{
			City:    TrackingFallback,
			State:   TrackingFallback,
			Country: TrackingFallback,
		},
		UserAgentString: userAgent,
		DeviceClass:     TrackingFallbackDevice,
	}
}

// LeadRecord is the durable payload sent to the lead collection API. Site
// visit sub-fields are nil whenever their gating flag was false; tracking
// fields carry the fallbacks when telemetry never resolved. Immutable from
// the client's perspective once created.
type LeadRecord struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Mobile  string `json:"mobile"`
	Message string `json:"message,omitempty"`
	Source  string `json:"source"`

	WantsSiteVisit bool    `json:"wants_site_visit"`
	VisitDate      *string `json:"visit_date"`
	VisitTime      *string `json:"visit_time"`
	PickupLocation *string `json:"pickup_location"`
	DropLocation   *string `json:"drop_location"`
	MealPreference *string `json:"meal_preference"`

	IPAddress   string `json:"ip_address"`
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`
	UserAgent   string `json:"user_agent"`
	DeviceClass string `json:"device_class"`

	UTM UTMParams `json:"utm"`

	Status   string `json:"status"`
	Priority string `json:"priority"`
}
