package leads

import (
	"time"

	"github.com/jordanlanch/leadintake/pkg/models"
)

// Lead is the durable lead row. Identity columns are stored twice: as
// entered, for the back office, and normalized, so the duplicate check
// matches "+91 98765-43210" against "9876543210".
type Lead struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name    string `json:"name"`
	Email   string `json:"email"`
	Mobile  string `json:"mobile"`
	Message string `gorm:"type:text" json:"message,omitempty"`
	Source  string `gorm:"index" json:"source"`

	MobileNormalized string `gorm:"index" json:"-"`
	EmailNormalized  string `gorm:"index" json:"-"`

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

	UTMSource   *string `json:"utm_source"`
	UTMMedium   *string `json:"utm_medium"`
	UTMCampaign *string `json:"utm_campaign"`
	UTMTerm     *string `json:"utm_term"`
	UTMContent  *string `json:"utm_content"`

	Status   string `gorm:"index;default:new" json:"status"`
	Priority string `json:"priority"`
}

// fromRecord maps the wire payload onto a row
func fromRecord(rec models.LeadRecord) Lead {
	return Lead{
		Name:    rec.Name,
		Email:   rec.Email,
		Mobile:  rec.Mobile,
		Message: rec.Message,
		Source:  rec.Source,

		WantsSiteVisit: rec.WantsSiteVisit,
		VisitDate:      rec.VisitDate,
		VisitTime:      rec.VisitTime,
		PickupLocation: rec.PickupLocation,
		DropLocation:   rec.DropLocation,
		MealPreference: rec.MealPreference,

		IPAddress:   rec.IPAddress,
		City:        rec.City,
		State:       rec.State,
		Country:     rec.Country,
		UserAgent:   rec.UserAgent,
		DeviceClass: rec.DeviceClass,

		UTMSource:   rec.UTM.Source,
		UTMMedium:   rec.UTM.Medium,
		UTMCampaign: rec.UTM.Campaign,
		UTMTerm:     rec.UTM.Term,
		UTMContent:  rec.UTM.Content,

		Status:   rec.Status,
		Priority: rec.Priority,
	}
}
