package intake

import "github.com/jordanlanch/leadintake/pkg/models"

// BuildLeadRecord constructs the durable payload from a draft, the current
// tracking snapshot and the session's attribution. The gating flags are the
// single source of truth: sub-fields of a false flag come out nil no matter
// what stale values the draft still holds.
func BuildLeadRecord(d models.LeadDraft, tc models.TrackingContext, utm models.UTMParams) models.LeadRecord {
	rec := models.LeadRecord{
		Name:    d.Name,
		Email:   d.Email,
		Mobile:  d.Mobile,
		Message: d.Message,
		Source:  d.Source,

		WantsSiteVisit: d.WantsSiteVisit,

		IPAddress:   tc.IPAddress,
		City:        tc.Location.City,
		State:       tc.Location.State,
		Country:     tc.Location.Country,
		UserAgent:   tc.UserAgentString,
		DeviceClass: tc.DeviceClass,

		UTM: utm,

		Status:   models.LeadStatusNew,
		Priority: models.LeadPriorityMedium,
	}

	if !d.WantsSiteVisit {
		return rec
	}

	rec.Priority = models.LeadPriorityHigh
	rec.VisitDate = nonEmpty(d.SiteVisit.VisitDate)
	rec.VisitTime = nonEmpty(d.SiteVisit.VisitTime)

	if d.SiteVisit.WantsPickupDrop {
		rec.PickupLocation = nonEmpty(d.SiteVisit.PickupLocation)
		drop := d.SiteVisit.DropLocation
		if d.SiteVisit.SameAsPickup {
			drop = d.SiteVisit.PickupLocation
		}
		rec.DropLocation = nonEmpty(drop)
	}
	if d.SiteVisit.WantsMeal {
		rec.MealPreference = nonEmpty(d.SiteVisit.MealPreference)
	}
	return rec
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
