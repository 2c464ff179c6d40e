package intake

import "github.com/jordanlanch/leadintake/pkg/models"

// Visibility is the derived conditional-field state. It is computed from the
// current draft snapshot on each read; nothing is stored, so toggling a
// gating flag off and back on restores whatever was typed before.
type Visibility struct {
	SiteVisitFields      bool
	PickupDropFields     bool
	DropLocationEditable bool
	MealFields           bool
}

// DeriveVisibility computes conditional-field visibility from a draft.
// Pickup/drop and meal gates are only meaningful under WantsSiteVisit.
func DeriveVisibility(d models.LeadDraft) Visibility {
	siteVisit := d.WantsSiteVisit
	pickupDrop := siteVisit && d.SiteVisit.WantsPickupDrop

	return Visibility{
		SiteVisitFields:      siteVisit,
		PickupDropFields:     pickupDrop,
		DropLocationEditable: pickupDrop && !d.SiteVisit.SameAsPickup,
		MealFields:           siteVisit && d.SiteVisit.WantsMeal,
	}
}
