package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jordanlanch/leadintake/pkg/models"
)

func TestBuildLeadRecord(t *testing.T) {
	tracking := models.TrackingContext{
		IPAddress:       "103.27.8.44",
		Location:        models.Location{City: "Pune", State: "Maharashtra", Country: "India"},
		UserAgentString: "test-agent",
		DeviceClass:     "mobile",
	}

	t.Run("false gating flag nulls sub-fields regardless of stale values", func(t *testing.T) {
		d := models.LeadDraft{
			Name:           "A",
			Email:          "a@x.com",
			Mobile:         "9876543210",
			WantsSiteVisit: false,
			SiteVisit: models.SiteVisitDetails{
				VisitDate:       "2025-03-01",
				VisitTime:       "10:00 AM",
				WantsPickupDrop: true,
				PickupLocation:  "Airport",
				DropLocation:    "Hotel",
				WantsMeal:       true,
				MealPreference:  "veg",
			},
		}

		// Building twice from the same draft is deterministic
		for i := 0; i < 2; i++ {
			rec := BuildLeadRecord(d, tracking, models.UTMParams{})
			assert.Nil(t, rec.VisitDate)
			assert.Nil(t, rec.VisitTime)
			assert.Nil(t, rec.PickupLocation)
			assert.Nil(t, rec.DropLocation)
			assert.Nil(t, rec.MealPreference)
			assert.Equal(t, models.LeadPriorityMedium, rec.Priority)
		}
	})

	t.Run("site visit raises priority and flattens sub-fields", func(t *testing.T) {
		d := models.LeadDraft{
			Name:           "Rahul",
			Email:          "rahul@x.com",
			Mobile:         "9876543210",
			WantsSiteVisit: true,
			SiteVisit: models.SiteVisitDetails{
				VisitDate: "2025-03-01",
				VisitTime: "10:00 AM",
			},
		}

		rec := BuildLeadRecord(d, tracking, models.UTMParams{})
		assert.Equal(t, models.LeadStatusNew, rec.Status)
		assert.Equal(t, models.LeadPriorityHigh, rec.Priority)
		assert.Equal(t, "2025-03-01", *rec.VisitDate)
		assert.Equal(t, "10:00 AM", *rec.VisitTime)
		assert.Nil(t, rec.PickupLocation, "pickup not requested")
		assert.Nil(t, rec.DropLocation)
	})

	t.Run("same-as-pickup mirrors the pickup location into drop", func(t *testing.T) {
		d := models.LeadDraft{
			WantsSiteVisit: true,
			SiteVisit: models.SiteVisitDetails{
				WantsPickupDrop: true,
				PickupLocation:  "Airport",
				DropLocation:    "stale value",
				SameAsPickup:    true,
			},
		}

		rec := BuildLeadRecord(d, tracking, models.UTMParams{})
		assert.Equal(t, "Airport", *rec.PickupLocation)
		assert.Equal(t, "Airport", *rec.DropLocation)
	})

	t.Run("meal gate under site visit", func(t *testing.T) {
		d := models.LeadDraft{
			WantsSiteVisit: true,
			SiteVisit: models.SiteVisitDetails{
				WantsMeal:      false,
				MealPreference: "veg",
			},
		}
		rec := BuildLeadRecord(d, tracking, models.UTMParams{})
		assert.Nil(t, rec.MealPreference)
	})

	t.Run("tracking and utm fields are carried through", func(t *testing.T) {
		src := "google"
		d := models.LeadDraft{Name: "A", Source: "hero_form"}
		rec := BuildLeadRecord(d, tracking, models.UTMParams{Source: &src})

		assert.Equal(t, "103.27.8.44", rec.IPAddress)
		assert.Equal(t, "Pune", rec.City)
		assert.Equal(t, "mobile", rec.DeviceClass)
		assert.Equal(t, "hero_form", rec.Source)
		assert.Equal(t, "google", *rec.UTM.Source)
	})
}

func TestDeriveVisibility(t *testing.T) {
	t.Run("everything hidden by default", func(t *testing.T) {
		v := DeriveVisibility(models.LeadDraft{})
		assert.False(t, v.SiteVisitFields)
		assert.False(t, v.PickupDropFields)
		assert.False(t, v.MealFields)
	})

	t.Run("pickup gate only meaningful under site visit", func(t *testing.T) {
		v := DeriveVisibility(models.LeadDraft{
			SiteVisit: models.SiteVisitDetails{WantsPickupDrop: true},
		})
		assert.False(t, v.PickupDropFields)

		v = DeriveVisibility(models.LeadDraft{
			WantsSiteVisit: true,
			SiteVisit:      models.SiteVisitDetails{WantsPickupDrop: true},
		})
		assert.True(t, v.PickupDropFields)
		assert.True(t, v.DropLocationEditable)
	})

	t.Run("mirrored drop location is not editable", func(t *testing.T) {
		v := DeriveVisibility(models.LeadDraft{
			WantsSiteVisit: true,
			SiteVisit:      models.SiteVisitDetails{WantsPickupDrop: true, SameAsPickup: true},
		})
		assert.False(t, v.DropLocationEditable)
	})
}
