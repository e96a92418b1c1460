package services

import (
	"sort"
	"strings"
	"time"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
)

// Route restricts a projection to one origin/destination pair
type Route struct {
	Origin      string
	Destination string
}

// ProjectTrips computes the trips the templates would produce on date without
// touching storage. date is interpreted in its own location; only the calendar
// day is used. A nil route projects every template.
func ProjectTrips(templates []models.ScheduleTemplate, date time.Time, route *Route) []models.TripInstance {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	serviceDate := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	instances := make([]models.TripInstance, 0, len(templates))
	for i := range templates {
		tmpl := &templates[i]

		if route != nil && !tmpl.ServesRoute(route.Origin, route.Destination) {
			continue
		}
		if !tmpl.FiresOn(day) {
			continue
		}

		departure, err := tmpl.DepartureOn(day)
		if err != nil {
			// Unparseable time of day; the template cannot produce a departure
			continue
		}

		templateID := tmpl.ID
		instances = append(instances, models.TripInstance{
			Provenance:     models.Projected{TemplateID: tmpl.ID, ServiceDate: serviceDate},
			TemplateID:     &templateID,
			Origin:         tmpl.Origin,
			Destination:    tmpl.Destination,
			BusID:          tmpl.BusID,
			DepartureAt:    departure,
			ArrivalAt:      departure.Add(tmpl.Duration()),
			Fare:           tmpl.Fare,
			Status:         models.TripStatusScheduled,
			TotalSeats:     tmpl.BusCapacity,
			AvailableSeats: tmpl.BusCapacity,
		})
	}

	return instances
}

// ReconcileTrips merges persisted and projected instances. A projection whose
// route and departure minute is already taken by a persisted trip is dropped,
// so one departure never appears twice. The result is ordered by departure.
func ReconcileTrips(persisted, projected []models.TripInstance) []models.TripInstance {
	occupied := make(map[string]struct{}, len(persisted))
	for _, trip := range persisted {
		occupied[slotKey(trip)] = struct{}{}
	}

	merged := make([]models.TripInstance, 0, len(persisted)+len(projected))
	merged = append(merged, persisted...)

	for _, trip := range projected {
		key := slotKey(trip)
		if _, taken := occupied[key]; taken {
			continue
		}
		// Two templates on the same slot collapse to the first
		occupied[key] = struct{}{}
		merged = append(merged, trip)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].DepartureAt.Equal(merged[j].DepartureAt) {
			return merged[i].DepartureAt.Before(merged[j].DepartureAt)
		}
		return merged[i].Ref() < merged[j].Ref()
	})

	return merged
}

func slotKey(trip models.TripInstance) string {
	return normalizePlace(trip.Origin) + "|" + normalizePlace(trip.Destination) + "|" +
		time.Unix(trip.SlotKey()*60, 0).UTC().Format("200601021504")
}

func normalizePlace(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
