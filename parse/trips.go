package parse

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"opentransit.dev/gtfsprep/feed"
	"opentransit.dev/gtfsprep/model"
)

type tripRow struct {
	ID          string `csv:"trip_id"`
	RouteID     string `csv:"route_id"`
	ServiceID   string `csv:"service_id"`
	ShapeID     string `csv:"shape_id"`
	Headsign    string `csv:"trip_headsign"`
	ShortName   string `csv:"trip_short_name"`
	DirectionID int8   `csv:"direction_id"`
}

// parseTrips reads trips.txt, checking route and service references
// against the sets built from earlier files. Returns the set of trip
// IDs seen.
func parseTrips(writer *feed.Feed, data io.Reader, routes, services map[string]bool) (map[string]bool, error) {
	trips := map[string]bool{}

	err := gocsv.UnmarshalToCallbackWithError(data, func(tr *tripRow) error {
		if tr.ID == "" {
			return fmt.Errorf("empty trip_id")
		}
		if trips[tr.ID] {
			return fmt.Errorf("repeated trip_id '%s'", tr.ID)
		}
		trips[tr.ID] = true

		if tr.RouteID == "" {
			return fmt.Errorf("empty route_id")
		}
		if !routes[tr.RouteID] {
			return fmt.Errorf("unknown route_id '%s'", tr.RouteID)
		}
		if !services[tr.ServiceID] {
			return fmt.Errorf("unknown service_id '%s'", tr.ServiceID)
		}
		if tr.DirectionID != 0 && tr.DirectionID != 1 {
			return fmt.Errorf("invalid direction_id '%d'", tr.DirectionID)
		}

		writer.AddTrip(&model.Trip{
			ID:          tr.ID,
			RouteID:     tr.RouteID,
			ServiceID:   tr.ServiceID,
			ShapeID:     tr.ShapeID,
			Headsign:    tr.Headsign,
			ShortName:   tr.ShortName,
			DirectionID: tr.DirectionID,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}

	return trips, nil
}
