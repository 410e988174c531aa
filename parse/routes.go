package parse

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"opentransit.dev/gtfsprep/feed"
	"opentransit.dev/gtfsprep/model"
)

type routeRow struct {
	ID        string `csv:"route_id"`
	AgencyID  string `csv:"agency_id"`
	ShortName string `csv:"route_short_name"`
	LongName  string `csv:"route_long_name"`
	Desc      string `csv:"route_desc"`
	Type      string `csv:"route_type"`
	URL       string `csv:"route_url"`
	Color     string `csv:"route_color"`
	TextColor string `csv:"route_text_color"`
	SortOrder string `csv:"route_sort_order"`
}

// The basic types 0-7 plus the two extended types we've actually seen
// in feeds. Everything else is rejected.
func knownRouteType(t int) bool {
	switch {
	case 0 <= t && t <= 7:
		return true
	case t == 11, t == 12:
		return true
	}
	return false
}

func validColor(c string) bool {
	if len(c) != 6 {
		return false
	}
	_, err := hex.DecodeString(c)
	return err == nil
}

// parseRoutes reads routes.txt, filling in the defaults the format
// allows feeds to omit. Returns the set of route IDs seen.
func parseRoutes(writer *feed.Feed, data io.Reader, agencies map[string]bool) (map[string]bool, error) {
	routes := map[string]bool{}

	err := gocsv.UnmarshalToCallbackWithError(data, func(r *routeRow) error {
		if r.ID == "" {
			return fmt.Errorf("route has no route_id")
		}
		if routes[r.ID] {
			return fmt.Errorf("repeated route_id: '%s'", r.ID)
		}
		routes[r.ID] = true

		if r.ShortName == "" && r.LongName == "" {
			return fmt.Errorf("route_id '%s' has no short_name or long_name", r.ID)
		}

		// agency_id is optional only when the feed has a single
		// agency. Either way, a non-empty value must resolve.
		if r.AgencyID == "" && len(agencies) > 1 {
			return fmt.Errorf("route_id '%s' has no agency_id", r.ID)
		}
		if r.AgencyID != "" && !agencies[r.AgencyID] {
			return fmt.Errorf("unknown agency_id: '%s'", r.AgencyID)
		}

		// A missing route_type means a bus, as far as we're concerned.
		routeType := int(model.RouteTypeBus)
		if r.Type != "" {
			var err error
			routeType, err = strconv.Atoi(r.Type)
			if err != nil {
				return fmt.Errorf("route_id '%s' has invalid route_type: %w", r.ID, err)
			}
			if !knownRouteType(routeType) {
				return fmt.Errorf("route_id '%s' has invalid route_type: %d", r.ID, routeType)
			}
		}

		var sortOrder *int
		if r.SortOrder != "" {
			so, err := strconv.Atoi(r.SortOrder)
			if err != nil {
				return fmt.Errorf("route_id '%s' has invalid route_sort_order: %w", r.ID, err)
			}
			sortOrder = &so
		}

		// Black text on a white background is the documented default.
		color, textColor := r.Color, r.TextColor
		if color == "" {
			color = "FFFFFF"
		} else if !validColor(color) {
			return fmt.Errorf("route_id '%s' has invalid route_color: %s", r.ID, color)
		}
		if textColor == "" {
			textColor = "000000"
		} else if !validColor(textColor) {
			return fmt.Errorf("route_id '%s' has invalid route_text_color: %s", r.ID, textColor)
		}

		writer.AddRoute(&model.Route{
			ID:        r.ID,
			AgencyID:  r.AgencyID,
			ShortName: r.ShortName,
			LongName:  r.LongName,
			Desc:      r.Desc,
			Type:      model.RouteType(routeType),
			URL:       r.URL,
			Color:     color,
			TextColor: textColor,
			SortOrder: sortOrder,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}

	return routes, nil
}
