package routeconfig

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"

	"opentransit.dev/gtfsprep/config"
	"opentransit.dev/gtfsprep/feed"
	"opentransit.dev/gtfsprep/geometry"
	"opentransit.dev/gtfsprep/model"
	"opentransit.dev/gtfsprep/shapes"
)

// ExternalNames supplies route naming from a system outside the feed:
// display titles and positions in the externally published route
// list. Implementations handle their own lookup failures; a miss just
// means the feed's naming stands.
type ExternalNames interface {
	RouteTitle(routeID string) (string, bool)
	RouteOrder(routeID string) (int, bool)
}

// Builder assembles the route records for one agency. names may be
// nil, in which case titles and ordering come from the feed alone.
type Builder struct {
	feed    *feed.Feed
	agency  *config.Agency
	names   ExternalNames
	offsets geometry.Offsets
	logger  *slog.Logger
}

func NewBuilder(f *feed.Feed, agency *config.Agency, names ExternalNames, offsets geometry.Offsets, logger *slog.Logger) *Builder {
	return &Builder{
		feed:    f,
		agency:  agency,
		names:   names,
		offsets: offsets,
		logger:  logger,
	}
}

// Build assembles a route record for every route of the configured
// agency and orders them for display.
func (b *Builder) Build() ([]Route, error) {
	routes := []Route{}
	for _, r := range b.feed.RoutesForAgency(b.agency.GtfsAgencyID) {
		route, err := b.buildRoute(r)
		if err != nil {
			return nil, err
		}
		routes = append(routes, *route)
	}

	sortRoutes(routes)

	return routes, nil
}

func (b *Builder) publicRouteID(r *model.Route) string {
	if b.agency.RouteIDGtfsField == "route_short_name" {
		return r.ShortName
	}
	return r.ID
}

// Feeds usually set either a short or a long name. When both are
// present they join as "short-long".
func routeTitle(r *model.Route) string {
	switch {
	case r.ShortName != "" && r.LongName != "":
		return r.ShortName + "-" + r.LongName
	case r.ShortName != "":
		return r.ShortName
	default:
		return r.LongName
	}
}

func (b *Builder) buildRoute(r *model.Route) (*Route, error) {
	routeID := b.publicRouteID(r)

	title := routeTitle(r)
	if b.names != nil {
		if t, found := b.names.RouteTitle(routeID); found {
			title = t
		}
	}

	// Explicit feed ordering wins, then the external route list,
	// then id order (see sortRoutes).
	sortOrder := r.SortOrder
	if sortOrder == nil && b.names != nil {
		if pos, found := b.names.RouteOrder(routeID); found {
			p := pos
			sortOrder = &p
		}
	}

	b.logger.Info("building route", "route_id", routeID, "title", title)

	route := &Route{
		ID:          routeID,
		Title:       title,
		URL:         r.URL,
		Type:        int(r.Type),
		Color:       r.Color,
		TextColor:   r.TextColor,
		GtfsRouteID: r.ID,
		Stops:       map[string]StopInfo{},
		Directions:  []Direction{},
		SortOrder:   sortOrder,
	}

	trips := b.feed.TripsForRoute(r.ID)

	if customs, found := b.agency.CustomDirections[routeID]; found {
		for _, custom := range customs {
			dir, err := b.buildCustomDirection(routeID, custom, trips)
			if err != nil {
				return nil, err
			}
			route.Directions = append(route.Directions, *dir)
		}
	} else {
		for _, gtfsDirID := range directionIDs(trips) {
			dir, err := b.buildDefaultDirection(routeID, gtfsDirID, trips)
			if err != nil {
				return nil, err
			}
			route.Directions = append(route.Directions, *dir)
		}
	}

	// Union of every direction's stops, with display metadata.
	for _, dir := range route.Directions {
		for _, stopID := range dir.Stops {
			if _, seen := route.Stops[stopID]; seen {
				continue
			}
			stop, found := b.feed.StopByNormalizedID(stopID)
			if !found {
				b.logger.Warn("direction references unknown stop",
					"route_id", routeID,
					"stop_id", stopID)
				continue
			}
			route.Stops[stopID] = StopInfo{
				ID:    stopID,
				Lat:   round5(stop.Lat),
				Lon:   round5(stop.Lon),
				Title: stop.Name,
				URL:   stop.URL,
			}
		}
	}

	return route, nil
}

func (b *Builder) buildDefaultDirection(routeID string, gtfsDirID int8, trips []*model.Trip) (*Direction, error) {
	dirID := strconv.Itoa(int(gtfsDirID))
	b.logger.Debug("default direction", "route_id", routeID, "direction_id", dirID)

	variants := shapes.Unique(b.feed, tripsForDirection(trips, gtfsDirID), b.logger)

	best := variants[0]
	b.logger.Debug("most common shape",
		"route_id", routeID,
		"shape_id", best.ShapeID,
		"count", best.Count)

	return b.buildDirection(routeID, dirID, dirID, best, "")
}

func (b *Builder) buildCustomDirection(routeID string, custom config.CustomDirection, trips []*model.Trip) (*Direction, error) {
	b.logger.Debug("custom direction", "route_id", routeID, "direction_id", custom.ID)

	gtfsDirID, err := strconv.Atoi(custom.GtfsDirectionID)
	if err != nil {
		return nil, fmt.Errorf("custom direction '%s' has invalid gtfs_direction_id: %w", custom.ID, err)
	}

	variants := shapes.Unique(b.feed, tripsForDirection(trips, int8(gtfsDirID)), b.logger)

	variant, err := shapes.MatchCustom(routeID, custom.GtfsDirectionID, variants, custom.IncludedStopIDs, custom.ExcludedStopIDs)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("matching shape",
		"route_id", routeID,
		"shape_id", variant.ShapeID,
		"count", variant.Count)

	return b.buildDirection(routeID, custom.ID, custom.GtfsDirectionID, variant, custom.Title)
}

// buildDirection assembles one direction record: title, path coords,
// and the projection of every stop onto the path. An empty title gets
// the configured prefix plus the terminal stop's name.
func (b *Builder) buildDirection(routeID, dirID, gtfsDirectionID string, variant shapes.Variant, title string) (*Direction, error) {
	if len(variant.StopIDs) == 0 {
		return nil, fmt.Errorf("shape '%s' for route '%s' direction '%s' has no stops", variant.ShapeID, routeID, dirID)
	}

	if title == "" {
		titlePrefix := ""
		if defaults, found := b.agency.DefaultDirections[gtfsDirectionID]; found {
			titlePrefix = defaults.TitlePrefix
		}

		terminalID := variant.StopIDs[len(variant.StopIDs)-1]
		terminal := terminalID
		if stop, found := b.feed.StopByNormalizedID(terminalID); found {
			terminal = stop.Name
		}

		if titlePrefix != "" {
			title = fmt.Sprintf("%s to %s", titlePrefix, terminal)
		} else {
			title = fmt.Sprintf("To %s", terminal)
		}
	}

	points, found := b.feed.Shape(variant.ShapeID)
	if !found || len(points) == 0 {
		return nil, fmt.Errorf("shape '%s' for route '%s' direction '%s' not in feed", variant.ShapeID, routeID, dirID)
	}

	coords := make([]geometry.LatLon, len(points))
	docCoords := make([]Coord, len(points))
	for i, p := range points {
		coords[i] = geometry.LatLon{Lat: p.Lat, Lon: p.Lon}
		docCoords[i] = Coord{Lat: round5(p.Lat), Lon: round5(p.Lon)}
	}

	path := geometry.NewPath(coords)

	dir := &Direction{
		ID:              dirID,
		Title:           title,
		GtfsShapeID:     variant.ShapeID,
		GtfsDirectionID: gtfsDirectionID,
		Stops:           variant.StopIDs,
		StopGeometry:    map[string]StopGeometry{},
		Coords:          docCoords,
		Distance:        path.Distance(),
	}

	startIndex := 0
	for _, stopID := range variant.StopIDs {
		stop, found := b.feed.StopByNormalizedID(stopID)
		if !found {
			b.logger.Warn("direction references unknown stop",
				"route_id", routeID,
				"direction_id", dirID,
				"stop_id", stopID)
			continue
		}

		xy := path.Projection.Project(stop.Lat, stop.Lon)
		sp := path.ProjectStop(xy, startIndex, b.offsets.EarlyExitMeters)

		if float64(sp.Offset) > b.offsets.WarnMeters {
			b.logger.Info("stop sits off the shape",
				"route_id", routeID,
				"direction_id", dirID,
				"stop_id", stopID,
				"offset_m", sp.Offset,
				"distance_m", sp.Distance)
		}

		if float64(sp.Offset) > b.offsets.DiscardMeters {
			b.logger.Warn("bad geometry for stop, discarding",
				"route_id", routeID,
				"direction_id", dirID,
				"stop_id", stopID,
				"offset_m", sp.Offset)
			continue
		}

		dir.StopGeometry[stopID] = StopGeometry{
			Distance:   sp.Distance,
			AfterIndex: sp.AfterIndex,
			Offset:     sp.Offset,
		}

		startIndex = sp.AfterIndex
	}

	return dir, nil
}

func tripsForDirection(trips []*model.Trip, directionID int8) []*model.Trip {
	matched := []*model.Trip{}
	for _, t := range trips {
		if t.DirectionID == directionID {
			matched = append(matched, t)
		}
	}
	return matched
}

// directionIDs returns the distinct GTFS direction ids present in
// trips, ascending.
func directionIDs(trips []*model.Trip) []int8 {
	seen := map[int8]bool{}
	ids := []int8{}
	for _, t := range trips {
		if !seen[t.DirectionID] {
			seen[t.DirectionID] = true
			ids = append(ids, t.DirectionID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Explicitly ordered routes come first, ordered by their sort order;
// everything else follows in id order.
func sortRoutes(routes []Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		a, b := routes[i].SortOrder, routes[j].SortOrder
		switch {
		case a != nil && b != nil:
			if *a != *b {
				return *a < *b
			}
			return routes[i].ID < routes[j].ID
		case a != nil:
			return true
		case b != nil:
			return false
		default:
			return routes[i].ID < routes[j].ID
		}
	})
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}
