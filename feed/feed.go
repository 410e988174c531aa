package feed

import (
	"io"
	"log/slog"
	"sort"

	"opentransit.dev/gtfsprep/model"
)

// Feed is an in-memory GTFS feed indexed for preprocessing. The parse
// package fills it record by record and calls Finalize. After that it
// is read-only, except for the lazily built stop time index. The whole
// pipeline is single threaded, so no locking anywhere.
type Feed struct {
	Agencies      []model.Agency
	Routes        []model.Route
	Stops         []model.Stop
	Trips         []model.Trip
	StopTimes     []model.StopTime
	Calendars     []model.Calendar
	CalendarDates []model.CalendarDate
	Shapes        map[string][]model.ShapePoint
	Timezone      string

	stopIDField string
	logger      *slog.Logger

	routesByID    map[string]*model.Route
	stopsByID     map[string]*model.Stop
	stopsByNormID map[string]*model.Stop
	tripsByRoute  map[string][]*model.Trip

	// built on first use
	stopTimesByTrip map[string][]*model.StopTime
}

// Options configure how a feed is indexed. StopIDField names the GTFS
// stop column used as the public stop identifier; "stop_id" (the
// default) means no translation.
type Options struct {
	StopIDField string
	Logger      *slog.Logger
}

func New(opts Options) *Feed {
	if opts.StopIDField == "" {
		opts.StopIDField = "stop_id"
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Feed{
		Shapes:      map[string][]model.ShapePoint{},
		stopIDField: opts.StopIDField,
		logger:      opts.Logger,
	}
}

func (f *Feed) AddAgency(a *model.Agency) {
	f.Agencies = append(f.Agencies, *a)
}

func (f *Feed) AddRoute(r *model.Route) {
	f.Routes = append(f.Routes, *r)
}

func (f *Feed) AddStop(s *model.Stop) {
	f.Stops = append(f.Stops, *s)
}

func (f *Feed) AddTrip(t *model.Trip) {
	f.Trips = append(f.Trips, *t)
}

func (f *Feed) AddStopTime(st *model.StopTime) {
	f.StopTimes = append(f.StopTimes, *st)
}

func (f *Feed) AddCalendar(c *model.Calendar) {
	f.Calendars = append(f.Calendars, *c)
}

func (f *Feed) AddCalendarDate(cd *model.CalendarDate) {
	f.CalendarDates = append(f.CalendarDates, *cd)
}

func (f *Feed) AddShapePoint(p *model.ShapePoint) {
	f.Shapes[p.ShapeID] = append(f.Shapes[p.ShapeID], *p)
}

// Finalize builds the indexes. Must be called once, after the last
// record has been added.
func (f *Feed) Finalize() {
	for shapeID := range f.Shapes {
		points := f.Shapes[shapeID]
		sort.SliceStable(points, func(i, j int) bool {
			return points[i].Sequence < points[j].Sequence
		})
	}

	f.routesByID = make(map[string]*model.Route, len(f.Routes))
	for i := range f.Routes {
		f.routesByID[f.Routes[i].ID] = &f.Routes[i]
	}

	f.stopsByID = make(map[string]*model.Stop, len(f.Stops))
	f.stopsByNormID = make(map[string]*model.Stop, len(f.Stops))
	for i := range f.Stops {
		stop := &f.Stops[i]
		f.stopsByID[stop.ID] = stop
		f.stopsByNormID[f.normalize(stop)] = stop
	}

	f.tripsByRoute = map[string][]*model.Trip{}
	for i := range f.Trips {
		trip := &f.Trips[i]
		f.tripsByRoute[trip.RouteID] = append(f.tripsByRoute[trip.RouteID], trip)
	}
}

func (f *Feed) normalize(stop *model.Stop) string {
	switch f.stopIDField {
	case "stop_code":
		return stop.Code
	default:
		return stop.ID
	}
}

// NormalizeStopID translates a GTFS stop id into the public stop id
// used throughout the derived documents. With the default stop_id
// field this is the identity. Unknown ids pass through unchanged.
func (f *Feed) NormalizeStopID(gtfsStopID string) string {
	if f.stopIDField == "stop_id" {
		return gtfsStopID
	}
	stop, found := f.stopsByID[gtfsStopID]
	if !found {
		return gtfsStopID
	}
	return f.normalize(stop)
}

func (f *Feed) RouteByID(routeID string) (*model.Route, bool) {
	r, found := f.routesByID[routeID]
	return r, found
}

// RoutesForAgency returns the routes operated by the given GTFS
// agency, in feed order. An empty agency id selects all routes, for
// feeds carrying a single agency.
func (f *Feed) RoutesForAgency(gtfsAgencyID string) []*model.Route {
	routes := []*model.Route{}
	for i := range f.Routes {
		if gtfsAgencyID == "" || f.Routes[i].AgencyID == gtfsAgencyID {
			routes = append(routes, &f.Routes[i])
		}
	}
	return routes
}

func (f *Feed) StopByID(stopID string) (*model.Stop, bool) {
	s, found := f.stopsByID[stopID]
	return s, found
}

// StopByNormalizedID resolves a public (normalized) stop id. When two
// stops normalize to the same id, the later one in the feed wins.
func (f *Feed) StopByNormalizedID(normID string) (*model.Stop, bool) {
	s, found := f.stopsByNormID[normID]
	return s, found
}

// TripsForRoute returns the route's trips in feed order.
func (f *Feed) TripsForRoute(gtfsRouteID string) []*model.Trip {
	return f.tripsByRoute[gtfsRouteID]
}

// StopTimesForTrip returns the trip's stop times ordered by
// stop_sequence. The grouping over stop_times is built on first call
// and reused for the rest of the run.
func (f *Feed) StopTimesForTrip(tripID string) []*model.StopTime {
	if f.stopTimesByTrip == nil {
		f.stopTimesByTrip = map[string][]*model.StopTime{}
		for i := range f.StopTimes {
			st := &f.StopTimes[i]
			f.stopTimesByTrip[st.TripID] = append(f.stopTimesByTrip[st.TripID], st)
		}
		for _, sts := range f.stopTimesByTrip {
			sort.SliceStable(sts, func(i, j int) bool {
				return sts[i].StopSequence < sts[j].StopSequence
			})
		}
	}
	return f.stopTimesByTrip[tripID]
}

// Shape returns the shape's points ordered by sequence.
func (f *Feed) Shape(shapeID string) ([]model.ShapePoint, bool) {
	points, found := f.Shapes[shapeID]
	return points, found
}
