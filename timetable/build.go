package timetable

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"

	"opentransit.dev/gtfsprep/config"
	"opentransit.dev/gtfsprep/feed"
	"opentransit.dev/gtfsprep/model"
	"opentransit.dev/gtfsprep/routeconfig"
)

// DateKeyGroup is one distinct set of services active together on at
// least one date. Key is the first date, ascending, on which the set
// occurs; ServiceIDs are sorted.
type DateKeyGroup struct {
	Key        string
	ServiceIDs []string
}

// AssignDateKeys reduces a services-by-date mapping to its distinct
// service sets. Two dates share a key exactly when their sorted
// service sets are equal. Returns the groups in first-date order,
// plus the date -> key mapping.
func AssignDateKeys(servicesByDate map[string][]string) ([]DateKeyGroup, map[string]string) {
	dates := make([]string, 0, len(servicesByDate))
	for d := range servicesByDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	groups := []DateKeyGroup{}
	keyBySet := map[string]string{}
	dateKeys := map[string]string{}

	for _, d := range dates {
		serviceIDs := append([]string{}, servicesByDate[d]...)
		sort.Strings(serviceIDs)

		// The canonical form of the set, for equality checks.
		setKey, _ := json.Marshal(serviceIDs)

		key, found := keyBySet[string(setKey)]
		if !found {
			key = d
			keyBySet[string(setKey)] = key
			groups = append(groups, DateKeyGroup{Key: key, ServiceIDs: serviceIDs})
		}
		dateKeys[d] = key
	}

	return groups, dateKeys
}

// Builder generates timetable documents for one agency's routes.
type Builder struct {
	feed   *feed.Feed
	agency *config.Agency
	logger *slog.Logger
}

func NewBuilder(f *feed.Feed, agency *config.Agency, logger *slog.Logger) *Builder {
	return &Builder{
		feed:   f,
		agency: agency,
		logger: logger,
	}
}

// BuildRoute produces one document per date key group for the route.
// Routes without trips get no documents.
func (b *Builder) BuildRoute(rc *routeconfig.Route, groups []DateKeyGroup) []Document {
	trips := b.feed.TripsForRoute(rc.GtfsRouteID)
	if len(trips) == 0 {
		return nil
	}

	// Arrival lists are computed once per service and reused by
	// every date key the service takes part in. The trip int
	// allocation is shared across services so ints never repeat
	// within a route.
	tripInts := map[string]int{}
	arrivalsByService := map[string]Arrivals{}
	for _, serviceID := range serviceIDs(trips) {
		arrivalsByService[serviceID] = b.serviceArrivals(rc, serviceID, tripsForService(trips, serviceID), tripInts)
	}

	docs := make([]Document, 0, len(groups))
	for _, g := range groups {
		merged := Arrivals{}
		for _, serviceID := range g.ServiceIDs {
			serviceArrivals, found := arrivalsByService[serviceID]
			if !found {
				continue
			}
			mergeArrivals(merged, serviceArrivals)
		}
		sortArrivals(merged)

		docs = append(docs, Document{
			Version:    DefaultVersion,
			Agency:     b.agency.ID,
			RouteID:    rc.ID,
			DateKey:    g.Key,
			TimezoneID: b.agency.TimezoneID,
			ServiceIDs: g.ServiceIDs,
			Arrivals:   merged,
		})
	}

	return docs
}

// serviceArrivals collects one service's arrivals per direction and
// stop, assigning dense trip ints as new trips appear.
func (b *Builder) serviceArrivals(rc *routeconfig.Route, serviceID string, trips []*model.Trip, tripInts map[string]int) Arrivals {
	nextTripInt := 1
	for _, v := range tripInts {
		if v >= nextTripInt {
			nextTripInt = v + 1
		}
	}

	b.logger.Debug("building service arrivals",
		"route_id", rc.ID,
		"service_id", serviceID,
		"trips", len(trips))

	arrivals := Arrivals{}
	dirByGtfsDirectionID := map[string]*routeconfig.Direction{}
	for i := range rc.Directions {
		dir := &rc.Directions[i]
		dirByGtfsDirectionID[dir.GtfsDirectionID] = dir
		arrivals[dir.ID] = map[string][]ArrivalEvent{}
	}

	for _, trip := range trips {
		if _, found := tripInts[trip.ID]; !found {
			tripInts[trip.ID] = nextTripInt
			nextTripInt++
		}
		tripInt := tripInts[trip.ID]

		// TODO: bucket trips into custom directions by their stop
		// sequence instead of by GTFS direction id alone
		dir, found := dirByGtfsDirectionID[strconv.Itoa(int(trip.DirectionID))]
		if !found {
			b.logger.Warn("trip matches no configured direction",
				"route_id", rc.ID,
				"trip_id", trip.ID,
				"gtfs_direction_id", trip.DirectionID)
			continue
		}

		for _, st := range b.feed.StopTimesForTrip(trip.ID) {
			stopID := b.feed.NormalizeStopID(st.StopID)

			event := ArrivalEvent{T: st.Arrival, I: tripInt}
			if st.Departure != st.Arrival {
				event.E = st.Departure
			}

			arrivals[dir.ID][stopID] = append(arrivals[dir.ID][stopID], event)
		}
	}

	return arrivals
}

func mergeArrivals(dst, src Arrivals) {
	for dirID, byStop := range src {
		if dst[dirID] == nil {
			dst[dirID] = map[string][]ArrivalEvent{}
		}
		for stopID, events := range byStop {
			dst[dirID][stopID] = append(dst[dirID][stopID], events...)
		}
	}
}

// sortArrivals orders every stop's events by arrival time. The sort
// is stable, so events arriving together keep the order their
// services were merged in.
func sortArrivals(arrivals Arrivals) {
	for _, byStop := range arrivals {
		for stopID := range byStop {
			events := byStop[stopID]
			sort.SliceStable(events, func(i, j int) bool {
				return events[i].T < events[j].T
			})
		}
	}
}

func serviceIDs(trips []*model.Trip) []string {
	seen := map[string]bool{}
	ids := []string{}
	for _, t := range trips {
		if !seen[t.ServiceID] {
			seen[t.ServiceID] = true
			ids = append(ids, t.ServiceID)
		}
	}
	sort.Strings(ids)
	return ids
}

func tripsForService(trips []*model.Trip, serviceID string) []*model.Trip {
	matched := []*model.Trip{}
	for _, t := range trips {
		if t.ServiceID == serviceID {
			matched = append(matched, t)
		}
	}
	return matched
}
