package model

// Feed-native record types shared across packages. One struct per
// GTFS table, with optional columns resolved to explicit values at
// parse time. The numeric constants are wire values from the format
// and must not be renumbered.

type LocationType int

const (
	LocationTypeStop         LocationType = 0
	LocationTypeStation      LocationType = 1
	LocationTypeEntranceExit LocationType = 2
	LocationTypeGenericNode  LocationType = 3
	LocationTypeBoardingArea LocationType = 4
)

type RouteType int

const (
	RouteTypeTram       RouteType = 0
	RouteTypeSubway     RouteType = 1
	RouteTypeRail       RouteType = 2
	RouteTypeBus        RouteType = 3
	RouteTypeFerry      RouteType = 4
	RouteTypeCableCar   RouteType = 5
	RouteTypeAerialLift RouteType = 6
	RouteTypeFunicular  RouteType = 7
	RouteTypeTrolleybus RouteType = 11
	RouteTypeMonorail   RouteType = 12
)

// ExceptionType says whether a calendar_dates.txt row adds service on
// a date or removes it.
type ExceptionType int8

const (
	ServiceAdded   ExceptionType = 1
	ServiceRemoved ExceptionType = 2
)

type Agency struct {
	ID       string
	Name     string
	URL      string
	Timezone string
}

// Calendar is a service's regular weekly pattern. Weekday packs the
// seven day columns into a bitfield indexed by time.Weekday.
type Calendar struct {
	ServiceID string
	Weekday   int8
	StartDate string
	EndDate   string
}

// CalendarDate is a one-day exception to a Calendar.
type CalendarDate struct {
	ServiceID     string
	Date          string
	ExceptionType ExceptionType
}

type Stop struct {
	ID            string
	Name          string
	Desc          string
	Code          string
	URL           string
	LocationType  LocationType
	ParentStation string
	Lat           float64
	Lon           float64
}

type Route struct {
	ID        string
	AgencyID  string
	Type      RouteType
	ShortName string
	LongName  string
	Desc      string
	URL       string
	Color     string
	TextColor string
	// SortOrder is nil when route_sort_order is absent from the feed.
	SortOrder *int
}

type Trip struct {
	ID          string
	RouteID     string
	ServiceID   string
	ShapeID     string
	DirectionID int8
	Headsign    string
	ShortName   string
}

// StopTime holds arrival and departure as seconds after midnight on
// the trip's service day. Values beyond 86400 occur on trips running
// past midnight.
type StopTime struct {
	TripID       string
	StopID       string
	StopSequence uint32
	Arrival      int
	Departure    int
	Headsign     string
}

// ShapePoint is a single point along a trip's path, ordered within
// its shape by Sequence.
type ShapePoint struct {
	ShapeID  string
	Sequence uint32
	Lat      float64
	Lon      float64
}
