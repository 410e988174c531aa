// Package routeconfig defines the route config document: per-route
// display metadata plus per-direction path geometry and stop
// projections, ready for a client to render without touching GTFS.
package routeconfig

import (
	"encoding/json"
	"fmt"
)

// DefaultVersion names the current document format. Parse refuses
// documents written by other versions.
const DefaultVersion = "v2"

// Document is the route config artifact for one agency.
type Document struct {
	Version string  `json:"version"`
	Routes  []Route `json:"routes"`
}

type Route struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	URL         string              `json:"url,omitempty"`
	Type        int                 `json:"type"`
	Color       string              `json:"color"`
	TextColor   string              `json:"text_color"`
	GtfsRouteID string              `json:"gtfs_route_id"`
	Stops       map[string]StopInfo `json:"stops"`
	Directions  []Direction         `json:"directions"`
	SortOrder   *int                `json:"sort_order"`
}

type Direction struct {
	ID              string                  `json:"id"`
	Title           string                  `json:"title"`
	GtfsShapeID     string                  `json:"gtfs_shape_id"`
	GtfsDirectionID string                  `json:"gtfs_direction_id"`
	Stops           []string                `json:"stops"`
	StopGeometry    map[string]StopGeometry `json:"stop_geometry"`
	Coords          []Coord                 `json:"coords"`
	Distance        int                     `json:"distance"`
}

// StopInfo is a stop's display metadata, keyed by public stop id in
// Route.Stops. Coordinates are rounded to 5 decimal places (about a
// meter).
type StopInfo struct {
	ID    string  `json:"id"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Title string  `json:"title"`
	URL   string  `json:"url,omitempty"`
}

// StopGeometry places a stop along its direction's path. Distance is
// meters from the path start, AfterIndex the path vertex preceding
// the stop, Offset the stop's distance from the path. All meters,
// whole numbers.
type StopGeometry struct {
	Distance   int `json:"distance"`
	AfterIndex int `json:"after_index"`
	Offset     int `json:"offset"`
}

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Marshal renders the document in its compact wire form.
func (d *Document) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

func Parse(data []byte) (*Document, error) {
	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("unmarshaling route config: %w", err)
	}
	if doc.Version != DefaultVersion {
		return nil, fmt.Errorf("unsupported route config version '%s'", doc.Version)
	}
	return doc, nil
}

// StorageKey is the document's key in the local store and in object
// storage.
func StorageKey(agencyID string) string {
	return fmt.Sprintf("routes/%s/%s.json", DefaultVersion, agencyID)
}
