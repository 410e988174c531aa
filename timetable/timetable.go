// Package timetable derives per-route schedule documents from a feed.
// Dates sharing the same set of active services share one timetable,
// stored under a date key; a per-agency date keys document maps every
// date to the key whose timetable applies.
package timetable

import (
	"encoding/json"
	"fmt"
)

// DefaultVersion names the current document format. The parse
// functions refuse documents written by other versions.
const DefaultVersion = "v1"

// ArrivalEvent is one scheduled stop visit. T and E are seconds after
// midnight on the service day (past 86400 for trips crossing
// midnight); E is omitted whenever the departure equals the arrival.
// I is the trip's dense integer within its route.
type ArrivalEvent struct {
	T int `json:"t"`
	I int `json:"i"`
	E int `json:"e,omitempty"`
}

// Arrivals maps direction id -> stop id -> events ordered by T.
type Arrivals map[string]map[string][]ArrivalEvent

// Document is the timetable artifact for one route on one date key.
type Document struct {
	Version    string   `json:"version"`
	Agency     string   `json:"agency"`
	RouteID    string   `json:"route_id"`
	DateKey    string   `json:"date_key"`
	TimezoneID string   `json:"timezone_id"`
	ServiceIDs []string `json:"service_ids"`
	Arrivals   Arrivals `json:"arrivals"`
}

// Marshal renders the document in its compact wire form.
func (d *Document) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

func ParseDocument(data []byte) (*Document, error) {
	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("unmarshaling timetable: %w", err)
	}
	if doc.Version != DefaultVersion {
		return nil, fmt.Errorf("unsupported timetable version '%s'", doc.Version)
	}
	return doc, nil
}

// DateKeysDocument maps each date covered by the feed to the date key
// whose timetable applies.
type DateKeysDocument struct {
	Version  string            `json:"version"`
	DateKeys map[string]string `json:"date_keys"`
}

func (d *DateKeysDocument) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

func ParseDateKeys(data []byte) (*DateKeysDocument, error) {
	doc := &DateKeysDocument{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("unmarshaling date keys: %w", err)
	}
	if doc.Version != DefaultVersion {
		return nil, fmt.Errorf("unsupported date keys version '%s'", doc.Version)
	}
	return doc, nil
}

// NewDateKeysDocument lays fresh date key assignments over any
// previously published mapping, keeping keys for dates the current
// feed no longer covers.
func NewDateKeysDocument(previous *DateKeysDocument, dateKeys map[string]string) *DateKeysDocument {
	merged := map[string]string{}
	if previous != nil {
		for d, k := range previous.DateKeys {
			merged[d] = k
		}
	}
	for d, k := range dateKeys {
		merged[d] = k
	}
	return &DateKeysDocument{
		Version:  DefaultVersion,
		DateKeys: merged,
	}
}

// StorageKey is a timetable document's key in the local store and in
// object storage.
func StorageKey(agencyID, routeID, dateKey string) string {
	return fmt.Sprintf("timetables/%s/%s/%s/%s.json", DefaultVersion, agencyID, routeID, dateKey)
}

// DateKeysStorageKey is the date keys document's key.
func DateKeysStorageKey(agencyID string) string {
	return fmt.Sprintf("datekeys/%s/%s.json", DefaultVersion, agencyID)
}
