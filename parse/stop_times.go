package parse

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"opentransit.dev/gtfsprep/feed"
	"opentransit.dev/gtfsprep/model"
)

type stopTimeRow struct {
	TripID        string `csv:"trip_id"`
	StopID        string `csv:"stop_id"`
	StopSequence  uint32 `csv:"stop_sequence"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
	Headsign      string `csv:"stop_headsign"`
}

// parseStopTimeSeconds converts "HH:MM:SS" to seconds after midnight
// on the service day. Hours run past 24 on trips crossing midnight.
func parseStopTimeSeconds(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("want HH:MM:SS, got '%s'", s)
	}

	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	sec, errS := strconv.Atoi(parts[2])
	if errH != nil || errM != nil || errS != nil {
		return 0, fmt.Errorf("non-integer in '%s'", s)
	}

	switch {
	case h < 0 || h > 99:
		return 0, fmt.Errorf("invalid hour in '%s'", s)
	case m < 0 || m > 59:
		return 0, fmt.Errorf("invalid minute in '%s'", s)
	case sec < 0 || sec > 59:
		return 0, fmt.Errorf("invalid second in '%s'", s)
	}

	return h*3600 + m*60 + sec, nil
}

// parseStopTimes reads stop_times.txt. The file dominates feed size,
// so rows stream through a callback instead of loading as a slice.
func parseStopTimes(writer *feed.Feed, data io.Reader, trips, stops map[string]bool) error {
	seq := map[string]map[uint32]bool{}

	row := 0
	err := gocsv.UnmarshalToCallbackWithError(data, func(st *stopTimeRow) error {
		row++

		if !trips[st.TripID] {
			return fmt.Errorf("unknown trip_id: '%s' (row %d)", st.TripID, row)
		}
		if st.StopID == "" {
			return fmt.Errorf("missing stop_id (row %d)", row)
		}
		if !stops[st.StopID] {
			return fmt.Errorf("unknown stop_id: '%s' (row %d)", st.StopID, row)
		}

		arrival, err := parseStopTimeSeconds(st.ArrivalTime)
		if err != nil {
			return errors.Wrapf(err, "parsing arrival_time (row %d)", row)
		}
		departure, err := parseStopTimeSeconds(st.DepartureTime)
		if err != nil {
			return errors.Wrapf(err, "parsing departure_time (row %d)", row)
		}

		// stop_sequence orders the stops within a trip, so a trip
		// can't visit the same sequence number twice.
		if seq[st.TripID] == nil {
			seq[st.TripID] = map[uint32]bool{}
		}
		if seq[st.TripID][st.StopSequence] {
			return fmt.Errorf("duplicate stop_sequence %d for trip_id '%s'", st.StopSequence, st.TripID)
		}
		seq[st.TripID][st.StopSequence] = true

		writer.AddStopTime(&model.StopTime{
			TripID:       st.TripID,
			StopID:       st.StopID,
			Headsign:     st.Headsign,
			StopSequence: st.StopSequence,
			Arrival:      arrival,
			Departure:    departure,
		})
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "reading csv")
	}

	return nil
}
