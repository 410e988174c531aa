package parse

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"opentransit.dev/gtfsprep/feed"
	"opentransit.dev/gtfsprep/model"
)

type stopRow struct {
	ID            string  `csv:"stop_id"`
	Code          string  `csv:"stop_code"`
	Name          string  `csv:"stop_name"`
	Desc          string  `csv:"stop_desc"`
	Lat           float64 `csv:"stop_lat"`
	Lon           float64 `csv:"stop_lon"`
	URL           string  `csv:"stop_url"`
	LocationType  int8    `csv:"location_type"`
	ParentStation string  `csv:"parent_station"`
}

// parseStops reads stops.txt. Returns the set of stop IDs seen.
func parseStops(writer *feed.Feed, data io.Reader) (map[string]bool, error) {
	stops := map[string]bool{}
	parentOf := map[string]string{}

	err := gocsv.UnmarshalToCallbackWithError(data, func(st *stopRow) error {
		if st.ID == "" {
			return fmt.Errorf("empty stop_id")
		}
		if stops[st.ID] {
			return fmt.Errorf("repeated stop_id '%s'", st.ID)
		}
		stops[st.ID] = true

		// Generic nodes and boarding areas may omit name and
		// position. All other location types require both.
		locationType := model.LocationType(st.LocationType)
		if locationType != model.LocationTypeGenericNode && locationType != model.LocationTypeBoardingArea {
			if st.Name == "" {
				return fmt.Errorf("empty stop_name for stop_id '%s'", st.ID)
			}
			if st.Lat == 0 || st.Lon == 0 {
				return fmt.Errorf("empty stop_lat or stop_lon for stop_id '%s'", st.ID)
			}
		}

		if st.ParentStation != "" {
			parentOf[st.ID] = st.ParentStation
		}

		writer.AddStop(&model.Stop{
			ID:            st.ID,
			Code:          st.Code,
			Name:          st.Name,
			Desc:          st.Desc,
			Lat:           st.Lat,
			Lon:           st.Lon,
			URL:           st.URL,
			LocationType:  locationType,
			ParentStation: st.ParentStation,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}

	// parent_station may point forward in the file, so resolve the
	// references once all stops are in.
	for stopID, parentID := range parentOf {
		if !stops[parentID] {
			return nil, fmt.Errorf("stop '%s' references unknown parent_station '%s'", stopID, parentID)
		}
	}

	return stops, nil
}
