package parse

import (
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"opentransit.dev/gtfsprep/feed"
	"opentransit.dev/gtfsprep/model"
)

type agencyRow struct {
	ID       string `csv:"agency_id"`
	Name     string `csv:"agency_name"`
	URL      string `csv:"agency_url"`
	Timezone string `csv:"agency_timezone"`
}

// parseAgencies reads agency.txt. It returns the set of agency IDs and
// the feed's timezone, which every agency in the feed must share.
func parseAgencies(writer *feed.Feed, data io.Reader) (map[string]bool, string, error) {
	agencies := map[string]bool{}
	timezone := ""

	rows := 0
	err := gocsv.UnmarshalToCallbackWithError(data, func(a *agencyRow) error {
		rows++

		if agencies[a.ID] {
			return fmt.Errorf("duplicated agency_id: '%s'", a.ID)
		}
		agencies[a.ID] = true

		if a.Name == "" {
			return fmt.Errorf("missing agency_name")
		}
		if a.URL == "" {
			return fmt.Errorf("missing agency_url")
		}
		if a.Timezone == "" {
			return fmt.Errorf("missing agency_timezone")
		}

		if timezone == "" {
			if _, err := time.LoadLocation(a.Timezone); err != nil {
				return fmt.Errorf("agency_timezone '%s' is invalid: %w", a.Timezone, err)
			}
			timezone = a.Timezone
		} else if a.Timezone != timezone {
			return fmt.Errorf("agencies disagree on agency_timezone")
		}

		writer.AddAgency(&model.Agency{
			ID:       a.ID,
			Name:     a.Name,
			URL:      a.URL,
			Timezone: a.Timezone,
		})
		return nil
	})
	if err != nil {
		return nil, "", errors.Wrap(err, "reading csv")
	}
	if rows == 0 {
		return nil, "", fmt.Errorf("no agency records")
	}

	return agencies, timezone, nil
}
