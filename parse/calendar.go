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

type calendarRow struct {
	ServiceID string `csv:"service_id"`
	StartDate string `csv:"start_date"`
	EndDate   string `csv:"end_date"`
	Monday    int8   `csv:"monday"`
	Tuesday   int8   `csv:"tuesday"`
	Wednesday int8   `csv:"wednesday"`
	Thursday  int8   `csv:"thursday"`
	Friday    int8   `csv:"friday"`
	Saturday  int8   `csv:"saturday"`
	Sunday    int8   `csv:"sunday"`
}

// parseCalendar reads calendar.txt, folding the seven weekday columns
// into a single bitfield indexed by time.Weekday. It returns the set
// of service IDs seen.
func parseCalendar(writer *feed.Feed, data io.Reader) (map[string]bool, error) {
	services := map[string]bool{}

	err := gocsv.UnmarshalToCallbackWithError(data, func(c *calendarRow) error {
		if c.ServiceID == "" {
			return fmt.Errorf("empty service_id")
		}
		if services[c.ServiceID] {
			return fmt.Errorf("repeated service_id '%s'", c.ServiceID)
		}
		services[c.ServiceID] = true

		var weekday int8
		for _, col := range []struct {
			name  string
			value int8
			day   time.Weekday
		}{
			{"monday", c.Monday, time.Monday},
			{"tuesday", c.Tuesday, time.Tuesday},
			{"wednesday", c.Wednesday, time.Wednesday},
			{"thursday", c.Thursday, time.Thursday},
			{"friday", c.Friday, time.Friday},
			{"saturday", c.Saturday, time.Saturday},
			{"sunday", c.Sunday, time.Sunday},
		} {
			switch col.value {
			case 1:
				weekday |= 1 << col.day
			case 0:
			default:
				return fmt.Errorf("invalid %s value '%d'", col.name, col.value)
			}
		}

		for _, date := range []struct{ name, value string }{
			{"start_date", c.StartDate},
			{"end_date", c.EndDate},
		} {
			if _, err := time.ParseInLocation("20060102", date.value, time.UTC); err != nil {
				return fmt.Errorf("parsing %s: %w", date.name, err)
			}
		}

		writer.AddCalendar(&model.Calendar{
			ServiceID: c.ServiceID,
			StartDate: c.StartDate,
			EndDate:   c.EndDate,
			Weekday:   weekday,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}

	return services, nil
}
