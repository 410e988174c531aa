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

type calendarDateRow struct {
	ServiceID     string `csv:"service_id"`
	Date          string `csv:"date"`
	ExceptionType int8   `csv:"exception_type"`
}

// parseCalendarDates reads calendar_dates.txt. A service may appear on
// many dates, but only once per date. Returns the set of service IDs
// seen, which can include services absent from calendar.txt.
func parseCalendarDates(writer *feed.Feed, data io.Reader) (map[string]bool, error) {
	type serviceDate struct {
		service string
		date    string
	}

	services := map[string]bool{}
	seen := map[serviceDate]bool{}

	err := gocsv.UnmarshalToCallbackWithError(data, func(cd *calendarDateRow) error {
		if cd.ServiceID == "" {
			return fmt.Errorf("empty service_id")
		}
		if cd.ExceptionType != int8(model.ServiceAdded) && cd.ExceptionType != int8(model.ServiceRemoved) {
			return fmt.Errorf("illegal exception_type: '%d'", cd.ExceptionType)
		}
		if _, err := time.ParseInLocation("20060102", cd.Date, time.UTC); err != nil {
			return fmt.Errorf("parsing date '%s': %w", cd.Date, err)
		}

		key := serviceDate{cd.ServiceID, cd.Date}
		if seen[key] {
			return fmt.Errorf("service '%s' listed twice for %s", cd.ServiceID, cd.Date)
		}
		seen[key] = true
		services[cd.ServiceID] = true

		writer.AddCalendarDate(&model.CalendarDate{
			ServiceID:     cd.ServiceID,
			Date:          cd.Date,
			ExceptionType: model.ExceptionType(cd.ExceptionType),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}

	return services, nil
}
