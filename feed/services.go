package feed

import (
	"fmt"
	"time"

	"opentransit.dev/gtfsprep/model"
)

const (
	// Date layout used throughout the derived documents.
	DateLayout = "2006-01-02"

	gtfsDateLayout = "20060102"
)

// ServicesByDate expands calendar records and exceptions into the set
// of service ids active on each date of the feed's span. Keys use
// DateLayout, values hold service ids in calendar order. A removal
// exception for a service not scheduled on that date is logged and
// otherwise ignored.
func (f *Feed) ServicesByDate() (map[string][]string, error) {
	byDate := map[string][]string{}

	for _, c := range f.Calendars {
		start, err := time.ParseInLocation(gtfsDateLayout, c.StartDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parsing start_date of service '%s': %w", c.ServiceID, err)
		}
		end, err := time.ParseInLocation(gtfsDateLayout, c.EndDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parsing end_date of service '%s': %w", c.ServiceID, err)
		}

		for t := start; !t.After(end); t = t.AddDate(0, 0, 1) {
			if c.Weekday&(1<<t.Weekday()) == 0 {
				continue
			}
			date := t.Format(DateLayout)
			byDate[date] = append(byDate[date], c.ServiceID)
		}
	}

	for _, cd := range f.CalendarDates {
		t, err := time.ParseInLocation(gtfsDateLayout, cd.Date, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parsing exception date of service '%s': %w", cd.ServiceID, err)
		}
		date := t.Format(DateLayout)

		switch cd.ExceptionType {
		case model.ServiceAdded:
			if !containsService(byDate[date], cd.ServiceID) {
				byDate[date] = append(byDate[date], cd.ServiceID)
			}
		case model.ServiceRemoved:
			services, removed := removeService(byDate[date], cd.ServiceID)
			if !removed {
				f.logger.Warn("removal exception for service not scheduled on date",
					"service_id", cd.ServiceID,
					"date", date)
				continue
			}
			byDate[date] = services
		}
	}

	return byDate, nil
}

func containsService(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeService(ids []string, id string) ([]string, bool) {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...), true
		}
	}
	return ids, false
}
