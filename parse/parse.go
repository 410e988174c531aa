package parse

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"

	"github.com/gocarina/gocsv"
	"github.com/spkg/bom"

	"opentransit.dev/gtfsprep/feed"
)

var (
	// Everything the pipeline reads out of a feed archive. Other
	// files, feed_info.txt included, are ignored: nothing in the
	// derived documents consumes them.
	requiredFiles = []string{
		"agency.txt",
		"routes.txt",
		"stops.txt",
		"trips.txt",
		"stop_times.txt",
		"shapes.txt",
	}

	// Optional individually, but a feed without either has no
	// service definitions at all.
	calendarFiles = []string{
		"calendar.txt",
		"calendar_dates.txt",
	}
)

// ParseStatic reads a zipped GTFS feed into writer and finalizes it.
func ParseStatic(writer *feed.Feed, buf []byte) error {
	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return fmt.Errorf("unzipping: %w", err)
	}

	wanted := map[string]bool{}
	for _, name := range requiredFiles {
		wanted[name] = true
	}
	for _, name := range calendarFiles {
		wanted[name] = true
	}

	file := map[string]io.ReadCloser{}
	defer func() {
		for _, rc := range file {
			rc.Close()
		}
	}()

	for _, f := range r.File {
		// Some agencies zip up a directory instead of the files
		// themselves. Match on basename so those still load.
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Base(f.Name)
		if !wanted[name] {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", f.Name, err)
		}
		if prev := file[name]; prev != nil {
			prev.Close()
		}
		file[name] = rc
	}

	for _, name := range requiredFiles {
		if file[name] == nil {
			return fmt.Errorf("missing %s", name)
		}
	}
	if file["calendar.txt"] == nil && file["calendar_dates.txt"] == nil {
		return fmt.Errorf("missing calendar.txt and calendar_dates.txt")
	}

	// Feeds get quoting wrong often enough that the lazy reader is
	// the only safe choice. The BOM reader strips byte order marks.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})

	agencies, timezone, err := parseAgencies(writer, file["agency.txt"])
	if err != nil {
		return fmt.Errorf("parsing agency.txt: %w", err)
	}
	writer.Timezone = timezone

	routes, err := parseRoutes(writer, file["routes.txt"], agencies)
	if err != nil {
		return fmt.Errorf("parsing routes.txt: %w", err)
	}

	// Service definitions can come from calendar.txt, from
	// calendar_dates.txt, or both.
	services := map[string]bool{}
	if file["calendar.txt"] != nil {
		services, err = parseCalendar(writer, file["calendar.txt"])
		if err != nil {
			return fmt.Errorf("parsing calendar.txt: %w", err)
		}
	}
	if file["calendar_dates.txt"] != nil {
		extra, err := parseCalendarDates(writer, file["calendar_dates.txt"])
		if err != nil {
			return fmt.Errorf("parsing calendar_dates.txt: %w", err)
		}
		for serviceID := range extra {
			services[serviceID] = true
		}
	}

	stops, err := parseStops(writer, file["stops.txt"])
	if err != nil {
		return fmt.Errorf("parsing stops.txt: %w", err)
	}

	trips, err := parseTrips(writer, file["trips.txt"], routes, services)
	if err != nil {
		return fmt.Errorf("parsing trips.txt: %w", err)
	}

	err = parseStopTimes(writer, file["stop_times.txt"], trips, stops)
	if err != nil {
		return fmt.Errorf("parsing stop_times.txt: %w", err)
	}

	// Trips may reference shapes missing from shapes.txt. That only
	// becomes an error if a route using such a trip is processed.
	err = parseShapes(writer, file["shapes.txt"])
	if err != nil {
		return fmt.Errorf("parsing shapes.txt: %w", err)
	}

	writer.Finalize()

	return nil
}
