package testutil

// Helpers for building zipped feed fixtures in tests.

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"opentransit.dev/gtfsprep/feed"
	"opentransit.dev/gtfsprep/parse"
)

// Stand-ins for the files a test doesn't care about. Mostly just
// headers; agency.txt needs a record to pass validation.
func dummyFiles() map[string][]string {
	return map[string][]string{
		"agency.txt": {
			"agency_timezone,agency_name,agency_url",
			"UTC,Test Agency,https://transit.example.com",
		},
		"routes.txt":     {"route_id"},
		"trips.txt":      {"trip_id"},
		"stops.txt":      {"stop_id"},
		"stop_times.txt": {"stop_id"},
		"shapes.txt":     {"shape_id"},
	}
}

// BuildFeed zips the given files and parses them into a Feed, filling
// in dummies for whatever files the caller leaves out.
func BuildFeed(t testing.TB, files map[string][]string, opts ...feed.Options) *feed.Feed {
	for name, dummy := range dummyFiles() {
		if files[name] == nil {
			files[name] = dummy
		}
	}
	if files["calendar.txt"] == nil && files["calendar_dates.txt"] == nil {
		files["calendar.txt"] = []string{"service_id"}
	}

	var o feed.Options
	if len(opts) > 0 {
		o = opts[0]
	}

	f := feed.New(o)
	require.NoError(t, parse.ParseStatic(f, BuildZip(t, files)))

	return f
}

// BuildZip writes the given files into an in-memory zip archive, one
// line per string.
func BuildZip(t testing.TB, files map[string][]string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, lines := range files {
		entry, err := zw.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(strings.Join(lines, "\n")))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	return buf.Bytes()
}
