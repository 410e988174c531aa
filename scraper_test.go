package gtfsprep

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opentransit.dev/gtfsprep/config"
	"opentransit.dev/gtfsprep/routeconfig"
	"opentransit.dev/gtfsprep/storage"
	"opentransit.dev/gtfsprep/testutil"
	"opentransit.dev/gtfsprep/timetable"
	"opentransit.dev/gtfsprep/uploader"
)

// feedHost serves zipped feeds over HTTP and records every path
// requested, so tests can tell how often the scraper hit the network.
type feedHost struct {
	feeds    map[string][]byte
	requests []string
	srv      *httptest.Server
}

func newFeedHost() *feedHost {
	h := &feedHost{feeds: map[string][]byte{}}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.requests = append(h.requests, r.URL.Path)
		body, ok := h.feeds[r.URL.Path]
		if !ok {
			http.Error(w, "no such feed", http.StatusNotFound)
			return
		}
		w.Write(body)
	}))
	return h
}

// nextbusHost fakes the NextBus publicJSONFeed API. routeList and
// routeConfig hold canned response bodies, the latter keyed by route
// tag.
type nextbusHost struct {
	routeList   string
	routeConfig map[string]string
	requests    []string
	srv         *httptest.Server
}

func newNextbusHost() *nextbusHost {
	h := &nextbusHost{routeConfig: map[string]string{}}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		command := r.URL.Query().Get("command")
		tag := r.URL.Query().Get("r")

		entry := command
		if tag != "" {
			entry += " " + tag
		}
		h.requests = append(h.requests, entry)

		switch command {
		case "routeList":
			w.Write([]byte(h.routeList))
		case "routeConfig":
			w.Write([]byte(h.routeConfig[tag]))
		default:
			http.Error(w, "unknown command", http.StatusBadRequest)
		}
	}))
	return h
}

// A small but complete feed: one route with trips in both directions
// on a weekday service, a second trip-less route, and an extra
// service added by exception on the Saturday after the calendar ends.
func feedFixture() map[string][]string {
	return map[string][]string{
		"agency.txt": {
			"agency_timezone,agency_name,agency_url",
			"America/Los_Angeles,Muni,https://www.sfmta.com",
		},
		"routes.txt": {
			"route_id,route_short_name,route_long_name,route_type",
			"rt1,1,California,3",
			"rt2,2,,3",
		},
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,start_date,end_date",
			"svcA,1,1,1,1,1,20190107,20190111",
		},
		"calendar_dates.txt": {
			"service_id,date,exception_type",
			"svcB,20190112,1",
		},
		"trips.txt": {
			"route_id,service_id,trip_id,direction_id,shape_id",
			"rt1,svcA,t1,0,shp0",
			"rt1,svcA,t2,1,shp1",
			"rt1,svcB,t3,0,shp0",
		},
		"stops.txt": {
			"stop_id,stop_name,stop_lat,stop_lon",
			"sA,First St,37.7,-122.4",
			"sB,Third St,37.703,-122.4",
		},
		"stop_times.txt": {
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
			"t1,08:00:00,08:00:00,sA,1",
			"t1,08:05:00,08:06:00,sB,2",
			"t2,09:00:00,09:00:00,sB,1",
			"t2,09:05:00,09:05:00,sA,2",
			"t3,10:00:00,10:00:00,sA,1",
			"t3,10:05:00,10:05:00,sB,2",
		},
		"shapes.txt": {
			"shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence",
			"shp0,37.7,-122.4,1",
			"shp0,37.701,-122.4,2",
			"shp0,37.702,-122.4,3",
			"shp0,37.703,-122.4,4",
			"shp1,37.703,-122.4,1",
			"shp1,37.702,-122.4,2",
			"shp1,37.701,-122.4,3",
			"shp1,37.7,-122.4,4",
		},
	}
}

func testConfig(feedURL string) *config.Config {
	return &config.Config{
		DataDir: "data",
		Agencies: []config.Agency{
			{
				ID:               "muni",
				GtfsURL:          feedURL,
				TimezoneID:       "America/Los_Angeles",
				Provider:         config.ProviderDefault,
				RouteIDGtfsField: "route_id",
				StopIDGtfsField:  "stop_id",
			},
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScraperSaveRoutes(t *testing.T) {
	server := newFeedHost()
	defer server.srv.Close()
	server.feeds["/muni.zip"] = testutil.BuildZip(t, feedFixture())

	store := storage.NewMemoryStorage()
	s := NewScraper(testConfig(server.srv.URL+"/muni.zip"), store, discardLogger())

	require.NoError(t, s.SaveRoutes(context.Background(), "muni"))

	body, err := store.GetDocument(routeconfig.StorageKey("muni"))
	require.NoError(t, err)
	doc, err := routeconfig.Parse(body)
	require.NoError(t, err)

	require.Len(t, doc.Routes, 2)

	r1 := doc.Routes[0]
	assert.Equal(t, "rt1", r1.ID)
	assert.Equal(t, "1-California", r1.Title)
	assert.Equal(t, 3, r1.Type)
	assert.Equal(t, "FFFFFF", r1.Color)
	assert.Equal(t, "000000", r1.TextColor)
	assert.Equal(t, "rt1", r1.GtfsRouteID)
	assert.Nil(t, r1.SortOrder)
	assert.Equal(t, map[string]routeconfig.StopInfo{
		"sA": {ID: "sA", Lat: 37.7, Lon: -122.4, Title: "First St"},
		"sB": {ID: "sB", Lat: 37.703, Lon: -122.4, Title: "Third St"},
	}, r1.Stops)

	require.Len(t, r1.Directions, 2)

	d0 := r1.Directions[0]
	assert.Equal(t, "0", d0.ID)
	assert.Equal(t, "To Third St", d0.Title)
	assert.Equal(t, "shp0", d0.GtfsShapeID)
	assert.Equal(t, "0", d0.GtfsDirectionID)
	assert.Equal(t, []string{"sA", "sB"}, d0.Stops)
	assert.Equal(t, 333, d0.Distance)
	assert.Equal(t, map[string]routeconfig.StopGeometry{
		"sA": {Distance: 0, AfterIndex: 0, Offset: 0},
		"sB": {Distance: 333, AfterIndex: 2, Offset: 0},
	}, d0.StopGeometry)
	require.Len(t, d0.Coords, 4)
	assert.Equal(t, routeconfig.Coord{Lat: 37.7, Lon: -122.4}, d0.Coords[0])

	d1 := r1.Directions[1]
	assert.Equal(t, "1", d1.ID)
	assert.Equal(t, "To First St", d1.Title)
	assert.Equal(t, "shp1", d1.GtfsShapeID)
	assert.Equal(t, []string{"sB", "sA"}, d1.Stops)

	r2 := doc.Routes[1]
	assert.Equal(t, "rt2", r2.ID)
	assert.Equal(t, "2", r2.Title)
	assert.Empty(t, r2.Directions)
	assert.Empty(t, r2.Stops)
}

func TestScraperSaveRoutesPublishes(t *testing.T) {
	server := newFeedHost()
	defer server.srv.Close()
	server.feeds["/muni.zip"] = testutil.BuildZip(t, feedFixture())

	store := storage.NewMemoryStorage()
	up := uploader.NewMemoryUploader()
	s := NewScraper(testConfig(server.srv.URL+"/muni.zip"), store, discardLogger())
	s.Uploader = up

	require.NoError(t, s.SaveRoutes(context.Background(), "muni"))

	key := routeconfig.StorageKey("muni")
	obj, found := up.Objects[key+".gz"]
	require.True(t, found)
	assert.Equal(t, uploader.DocumentOptions(), obj.Options)
	assert.Len(t, up.Objects, 1)

	zr, err := gzip.NewReader(bytes.NewReader(obj.Body))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, store.Documents[key], plain)
}

func TestScraperSaveTimetables(t *testing.T) {
	server := newFeedHost()
	defer server.srv.Close()
	server.feeds["/muni.zip"] = testutil.BuildZip(t, feedFixture())

	store := storage.NewMemoryStorage()
	s := NewScraper(testConfig(server.srv.URL+"/muni.zip"), store, discardLogger())

	require.NoError(t, s.SaveTimetables(context.Background(), "muni"))

	// Weekday and Saturday timetables for rt1, plus the date keys
	// index. The trip-less rt2 produces nothing.
	assert.Len(t, store.Documents, 3)

	body, err := store.GetDocument(timetable.DateKeysStorageKey("muni"))
	require.NoError(t, err)
	index, err := timetable.ParseDateKeys(body)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"2019-01-07": "2019-01-07",
		"2019-01-08": "2019-01-07",
		"2019-01-09": "2019-01-07",
		"2019-01-10": "2019-01-07",
		"2019-01-11": "2019-01-07",
		"2019-01-12": "2019-01-12",
	}, index.DateKeys)

	body, err = store.GetDocument(timetable.StorageKey("muni", "rt1", "2019-01-07"))
	require.NoError(t, err)
	weekday, err := timetable.ParseDocument(body)
	require.NoError(t, err)
	assert.Equal(t, "muni", weekday.Agency)
	assert.Equal(t, "rt1", weekday.RouteID)
	assert.Equal(t, "2019-01-07", weekday.DateKey)
	assert.Equal(t, "America/Los_Angeles", weekday.TimezoneID)
	assert.Equal(t, []string{"svcA"}, weekday.ServiceIDs)
	assert.Equal(t, timetable.Arrivals{
		"0": {
			"sA": {{T: 28800, I: 1}},
			"sB": {{T: 29100, I: 1, E: 29160}},
		},
		"1": {
			"sB": {{T: 32400, I: 2}},
			"sA": {{T: 32700, I: 2}},
		},
	}, weekday.Arrivals)

	body, err = store.GetDocument(timetable.StorageKey("muni", "rt1", "2019-01-12"))
	require.NoError(t, err)
	saturday, err := timetable.ParseDocument(body)
	require.NoError(t, err)
	assert.Equal(t, []string{"svcB"}, saturday.ServiceIDs)
	assert.Equal(t, timetable.Arrivals{
		"0": {
			"sA": {{T: 36000, I: 3}},
			"sB": {{T: 36300, I: 3}},
		},
		"1": {},
	}, saturday.Arrivals)

	_, err = store.GetDocument(timetable.StorageKey("muni", "rt2", "2019-01-07"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestScraperSaveTimetablesKeepsOldDateKeys(t *testing.T) {
	server := newFeedHost()
	defer server.srv.Close()
	server.feeds["/muni.zip"] = testutil.BuildZip(t, feedFixture())

	store := storage.NewMemoryStorage()

	// A previous run covered a week this feed no longer mentions.
	old := &timetable.DateKeysDocument{
		Version: timetable.DefaultVersion,
		DateKeys: map[string]string{
			"2018-12-31": "2018-12-24",
		},
	}
	body, err := old.Marshal()
	require.NoError(t, err)
	require.NoError(t, store.PutDocument(timetable.DateKeysStorageKey("muni"), body))

	s := NewScraper(testConfig(server.srv.URL+"/muni.zip"), store, discardLogger())
	require.NoError(t, s.SaveTimetables(context.Background(), "muni"))

	body, err = store.GetDocument(timetable.DateKeysStorageKey("muni"))
	require.NoError(t, err)
	index, err := timetable.ParseDateKeys(body)
	require.NoError(t, err)

	assert.Equal(t, "2018-12-24", index.DateKeys["2018-12-31"])
	assert.Equal(t, "2019-01-07", index.DateKeys["2019-01-11"])
	assert.Len(t, index.DateKeys, 7)
}

func TestScraperFetchesFeedOnce(t *testing.T) {
	server := newFeedHost()
	defer server.srv.Close()
	server.feeds["/muni.zip"] = testutil.BuildZip(t, feedFixture())

	store := storage.NewMemoryStorage()
	s := NewScraper(testConfig(server.srv.URL+"/muni.zip"), store, discardLogger())

	require.NoError(t, s.SaveRoutes(context.Background(), "muni"))
	require.NoError(t, s.SaveTimetables(context.Background(), "muni"))

	// The second call is served from the downloader's cache.
	assert.Equal(t, []string{"/muni.zip"}, server.requests)
}

func TestScraperUnknownAgency(t *testing.T) {
	store := storage.NewMemoryStorage()
	s := NewScraper(testConfig("http://example.com/feed.zip"), store, discardLogger())

	err := s.SaveRoutes(context.Background(), "bart")
	assert.ErrorContains(t, err, "agency bart is not configured")

	err = s.SaveTimetables(context.Background(), "bart")
	assert.ErrorContains(t, err, "agency bart is not configured")
}

func TestScraperNextbusProvider(t *testing.T) {
	files := feedFixture()
	files["routes.txt"] = []string{
		"route_id,route_short_name,route_long_name,route_type",
		"1-CAL,1,California,3",
		"25,25,Bryant,3",
	}
	files["trips.txt"] = []string{
		"route_id,service_id,trip_id,direction_id,shape_id",
		"1-CAL,svcA,t1,0,shp0",
		"1-CAL,svcA,t2,1,shp1",
		"1-CAL,svcB,t3,0,shp0",
	}

	server := newFeedHost()
	defer server.srv.Close()
	server.feeds["/sf.zip"] = testutil.BuildZip(t, files)

	nb := newNextbusHost()
	defer nb.srv.Close()
	nb.routeList = `{"route":[{"tag":"25","title":"25-Bryant Express"},{"tag":"1_CAL","title":"1-California Cable"}]}`
	nb.routeConfig["1_CAL"] = `{"route":{"tag":"1_CAL","title":"1-California Cable"}}`
	nb.routeConfig["25"] = `{"Error":{"content":"Could not get route config for agency tag sf-muni"}}`

	cfg := testConfig(server.srv.URL + "/sf.zip")
	cfg.Agencies[0].Provider = config.ProviderNextbus
	cfg.Agencies[0].NextbusID = "sf-muni"

	store := storage.NewMemoryStorage()
	s := NewScraper(cfg, store, discardLogger())
	s.Nextbus.BaseURL = nb.srv.URL

	require.NoError(t, s.SaveRoutes(context.Background(), "muni"))

	body, err := store.GetDocument(routeconfig.StorageKey("muni"))
	require.NoError(t, err)
	doc, err := routeconfig.Parse(body)
	require.NoError(t, err)

	require.Len(t, doc.Routes, 2)

	// The NextBus route list ordering puts 25 first. Its title lookup
	// failed, so the feed's naming stands in.
	r25 := doc.Routes[0]
	assert.Equal(t, "25", r25.ID)
	assert.Equal(t, "25-Bryant", r25.Title)
	require.NotNil(t, r25.SortOrder)
	assert.Equal(t, 0, *r25.SortOrder)

	rCal := doc.Routes[1]
	assert.Equal(t, "1-CAL", rCal.ID)
	assert.Equal(t, "1-California Cable", rCal.Title)
	require.NotNil(t, rCal.SortOrder)
	assert.Equal(t, 1, *rCal.SortOrder)

	assert.Contains(t, nb.requests, "routeList")
	assert.Contains(t, nb.requests, "routeConfig 1_CAL")
	assert.Contains(t, nb.requests, "routeConfig 25")
}
