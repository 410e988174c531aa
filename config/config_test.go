package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opentransit.dev/gtfsprep/config"
)

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(`
data_dir: /var/lib/gtfsprep
s3_bucket: opentransit-precomputed
agencies:
  - id: muni
    gtfs_url: https://example.com/muni.zip
    gtfs_agency_id: SFMTA
    timezone_id: America/Los_Angeles
    provider: nextbus
    nextbus_id: sf-muni
    route_id_gtfs_field: route_short_name
    stop_id_gtfs_field: stop_code
    default_directions:
      "0":
        title_prefix: Outbound
      "1":
        title_prefix: Inbound
    custom_directions:
      J:
        - id: J_0_church
          title: Outbound to Balboa Park via Church
          gtfs_direction_id: "0"
          included_stop_ids: ["6180"]
          excluded_stop_ids: ["6190"]
  - id: portland-sc
    gtfs_url: https://example.com/portland-sc.zip
    timezone_id: America/Los_Angeles
`))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/gtfsprep", cfg.DataDir)
	assert.Equal(t, "opentransit-precomputed", cfg.S3Bucket)
	require.Len(t, cfg.Agencies, 2)

	muni := cfg.Agencies[0]
	assert.Equal(t, "muni", muni.ID)
	assert.Equal(t, "https://example.com/muni.zip", muni.GtfsURL)
	assert.Equal(t, "SFMTA", muni.GtfsAgencyID)
	assert.Equal(t, "America/Los_Angeles", muni.TimezoneID)
	assert.Equal(t, config.ProviderNextbus, muni.Provider)
	assert.Equal(t, "sf-muni", muni.NextbusID)
	assert.Equal(t, "route_short_name", muni.RouteIDGtfsField)
	assert.Equal(t, "stop_code", muni.StopIDGtfsField)
	assert.Equal(t, "Outbound", muni.DefaultDirections["0"].TitlePrefix)
	assert.Equal(t, "Inbound", muni.DefaultDirections["1"].TitlePrefix)
	require.Len(t, muni.CustomDirections["J"], 1)
	assert.Equal(t, config.CustomDirection{
		ID:              "J_0_church",
		Title:           "Outbound to Balboa Park via Church",
		GtfsDirectionID: "0",
		IncludedStopIDs: []string{"6180"},
		ExcludedStopIDs: []string{"6190"},
	}, muni.CustomDirections["J"][0])
}

func TestParseDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(`
agencies:
  - id: muni
    gtfs_url: https://example.com/muni.zip
    timezone_id: America/Los_Angeles
`))
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "", cfg.S3Bucket)

	muni := cfg.Agencies[0]
	assert.Equal(t, config.ProviderDefault, muni.Provider)
	assert.Equal(t, "muni", muni.NextbusID)
	assert.Equal(t, "route_id", muni.RouteIDGtfsField)
	assert.Equal(t, "stop_id", muni.StopIDGtfsField)
}

func TestParseRejectsBadConfigs(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
	}{
		{
			"not yaml",
			`{{{`,
		},
		{
			"no agencies",
			`data_dir: data`,
		},
		{
			"agency without id",
			`
agencies:
  - gtfs_url: https://example.com/muni.zip
    timezone_id: America/Los_Angeles`,
		},
		{
			"agency without gtfs_url",
			`
agencies:
  - id: muni
    timezone_id: America/Los_Angeles`,
		},
		{
			"malformed gtfs_url",
			`
agencies:
  - id: muni
    gtfs_url: not a url
    timezone_id: America/Los_Angeles`,
		},
		{
			"missing timezone_id",
			`
agencies:
  - id: muni
    gtfs_url: https://example.com/muni.zip`,
		},
		{
			"unknown timezone_id",
			`
agencies:
  - id: muni
    gtfs_url: https://example.com/muni.zip
    timezone_id: Mars/Olympus_Mons`,
		},
		{
			"unknown provider",
			`
agencies:
  - id: muni
    gtfs_url: https://example.com/muni.zip
    timezone_id: America/Los_Angeles
    provider: carrier_pigeon`,
		},
		{
			"unknown route id field",
			`
agencies:
  - id: muni
    gtfs_url: https://example.com/muni.zip
    timezone_id: America/Los_Angeles
    route_id_gtfs_field: route_long_name`,
		},
		{
			"custom direction without gtfs_direction_id",
			`
agencies:
  - id: muni
    gtfs_url: https://example.com/muni.zip
    timezone_id: America/Los_Angeles
    custom_directions:
      J:
        - id: J_0`,
		},
		{
			"custom direction with bad gtfs_direction_id",
			`
agencies:
  - id: muni
    gtfs_url: https://example.com/muni.zip
    timezone_id: America/Los_Angeles
    custom_directions:
      J:
        - id: J_0
          gtfs_direction_id: "2"`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
agencies:
  - id: muni
    gtfs_url: https://example.com/muni.zip
    timezone_id: America/Los_Angeles
`), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Agencies, 1)

	_, err = config.Load(filepath.Join(dir, "nope.yml"))
	assert.Error(t, err)
}

func TestAgencyByID(t *testing.T) {
	cfg, err := config.Parse([]byte(`
agencies:
  - id: muni
    gtfs_url: https://example.com/muni.zip
    timezone_id: America/Los_Angeles
  - id: portland-sc
    gtfs_url: https://example.com/portland-sc.zip
    timezone_id: America/Los_Angeles
`))
	require.NoError(t, err)

	agency, found := cfg.AgencyByID("portland-sc")
	require.True(t, found)
	assert.Equal(t, "portland-sc", agency.ID)

	_, found = cfg.AgencyByID("bart")
	assert.False(t, found)
}
