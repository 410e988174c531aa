// Package nextbus looks up route titles and ordering from the NextBus
// public JSON feed. Agencies that predate their GTFS feeds often kept
// their rider-facing route names and preferred route ordering in
// NextBus, so for those agencies the scraper overlays this data on top
// of what the feed provides.
package nextbus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"opentransit.dev/gtfsprep/downloader"
)

const DefaultBaseURL = "https://retro.umoiq.com/service/publicJSONFeed"

type Client struct {
	BaseURL    string
	Downloader downloader.Downloader
}

func NewClient(dl downloader.Downloader) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		Downloader: dl,
	}
}

// A route as NextBus describes it.
type Route struct {
	Tag   string `json:"tag"`
	Title string `json:"title"`
}

type apiError struct {
	Content string `json:"content"`
}

type feedResponse struct {
	Route json.RawMessage `json:"route"`
	Error *apiError       `json:"Error"`
}

// RouteList returns the agency's routes in the order the agency
// publishes them.
func (c *Client) RouteList(ctx context.Context, nextbusAgencyID string) ([]Route, error) {
	params := url.Values{}
	params.Set("command", "routeList")
	params.Set("a", nextbusAgencyID)

	routes, err := c.get(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetching route list for %s: %w", nextbusAgencyID, err)
	}

	return routes, nil
}

// RouteTitle returns the published title of a single route.
func (c *Client) RouteTitle(ctx context.Context, nextbusAgencyID string, routeTag string) (string, error) {
	params := url.Values{}
	params.Set("command", "routeConfig")
	params.Set("a", nextbusAgencyID)
	params.Set("r", routeTag)
	params.Set("terse", "true")

	routes, err := c.get(ctx, params)
	if err != nil {
		return "", fmt.Errorf("fetching route config for %s/%s: %w", nextbusAgencyID, routeTag, err)
	}
	if len(routes) == 0 {
		return "", fmt.Errorf("no route config for %s/%s", nextbusAgencyID, routeTag)
	}

	return routes[0].Title, nil
}

func (c *Client) get(ctx context.Context, params url.Values) ([]Route, error) {
	body, err := c.Downloader.Get(
		ctx,
		c.BaseURL+"?"+params.Encode(),
		nil,
		downloader.GetOptions{
			Timeout: 30 * time.Second,
		},
	)
	if err != nil {
		return nil, err
	}

	var resp feedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshalling response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("api error: %s", resp.Error.Content)
	}
	if len(resp.Route) == 0 {
		return nil, nil
	}

	// The feed returns a list of routes, except when there's exactly
	// one, which comes back as a bare object.
	var routes []Route
	if err := json.Unmarshal(resp.Route, &routes); err == nil {
		return routes, nil
	}

	var route Route
	if err := json.Unmarshal(resp.Route, &route); err != nil {
		return nil, fmt.Errorf("unmarshalling routes: %w", err)
	}

	return []Route{route}, nil
}
