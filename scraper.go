package gtfsprep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"opentransit.dev/gtfsprep/config"
	"opentransit.dev/gtfsprep/downloader"
	"opentransit.dev/gtfsprep/feed"
	"opentransit.dev/gtfsprep/geometry"
	"opentransit.dev/gtfsprep/nextbus"
	"opentransit.dev/gtfsprep/parse"
	"opentransit.dev/gtfsprep/routeconfig"
	"opentransit.dev/gtfsprep/storage"
	"opentransit.dev/gtfsprep/timetable"
	"opentransit.dev/gtfsprep/uploader"
)

const (
	DefaultFeedTimeout  = 60 * time.Second
	DefaultFeedMaxSize  = 800 << 20 // 800 MB
	DefaultFeedCacheTTL = 12 * time.Hour
)

// Scraper precomputes route and timetable documents for configured
// agencies, persists them in storage, and optionally publishes them
// to an object store.
type Scraper struct {
	FeedTimeout  time.Duration
	FeedMaxSize  int
	FeedCacheTTL time.Duration

	Downloader downloader.Downloader
	Uploader   uploader.Uploader // nil disables publishing
	Nextbus    *nextbus.Client

	config  *config.Config
	storage storage.Storage
	logger  *slog.Logger
}

// Creates a new Scraper on top of the given storage.
//
// By default feeds are fetched with an in memory downloader. Callers
// that want downloads cached across runs should set Downloader to a
// filesystem instance.
func NewScraper(cfg *config.Config, s storage.Storage, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}

	dl := downloader.NewMemory()

	return &Scraper{
		FeedTimeout:  DefaultFeedTimeout,
		FeedMaxSize:  DefaultFeedMaxSize,
		FeedCacheTTL: DefaultFeedCacheTTL,

		Downloader: dl,
		Nextbus:    nextbus.NewClient(dl),

		config:  cfg,
		storage: s,
		logger:  logger,
	}
}

// SaveRoutes builds the route config document for one agency and
// saves it.
func (s *Scraper) SaveRoutes(ctx context.Context, agencyID string) error {
	agency, _, routes, err := s.prepare(ctx, agencyID)
	if err != nil {
		return err
	}

	doc := &routeconfig.Document{
		Version: routeconfig.DefaultVersion,
		Routes:  routes,
	}
	body, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("marshalling route config: %w", err)
	}

	if err := s.saveDocument(ctx, routeconfig.StorageKey(agency.ID), body); err != nil {
		return err
	}

	s.logger.Info("saved routes", "agency", agency.ID, "routes", len(routes))

	return nil
}

// SaveTimetables builds the timetable documents and the date key
// index for one agency and saves them.
func (s *Scraper) SaveTimetables(ctx context.Context, agencyID string) error {
	agency, f, routes, err := s.prepare(ctx, agencyID)
	if err != nil {
		return err
	}

	servicesByDate, err := f.ServicesByDate()
	if err != nil {
		return fmt.Errorf("computing active services: %w", err)
	}

	groups, dateKeys := timetable.AssignDateKeys(servicesByDate)

	builder := timetable.NewBuilder(f, agency, s.logger)
	count := 0
	for i := range routes {
		docs := builder.BuildRoute(&routes[i], groups)
		for j := range docs {
			doc := &docs[j]
			body, err := doc.Marshal()
			if err != nil {
				return fmt.Errorf("marshalling timetable for route %s: %w", doc.RouteID, err)
			}
			key := timetable.StorageKey(agency.ID, doc.RouteID, doc.DateKey)
			if err := s.saveDocument(ctx, key, body); err != nil {
				return err
			}
			count++
		}
	}

	// The index goes last so it never references a timetable that
	// isn't saved yet.
	index := timetable.NewDateKeysDocument(s.previousDateKeys(agency.ID), dateKeys)
	body, err := index.Marshal()
	if err != nil {
		return fmt.Errorf("marshalling date keys: %w", err)
	}
	if err := s.saveDocument(ctx, timetable.DateKeysStorageKey(agency.ID), body); err != nil {
		return err
	}

	s.logger.Info("saved timetables",
		"agency", agency.ID,
		"documents", count,
		"date_keys", len(dateKeys))

	return nil
}

// Resolves the agency, loads its feed and builds its route records.
func (s *Scraper) prepare(ctx context.Context, agencyID string) (*config.Agency, *feed.Feed, []routeconfig.Route, error) {
	agency, found := s.config.AgencyByID(agencyID)
	if !found {
		return nil, nil, nil, fmt.Errorf("agency %s is not configured", agencyID)
	}

	f, err := s.loadFeed(ctx, agency)
	if err != nil {
		return nil, nil, nil, err
	}

	builder := routeconfig.NewBuilder(
		f,
		agency,
		s.externalNames(ctx, agency),
		geometry.DefaultOffsets(),
		s.logger,
	)
	routes, err := builder.Build()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("building routes for %s: %w", agency.ID, err)
	}

	return agency, f, routes, nil
}

func (s *Scraper) loadFeed(ctx context.Context, agency *config.Agency) (*feed.Feed, error) {
	s.logger.Info("downloading feed", "agency", agency.ID, "url", agency.GtfsURL)

	body, err := s.Downloader.Get(
		ctx,
		agency.GtfsURL,
		nil,
		downloader.GetOptions{
			Cache:    true,
			CacheTTL: s.FeedCacheTTL,
			Timeout:  s.FeedTimeout,
			MaxSize:  s.FeedMaxSize,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("downloading feed for %s: %w", agency.ID, err)
	}

	f := feed.New(feed.Options{
		StopIDField: agency.StopIDGtfsField,
		Logger:      s.logger,
	})
	if err := parse.ParseStatic(f, body); err != nil {
		return nil, fmt.Errorf("parsing feed for %s: %w", agency.ID, err)
	}

	return f, nil
}

// Writes a document to storage and, when an uploader is configured,
// publishes a gzipped copy under the same key plus a ".gz" suffix.
func (s *Scraper) saveDocument(ctx context.Context, key string, body []byte) error {
	if err := s.storage.PutDocument(key, body); err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}

	if s.Uploader == nil {
		return nil
	}

	compressed, err := uploader.Compress(body)
	if err != nil {
		return fmt.Errorf("compressing %s: %w", key, err)
	}

	if err := s.Uploader.Put(ctx, key+".gz", compressed, uploader.DocumentOptions()); err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}

	return nil
}

// Date keys saved by a previous run, if any. Carrying them forward
// keeps old timetable documents resolvable after the feed's service
// definitions change.
func (s *Scraper) previousDateKeys(agencyID string) *timetable.DateKeysDocument {
	body, err := s.storage.GetDocument(timetable.DateKeysStorageKey(agencyID))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("reading previous date keys", "agency", agencyID, "error", err.Error())
		}
		return nil
	}

	previous, err := timetable.ParseDateKeys(body)
	if err != nil {
		s.logger.Warn("parsing previous date keys", "agency", agencyID, "error", err.Error())
		return nil
	}

	return previous
}

// Route naming from NextBus, for agencies still configured with the
// nextbus provider. Returns nil for everyone else.
func (s *Scraper) externalNames(ctx context.Context, agency *config.Agency) routeconfig.ExternalNames {
	if agency.Provider != config.ProviderNextbus {
		return nil
	}

	names := &nextbusNames{
		ctx:      ctx,
		client:   s.Nextbus,
		agencyID: agency.NextbusID,
		order:    map[string]int{},
		logger:   s.logger.With("agency", agency.ID),
	}

	routes, err := s.Nextbus.RouteList(ctx, agency.NextbusID)
	if err != nil {
		s.logger.Warn("nextbus route list lookup failed", "agency", agency.ID, "error", err.Error())
		return names
	}
	for i, r := range routes {
		names.order[r.Tag] = i
	}

	return names
}

type nextbusNames struct {
	ctx      context.Context
	client   *nextbus.Client
	agencyID string
	order    map[string]int
	logger   *slog.Logger
}

// NextBus tags use underscores where feeds use hyphens.
func nextbusTag(routeID string) string {
	return strings.ReplaceAll(routeID, "-", "_")
}

func (n *nextbusNames) RouteTitle(routeID string) (string, bool) {
	title, err := n.client.RouteTitle(n.ctx, n.agencyID, nextbusTag(routeID))
	if err != nil {
		n.logger.Warn("nextbus title lookup failed", "route_id", routeID, "error", err.Error())
		return "", false
	}
	return title, true
}

func (n *nextbusNames) RouteOrder(routeID string) (int, bool) {
	pos, found := n.order[nextbusTag(routeID)]
	return pos, found
}
