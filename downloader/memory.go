package downloader

import (
	"context"
	"sync"
	"time"
)

// Memory keeps fetched feeds in process memory. The default for
// scrapers, where one feed serves a whole batch run. TimeNow is
// swappable for tests.
type Memory struct {
	mu      sync.Mutex
	records map[string]memRecord

	TimeNow func() time.Time
}

type memRecord struct {
	body        []byte
	retrievedAt time.Time
}

func NewMemory() *Memory {
	return &Memory{
		records: map[string]memRecord{},
		TimeNow: time.Now,
	}
}

func (d *Memory) Get(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if options.Cache {
		record, found := d.records[url]
		if found && d.TimeNow().Sub(record.retrievedAt) < options.CacheTTL {
			return record.body, nil
		}
	}

	body, err := HTTPGet(ctx, url, headers, options)
	if err != nil {
		return nil, err
	}
	if options.Cache {
		d.records[url] = memRecord{body: body, retrievedAt: d.TimeNow()}
	}

	return body, nil
}
