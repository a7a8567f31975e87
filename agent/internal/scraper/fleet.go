package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rackwatch/rackwatch/agent/internal/config"
	"github.com/rackwatch/rackwatch/pkg/types"
)

// SourceName is reported in FleetSnapshot.Source.
const SourceName = "prometheus"

// Fleet scrapes every configured cabinet exporter into one FleetSnapshot.
type Fleet struct {
	scrapers []*cabinetScraper

	now   func() time.Time
	newID func() string
}

// New builds an HTTP client per cabinet and returns the fleet source.
func New(cabs []config.Cabinet) (*Fleet, error) {
	f := &Fleet{now: time.Now, newID: uuid.NewString}
	for _, cab := range cabs {
		client, err := buildHTTPClient(cab)
		if err != nil {
			return nil, fmt.Errorf("scraper %q: build http client: %w", cab.ID, err)
		}
		f.scrapers = append(f.scrapers, &cabinetScraper{cab: cab, client: client})
	}
	return f, nil
}

// Snapshot scrapes all cabinets concurrently. If any cabinet fails the whole
// cycle fails; a partial fleet is never returned.
func (f *Fleet) Snapshot(ctx context.Context) (*types.FleetSnapshot, error) {
	encs := make([]types.Enclosure, len(f.scrapers))
	errs := make([]error, len(f.scrapers))

	var wg sync.WaitGroup
	for i, s := range f.scrapers {
		wg.Add(1)
		go func(i int, s *cabinetScraper) {
			defer wg.Done()
			encs[i], errs[i] = s.Scrape(ctx)
		}(i, s)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			id := f.scrapers[i].cab.ID
			slog.Warn("scraper: cabinet scrape failed", "cabinet", id, "err", err)
			return nil, fmt.Errorf("scraper %q: %w", id, err)
		}
	}

	return &types.FleetSnapshot{
		ID:         f.newID(),
		Source:     SourceName,
		Timestamp:  f.now().UTC(),
		Enclosures: encs,
	}, nil
}
