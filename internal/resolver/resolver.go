// Package resolver decides which freshly listed items are genuinely new for
// the configured channels.
package resolver

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"workshop_notifier/internal/ledger"
	"workshop_notifier/internal/model"
)

// Catalog is the slice of the catalog client the resolver needs.
type Catalog interface {
	LatestItems(ctx context.Context, appID int64) ([]int64, error)
}

const defaultFanOut = 4

// Resolver computes the per-run candidate set and establishes baselines for
// first-encountered (channel, app) pairs.
type Resolver struct {
	catalog Catalog
	log     *slog.Logger
	fanOut  int
}

// New creates a Resolver.
func New(catalog Catalog, log *slog.Logger) *Resolver {
	return &Resolver{catalog: catalog, log: log, fanOut: defaultFanOut}
}

// Resolve fetches the latest item ids for every distinct subscribed app and
// diffs them against the ledger. First encounters (absent or empty entries)
// are baselined in place with the full latest list and produce no candidates,
// so a newly added channel does not get spammed with historical items.
//
// Fetches for distinct apps run concurrently; all ledger mutation happens
// after the fetch phase, on this goroutine only.
func (r *Resolver) Resolve(ctx context.Context, l ledger.Ledger, channels []model.Channel) []int64 {
	apps := distinctApps(channels)

	latestByApp := make(map[int64][]int64, len(apps))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.fanOut)
	for _, appID := range apps {
		appID := appID
		g.Go(func() error {
			ids, err := r.catalog.LatestItems(gctx, appID)
			if err != nil {
				// Degrades to "no new items for this app this run".
				r.log.Warn("fetch latest items", "app_id", appID, "error", err)
				return nil
			}
			mu.Lock()
			latestByApp[appID] = ids
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	candidates := make(map[int64]struct{})
	for _, appID := range apps {
		latest := latestByApp[appID]
		for _, ch := range channels {
			if !ch.Subscribed(appID) {
				continue
			}
			entry := l.Entry(ch.Key, appID)
			if len(entry.IDs) == 0 {
				entry.IDs = slices.Clone(latest)
				if len(latest) > 0 {
					r.log.Info("baseline established", "channel", ch.Key[:8], "app_id", appID, "items", len(latest))
				}
				continue
			}
			for _, id := range latest {
				if !entry.Has(id) {
					candidates[id] = struct{}{}
				}
			}
		}
	}

	ids := make([]int64, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func distinctApps(channels []model.Channel) []int64 {
	seen := make(map[int64]struct{})
	var apps []int64
	for _, ch := range channels {
		for _, appID := range ch.Apps {
			if _, ok := seen[appID]; ok {
				continue
			}
			seen[appID] = struct{}{}
			apps = append(apps, appID)
		}
	}
	slices.Sort(apps)
	return apps
}
