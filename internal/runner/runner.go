// Package runner orchestrates a single notification run: load ledger,
// resolve novelty, fetch details, deliver, prune, persist.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"workshop_notifier/internal/delivery"
	"workshop_notifier/internal/ledger"
	"workshop_notifier/internal/model"
	"workshop_notifier/internal/resolver"
)

// Catalog is the full catalog client surface the pipeline needs.
type Catalog interface {
	LatestItems(ctx context.Context, appID int64) ([]int64, error)
	ItemDetails(ctx context.Context, ids []int64) (map[int64]model.Item, error)
	AuthorProfiles(ctx context.Context, ids []string) (map[string]model.Author, error)
	AppName(ctx context.Context, appID int64) (string, bool, error)
}

// Runner executes one batch run end to end.
type Runner struct {
	store    ledger.Store
	catalog  Catalog
	sender   delivery.Sender
	channels []model.Channel
	window   int
	log      *slog.Logger
}

// New creates a Runner. window is the fetch window N; the ledger retains
// 2N ids per entry after pruning.
func New(store ledger.Store, catalog Catalog, sender delivery.Sender, channels []model.Channel, window int, log *slog.Logger) *Runner {
	return &Runner{
		store:    store,
		catalog:  catalog,
		sender:   sender,
		channels: channels,
		window:   window,
		log:      log,
	}
}

// Run performs a single run. Only ledger load/save problems return an error;
// upstream fetch and delivery failures degrade to fewer notifications this
// run and are retried on the next invocation.
func (r *Runner) Run(ctx context.Context) error {
	l, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	candidates := resolver.New(r.catalog, r.log).Resolve(ctx, l, r.channels)

	items := map[int64]model.Item{}
	if len(candidates) > 0 {
		items, err = r.catalog.ItemDetails(ctx, candidates)
		if err != nil {
			r.log.Warn("fetch item details", "error", err)
			items = map[int64]model.Item{}
		}
	}

	authors := map[string]model.Author{}
	if ids := authorIDs(items); len(ids) > 0 {
		authors, err = r.catalog.AuthorProfiles(ctx, ids)
		if err != nil {
			r.log.Warn("fetch author profiles", "error", err)
			authors = map[string]model.Author{}
		}
	}

	sent := delivery.NewEngine(r.sender, r.catalog, r.log).Deliver(ctx, l, r.channels, items, authors)

	l.Prune(2 * r.window)

	if err := r.store.Save(ctx, l); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}

	r.log.Info("run complete", "candidates", len(candidates), "fetched", len(items), "sent", sent)
	return nil
}

func authorIDs(items map[int64]model.Item) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, item := range items {
		if item.AuthorID == "" {
			continue
		}
		if _, ok := seen[item.AuthorID]; ok {
			continue
		}
		seen[item.AuthorID] = struct{}{}
		ids = append(ids, item.AuthorID)
	}
	return ids
}
