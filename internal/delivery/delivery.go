// Package delivery routes resolved items to their subscribed channels and
// records confirmed deliveries in the ledger.
package delivery

import (
	"context"
	"log/slog"
	"sort"

	"workshop_notifier/internal/ledger"
	"workshop_notifier/internal/model"
)

// Sender transmits a formatted payload to a channel endpoint.
type Sender interface {
	Send(ctx context.Context, webhookURL string, p Payload) error
}

// Names resolves app ids to display names for the embed footer.
type Names interface {
	AppName(ctx context.Context, appID int64) (string, bool, error)
}

// Engine delivers items to channels and mutates the ledger on confirmed
// success only.
type Engine struct {
	sender Sender
	names  Names
	log    *slog.Logger

	// per-run app name memo; "" means the lookup was attempted and failed
	// or the storefront does not know the app.
	nameCache map[int64]string
}

// NewEngine creates an Engine.
func NewEngine(sender Sender, names Names, log *slog.Logger) *Engine {
	return &Engine{
		sender:    sender,
		names:     names,
		log:       log,
		nameCache: make(map[int64]string),
	}
}

// Deliver sends each item to every channel subscribed to its app, oldest
// first so channel histories read chronologically. Items whose author could
// not be resolved are skipped entirely and stay unhandled, so they are
// retried next run. A ledger entry is appended strictly after the endpoint
// acknowledges delivery; one channel's failure never affects another.
// Returns the number of acknowledged sends.
func (e *Engine) Deliver(ctx context.Context, l ledger.Ledger, channels []model.Channel, items map[int64]model.Item, authors map[string]model.Author) int {
	ordered := make([]model.Item, 0, len(items))
	for _, item := range items {
		ordered = append(ordered, item)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	sent := 0
	for _, item := range ordered {
		author, ok := authors[item.AuthorID]
		if !ok {
			e.log.Warn("author unresolved, item deferred", "item_id", item.ID, "author_id", item.AuthorID)
			continue
		}

		for _, ch := range channels {
			if !ch.Subscribed(item.AppID) {
				continue
			}
			entry := l.Entry(ch.Key, item.AppID)
			if entry.Has(item.ID) {
				continue
			}

			name := e.appName(ctx, entry, item.AppID)
			payload := BuildPayload(item, author, name)

			if err := e.sender.Send(ctx, ch.URL, payload); err != nil {
				e.log.Warn("deliver item", "item_id", item.ID, "channel", ch.Key[:8], "error", err)
				continue
			}
			entry.Mark(item.ID)
			sent++
		}
	}
	return sent
}

// appName returns the display name for the app, preferring the name cached
// in the ledger entry, then the per-run memo, then a storefront lookup. A
// failed lookup only costs the embed footer.
func (e *Engine) appName(ctx context.Context, entry *ledger.Entry, appID int64) string {
	if entry.Name != "" {
		e.nameCache[appID] = entry.Name
		return entry.Name
	}
	name, looked := e.nameCache[appID]
	if !looked {
		resolved, ok, err := e.names.AppName(ctx, appID)
		if err != nil {
			e.log.Warn("resolve app name", "app_id", appID, "error", err)
		} else if ok {
			name = resolved
		}
		e.nameCache[appID] = name
	}
	if name != "" {
		entry.Name = name
	}
	return name
}
