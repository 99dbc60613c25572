// Package model defines the domain types used across the application.
package model

import "time"

// Item is a single published workshop item as returned by the catalog API.
// Immutable once fetched.
type Item struct {
	ID          int64
	AppID       int64
	Title       string
	Description string
	CreatedAt   time.Time
	PreviewURL  string
	AuthorID    string
}

// Author is the public profile of an item's creator.
type Author struct {
	ID         string
	Name       string
	ProfileURL string
	AvatarURL  string
}

// Channel is an outbound webhook destination with its app subscriptions.
// The webhook URL is a secret; Key holds a stable digest of it used as the
// ledger key so the URL never appears in persisted state.
type Channel struct {
	Key  string
	URL  string
	Apps []int64
}

// Subscribed reports whether the channel tracks the given app.
func (c Channel) Subscribed(appID int64) bool {
	for _, id := range c.Apps {
		if id == appID {
			return true
		}
	}
	return false
}
