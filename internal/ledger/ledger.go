// Package ledger tracks which items have already been handled per channel
// and app, and persists that state between runs.
package ledger

import (
	"slices"
	"strconv"
)

// Entry is the handled-item state for one (channel, app) pair. IDs is an
// ordered set; Name optionally caches the app's display name.
type Entry struct {
	IDs  []int64 `json:"ids"`
	Name string  `json:"name,omitempty"`
}

// Has reports whether the item id is already recorded.
func (e *Entry) Has(id int64) bool {
	return slices.Contains(e.IDs, id)
}

// Mark records the item id, keeping IDs duplicate-free.
func (e *Entry) Mark(id int64) {
	if !e.Has(id) {
		e.IDs = append(e.IDs, id)
	}
}

// ChannelState maps app id (as a decimal string) to its entry.
type ChannelState map[string]*Entry

// Ledger maps channel key to per-app handled state.
type Ledger map[string]ChannelState

// New returns an empty ledger.
func New() Ledger {
	return make(Ledger)
}

// AppKey converts an app id to the string form used as a ledger map key.
func AppKey(appID int64) string {
	return strconv.FormatInt(appID, 10)
}

// Entry returns the entry for (channelKey, appID), creating an empty one if
// none exists yet. An entry with no ids is a first encounter: the caller is
// expected to baseline it rather than deliver.
func (l Ledger) Entry(channelKey string, appID int64) *Entry {
	state, ok := l[channelKey]
	if !ok {
		state = make(ChannelState)
		l[channelKey] = state
	}
	e, ok := state[AppKey(appID)]
	if !ok {
		e = &Entry{}
		state[AppKey(appID)] = e
	}
	return e
}

// Prune trims every entry to its highest `retain` item ids, sorted ascending.
// Retaining more than the fetch window gives slack against upstream items
// being unlisted and later reappearing in the latest window.
func (l Ledger) Prune(retain int) {
	for _, state := range l {
		for _, e := range state {
			slices.Sort(e.IDs)
			if len(e.IDs) > retain {
				e.IDs = e.IDs[len(e.IDs)-retain:]
			}
		}
	}
}
