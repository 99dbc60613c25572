package ledger

import "context"

// Store is the persistence interface for the ledger.
//
// Load tolerates missing, corrupt or legacy-format state by returning an
// empty (or partially empty) ledger; it returns an error only when storage
// is unusable. Save errors are fatal for the run: losing ledger state risks
// re-notifying or permanently skipping items.
type Store interface {
	Load(ctx context.Context) (Ledger, error)
	Save(ctx context.Context, l Ledger) error
	Close() error
}
