package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"workshop_notifier/internal/config"
	"workshop_notifier/internal/delivery"
	"workshop_notifier/internal/ledger"
	"workshop_notifier/internal/model"
)

type fakeCatalog struct {
	latest  map[int64][]int64
	items   map[int64]model.Item
	authors map[string]model.Author
	names   map[int64]string

	itemsErr   error
	authorsErr error

	detailBatches [][]int64
}

func (f *fakeCatalog) LatestItems(_ context.Context, appID int64) ([]int64, error) {
	return f.latest[appID], nil
}

func (f *fakeCatalog) ItemDetails(_ context.Context, ids []int64) (map[int64]model.Item, error) {
	f.detailBatches = append(f.detailBatches, ids)
	if f.itemsErr != nil {
		return nil, f.itemsErr
	}
	out := make(map[int64]model.Item)
	for _, id := range ids {
		if item, ok := f.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (f *fakeCatalog) AuthorProfiles(_ context.Context, ids []string) (map[string]model.Author, error) {
	if f.authorsErr != nil {
		return nil, f.authorsErr
	}
	out := make(map[string]model.Author)
	for _, id := range ids {
		if a, ok := f.authors[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (f *fakeCatalog) AppName(_ context.Context, appID int64) (string, bool, error) {
	name, ok := f.names[appID]
	return name, ok, nil
}

type fakeSender struct {
	failURLs map[string]bool
	sent     []string // webhook URLs in send order
}

func (s *fakeSender) Send(_ context.Context, webhookURL string, _ delivery.Payload) error {
	if s.failURLs[webhookURL] {
		return errors.New("simulated network error")
	}
	s.sent = append(s.sent, webhookURL)
	return nil
}

type failStore struct{}

func (failStore) Load(context.Context) (ledger.Ledger, error) { return ledger.New(), nil }
func (failStore) Save(context.Context, ledger.Ledger) error   { return errors.New("disk full") }
func (failStore) Close() error                                { return nil }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	urlA = "https://hook/a"
	urlB = "https://hook/b"
)

var (
	keyA = config.ChannelKey(urlA)
	keyB = config.ChannelKey(urlB)
)

func testChannels(apps ...int64) []model.Channel {
	return []model.Channel{
		{Key: keyA, URL: urlA, Apps: apps},
		{Key: keyB, URL: urlB, Apps: apps},
	}
}

func testItem(id int64, created int64) model.Item {
	return model.Item{
		ID:        id,
		AppID:     100,
		Title:     "item",
		CreatedAt: time.Unix(created, 0).UTC(),
		AuthorID:  "author-1",
	}
}

var testAuthors = map[string]model.Author{
	"author-1": {ID: "author-1", Name: "mapmaker"},
}

func newStore(t *testing.T) ledger.Store {
	t.Helper()
	return ledger.NewFile(filepath.Join(t.TempDir(), "ledger.json"), discard())
}

func TestRunBaselineThenDeliver(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	catalog := &fakeCatalog{
		latest:  map[int64][]int64{100: {5, 4, 3, 2, 1}},
		items:   map[int64]model.Item{6: testItem(6, 1000)},
		authors: testAuthors,
		names:   map[int64]string{100: "Arma 3"},
	}
	sender := &fakeSender{}
	channels := testChannels(100)

	// Run 1: first encounter, baseline only, zero sends.
	if err := New(store, catalog, sender, channels, 10, discard()).Run(ctx); err != nil {
		t.Fatalf("run 1: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("baseline run sent %d notifications", len(sender.sent))
	}

	l, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load after run 1: %v", err)
	}
	if diff := cmp.Diff([]int64{1, 2, 3, 4, 5}, l.Entry(keyA, 100).IDs); diff != "" {
		t.Errorf("post-baseline ledger mismatch (-want +got):\n%s", diff)
	}

	// Run 2: item 6 appears, both channels get it.
	catalog.latest[100] = []int64{6, 5, 4, 3, 2}
	if err := New(store, catalog, sender, channels, 10, discard()).Run(ctx); err != nil {
		t.Fatalf("run 2: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("sent %d notifications, want 2", len(sender.sent))
	}
	if len(catalog.detailBatches) != 1 {
		t.Fatalf("detail batches = %d, want 1", len(catalog.detailBatches))
	}
	if diff := cmp.Diff([]int64{6}, catalog.detailBatches[0]); diff != "" {
		t.Errorf("detail batch mismatch (-want +got):\n%s", diff)
	}

	l, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("load after run 2: %v", err)
	}
	for _, key := range []string{keyA, keyB} {
		if diff := cmp.Diff([]int64{1, 2, 3, 4, 5, 6}, l.Entry(key, 100).IDs); diff != "" {
			t.Errorf("channel %s ledger mismatch (-want +got):\n%s", key[:8], diff)
		}
	}
}

func TestRunAtLeastOnceAcrossRuns(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	catalog := &fakeCatalog{
		latest:  map[int64][]int64{100: {6, 5, 4, 3, 2}},
		items:   map[int64]model.Item{6: testItem(6, 1000)},
		authors: testAuthors,
	}
	channels := testChannels(100)

	// Pre-seed both channels with the same baseline.
	seed := ledger.New()
	seed.Entry(keyA, 100).IDs = []int64{2, 3, 4, 5}
	seed.Entry(keyB, 100).IDs = []int64{2, 3, 4, 5}
	if err := store.Save(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Run 1: B's endpoint is down.
	sender := &fakeSender{failURLs: map[string]bool{urlB: true}}
	if err := New(store, catalog, sender, channels, 10, discard()).Run(ctx); err != nil {
		t.Fatalf("run 1: %v", err)
	}
	if diff := cmp.Diff([]string{urlA}, sender.sent); diff != "" {
		t.Errorf("run 1 sends mismatch (-want +got):\n%s", diff)
	}

	l, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !l.Entry(keyA, 100).Has(6) {
		t.Error("A must have 6 after run 1")
	}
	if l.Entry(keyB, 100).Has(6) {
		t.Error("B must not have 6 after failed delivery")
	}

	// Run 2: unchanged latest list, B recovered. Only B is attempted.
	sender2 := &fakeSender{}
	if err := New(store, catalog, sender2, channels, 10, discard()).Run(ctx); err != nil {
		t.Fatalf("run 2: %v", err)
	}
	if diff := cmp.Diff([]string{urlB}, sender2.sent); diff != "" {
		t.Errorf("run 2 sends mismatch (-want +got):\n%s", diff)
	}

	l, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !l.Entry(keyB, 100).Has(6) {
		t.Error("B must have 6 after run 2")
	}
}

func TestRunDetailFetchFailureDegrades(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	catalog := &fakeCatalog{
		latest:   map[int64][]int64{100: {6, 5}},
		itemsErr: errors.New("upstream down"),
	}
	sender := &fakeSender{}
	channels := testChannels(100)

	seed := ledger.New()
	seed.Entry(keyA, 100).IDs = []int64{5}
	seed.Entry(keyB, 100).IDs = []int64{5}
	if err := store.Save(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := New(store, catalog, sender, channels, 10, discard()).Run(ctx); err != nil {
		t.Fatalf("detail failure must not abort the run: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent %d notifications despite failed detail fetch", len(sender.sent))
	}

	l, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if l.Entry(keyA, 100).Has(6) {
		t.Error("unfetched item must stay unhandled")
	}
}

func TestRunAuthorFetchFailureDegrades(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	catalog := &fakeCatalog{
		latest:     map[int64][]int64{100: {6, 5}},
		items:      map[int64]model.Item{6: testItem(6, 1000)},
		authorsErr: errors.New("upstream down"),
	}
	sender := &fakeSender{}
	channels := testChannels(100)

	seed := ledger.New()
	seed.Entry(keyA, 100).IDs = []int64{5}
	seed.Entry(keyB, 100).IDs = []int64{5}
	if err := store.Save(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := New(store, catalog, sender, channels, 10, discard()).Run(ctx); err != nil {
		t.Fatalf("author failure must not abort the run: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent %d notifications without author data", len(sender.sent))
	}
}

func TestRunPrunesLedger(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	catalog := &fakeCatalog{latest: map[int64][]int64{100: {30, 29, 28}}}
	channels := []model.Channel{{Key: keyA, URL: urlA, Apps: []int64{100}}}

	seed := ledger.New()
	ids := make([]int64, 0, 20)
	for id := int64(1); id <= 20; id++ {
		ids = append(ids, id)
	}
	seed.Entry(keyA, 100).IDs = ids
	if err := store.Save(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Window 3 -> retention bound 6.
	if err := New(store, catalog, &fakeSender{}, channels, 3, discard()).Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	l, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]int64{15, 16, 17, 18, 19, 20}, l.Entry(keyA, 100).IDs); diff != "" {
		t.Errorf("pruned ledger mismatch (-want +got):\n%s", diff)
	}
}

func TestRunSaveFailureIsFatal(t *testing.T) {
	catalog := &fakeCatalog{latest: map[int64][]int64{100: {1}}}
	r := New(failStore{}, catalog, &fakeSender{}, testChannels(100), 10, discard())

	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected error when the ledger cannot be saved")
	}
}
