package detect

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/leasescan/leasescan/pkg/fingerprint"
	"github.com/leasescan/leasescan/pkg/pricecache"
	"github.com/leasescan/leasescan/pkg/queue"
)

// fakeCache serves a fixed offer index.
type fakeCache struct {
	offers map[string]pricecache.Offer
}

func (f *fakeCache) CachedOffers(string) (map[string]pricecache.Offer, error) {
	return f.offers, nil
}

func cacheFrom(provider, scrapedAt string, payloads ...map[string]any) *fakeCache {
	offers := make(map[string]pricecache.Offer)
	for _, p := range payloads {
		fp := fingerprint.FromPayload(p, provider)
		offers[fp.UniqueKey()] = pricecache.Offer{Fingerprint: fp, ScrapedAt: scrapedAt, Payload: p}
	}
	return &fakeCache{offers: offers}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var testNow = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

func TestDetectChangesClassification(t *testing.T) {
	fresh := testNow.Add(-24 * time.Hour).Format(time.RFC3339)

	yaris := map[string]any{"brand": "Toyota", "model": "Yaris", "edition_name": "Active", "url": "https://t.test/yaris", "trims": float64(3)}
	corolla := map[string]any{"brand": "Toyota", "model": "Corolla", "edition_name": "Style", "url": "https://t.test/corolla"}
	aygo := map[string]any{"brand": "Toyota", "model": "Aygo X", "edition_name": "Play", "url": "https://t.test/aygo"}

	cache := cacheFrom("toyota_nl", fresh, yaris, corolla, aygo)

	// Current overview: yaris with a changed attribute, corolla unchanged,
	// aygo gone, and a brand-new model.
	changedYaris := map[string]any{"brand": "Toyota", "model": "Yaris", "edition_name": "Active", "url": "https://t.test/yaris", "trims": float64(4)}
	chr := map[string]any{"brand": "Toyota", "model": "C-HR", "edition_name": "Dynamic", "url": "https://t.test/chr"}

	d := NewDetector(cache, 7, WithClock(fixedClock(testNow)))
	result, err := d.DetectChanges([]map[string]any{changedYaris, corolla, chr}, "toyota_nl", "")
	if err != nil {
		t.Fatal(err)
	}

	if len(result.New) != 1 || result.New[0].Model != "C-HR" {
		t.Fatalf("new = %#v", result.New)
	}
	if len(result.Changed) != 1 || result.Changed[0].Model != "Yaris" {
		t.Fatalf("changed = %#v", result.Changed)
	}
	if len(result.Unchanged) != 1 || result.Unchanged[0].Model != "Corolla" {
		t.Fatalf("unchanged = %#v", result.Unchanged)
	}
	if len(result.Removed) != 1 || result.Removed[0].Model != "Aygo X" {
		t.Fatalf("removed = %#v", result.Removed)
	}
	if len(result.Stale) != 0 {
		t.Fatalf("stale = %#v", result.Stale)
	}
	if got := len(result.NeedsScraping()); got != 2 {
		t.Fatalf("needs_scraping count = %d, want 2", got)
	}
}

func TestDetectChangesStaleBeatsFreshnessWindow(t *testing.T) {
	// Cached 10 days ago, hash equal, freshness 7 days: stale, not unchanged.
	old := testNow.Add(-10 * 24 * time.Hour).Format(time.RFC3339)
	yaris := map[string]any{"brand": "Toyota", "model": "Yaris", "edition_name": "Active"}

	d := NewDetector(cacheFrom("toyota_nl", old, yaris), 7, WithClock(fixedClock(testNow)))
	result, err := d.DetectChanges([]map[string]any{yaris}, "toyota_nl", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Stale) != 1 || len(result.Unchanged) != 0 {
		t.Fatalf("expected stale classification, got %s", result.Summary())
	}
}

func TestDetectChangesUnparsableTimestampForcesRescrape(t *testing.T) {
	yaris := map[string]any{"brand": "Toyota", "model": "Yaris", "edition_name": "Active"}

	for _, ts := range []string{"", "last tuesday", "2026-13-45"} {
		d := NewDetector(cacheFrom("toyota_nl", ts, yaris), 7, WithClock(fixedClock(testNow)))
		result, err := d.DetectChanges([]map[string]any{yaris}, "toyota_nl", "")
		if err != nil {
			t.Fatal(err)
		}
		if len(result.Stale) != 1 {
			t.Fatalf("scraped_at %q: expected maximally stale, got %s", ts, result.Summary())
		}
	}
}

func TestDetectChangesBrandFilterAppliesToRemoved(t *testing.T) {
	fresh := testNow.Add(-time.Hour).Format(time.RFC3339)
	swift := map[string]any{"brand": "Suzuki", "model": "Swift", "edition_name": "Select"}
	yaris := map[string]any{"brand": "Toyota", "model": "Yaris", "edition_name": "Active"}

	cache := cacheFrom("ayvens_nl", fresh, swift, yaris)
	d := NewDetector(cache, 7, WithClock(fixedClock(testNow)))

	// Toyota-filtered overview listing only the Yaris: the cached Suzuki is
	// outside the filter and must not be reported as removed.
	result, err := d.DetectChanges([]map[string]any{yaris, swift}, "ayvens_nl", "Toyota")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Removed) != 0 {
		t.Fatalf("brand-filtered detection leaked removals: %#v", result.Removed)
	}
	if len(result.Unchanged) != 1 || result.Unchanged[0].Model != "Yaris" {
		t.Fatalf("expected only the Yaris to be classified, got %s", result.Summary())
	}
}

func TestDetectChangesIdempotent(t *testing.T) {
	fresh := testNow.Add(-time.Hour).Format(time.RFC3339)
	yaris := map[string]any{"brand": "Toyota", "model": "Yaris", "edition_name": "Active"}
	gone := map[string]any{"brand": "Toyota", "model": "Aygo X", "edition_name": "Play"}
	gone2 := map[string]any{"brand": "Toyota", "model": "Corolla", "edition_name": "Style"}

	cache := cacheFrom("toyota_nl", fresh, yaris, gone, gone2)
	d := NewDetector(cache, 7, WithClock(fixedClock(testNow)))

	overview := []map[string]any{yaris}
	first, err := d.DetectChanges(overview, "toyota_nl", "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := d.DetectChanges(overview, "toyota_nl", "")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("detection is not idempotent:\nfirst:  %#v\nsecond: %#v", first, second)
	}
}

func TestEnqueueResultPrioritiesAndDriverFlow(t *testing.T) {
	yaris := map[string]any{"brand": "Toyota", "model": "Yaris", "edition_name": "Active"}
	corolla := map[string]any{"brand": "Toyota", "model": "Corolla", "edition_name": "Style"}
	overview := []map[string]any{yaris, corolla}

	// Yaris is new (critical), Corolla is stale (normal).
	old := testNow.Add(-30 * 24 * time.Hour).Format(time.RFC3339)
	cache := cacheFrom("toyota_nl", old, corolla)

	d := NewDetector(cache, 7, WithClock(fixedClock(testNow)))
	result, err := d.DetectChanges(overview, "toyota_nl", "")
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	q := queue.New(nil)
	n, err := EnqueueResult(ctx, q, result, overview, "toyota_nl")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 enqueued, got %d", n)
	}

	it, err := q.GetNext(ctx, "toyota_nl")
	if err != nil {
		t.Fatal(err)
	}
	if it.Fingerprint.Model != "Yaris" || it.Priority != queue.PriorityCritical || it.Reason != "new_vehicle" {
		t.Fatalf("expected the new Yaris first at critical, got %+v", it)
	}
	if err := q.Complete(ctx, it); err != nil {
		t.Fatal(err)
	}
	if got := q.PendingCount("toyota_nl"); got != 1 {
		t.Fatalf("pending after completing Yaris = %d, want 1", got)
	}
}
