package detect

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/leasescan/leasescan/pkg/fingerprint"
	"github.com/leasescan/leasescan/pkg/pricecache"
	"github.com/leasescan/leasescan/pkg/queue"
)

// CacheReader supplies previously persisted full-scrape records. It is a
// read-only external collaborator; pkg/pricecache provides the file-backed
// implementation.
type CacheReader interface {
	CachedOffers(provider string) (map[string]pricecache.Offer, error)
}

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Result categorizes one detection run. Every fingerprint observed in the
// overview falls into exactly one of new/changed/stale/unchanged; every
// cached fingerprint no longer observed falls into removed.
type Result struct {
	Provider   string
	DetectedAt time.Time

	New       []fingerprint.Fingerprint
	Changed   []fingerprint.Fingerprint
	Stale     []fingerprint.Fingerprint
	Removed   []fingerprint.Fingerprint
	Unchanged []fingerprint.Fingerprint
}

// NeedsScraping lists everything that justifies a full price scrape, in
// descending urgency: new first, then changed, then stale.
func (r *Result) NeedsScraping() []fingerprint.Fingerprint {
	out := make([]fingerprint.Fingerprint, 0, len(r.New)+len(r.Changed)+len(r.Stale))
	out = append(out, r.New...)
	out = append(out, r.Changed...)
	out = append(out, r.Stale...)
	return out
}

// Summary is a one-line human-readable digest for logs and CLI output.
func (r *Result) Summary() string {
	return fmt.Sprintf("New: %d, Changed: %d, Stale: %d, Removed: %d, Unchanged: %d",
		len(r.New), len(r.Changed), len(r.Stale), len(r.Removed), len(r.Unchanged))
}

// Detector decides, from cheap overview signals alone, which vehicles
// justify an expensive full re-scrape.
type Detector struct {
	cache     CacheReader
	freshness time.Duration
	now       func() time.Time
	log       Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock overrides the time source used for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLogger sets the detector logger. Nil means no logging.
func WithLogger(log Logger) Option {
	return func(d *Detector) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDetector builds a detector that considers a cached offer stale once it
// is older than freshnessDays.
func NewDetector(cache CacheReader, freshnessDays int, opts ...Option) *Detector {
	d := &Detector{
		cache:     cache,
		freshness: time.Duration(freshnessDays) * 24 * time.Hour,
		now:       time.Now,
		log:       nopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectChanges compares the current overview payloads against the cached
// offer index for the provider. The optional brand filter is applied to both
// sides: an overview restricted to one brand must not report other brands'
// cached vehicles as removed.
func (d *Detector) DetectChanges(payloads []map[string]any, provider, brand string) (*Result, error) {
	result := &Result{Provider: provider, DetectedAt: d.now().UTC()}

	cached, err := d.cache.CachedOffers(provider)
	if err != nil {
		return nil, fmt.Errorf("loading cached offers for %s: %w", provider, err)
	}

	now := d.now().UTC()
	seen := make(map[string]bool)
	for _, payload := range payloads {
		fp := fingerprint.FromPayload(payload, provider)
		if !brandMatches(fp.Brand, brand) {
			continue
		}
		key := fp.UniqueKey()
		if seen[key] {
			continue
		}
		seen[key] = true

		entry, ok := cached[key]
		if !ok {
			result.New = append(result.New, fp)
			continue
		}
		if fp.Hash() != entry.Fingerprint.Hash() {
			result.Changed = append(result.Changed, fp)
			continue
		}
		scrapedAt, ok := parseScrapedAt(entry.ScrapedAt)
		if !ok {
			// A missing or unparsable timestamp forces a re-scrape;
			// staleness blindness is worse than an extra scrape.
			d.log.Debugf("Treating %s as maximally stale: unusable scraped_at %q", key, entry.ScrapedAt)
			result.Stale = append(result.Stale, fp)
			continue
		}
		if now.Sub(scrapedAt) > d.freshness {
			result.Stale = append(result.Stale, fp)
		} else {
			result.Unchanged = append(result.Unchanged, fp)
		}
	}

	// Cached keys no longer observed. Sorted so repeated runs produce an
	// identical result.
	removedKeys := make([]string, 0)
	for key := range cached {
		if !seen[key] {
			removedKeys = append(removedKeys, key)
		}
	}
	sort.Strings(removedKeys)
	for _, key := range removedKeys {
		fp := cached[key].Fingerprint
		if !brandMatches(fp.Brand, brand) {
			continue
		}
		result.Removed = append(result.Removed, fp)
	}

	return result, nil
}

// EnqueueResult feeds a detection result into the scrape queue: new vehicles
// at critical priority, changed at high, stale at normal. The original
// payloads are carried along so the full scraper gets the complete vehicle
// record, not just the fingerprint.
func EnqueueResult(ctx context.Context, q *queue.Queue, result *Result, payloads []map[string]any, provider string) (int, error) {
	byKey := make(map[string]map[string]any, len(payloads))
	for _, payload := range payloads {
		fp := fingerprint.FromPayload(payload, provider)
		byKey[fp.UniqueKey()] = payload
	}

	enqueued := 0
	for _, group := range []struct {
		fps      []fingerprint.Fingerprint
		priority queue.Priority
		reason   string
	}{
		{result.New, queue.PriorityCritical, "new_vehicle"},
		{result.Changed, queue.PriorityHigh, "changed"},
		{result.Stale, queue.PriorityNormal, "stale"},
	} {
		for _, fp := range group.fps {
			payload, ok := byKey[fp.UniqueKey()]
			if !ok {
				continue
			}
			if _, err := q.Add(ctx, payload, provider, group.priority, group.reason); err != nil {
				return enqueued, err
			}
			enqueued++
		}
	}
	return enqueued, nil
}

func brandMatches(vehicleBrand, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.EqualFold(vehicleBrand, filter)
}

// parseScrapedAt accepts the timestamp formats found in cache files: RFC3339
// with or without sub-second precision, and the zone-less ISO form older
// scrapers wrote.
func parseScrapedAt(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
