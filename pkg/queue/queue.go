package queue

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/leasescan/leasescan/pkg/fingerprint"
)

// DefaultMaxAttempts is how often a full scrape is retried before an item is
// parked as failed.
const DefaultMaxAttempts = 3

// Store persists queue snapshots, grouped per provider. Implementations must
// survive process restarts; see pkg/storage for the SQLite one.
type Store interface {
	// LoadActive returns all persisted items still awaiting work, i.e.
	// pending and in_progress ones.
	LoadActive(ctx context.Context) ([]*Item, error)
	// SaveProvider replaces the persisted snapshot for one provider with
	// the given live items.
	SaveProvider(ctx context.Context, provider string, items []*Item) error
	// DeleteProvider drops the persisted snapshot for one provider.
	DeleteProvider(ctx context.Context, provider string) error
	// DeleteAll drops every persisted snapshot.
	DeleteAll(ctx context.Context) error
}

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Queue is a durable, priority-ordered work list of vehicles awaiting a full
// price scrape. It assumes a single driver process; the persisted snapshot
// has no cross-process coordination beyond the advisory lock the CLI takes.
type Queue struct {
	store       Store
	log         Logger
	maxAttempts int
	now         func() time.Time

	items map[string]*Item
	seq   map[string]int // insertion order, tie-break after added_at
	next  int
}

// Option configures a Queue.
type Option func(*Queue)

// WithMaxAttempts overrides the retry budget applied to new items.
func WithMaxAttempts(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxAttempts = n
		}
	}
}

// WithLogger sets the queue logger. Nil means no logging.
func WithLogger(log Logger) Option {
	return func(q *Queue) {
		if log != nil {
			q.log = log
		}
	}
}

// WithClock overrides the time source. Tests use this for deterministic
// staleness and ordering.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// New builds a queue backed by store and restores any interrupted session
// from it. Items found in_progress are demoted back to pending: the process
// that held them is gone, and re-scraping twice beats losing an item. A nil
// store yields a purely in-memory queue.
//
// A missing or unreadable snapshot is treated as an empty queue rather than
// an error.
func New(store Store, opts ...Option) *Queue {
	q := &Queue{
		store:       store,
		log:         nopLogger{},
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		items:       make(map[string]*Item),
		seq:         make(map[string]int),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.restore()
	return q
}

func (q *Queue) restore() {
	if q.store == nil {
		return
	}
	loaded, err := q.store.LoadActive(context.Background())
	if err != nil {
		q.log.Warnf("Could not restore queue snapshot, starting empty: %v", err)
		return
	}
	// Keep restore order deterministic before assigning sequence numbers.
	sort.SliceStable(loaded, func(i, j int) bool {
		a, b := loaded[i], loaded[j]
		if !a.AddedAt.Equal(b.AddedAt) {
			return a.AddedAt.Before(b.AddedAt)
		}
		return a.UniqueKey() < b.UniqueKey()
	})
	for _, it := range loaded {
		if it.Status == StatusInProgress {
			it.Status = StatusPending
		}
		q.insert(it)
	}
	if len(q.items) > 0 {
		q.log.Debugf("Restored %d queued items from snapshot", len(q.items))
	}
}

func (q *Queue) insert(it *Item) {
	key := it.UniqueKey()
	q.items[key] = it
	q.seq[key] = q.next
	q.next++
}

// Add upserts one vehicle. If the key is already queued, the priority may
// only escalate (lower value); it is never downgraded. The provider snapshot
// is persisted either way.
func (q *Queue) Add(ctx context.Context, payload map[string]any, provider string, priority Priority, reason string) (*Item, error) {
	fp := fingerprint.FromPayload(payload, provider)
	key := fp.UniqueKey()

	if existing, ok := q.items[key]; ok {
		if priority < existing.Priority {
			existing.Priority = priority
			existing.Reason = reason
		}
		if err := q.persist(ctx, provider); err != nil {
			return nil, err
		}
		return existing, nil
	}

	it := &Item{
		Fingerprint: fp,
		VehicleData: payload,
		Priority:    priority,
		Status:      StatusPending,
		AddedAt:     q.now().UTC(),
		MaxAttempts: q.maxAttempts,
		Reason:      reason,
	}
	q.insert(it)
	if err := q.persist(ctx, provider); err != nil {
		return nil, err
	}
	return it, nil
}

// AddBatch enqueues every vehicle whose key is not already present and
// returns how many were added. Existing keys are left untouched, priority
// included. That is deliberately weaker than Add so bulk enqueue stays a
// single pass; callers that need escalation must use Add per vehicle.
func (q *Queue) AddBatch(ctx context.Context, payloads []map[string]any, provider string, priority Priority, reason string) (int, error) {
	added := 0
	for _, payload := range payloads {
		fp := fingerprint.FromPayload(payload, provider)
		if _, ok := q.items[fp.UniqueKey()]; ok {
			continue
		}
		q.insert(&Item{
			Fingerprint: fp,
			VehicleData: payload,
			Priority:    priority,
			Status:      StatusPending,
			AddedAt:     q.now().UTC(),
			MaxAttempts: q.maxAttempts,
			Reason:      reason,
		})
		added++
	}
	if added > 0 {
		if err := q.persist(ctx, provider); err != nil {
			return added, err
		}
	}
	return added, nil
}

// GetNext selects the most urgent pending item, marks it in_progress,
// increments its attempt count, persists, and returns it. Provider "" pools
// all providers. Selection is deterministic: lowest priority value first,
// then earliest added_at, then insertion order. Returns nil when nothing is
// pending.
func (q *Queue) GetNext(ctx context.Context, provider string) (*Item, error) {
	var best *Item
	for _, it := range q.items {
		if it.Status != StatusPending {
			continue
		}
		if provider != "" && it.Provider() != provider {
			continue
		}
		if best == nil || q.moreUrgent(it, best) {
			best = it
		}
	}
	if best == nil {
		return nil, nil
	}

	best.markInProgress(q.now().UTC())
	if err := q.persist(ctx, best.Provider()); err != nil {
		return nil, err
	}
	return best, nil
}

func (q *Queue) moreUrgent(a, b *Item) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.AddedAt.Equal(b.AddedAt) {
		return a.AddedAt.Before(b.AddedAt)
	}
	return q.seq[a.UniqueKey()] < q.seq[b.UniqueKey()]
}

// Complete marks the item done and removes it from the live queue. No
// history is retained here; the scraped offer itself is the caller's record.
func (q *Queue) Complete(ctx context.Context, it *Item) error {
	it.markCompleted(q.now().UTC())
	delete(q.items, it.UniqueKey())
	delete(q.seq, it.UniqueKey())
	return q.persist(ctx, it.Provider())
}

// Fail records the scrape error. The item reverts to pending for a later
// retry until its attempt budget is exhausted, after which it is parked as
// failed and stays visible in Stats for reporting.
func (q *Queue) Fail(ctx context.Context, it *Item, msg string) error {
	it.markFailed(msg)
	return q.persist(ctx, it.Provider())
}

// PendingCount returns how many items await processing, optionally filtered
// by provider ("" = all).
func (q *Queue) PendingCount(provider string) int {
	n := 0
	for _, it := range q.items {
		if it.Status == StatusPending && (provider == "" || it.Provider() == provider) {
			n++
		}
	}
	return n
}

// Stats are per-status live counts for observability.
type Stats struct {
	Pending    int
	InProgress int
	Failed     int
	Total      int
}

// Stats aggregates live item counts by status, optionally filtered by
// provider ("" = all). Completed items never appear: they are removed on
// completion.
func (q *Queue) Stats(provider string) Stats {
	var s Stats
	for _, it := range q.items {
		if provider != "" && it.Provider() != provider {
			continue
		}
		switch it.Status {
		case StatusPending:
			s.Pending++
		case StatusInProgress:
			s.InProgress++
		case StatusFailed:
			s.Failed++
		}
		s.Total++
	}
	return s
}

// Providers returns the distinct providers with live items, sorted.
func (q *Queue) Providers() []string {
	seen := make(map[string]bool)
	for _, it := range q.items {
		seen[it.Provider()] = true
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Clear purges all items for a provider, or everything when provider is "",
// and drops the corresponding persisted snapshots.
func (q *Queue) Clear(ctx context.Context, provider string) error {
	if provider == "" {
		q.items = make(map[string]*Item)
		q.seq = make(map[string]int)
		if q.store == nil {
			return nil
		}
		if err := q.store.DeleteAll(ctx); err != nil {
			return fmt.Errorf("clearing persisted queue: %w", err)
		}
		return nil
	}
	for key, it := range q.items {
		if it.Provider() == provider {
			delete(q.items, key)
			delete(q.seq, key)
		}
	}
	if q.store == nil {
		return nil
	}
	if err := q.store.DeleteProvider(ctx, provider); err != nil {
		return fmt.Errorf("clearing persisted queue for %s: %w", provider, err)
	}
	return nil
}

func (q *Queue) persist(ctx context.Context, provider string) error {
	if q.store == nil {
		return nil
	}
	items := make([]*Item, 0)
	for _, it := range q.items {
		if it.Provider() == provider {
			items = append(items, it)
		}
	}
	if err := q.store.SaveProvider(ctx, provider, items); err != nil {
		return fmt.Errorf("persisting queue for %s: %w", provider, err)
	}
	return nil
}
