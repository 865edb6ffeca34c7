package driver

import (
	"context"

	"github.com/leasescan/leasescan/pkg/queue"
)

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

// FullScraper resolves a queued vehicle into its complete priced offer. The
// implementation is external and slow (browser automation); everything in
// this package treats it as a black box.
type FullScraper interface {
	ScrapeFull(ctx context.Context, item *queue.Item) (map[string]any, error)
}

// Config holds everything ProcessQueue needs for one run.
type Config struct {
	Queue    *queue.Queue
	Scraper  FullScraper
	Provider string // "" = pool all providers
	MaxItems int    // <= 0 = drain the queue
	Log      Logger // optional; nil = no logging
}

// Result summarizes one processing run.
type Result struct {
	Offers    []map[string]any
	Completed int
	Failed    int
}

// ProcessQueue is the driver loop: dequeue the most urgent pending item, run
// the full scrape, report back. Items are processed strictly sequentially;
// the scrape is the only long-latency step, and providers tolerate one
// browser session far better than a burst of them.
//
// A scrape error is reported via Fail, which keeps the item retryable until
// its attempt budget runs out. Context cancellation stops the loop between
// items; the in-flight item is failed with the context error so it reverts
// to pending for the next run.
func ProcessQueue(ctx context.Context, cfg Config) (*Result, error) {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}

	result := &Result{}
	for cfg.MaxItems <= 0 || result.Completed+result.Failed < cfg.MaxItems {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		item, err := cfg.Queue.GetNext(ctx, cfg.Provider)
		if err != nil {
			return result, err
		}
		if item == nil {
			break
		}

		label := item.Fingerprint.Label()
		log.Infof("Scraping %s (%s, attempt %d/%d)", label, item.Reason, item.AttemptCount, item.MaxAttempts)

		offer, err := cfg.Scraper.ScrapeFull(ctx, item)
		if err != nil {
			result.Failed++
			log.Warnf("Scrape failed for %s: %v", label, err)
			if ferr := cfg.Queue.Fail(ctx, item, err.Error()); ferr != nil {
				return result, ferr
			}
			continue
		}

		result.Completed++
		result.Offers = append(result.Offers, offer)
		if cerr := cfg.Queue.Complete(ctx, item); cerr != nil {
			return result, cerr
		}
	}
	return result, nil
}
