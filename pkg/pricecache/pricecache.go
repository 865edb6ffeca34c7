package pricecache

import (
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/leasescan/leasescan/pkg/fingerprint"
)

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

// Offer is one previously persisted full-scrape record. The payload is
// opaque to change detection; only the identity and scrape timestamp matter
// here.
type Offer struct {
	Fingerprint fingerprint.Fingerprint
	ScrapedAt   string // ISO-8601 as persisted, "" when absent
	Payload     map[string]any
}

// Reader loads cached offers from the JSON price files written by earlier
// full scrapes. Multi-brand providers spread their offers over several
// files; all of them are merged into one index.
type Reader struct {
	Dir   string
	Files map[string][]string // provider id -> cache file names
	Log   Logger
}

// CachedOffers returns the cached offer index for a provider, keyed by
// unique key. Missing files yield an empty (partial) index and unreadable
// files are skipped with a warning; the caller would rather re-scrape too
// much than fail the whole detection run.
func (r *Reader) CachedOffers(provider string) (map[string]Offer, error) {
	log := r.Log
	if log == nil {
		log = nopLogger{}
	}

	cached := make(map[string]Offer)
	for _, name := range r.Files[provider] {
		path := filepath.Join(r.Dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			log.Warnf("Could not read cache file %s: %v", path, err)
			continue
		}
		if !gjson.ValidBytes(raw) {
			log.Warnf("Skipping invalid cache file %s", path)
			continue
		}
		parsed := gjson.ParseBytes(raw)
		if !parsed.IsArray() {
			log.Warnf("Skipping cache file %s: expected a JSON array of offers", path)
			continue
		}
		parsed.ForEach(func(_, offer gjson.Result) bool {
			payload, ok := offer.Value().(map[string]any)
			if !ok {
				return true
			}
			fp := fingerprint.FromPayload(payload, provider)
			cached[fp.UniqueKey()] = Offer{
				Fingerprint: fp,
				ScrapedAt:   offer.Get("scraped_at").String(),
				Payload:     payload,
			}
			return true
		})
	}
	return cached, nil
}
