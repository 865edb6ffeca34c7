// Package quickcheck probes provider model pages for trim/engine/color
// counts without a full scrape. The counts come from the page's embedded
// __NEXT_DATA__ blob, so a single cheap GET per model answers "did anything
// move here since last time."
package quickcheck

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
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

// HashStore persists the quick-check hash per (provider, brand, model);
// pkg/storage implements it.
type HashStore interface {
	QuickHash(ctx context.Context, provider, brand, model string) (string, error)
	SaveQuickHash(ctx context.Context, provider, brand, model, hash string) error
}

// ModelCounts summarizes the configuration options offered for one model.
type ModelCounts struct {
	Trims     int
	Engines   int
	Colors    int
	TrimNames []string
}

// ModelResult is the quick-check outcome for one model page.
type ModelResult struct {
	Model      string
	Counts     ModelCounts
	Hash       string
	CachedHash string
	Changed    bool
}

// Result aggregates a quick-check run over one provider/brand.
type Result struct {
	Provider  string
	Brand     string
	CheckedAt time.Time
	Elapsed   time.Duration
	Models    []ModelResult
}

// ChangedModels lists the models whose count hash moved since the last run.
func (r *Result) ChangedModels() []string {
	var out []string
	for _, m := range r.Models {
		if m.Changed {
			out = append(out, m.Model)
		}
	}
	return out
}

// Checker fetches model pages and compares their count hashes against the
// stored ones.
type Checker struct {
	// BaseURL is the provider storefront root; the model page is
	// BaseURL/<brand>/<model>.
	BaseURL string
	Client  *retryablehttp.Client
	Store   HashStore
	Log     Logger
}

// CheckModels probes the given model slugs. An unreachable or unparsable
// page is skipped with a warning; the remaining models still produce a
// result. New hashes are saved as a side effect so the next run compares
// against this one.
func (c *Checker) CheckModels(ctx context.Context, provider, brand string, models []string) (*Result, error) {
	logg := c.Log
	if logg == nil {
		logg = nopLogger{}
	}
	client := c.Client
	if client == nil {
		client = retryablehttp.NewClient()
		client.Logger = log.New(io.Discard, "", 0)
		client.RetryMax = 3
	}

	start := time.Now()
	result := &Result{Provider: provider, Brand: brand, CheckedAt: start.UTC()}

	for _, model := range models {
		url := fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.BaseURL, "/"), strings.ToLower(brand), model)
		counts, err := c.fetchCounts(ctx, client, url)
		if err != nil {
			logg.Warnf("Quick check failed for %s/%s: %v", brand, model, err)
			continue
		}

		hash := HashCounts(counts)
		cached, err := c.Store.QuickHash(ctx, provider, brand, model)
		if err != nil {
			return nil, fmt.Errorf("loading stored hash for %s/%s: %w", brand, model, err)
		}

		mr := ModelResult{
			Model:      model,
			Counts:     counts,
			Hash:       hash,
			CachedHash: cached,
			// A first run has nothing to compare against and is not a change.
			Changed: cached != "" && cached != hash,
		}
		result.Models = append(result.Models, mr)

		if err := c.Store.SaveQuickHash(ctx, provider, brand, model, hash); err != nil {
			return nil, fmt.Errorf("saving hash for %s/%s: %w", brand, model, err)
		}
	}

	result.Elapsed = time.Since(start)
	return result, nil
}

func (c *Checker) fetchCounts(ctx context.Context, client *retryablehttp.Client, url string) (ModelCounts, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ModelCounts{}, err
	}
	res, err := client.Do(req)
	if err != nil {
		return ModelCounts{}, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return ModelCounts{}, fmt.Errorf("unexpected status %d", res.StatusCode)
	}
	return ParseModelCounts(res.Body)
}

// ParseModelCounts extracts configuration counts from a model page's
// __NEXT_DATA__ script element.
func ParseModelCounts(page io.Reader) (ModelCounts, error) {
	doc, err := goquery.NewDocumentFromReader(page)
	if err != nil {
		return ModelCounts{}, err
	}
	script := doc.Find("script#__NEXT_DATA__").First()
	if script.Length() == 0 {
		return ModelCounts{}, fmt.Errorf("no __NEXT_DATA__ element found")
	}

	config := gjson.Get(script.Text(), "props.pageProps.initialOffer.configurationOptions")
	if !config.Exists() {
		return ModelCounts{}, fmt.Errorf("no configuration options in __NEXT_DATA__")
	}

	counts := ModelCounts{
		Trims:   int(config.Get("trims.#").Int()),
		Engines: int(config.Get("engines.#").Int()),
		Colors:  int(config.Get("exteriorColours.#").Int()),
	}
	for _, trim := range config.Get("trims").Array() {
		name := trim.Get("title").String()
		if name == "" {
			name = trim.Get("slug").String()
		}
		counts.TrimNames = append(counts.TrimNames, name)
	}
	return counts, nil
}

// HashCounts digests a count summary into the same short hex form
// fingerprints use. Trim names are sorted first so page ordering does not
// produce phantom changes.
func HashCounts(counts ModelCounts) string {
	names := append([]string(nil), counts.TrimNames...)
	sort.Strings(names)
	content := fmt.Sprintf("trims=%d|engines=%d|colors=%d|%s",
		counts.Trims, counts.Engines, counts.Colors, strings.Join(names, ","))
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:12]
}
