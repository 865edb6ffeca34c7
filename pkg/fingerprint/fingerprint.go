package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Fingerprint is a lightweight identity snapshot of a single vehicle
// listing, built from an overview scan. Comparing fingerprints is cheap, so
// they stand in for full price data when deciding whether a listing needs an
// expensive re-scrape.
type Fingerprint struct {
	Provider    string `json:"provider"`
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	EditionName string `json:"edition_name,omitempty"`
	VariantSlug string `json:"variant_slug,omitempty"`
	URL         string `json:"url,omitempty"`

	// Extra holds every payload field not consumed as identity, so newly
	// discovered metadata (a changed trim count, a new badge) also
	// participates in change detection.
	Extra map[string]any `json:"extra_attributes,omitempty"`
}

// identityFields are the payload keys consumed by FromPayload, including the
// fallback spellings used by older provider scrapers.
var identityFields = map[string]bool{
	"brand":        true,
	"model":        true,
	"model_name":   true,
	"edition_name": true,
	"edition":      true,
	"variant_slug": true,
	"edition_slug": true,
	"url":          true,
	"source_url":   true,

	// Bookkeeping stamped onto cached offers, never present in overview
	// payloads. Excluded so a cached fingerprint hashes equal to the
	// overview fingerprint of an unchanged vehicle.
	"scraped_at": true,
}

// FromPayload builds a fingerprint from a raw vehicle payload as produced by
// an overview scan. Missing fields degrade to empty strings rather than
// erroring so a sparse payload still yields a usable identity.
func FromPayload(payload map[string]any, provider string) Fingerprint {
	fp := Fingerprint{
		Provider:    provider,
		Brand:       stringField(payload, "brand"),
		Model:       stringField(payload, "model", "model_name"),
		EditionName: stringField(payload, "edition_name", "edition"),
		VariantSlug: stringField(payload, "variant_slug", "edition_slug"),
		URL:         stringField(payload, "url", "source_url"),
	}
	for k, v := range payload {
		if identityFields[k] {
			continue
		}
		if fp.Extra == nil {
			fp.Extra = make(map[string]any)
		}
		fp.Extra[k] = v
	}
	return fp
}

// UniqueKey returns a normalized composite identity that is stable across
// runs for the same real-world vehicle and distinct for any semantically
// different one, including different editions of the same model. Empty
// identity parts are skipped.
func (f Fingerprint) UniqueKey() string {
	parts := []string{
		f.Provider,
		slugify(f.Brand),
		slugify(f.Model),
		slugify(f.EditionName),
		strings.ToLower(f.VariantSlug),
	}
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "_")
}

// Hash returns a short deterministic digest over the unique key, URL and
// extra attributes. encoding/json sorts map keys at every nesting level, so
// the digest does not depend on map iteration order.
func (f Fingerprint) Hash() string {
	data := map[string]any{
		"key":   f.UniqueKey(),
		"url":   f.URL,
		"extra": f.Extra,
	}
	b, err := json.Marshal(data)
	if err != nil {
		// Extra came from decoded JSON in every supported path, so this is
		// unreachable in practice. Degrade to the identity fields alone.
		b = []byte(f.UniqueKey() + "|" + f.URL)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:12]
}

// Label returns a short human-readable description for log lines.
func (f Fingerprint) Label() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s %s", f.Brand, f.Model, f.EditionName))
}

func slugify(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}

// stringField returns the first non-empty string value among the given keys.
// Non-string values are ignored, matching the overview payload contract
// where identity fields are always strings.
func stringField(payload map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
