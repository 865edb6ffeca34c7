package fingerprint

import (
	"strings"
	"testing"
)

func TestFromPayloadFallbackFields(t *testing.T) {
	payload := map[string]any{
		"brand":        "Toyota",
		"model_name":   "Yaris Cross",
		"edition":      "Active",
		"edition_slug": "active-2024",
		"source_url":   "https://example.test/yaris-cross",
		"trim_count":   3,
	}

	fp := FromPayload(payload, "toyota_nl")
	if fp.Model != "Yaris Cross" {
		t.Fatalf("expected model from model_name fallback, got %q", fp.Model)
	}
	if fp.EditionName != "Active" {
		t.Fatalf("expected edition from edition fallback, got %q", fp.EditionName)
	}
	if fp.VariantSlug != "active-2024" {
		t.Fatalf("expected variant from edition_slug fallback, got %q", fp.VariantSlug)
	}
	if fp.URL != "https://example.test/yaris-cross" {
		t.Fatalf("expected url from source_url fallback, got %q", fp.URL)
	}
	if _, ok := fp.Extra["trim_count"]; !ok {
		t.Fatalf("expected non-identity field in Extra, got %#v", fp.Extra)
	}
	if _, ok := fp.Extra["brand"]; ok {
		t.Fatalf("identity field leaked into Extra: %#v", fp.Extra)
	}
}

func TestUniqueKeyStable(t *testing.T) {
	a := FromPayload(map[string]any{"brand": "Toyota", "model": "Yaris Cross", "edition_name": "Active"}, "toyota_nl")
	b := FromPayload(map[string]any{"brand": "Toyota", "model": "Yaris Cross", "edition_name": "Active", "url": "https://x.test"}, "toyota_nl")
	if a.UniqueKey() != b.UniqueKey() {
		t.Fatalf("unique key not stable: %q vs %q", a.UniqueKey(), b.UniqueKey())
	}
	if !strings.Contains(a.UniqueKey(), "yaris-cross") {
		t.Fatalf("expected lowercased hyphenated model in key, got %q", a.UniqueKey())
	}
}

func TestUniqueKeyDistinguishesEditions(t *testing.T) {
	base := map[string]any{"brand": "Toyota", "model": "Yaris"}
	active := FromPayload(base, "toyota_nl")
	active.EditionName = "Active"
	style := FromPayload(base, "toyota_nl")
	style.EditionName = "Style"
	if active.UniqueKey() == style.UniqueKey() {
		t.Fatalf("different editions produced equal keys: %q", active.UniqueKey())
	}
}

func TestUniqueKeyDistinguishesProviders(t *testing.T) {
	payload := map[string]any{"brand": "Suzuki", "model": "Swift"}
	a := FromPayload(payload, "suzuki_nl")
	b := FromPayload(payload, "leasys_nl")
	if a.UniqueKey() == b.UniqueKey() {
		t.Fatalf("different providers produced equal keys: %q", a.UniqueKey())
	}
}

func TestUniqueKeySkipsEmptyParts(t *testing.T) {
	fp := FromPayload(map[string]any{"brand": "Suzuki", "model": "Swift"}, "suzuki_nl")
	if strings.Contains(fp.UniqueKey(), "__") {
		t.Fatalf("empty parts should be skipped, got %q", fp.UniqueKey())
	}
}

func TestHashOrderIndependent(t *testing.T) {
	a := Fingerprint{Provider: "toyota_nl", Brand: "Toyota", Model: "Aygo X", Extra: map[string]any{
		"trims": 4, "fuel": "petrol", "doors": 5,
	}}
	b := Fingerprint{Provider: "toyota_nl", Brand: "Toyota", Model: "Aygo X", Extra: map[string]any{
		"doors": 5, "fuel": "petrol", "trims": 4,
	}}
	if a.Hash() != b.Hash() {
		t.Fatalf("hash depends on attribute insertion order: %q vs %q", a.Hash(), b.Hash())
	}
}

func TestHashChangesWithAttributes(t *testing.T) {
	a := Fingerprint{Provider: "toyota_nl", Brand: "Toyota", Model: "Corolla", Extra: map[string]any{"trims": 3}}
	b := Fingerprint{Provider: "toyota_nl", Brand: "Toyota", Model: "Corolla", Extra: map[string]any{"trims": 4}}
	if a.Hash() == b.Hash() {
		t.Fatal("changing an attribute value should change the hash")
	}

	c := a
	c.URL = "https://example.test/corolla"
	if a.Hash() == c.Hash() {
		t.Fatal("changing the URL should change the hash")
	}
}

func TestHashLength(t *testing.T) {
	fp := Fingerprint{Provider: "toyota_nl", Brand: "Toyota", Model: "Yaris"}
	if got := fp.Hash(); len(got) != 12 {
		t.Fatalf("expected 12-char hash, got %q (%d)", got, len(got))
	}
}
