package quickcheck

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const modelPage = `<!DOCTYPE html>
<html><head><title>Swift | Leasys</title></head>
<body>
<div id="__next">storefront markup</div>
<script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"initialOffer":{"configurationOptions":{
  "trims":[{"title":"Select","slug":"select"},{"title":"Style","slug":"style"}],
  "engines":[{"slug":"1-2-hybrid"}],
  "exteriorColours":[{"slug":"white"},{"slug":"red"},{"slug":"blue"}]
}}}}}
</script>
</body></html>`

func TestParseModelCounts(t *testing.T) {
	counts, err := ParseModelCounts(strings.NewReader(modelPage))
	if err != nil {
		t.Fatal(err)
	}
	if counts.Trims != 2 || counts.Engines != 1 || counts.Colors != 3 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	if len(counts.TrimNames) != 2 || counts.TrimNames[0] != "Select" {
		t.Fatalf("unexpected trim names: %v", counts.TrimNames)
	}
}

func TestParseModelCountsNoNextData(t *testing.T) {
	_, err := ParseModelCounts(strings.NewReader("<html><body>plain page</body></html>"))
	if err == nil {
		t.Fatal("expected an error for a page without __NEXT_DATA__")
	}
}

func TestHashCountsOrderIndependent(t *testing.T) {
	a := ModelCounts{Trims: 2, Engines: 1, Colors: 3, TrimNames: []string{"Select", "Style"}}
	b := ModelCounts{Trims: 2, Engines: 1, Colors: 3, TrimNames: []string{"Style", "Select"}}
	if HashCounts(a) != HashCounts(b) {
		t.Fatal("hash should not depend on trim listing order")
	}

	c := a
	c.Trims = 3
	c.TrimNames = append(c.TrimNames, "GLX")
	if HashCounts(a) == HashCounts(c) {
		t.Fatal("changing a count should change the hash")
	}
}

// memStore is an in-memory HashStore.
type memStore struct {
	hashes map[string]string
}

func (m *memStore) key(provider, brand, model string) string {
	return provider + "|" + brand + "|" + model
}

func (m *memStore) QuickHash(_ context.Context, provider, brand, model string) (string, error) {
	return m.hashes[m.key(provider, brand, model)], nil
}

func (m *memStore) SaveQuickHash(_ context.Context, provider, brand, model, hash string) error {
	if m.hashes == nil {
		m.hashes = make(map[string]string)
	}
	m.hashes[m.key(provider, brand, model)] = hash
	return nil
}

func TestCheckModelsDetectsChange(t *testing.T) {
	trims := 2
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/suzuki/") {
			http.NotFound(w, r)
			return
		}
		var names []string
		for i := 0; i < trims; i++ {
			names = append(names, fmt.Sprintf(`{"title":"Trim %d"}`, i))
		}
		fmt.Fprintf(w, `<html><body><script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"initialOffer":{"configurationOptions":{"trims":[%s],"engines":[],"exteriorColours":[]}}}}}
</script></body></html>`, strings.Join(names, ","))
	}))
	defer srv.Close()

	store := &memStore{}
	checker := &Checker{BaseURL: srv.URL, Store: store}
	ctx := context.Background()

	// First run establishes baselines; nothing counts as changed.
	first, err := checker.CheckModels(ctx, "leasys_nl", "suzuki", []string{"swift"})
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Models) != 1 || first.Models[0].Changed {
		t.Fatalf("first run must only record baselines, got %+v", first.Models)
	}

	// Same page again: no change.
	second, err := checker.CheckModels(ctx, "leasys_nl", "suzuki", []string{"swift"})
	if err != nil {
		t.Fatal(err)
	}
	if len(second.ChangedModels()) != 0 {
		t.Fatalf("unchanged page reported as changed: %+v", second.Models)
	}

	// A trim appears: change detected and the stored hash rolls forward.
	trims = 3
	third, err := checker.CheckModels(ctx, "leasys_nl", "suzuki", []string{"swift"})
	if err != nil {
		t.Fatal(err)
	}
	changed := third.ChangedModels()
	if len(changed) != 1 || changed[0] != "swift" {
		t.Fatalf("expected swift to be reported changed, got %v", changed)
	}
}

func TestCheckModelsSkipsUnreachableModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	checker := &Checker{BaseURL: srv.URL, Store: &memStore{}}
	result, err := checker.CheckModels(context.Background(), "leasys_nl", "suzuki", []string{"swift"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Models) != 0 {
		t.Fatalf("unreachable model should be skipped, got %+v", result.Models)
	}
}
