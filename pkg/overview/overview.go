package overview

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

// Load reads overview scan payloads from a local JSON file or, when source
// starts with http:// or https://, from a URL. The discovery scraping itself
// happens outside this tool; its output is handed in here.
func Load(source string) ([]map[string]any, error) {
	var raw []byte
	var err error
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		raw, err = fetch(source)
	} else {
		raw, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("loading overview from %s: %w", source, err)
	}

	var payloads []map[string]any
	if err := json.Unmarshal(raw, &payloads); err != nil {
		return nil, fmt.Errorf("parsing overview from %s: expected a JSON array of vehicles: %w", source, err)
	}
	return payloads, nil
}

func fetch(url string) ([]byte, error) {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = 3

	res, err := retryClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", res.StatusCode)
	}
	return io.ReadAll(res.Body)
}
