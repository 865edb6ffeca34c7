package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/leasescan/leasescan/pkg/queue"
)

// CommandScraper bridges to an external full-scrape process, typically the
// provider's browser automation. The vehicle payload is written to the
// command's stdin as JSON; the command must print the complete priced offer
// as a JSON object on stdout.
type CommandScraper struct {
	// Command is the program and its fixed arguments, e.g.
	// ["python3", "scrape_full.py", "--provider", "toyota_nl"].
	Command []string
}

func (c *CommandScraper) ScrapeFull(ctx context.Context, item *queue.Item) (map[string]any, error) {
	if len(c.Command) == 0 {
		return nil, errors.New("no scraper command configured")
	}

	payload, err := json.Marshal(item.VehicleData)
	if err != nil {
		return nil, fmt.Errorf("encoding vehicle payload: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.Command[0], c.Command[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("scraper command failed: %w", err)
		}
		return nil, fmt.Errorf("scraper command failed: %w: %s", err, msg)
	}

	var offer map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &offer); err != nil {
		return nil, fmt.Errorf("parsing scraper output: %w", err)
	}
	return offer, nil
}
