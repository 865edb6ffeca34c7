package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leasescan/leasescan/pkg/providers"
)

// addCmd implements: leasescan add
//
// Manually queues one vehicle, bypassing change detection. Useful for
// re-scraping a single listing after a bad run.
var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Manually queue one vehicle for a full scrape",
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry := providers.Default()
		provider, err := requireProvider(cmd, registry)
		if err != nil {
			return err
		}
		priorityName, _ := cmd.Flags().GetString("priority")
		priority, err := parsePriority(priorityName)
		if err != nil {
			return err
		}

		payload, err := loadVehiclePayload(cmd)
		if err != nil {
			return err
		}

		q, closer, err := openQueue(cmd)
		if err != nil {
			return err
		}
		defer closer()

		item, err := q.Add(context.Background(), payload, provider, priority, "manual")
		if err != nil {
			return err
		}
		fmt.Printf("Queued %s (%s, priority %s)\n", item.Fingerprint.Label(), item.UniqueKey(), item.Priority)
		return nil
	},
}

// loadVehiclePayload builds the vehicle payload from --json, or from the
// individual field flags when no file is given.
func loadVehiclePayload(cmd *cobra.Command) (map[string]any, error) {
	if path, _ := cmd.Flags().GetString("json"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var payload map[string]any
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return payload, nil
	}

	brand, _ := cmd.Flags().GetString("brand")
	model, _ := cmd.Flags().GetString("model")
	if brand == "" || model == "" {
		return nil, fmt.Errorf("either --json or both --brand and --model are required")
	}
	payload := map[string]any{
		"brand": brand,
		"model": model,
	}
	if edition, _ := cmd.Flags().GetString("edition"); edition != "" {
		payload["edition_name"] = edition
	}
	if variant, _ := cmd.Flags().GetString("variant"); variant != "" {
		payload["variant_slug"] = variant
	}
	if url, _ := cmd.Flags().GetString("url"); url != "" {
		payload["url"] = url
	}
	return payload, nil
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().String("provider", "", "Provider the vehicle belongs to (e.g. toyota_nl)")
	addCmd.Flags().String("priority", "high", "Queue priority: critical, high, normal, low")
	addCmd.Flags().String("json", "", "JSON file holding the full vehicle payload")
	addCmd.Flags().String("brand", "", "Vehicle brand (when not using --json)")
	addCmd.Flags().String("model", "", "Vehicle model (when not using --json)")
	addCmd.Flags().String("edition", "", "Edition name")
	addCmd.Flags().String("variant", "", "Variant slug")
	addCmd.Flags().String("url", "", "Listing URL")
}
