package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/cobra"

	"github.com/leasescan/leasescan/internal/utils"
	"github.com/leasescan/leasescan/pkg/providers"
	"github.com/leasescan/leasescan/pkg/quickcheck"
)

// quickcheckCmd implements: leasescan quickcheck
//
// Probes the configuration counts on a provider's model pages and compares
// them against the stored hashes. Far cheaper than a full detection pass:
// one GET per model instead of one per vehicle.
var quickcheckCmd = &cobra.Command{
	Use:   "quickcheck",
	Short: "Probe model pages for configuration changes without a full scan",
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry := providers.Default()
		providerID, err := requireProvider(cmd, registry)
		if err != nil {
			return err
		}
		p, _ := registry.Get(providerID)
		if p.QuickCheckBaseURL == "" {
			return fmt.Errorf("provider %s does not support quick checks", providerID)
		}

		brandFlag, _ := cmd.Flags().GetString("brand")
		brands := p.Brands
		if brandFlag != "" {
			brands = []string{brandFlag}
		}

		db, closer, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closer()

		client := retryablehttp.NewClient()
		client.RetryMax = 3
		client.Logger = log.New(io.Discard, "", 0)

		checker := &quickcheck.Checker{
			BaseURL: p.QuickCheckBaseURL,
			Client:  client,
			Store:   db,
			Log:     utils.Log,
		}

		ctx := context.Background()
		anyChanged := false
		for _, brand := range brands {
			models := p.Models[brand]
			if len(models) == 0 {
				utils.Log.Warnf("No models configured for %s/%s, skipping", providerID, brand)
				continue
			}
			result, err := checker.CheckModels(ctx, providerID, brand, models)
			if err != nil {
				return err
			}

			fmt.Printf("\n--- Quick check: %s/%s (%d models, %s) ---\n",
				providerID, brand, len(result.Models), result.Elapsed.Round(time.Millisecond))
			for _, m := range result.Models {
				marker := " "
				if m.Changed {
					marker = "~"
					anyChanged = true
				}
				fmt.Printf("  %s %-25s trims=%d engines=%d colors=%d\n",
					marker, m.Model, m.Counts.Trims, m.Counts.Engines, m.Counts.Colors)
			}
			if changed := result.ChangedModels(); len(changed) > 0 {
				fmt.Printf("Changed models: %v\n", changed)
			}
		}

		if anyChanged {
			fmt.Println("\nConfiguration changes detected; run a full detection pass")
		} else {
			fmt.Println("\nNo configuration changes detected")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(quickcheckCmd)
	quickcheckCmd.Flags().String("provider", "", "Provider to quick-check (e.g. leasys_nl)")
	quickcheckCmd.Flags().String("brand", "", "Restrict the check to one brand")
}
