package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leasescan/leasescan/internal/utils"
	"github.com/leasescan/leasescan/pkg/detect"
	"github.com/leasescan/leasescan/pkg/fingerprint"
	"github.com/leasescan/leasescan/pkg/overview"
	"github.com/leasescan/leasescan/pkg/providers"
)

// detectCmd implements: leasescan detect
//
// Compares an overview scan against the cached price data and reports which
// vehicles are new, changed, stale, removed or unchanged. Read-only: nothing
// is queued.
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect changes between an overview scan and cached price data",
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry := providers.Default()
		provider, err := requireProvider(cmd, registry)
		if err != nil {
			return err
		}
		source, _ := cmd.Flags().GetString("overview")
		brand, _ := cmd.Flags().GetString("brand")
		freshnessDays, _ := cmd.Flags().GetInt("freshness-days")
		if freshnessDays <= 0 {
			freshnessDays = viper.GetInt("freshness_days")
		}

		payloads, err := overview.Load(source)
		if err != nil {
			return err
		}
		utils.Log.Infof("Loaded %d overview vehicles for %s", len(payloads), provider)

		detector := detect.NewDetector(newCacheReader(cmd, registry), freshnessDays, detect.WithLogger(utils.Log))
		result, err := detector.DetectChanges(payloads, provider, brand)
		if err != nil {
			return err
		}

		fmt.Printf("\n--- Change detection: %s ---\n", provider)
		fmt.Printf("Freshness threshold: %d days\n", freshnessDays)
		fmt.Println(result.Summary())
		printBucket("New vehicles", "+", result.New)
		printBucket("Changed vehicles", "~", result.Changed)
		printBucket("Stale vehicles", "*", result.Stale)
		printBucket("Removed vehicles", "-", result.Removed)
		fmt.Printf("\nTotal needing price scrape: %d\n", len(result.NeedsScraping()))
		return nil
	},
}

// printBucket lists the first few fingerprints of one category.
func printBucket(title, marker string, fps []fingerprint.Fingerprint) {
	if len(fps) == 0 {
		return
	}
	const maxShown = 10
	fmt.Printf("\n%s:\n", title)
	for i, fp := range fps {
		if i == maxShown {
			fmt.Printf("  ... and %d more\n", len(fps)-maxShown)
			break
		}
		fmt.Printf("  %s %s\n", marker, fp.Label())
	}
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().String("provider", "", "Provider to check (e.g. toyota_nl)")
	detectCmd.Flags().String("brand", "", "Restrict detection to one brand (for multi-brand providers)")
	detectCmd.Flags().String("overview", "", "Overview scan source: JSON file path or URL")
	detectCmd.Flags().Int("freshness-days", 0, "Days before a cached offer counts as stale (default from config)")
	_ = detectCmd.MarkFlagRequired("overview")
}
