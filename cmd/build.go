package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leasescan/leasescan/internal/utils"
	"github.com/leasescan/leasescan/pkg/detect"
	"github.com/leasescan/leasescan/pkg/overview"
	"github.com/leasescan/leasescan/pkg/providers"
)

// buildCmd implements: leasescan build
//
// Runs change detection like detect, then enqueues everything that needs a
// full scrape. New vehicles go in as critical, changed as high, stale as
// normal.
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Detect changes and enqueue the vehicles that need a full scrape",
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
		fmt.Println(result.Summary())

		q, closer, err := openQueue(cmd)
		if err != nil {
			return err
		}
		defer closer()

		ctx := context.Background()
		added, err := detect.EnqueueResult(ctx, q, result, payloads, provider)
		if err != nil {
			return err
		}

		stats := q.Stats(provider)
		fmt.Printf("\nEnqueued %d vehicles for %s\n", added, provider)
		fmt.Printf("Queue: %d pending, %d in progress, %d failed\n",
			stats.Pending, stats.InProgress, stats.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().String("provider", "", "Provider to build the queue for (e.g. toyota_nl)")
	buildCmd.Flags().String("brand", "", "Restrict detection to one brand (for multi-brand providers)")
	buildCmd.Flags().String("overview", "", "Overview scan source: JSON file path or URL")
	buildCmd.Flags().Int("freshness-days", 0, "Days before a cached offer counts as stale (default from config)")
	_ = buildCmd.MarkFlagRequired("overview")
}
