package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leasescan/leasescan/internal/utils"
	"github.com/leasescan/leasescan/pkg/driver"
	"github.com/leasescan/leasescan/pkg/providers"
)

// processCmd implements: leasescan process
//
// Drains the queue through the external full scraper. Interrupting with
// Ctrl-C is safe: the in-flight item reverts to pending and the rest of the
// queue survives for the next run.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process queued vehicles through the full price scraper",
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry := providers.Default()
		provider, err := requireProvider(cmd, registry)
		if err != nil {
			return err
		}
		maxItems, _ := cmd.Flags().GetInt("max-items")
		outPath, _ := cmd.Flags().GetString("out")

		command := viper.GetStringSlice("scrapers." + provider + ".command")
		if len(command) == 0 {
			p, _ := registry.Get(provider)
			command = p.ScraperCommand
		}
		if len(command) == 0 {
			return fmt.Errorf("no scraper command configured for %s (set scrapers.%s.command in the config)", provider, provider)
		}

		q, closer, err := openQueue(cmd)
		if err != nil {
			return err
		}
		defer closer()

		pending := q.PendingCount(provider)
		if pending == 0 {
			fmt.Printf("Queue empty for %s, nothing to do\n", provider)
			return nil
		}
		utils.Log.Infof("Processing %d pending items for %s", pending, provider)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := driver.ProcessQueue(ctx, driver.Config{
			Queue:    q,
			Scraper:  &driver.CommandScraper{Command: command},
			Provider: provider,
			MaxItems: maxItems,
			Log:      utils.Log,
		})
		interrupted := errors.Is(err, context.Canceled)
		if err != nil && !interrupted {
			return err
		}

		if outPath != "" && len(result.Offers) > 0 {
			data, merr := json.MarshalIndent(result.Offers, "", "  ")
			if merr != nil {
				return merr
			}
			if werr := os.WriteFile(outPath, data, 0644); werr != nil {
				return werr
			}
			fmt.Printf("Wrote %d offers to %s\n", len(result.Offers), outPath)
		}

		fmt.Printf("\nProcessed: %d completed, %d failed, %d still pending\n",
			result.Completed, result.Failed, q.PendingCount(provider))
		if interrupted {
			fmt.Println("Interrupted; remaining items stay queued for the next run")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().String("provider", "", "Provider whose queue to process (e.g. toyota_nl)")
	processCmd.Flags().Int("max-items", 0, "Stop after this many items (0 = drain the queue)")
	processCmd.Flags().String("out", "", "Write the scraped offers to this JSON file")
}
