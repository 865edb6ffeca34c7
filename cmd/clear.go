package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// clearCmd implements: leasescan clear
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove queued vehicles for a provider, or the whole queue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		provider, _ := cmd.Flags().GetString("provider")
		force, _ := cmd.Flags().GetBool("force")

		q, closer, err := openQueue(cmd)
		if err != nil {
			return err
		}
		defer closer()

		target := provider
		if target == "" {
			target = "all providers"
		}
		total := q.Stats(provider).Total
		if total == 0 {
			fmt.Printf("Nothing queued for %s\n", target)
			return nil
		}

		if !force {
			fmt.Printf("Remove %d queued items for %s? [y/N] ", total, target)
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(answer)) != "y" {
				fmt.Println("Aborted")
				return nil
			}
		}

		if err := q.Clear(context.Background(), provider); err != nil {
			return err
		}
		fmt.Printf("Cleared %d items for %s\n", total, target)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
	clearCmd.Flags().String("provider", "", "Provider to clear (empty = the whole queue)")
	clearCmd.Flags().Bool("force", false, "Skip the confirmation prompt")
}
