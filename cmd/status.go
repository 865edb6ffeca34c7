package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd implements: leasescan status
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue depth per provider",
	RunE: func(cmd *cobra.Command, _ []string) error {
		q, closer, err := openQueue(cmd)
		if err != nil {
			return err
		}
		defer closer()

		providers := q.Providers()
		if len(providers) == 0 {
			fmt.Println("Queue is empty")
			return nil
		}

		fmt.Printf("%-15s %8s %12s %8s %8s\n", "PROVIDER", "PENDING", "IN PROGRESS", "FAILED", "TOTAL")
		for _, p := range providers {
			s := q.Stats(p)
			fmt.Printf("%-15s %8d %12d %8d %8d\n", p, s.Pending, s.InProgress, s.Failed, s.Total)
		}
		total := q.Stats("")
		fmt.Printf("%-15s %8d %12d %8d %8d\n", "all", total.Pending, total.InProgress, total.Failed, total.Total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
