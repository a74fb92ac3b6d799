package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerdcore/filecore/internal/config"
	"github.com/nerdcore/filecore/internal/core"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "show history statistics and the current learning weights",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolvedConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	c, err := core.New(cfg, workspace)
	if err != nil {
		return fmt.Errorf("failed to initialize core: %w", err)
	}
	defer c.Close()

	stats, err := c.Statistics()
	if err != nil {
		return fmt.Errorf("failed to read history statistics: %w", err)
	}

	fmt.Println(styleHeading.Render("History"))
	fmt.Printf("  total records:     %d\n", stats.TotalRecords)
	fmt.Printf("  succeeded:         %d\n", stats.SucceededCount)
	fmt.Printf("  failed:            %d\n", stats.FailedCount)
	fmt.Printf("  rolled back:       %d\n", stats.RolledBackCount)
	fmt.Printf("  auto-executed:     %d\n", stats.AutoExecuteCount)
	fmt.Printf("  success rate:      %.1f%%\n", stats.SuccessRate*100)

	w := c.Weights()
	fmt.Println()
	fmt.Println(styleHeading.Render("Scoring weights"))
	fmt.Printf("  historical=%.3f pattern=%.3f context=%.3f quality=%.3f\n", w.Historical, w.Pattern, w.Context, w.Quality)
	fmt.Printf("  feasibility=%.3f user_trust=%.3f complexity=%.3f\n", w.Feasibility, w.UserTrust, w.Complexity)

	return nil
}
