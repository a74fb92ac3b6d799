package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nerdcore/filecore/internal/config"
	"github.com/nerdcore/filecore/internal/core"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <record-id>",
	Short: "undo a previously executed batch, using its recorded backups",
	Args:  cobra.ExactArgs(1),
	RunE:  runRollback,
}

func runRollback(cmd *cobra.Command, args []string) error {
	recordID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid record id %q: %w", args[0], err)
	}

	cfg, err := config.Load(resolvedConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	c, err := core.New(cfg, workspace)
	if err != nil {
		return fmt.Errorf("failed to initialize core: %w", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	plan, planResult, err := c.RollbackRecord(ctx, recordID)
	if err != nil {
		return err
	}

	fmt.Printf("rollback plan %s\n", plan.ID)
	for _, step := range planResult.Steps {
		status := "ok"
		if !step.Succeeded {
			status = "FAILED: " + step.Error
		}
		fmt.Printf("  [%d] %s (%d attempt(s))\n", step.Index, status, step.Attempts)
	}
	for _, entry := range plan.NonRollbackable {
		fmt.Printf("  [%d] %s: %s (%s)\n", entry.Index, entry.Path, entry.Reason, entry.MitigationHint)
	}

	if planResult.FullyRolledBack {
		fmt.Println(styleAutoExecute.Render("rollback complete"))
		return nil
	}
	fmt.Println(styleBlock.Render("rollback incomplete"))
	return fmt.Errorf("record %d could not be fully rolled back", recordID)
}
