package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerdcore/filecore/internal/config"
	"github.com/nerdcore/filecore/internal/core"
	"github.com/nerdcore/filecore/internal/decision"
	"github.com/nerdcore/filecore/internal/parser"
)

var (
	responsePath string
	question     string
	sessionID    string
	dryRun       bool
	autoYes      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "parse, score, decide, and (optionally) execute a consensus response",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&responsePath, "response", "", "path to the consensus response text file (required)")
	runCmd.Flags().StringVar(&question, "question", "", "the user question that produced the response")
	runCmd.Flags().StringVar(&sessionID, "session", "", "session identifier, for history grouping")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview and decide, but never write to disk")
	runCmd.Flags().BoolVarP(&autoYes, "yes", "y", false, "answer yes to any confirmation prompt")
	runCmd.MarkFlagRequired("response")
}

func runRun(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(responsePath)
	if err != nil {
		return fmt.Errorf("failed to read response file: %w", err)
	}

	cfg, err := config.Load(resolvedConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	c, err := core.New(cfg, workspace)
	if err != nil {
		return fmt.Errorf("failed to initialize core: %w", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	opctx := parser.OperationContext{
		RepositoryPath:    workspace,
		UserQuestion:      question,
		ConsensusResponse: string(data),
		SessionID:         sessionID,
	}

	result, err := c.Process(ctx, opctx)
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	renderResult(result)

	switch result.Decision.Kind {
	case decision.Block:
		return fmt.Errorf("batch blocked: %s", result.Decision.Reason)
	case decision.RequireConfirmation:
		if !autoYes && !confirm("Execute this batch?") {
			fmt.Println("aborted")
			return nil
		}
	}

	batch, events := c.Execute(ctx, result.RecordID, result.Parsed.Operations, dryRun || cfg.Execution.DryRun)
	for ev := range events {
		if ev.Error != "" {
			fmt.Printf("  [%d] %s: %s\n", ev.Index, ev.Operation, ev.Error)
		}
	}

	if batch.Succeeded() {
		fmt.Println("batch completed successfully")
		return nil
	}

	if batch.Cancelled {
		// Core.Execute already rolled back whatever completed before ctx
		// was cancelled and recorded the Cancelled outcome.
		if batch.RolledBack {
			fmt.Println("batch cancelled; rollback complete")
		} else {
			fmt.Println("batch cancelled; rollback incomplete, inspect history for details")
		}
		return fmt.Errorf("batch was cancelled")
	}

	fmt.Println("batch failed; rolling back")
	plan, planResult := c.Rollback(ctx, result.RecordID, batch.Results)
	if planResult.FullyRolledBack {
		fmt.Println("rollback complete")
	} else {
		fmt.Println("rollback incomplete:")
		for _, entry := range plan.NonRollbackable {
			fmt.Printf("  [%d] %s: %s (%s)\n", entry.Index, entry.Path, entry.Reason, entry.MitigationHint)
		}
	}
	return fmt.Errorf("batch did not complete successfully")
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}
