package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nerdcore/filecore/internal/core"
	"github.com/nerdcore/filecore/internal/decision"
	"github.com/nerdcore/filecore/internal/diff"
	"github.com/nerdcore/filecore/internal/preview"
	"github.com/nerdcore/filecore/internal/validate"
)

// Color palette adapted from the teacher CLI's brand styles, pared down to
// what a one-shot terminal report needs.
var (
	colorDestructive = lipgloss.Color("#e53935")
	colorSuccess     = lipgloss.Color("#8BC34A")
	colorWarning     = lipgloss.Color("#FFC107")
	colorInfo        = lipgloss.Color("#2196F3")
	colorMuted       = lipgloss.Color("#9aa0a6")

	styleHeading     = lipgloss.NewStyle().Bold(true).Underline(true)
	styleBlock       = lipgloss.NewStyle().Foreground(colorDestructive).Bold(true)
	styleAutoExecute = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleConfirm     = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	styleMuted       = lipgloss.NewStyle().Foreground(colorMuted)
	styleAdded       = lipgloss.NewStyle().Foreground(colorSuccess)
	styleRemoved     = lipgloss.NewStyle().Foreground(colorDestructive)
)

func decisionKindLabel(k decision.DecisionKind) string {
	switch k {
	case decision.AutoExecute:
		return styleAutoExecute.Render("AUTO-EXECUTE")
	case decision.RequireConfirmation:
		return styleConfirm.Render("REQUIRES CONFIRMATION")
	case decision.Block:
		return styleBlock.Render("BLOCKED")
	default:
		return "UNKNOWN"
	}
}

func riskLabel(r preview.RiskLevel) string {
	switch r {
	case preview.RiskHigh:
		return styleBlock.Render("high")
	case preview.RiskMedium:
		return styleConfirm.Render("medium")
	default:
		return styleMuted.Render("low")
	}
}

// renderResult prints the batch preview, score, and decision for a
// core.Result to stdout.
func renderResult(result *core.Result) {
	fmt.Println(styleHeading.Render(fmt.Sprintf("Parsed %d operation(s), confidence %.1f",
		len(result.Parsed.Operations), result.Parsed.OverallConfidence)))

	if len(result.Parsed.UnparsedBlocks) > 0 {
		fmt.Println(styleMuted.Render(fmt.Sprintf("  %d block(s) could not be classified", len(result.Parsed.UnparsedBlocks))))
	}

	for _, op := range result.Preview.Operations {
		renderOperationPreview(op)
	}

	fmt.Println()
	fmt.Println(styleHeading.Render("Validation"))
	for _, check := range result.Report.Checks {
		if check.Status == validate.StatusPass {
			continue
		}
		fmt.Printf("  [%s/%s] %s\n", check.Category, check.Severity, check.Message)
	}
	if result.Report.SecurityViolation {
		fmt.Println(styleBlock.Render("  security violation detected"))
	}

	fmt.Println()
	fmt.Printf("Confidence: %.1f  Risk: %.1f\n", result.Score.Confidence, result.Score.Risk)
	fmt.Printf("Decision: %s — %s\n", decisionKindLabel(result.Decision.Kind), result.Decision.Reason)
	for _, w := range result.Decision.Warnings {
		fmt.Println(styleConfirm.Render("  warning: " + w))
	}
	for _, ci := range result.Decision.CriticalIssues {
		fmt.Println(styleBlock.Render("  critical: " + ci))
	}
}

func renderOperationPreview(op preview.OperationPreview) {
	fmt.Printf("\n[%d] %s %s (risk: %s)\n", op.Index, op.Operation.Kind, op.Operation.Path, riskLabel(op.Impact.RiskLevel))
	if op.Diff == nil {
		return
	}
	for _, hunk := range op.Diff.Hunks {
		for _, line := range hunk.Lines {
			text := strings.TrimSuffix(line.Content, "\n")
			switch line.Type {
			case diff.LineAdded:
				fmt.Println(styleAdded.Render("  + " + text))
			case diff.LineRemoved:
				fmt.Println(styleRemoved.Render("  - " + text))
			default:
				fmt.Println(styleMuted.Render("    " + text))
			}
		}
	}
}
