package engine

import (
	"fmt"
	"strings"

	"github.com/shaiso/Sequencer/internal/domain"
)

// maxSummaryValue — максимальная длина значения в текстовом отчёте.
const maxSummaryValue = 200

// Summarize возвращает текстовый отчёт о выполнении плана.
//
//	✓ step 0 get_invoices -> output_0
//	✗ step 1 divide_numbers: function execution failed: division by zero
//	- step 2 uppercase_string: skipped
func Summarize(res *domain.ExecutionResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Plan %s: %d/%d steps succeeded\n",
		res.Status, res.Count(domain.OutcomeSucceeded), len(res.Steps))

	for _, s := range res.Steps {
		switch s.Outcome {
		case domain.OutcomeSucceeded:
			fmt.Fprintf(&b, "✓ step %d %s -> %s", s.Index, s.Function, domain.OutputName(s.Index))
			if s.OutputVar != "" {
				fmt.Fprintf(&b, " ($%s)", s.OutputVar)
			}
			b.WriteByte('\n')
		case domain.OutcomeFailed:
			msg := ""
			if s.Error != nil {
				msg = s.Error.Message
				if s.Error.Cause != "" {
					msg += " (caused by: " + s.Error.Cause + ")"
				}
			}
			fmt.Fprintf(&b, "✗ step %d %s: %s\n", s.Index, s.Function, msg)
		default:
			fmt.Fprintf(&b, "- step %d %s: skipped\n", s.Index, s.Function)
		}
	}

	if res.FinalOutput != nil {
		fmt.Fprintf(&b, "Final output (step %d): %s\n", res.FinalStep, truncate(res.FinalOutput.String(), maxSummaryValue))
	} else if res.Error != nil {
		fmt.Fprintf(&b, "Error: %s\n", res.Error.Message)
	}

	return strings.TrimRight(b.String(), "\n")
}

// SummarizeReport возвращает текстовый отчёт dry run.
func SummarizeReport(report *domain.PlanReport) string {
	var b strings.Builder

	b.WriteString(report.Message)
	b.WriteByte('\n')

	for _, s := range report.Steps {
		mark := "✓"
		if !s.OK {
			mark = "✗"
		}
		fmt.Fprintf(&b, "%s step %d %s", mark, s.Index, s.Function)
		if s.Error != nil {
			fmt.Fprintf(&b, ": %s (%s)", s.Error.Message, s.Error.Kind)
		}
		b.WriteByte('\n')
		for _, w := range s.Warnings {
			fmt.Fprintf(&b, "    warning: %s\n", w)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
