package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewPlanCmd создаёт группу команд для работы с файлами планов.
func NewPlanCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Validate and execute plan files",
	}

	cmd.AddCommand(
		newPlanValidateCmd(clientFn, outputFn),
		newPlanExecuteCmd(clientFn, outputFn),
		newPlanSubmitCmd(clientFn, outputFn),
	)

	return cmd
}

func newPlanValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Dry run a plan without invoking functions",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := readPlanFile(cmd, file)
			if err != nil {
				return err
			}

			report, err := clientFn().ValidatePlan(cmd.Context(), plan)
			if err != nil {
				return err
			}

			out := outputFn()
			printReport(out, report)
			if !report.Valid {
				return errors.New(report.Message)
			}
			out.Success(report.Message)
			return nil
		},
	}

	addFileFlag(cmd, &file)
	return cmd
}

func newPlanExecuteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Execute a plan and wait for the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := readPlanFile(cmd, file)
			if err != nil {
				return err
			}

			run, err := clientFn().ExecutePlan(cmd.Context(), plan)
			if err != nil {
				return err
			}

			printRun(outputFn(), run)
			return nil
		},
	}

	addFileFlag(cmd, &file)
	return cmd
}

func newPlanSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Queue a plan for asynchronous execution",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := readPlanFile(cmd, file)
			if err != nil {
				return err
			}

			run, err := clientFn().SubmitPlan(cmd.Context(), plan)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Run submitted: %s", run.ID))
			out.Print(
				[]string{"ID", "STATUS", "CREATED"},
				[][]string{{run.ID, run.Status, run.CreatedAt}},
				run,
			)
			return nil
		},
	}

	addFileFlag(cmd, &file)
	return cmd
}

func addFileFlag(cmd *cobra.Command, file *string) {
	cmd.Flags().StringVarP(file, "file", "f", "", "Plan file in JSON or YAML (- for stdin)")
	cmd.MarkFlagRequired("file")
}

// readPlanFile читает план из файла или stdin.
// Формат определяется по расширению: .yaml и .yml считаются YAML.
func readPlanFile(cmd *cobra.Command, path string) (PlanFile, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return PlanFile{}, fmt.Errorf("failed to read plan: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	return PlanFile{Data: data, YAML: ext == ".yaml" || ext == ".yml"}, nil
}

func printReport(out *Output, report *PlanReportResponse) {
	headers := []string{"STEP", "FUNCTION", "OK", "ERROR"}
	rows := make([][]string, len(report.Steps))
	for i, s := range report.Steps {
		rows[i] = []string{strconv.Itoa(s.Step), s.Function, strconv.FormatBool(s.OK), s.Error.String()}
	}
	out.Print(headers, rows, report)
}

func printRun(out *Output, run *RunResponse) {
	if out.JSONMode() {
		out.JSON(run)
		return
	}

	if run.Result != nil {
		headers := []string{"STEP", "FUNCTION", "OUTCOME", "ERROR"}
		rows := make([][]string, len(run.Result.StepResults))
		for i, s := range run.Result.StepResults {
			rows[i] = []string{strconv.Itoa(s.Step), s.Function, s.Outcome, s.Error.String()}
		}
		out.Table(headers, rows)
	}

	if run.Summary != "" {
		out.Text("\n" + run.Summary)
	}
	if run.Error != "" {
		out.Error(run.Error)
	}
	out.Success(fmt.Sprintf("Run %s: %s", run.ID, run.Status))
}
