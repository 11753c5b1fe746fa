package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewAskCmd создаёт команду для запросов на естественном языке.
func NewAskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   `ask "QUERY"`,
		Short: "Plan and execute a natural language request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()
			query := strings.Join(args, " ")

			if dryRun {
				resp, err := client.PlanQuery(cmd.Context(), query)
				if err != nil {
					return err
				}
				if out.JSONMode() {
					out.JSON(resp)
					return nil
				}

				out.Success(fmt.Sprintf("Plan (%s):", resp.Source))
				out.RawJSON(resp.Plan)
				if resp.Validation != nil && !resp.Validation.Valid {
					return errors.New(resp.Validation.Message)
				}
				return nil
			}

			resp, err := client.ExecuteQuery(cmd.Context(), query)
			if err != nil {
				return err
			}
			if out.JSONMode() {
				out.JSON(resp)
				return nil
			}

			out.Success(fmt.Sprintf("Plan source: %s", resp.Source))
			printRun(out, &resp.Run)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only build and validate the plan")

	return cmd
}
