package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewFunctionsCmd создаёт группу команд для каталога функций.
func NewFunctionsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "functions",
		Short: "Inspect the function registry",
	}

	cmd.AddCommand(newFunctionsListCmd(clientFn, outputFn))

	return cmd
}

func newFunctionsListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered functions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			fns, err := client.ListFunctions(cmd.Context())
			if err != nil {
				return err
			}

			headers := []string{"NAME", "INPUTS", "OUTPUTS", "DESCRIPTION"}
			rows := make([][]string, len(fns))
			for i, f := range fns {
				rows[i] = []string{f.Name, paramList(f.Inputs), paramList(f.Outputs), f.Description}
			}

			out.Print(headers, rows, fns)
			return nil
		},
	}
}

func paramList(params []ParamResponse) string {
	if len(params) == 0 {
		return "-"
	}
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
		if p.Optional {
			names[i] += "?"
		}
	}
	return strings.Join(names, ",")
}
