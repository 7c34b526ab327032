package main

import (
	"github.com/spf13/cobra"

	"nixgen/internal/closure"
	"nixgen/internal/output"
)

func newDiffCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Compare the component sets of two closures",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := ctx.resolver()
			if err != nil {
				return err
			}
			before, err := resolver(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			after, err := resolver(cmd.Context(), args[1])
			if err != nil {
				return err
			}

			entries := closure.Diff(before, after)
			mode := output.ModeHuman
			if jsonOut {
				mode = output.ModeJSON
			}
			return output.WriteDiff(cmd.OutOrStdout(), entries, mode)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the diff as JSON")
	return cmd
}
