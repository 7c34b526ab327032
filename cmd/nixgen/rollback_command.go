package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nixgen/internal/activation"
	"nixgen/internal/generation"
	"nixgen/internal/output"
)

func newRollbackCommand(ctx *commandContext) *cobra.Command {
	var toFlag uint64
	var dryRun bool
	var ask bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Re-activate an earlier generation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := ctx.profile()
			if err != nil {
				return err
			}

			var to *uint64
			if cmd.Flags().Changed("to") {
				to = &toFlag
			}

			return ctx.withStore(func(store *generation.Store) error {
				machine, err := ctx.machine(store, confirmFunc(cmd))
				if err != nil {
					return err
				}
				outcome, err := machine.Rollback(cmd.Context(), activation.RollbackRequest{
					Profile: profile,
					To:      to,
					DryRun:  dryRun,
					Ask:     ask,
					Stream:  streamFunc(cmd),
				})
				if err != nil {
					return err
				}

				if jsonOut {
					return writeJSON(cmd, outcome)
				}
				out := cmd.OutOrStdout()
				if len(outcome.Diff) > 0 {
					if err := output.WriteDiff(out, outcome.Diff, output.ModeHuman); err != nil {
						return err
					}
				}
				if dryRun {
					fmt.Fprintf(out, "Dry run: would roll back to generation %d.\n", outcome.Generation.Number)
					return nil
				}
				fmt.Fprintf(out, "Rolled back to generation %d (%s).\n", outcome.Generation.Number, outcome.ClosurePath)
				return nil
			})
		},
	}

	cmd.Flags().Uint64Var(&toFlag, "to", 0, "Roll back to a specific generation number")
	cmd.Flags().BoolVarP(&dryRun, "dry", "n", false, "Show the target and diff without acting")
	cmd.Flags().BoolVarP(&ask, "ask", "a", false, "Ask for confirmation before activating")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the outcome as JSON")
	return cmd
}
