package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"nixgen/internal/generation"
)

func newGenerationsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:     "generations",
		Aliases: []string{"list"},
		Short:   "List recorded generations for a profile",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := ctx.profile()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *generation.Store) error {
				generations, err := store.List(cmd.Context(), profile)
				if err != nil {
					return err
				}
				if jsonOut {
					if generations == nil {
						generations = []*generation.Generation{}
					}
					return writeJSON(cmd, generations)
				}
				if len(generations) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No generations recorded for profile %q.\n", profile)
					return nil
				}

				now := time.Now()
				rows := make([][]string, 0, len(generations))
				for _, gen := range generations {
					marker := ""
					if gen.Status == generation.StatusActive {
						marker = "*"
					}
					rows = append(rows, []string{
						marker,
						strconv.FormatUint(gen.Number, 10),
						string(gen.Status),
						formatAge(gen.CreatedAt, now),
						gen.Specialisation,
						gen.ClosurePath,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"", "Gen", "Status", "Created", "Specialisation", "Closure"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit generations as JSON")
	return cmd
}
