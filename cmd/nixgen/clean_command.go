package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"nixgen/internal/generation"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var keepLast int
	var keepSince string
	var keepSpecialisations bool
	var dryRun bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove old generations per the retention policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			profile, err := ctx.profile()
			if err != nil {
				return err
			}

			policy := generation.Policy{
				KeepLast:            cfg.Clean.KeepLast,
				KeepNewerThan:       time.Duration(cfg.Clean.KeepSinceDays) * 24 * time.Hour,
				KeepSpecialisations: cfg.Clean.KeepSpecialisations,
			}
			if cmd.Flags().Changed("keep") {
				policy.KeepLast = keepLast
			}
			if cmd.Flags().Changed("keep-since") {
				window, err := parsePeriod(keepSince)
				if err != nil {
					return err
				}
				policy.KeepNewerThan = window
			}
			if cmd.Flags().Changed("keep-specialisations") {
				policy.KeepSpecialisations = keepSpecialisations
			}

			return ctx.withStore(func(store *generation.Store) error {
				var removed []*generation.Generation
				if dryRun {
					removed, err = store.PrunePreview(cmd.Context(), profile, policy)
				} else {
					var lock *generation.ProfileLock
					lock, err = store.LockProfile(profile)
					if err != nil {
						return err
					}
					defer lock.Unlock()
					removed, err = store.Prune(cmd.Context(), profile, policy)
				}
				if err != nil {
					return err
				}

				if jsonOut {
					if removed == nil {
						removed = []*generation.Generation{}
					}
					return writeJSON(cmd, removed)
				}

				out := cmd.OutOrStdout()
				if len(removed) == 0 {
					fmt.Fprintln(out, "Nothing to remove.")
					return nil
				}
				verb := "Removed"
				if dryRun {
					verb = "Would remove"
				}
				rows := make([][]string, 0, len(removed))
				for _, gen := range removed {
					rows = append(rows, []string{
						strconv.FormatUint(gen.Number, 10),
						string(gen.Status),
						gen.ClosurePath,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Gen", "Status", "Closure"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft},
				))
				fmt.Fprintf(out, "%s %d generation(s).\n", verb, len(removed))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&keepLast, "keep", 0, "Keep this many recent generations")
	cmd.Flags().StringVar(&keepSince, "keep-since", "", "Keep generations newer than this period (e.g. 24h, 30d, 2w)")
	cmd.Flags().BoolVar(&keepSpecialisations, "keep-specialisations", false, "Keep generations with a specialisation")
	cmd.Flags().BoolVarP(&dryRun, "dry", "n", false, "Show what would be removed without removing")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit removed generations as JSON")
	return cmd
}
