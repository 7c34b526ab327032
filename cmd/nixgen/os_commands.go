package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"nixgen/internal/activation"
	"nixgen/internal/generation"
	"nixgen/internal/output"
)

type osFlags struct {
	hostname       string
	specialisation string
	outLink        string
	dryRun         bool
	ask            bool
	jsonOut        bool
}

func newOSCommand(ctx *commandContext) *cobra.Command {
	osCmd := &cobra.Command{
		Use:   "os",
		Short: "Build and activate system configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	variants := []struct {
		variant activation.Variant
		short   string
	}{
		{activation.VariantSwitch, "Build, activate now, and make the boot default"},
		{activation.VariantTest, "Build and activate now without touching the boot default"},
		{activation.VariantBoot, "Build and make the boot default without activating now"},
		{activation.VariantBuild, "Build only and report the closure path"},
	}
	for _, v := range variants {
		osCmd.AddCommand(newOSVariantCommand(ctx, v.variant, v.short))
	}
	return osCmd
}

func newOSVariantCommand(ctx *commandContext, variant activation.Variant, short string) *cobra.Command {
	flags := &osFlags{}

	cmd := &cobra.Command{
		Use:   string(variant) + " [FLAKE]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flake := ""
			if len(args) == 1 {
				flake = args[0]
			}
			return runOSVariant(cmd, ctx, variant, flake, flags)
		},
	}

	cmd.Flags().StringVar(&flags.hostname, "hostname", "", "Configuration hostname (defaults to the machine hostname)")
	cmd.Flags().StringVarP(&flags.specialisation, "specialisation", "s", "", "Activate the named specialisation")
	cmd.Flags().StringVar(&flags.outLink, "out-link", "", "Build result symlink path")
	cmd.Flags().BoolVarP(&flags.dryRun, "dry", "n", false, "Build and show the diff without activating")
	cmd.Flags().BoolVarP(&flags.ask, "ask", "a", false, "Ask for confirmation before activating")
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "Emit the outcome as JSON")

	return cmd
}

func runOSVariant(cmd *cobra.Command, ctx *commandContext, variant activation.Variant, flake string, flags *osFlags) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	profile, err := ctx.profile()
	if err != nil {
		return err
	}

	if flake == "" {
		flake = cfg.Activation.Flake
	}
	if flake == "" {
		flake = "."
	}
	hostname := flags.hostname
	if hostname == "" {
		hostname = cfg.Activation.Hostname
	}
	if hostname == "" {
		if hostname, err = os.Hostname(); err != nil {
			return fmt.Errorf("resolve hostname: %w", err)
		}
	}
	outLink := flags.outLink
	if outLink == "" {
		outLink = filepath.Join(cfg.Paths.StateDir, "result-"+profile)
	}

	client, err := ctx.nixClient()
	if err != nil {
		return err
	}
	if err := client.Preflight(cmd.Context()); err != nil {
		return err
	}

	return ctx.withStore(func(store *generation.Store) error {
		machine, err := ctx.machine(store, confirmFunc(cmd))
		if err != nil {
			return err
		}

		outcome, err := machine.Apply(cmd.Context(), activation.Request{
			Profile:        profile,
			Flake:          flake,
			Hostname:       hostname,
			Variant:        variant,
			Specialisation: flags.specialisation,
			OutLink:        outLink,
			DryRun:         flags.dryRun,
			Ask:            flags.ask,
			Stream:         streamFunc(cmd),
		})
		if err != nil {
			return err
		}

		if flags.jsonOut {
			return writeJSON(cmd, outcome)
		}
		return printOutcome(cmd, outcome, variant, flags.dryRun)
	})
}

func printOutcome(cmd *cobra.Command, outcome *activation.Outcome, variant activation.Variant, dryRun bool) error {
	out := cmd.OutOrStdout()
	if len(outcome.Diff) > 0 {
		if err := output.WriteDiff(out, outcome.Diff, output.ModeHuman); err != nil {
			return err
		}
	}
	switch {
	case dryRun:
		fmt.Fprintf(out, "Dry run: built %s, nothing activated.\n", outcome.ClosurePath)
	case variant == activation.VariantBuild:
		fmt.Fprintln(out, outcome.ClosurePath)
	case outcome.Generation != nil:
		fmt.Fprintf(out, "Activated generation %d (%s).\n", outcome.Generation.Number, outcome.ClosurePath)
	}
	return nil
}
