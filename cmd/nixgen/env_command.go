package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"nixgen/internal/output"
	"nixgen/internal/runner"
	"nixgen/internal/services"
)

func newEnvCommand(ctx *commandContext) *cobra.Command {
	var fileFlag string
	var exportOut bool
	var jsonOut bool
	var writePath string

	cmd := &cobra.Command{
		Use:   "env [-- COMMAND [ARGS...]]",
		Short: "Capture an environment and re-emit it for shells, files, or machines",
		Long: "Captures NAME=value pairs from a file, from standard input, or from the\n" +
			"standard output of a command, then renders them in the requested format.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			var env *output.EnvironmentMap
			switch {
			case len(args) > 0:
				res, err := ctx.exec.Run(cmd.Context(), args[0], args[1:], runner.Options{Logger: logger})
				if err != nil {
					return err
				}
				if res.ExitCode != 0 {
					return fmt.Errorf("%s exited with code %d", args[0], res.ExitCode)
				}
				env, err = output.ParseEnvironment(strings.NewReader(strings.Join(res.Stdout, "\n")), logger)
				if err != nil {
					return err
				}
			case fileFlag != "":
				f, err := os.Open(fileFlag)
				if err != nil {
					return fmt.Errorf("open %s: %w", fileFlag, err)
				}
				defer f.Close()
				if env, err = output.ParseEnvironment(f, logger); err != nil {
					return err
				}
			default:
				if env, err = output.ParseEnvironment(cmd.InOrStdin(), logger); err != nil {
					return err
				}
			}

			if exportOut && jsonOut {
				return services.Wrap(nil, "env", "render", "--export and --json are mutually exclusive", nil)
			}
			mode := output.ModeHuman
			switch {
			case exportOut:
				mode = output.ModeShellExport
			case jsonOut:
				mode = output.ModeJSON
			}

			if writePath != "" {
				fileMode := mode
				if fileMode == output.ModeHuman {
					fileMode = output.ModeFileLines
				}
				return env.WriteEnvironmentFile(writePath, fileMode)
			}
			return env.WriteEnvironment(cmd.OutOrStdout(), mode)
		},
	}

	cmd.Flags().StringVarP(&fileFlag, "file", "f", "", "Read the environment from a file instead of stdin")
	cmd.Flags().BoolVar(&exportOut, "export", false, "Emit shell export lines")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit a JSON object with sorted keys")
	cmd.Flags().StringVarP(&writePath, "write", "w", "", "Write the rendering to a file")
	return cmd
}
