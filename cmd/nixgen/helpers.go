package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"nixgen/internal/activation"
	"nixgen/internal/runner"
)

// confirmFunc builds the interactive confirmation hook for a command. On a
// non-interactive stdin the answer is a decline, never a silent approval.
func confirmFunc(cmd *cobra.Command) activation.ConfirmFunc {
	return func(_ context.Context, prompt string) (bool, error) {
		stdin := cmd.InOrStdin()
		if f, ok := stdin.(*os.File); ok && !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Confirmation required but stdin is not a terminal; aborting.")
			return false, nil
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N] ", prompt)
		reader := bufio.NewReader(stdin)
		answer, err := reader.ReadString('\n')
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	}
}

// streamFunc echoes subprocess output to the command's stderr so build and
// activation progress stays visible.
func streamFunc(cmd *cobra.Command) func(runner.Line) {
	return func(line runner.Line) {
		fmt.Fprintln(cmd.ErrOrStderr(), line.Text)
	}
}

// parsePeriod parses retention periods like "24h", "30d", or "2w".
func parsePeriod(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	unit := value[len(value)-1]
	if unit == 'd' || unit == 'w' {
		n, err := strconv.Atoi(value[:len(value)-1])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid period %q", value)
		}
		switch unit {
		case 'd':
			return time.Duration(n) * 24 * time.Hour, nil
		case 'w':
			return time.Duration(n) * 7 * 24 * time.Hour, nil
		}
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid period %q", value)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid period %q", value)
	}
	return d, nil
}

func formatAge(t time.Time, now time.Time) string {
	age := now.Sub(t)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}
