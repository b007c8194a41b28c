// Package cli implements the juno command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the top-level Cobra command.
func NewRootCommand(ctx context.Context) *cobra.Command {
	return newRootCommand(ctx, openBackend)
}

func newRootCommand(ctx context.Context, open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "juno",
		Short:         "Review exercise and meal logs grouped by day.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newDailyCommand(ctx, open),
		newImportCommand(ctx, open),
		newProfileCommand(ctx, open),
	)
	return cmd
}

// Main is used by cmd/juno/main.go to keep wiring contained in one package.
func Main(ctx context.Context) {
	if err := NewRootCommand(ctx).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
