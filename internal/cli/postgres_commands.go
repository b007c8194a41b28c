package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newImportCommand(ctx context.Context, open openFunc) *cobra.Command {
	var (
		file   string
		userID string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy a JSON export into Postgres.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			export, err := readExportFile(file)
			if err != nil {
				return err
			}
			if userID == "" {
				userID = export.UserID
			}

			b, err := open(ctx, sourceOptions{UserID: userID})
			if err != nil {
				return err
			}
			defer b.Close()

			exercises, exErr := b.service.ImportExercises(ctx, b.userID, export.Exercises)
			meals, mealErr := b.service.ImportMeals(ctx, b.userID, export.Meals)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d exercises and %d meals for %s\n", exercises, meals, b.userID)
			if exErr != nil {
				return exErr
			}
			return mealErr
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "JSON export to import")
	cmd.Flags().StringVar(&userID, "user", "", "User id (default: the export's userId)")
	return cmd
}

func newProfileCommand(ctx context.Context, open openFunc) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the projected totals of a user.",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := open(ctx, sourceOptions{UserID: userID})
			if err != nil {
				return err
			}
			defer b.Close()

			p, err := b.service.Profile(ctx, b.userID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user:              %s\n", p.UserID)
			fmt.Fprintf(out, "exercise minutes:  %d\n", p.ExerciseMinutes)
			fmt.Fprintf(out, "workout days:      %s\n", strings.Join(p.WorkoutDays, ", "))
			fmt.Fprintf(out, "calories consumed: %.0f\n", p.CaloriesConsumed)
			fmt.Fprintf(out, "protein consumed:  %.0f\n", p.ProteinConsumed)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id")
	return cmd
}
