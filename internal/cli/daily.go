package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/itayakad/juno-master/internal/aggregate"
	"github.com/itayakad/juno-master/internal/domain"
	"github.com/itayakad/juno-master/internal/ui"
)

func newDailyCommand(ctx context.Context, open openFunc) *cobra.Command {
	var (
		source      sourceOptions
		kindFlag    string
		tzFlag      string
		localeFlag  string
		sorted      bool
		interactive bool
		expandAll   bool
	)

	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Show logs grouped by calendar day.",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(kindFlag)
			if err != nil {
				return err
			}
			view := domain.ViewOptions{Locale: localeFlag, Sorted: sorted}
			if tzFlag != "" {
				loc, err := time.LoadLocation(tzFlag)
				if err != nil {
					return fmt.Errorf("unknown time zone %q: %w", tzFlag, err)
				}
				view.Location = loc
			}

			b, err := open(ctx, source)
			if err != nil {
				return err
			}
			defer b.Close()

			days, err := loadDays(ctx, b, kind, view)
			if err != nil {
				return err
			}
			state, err := b.views.Get(ctx, b.userID, string(kind))
			if err != nil {
				return err
			}

			title := fmt.Sprintf("%s for %s (%s)", strings.ToUpper(kind.Plural()[:1])+kind.Plural()[1:], b.userID, b.service.Locale(view))
			if interactive {
				m := ui.NewModel(ctx, b.views, b.userID, string(kind), title, days, state)
				if _, err := tea.NewProgram(m, tea.WithContext(ctx)).Run(); err != nil {
					return fmt.Errorf("run TUI: %w", err)
				}
				return nil
			}

			if expandAll {
				state = aggregate.ExpansionState{}
				for _, day := range days {
					state[day.Date] = true
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), ui.Render(title, days, state, -1))
			return nil
		},
	}

	cmd.Flags().StringVar(&source.File, "file", "", "Read logs from a JSON export instead of Postgres")
	cmd.Flags().StringVar(&source.UserID, "user", "", "User id (default: the export's userId)")
	cmd.Flags().StringVar(&kindFlag, "kind", "meal", "Log kind: meal or exercise")
	cmd.Flags().StringVar(&tzFlag, "tz", "", "IANA time zone used to decide calendar days")
	cmd.Flags().StringVar(&localeFlag, "locale", "", "BCP-47 locale used to format dates")
	cmd.Flags().BoolVar(&sorted, "sorted", false, "Order days newest first instead of first-seen order")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Open the collapsible view")
	cmd.Flags().BoolVar(&expandAll, "all", false, "List the logs of every day")

	return cmd
}

func loadDays(ctx context.Context, b *backend, kind domain.Kind, view domain.ViewOptions) ([]ui.Day, error) {
	if kind == domain.KindExercise {
		groups, err := b.service.DailyExercises(ctx, b.userID, view)
		if err != nil {
			return nil, err
		}
		return toDays(groups, exerciseLine, exerciseSummary), nil
	}
	groups, err := b.service.DailyMeals(ctx, b.userID, view)
	if err != nil {
		return nil, err
	}
	return toDays(groups, mealLine, mealSummary), nil
}

func toDays[R aggregate.Record](groups []aggregate.DateGroup[R], line func(R) string, summary func(aggregate.Totals) string) []ui.Day {
	days := make([]ui.Day, 0, len(groups))
	for _, g := range groups {
		lines := make([]string, 0, len(g.Records))
		for _, rec := range g.Records {
			lines = append(lines, line(rec))
		}
		days = append(days, ui.Day{
			Date:    g.Date,
			Summary: summary(g.Totals),
			Lines:   lines,
			Undated: g.UndatedCount,
		})
	}
	return days
}

func exerciseLine(e domain.ExerciseLog) string {
	line := fmt.Sprintf("%s  %d min  %.0f kcal", e.ExerciseType, e.DurationMin, e.CaloriesBurned)
	if e.HasPhoto {
		line += "  [photo]"
	}
	return line
}

func exerciseSummary(t aggregate.Totals) string {
	return fmt.Sprintf("%d min  %.0f kcal", t.DurationMinutes, t.Calories)
}

func mealLine(m domain.MealLog) string {
	line := fmt.Sprintf("%s  %.0f kcal  C %.0fg  F %.0fg  P %.0fg", m.Description, m.Calories, m.Carbs, m.Fat, m.Protein)
	if m.HasPhoto {
		line += "  [photo]"
	}
	return line
}

func mealSummary(t aggregate.Totals) string {
	return fmt.Sprintf("%.0f kcal  C %.0fg  F %.0fg  P %.0fg", t.Calories, t.Carbs, t.Fat, t.Protein)
}
