package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"calixo/internal/domain"
)

func newTodayCmd(opts *rootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "today",
		Short: "Show intake, activity and goal progress for a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), opts, func(e *env) error {
				target, err := resolveDate(date, e.store.Today())
				if err != nil {
					return err
				}
				record := e.store.Load()
				printSummary(cmd, record.Summarize(target))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date YYYY-MM-DD (default today)")
	return cmd
}

func printSummary(cmd *cobra.Command, s domain.DaySummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Date: %s\n", s.Date)
	fmt.Fprintf(out, "Calories: %.0f / %.0f kcal\n", s.Totals.Calories, s.Goals.CalorieGoal)
	fmt.Fprintf(out, "Protein: %.1f / %.0f g\n", s.Totals.Protein, s.Goals.ProteinGoal)
	fmt.Fprintf(out, "Macros: C %.1fg | F %.1fg\n", s.Totals.Carbs, s.Totals.Fat)
	fmt.Fprintf(out, "Active: %.0f / %.0f min (%d kcal burned)\n", s.ActiveMinutes, s.Goals.ActivityGoal, s.CaloriesBurned)
	if strings.TrimSpace(s.GoalStory) != "" {
		fmt.Fprintf(out, "Goal: %s\n", s.GoalStory)
	}
	if len(s.Diet) == 0 && len(s.Activity) == 0 {
		fmt.Fprintln(out, "Nothing logged yet.")
		return
	}
	fmt.Fprintln(out, "ID\tKIND\tENTRY")
	for _, d := range s.Diet {
		fmt.Fprintf(out, "%s\tfood\t%s (%.0f kcal, %.1fg protein)\n", d.ID, d.Name, d.Calories, d.Protein)
	}
	for _, a := range s.Activity {
		fmt.Fprintf(out, "%s\tactivity\t%s %.0f min, %s (%d kcal)\n", a.ID, a.Type.Label(), a.Duration, a.Intensity, a.Burned())
	}
}

func newLogCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log food or activity",
	}
	cmd.AddCommand(newLogFoodCmd(opts), newLogActivityCmd(opts), newLogPhotoCmd(opts))
	return cmd
}

func newLogFoodCmd(opts *rootOptions) *cobra.Command {
	var manual domain.DietInput
	cmd := &cobra.Command{
		Use:   "food <name> [amount]",
		Short: "Log a food; macros are looked up unless --calories is given",
		Long:  "Log a food. Amount is grams (\"150g\") or a portion (\"1 cup\"). Without --calories the FitTrack API resolves the macros.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			item := domain.FoodItem{Name: args[0]}
			if len(args) == 2 {
				item.Quantity = args[1]
			}
			return withEnv(cmd.Context(), opts, func(e *env) error {
				input := manual
				input.Name = strings.TrimSpace(item.Name)
				if !cmd.Flags().Changed("calories") {
					nutrition, err := e.api.LookupNutrition(cmd.Context(), domain.QueryForItem(item))
					if err != nil {
						return fmt.Errorf("lookup nutrition: %w", err)
					}
					input = domain.DietInput{
						Name:     nutrition.Name,
						Calories: nutrition.Calories,
						Protein:  nutrition.Protein,
						Carbs:    nutrition.Carbs,
						Fat:      nutrition.Fat,
					}
				}
				entry, err := e.store.AddDietEntry(input)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s: %.0f kcal, %.1fg protein (id %s)\n", entry.Name, entry.Calories, entry.Protein, entry.ID)
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&manual.Calories, "calories", 0, "Calories (skips the nutrition lookup)")
	cmd.Flags().Float64Var(&manual.Protein, "protein", 0, "Protein grams")
	cmd.Flags().Float64Var(&manual.Carbs, "carbs", 0, "Carbohydrate grams")
	cmd.Flags().Float64Var(&manual.Fat, "fat", 0, "Fat grams")
	return cmd
}

func newLogActivityCmd(opts *rootOptions) *cobra.Command {
	var intensity string
	cmd := &cobra.Command{
		Use:   "activity <type> <minutes>",
		Short: "Log an activity session (walk, run, cycle, swim, gym, sport, other)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var minutes float64
			if _, err := fmt.Sscanf(args[1], "%g", &minutes); err != nil {
				return fmt.Errorf("invalid minutes %q", args[1])
			}
			return withEnv(cmd.Context(), opts, func(e *env) error {
				entry, err := e.store.AddActivityEntry(domain.ActivityInput{
					Type:      args[0],
					Duration:  minutes,
					Intensity: intensity,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s %.0f min (%s): %d kcal burned (id %s)\n", entry.Type.Label(), entry.Duration, entry.Intensity, entry.Burned(), entry.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&intensity, "intensity", "moderate", "light, moderate or vigorous")
	return cmd
}

func newLogPhotoCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "photo <image>",
		Short: "Analyze a meal photo and log it",
		Long:  "Analyze a meal photo with the FitTrack API and log it as one entry. Calories come from the analysis total; macros stay at zero.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			photo := domain.FoodPhoto{Data: data, MimeType: http.DetectContentType(data)}
			return withEnv(cmd.Context(), opts, func(e *env) error {
				analysis, err := e.api.AnalyzeFoodImage(cmd.Context(), photo)
				if err != nil {
					return fmt.Errorf("analyze image: %w", err)
				}
				if strings.TrimSpace(analysis) == "" {
					return fmt.Errorf("%w: the analysis came back empty", domain.ErrInvalidInput)
				}
				entry, err := e.store.AddDietEntry(domain.PhotoMealInput(analysis))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), analysis)
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s: %.0f kcal (id %s)\n", entry.Name, entry.Calories, entry.ID)
				return nil
			})
		},
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a food or activity entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), opts, func(e *env) error {
				target, err := resolveDate(date, e.store.Today())
				if err != nil {
					return err
				}
				removed, err := e.store.DeleteEntry(target, args[0])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("no entry %s on %s", args[0], target)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date YYYY-MM-DD (default today)")
	return cmd
}

func newGoalsCmd(opts *rootOptions) *cobra.Command {
	var (
		goals   domain.Goals
		story   string
		analyze bool
	)
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Set daily calorie, protein and activity goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), opts, func(e *env) error {
				if analyze {
					analyzed, err := e.api.AnalyzeGoals(cmd.Context(), story)
					if err != nil {
						return fmt.Errorf("analyze goals: %w", err)
					}
					if err := e.store.SetGoals(analyzed, strings.TrimSpace(story)); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Goals: %.0f kcal | %.0fg protein | %.0f active min\n", analyzed.CalorieGoal, analyzed.ProteinGoal, analyzed.ActivityGoal)
					return nil
				}
				current := e.store.Load()
				next := current.EffectiveGoals()
				if cmd.Flags().Changed("calories") {
					next.CalorieGoal = goals.CalorieGoal
				}
				if cmd.Flags().Changed("protein") {
					next.ProteinGoal = goals.ProteinGoal
				}
				if cmd.Flags().Changed("activity") {
					next.ActivityGoal = goals.ActivityGoal
				}
				narrative := current.GoalStory
				if cmd.Flags().Changed("story") {
					narrative = story
				}
				if err := e.store.SetGoals(next, narrative); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Goals: %.0f kcal | %.0fg protein | %.0f active min\n", next.CalorieGoal, next.ProteinGoal, next.ActivityGoal)
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&goals.CalorieGoal, "calories", 0, "Daily calorie goal")
	cmd.Flags().Float64Var(&goals.ProteinGoal, "protein", 0, "Daily protein goal in grams")
	cmd.Flags().Float64Var(&goals.ActivityGoal, "activity", 0, "Daily active minutes goal")
	cmd.Flags().StringVar(&story, "story", "", "Goal narrative")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Derive the goals from --story with the FitTrack API")
	return cmd
}
