package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sapliy/reminder-engine/internal/reminder"
	"github.com/spf13/cobra"
)

var (
	prefsFile string
	nowFlag   string
	weekday   int
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Print the reminders a preference document compiles to",
	Example: `  reminderctl compile --prefs prefs.json
  cat prefs.json | reminderctl compile --now 2024-03-10T07:00:00Z`,
	RunE: func(cmd *cobra.Command, args []string) error {
		now, err := parseNow(nowFlag)
		if err != nil {
			return err
		}
		prefs, err := readPreferences(cmd.InOrStdin(), prefsFile)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(reminder.Compile(prefs, now))
	},
}

var nextCmd = &cobra.Command{
	Use:   "next HH:MM",
	Short: "Print the next instant a wall-clock time occurs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		now, err := parseNow(nowFlag)
		if err != nil {
			return err
		}
		var at time.Time
		if weekday >= 0 {
			if weekday > 6 {
				return fmt.Errorf("weekday must be 0 (Sunday) to 6 (Saturday), got %d", weekday)
			}
			at, err = reminder.NextWeekday(args[0], time.Weekday(weekday), now)
		} else {
			at, err = reminder.NextOccurrence(args[0], now)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), at.Format(time.RFC3339))
		return nil
	},
}

func init() {
	compileCmd.Flags().StringVar(&prefsFile, "prefs", "-", "preference document, - for stdin")
	for _, c := range []*cobra.Command{compileCmd, nextCmd} {
		c.Flags().StringVar(&nowFlag, "now", "", "reference instant in RFC 3339 (default: current time)")
	}
	nextCmd.Flags().IntVar(&weekday, "weekday", -1, "restrict to a day of week, 0=Sunday")
	rootCmd.AddCommand(compileCmd, nextCmd)
}

func parseNow(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now: %w", err)
	}
	return t, nil
}

func readPreferences(stdin io.Reader, path string) (reminder.Preferences, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return reminder.Preferences{}, err
		}
		defer f.Close()
		r = f
	}
	var prefs reminder.Preferences
	if err := json.NewDecoder(r).Decode(&prefs); err != nil {
		return reminder.Preferences{}, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return prefs, nil
}
