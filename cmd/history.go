package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/flowstate/internal/workflows/domain"
)

var historyCmd = &cobra.Command{
	Use:   "history <instance-guid>",
	Short: "Show an instance's transition history",
	Long: `Print every committed transition for an instance in append order.
With --recorded-from/--recorded-to, restrict to transitions recorded in
that window (system time, not business time).`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

var (
	historyRecordedFrom string
	historyRecordedTo   string
)

func init() {
	historyCmd.Flags().StringVar(&historyRecordedFrom, "recorded-from", "", "window start, RFC 3339")
	historyCmd.Flags().StringVar(&historyRecordedTo, "recorded-to", "", "window end, RFC 3339")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if (historyRecordedFrom == "") != (historyRecordedTo == "") {
		return fmt.Errorf("--recorded-from and --recorded-to must be given together")
	}

	app, closeApp, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp()

	var records []*domain.TransitionRecord
	if historyRecordedFrom != "" {
		from, err := time.Parse(time.RFC3339, historyRecordedFrom)
		if err != nil {
			return fmt.Errorf("invalid --recorded-from %q: %w", historyRecordedFrom, err)
		}
		to, err := time.Parse(time.RFC3339, historyRecordedTo)
		if err != nil {
			return fmt.Errorf("invalid --recorded-to %q: %w", historyRecordedTo, err)
		}
		records, err = app.engine.HistoryRecordedBetween(args[0], from, to)
		if err != nil {
			return err
		}
	} else {
		records, err = app.engine.History(args[0])
		if err != nil {
			return err
		}
	}

	if len(records) == 0 {
		fmt.Println("No transitions recorded.")
		return nil
	}

	for _, rec := range records {
		actor := rec.Actor
		if actor == "" {
			actor = "(unknown)"
		}
		fmt.Printf("%s  %s -> %s  by %s (recorded %s)\n",
			rec.EffectiveAt.Format(time.RFC3339),
			rec.FromState, rec.ToState, actor,
			rec.RecordedAt.Format(time.RFC3339))
	}
	return nil
}
