package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var asofCmd = &cobra.Command{
	Use:   "asof <instance-guid> <time>",
	Short: "Show an instance's state as of a point in business time",
	Long: `Replay the ledger to determine which state an instance was in at the
given RFC 3339 time, judged by effective time. A time before the first
transition reports the instance as not yet started.`,
	Args: cobra.ExactArgs(2),
	RunE: runAsOf,
}

func init() {
	rootCmd.AddCommand(asofCmd)
}

func runAsOf(cmd *cobra.Command, args []string) error {
	at, err := time.Parse(time.RFC3339, args[1])
	if err != nil {
		return fmt.Errorf("invalid time %q: %w", args[1], err)
	}

	app, closeApp, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp()

	state, started, err := app.engine.StateAsOf(args[0], at)
	if err != nil {
		return err
	}

	if !started {
		fmt.Printf("%s had not started as of %s\n", args[0], at.Format(time.RFC3339))
		return nil
	}
	fmt.Printf("%s was in state %q as of %s\n", args[0], state, at.Format(time.RFC3339))
	return nil
}
