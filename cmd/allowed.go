package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var allowedCmd = &cobra.Command{
	Use:   "allowed <instance-guid>",
	Short: "Show the transitions allowed from an instance's current state",
	Args:  cobra.ExactArgs(1),
	RunE:  runAllowed,
}

func init() {
	rootCmd.AddCommand(allowedCmd)
}

func runAllowed(cmd *cobra.Command, args []string) error {
	app, closeApp, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp()

	inst, err := app.engine.Instance(args[0])
	if err != nil {
		return err
	}
	allowed, err := app.engine.AllowedTransitions(args[0])
	if err != nil {
		return err
	}

	if len(allowed) == 0 {
		fmt.Printf("%s is in state %q with no allowed transitions\n", inst.GUID, inst.State)
		return nil
	}
	fmt.Printf("%s is in state %q, may move to: %s\n", inst.GUID, inst.State, strings.Join(allowed, ", "))
	return nil
}
