package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/flowstate/internal/workflows/domain"
)

var instancesCmd = &cobra.Command{
	Use:   "instances <subject-kind> <subject-id>",
	Short: "List workflow instances bound to a subject",
	Args:  cobra.ExactArgs(2),
	RunE:  runInstances,
}

func init() {
	rootCmd.AddCommand(instancesCmd)
}

func runInstances(cmd *cobra.Command, args []string) error {
	app, closeApp, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp()

	instances, err := app.engine.InstancesForSubject(domain.Subject{Kind: args[0], ID: args[1]})
	if err != nil {
		return err
	}

	if len(instances) == 0 {
		fmt.Println("No instances for subject.")
		return nil
	}

	for _, inst := range instances {
		status := ""
		if inst.Ended() {
			status = fmt.Sprintf("  ended %s", inst.EndedAt.Format(time.RFC3339))
		}
		fmt.Printf("%s  %s  state %q%s\n", inst.GUID, inst.DefinitionKey, inst.State, status)
	}
	return nil
}
