package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/flowstate/internal/workflows/domain"
	"github.com/zjrosen/flowstate/internal/workflows/engine"
)

var startCmd = &cobra.Command{
	Use:   "start <definition-key> <subject-kind> <subject-id>",
	Short: "Start a workflow instance for a subject",
	Args:  cobra.ExactArgs(3),
	RunE:  runStart,
}

var (
	startActor string
	startMeta  []string
)

func init() {
	startCmd.Flags().StringVar(&startActor, "actor", "", "who is starting the instance")
	startCmd.Flags().StringArrayVar(&startMeta, "meta", nil, "metadata entry as key=value (repeatable)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	metadata, err := parseMetadata(startMeta)
	if err != nil {
		return err
	}

	app, closeApp, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp()

	inst, err := app.engine.StartInstance(cmd.Context(), engine.StartRequest{
		DefinitionKey: args[0],
		Subject:       domain.Subject{Kind: args[1], ID: args[2]},
		Actor:         startActor,
		Metadata:      metadata,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Started instance %s in state %q\n", inst.GUID, inst.State)
	return nil
}

// parseMetadata turns key=value flags into a metadata map.
func parseMetadata(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	metadata := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := splitPair(pair)
		if !ok {
			return nil, fmt.Errorf("invalid metadata entry %q, expected key=value", pair)
		}
		metadata[key] = value
	}
	return metadata, nil
}

func splitPair(pair string) (string, string, bool) {
	for i := 0; i < len(pair); i++ {
		if pair[i] == '=' {
			if i == 0 {
				return "", "", false
			}
			return pair[:i], pair[i+1:], true
		}
	}
	return "", "", false
}
