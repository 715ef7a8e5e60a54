package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/flowstate/internal/workflows/domain"
	"github.com/zjrosen/flowstate/internal/workflows/engine"
)

var transitionCmd = &cobra.Command{
	Use:   "transition <instance-guid> <to-state>",
	Short: "Transition a workflow instance to a new state",
	Long: `Apply a transition to a workflow instance. The transition must be
allowed by the definition's graph and pass the definition's validators.
Soft warnings block unless --override-warnings is set; hard blocks
cannot be overridden.`,
	Args: cobra.ExactArgs(2),
	RunE: runTransition,
}

var (
	transitionActor    string
	transitionAt       string
	transitionOverride bool
	transitionMeta     []string
)

func init() {
	transitionCmd.Flags().StringVar(&transitionActor, "actor", "", "who is performing the transition")
	transitionCmd.Flags().StringVar(&transitionAt, "effective-at", "", "business-time of the transition, RFC 3339 (default: now)")
	transitionCmd.Flags().BoolVar(&transitionOverride, "override-warnings", false, "proceed despite soft validator warnings")
	transitionCmd.Flags().StringArrayVar(&transitionMeta, "meta", nil, "metadata entry as key=value (repeatable)")
	rootCmd.AddCommand(transitionCmd)
}

func runTransition(cmd *cobra.Command, args []string) error {
	var effectiveAt time.Time
	if transitionAt != "" {
		var err error
		effectiveAt, err = time.Parse(time.RFC3339, transitionAt)
		if err != nil {
			return fmt.Errorf("invalid --effective-at %q: %w", transitionAt, err)
		}
	}

	metadata, err := parseMetadata(transitionMeta)
	if err != nil {
		return err
	}

	app, closeApp, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp()

	rec, err := app.engine.Transition(cmd.Context(), engine.TransitionRequest{
		InstanceGUID:     args[0],
		ToState:          args[1],
		Actor:            transitionActor,
		EffectiveAt:      effectiveAt,
		OverrideWarnings: transitionOverride,
		Metadata:         metadata,
	})
	if err != nil {
		var blocked *domain.TransitionBlockedError
		if errors.As(err, &blocked) && blocked.Soft {
			fmt.Println("Transition blocked by warnings (use --override-warnings to proceed):")
			for _, reason := range blocked.Reasons {
				fmt.Printf("  - %s\n", reason)
			}
		}
		return err
	}

	fmt.Printf("Transitioned %s -> %s (effective %s)\n",
		rec.FromState, rec.ToState, rec.EffectiveAt.Format(time.RFC3339))
	return nil
}
