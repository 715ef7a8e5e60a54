package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/flowstate/internal/workflows/definition"
	"github.com/zjrosen/flowstate/internal/workflows/domain"
)

var definitionsCmd = &cobra.Command{
	Use:   "definitions",
	Short: "Manage workflow definitions",
}

var definitionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered workflow definitions",
	RunE:  runDefinitionsList,
}

var definitionsRegisterCmd = &cobra.Command{
	Use:   "register <file>",
	Short: "Register a workflow definition from a YAML file",
	Long: `Validate and register a workflow definition from a YAML file.
With --update, an existing definition with the same key is updated
instead; graph changes are rejected once the definition has instances.`,
	Args: cobra.ExactArgs(1),
	RunE: runDefinitionsRegister,
}

var definitionsShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Show a workflow definition's states and transitions",
	Args:  cobra.ExactArgs(1),
	RunE:  runDefinitionsShow,
}

var definitionsDeactivateCmd = &cobra.Command{
	Use:   "deactivate <key>",
	Short: "Deactivate a definition so no new instances can start",
	Args:  cobra.ExactArgs(1),
	RunE:  runDefinitionsDeactivate,
}

var (
	listAll        bool
	registerUpdate bool
)

func init() {
	definitionsListCmd.Flags().BoolVar(&listAll, "all", false, "include inactive definitions")
	definitionsRegisterCmd.Flags().BoolVar(&registerUpdate, "update", false, "update the definition if it already exists")

	definitionsCmd.AddCommand(definitionsListCmd)
	definitionsCmd.AddCommand(definitionsRegisterCmd)
	definitionsCmd.AddCommand(definitionsShowCmd)
	definitionsCmd.AddCommand(definitionsDeactivateCmd)
	rootCmd.AddCommand(definitionsCmd)
}

func runDefinitionsList(cmd *cobra.Command, args []string) error {
	app, closeApp, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp()

	defs, err := app.definitions.List(listAll)
	if err != nil {
		return fmt.Errorf("listing definitions: %w", err)
	}

	if len(defs) == 0 {
		fmt.Println("No definitions registered.")
		return nil
	}

	maxLen := maxKeyLen(defs)
	for _, def := range defs {
		status := ""
		if !def.Active {
			status = "  (inactive)"
		}
		fmt.Printf("%-*s  %d states, initial %q%s\n", maxLen, def.Key, len(def.States), def.InitialState, status)
	}
	return nil
}

func runDefinitionsRegister(cmd *cobra.Command, args []string) error {
	def, err := definition.LoadFile(args[0])
	if err != nil {
		return err
	}

	app, closeApp, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp()

	if registerUpdate {
		err = definition.RegisterOrUpdate(app.definitions, def)
	} else {
		err = app.definitions.Register(def)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Registered definition %q (%d states)\n", def.Key, len(def.States))
	return nil
}

func runDefinitionsShow(cmd *cobra.Command, args []string) error {
	app, closeApp, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp()

	def, err := app.definitions.Get(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n", def.Key, def.Name)
	if !def.Active {
		fmt.Println("Status: inactive")
	}
	fmt.Printf("Initial: %s\n", def.InitialState)
	if len(def.TerminalStates) > 0 {
		fmt.Printf("Terminal: %s\n", strings.Join(def.TerminalStates, ", "))
	}
	if len(def.Validators) > 0 {
		fmt.Printf("Validators: %s\n", strings.Join(def.Validators, ", "))
	}
	fmt.Println("Transitions:")
	for _, state := range def.States {
		targets := def.Transitions[state]
		if def.IsTerminal(state) {
			fmt.Printf("  %s (terminal)\n", state)
			continue
		}
		if len(targets) == 0 {
			fmt.Printf("  %s -> (none)\n", state)
			continue
		}
		fmt.Printf("  %s -> %s\n", state, strings.Join(targets, ", "))
	}
	return nil
}

func runDefinitionsDeactivate(cmd *cobra.Command, args []string) error {
	app, closeApp, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp()

	if err := app.definitions.Deactivate(args[0]); err != nil {
		return err
	}
	fmt.Printf("Deactivated definition %q\n", args[0])
	return nil
}

// maxKeyLen returns the length of the longest definition key in the slice.
func maxKeyLen(defs []*domain.Definition) int {
	maxLen := 0
	for _, def := range defs {
		if len(def.Key) > maxLen {
			maxLen = len(def.Key)
		}
	}
	return maxLen
}
