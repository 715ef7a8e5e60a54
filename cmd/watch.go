package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/flowstate/internal/log"
	"github.com/zjrosen/flowstate/internal/workflows/definition"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Load definitions from the definitions directory and reload on change",
	Long: `Register every definition file in the configured definitions
directory, then keep watching the directory and re-register files as
they change. Frozen or invalid definitions are logged and skipped.
Runs until interrupted.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	app, closeApp, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp()

	defs, err := definition.LoadDir(cfg.DefinitionsDir)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if err := definition.RegisterOrUpdate(app.definitions, def); err != nil {
			log.Warn(log.CatDefinition, "Skipping definition", "key", def.Key, "error", err)
			continue
		}
		fmt.Printf("Loaded definition %q\n", def.Key)
	}

	watcher := definition.NewWatcher(app.definitions, cfg.DefinitionsDir, cfg.AutoReloadDebounce)
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("watching %s: %w", cfg.DefinitionsDir, err)
	}
	defer watcher.Stop()

	fmt.Printf("Watching %s for definition changes (Ctrl+C to stop)\n", cfg.DefinitionsDir)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	return nil
}
