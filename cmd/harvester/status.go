package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"harvester/internal/lockfile"
	"harvester/pkg/checkpoint"
	"harvester/pkg/config"
	"harvester/pkg/logger"
	"harvester/pkg/sweep"
	"harvester/pkg/ui"
)

var resetConfirmed bool

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status [bgg|wikidata]",
	Short: "Show progress of one or both sweeps",
	Long: `Show progress of one or both sweeps from their checkpoint files.

Nothing is fetched and no file is modified, so status is safe to run while a
sweep is in progress.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: sourceNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return renderStatus(cmd.OutOrStdout(), cfg, args)
	},
}

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset <bgg|wikidata>",
	Short: "Delete a sweep's checkpoint so it starts over",
	Long: `Delete a sweep's checkpoint so the next run starts from the beginning.

The output file is left alone; records harvested again are appended to it.
Reset refuses to run while a sweep holds the lock.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: sourceNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return resetSweep(cfg, args[0], resetConfirmed, cmd.InOrStdin())
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVarP(&resetConfirmed, "yes", "y", false, "do not ask for confirmation")
}

func renderStatus(w io.Writer, cfg *config.Config, args []string) error {
	names := sourceNames()
	if len(args) > 0 {
		names = args
	}

	log := logger.GetLogger()
	statuses := make([]sweep.Status, 0, len(names))
	for _, name := range names {
		src, err := lookupSource(cfg, name)
		if err != nil {
			return err
		}
		st, err := inspect(src, log)
		if err != nil {
			return fmt.Errorf("failed to read %s checkpoint: %w", src.name, err)
		}
		statuses = append(statuses, st)
	}

	ui.RenderStatus(w, statuses)
	return nil
}

func resetSweep(cfg *config.Config, name string, confirmed bool, in io.Reader) error {
	src, err := lookupSource(cfg, name)
	if err != nil {
		return err
	}

	store := checkpoint.NewManager(src.stateFile, logger.GetLogger())
	if !store.Exists() {
		ui.PrintInfo("Nothing to reset", src.stateFile)
		return nil
	}

	if !confirmed {
		fmt.Fprintf(ui.Output(), "Delete %s checkpoint %s? [y/N]: ", src.name, src.stateFile)
		answer, _ := bufio.NewReader(in).ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			ui.PrintWarning("Reset cancelled")
			return nil
		}
	}

	lock, err := lockfile.Acquire(src.stateFile+".lock", cfg.Output.LockTTL)
	if err != nil {
		return err
	}
	defer lock.Release()

	if err := store.Delete(); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("✓ %s sweep reset; the next run starts from the beginning", src.name))
	return nil
}
