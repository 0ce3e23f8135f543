package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"harvester/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFile    string
	noColor    bool
	quiet      bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "harvester",
	Short: "Resumable board-game catalog harvester for BGG and Wikidata",
	Long: `harvester builds a board-game catalog by sweeping the BoardGameGeek ID space
and paging through Wikidata, a bounded slice per invocation.

Every completed unit is appended to the output and checkpointed, so a run can
be interrupted at any point and the next invocation picks up where it stopped.

  - BGG: batches of IDs against the XML API (bearer token required)
  - Wikidata: SPARQL pages of board games with their BGG IDs
  - Output: append-only CSV or a Postgres table
  - Status: progress, runs remaining and the next run's range`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.DisableColor()
		}

		if quiet {
			ui.SetQuietMode(true)
		}

		if verbose && logLevel == "" {
			logLevel = "debug"
		}

		if verbose && cmd.Name() != "version" && cmd.Name() != "help" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: ./harvester.yaml or ~/.config/harvester/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show every unit and debug logs")

	rootCmd.SetVersionTemplate(`harvester {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
