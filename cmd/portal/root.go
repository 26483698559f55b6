package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/webarportal/portal/internal/config"
	"github.com/webarportal/portal/internal/logging"
)

var (
	configDir string
	verbose   bool

	// configErr is kept so serve can report it once its logger is up.
	configErr error
	// cliLog is the stderr logger used by the one-shot commands.
	cliLog zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "WebAR marker portal",
	Long: `Portal turns uploaded images into AR tracking markers, binds media
to them and serves the resulting scenes to browser clients.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configErr = config.Load(configDir)

		level := logging.ParseLevel(config.GetString("logLevel"))
		if verbose {
			level = zerolog.DebugLevel
		}
		cliLog = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(level).With().Timestamp().Logger()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory containing "+config.FileName)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}
