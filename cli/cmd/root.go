// Package cmd provides the Cobra commands of the criteria CLI.
package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fluxbase-eu/criteria/cli/output"
	"github.com/fluxbase-eu/criteria/internal/config"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"

	// Global flags
	cfgFile   string
	outputFmt string
	noHeaders bool
	quiet     bool
	debug     bool

	// Shared across commands
	formatter *output.Formatter
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "criteria",
	Short: "Criteria CLI - Turn query strings into SQL criteria",
	Long: `Criteria resolves HTTP query strings into filter, order and paging
criteria against the tables allow-listed in the configuration, and prints
the resulting SQL.

Get started:
  criteria tables                              List configured tables
  criteria resolve users 'Name=demo&order=-Id' Resolve a query string
  criteria --help                              Show available commands`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Silence errors only when --quiet is used
		cmd.SilenceErrors = quiet

		level := zerolog.WarnLevel
		if debug || viper.GetBool("debug") {
			level = zerolog.DebugLevel
		}
		zerolog.SetGlobalLevel(level)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

		format, err := output.ParseFormat(outputFmt)
		if err != nil {
			return err
		}
		formatter = output.NewFormatter(format, noHeaders, quiet)
		formatter.Writer = cmd.OutOrStdout()
		return nil
	},
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./criteria.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table",
		"output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&noHeaders, "no-headers", false,
		"hide table headers")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"minimal output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"enable debug output")

	// Bind environment variables
	viper.SetEnvPrefix("CRITERIA")
	_ = viper.BindEnv("config") // CRITERIA_CONFIG
	_ = viper.BindEnv("debug")  // CRITERIA_DEBUG

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(tablesCmd)
}

// loadConfig loads the service configuration the commands resolve against
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = viper.GetString("config")
	}
	return config.LoadFile(path)
}
