package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var Version = "dev"

// jsonOutput controls whether output is formatted as JSON
var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:     "tasty",
	Short:   "Tastytrade options strategy CLI",
	Long:    `A CLI for building and submitting options strategies (singles, verticals, strangles, iron condors) via the tastytrade API.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if os.Getenv("TASTY_DEBUG") != "" {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
}

// GetJSONMode returns whether JSON output mode is enabled.
func GetJSONMode() bool {
	return jsonOutput
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
