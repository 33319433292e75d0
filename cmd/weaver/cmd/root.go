package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aop-weaver/pkg/utils"
)

var (
	// Global flags
	verbose    bool
	configPath string
	logger     utils.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "weaver",
	Short: "An aspect weaver for annotated class metadata",
	Long: `weaver decides which classes need proxies and which advices every proxied
method runs, based on aspects declared through annotations.

Class metadata is read from YAML or JSON documents. Runtime conditions of
pointcuts are compiled once and kept in the configured expression cache.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevel := utils.LevelInfo
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(logLevel, os.Stderr)
		utils.SetGlobalLogger(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	binName := BinName()
	rootCmd.Example = `  # Weave with the configuration in ./configs/weaver.yaml
  ` + binName + ` weave

  # Weave explicit metadata documents and print the report
  ` + binName + ` weave -m classes.yaml -m aspects.yaml --print

  # Show how a pointcut expression is understood
  ` + binName + ` parse 'class(App\Service\*) && !method(*->__construct())'`
}

// GetLogger returns the configured logger
func GetLogger() utils.Logger {
	return logger
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}
