package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aop-weaver/internal/aspect"
	"github.com/aop-weaver/internal/metadata"
	"github.com/aop-weaver/internal/pointcut"
	"github.com/aop-weaver/internal/weaver"
	"github.com/aop-weaver/pkg/config"
)

var parseMetadata []string

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse <expression>",
	Short: "Show how a pointcut expression is understood",
	Long: `Parse a pointcut expression and print its filter tree.

When metadata documents are given, named pointcut references of the declared
aspects resolve, and the advisable classes the expression can select are
listed as well.`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringSliceVarP(&parseMetadata, "metadata", "m", nil, "Class metadata documents (YAML or JSON)")
}

func runParse(cmd *cobra.Command, args []string) error {
	registry, err := metadata.LoadRegistry(parseMetadata...)
	if err != nil {
		return err
	}

	settings := config.NewSettings(nil)
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		settings = cfg.Settings()
	}

	builder := aspect.NewBuilder(aspect.BuilderOptions{
		Metadata: registry,
		Settings: settings,
		Logger:   GetLogger(),
	})
	if _, err := builder.BuildAll(); err != nil {
		GetLogger().Warn("Some aspects could not be built: %v", err)
	}

	composite, err := builder.Parser().Parse(args[0], "command line")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "expression: %s\n", args[0])
	fmt.Fprintf(out, "filter:     %s\n", composite.String())
	if rt := composite.RuntimeEvaluationsDefinition(); rt != nil {
		fmt.Fprintf(out, "runtime:    %s\n", rt.String())
	}

	if len(parseMetadata) == 0 {
		return nil
	}
	candidates := weaver.NewProxyClassBuilder(weaver.Options{Metadata: registry}).CandidateClassNames()
	reduced := composite.ReduceTargetClassNames(pointcut.NewClassNameIndex(candidates...))
	fmt.Fprintf(out, "classes:    %s\n", strings.Join(reduced.Names(), ", "))
	return nil
}
