package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aop-weaver/internal/service"
	"github.com/aop-weaver/internal/weaver"
	"github.com/aop-weaver/pkg/config"
	"github.com/aop-weaver/pkg/telemetry"
	"github.com/aop-weaver/pkg/utils"
)

var (
	// Weave command flags
	metadataPaths []string
	excluded      []string
	reportPath    string
	parallel      bool
	workers       int
	printReport   bool
	printFormat   string
)

// weaveCmd represents the weave command
var weaveCmd = &cobra.Command{
	Use:   "weave",
	Short: "Build proxy plans for every advisable class",
	Long: `Run one weaving pass over the configured class metadata.

Every aspect is scanned for advices, named pointcuts and introductions. Each
advisable class is then matched against all aspects; the classes that need a
proxy, the interfaces and properties introduced into them and the advices
of every proxied method are written to the weaving report.

Flags override the corresponding configuration values.`,
	RunE: runWeave,
}

func init() {
	rootCmd.AddCommand(weaveCmd)

	weaveCmd.Flags().StringSliceVarP(&metadataPaths, "metadata", "m", nil, "Class metadata documents (YAML or JSON)")
	weaveCmd.Flags().StringSliceVarP(&excluded, "exclude", "x", nil, "Additional namespaces that are never advised")
	weaveCmd.Flags().StringVarP(&reportPath, "report", "r", "", "Write the weaving report to this file (.json, .json.gz or .yaml)")
	weaveCmd.Flags().BoolVar(&parallel, "parallel", false, "Weave target classes in parallel")
	weaveCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Number of weaving workers")
	weaveCmd.Flags().BoolVar(&printReport, "print", false, "Print the weaving report to stdout")
	weaveCmd.Flags().StringVarP(&printFormat, "format", "f", "json", "Format of the printed report: json or yaml")
}

func runWeave(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyWeaveFlags(cmd, cfg)

	log := GetLogger()
	if !verbose {
		if log, err = utils.NewLogger(cfg.Log.Level, cfg.Log.OutputPath); err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		utils.SetGlobalLogger(log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn("Failed to shut down telemetry: %v", err)
		}
	}()

	svc, err := service.New(cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Initialize(ctx); err != nil {
		return err
	}
	defer svc.Close()

	outcome, weaveErr := svc.Weave(ctx)
	if outcome == nil {
		return weaveErr
	}

	printSummary(log, outcome)
	if printReport {
		data, err := weaver.EncodeReport(outcome.Report, printFormat)
		if err != nil {
			return err
		}
		cmd.OutOrStdout().Write(data)
	}
	return weaveErr
}

func applyWeaveFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("metadata") {
		cfg.Weaving.Metadata = metadataPaths
	}
	if flags.Changed("exclude") {
		cfg.Weaving.ExcludedNamespaces = append(cfg.Weaving.ExcludedNamespaces, excluded...)
	}
	if flags.Changed("report") {
		cfg.Weaving.ReportPath = reportPath
	}
	if flags.Changed("parallel") {
		cfg.Weaving.Parallel = parallel
	}
	if flags.Changed("workers") {
		cfg.Weaving.Workers = workers
	}
}

func printSummary(log utils.Logger, outcome *service.Outcome) {
	s := outcome.Report.Summary
	log.Info("=== Weaving Summary ===")
	log.Info("Aspects:   %d", len(outcome.Report.Aspects))
	log.Info("Proxied:   %d classes, %d methods", s.Proxied, s.Methods)
	log.Info("Unproxied: %d classes", s.Unproxied)
	log.Info("Failed:    %d classes", s.Failed)
	for _, f := range outcome.Report.Failures {
		log.Error("  %s [%s] %s", f.Class, f.Code, f.Message)
	}
	if outcome.ReportURL != "" {
		log.Info("Report:    %s", outcome.ReportURL)
	}
}
