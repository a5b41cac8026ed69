package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/camshot/internal/capture"
	"github.com/hugo-lorenzo-mato/camshot/internal/config"
	"github.com/hugo-lorenzo-mato/camshot/internal/logging"
	"github.com/hugo-lorenzo-mato/camshot/internal/report"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture one frame (default command)",
	RunE:  runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
}

// captureOptions builds the orchestrator options. Tests replace it to
// inject fakes.
var captureOptions = func(cfg *config.Config, logger *logging.Logger, cmd *cobra.Command) capture.Options {
	return capture.Options{
		Config:   cfg,
		Logger:   logger.WithComponent("capture").Logger,
		Fallback: cmd.ErrOrStderr(),
	}
}

func runCapture(cmd *cobra.Command, _ []string) error {
	format, err := report.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	res := capture.Execute(cmd.Context(), captureOptions(appConfig, appLogger, cmd))
	appLogger.WithRun(res.RunID).Debug("run finished",
		"outcome", res.Outcome.Kind, "exit_code", res.ExitCode(), "duration", res.Duration)

	if err := report.Render(cmd.OutOrStdout(), report.FromResult(res), format); err != nil {
		appLogger.Error("rendering report failed", "error", err)
	}
	if code := res.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}
