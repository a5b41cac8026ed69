package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/camshot/internal/config"
	"github.com/hugo-lorenzo-mato/camshot/internal/core"
	"github.com/hugo-lorenzo-mato/camshot/internal/logging"
	"github.com/hugo-lorenzo-mato/camshot/internal/report"
)

var (
	cfgFile      string
	logLevel     string
	logFormat    string
	outputDir    string
	cameraIndex  string
	driver       string
	outputFormat string
	noInstall    bool

	// Version info - set via SetVersion()
	appVersion string
	appCommit  string
	appDate    string

	appConfig *config.Config
	appLogger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "camshot",
	Short: "Capture one camera frame and record host diagnostics",
	Long: `camshot grabs a single frame from the first usable camera, saves it next to
a YAML record of the host it was taken on, and exits with a code naming the
outcome. Missing tools, unwritable directories and absent or busy cameras
end the run with a report instead of a crash.

Exit codes: 0 success, 1 unforeseen error, 2 dependency missing,
3 storage unavailable, 4 no camera, 5 camera busy, 6 invalid frame,
7 memory exhausted, 8 save failed, 9 interrupted.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initConfig(cmd)
	},
	// Capture is the default action.
	RunE: runCapture,
}

// exitError carries a non-zero exit code after the report was printed.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.ExecuteContext(context.Background())
	if err == nil {
		return core.ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	return core.ExitUnforeseen
}

func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// GetVersion returns the application version string.
func GetVersion() string {
	return appVersion
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "",
		"config file (default: ./.camshot.yaml, then ~/.config/camshot/.camshot.yaml)")
	flags.StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "",
		"log format (auto, text, json)")
	flags.StringVarP(&outputDir, "output", "o", "",
		"preferred output directory (env CAMSHOT_OUTPUT_DIR)")
	flags.StringVarP(&cameraIndex, "camera", "c", "",
		"camera index to try first (env CAMSHOT_CAMERA_INDEX)")
	flags.StringVar(&driver, "driver", "",
		"capture backend (auto, ffmpeg, v4l2)")
	flags.StringVar(&outputFormat, "format", report.FormatText,
		"report format (text, json, yaml)")
	flags.BoolVar(&noInstall, "no-install", false,
		"never install missing dependencies")

	bindFlags()
}

// bindFlags binds flags to viper (errors are nil when the flag exists).
func bindFlags() {
	flags := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = viper.BindPFlag("output.dir", flags.Lookup("output"))
	_ = viper.BindPFlag("camera.index", flags.Lookup("camera"))
	_ = viper.BindPFlag("camera.driver", flags.Lookup("driver"))
}

func initConfig(cmd *cobra.Command) error {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader = loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if noInstall {
		cfg.Deps.AutoInstall = false
	}

	appConfig = cfg
	appLogger = logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	for _, w := range cfg.Warnings {
		appLogger.Warn("configuration value replaced", "detail", w)
	}
	return nil
}
