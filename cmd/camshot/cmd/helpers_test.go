package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/camshot/internal/capture"
	"github.com/hugo-lorenzo-mato/camshot/internal/config"
	"github.com/hugo-lorenzo-mato/camshot/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/camshot/internal/fallback"
	"github.com/hugo-lorenzo-mato/camshot/internal/logging"
	"github.com/hugo-lorenzo-mato/camshot/internal/testutil"
)

// cliRun is the result of one in-process invocation.
type cliRun struct {
	code   int
	stdout string
	stderr string
}

// resetCommand clears viper and every flag so invocations do not leak
// into each other.
func resetCommand(t *testing.T) {
	t.Helper()
	viper.Reset()
	bindFlags()
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	t.Chdir(t.TempDir())
}

func runCLI(t *testing.T, args ...string) cliRun {
	t.Helper()
	resetCommand(t)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	code := Execute()
	return cliRun{code: code, stdout: out.String(), stderr: errOut.String()}
}

// writeConfig writes a config file with short camera timeouts.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	content := "camera:\n  open_timeout: 100ms\n  read_timeout: 1s\n  retry_delay: 1ms\n" +
		"diagnostics:\n  crash_dumps: false\n" + extra
	return testutil.TempFile(t, t.TempDir(), "camshot.yaml", content)
}

func staticCollector() *diagnostics.Collector {
	field := func(key, value string) diagnostics.FieldSpec {
		return diagnostics.FieldSpec{
			Key:    key,
			Marker: diagnostics.MarkerUnknown,
			Sources: []fallback.Candidate[string]{
				{Name: "test", Try: func(context.Context) (string, error) { return value, nil }},
			},
		}
	}
	return diagnostics.NewCollectorWithFields(time.Second, nil,
		field(diagnostics.FieldHostname, "lab-pc"),
		field(diagnostics.FieldMAC, "00-1a-2b-3c-4d-5e"),
		field(diagnostics.FieldUsername, "alice"),
	)
}

// fakeCapture routes the capture command to dev and records the config it
// was given.
func fakeCapture(t *testing.T, dev *testutil.MockDevice) *config.Config {
	t.Helper()
	var seen config.Config
	orig := captureOptions
	captureOptions = func(cfg *config.Config, logger *logging.Logger, cmd *cobra.Command) capture.Options {
		seen = *cfg
		opts := orig(cfg, logger, cmd)
		opts.Candidates = []string{cfg.Output.Dir}
		opts.Device = dev
		opts.Collector = staticCollector()
		opts.Installer = testutil.NewMockInstaller()
		opts.LookPath = func(string) (string, error) { return "/usr/bin/ffmpeg", nil }
		return opts
	}
	t.Cleanup(func() { captureOptions = orig })
	return &seen
}

func fakeLookPath(t *testing.T, found bool) {
	t.Helper()
	orig := lookPath
	lookPath = func(name string) (string, error) {
		if found {
			return filepath.Join("/usr/bin", name), nil
		}
		return "", os.ErrNotExist
	}
	t.Cleanup(func() { lookPath = orig })
}
