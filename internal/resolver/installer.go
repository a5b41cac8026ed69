package resolver

import (
	"context"
	"os/exec"
	"runtime"

	"github.com/hugo-lorenzo-mato/camshot/internal/diagnostics"
)

// Installer installs one package through one package manager.
type Installer interface {
	// Managers lists the usable package managers in preference order.
	Managers() []string
	// Install runs a single non-interactive install and returns its output.
	Install(ctx context.Context, manager, pkg string) (string, error)
}

// managerOrder is the preference order of supported package managers.
var managerOrder = []string{"apt-get", "dnf", "yum", "pacman", "apk", "zypper", "brew", "winget", "choco"}

// installArgs returns the non-interactive install command for a manager.
func installArgs(manager, pkg string) []string {
	switch manager {
	case "apt-get":
		return []string{"install", "-y", "-q", "--no-install-recommends", pkg}
	case "dnf", "yum":
		return []string{"install", "-y", "-q", pkg}
	case "pacman":
		return []string{"-S", "--noconfirm", "--needed", pkg}
	case "apk":
		return []string{"add", "--no-cache", pkg}
	case "zypper":
		return []string{"--non-interactive", "install", pkg}
	case "brew":
		return []string{"install", pkg}
	case "winget":
		return []string{"install", "-e", "--id", pkg, "--silent", "--accept-package-agreements", "--accept-source-agreements"}
	case "choco":
		return []string{"install", pkg, "-y", "--no-progress"}
	}
	return nil
}

// ExecInstaller runs package managers through the bounded executor. Output
// is captured, never streamed to the terminal.
type ExecInstaller struct {
	exec     *diagnostics.SafeExecutor
	lookPath func(string) (string, error)
	goos     string
}

// NewExecInstaller creates an installer backed by exec.
func NewExecInstaller(exec *diagnostics.SafeExecutor) *ExecInstaller {
	return &ExecInstaller{
		exec: exec.WithEnv(
			"DEBIAN_FRONTEND=noninteractive",
			"HOMEBREW_NO_AUTO_UPDATE=1",
			"HOMEBREW_NO_INSTALL_CLEANUP=1",
		),
		lookPath: lookPathFunc,
		goos:     runtime.GOOS,
	}
}

var lookPathFunc = exec.LookPath

// Managers lists the supported package managers present on PATH.
func (i *ExecInstaller) Managers() []string {
	var found []string
	for _, m := range managerOrder {
		if !managerFitsOS(m, i.goos) {
			continue
		}
		if _, err := i.lookPath(m); err == nil {
			found = append(found, m)
		}
	}
	return found
}

func managerFitsOS(manager, goos string) bool {
	switch manager {
	case "winget", "choco":
		return goos == "windows"
	case "brew":
		return goos == "darwin" || goos == "linux"
	default:
		return goos == "linux"
	}
}

// Install runs one install and returns the combined output tail.
func (i *ExecInstaller) Install(ctx context.Context, manager, pkg string) (string, error) {
	args := installArgs(manager, pkg)
	if args == nil {
		return "", &UnsupportedManagerError{Manager: manager}
	}
	res, err := i.exec.Run(ctx, manager, args...)
	out := string(res.Stdout)
	if res.Stderr != "" {
		out += res.Stderr
	}
	return out, err
}

// UnsupportedManagerError is returned for an unknown package manager.
type UnsupportedManagerError struct {
	Manager string
}

func (e *UnsupportedManagerError) Error() string {
	return "unsupported package manager " + e.Manager
}
