package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/hugo-lorenzo-mato/camshot/internal/fallback"
	"github.com/hugo-lorenzo-mato/camshot/internal/fsutil"
)

const maxHostnameLength = 50

var (
	hostnameEnv = []string{"COMPUTERNAME", "HOSTNAME", "HOST"}
	usernameEnv = []string{"USERNAME", "USER", "LOGNAME"}
	macIfaces   = []string{"eth0", "wlan0", "enp0s3", "wlp2s0"}
)

var errEmpty = errors.New("empty value")

// hostProbes holds the collaborators of the default field sources.
type hostProbes struct {
	exec       *SafeExecutor
	diskPath   string
	getenv     func(string) string
	readFile   func(string) (string, error)
	glob       func(string) ([]string, error)
	interfaces func(context.Context) (psnet.InterfaceStatList, error)
	sysNetDir  string
}

func newHostProbes(exec *SafeExecutor, diskPath string) *hostProbes {
	return &hostProbes{
		exec:       exec,
		diskPath:   diskPath,
		getenv:     os.Getenv,
		readFile:   fsutil.ReadTrimmed,
		glob:       filepath.Glob,
		interfaces: psnet.InterfacesWithContext,
		sysNetDir:  "/sys/class/net",
	}
}

func (p *hostProbes) specs() []FieldSpec {
	return []FieldSpec{
		p.hostnameSpec(),
		p.macSpec(),
		p.usernameSpec(),
		p.platformSpec(),
		p.kernelSpec(),
		p.hardwareIDSpec(),
		p.cpuModelSpec(),
		p.memorySpec(),
		p.diskFreeSpec(),
		p.videoDevicesSpec(),
		goVersionSpec(),
		pidSpec(),
	}
}

func (p *hostProbes) hostnameSpec() FieldSpec {
	return FieldSpec{
		Key:    FieldHostname,
		Marker: MarkerUnknownHost,
		Sources: []fallback.Candidate[string]{
			{Name: "os", Try: func(context.Context) (string, error) { return nonEmpty(os.Hostname()) }},
			{Name: "env", Try: func(context.Context) (string, error) { return p.firstEnv(hostnameEnv) }},
			{Name: "/etc/hostname", Try: func(context.Context) (string, error) { return nonEmpty(p.readFile("/etc/hostname")) }},
		},
		Normalize: NormalizeHostname,
	}
}

// NormalizeHostname replaces spaces and path separators and bounds the
// length.
func NormalizeHostname(h string) string {
	h = strings.TrimSpace(h)
	h = strings.NewReplacer(" ", "_", "/", "_", "\\", "_").Replace(h)
	if len(h) > maxHostnameLength {
		h = h[:maxHostnameLength]
	}
	return h
}

func (p *hostProbes) macSpec() FieldSpec {
	return FieldSpec{
		Key:    FieldMAC,
		Marker: MarkerUnknownMAC,
		Sources: []fallback.Candidate[string]{
			{Name: "interfaces", Try: p.macFromInterfaces},
			{Name: "sysfs", Try: p.macFromSysfs},
		},
	}
}

func (p *hostProbes) macFromInterfaces(ctx context.Context) (string, error) {
	ifaces, err := p.interfaces(ctx)
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		if hasFlag(iface.Flags, "loopback") {
			continue
		}
		if mac, ok := FormatMAC(iface.HardwareAddr); ok {
			return mac, nil
		}
	}
	return "", errors.New("no usable hardware address")
}

func (p *hostProbes) macFromSysfs(ctx context.Context) (string, error) {
	for _, name := range macIfaces {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		raw, err := p.readFile(filepath.Join(p.sysNetDir, name, "address"))
		if err != nil {
			continue
		}
		if mac, ok := FormatMAC(raw); ok {
			return mac, nil
		}
	}
	return "", errors.New("no usable address under " + p.sysNetDir)
}

// FormatMAC renders a hardware address as aa-bb-cc-dd-ee-ff. All-zero and
// locally administered (randomized) addresses are rejected.
func FormatMAC(raw string) (string, bool) {
	hw, err := net.ParseMAC(strings.TrimSpace(raw))
	if err != nil || len(hw) != 6 {
		return "", false
	}
	zero := true
	for _, b := range hw {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero || hw[0]&0x02 != 0 {
		return "", false
	}
	parts := make([]string, len(hw))
	for i, b := range hw {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, "-"), true
}

func (p *hostProbes) usernameSpec() FieldSpec {
	return FieldSpec{
		Key:    FieldUsername,
		Marker: MarkerUnknownUser,
		Sources: []fallback.Candidate[string]{
			{Name: "os/user", Try: func(context.Context) (string, error) {
				u, err := user.Current()
				if err != nil {
					return "", err
				}
				return nonEmpty(u.Username, nil)
			}},
			{Name: "env", Try: func(context.Context) (string, error) { return p.firstEnv(usernameEnv) }},
			{Name: "whoami", Try: func(ctx context.Context) (string, error) {
				res, err := p.exec.Run(ctx, "whoami")
				if err != nil {
					return "", err
				}
				return nonEmpty(strings.TrimSpace(string(res.Stdout)), nil)
			}},
		},
		Normalize: normalizeUsername,
	}
}

// normalizeUsername drops a DOMAIN\ prefix.
func normalizeUsername(u string) string {
	u = strings.TrimSpace(u)
	if i := strings.LastIndex(u, "\\"); i >= 0 {
		u = u[i+1:]
	}
	return u
}

func (p *hostProbes) firstEnv(keys []string) (string, error) {
	for _, k := range keys {
		if v := strings.TrimSpace(p.getenv(k)); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("none of %s set", strings.Join(keys, ", "))
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}

func nonEmpty(v string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", errEmpty
	}
	return v, nil
}
