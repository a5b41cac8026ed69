package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/hugo-lorenzo-mato/camshot/internal/fallback"
)

func (p *hostProbes) platformSpec() FieldSpec {
	return FieldSpec{
		Key:    FieldPlatform,
		Marker: runtime.GOOS + "/" + runtime.GOARCH,
		Sources: []fallback.Candidate[string]{
			{Name: "host", Try: func(ctx context.Context) (string, error) {
				info, err := host.InfoWithContext(ctx)
				if err != nil {
					return "", err
				}
				platform := strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
				if platform == "" {
					platform = info.OS
				}
				return nonEmpty(fmt.Sprintf("%s (%s/%s)", platform, runtime.GOOS, runtime.GOARCH), nil)
			}},
		},
	}
}

func (p *hostProbes) kernelSpec() FieldSpec {
	return FieldSpec{
		Key:    FieldKernel,
		Marker: MarkerUnknown,
		Sources: []fallback.Candidate[string]{
			{Name: "host", Try: func(ctx context.Context) (string, error) {
				return nonEmpty(host.KernelVersionWithContext(ctx))
			}},
		},
	}
}

func (p *hostProbes) hardwareIDSpec() FieldSpec {
	return FieldSpec{
		Key:    FieldHardwareID,
		Marker: MarkerUnknown,
		Sources: []fallback.Candidate[string]{
			{Name: "ghw", Try: func(context.Context) (string, error) {
				product, err := ghw.Product()
				if err != nil {
					return "", err
				}
				id := strings.TrimSpace(product.UUID)
				if id == "" || strings.EqualFold(id, "unknown") {
					return "", errors.New("product uuid not exposed")
				}
				return id, nil
			}},
			{Name: "host", Try: func(ctx context.Context) (string, error) {
				return nonEmpty(host.HostIDWithContext(ctx))
			}},
		},
	}
}

func (p *hostProbes) cpuModelSpec() FieldSpec {
	return FieldSpec{
		Key:    FieldCPUModel,
		Marker: MarkerUnknown,
		Sources: []fallback.Candidate[string]{
			{Name: "cpu", Try: func(ctx context.Context) (string, error) {
				infos, err := cpu.InfoWithContext(ctx)
				if err != nil {
					return "", err
				}
				if len(infos) == 0 {
					return "", errEmpty
				}
				return nonEmpty(withThreads(ctx, infos[0].ModelName), nil)
			}},
			{Name: "ghw", Try: func(context.Context) (string, error) {
				info, err := ghw.CPU()
				if err != nil {
					return "", err
				}
				for _, proc := range info.Processors {
					if m := strings.TrimSpace(proc.Model); m != "" {
						return m, nil
					}
				}
				return "", errEmpty
			}},
		},
	}
}

func withThreads(ctx context.Context, model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return ""
	}
	if threads, err := cpu.CountsWithContext(ctx, true); err == nil && threads > 0 {
		return fmt.Sprintf("%s x%d", model, threads)
	}
	return model
}

func (p *hostProbes) memorySpec() FieldSpec {
	return FieldSpec{
		Key:    FieldMemory,
		Marker: MarkerUnknown,
		Sources: []fallback.Candidate[string]{
			{Name: "mem", Try: func(ctx context.Context) (string, error) {
				vm, err := mem.VirtualMemoryWithContext(ctx)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%.0f MB total, %.0f MB available", toMB(vm.Total), toMB(vm.Available)), nil
			}},
		},
	}
}

func (p *hostProbes) diskFreeSpec() FieldSpec {
	return FieldSpec{
		Key:    FieldDiskFree,
		Marker: MarkerUnknown,
		Sources: []fallback.Candidate[string]{
			{Name: "disk", Try: func(ctx context.Context) (string, error) {
				path := p.diskPath
				if path == "" {
					wd, err := os.Getwd()
					if err != nil {
						return "", err
					}
					path = wd
				}
				usage, err := disk.UsageWithContext(ctx, path)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%.1f GB free of %.1f GB (%s)",
					toGB(usage.Free), toGB(usage.Total), path), nil
			}},
		},
	}
}

func (p *hostProbes) videoDevicesSpec() FieldSpec {
	return FieldSpec{
		Key:    FieldVideoDevices,
		Marker: MarkerNone,
		Sources: []fallback.Candidate[string]{
			{Name: "/dev", Try: func(context.Context) (string, error) {
				matches, err := p.glob("/dev/video*")
				if err != nil {
					return "", err
				}
				if len(matches) == 0 {
					return "", errors.New("no /dev/video* nodes")
				}
				sort.Slice(matches, func(i, j int) bool { return videoIndex(matches[i]) < videoIndex(matches[j]) })
				return strings.Join(matches, ","), nil
			}},
		},
	}
}

func videoIndex(path string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(path, "/dev/video"))
	if err != nil {
		return 1 << 30
	}
	return n
}

func goVersionSpec() FieldSpec {
	return FieldSpec{
		Key:    FieldGoVersion,
		Marker: MarkerUnknown,
		Sources: []fallback.Candidate[string]{
			{Name: "runtime", Try: func(context.Context) (string, error) { return runtime.Version(), nil }},
		},
	}
}

func pidSpec() FieldSpec {
	return FieldSpec{
		Key:    FieldPID,
		Marker: MarkerUnknown,
		Sources: []fallback.Candidate[string]{
			{Name: "os", Try: func(context.Context) (string, error) { return strconv.Itoa(os.Getpid()), nil }},
		},
	}
}

func toGB(b uint64) float64 {
	return float64(b) / 1024 / 1024 / 1024
}
