package camera

import (
	"context"
	"log/slog"

	"github.com/hugo-lorenzo-mato/camshot/internal/core"
)

// Scan runs one session per index from cfg.Index up to probeCount indices.
// It stops at the first result that is neither no_camera nor camera_busy.
// When every index is absent or busy, a busy camera wins over a missing
// one.
func Scan(ctx context.Context, dev Device, cfg SessionConfig, probeCount int, save SaveFunc, logger *slog.Logger) core.Outcome {
	if probeCount < 1 {
		probeCount = 1
	}

	var last, busy core.Outcome
	haveBusy := false
	for i := 0; i < probeCount; i++ {
		c := cfg
		c.Index = cfg.Index + i
		out := NewSession(dev, c, save, logger).Run(ctx)
		switch out.Kind {
		case core.KindNoCamera:
			last = out
		case core.KindCameraBusy:
			if !haveBusy {
				busy, haveBusy = out, true
			}
			last = out
		default:
			return out
		}
		if logger != nil && i+1 < probeCount {
			logger.Debug("camera index unusable, trying next", "index", c.Index, "outcome", out.Kind)
		}
	}
	if haveBusy {
		return busy
	}
	return last
}
