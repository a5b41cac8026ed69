package camera

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hugo-lorenzo-mato/camshot/internal/core"
)

func TestScan_SingleIndexByDefault(t *testing.T) {
	dev := &fakeDevice{openErr: ErrNoCamera}
	out := Scan(context.Background(), dev, fastConfig(), 0, nil, nil)

	assert.Equal(t, core.KindNoCamera, out.Kind)
	assert.Equal(t, []int{0}, dev.opened)
}

func TestScan_FindsLaterCamera(t *testing.T) {
	cfg := fastConfig()
	cfg.Index = 1
	dev := &fakeDevice{
		openErrs: map[int]error{1: ErrNoCamera, 2: ErrBusy},
		reads:    []readResult{{data: testJPEG(t, 8, 8)}},
	}
	s := Scan(context.Background(), dev, cfg, 4, nil, nil)

	assert.True(t, s.OK(), s.Message())
	assert.Equal(t, []int{1, 2, 3}, dev.opened)
	assert.Equal(t, 3, dev.releases)
}

func TestScan_BusyBeatsMissing(t *testing.T) {
	dev := &fakeDevice{openErrs: map[int]error{0: ErrNoCamera, 1: ErrBusy, 2: ErrNoCamera}}
	out := Scan(context.Background(), dev, fastConfig(), 3, nil, nil)

	assert.Equal(t, core.KindCameraBusy, out.Kind)
	assert.Contains(t, out.Reason, "camera 1")
}

func TestScan_StopsOnOtherFailure(t *testing.T) {
	dev := &fakeDevice{reads: []readResult{{err: errors.New("EIO")}}}
	out := Scan(context.Background(), dev, fastConfig(), 3, nil, nil)

	assert.Equal(t, core.KindInvalidFrame, out.Kind)
	assert.Equal(t, []int{0}, dev.opened)
}

func TestScan_DependencyMissingStops(t *testing.T) {
	out := Scan(context.Background(), NewStubDevice("ffmpeg not found"), fastConfig(), 3, nil, nil)
	assert.Equal(t, core.KindDependencyMissing, out.Kind)
	assert.Contains(t, out.Message(), "ffmpeg not found")
}
