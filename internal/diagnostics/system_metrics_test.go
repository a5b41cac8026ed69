package diagnostics

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVideoDevicesSorted(t *testing.T) {
	p := fakeProbes(t)
	p.glob = func(string) ([]string, error) {
		return []string{"/dev/video10", "/dev/video2", "/dev/video0"}, nil
	}
	f, _ := NewCollectorWithFields(0, nil, p.videoDevicesSpec()).Collect(context.Background()).Lookup(FieldVideoDevices)
	assert.Equal(t, "/dev/video0,/dev/video2,/dev/video10", f.Value)
}

func TestVideoDevicesNone(t *testing.T) {
	p := fakeProbes(t)
	p.glob = func(string) ([]string, error) { return nil, nil }
	f, _ := NewCollectorWithFields(0, nil, p.videoDevicesSpec()).Collect(context.Background()).Lookup(FieldVideoDevices)
	assert.Equal(t, MarkerNone, f.Value)
	assert.True(t, f.Fallback)

	p.glob = func(string) ([]string, error) { return nil, errors.New("bad pattern") }
	f, _ = NewCollectorWithFields(0, nil, p.videoDevicesSpec()).Collect(context.Background()).Lookup(FieldVideoDevices)
	assert.Equal(t, MarkerNone, f.Value)
}

func TestAlwaysAvailableFields(t *testing.T) {
	r := NewCollectorWithFields(0, nil, goVersionSpec(), pidSpec()).Collect(context.Background())
	assert.Equal(t, runtime.Version(), r.Value(FieldGoVersion))
	assert.Equal(t, strconv.Itoa(os.Getpid()), r.Value(FieldPID))
}

func TestDiskFreeReportsPath(t *testing.T) {
	p := fakeProbes(t)
	f, _ := NewCollectorWithFields(0, nil, p.diskFreeSpec()).Collect(context.Background()).Lookup(FieldDiskFree)
	if f.Fallback {
		t.Skipf("disk usage unavailable here: %s", f.Error)
	}
	assert.Contains(t, f.Value, p.diskPath)
}

func TestVideoIndex(t *testing.T) {
	assert.Equal(t, 3, videoIndex("/dev/video3"))
	assert.Greater(t, videoIndex("/dev/video-loop"), 100)
}
