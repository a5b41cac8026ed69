package testutil

import (
	"context"
	"testing"

	"github.com/hugo-lorenzo-mato/camshot/internal/camera"
	"github.com/hugo-lorenzo-mato/camshot/internal/resolver"
)

var (
	_ camera.Device      = (*MockDevice)(nil)
	_ resolver.Installer = (*MockInstaller)(nil)
)

func TestMockDevice_TracksHandles(t *testing.T) {
	d := NewMockDevice(JPEG(t, 4, 4))

	h, err := d.Open(context.Background(), 2)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if h.Index() != 2 {
		t.Errorf("Index() = %d, want 2", h.Index())
	}
	if d.OpenHandles() != 1 {
		t.Errorf("OpenHandles() = %d, want 1", d.OpenHandles())
	}
	if _, err := d.Read(context.Background(), h); err != nil {
		t.Errorf("Read() error = %v", err)
	}
	_ = d.Release(h)
	_ = d.Release(nil)

	if d.OpenHandles() != 0 {
		t.Errorf("OpenHandles() = %d after release", d.OpenHandles())
	}
	if d.CallCount("Release") != 2 {
		t.Errorf("CallCount(Release) = %d, want 2", d.CallCount("Release"))
	}
	if len(d.Calls()) != 4 {
		t.Errorf("len(Calls()) = %d, want 4", len(d.Calls()))
	}
}

func TestMockInstaller_FailsByDefault(t *testing.T) {
	m := NewMockInstaller("apt-get")
	if _, err := m.Install(context.Background(), "apt-get", "ffmpeg"); err == nil {
		t.Error("Install() should fail by default")
	}
	if m.CallCount("Install") != 1 {
		t.Errorf("CallCount(Install) = %d, want 1", m.CallCount("Install"))
	}
}

func TestScrubAll(t *testing.T) {
	in := "run 1b4e28ba-2fa1-11d2-883f-0016d3cca427 at 2026-10-16 09:30:00 took 1.5s in /tmp/x/out\r\n"
	got := ScrubAll(in, "/tmp/x")
	want := "run [UUID] at [TIMESTAMP] took [DURATION] in [WORKDIR]/out"
	if got != want {
		t.Errorf("ScrubAll() = %q, want %q", got, want)
	}
}
