package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/camshot/internal/camera"
)

// MockCall records a call to a mock.
type MockCall struct {
	Method    string
	Args      interface{}
	Timestamp time.Time
}

type recorder struct {
	mu    sync.Mutex
	calls []MockCall
}

func (r *recorder) record(method string, args interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, MockCall{Method: method, Args: args, Timestamp: time.Now()})
}

// Calls returns every recorded call.
func (r *recorder) Calls() []MockCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MockCall(nil), r.calls...)
}

// CallCount returns how often method was called.
func (r *recorder) CallCount(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

type mockHandle struct{ index int }

func (h mockHandle) Index() int { return h.index }

// MockDevice implements camera.Device for testing.
type MockDevice struct {
	recorder
	name      string
	frame     []byte
	openFunc  func(ctx context.Context, index int) error
	readFunc  func(ctx context.Context) ([]byte, error)
	leftOpen  int
	handlesMu sync.Mutex
}

// NewMockDevice creates a device that opens every index and returns frame
// on every read.
func NewMockDevice(frame []byte) *MockDevice {
	return &MockDevice{name: "mock", frame: frame}
}

// WithOpenFunc overrides Open.
func (m *MockDevice) WithOpenFunc(fn func(ctx context.Context, index int) error) *MockDevice {
	m.openFunc = fn
	return m
}

// WithReadFunc overrides Read.
func (m *MockDevice) WithReadFunc(fn func(ctx context.Context) ([]byte, error)) *MockDevice {
	m.readFunc = fn
	return m
}

// WithOpenTimeout makes every Open block until its context expires.
func (m *MockDevice) WithOpenTimeout() *MockDevice {
	return m.WithOpenFunc(func(ctx context.Context, _ int) error {
		<-ctx.Done()
		return ctx.Err()
	})
}

// Name returns the mock name.
func (m *MockDevice) Name() string {
	return m.name
}

// Open mocks acquiring a camera.
func (m *MockDevice) Open(ctx context.Context, index int) (camera.Handle, error) {
	m.record("Open", index)
	if m.openFunc != nil {
		if err := m.openFunc(ctx, index); err != nil {
			return nil, err
		}
	}
	m.handlesMu.Lock()
	m.leftOpen++
	m.handlesMu.Unlock()
	return mockHandle{index: index}, nil
}

// Read mocks grabbing a frame.
func (m *MockDevice) Read(ctx context.Context, h camera.Handle) ([]byte, error) {
	m.record("Read", h)
	if m.readFunc != nil {
		return m.readFunc(ctx)
	}
	if m.frame == nil {
		return nil, errors.New("mock: no frame configured")
	}
	return m.frame, nil
}

// Release mocks freeing a handle.
func (m *MockDevice) Release(h camera.Handle) error {
	m.record("Release", h)
	if h != nil {
		m.handlesMu.Lock()
		m.leftOpen--
		m.handlesMu.Unlock()
	}
	return nil
}

// OpenHandles returns the number of handles opened and not yet released.
func (m *MockDevice) OpenHandles() int {
	m.handlesMu.Lock()
	defer m.handlesMu.Unlock()
	return m.leftOpen
}

// MockInstaller implements resolver.Installer for testing.
type MockInstaller struct {
	recorder
	managers    []string
	installFunc func(ctx context.Context, manager, pkg string) (string, error)
}

// NewMockInstaller creates an installer offering managers. Installs fail
// unless WithInstallFunc says otherwise.
func NewMockInstaller(managers ...string) *MockInstaller {
	return &MockInstaller{managers: managers}
}

// WithInstallFunc overrides Install.
func (m *MockInstaller) WithInstallFunc(fn func(ctx context.Context, manager, pkg string) (string, error)) *MockInstaller {
	m.installFunc = fn
	return m
}

// Managers returns the configured managers.
func (m *MockInstaller) Managers() []string {
	return m.managers
}

// Install mocks a package install.
func (m *MockInstaller) Install(ctx context.Context, manager, pkg string) (string, error) {
	m.record("Install", manager+" "+pkg)
	if m.installFunc != nil {
		return m.installFunc(ctx, manager, pkg)
	}
	return "", errors.New("mock: install failed")
}
