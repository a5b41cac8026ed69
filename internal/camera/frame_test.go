package camera

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/camshot/internal/core"
	"github.com/hugo-lorenzo-mato/camshot/internal/diagnostics"
)

func TestMaterialize_ReencodesJPEG(t *testing.T) {
	raw := testJPEG(t, 64, 48)

	f, err := Materialize(context.Background(), raw, 85, nil)
	require.NoError(t, err)
	assert.Equal(t, 64, f.Descriptor.Width)
	assert.Equal(t, 48, f.Descriptor.Height)
	assert.Equal(t, len(f.Data), f.Descriptor.Bytes)
	assert.False(t, f.Descriptor.Empty)
	assert.Equal(t, []byte{0xFF, 0xD8}, f.Data[:2])
}

func TestMaterialize_QualityZeroKeepsBytes(t *testing.T) {
	raw := testJPEG(t, 16, 16)

	f, err := Materialize(context.Background(), raw, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, raw, f.Data)
}

func TestMaterialize_PNGBecomesJPEG(t *testing.T) {
	f, err := Materialize(context.Background(), testPNG(t, 8, 8), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, f.Data[:2])
}

func TestMaterialize_Invalid(t *testing.T) {
	tests := map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("not an image at all"),
		"truncated": testJPEG(t, 32, 32)[:20],
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Materialize(context.Background(), data, 85, nil)
			require.Error(t, err)
			assert.True(t, core.IsKind(err, core.KindInvalidFrame), "got %v", err)
		})
	}
}

func TestMaterialize_InsufficientMemory(t *testing.T) {
	check := func(_ context.Context, need uint64) error {
		assert.Equal(t, uint64(64*48*8), need)
		return fmt.Errorf("%w: test", diagnostics.ErrInsufficientMemory)
	}
	_, err := Materialize(context.Background(), testJPEG(t, 64, 48), 85, check)
	assert.ErrorIs(t, err, ErrMemoryExhausted)
}

func TestMaterialize_KeepingBytesSkipsMemoryCheck(t *testing.T) {
	called := false
	check := func(context.Context, uint64) error {
		called = true
		return fmt.Errorf("%w: test", diagnostics.ErrInsufficientMemory)
	}
	data := testJPEG(t, 64, 48)

	f, err := Materialize(context.Background(), data, 0, check)

	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, data, f.Data)
}

func TestMaterialize_PNGStillChecksMemory(t *testing.T) {
	check := func(context.Context, uint64) error {
		return fmt.Errorf("%w: test", diagnostics.ErrInsufficientMemory)
	}
	_, err := Materialize(context.Background(), testPNG(t, 16, 16), 0, check)
	assert.ErrorIs(t, err, ErrMemoryExhausted)
}

func TestMaterialize_UnrelatedCheckErrorIgnored(t *testing.T) {
	check := func(context.Context, uint64) error { return errors.New("no /proc") }
	_, err := Materialize(context.Background(), testJPEG(t, 8, 8), 85, check)
	assert.NoError(t, err)
}

func TestIsAllocPanic(t *testing.T) {
	assert.True(t, isAllocPanic("runtime error: makeslice: len out of range"))
	assert.True(t, isAllocPanic(errors.New("fatal: out of memory")))
	assert.False(t, isAllocPanic("index out of range"))
}
