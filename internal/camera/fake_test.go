package camera

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeHandle struct{ index int }

func (h *fakeHandle) Index() int { return h.index }

type readResult struct {
	data []byte
	err  error
}

// fakeDevice scripts Open and Read results and counts Release calls.
type fakeDevice struct {
	mu sync.Mutex

	openErr     error
	openErrs    map[int]error
	partial     bool
	reads       []readResult
	readHook    func(ctx context.Context) ([]byte, error)
	openHook    func(ctx context.Context) error
	opened      []int
	readCalls   int
	releases    int
	releasedNil int
}

func (d *fakeDevice) Name() string { return "fake" }

func (d *fakeDevice) Open(ctx context.Context, index int) (Handle, error) {
	d.mu.Lock()
	d.opened = append(d.opened, index)
	d.mu.Unlock()
	if d.openHook != nil {
		if err := d.openHook(ctx); err != nil {
			return nil, err
		}
	}
	if err, ok := d.openErrs[index]; ok {
		return nil, err
	}
	if d.openErr != nil {
		if d.partial {
			return &fakeHandle{index: index}, d.openErr
		}
		return nil, d.openErr
	}
	return &fakeHandle{index: index}, nil
}

func (d *fakeDevice) Read(ctx context.Context, _ Handle) ([]byte, error) {
	d.mu.Lock()
	i := d.readCalls
	d.readCalls++
	d.mu.Unlock()
	if d.readHook != nil {
		return d.readHook(ctx)
	}
	if len(d.reads) == 0 {
		return nil, nil
	}
	if i >= len(d.reads) {
		i = len(d.reads) - 1
	}
	return d.reads[i].data, d.reads[i].err
}

func (d *fakeDevice) Release(h Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releases++
	if h == nil {
		d.releasedNil++
	}
	return nil
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(w, h), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))
	return buf.Bytes()
}
