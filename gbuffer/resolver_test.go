package gbuffer

import (
	"errors"
	"fmt"
	"testing"
)

// fakeInternals is a host adapter whose targets can be swapped to
// simulate renderer rebuilds and resizes.
type fakeInternals struct {
	color []Attachment
	depth Attachment
	gen   uint64

	resolveCalls int
}

func (f *fakeInternals) GBufferColor() []Attachment {
	f.resolveCalls++
	return append([]Attachment(nil), f.color...)
}

func (f *fakeInternals) CameraDepth() Attachment { return f.depth }
func (f *fakeInternals) Generation() uint64      { return f.gen }

func TestFrameResolver(t *testing.T) {
	device, cleanup := createNoopDevice(t)
	defer cleanup()

	set := makeSet(t, device, 64, 64)

	t.Run("resolves via callback", func(t *testing.T) {
		r := NewFrameResolver(func() (*AttachmentSet, error) { return set, nil })
		got, err := r.Resolve()
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got != set {
			t.Error("Resolve returned a different set")
		}
	})

	t.Run("nil callback", func(t *testing.T) {
		r := NewFrameResolver(nil)
		if _, err := r.Resolve(); !errors.Is(err, ErrMissingHostAPI) {
			t.Errorf("err = %v, want ErrMissingHostAPI", err)
		}
	})

	t.Run("callback error", func(t *testing.T) {
		hostErr := fmt.Errorf("renderer not ready")
		r := NewFrameResolver(func() (*AttachmentSet, error) { return nil, hostErr })
		if _, err := r.Resolve(); !errors.Is(err, hostErr) {
			t.Errorf("err = %v, want wrapped host error", err)
		}
	})

	t.Run("invalid set", func(t *testing.T) {
		bad := &AttachmentSet{Color: []Attachment{{View: nil}}}
		r := NewFrameResolver(func() (*AttachmentSet, error) { return bad, nil })
		if _, err := r.Resolve(); !errors.Is(err, ErrStaleHandle) {
			t.Errorf("err = %v, want ErrStaleHandle", err)
		}
	})
}

func TestInternalsResolver_Caching(t *testing.T) {
	device, cleanup := createNoopDevice(t)
	defer cleanup()

	set := makeSet(t, device, 64, 64)
	host := &fakeInternals{color: set.Color, depth: set.Depth, gen: 1}
	r := NewInternalsResolver(host)

	first, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve (cached): %v", err)
	}
	if first != second {
		t.Error("stable generation re-fetched instead of using the cache")
	}
	if host.resolveCalls != 1 {
		t.Errorf("adapter fetched %d times, want 1", host.resolveCalls)
	}

	// Generation bump invalidates the cache.
	host.gen = 2
	third, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve (new generation): %v", err)
	}
	if third == first {
		t.Error("generation change did not re-resolve")
	}
	if host.resolveCalls != 2 {
		t.Errorf("adapter fetched %d times, want 2", host.resolveCalls)
	}
}

func TestInternalsResolver_Resize(t *testing.T) {
	device, cleanup := createNoopDevice(t)
	defer cleanup()

	small := makeSet(t, device, 64, 64)
	host := &fakeInternals{color: small.Color, depth: small.Depth, gen: 1}
	r := NewInternalsResolver(host)

	if _, err := r.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// Render-target resize: the renderer recreates its targets at the new
	// size and bumps the generation.
	large := makeSet(t, device, 128, 128)
	host.color = large.Color
	host.depth = large.Depth
	host.gen = 2

	set, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve after resize: %v", err)
	}
	w, h := set.Extent()
	if w != 128 || h != 128 {
		t.Errorf("resolved extent = %dx%d, want 128x128", w, h)
	}
	if set.Depth.Width != w || set.Depth.Height != h {
		t.Errorf("depth %dx%d does not match color %dx%d",
			set.Depth.Width, set.Depth.Height, w, h)
	}
}

func TestInternalsResolver_StaleDepth(t *testing.T) {
	device, cleanup := createNoopDevice(t)
	defer cleanup()

	set := makeSet(t, device, 64, 64)
	// Host resized color targets but still reports the old depth handle.
	staleDepth := makeAttachment(t, device, set.Depth.Format, 32, 32)
	host := &fakeInternals{color: set.Color, depth: staleDepth, gen: 1}
	r := NewInternalsResolver(host)

	if _, err := r.Resolve(); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("err = %v, want ErrStaleHandle", err)
	}

	// Condition clears: depth catches up, resolve succeeds again.
	host.depth = set.Depth
	if _, err := r.Resolve(); err != nil {
		t.Errorf("Resolve after recovery: %v", err)
	}
}

func TestInternalsResolver_NilHost(t *testing.T) {
	r := NewInternalsResolver(nil)
	if _, err := r.Resolve(); !errors.Is(err, ErrMissingHostAPI) {
		t.Errorf("err = %v, want ErrMissingHostAPI", err)
	}
}

// Compile-time check: fakeInternals satisfies the versioned adapter.
var _ DeferredInternalsV1 = (*fakeInternals)(nil)
