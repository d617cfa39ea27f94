package gbuffer

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a device/queue pair on the noop backend.
func createNoopDevice(t *testing.T) (hal.Device, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		t.Fatal("no noop adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, cleanup
}

// makeAttachment creates a render-target attachment on the noop device.
func makeAttachment(t *testing.T, device hal.Device, format gputypes.TextureFormat, width, height uint32) Attachment {
	t.Helper()
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "test_attachment",
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	t.Cleanup(func() { device.DestroyTexture(tex) })

	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "test_attachment_view",
	})
	if err != nil {
		t.Fatalf("CreateTextureView: %v", err)
	}
	t.Cleanup(func() { device.DestroyTextureView(view) })

	return Attachment{View: view, Format: format, Width: width, Height: height}
}

// makeSet builds a 4-color + depth attachment set at the given size.
func makeSet(t *testing.T, device hal.Device, width, height uint32) *AttachmentSet {
	t.Helper()
	set := &AttachmentSet{
		Depth: makeAttachment(t, device, gputypes.TextureFormatDepth24PlusStencil8, width, height),
	}
	for i := 0; i < 4; i++ {
		set.Color = append(set.Color, makeAttachment(t, device, gputypes.TextureFormatRGBA8Unorm, width, height))
	}
	return set
}

func TestAttachmentSet_Validate(t *testing.T) {
	device, cleanup := createNoopDevice(t)
	defer cleanup()

	valid := makeSet(t, device, 64, 64)

	tests := []struct {
		name    string
		mutate  func(*AttachmentSet)
		wantErr bool
	}{
		{"valid", func(*AttachmentSet) {}, false},
		{"no color attachments", func(s *AttachmentSet) { s.Color = nil }, true},
		{"nil color view", func(s *AttachmentSet) { s.Color[2].View = nil }, true},
		{"mismatched color size", func(s *AttachmentSet) { s.Color[1].Width = 32 }, true},
		{"nil depth view", func(s *AttachmentSet) { s.Depth.View = nil }, true},
		{"depth size mismatch", func(s *AttachmentSet) { s.Depth.Height = 128 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := &AttachmentSet{
				Color: append([]Attachment(nil), valid.Color...),
				Depth: valid.Depth,
			}
			tt.mutate(set)
			err := set.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrStaleHandle) {
					t.Errorf("Validate() = %v, want ErrStaleHandle", err)
				}
			} else if err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestAttachmentSet_ValidateNil(t *testing.T) {
	var set *AttachmentSet
	if err := set.Validate(); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("nil set Validate() = %v, want ErrStaleHandle", err)
	}
}

func TestAttachmentSet_ColorFormats(t *testing.T) {
	set := &AttachmentSet{
		Color: []Attachment{
			{Format: gputypes.TextureFormatRGBA8Unorm},
			{Format: gputypes.TextureFormatBGRA8Unorm},
		},
	}
	formats := set.ColorFormats()
	if len(formats) != 2 {
		t.Fatalf("len = %d, want 2", len(formats))
	}
	if formats[0] != gputypes.TextureFormatRGBA8Unorm || formats[1] != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("formats = %v, order not preserved", formats)
	}
}

func TestAttachmentSet_Extent(t *testing.T) {
	device, cleanup := createNoopDevice(t)
	defer cleanup()

	set := makeSet(t, device, 320, 200)
	w, h := set.Extent()
	if w != 320 || h != 200 {
		t.Errorf("Extent() = %dx%d, want 320x200", w, h)
	}

	empty := &AttachmentSet{}
	if w, h := empty.Extent(); w != 0 || h != 0 {
		t.Errorf("empty Extent() = %dx%d, want 0x0", w, h)
	}
}
