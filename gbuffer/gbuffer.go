// Package gbuffer models the host renderer's G-Buffer attachment set and
// the strategies for resolving it each frame.
//
// The attachments are owned by the host renderer. This package never
// creates or destroys them; it only describes them and validates that a
// resolved set is internally consistent before a pass binds it as render
// targets. Handles are valid for the current frame only and must be
// re-resolved when the renderer instance or its target size changes.
package gbuffer

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Resolution errors.
var (
	// ErrMissingHostAPI is returned when no accessor for the attachment
	// set is available (nil resolver callback or adapter).
	ErrMissingHostAPI = errors.New("gbuffer: host attachment accessor not available")

	// ErrStaleHandle is returned when a resolved attachment set is
	// internally inconsistent, typically a depth target whose resolution
	// no longer matches the color targets after a resize.
	ErrStaleHandle = errors.New("gbuffer: stale attachment handle")
)

// Attachment is one render target borrowed from the host renderer.
type Attachment struct {
	// View is the host-owned texture view bound as a render target.
	View hal.TextureView

	// Format is the view's texture format.
	Format gputypes.TextureFormat

	// Width and Height are the target resolution in pixels.
	Width  uint32
	Height uint32
}

// AttachmentSet is the ordered G-Buffer target set for one frame:
// color attachments (albedo, specular, normal, emissive, ...) plus the
// camera depth attachment.
type AttachmentSet struct {
	Color []Attachment
	Depth Attachment
}

// Validate checks that the set can be bound as render targets: every
// color attachment has a view, the depth attachment has a view, all
// color attachments share one resolution, and the depth resolution
// matches it. A mismatch signals a render-target resize mid-resolve and
// is reported as a stale handle.
func (s *AttachmentSet) Validate() error {
	if s == nil || len(s.Color) == 0 {
		return fmt.Errorf("empty attachment set: %w", ErrStaleHandle)
	}
	w, h := s.Color[0].Width, s.Color[0].Height
	for i, att := range s.Color {
		if att.View == nil {
			return fmt.Errorf("color attachment %d has no view: %w", i, ErrStaleHandle)
		}
		if att.Width != w || att.Height != h {
			return fmt.Errorf("color attachment %d is %dx%d, expected %dx%d: %w",
				i, att.Width, att.Height, w, h, ErrStaleHandle)
		}
	}
	if s.Depth.View == nil {
		return fmt.Errorf("depth attachment has no view: %w", ErrStaleHandle)
	}
	if s.Depth.Width != w || s.Depth.Height != h {
		return fmt.Errorf("depth attachment is %dx%d, color targets are %dx%d: %w",
			s.Depth.Width, s.Depth.Height, w, h, ErrStaleHandle)
	}
	return nil
}

// ColorFormats returns the ordered color attachment formats.
func (s *AttachmentSet) ColorFormats() []gputypes.TextureFormat {
	formats := make([]gputypes.TextureFormat, len(s.Color))
	for i, att := range s.Color {
		formats[i] = att.Format
	}
	return formats
}

// Extent returns the shared target resolution. Call Validate first;
// Extent reports the first color attachment's size.
func (s *AttachmentSet) Extent() (width, height uint32) {
	if len(s.Color) == 0 {
		return 0, 0
	}
	return s.Color[0].Width, s.Color[0].Height
}
