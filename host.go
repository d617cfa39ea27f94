package gpudraw

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpudraw/gbuffer"
	gpuimpl "github.com/gogpu/gpudraw/internal/gpu"
)

// DeviceHandle provides GPU device access from the host application.
//
// Key principle: gpudraw RECEIVES the device from the host, it does NOT
// create one. The host (e.g. a gogpu.App) implements DeviceHandle and
// passes it to SetDeviceProvider, so the feature shares the engine's
// device and queue instead of opening its own.
//
// DeviceHandle is an alias for gpucontext.DeviceProvider, keeping full
// compatibility with the gpucontext ecosystem.
type DeviceHandle = gpucontext.DeviceProvider

// Shader asset identifiers resolved through a ShaderCatalog.
const (
	// ComputeProgramName identifies the buffer-generation compute program.
	ComputeProgramName = "gpudraw/generate"

	// FillShaderName identifies the G-Buffer fill raster shader.
	FillShaderName = "gpudraw/gbuffer_fill"
)

// ShaderCatalog loads named WGSL shader sources. The default catalog
// serves the sources embedded in this module; hosts with their own asset
// pipeline substitute one via WithShaderCatalog. A lookup miss is a
// non-fatal, logged condition: the affected stage skips its GPU work
// until the asset becomes available.
type ShaderCatalog interface {
	Shader(name string) (string, error)
}

// embeddedCatalog serves the module's embedded WGSL sources.
type embeddedCatalog struct{}

func (embeddedCatalog) Shader(name string) (string, error) {
	switch name {
	case ComputeProgramName:
		return gpuimpl.GenerateShaderSource(), nil
	case FillShaderName:
		return gpuimpl.FillShaderSource(), nil
	}
	return "", fmt.Errorf("unknown shader %q: %w", name, ErrMissingAsset)
}

// EmbeddedShaders returns the default catalog backed by the WGSL sources
// compiled into this module.
func EmbeddedShaders() ShaderCatalog { return embeddedCatalog{} }

// FrameContext carries the per-frame resources the host hands to
// RecordFrame. The encoder is the host's command stream for this frame,
// already recording; gpudraw appends its compute and raster passes to it
// and relies on queue submission order for compute-before-draw.
type FrameContext struct {
	// Encoder is the host-owned command encoder for the frame.
	Encoder hal.CommandEncoder

	// Attachments optionally supplies this frame's G-Buffer targets
	// directly (the public frame-resource path). When nil, the feature
	// falls back to the resolver configured with WithAttachmentResolver.
	Attachments *gbuffer.AttachmentSet
}

// Pass is the per-frame hook a host scheduler invokes. Feature
// implements it.
type Pass interface {
	RecordFrame(frame *FrameContext) error
	Dispose()
}

// PassScheduler is the host's pipeline registration surface. The single
// insertion point this feature supports is immediately after the
// engine's own G-Buffer population pass, since the draw augments the
// standard deferred path and depth-tests against the populated depth
// target.
type PassScheduler interface {
	AddPassAfterGBuffer(p Pass) error
}
