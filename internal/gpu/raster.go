package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Raster stage entry points in the fill shader.
const (
	fillVertexEntryPoint   = "vs_main"
	fillFragmentEntryPoint = "fs_main"
)

// cameraBufferSize is the byte size of the Camera uniform (one mat4x4).
const cameraBufferSize = 64

// identityMatrix is the default view-projection: generated positions are
// already in clip space.
var identityMatrix = [16]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// GBufferStage is the indirect raster stage. It consumes the generated
// geometry buffers in one indexed indirect draw and writes albedo,
// specular, normal, and emissive targets of the host's G-Buffer.
//
// The render pipeline depends on the resolved attachment formats, which
// belong to the host and can change across frames (resize, pipeline
// rebuild). EnsurePipeline rebuilds it only when the format set changes.
type GBufferStage struct {
	device hal.Device
	queue  hal.Queue

	module     hal.ShaderModule
	bgLayout   hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	cameraBuf  hal.Buffer
	bindGroup  hal.BindGroup

	// Cache key for the current pipeline.
	colorFormats []gputypes.TextureFormat
	depthFormat  gputypes.TextureFormat

	drawCount uint64
}

// TargetCount is the number of color targets the fill shader writes.
// The resolved G-Buffer attachment set must have at least this many
// color attachments; extra host channels are bound with writes masked.
const TargetCount = 4

// Init compiles the fill shader and creates the format-independent
// resources (uniform buffer, layouts, bind group). The pipeline itself is
// built lazily by EnsurePipeline once attachment formats are known.
func (s *GBufferStage) Init(device hal.Device, queue hal.Queue, wgsl string) error {
	if device == nil {
		return ErrNilDevice
	}
	s.device = device
	s.queue = queue

	words, err := compileWGSL("gpudraw_gbuffer_fill", wgsl)
	if err != nil {
		return fmt.Errorf("gbuffer stage: %w", err)
	}

	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "gpudraw_gbuffer_fill",
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return fmt.Errorf("gbuffer stage: create shader module: %w", err)
	}
	s.module = module

	bgLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "gpudraw_fill_bgl",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		s.Destroy()
		return fmt.Errorf("gbuffer stage: create bind group layout: %w", err)
	}
	s.bgLayout = bgLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "gpudraw_fill_pl",
		BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
	})
	if err != nil {
		s.Destroy()
		return fmt.Errorf("gbuffer stage: create pipeline layout: %w", err)
	}
	s.pipeLayout = pipeLayout

	cameraBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gpudraw_camera",
		Size:  cameraBufferSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		s.Destroy()
		return fmt.Errorf("gbuffer stage: create camera buffer: %w", err)
	}
	s.cameraBuf = cameraBuf

	if err := s.SetViewProjection(identityMatrix); err != nil {
		s.Destroy()
		return err
	}

	bindGroup, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "gpudraw_fill_bg",
		Layout: bgLayout,
		Entries: []gputypes.BindGroupEntry{
			bufferEntry(0, cameraBuf),
		},
	})
	if err != nil {
		s.Destroy()
		return fmt.Errorf("gbuffer stage: create bind group: %w", err)
	}
	s.bindGroup = bindGroup

	return nil
}

// SetViewProjection uploads the clip transform used by the vertex stage.
func (s *GBufferStage) SetViewProjection(m [16]float32) error {
	if s.cameraBuf == nil {
		return fmt.Errorf("set view projection: %w", ErrNotInitialized)
	}
	data := make([]byte, cameraBufferSize)
	for i, v := range m {
		writeFloat32(data, i*4, v)
	}
	s.queue.WriteBuffer(s.cameraBuf, 0, data)
	return nil
}

// EnsurePipeline builds the render pipeline for the given attachment
// formats, reusing the cached one when the formats have not changed.
// The fill shader writes the first TargetCount color outputs; hosts
// with richer G-Buffer layouts (depth proxy, layer masks) get their
// extra channels bound with writes masked off. Fewer targets than the
// shader writes cannot be served and the frame is skipped upstream.
func (s *GBufferStage) EnsurePipeline(colorFormats []gputypes.TextureFormat, depthFormat gputypes.TextureFormat) error {
	if s.module == nil {
		return fmt.Errorf("ensure pipeline: %w", ErrNotInitialized)
	}
	if len(colorFormats) < TargetCount {
		return fmt.Errorf("gbuffer stage: %d color targets, shader writes %d: %w",
			len(colorFormats), TargetCount, ErrTargetMismatch)
	}
	if s.pipeline != nil && s.depthFormat == depthFormat && formatsEqual(s.colorFormats, colorFormats) {
		return nil
	}

	// Format change: drop the stale pipeline before rebuilding.
	if s.pipeline != nil {
		s.device.DestroyRenderPipeline(s.pipeline)
		s.pipeline = nil
	}

	targets := make([]gputypes.ColorTargetState, len(colorFormats))
	for i, format := range colorFormats {
		mask := gputypes.ColorWriteMaskAll
		if i >= TargetCount {
			// Extra host channel the fill shader does not produce.
			mask = gputypes.ColorWriteMaskNone
		}
		targets[i] = gputypes.ColorTargetState{
			Format:    format,
			Blend:     nil, // opaque geometry, no blending
			WriteMask: mask,
		}
	}

	keepStencil := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}

	pipeline, err := s.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "gpudraw_gbuffer_fill",
		Layout: s.pipeLayout,
		Vertex: hal.VertexState{
			Module:     s.module,
			EntryPoint: fillVertexEntryPoint,
			Buffers: []gputypes.VertexBufferLayout{
				{
					ArrayStride: VertexStride,
					StepMode:    gputypes.VertexStepModeVertex,
					Attributes: []gputypes.VertexAttribute{
						{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
						{Format: gputypes.VertexFormatFloat32x4, Offset: vertexColorOffset, ShaderLocation: 1},
					},
				},
			},
		},
		Fragment: &hal.FragmentState{
			Module:     s.module,
			EntryPoint: fillFragmentEntryPoint,
			Targets:    targets,
		},
		DepthStencil: &hal.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLessEqual,
			StencilFront:      keepStencil,
			StencilBack:       keepStencil,
			StencilReadMask:   0xFF,
			StencilWriteMask:  0x00,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
	})
	if err != nil {
		return fmt.Errorf("gbuffer stage: create render pipeline: %w", err)
	}
	s.pipeline = pipeline
	s.colorFormats = append([]gputypes.TextureFormat(nil), colorFormats...)
	s.depthFormat = depthFormat

	slogger().Debug("gbuffer fill pipeline created",
		"colorTargets", len(colorFormats),
		"depthFormat", depthFormat)
	return nil
}

func formatsEqual(a, b []gputypes.TextureFormat) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Ready reports whether the stage can record draws.
func (s *GBufferStage) Ready() bool {
	return s.pipeline != nil && s.bindGroup != nil
}

// RecordDraws records the single indexed indirect draw into an existing
// render pass. The pass is owned by the caller and already targets the
// resolved G-Buffer attachments. No-ops when the stage or the geometry
// is not ready.
func (s *GBufferStage) RecordDraws(rp hal.RenderPassEncoder, geo *GeometryBuffers) {
	if !s.Ready() || geo == nil || !geo.Ready() {
		return
	}
	rp.SetPipeline(s.pipeline)
	rp.SetBindGroup(0, s.bindGroup, nil)
	rp.SetVertexBuffer(0, geo.VertexBuffer(), 0)
	rp.SetIndexBuffer(geo.IndexBuffer(), gputypes.IndexFormatUint32, 0)
	rp.DrawIndexedIndirect(geo.IndirectBuffer(), 0)
	s.drawCount++
}

// DrawCount returns the number of indirect draws recorded so far.
func (s *GBufferStage) DrawCount() uint64 { return s.drawCount }

// Destroy releases all stage resources in reverse creation order.
// Safe to call multiple times and after partial initialization.
func (s *GBufferStage) Destroy() {
	if s.device == nil {
		return
	}
	if s.bindGroup != nil {
		s.device.DestroyBindGroup(s.bindGroup)
		s.bindGroup = nil
	}
	if s.pipeline != nil {
		s.device.DestroyRenderPipeline(s.pipeline)
		s.pipeline = nil
	}
	if s.cameraBuf != nil {
		s.device.DestroyBuffer(s.cameraBuf)
		s.cameraBuf = nil
	}
	if s.pipeLayout != nil {
		s.device.DestroyPipelineLayout(s.pipeLayout)
		s.pipeLayout = nil
	}
	if s.bgLayout != nil {
		s.device.DestroyBindGroupLayout(s.bgLayout)
		s.bgLayout = nil
	}
	if s.module != nil {
		s.device.DestroyShaderModule(s.module)
		s.module = nil
	}
	s.colorFormats = nil
	s.depthFormat = gputypes.TextureFormatUndefined
}
