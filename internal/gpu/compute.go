package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Compute stage entry points in the generate shader.
const (
	generateEntryPoint = "generate_geometry"
	argsEntryPoint     = "build_draw_args"
)

// paramsBufferSize is the byte size of the Params uniform
// (vertex_count, index_count, two pad words).
const paramsBufferSize = 16

// GeometryGenerator is the buffer-generation compute stage. One shader
// module, two kernels: the first fills the vertex and index buffers and
// records the written index count, the second completes the indirect
// draw arguments around it. Both are dispatched with a
// (1,1,1) workgroup count into the frame's command stream; GPU queue
// order is the only synchronization between them and the draw.
type GeometryGenerator struct {
	device hal.Device
	queue  hal.Queue

	module     hal.ShaderModule
	bgLayout   hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	geomPipe   hal.ComputePipeline
	argsPipe   hal.ComputePipeline
	paramsBuf  hal.Buffer
	bindGroup  hal.BindGroup

	dispatchCount uint64
}

// Init compiles the WGSL source and builds the pipelines and bind group
// against an already-created geometry buffer set. Partial failures tear
// down whatever was created so Init can be retried.
func (g *GeometryGenerator) Init(device hal.Device, queue hal.Queue, wgsl string, geo *GeometryBuffers) error {
	if device == nil {
		return ErrNilDevice
	}
	if geo == nil || !geo.Ready() {
		return fmt.Errorf("geometry generator: buffers not ready: %w", ErrNotInitialized)
	}
	g.device = device
	g.queue = queue

	words, err := compileWGSL("gpudraw_generate", wgsl)
	if err != nil {
		return fmt.Errorf("geometry generator: %w", err)
	}

	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "gpudraw_generate",
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return fmt.Errorf("geometry generator: create shader module: %w", err)
	}
	g.module = module

	// Bindings match @group(0) @binding(N) in generate.wgsl exactly.
	bgLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "gpudraw_generate_bgl",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
			},
			{
				Binding:    3,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		g.Destroy()
		return fmt.Errorf("geometry generator: create bind group layout: %w", err)
	}
	g.bgLayout = bgLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "gpudraw_generate_pl",
		BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
	})
	if err != nil {
		g.Destroy()
		return fmt.Errorf("geometry generator: create pipeline layout: %w", err)
	}
	g.pipeLayout = pipeLayout

	geomPipe, err := device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  "gpudraw_generate_geometry",
		Layout: pipeLayout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: generateEntryPoint,
		},
	})
	if err != nil {
		g.Destroy()
		return fmt.Errorf("geometry generator: create geometry pipeline: %w", err)
	}
	g.geomPipe = geomPipe

	argsPipe, err := device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  "gpudraw_build_draw_args",
		Layout: pipeLayout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: argsEntryPoint,
		},
	})
	if err != nil {
		g.Destroy()
		return fmt.Errorf("geometry generator: create args pipeline: %w", err)
	}
	g.argsPipe = argsPipe

	paramsBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gpudraw_generate_params",
		Size:  paramsBufferSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		g.Destroy()
		return fmt.Errorf("geometry generator: create params buffer: %w", err)
	}
	g.paramsBuf = paramsBuf

	params := make([]byte, paramsBufferSize)
	writeUint32(params, 0, geo.VertexCount())
	writeUint32(params, 4, geo.IndexCount())
	queue.WriteBuffer(paramsBuf, 0, params)

	bindGroup, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "gpudraw_generate_bg",
		Layout: bgLayout,
		Entries: []gputypes.BindGroupEntry{
			bufferEntry(0, geo.VertexBuffer()),
			bufferEntry(1, geo.IndexBuffer()),
			bufferEntry(2, geo.IndirectBuffer()),
			bufferEntry(3, paramsBuf),
		},
	})
	if err != nil {
		g.Destroy()
		return fmt.Errorf("geometry generator: create bind group: %w", err)
	}
	g.bindGroup = bindGroup

	slogger().Debug("geometry generator initialized",
		"vertices", geo.VertexCount(),
		"indices", geo.IndexCount())
	return nil
}

// bufferEntry maps a binding index to a whole buffer.
func bufferEntry(binding uint32, buf hal.Buffer) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding: binding,
		Resource: gputypes.BufferBinding{
			Buffer: buf.NativeHandle(),
			Offset: 0,
			Size:   0, // 0 = entire buffer
		},
	}
}

// Ready reports whether Init completed.
func (g *GeometryGenerator) Ready() bool {
	return g.geomPipe != nil && g.argsPipe != nil && g.bindGroup != nil
}

// RecordDispatch records both kernels into the frame's command stream,
// geometry first, draw args second. The caller records the raster pass
// after this on the same encoder.
func (g *GeometryGenerator) RecordDispatch(encoder hal.CommandEncoder) error {
	if !g.Ready() {
		return fmt.Errorf("record dispatch: %w", ErrNotInitialized)
	}

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{
		Label: "gpudraw_generate",
	})
	pass.SetPipeline(g.geomPipe)
	pass.SetBindGroup(0, g.bindGroup, nil)
	pass.Dispatch(1, 1, 1)
	pass.SetPipeline(g.argsPipe)
	pass.SetBindGroup(0, g.bindGroup, nil)
	pass.Dispatch(1, 1, 1)
	pass.End()

	g.dispatchCount += 2
	slogger().Debug("geometry generation recorded", "totalDispatches", g.dispatchCount)
	return nil
}

// DispatchCount returns the number of kernel dispatches recorded so far.
func (g *GeometryGenerator) DispatchCount() uint64 { return g.dispatchCount }

// Destroy releases all stage resources in reverse creation order.
// Safe to call multiple times and after partial initialization.
func (g *GeometryGenerator) Destroy() {
	if g.device == nil {
		return
	}
	if g.bindGroup != nil {
		g.device.DestroyBindGroup(g.bindGroup)
		g.bindGroup = nil
	}
	if g.paramsBuf != nil {
		g.device.DestroyBuffer(g.paramsBuf)
		g.paramsBuf = nil
	}
	if g.argsPipe != nil {
		g.device.DestroyComputePipeline(g.argsPipe)
		g.argsPipe = nil
	}
	if g.geomPipe != nil {
		g.device.DestroyComputePipeline(g.geomPipe)
		g.geomPipe = nil
	}
	if g.pipeLayout != nil {
		g.device.DestroyPipelineLayout(g.pipeLayout)
		g.pipeLayout = nil
	}
	if g.bgLayout != nil {
		g.device.DestroyBindGroupLayout(g.bgLayout)
		g.bgLayout = nil
	}
	if g.module != nil {
		g.device.DestroyShaderModule(g.module)
		g.module = nil
	}
}
