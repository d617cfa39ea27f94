// Package gpu implements the GPU-facing half of gpudraw: the generated
// geometry buffer set, the buffer-generation compute stage, and the
// indirect raster stage that writes into the host's G-Buffer attachments.
package gpu

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/math/f32"
)

// Geometry errors.
var (
	// ErrMissingAsset is returned when a shader source cannot be located
	// or fails to compile for the active backend.
	ErrMissingAsset = errors.New("gpu: shader asset missing or unsupported")

	// ErrNotInitialized is returned when a stage is used before Init.
	ErrNotInitialized = errors.New("gpu: stage not initialized")

	// ErrNilDevice is returned when a nil device is passed to Ensure/Init.
	ErrNilDevice = errors.New("gpu: device is nil")

	// ErrTargetMismatch is returned when the host G-Buffer exposes fewer
	// color targets than the fill shader writes.
	ErrTargetMismatch = errors.New("gpu: not enough G-Buffer color targets")
)

// Vertex is one record of the generated vertex buffer.
//
// The GPU-side layout follows WGSL storage buffer rules: the vec3 position
// is padded to 16 bytes, color sits at offset 16, total stride 32. The
// raster stage's vertex fetch uses the same layout, so one buffer serves
// both as storage (compute write) and vertex (raster read) binding.
type Vertex struct {
	Position f32.Vec3
	Color    f32.Vec4
}

const (
	// VertexStride is the GPU byte stride of one Vertex record.
	VertexStride = 32

	// vertexColorOffset is the byte offset of Color within a record.
	vertexColorOffset = 16

	// IndexSize is the byte size of one index (uint32 index format).
	IndexSize = 4
)

// DrawIndexedIndirectArgs is the fixed-layout record consumed by an
// indexed indirect draw. Layout matches WebGPU's indirect draw parameters;
// the compute stage's second kernel produces it on the GPU.
type DrawIndexedIndirectArgs struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32
	FirstInstance uint32
}

// Size returns the byte size of DrawIndexedIndirectArgs.
func (d DrawIndexedIndirectArgs) Size() uint64 {
	return 20
}

// Encode serializes the args in GPU byte order (little-endian u32 fields).
func (d DrawIndexedIndirectArgs) Encode() []byte {
	buf := make([]byte, d.Size())
	writeUint32(buf, 0, d.IndexCount)
	writeUint32(buf, 4, d.InstanceCount)
	writeUint32(buf, 8, d.FirstIndex)
	writeInt32(buf, 12, d.BaseVertex)
	writeUint32(buf, 16, d.FirstInstance)
	return buf
}

// ArgsForGeometry returns the args the kernels derive for the given
// buffer capacities. The generation kernel writes as many whole
// triangles as fit, so the draw covers min(vertexCount, indexCount)
// rounded down to a multiple of three; one instance, no offsets.
// CPU-side mirror of the kernels, used for validation.
func ArgsForGeometry(vertexCount, indexCount uint32) DrawIndexedIndirectArgs {
	return DrawIndexedIndirectArgs{
		IndexCount:    min(vertexCount, indexCount) / 3 * 3,
		InstanceCount: 1,
		FirstIndex:    0,
		BaseVertex:    0,
		FirstInstance: 0,
	}
}

// EncodeVertices packs vertices into the 32-byte-stride GPU layout.
func EncodeVertices(verts []Vertex) []byte {
	buf := make([]byte, len(verts)*VertexStride)
	for i, v := range verts {
		base := i * VertexStride
		writeFloat32(buf, base+0, v.Position[0])
		writeFloat32(buf, base+4, v.Position[1])
		writeFloat32(buf, base+8, v.Position[2])
		writeFloat32(buf, base+vertexColorOffset+0, v.Color[0])
		writeFloat32(buf, base+vertexColorOffset+4, v.Color[1])
		writeFloat32(buf, base+vertexColorOffset+8, v.Color[2])
		writeFloat32(buf, base+vertexColorOffset+12, v.Color[3])
	}
	return buf
}

// EncodeIndices packs indices as little-endian u32.
func EncodeIndices(indices []uint32) []byte {
	buf := make([]byte, len(indices)*IndexSize)
	for i, idx := range indices {
		writeUint32(buf, i*IndexSize, idx)
	}
	return buf
}

func writeUint32(dst []byte, off int, v uint32) {
	dst[off+0] = byte(v)
	dst[off+1] = byte(v >> 8)
	dst[off+2] = byte(v >> 16)
	dst[off+3] = byte(v >> 24)
}

func writeInt32(dst []byte, off int, v int32) {
	writeUint32(dst, off, uint32(v))
}

func writeFloat32(dst []byte, off int, v float32) {
	writeUint32(dst, off, math.Float32bits(v))
}

// GeometryBuffers owns the three GPU buffers of the draw path: vertex and
// index data plus the indirect argument record. All three are written by
// the compute stage and read by the raster stage in the same frame.
//
// Ownership is exclusive: buffers are created here and destroyed here,
// never shared with the host.
type GeometryBuffers struct {
	device hal.Device

	vertexBuf   hal.Buffer
	indexBuf    hal.Buffer
	indirectBuf hal.Buffer

	vertexCount uint32
	indexCount  uint32
}

// Ensure creates the buffers if absent, or re-creates them when the
// requested capacity changed. Calling it again with the same capacity is
// a no-op, so lazy per-frame callers pay nothing after the first frame.
func (g *GeometryBuffers) Ensure(device hal.Device, vertexCount, indexCount uint32) error {
	if device == nil {
		return ErrNilDevice
	}
	if g.vertexBuf != nil && g.vertexCount == vertexCount && g.indexCount == indexCount {
		return nil
	}

	// Capacity change: drop the old set before allocating.
	g.Destroy()
	g.device = device

	vertexBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gpudraw_vertices",
		Size:  uint64(vertexCount) * VertexStride,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageVertex,
	})
	if err != nil {
		return fmt.Errorf("create vertex buffer: %w", err)
	}
	g.vertexBuf = vertexBuf

	indexBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gpudraw_indices",
		Size:  uint64(indexCount) * IndexSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageIndex,
	})
	if err != nil {
		g.Destroy()
		return fmt.Errorf("create index buffer: %w", err)
	}
	g.indexBuf = indexBuf

	indirectBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gpudraw_indirect_args",
		Size:  DrawIndexedIndirectArgs{}.Size(),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageIndirect | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		g.Destroy()
		return fmt.Errorf("create indirect args buffer: %w", err)
	}
	g.indirectBuf = indirectBuf

	g.vertexCount = vertexCount
	g.indexCount = indexCount

	slogger().Debug("geometry buffers created",
		"vertices", vertexCount,
		"indices", indexCount,
		"vertexBytes", uint64(vertexCount)*VertexStride)
	return nil
}

// Ready reports whether all three buffers exist.
func (g *GeometryBuffers) Ready() bool {
	return g.vertexBuf != nil && g.indexBuf != nil && g.indirectBuf != nil
}

// VertexBuffer returns the vertex buffer, nil before Ensure.
func (g *GeometryBuffers) VertexBuffer() hal.Buffer { return g.vertexBuf }

// IndexBuffer returns the index buffer, nil before Ensure.
func (g *GeometryBuffers) IndexBuffer() hal.Buffer { return g.indexBuf }

// IndirectBuffer returns the indirect argument buffer, nil before Ensure.
func (g *GeometryBuffers) IndirectBuffer() hal.Buffer { return g.indirectBuf }

// VertexCount returns the capacity the buffers were created for.
func (g *GeometryBuffers) VertexCount() uint32 { return g.vertexCount }

// IndexCount returns the index capacity the buffers were created for.
func (g *GeometryBuffers) IndexCount() uint32 { return g.indexCount }

// Destroy releases the buffers in reverse creation order.
// Safe to call multiple times and on a zero value.
func (g *GeometryBuffers) Destroy() {
	if g.device == nil {
		return
	}
	if g.indirectBuf != nil {
		g.device.DestroyBuffer(g.indirectBuf)
		g.indirectBuf = nil
	}
	if g.indexBuf != nil {
		g.device.DestroyBuffer(g.indexBuf)
		g.indexBuf = nil
	}
	if g.vertexBuf != nil {
		g.device.DestroyBuffer(g.vertexBuf)
		g.vertexBuf = nil
	}
	g.vertexCount = 0
	g.indexCount = 0
}
