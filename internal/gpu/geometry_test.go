package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"golang.org/x/image/math/f32"
)

// createNoopDevice creates a device/queue pair on the noop backend.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
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
	return openDev.Device, openDev.Queue, cleanup
}

func TestDrawIndexedIndirectArgs_Size(t *testing.T) {
	args := DrawIndexedIndirectArgs{}
	if got := args.Size(); got != 20 {
		t.Errorf("Size() = %d, want 20", got)
	}
}

func TestDrawIndexedIndirectArgs_Encode(t *testing.T) {
	args := DrawIndexedIndirectArgs{
		IndexCount:    3,
		InstanceCount: 1,
		FirstIndex:    7,
		BaseVertex:    -2,
		FirstInstance: 5,
	}
	buf := args.Encode()
	if len(buf) != 20 {
		t.Fatalf("Encode() len = %d, want 20", len(buf))
	}

	tests := []struct {
		name   string
		offset int
		want   uint32
	}{
		{"index_count", 0, 3},
		{"instance_count", 4, 1},
		{"first_index", 8, 7},
		{"base_vertex", 12, uint32(0xFFFFFFFE)}, // -2 two's complement
		{"first_instance", 16, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := binary.LittleEndian.Uint32(buf[tt.offset:])
			if got != tt.want {
				t.Errorf("field at offset %d = %#x, want %#x", tt.offset, got, tt.want)
			}
		})
	}
}

func TestArgsForGeometry(t *testing.T) {
	tests := []struct {
		name        string
		vertexCount uint32
		indexCount  uint32
		wantIndices uint32
	}{
		{"triangle", 3, 3, 3},
		{"two triangles", 6, 6, 6},
		{"ragged capacity", 8, 7, 6},
		{"vertex limited", 3, 9, 3},
		{"below one triangle", 2, 2, 0},
		{"empty", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := ArgsForGeometry(tt.vertexCount, tt.indexCount)
			if args.IndexCount != tt.wantIndices {
				t.Errorf("IndexCount = %d, want %d (whole triangles written)", args.IndexCount, tt.wantIndices)
			}
			if args.InstanceCount != 1 {
				t.Errorf("InstanceCount = %d, want 1", args.InstanceCount)
			}
			if args.FirstIndex != 0 || args.BaseVertex != 0 || args.FirstInstance != 0 {
				t.Errorf("offsets not zero: %+v", args)
			}
		})
	}
}

func TestEncodeVertices_Layout(t *testing.T) {
	verts := []Vertex{
		{Position: f32.Vec3{1, 2, 3}, Color: f32.Vec4{0.1, 0.2, 0.3, 0.4}},
		{Position: f32.Vec3{-1, 0, 0.5}, Color: f32.Vec4{1, 1, 1, 1}},
	}
	buf := EncodeVertices(verts)
	if len(buf) != 2*VertexStride {
		t.Fatalf("len = %d, want %d", len(buf), 2*VertexStride)
	}

	readFloat := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
	}
	// Second record starts at stride 32; color sits at offset 16 within it.
	if got := readFloat(VertexStride); got != -1 {
		t.Errorf("vertex[1].Position.x = %v, want -1", got)
	}
	if got := readFloat(VertexStride + vertexColorOffset + 12); got != 1 {
		t.Errorf("vertex[1].Color.a = %v, want 1", got)
	}
	if got := readFloat(vertexColorOffset); math.Abs(float64(got)-0.1) > 1e-6 {
		t.Errorf("vertex[0].Color.r = %v, want 0.1", got)
	}
}

func TestEncodeIndices(t *testing.T) {
	buf := EncodeIndices([]uint32{0, 1, 0xFFFF0002})
	if len(buf) != 3*IndexSize {
		t.Fatalf("len = %d, want %d", len(buf), 3*IndexSize)
	}
	if got := binary.LittleEndian.Uint32(buf[8:]); got != 0xFFFF0002 {
		t.Errorf("index[2] = %#x, want 0xFFFF0002", got)
	}
}

func TestGeometryBuffers_Ensure(t *testing.T) {
	device, _, cleanup := createNoopDevice(t)
	defer cleanup()

	var geo GeometryBuffers
	defer geo.Destroy()

	if geo.Ready() {
		t.Fatal("zero value reports Ready")
	}
	if err := geo.Ensure(device, 3, 3); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if !geo.Ready() {
		t.Fatal("not Ready after Ensure")
	}
	if geo.VertexCount() != 3 || geo.IndexCount() != 3 {
		t.Errorf("counts = %d/%d, want 3/3", geo.VertexCount(), geo.IndexCount())
	}

	// Same capacity: no reallocation.
	vbuf := geo.VertexBuffer()
	if err := geo.Ensure(device, 3, 3); err != nil {
		t.Fatalf("Ensure (same capacity): %v", err)
	}
	if geo.VertexBuffer() != vbuf {
		t.Error("same-capacity Ensure reallocated the vertex buffer")
	}

	// Capacity change: buffers re-created with new counts.
	if err := geo.Ensure(device, 6, 12); err != nil {
		t.Fatalf("Ensure (resize): %v", err)
	}
	if geo.VertexCount() != 6 || geo.IndexCount() != 12 {
		t.Errorf("counts after resize = %d/%d, want 6/12", geo.VertexCount(), geo.IndexCount())
	}
}

func TestGeometryBuffers_EnsureNilDevice(t *testing.T) {
	var geo GeometryBuffers
	if err := geo.Ensure(nil, 3, 3); err != ErrNilDevice {
		t.Errorf("Ensure(nil) = %v, want ErrNilDevice", err)
	}
}

func TestGeometryBuffers_DestroyIdempotent(t *testing.T) {
	device, _, cleanup := createNoopDevice(t)
	defer cleanup()

	var geo GeometryBuffers
	if err := geo.Ensure(device, 3, 3); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	geo.Destroy()
	if geo.Ready() {
		t.Error("Ready after Destroy")
	}
	geo.Destroy() // must not fault or double-free
	geo.Destroy()
}
