package gpudraw

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpudraw/gbuffer"
	gpuimpl "github.com/gogpu/gpudraw/internal/gpu"
)

// State is the lifecycle state of a Feature. Resource creation is lazy
// and idempotent: the first successful frame (or an explicit
// EnsureResources call) moves the feature to StateResourcesCreated, and
// Dispose moves it to the terminal StateDisposed.
type State int

const (
	// StateUninitialized means no GPU resources exist yet.
	StateUninitialized State = iota

	// StateResourcesCreated means buffers, shaders, and the compute
	// pipelines are live; per-frame work records dispatch then draw.
	StateResourcesCreated

	// StateDisposed is terminal. Per-frame hooks no-op in this state.
	StateDisposed
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateResourcesCreated:
		return "ResourcesCreated"
	case StateDisposed:
		return "Disposed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stats reports the feature's recorded GPU work, for hosts and tests
// that want to observe skipped frames.
type Stats struct {
	// Dispatches is the total number of compute kernel dispatches recorded.
	Dispatches uint64

	// Draws is the total number of indirect draws recorded.
	Draws uint64

	// SkippedFrames counts frames where GPU work was skipped because of
	// a non-fatal condition (missing asset, stale handles, absent host API).
	SkippedFrames uint64
}

// fenceTimeout bounds SubmitFrame's wait for GPU completion.
const fenceTimeout = 5 * time.Second

// Feature is the GPU-driven draw pass. It owns the generated geometry
// buffers, the generation compute stage, and the G-Buffer fill raster
// stage; it borrows the device, queue, and attachment handles from the
// host. One Feature instance serves one host pipeline registration.
//
// Feature is confined to the host's render thread; it is not safe for
// concurrent use.
type Feature struct {
	opts featureOptions

	device hal.Device
	queue  hal.Queue

	state State

	geometry  gpuimpl.GeometryBuffers
	generator gpuimpl.GeometryGenerator
	raster    gpuimpl.GBufferStage

	skippedFrames uint64

	// logged guards once-per-condition warnings. Cleared after a clean
	// frame so a recurring condition is reported again.
	logged map[string]struct{}
}

// New creates a Feature with the given options. No GPU work happens
// until a device is bound and the first frame is recorded.
func New(opts ...Option) *Feature {
	o := defaultFeatureOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Feature{
		opts:   o,
		logged: make(map[string]struct{}),
	}
}

// SetDevice binds the host's hal device and queue directly.
func (f *Feature) SetDevice(device hal.Device, queue hal.Queue) error {
	if f.state == StateDisposed {
		return ErrDisposed
	}
	if device == nil || queue == nil {
		return ErrNoDevice
	}
	f.device = device
	f.queue = queue
	return nil
}

// SetDeviceProvider binds the host's shared GPU device through a
// DeviceHandle. The provider must expose HalDevice() and HalQueue()
// returning hal.Device and hal.Queue (gpucontext.HalProvider style).
func (f *Feature) SetDeviceProvider(provider DeviceHandle) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("device provider does not expose HAL types: %w", ErrMissingHostAPI)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("provider HalDevice is not hal.Device: %w", ErrMissingHostAPI)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("provider HalQueue is not hal.Queue: %w", ErrMissingHostAPI)
	}
	return f.SetDevice(device, queue)
}

// State returns the current lifecycle state.
func (f *Feature) State() State { return f.state }

// Stats returns recorded-work counters.
func (f *Feature) Stats() Stats {
	return Stats{
		Dispatches:    f.generator.DispatchCount(),
		Draws:         f.raster.DrawCount(),
		SkippedFrames: f.skippedFrames,
	}
}

// Register attaches the feature to the host pipeline at its fixed
// insertion point, immediately after the engine's G-Buffer population
// pass. The scheduler then invokes RecordFrame once per frame.
func (f *Feature) Register(s PassScheduler) error {
	if f.state == StateDisposed {
		return ErrDisposed
	}
	if s == nil {
		return fmt.Errorf("register: %w", ErrMissingHostAPI)
	}
	if err := s.AddPassAfterGBuffer(f); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// EnsureResources creates the GPU resources if absent. Re-entry while
// resources exist is a no-op; after a failed attempt everything created
// so far is torn down, so the next frame retries from scratch (the
// feature resumes automatically once e.g. a missing asset appears).
func (f *Feature) EnsureResources() error {
	switch f.state {
	case StateDisposed:
		return ErrDisposed
	case StateResourcesCreated:
		return nil
	}
	if f.device == nil || f.queue == nil {
		return ErrNoDevice
	}

	if err := f.geometry.Ensure(f.device, f.opts.vertexCount, f.opts.indexCount); err != nil {
		return fmt.Errorf("ensure resources: %w", err)
	}

	computeSrc, err := f.shaderSource(ComputeProgramName)
	if err != nil {
		f.releaseResources()
		return err
	}
	if err := f.generator.Init(f.device, f.queue, computeSrc, &f.geometry); err != nil {
		f.releaseResources()
		return fmt.Errorf("ensure resources: %w", err)
	}

	fillSrc, err := f.shaderSource(FillShaderName)
	if err != nil {
		f.releaseResources()
		return err
	}
	if err := f.raster.Init(f.device, f.queue, fillSrc); err != nil {
		f.releaseResources()
		return fmt.Errorf("ensure resources: %w", err)
	}
	if err := f.raster.SetViewProjection(f.opts.viewProj); err != nil {
		f.releaseResources()
		return fmt.Errorf("ensure resources: %w", err)
	}

	f.state = StateResourcesCreated
	Logger().Debug("gpudraw resources created",
		"vertices", f.opts.vertexCount,
		"indices", f.opts.indexCount)
	return nil
}

// shaderSource resolves a catalog asset, classifying any failure as the
// missing-asset condition.
func (f *Feature) shaderSource(name string) (string, error) {
	src, err := f.opts.catalog.Shader(name)
	if err != nil {
		if errors.Is(err, ErrMissingAsset) {
			return "", err
		}
		return "", fmt.Errorf("shader %q: %v: %w", name, err, ErrMissingAsset)
	}
	return src, nil
}

// RecordFrame records the compute dispatches and the indirect draw into
// the host's frame command stream. Compute records first; the GPU
// queue's in-order execution within the stream is the only ordering
// guarantee between kernel 0, kernel 1, and the draw.
//
// All taxonomy failures (missing asset, absent host API, stale
// attachment handles) skip the frame's GPU work and are logged once per
// condition; the returned error is informational and the host render
// loop should keep running. A disposed feature no-ops and returns nil,
// since hosts may invoke per-frame hooks during reload races.
func (f *Feature) RecordFrame(frame *FrameContext) error {
	if f.state == StateDisposed {
		return nil
	}
	if frame == nil || frame.Encoder == nil {
		return f.skip("encoder", fmt.Errorf("record frame: no frame encoder: %w", ErrMissingHostAPI))
	}

	if err := f.EnsureResources(); err != nil {
		return f.skip("resources", err)
	}

	set, err := f.resolveAttachments(frame)
	if err != nil {
		return f.skip("attachments", err)
	}

	if err := f.raster.EnsurePipeline(set.ColorFormats(), set.Depth.Format); err != nil {
		return f.skip("pipeline", err)
	}

	if err := f.generator.RecordDispatch(frame.Encoder); err != nil {
		return f.skip("dispatch", err)
	}

	rp := frame.Encoder.BeginRenderPass(fillPassDescriptor(set))
	f.raster.RecordDraws(rp, &f.geometry)
	rp.End()

	// Clean frame: recurring conditions start logging again.
	clear(f.logged)
	return nil
}

// resolveAttachments picks the frame's attachment source: attachments
// carried on the frame context win, otherwise the configured resolver.
func (f *Feature) resolveAttachments(frame *FrameContext) (*gbuffer.AttachmentSet, error) {
	if frame.Attachments != nil {
		if err := frame.Attachments.Validate(); err != nil {
			return nil, err
		}
		return frame.Attachments, nil
	}
	if f.opts.resolver == nil {
		return nil, fmt.Errorf("no attachment source configured: %w", ErrMissingHostAPI)
	}
	return f.opts.resolver.Resolve()
}

// fillPassDescriptor builds the raster pass over the resolved targets.
// Everything loads and stores: the pass augments the populated G-Buffer,
// so untouched pixels keep their pre-pass values.
func fillPassDescriptor(set *gbuffer.AttachmentSet) *hal.RenderPassDescriptor {
	colorAttachments := make([]hal.RenderPassColorAttachment, len(set.Color))
	for i, att := range set.Color {
		colorAttachments[i] = hal.RenderPassColorAttachment{
			View:    att.View,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}
	}
	return &hal.RenderPassDescriptor{
		Label:            "gpudraw_gbuffer_fill",
		ColorAttachments: colorAttachments,
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:           set.Depth.View,
			DepthLoadOp:    gputypes.LoadOpLoad,
			DepthStoreOp:   gputypes.StoreOpStore,
			StencilLoadOp:  gputypes.LoadOpLoad,
			StencilStoreOp: gputypes.StoreOpStore,
		},
	}
}

// skip records a skipped frame and logs the condition once while it
// persists.
func (f *Feature) skip(key string, err error) error {
	f.skippedFrames++
	if _, seen := f.logged[key]; !seen {
		f.logged[key] = struct{}{}
		Logger().Warn("gpudraw: skipping frame GPU work",
			"condition", key,
			"err", err,
			"state", f.state.String())
	}
	return err
}

// SubmitFrame records a complete frame into its own command buffer and
// submits it, waiting for GPU completion. This is the direct-execution
// path for hosts without a pass scheduler (and for tests); scheduler
// hosts call RecordFrame from their own record callback instead.
//
// frame.Encoder is ignored; SubmitFrame creates and owns the encoder.
func (f *Feature) SubmitFrame(frame *FrameContext) error {
	if f.state == StateDisposed {
		return nil
	}
	if f.device == nil || f.queue == nil {
		return f.skip("device", ErrNoDevice)
	}
	if frame == nil {
		frame = &FrameContext{}
	}

	encoder, err := f.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "gpudraw_frame_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("gpudraw_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	recorded := &FrameContext{Encoder: encoder, Attachments: frame.Attachments}
	if err := f.RecordFrame(recorded); err != nil {
		encoder.DiscardEncoding()
		return err
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer f.device.FreeCommandBuffer(cmdBuf)

	fence, err := f.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer f.device.DestroyFence(fence)

	if err := f.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := f.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if !fenceOK {
		return errors.New("wait for GPU: fence timeout")
	}
	return nil
}

// Dispose releases all GPU resources synchronously and moves the
// feature to the terminal state. Idempotent: calling it again is a
// no-op, and later per-frame invocations no-op as well.
func (f *Feature) Dispose() {
	if f.state == StateDisposed {
		return
	}
	f.releaseResources()
	f.state = StateDisposed
	Logger().Debug("gpudraw disposed")
}

// releaseResources tears down GPU objects in reverse creation order
// without touching the lifecycle state, so failed initialization can
// retry on a later frame.
func (f *Feature) releaseResources() {
	f.raster.Destroy()
	f.generator.Destroy()
	f.geometry.Destroy()
}
