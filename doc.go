// Package gpudraw implements a GPU-driven draw path for a host deferred
// renderer.
//
// # Overview
//
// A two-kernel compute stage generates vertex, index, and indirect
// argument buffers entirely on the GPU; a single indexed indirect draw
// then consumes them and writes albedo, specular, normal, and emissive
// data into the host renderer's existing G-Buffer attachments. The
// feature augments the host's deferred path, it does not replace it:
// it records immediately after the engine's own G-Buffer population.
//
// # Ownership
//
// The host engine owns the GPU device and queue, the pass scheduling,
// and the G-Buffer attachments. gpudraw RECEIVES the device from the
// host (gpucontext.DeviceProvider), borrows attachment handles for one
// frame at a time, and exclusively owns only its generated buffers,
// shaders, and pipelines.
//
// # Quick Start
//
//	feature := gpudraw.New()
//	if err := feature.SetDevice(device, queue); err != nil {
//	    // no usable GPU device
//	}
//	feature.Register(hostScheduler) // after G-Buffer population
//
//	// per frame, from the host's record callback:
//	feature.RecordFrame(&gpudraw.FrameContext{
//	    Encoder:     frameEncoder,
//	    Attachments: resolvedGBuffer,
//	})
//
//	// on teardown or hot reload:
//	feature.Dispose()
//
// # Failure model
//
// Missing shader assets, absent host accessors, and stale attachment
// handles are all non-fatal: the frame's GPU work is skipped, the
// condition is logged once, and the feature resumes automatically when
// the condition clears. RecordFrame never panics into the render loop.
package gpudraw
