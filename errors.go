package gpudraw

import (
	"errors"

	"github.com/gogpu/gpudraw/gbuffer"
	gpuimpl "github.com/gogpu/gpudraw/internal/gpu"
)

// Error taxonomy. All but ErrDisposed and ErrNoDevice are soft,
// skip-frame conditions: RecordFrame reports them for observability but
// the host render loop can and should keep running.
var (
	// ErrMissingAsset indicates a shader asset was not found or failed
	// to compile for the active backend.
	ErrMissingAsset = gpuimpl.ErrMissingAsset

	// ErrMissingHostAPI indicates an expected host accessor is absent
	// (nil scheduler, nil frame encoder, no attachment source).
	ErrMissingHostAPI = gbuffer.ErrMissingHostAPI

	// ErrStaleHandle indicates a resolved attachment set is inconsistent,
	// typically after a render-target resize.
	ErrStaleHandle = gbuffer.ErrStaleHandle

	// ErrTargetMismatch indicates the resolved G-Buffer exposes fewer
	// color targets than the fill shader writes.
	ErrTargetMismatch = gpuimpl.ErrTargetMismatch

	// ErrDisposed is returned by operations that require a live feature
	// after Dispose. Per-frame hooks deliberately do NOT return it; they
	// no-op instead, because hosts may invoke them during reload races.
	ErrDisposed = errors.New("gpudraw: feature is disposed")

	// ErrNoDevice is returned when GPU work is requested before a device
	// was bound via SetDevice or SetDeviceProvider.
	ErrNoDevice = errors.New("gpudraw: no GPU device bound")
)
