package gbuffer

import "fmt"

// Resolver yields the current frame's attachment set. Implementations
// must return a set that passes Validate, or an error; callers treat any
// error as a skip-frame condition, never a fault.
type Resolver interface {
	Resolve() (*AttachmentSet, error)
}

// FrameResolver adapts a public frame-resource accessor. This is the
// idiomatic path when the host engine exposes one: the callback is
// invoked every frame and nothing is cached, because frame-resource
// handles are only valid for the frame that produced them.
type FrameResolver struct {
	fetch func() (*AttachmentSet, error)
}

// NewFrameResolver wraps a host accessor callback.
func NewFrameResolver(fetch func() (*AttachmentSet, error)) *FrameResolver {
	return &FrameResolver{fetch: fetch}
}

// Resolve fetches and validates the current frame's attachments.
func (r *FrameResolver) Resolve() (*AttachmentSet, error) {
	if r == nil || r.fetch == nil {
		return nil, ErrMissingHostAPI
	}
	set, err := r.fetch()
	if err != nil {
		return nil, fmt.Errorf("frame accessor: %w", err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// DeferredInternalsV1 is the versioned adapter into a host renderer that
// has no public frame-resource accessor. The host implements it against
// one engine version; a new engine version gets a new interface rather
// than runtime field lookup, so incompatibilities surface at compile
// time in the host's adapter.
//
// Generation must change whenever the renderer instance is swapped or
// its targets are recreated, so cached handles can be discarded.
type DeferredInternalsV1 interface {
	// GBufferColor returns the ordered color attachments of the deferred
	// lighting subsystem.
	GBufferColor() []Attachment

	// CameraDepth returns the camera depth attachment.
	CameraDepth() Attachment

	// Generation identifies the current renderer instance and target set.
	Generation() uint64
}

// InternalsResolver resolves attachments through a DeferredInternalsV1
// adapter and caches the result. The cache is invalidated when the
// adapter's generation changes or the cached set no longer validates
// (a resize leaves the cached depth handle mismatched with the color
// targets); either way the set is re-fetched once, and an error is
// returned only if the freshly fetched set is itself inconsistent.
type InternalsResolver struct {
	host DeferredInternalsV1

	cached    *AttachmentSet
	cachedGen uint64
}

// NewInternalsResolver wraps a host internals adapter.
func NewInternalsResolver(host DeferredInternalsV1) *InternalsResolver {
	return &InternalsResolver{host: host}
}

// Resolve returns the cached set when it is still current, otherwise
// re-fetches from the adapter.
func (r *InternalsResolver) Resolve() (*AttachmentSet, error) {
	if r == nil || r.host == nil {
		return nil, ErrMissingHostAPI
	}

	gen := r.host.Generation()
	if r.cached != nil && r.cachedGen == gen && r.cached.Validate() == nil {
		return r.cached, nil
	}

	set := &AttachmentSet{
		Color: r.host.GBufferColor(),
		Depth: r.host.CameraDepth(),
	}
	if err := set.Validate(); err != nil {
		r.cached = nil
		return nil, fmt.Errorf("renderer internals: %w", err)
	}
	r.cached = set
	r.cachedGen = gen
	return set, nil
}
