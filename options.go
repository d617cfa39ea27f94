package gpudraw

import "github.com/gogpu/gpudraw/gbuffer"

// Option configures a Feature during creation.
//
// Example:
//
//	// Defaults: one generated triangle, embedded shaders.
//	feature := gpudraw.New()
//
//	// Host-resolved attachments through a versioned internals adapter:
//	resolver := gbuffer.NewInternalsResolver(engineAdapter)
//	feature := gpudraw.New(gpudraw.WithAttachmentResolver(resolver))
type Option func(*featureOptions)

// featureOptions holds optional configuration for Feature creation.
type featureOptions struct {
	vertexCount uint32
	indexCount  uint32
	catalog     ShaderCatalog
	resolver    gbuffer.Resolver
	viewProj    [16]float32
}

// defaultFeatureOptions returns the default configuration: a single
// generated triangle, embedded shaders, identity clip transform, and no
// fallback attachment resolver.
func defaultFeatureOptions() featureOptions {
	return featureOptions{
		vertexCount: 3,
		indexCount:  3,
		catalog:     EmbeddedShaders(),
		viewProj: [16]float32{
			1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 1, 0,
			0, 0, 0, 1,
		},
	}
}

// WithGeometryCapacity sets the vertex and index capacity of the
// generated buffers. The generation kernel fills the capacity with
// whole triangles and the derived indirect draw covers exactly the
// indices written, so capacities below one triangle draw nothing.
func WithGeometryCapacity(vertices, indices uint32) Option {
	return func(o *featureOptions) {
		o.vertexCount = vertices
		o.indexCount = indices
	}
}

// WithShaderCatalog substitutes the host's asset pipeline for the
// embedded shader sources.
func WithShaderCatalog(c ShaderCatalog) Option {
	return func(o *featureOptions) {
		if c != nil {
			o.catalog = c
		}
	}
}

// WithAttachmentResolver sets the fallback G-Buffer resolution strategy
// used when a frame does not carry attachments directly. Typical values
// are gbuffer.NewFrameResolver (public host accessor) or
// gbuffer.NewInternalsResolver (versioned adapter into renderer
// internals).
func WithAttachmentResolver(r gbuffer.Resolver) Option {
	return func(o *featureOptions) {
		o.resolver = r
	}
}

// WithViewProjection sets the column-major clip transform applied to
// generated positions. Defaults to identity (positions are generated in
// clip space).
func WithViewProjection(m [16]float32) Option {
	return func(o *featureOptions) {
		o.viewProj = m
	}
}
