package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
)

// Embedded WGSL sources. These are the default shader assets; hosts can
// substitute their own via the gpudraw.ShaderCatalog hook.

//go:embed shaders/generate.wgsl
var generateWGSL string

//go:embed shaders/gbuffer_fill.wgsl
var gbufferFillWGSL string

// GenerateShaderSource returns the WGSL for the buffer-generation compute
// stage (entry points generate_geometry and build_draw_args).
func GenerateShaderSource() string { return generateWGSL }

// FillShaderSource returns the WGSL for the G-Buffer fill raster stage
// (entry points vs_main and fs_main).
func FillShaderSource() string { return gbufferFillWGSL }

// compileWGSL compiles WGSL to SPIR-V words for hal.ShaderSource.
// A compile failure is treated as a missing/unsupported asset so callers
// can skip the frame instead of faulting.
func compileWGSL(label, src string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %v: %w", label, err, ErrMissingAsset)
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}
