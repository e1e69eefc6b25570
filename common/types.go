// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
)

// EyeType identifies which eye (or the single monocular view) a render call is producing.
type EyeType int

const (
	// EyeMonocular is a single, non-stereo view.
	EyeMonocular EyeType = iota

	// EyeLeft is the first eye of a stereo pair. A stereo frame always starts with the left eye.
	EyeLeft

	// EyeRight is the second eye of a stereo pair.
	EyeRight
)

// String returns the lowercase name of the eye.
func (e EyeType) String() string {
	switch e {
	case EyeMonocular:
		return "monocular"
	case EyeLeft:
		return "left"
	case EyeRight:
		return "right"
	default:
		return fmt.Sprintf("eye(%d)", int(e))
	}
}

// StartsFrame reports whether a render call for this eye is the first call of a frame.
// Monocular rendering makes one call per frame, stereo rendering starts every frame with the left eye.
//
// Returns:
//   - bool: true for EyeMonocular and EyeLeft
func (e EyeType) StartsFrame() bool {
	return e == EyeMonocular || e == EyeLeft
}

// Viewport is a pixel rectangle on a render target. X and Y locate the lower-left corner.
type Viewport struct {
	X, Y          int
	Width, Height int
}

// Untranslated returns the viewport moved to the origin with the same dimensions.
// Offscreen targets always render into an untranslated viewport; only the display
// uses the translated one (e.g. the right half of the screen in VR).
//
// Returns:
//   - Viewport: the viewport (0, 0, Width, Height)
func (v Viewport) Untranslated() Viewport {
	return Viewport{Width: v.Width, Height: v.Height}
}

// Scaled returns the viewport with its dimensions multiplied by factor and truncated to whole pixels.
// The origin is left unchanged.
//
// Parameters:
//   - factor: the scale applied to Width and Height
//
// Returns:
//   - Viewport: the scaled viewport
func (v Viewport) Scaled(factor float32) Viewport {
	return Viewport{
		X:      v.X,
		Y:      v.Y,
		Width:  int(math32.Floor(float32(v.Width) * factor)),
		Height: int(math32.Floor(float32(v.Height) * factor)),
	}
}

// String formats the viewport as "x,y wxh".
func (v Viewport) String() string {
	return fmt.Sprintf("%d,%d %dx%d", v.X, v.Y, v.Width, v.Height)
}

// Color is a linear RGBA color with float components, used for render target clear colors.
type Color struct {
	R, G, B, A float32
}

// Black is opaque black, the default clear color.
var Black = Color{A: 1}

// WGPU converts the color into the wgpu clear value representation.
//
// Returns:
//   - wgpu.Color: the color with float64 components
func (c Color) WGPU() wgpu.Color {
	return wgpu.Color{R: float64(c.R), G: float64(c.G), B: float64(c.B), A: float64(c.A)}
}

// SamplerStagingData holds the configuration for a sampler pending GPU creation.
// Zero-valued fields fall back to the device defaults when the sampler is created.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering.
	MaxAnisotropy uint16
}
