package device

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-choreo/common"
)

// GPUType identifies the class of GPU the device is running on. Only classes that change
// which features can be supported are distinguished.
type GPUType int

const (
	// GPUTypeUnknown is an unrecognized GPU. It negotiates the most conservative capabilities.
	GPUTypeUnknown GPUType = iota

	// GPUTypeNormal is any GPU with multiple render target support.
	GPUTypeNormal

	// GPUTypeAdreno330OrOlder is a low-end mobile GPU tier without usable multiple render targets.
	GPUTypeAdreno330OrOlder
)

// String returns the name of the GPU type.
func (t GPUType) String() string {
	switch t {
	case GPUTypeNormal:
		return "normal"
	case GPUTypeAdreno330OrOlder:
		return "adreno330-or-older"
	default:
		return "unknown"
	}
}

// ColorRenderingMode describes how the display surface handles gamma.
type ColorRenderingMode int

const (
	// ColorRenderingModeNonLinear renders directly in a fixed nonlinear (gamma) space. HDR cannot be supported.
	ColorRenderingModeNonLinear ColorRenderingMode = iota

	// ColorRenderingModeLinear renders in linear space and the surface applies gamma in hardware.
	ColorRenderingModeLinear

	// ColorRenderingModeLinearSoftware renders in linear space and gamma must be applied in a shader.
	ColorRenderingModeLinearSoftware
)

// String returns the name of the color rendering mode.
func (m ColorRenderingMode) String() string {
	switch m {
	case ColorRenderingModeLinear:
		return "linear"
	case ColorRenderingModeLinearSoftware:
		return "linear-software"
	default:
		return "non-linear"
	}
}

// RenderTargetType is the color format of a render target's attachments.
type RenderTargetType int

const (
	// RenderTargetTypeColorTexture is an 8-bit per channel RGBA color texture.
	RenderTargetTypeColorTexture RenderTargetType = iota

	// RenderTargetTypeColorTextureHDR16 is a 16-bit float per channel RGBA color texture.
	RenderTargetTypeColorTextureHDR16

	// RenderTargetTypeDepthTexture is a depth-only texture, used for shadow maps.
	RenderTargetTypeDepthTexture

	// RenderTargetTypeDisplay is the presentation surface.
	RenderTargetTypeDisplay
)

// String returns the name of the render target type.
func (t RenderTargetType) String() string {
	switch t {
	case RenderTargetTypeColorTexture:
		return "color"
	case RenderTargetTypeColorTextureHDR16:
		return "color-hdr16"
	case RenderTargetTypeDepthTexture:
		return "depth"
	case RenderTargetTypeDisplay:
		return "display"
	default:
		return fmt.Sprintf("render-target-type(%d)", int(t))
	}
}

var (
	// ErrAttachmentOutOfRange is returned when an attachment index does not exist on a render target.
	ErrAttachmentOutOfRange = errors.New("device: attachment index out of range")
	// ErrTextureFormatMismatch is returned when an attached texture's format differs from the
	// target's.
	ErrTextureFormatMismatch = errors.New("device: texture format does not match target")
)

// Texture is an opaque GPU texture that can be sampled by an image post-process.
type Texture interface {
	// Width returns the width of the texture in texels.
	//
	// Returns:
	//   - int: the width
	Width() int

	// Height returns the height of the texture in texels.
	//
	// Returns:
	//   - int: the height
	Height() int
}

// RenderTarget is a GPU surface with one or more color attachments that passes render into.
// Render targets are owned by whoever created them and must be released by that owner.
type RenderTarget interface {
	// Type returns the color format of the target's attachments.
	//
	// Returns:
	//   - RenderTargetType: the attachment format
	Type() RenderTargetType

	// AttachmentCount returns the number of color attachments.
	//
	// Returns:
	//   - int: the number of attachments (at least 1 for color targets)
	AttachmentCount() int

	// Viewport returns the viewport last set on the target.
	//
	// Returns:
	//   - common.Viewport: the current viewport
	Viewport() common.Viewport

	// SetViewport sets the region rendered into. Offscreen targets resize their attachments
	// to the viewport dimensions.
	//
	// Parameters:
	//   - v: the new viewport
	//
	// Returns:
	//   - error: an error if the attachments could not be resized
	SetViewport(v common.Viewport) error

	// ClearColor returns the color the target is cleared to before a pass renders into it.
	//
	// Returns:
	//   - common.Color: the clear color
	ClearColor() common.Color

	// SetClearColor sets the color the target is cleared to before a pass renders into it.
	//
	// Parameters:
	//   - c: the new clear color
	SetClearColor(c common.Color)

	// Texture returns the texture backing the given color attachment.
	//
	// Parameters:
	//   - attachment: the attachment index
	//
	// Returns:
	//   - Texture: the attachment's texture, or nil if the index is out of range
	Texture(attachment int) Texture

	// AttachTexture replaces the texture backing a color attachment with a caller-owned texture.
	//
	// Parameters:
	//   - tex: the texture to attach
	//   - attachment: the attachment index
	//
	// Returns:
	//   - error: ErrAttachmentOutOfRange or a device error
	AttachTexture(tex Texture, attachment int) error

	// BlitColor copies attachment 0 into attachment 0 of dst using a buffer-to-buffer copy.
	// When flipY is set the image is mirrored vertically on the way.
	// dst must not be the multisampled display.
	//
	// Parameters:
	//   - dst: the destination target
	//   - flipY: mirror the image vertically
	//
	// Returns:
	//   - error: an error if the copy could not be encoded
	BlitColor(dst RenderTarget, flipY bool) error

	// Release frees the GPU resources held by the target. The target must not be used afterwards.
	Release()
}

// ImagePostProcess is a full-screen shader pass that samples a list of input textures and writes
// into a render target.
type ImagePostProcess interface {
	// Blit runs the shader with the given textures bound to the samplers declared at creation
	// (in order) and writes the result into dst.
	//
	// Parameters:
	//   - inputs: the textures to sample, one per declared sampler
	//   - dst: the target to write into
	//
	// Returns:
	//   - error: an error if the program could not be compiled or the pass could not be encoded
	Blit(inputs []Texture, dst RenderTarget) error

	// Release returns the underlying shader program to the device.
	Release()
}

// Device is the narrow slice of the graphics device the choreographer consumes: render target and
// image post-process creation, the display target, and capability queries.
type Device interface {
	// GPUType returns the class of GPU the device is running on.
	//
	// Returns:
	//   - GPUType: the GPU class
	GPUType() GPUType

	// ColorRenderingMode returns how the display surface handles gamma.
	//
	// Returns:
	//   - ColorRenderingMode: the color rendering mode
	ColorRenderingMode() ColorRenderingMode

	// IsBloomSupported reports whether the driver can render and filter the float targets bloom needs.
	//
	// Returns:
	//   - bool: true if bloom is supported by the driver
	IsBloomSupported() bool

	// NewRenderTarget creates an offscreen render target. Targets start at 1x1 until a viewport is set.
	//
	// Parameters:
	//   - targetType: the attachment format
	//   - attachments: the number of color attachments
	//   - samples: the multisample count (1 for none)
	//   - stencil: whether a stencil buffer is attached
	//
	// Returns:
	//   - RenderTarget: the new target
	//   - error: an error if the GPU resources could not be allocated
	NewRenderTarget(targetType RenderTargetType, attachments, samples int, stencil bool) (RenderTarget, error)

	// NewImagePostProcess creates a full-screen shader pass. Each entry of samplers declares a
	// texture input by name; code is the body of the fragment stage, which reads v_texcoord and
	// assigns frag_color (and bloom_color when writing a second attachment).
	//
	// Parameters:
	//   - samplers: the names of the texture inputs, in binding order
	//   - code: the fragment body lines
	//
	// Returns:
	//   - ImagePostProcess: the new post-process
	//   - error: an error if the program could not be created
	NewImagePostProcess(samplers []string, code []string) (ImagePostProcess, error)

	// Display returns the presentation target. The display is owned by the device.
	//
	// Returns:
	//   - RenderTarget: the display target
	Display() RenderTarget
}
