package choreographer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-choreo/engine/capability"
	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
	"github.com/Carmen-Shannon/oxy-choreo/engine/renderpass"
)

// Variant is the pass sequence a frame renders with.
type Variant int

const (
	// VariantDirect renders the scene straight into the display.
	VariantDirect Variant = iota
	// VariantRenderToTexture renders into the blit target and bridges it to the texture and display.
	VariantRenderToTexture
	// VariantHDR renders in floating point and tone maps.
	VariantHDR
	// VariantHDRBloom renders in floating point with a blurred bloom mask blended back in.
	VariantHDRBloom
)

func (v Variant) String() string {
	switch v {
	case VariantDirect:
		return "direct"
	case VariantRenderToTexture:
		return "render_to_texture"
	case VariantHDR:
		return "hdr"
	case VariantHDRBloom:
		return "hdr_bloom"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// SelectVariant picks the pass sequence for a frame, in priority order: HDR with bloom, HDR,
// render-to-texture, direct. Bloom only runs when the scene reports something needs it.
//
// Parameters:
//   - flags: the enabled features
//   - caps: the negotiated capabilities
//   - metadata: the scene's per-frame metadata, may be nil
//
// Returns:
//   - Variant: the selected sequence
func SelectVariant(flags FeatureFlags, caps capability.Capabilities, metadata renderpass.RenderMetadata) Variant {
	if flags.HDR {
		if flags.Bloom && metadata != nil && metadata.RequiresBloomPass() {
			return VariantHDRBloom
		}
		return VariantHDR
	}
	if caps.MRT && flags.RenderToTexture {
		return VariantRenderToTexture
	}
	return VariantDirect
}

func (c *choreographer) renderVariant(v Variant, scene, outgoing renderpass.Scene) error {
	switch v {
	case VariantHDRBloom:
		return c.renderHDRBloom(scene, outgoing)
	case VariantHDR:
		return c.renderHDR(scene, outgoing)
	case VariantRenderToTexture:
		if c.targets.Blit == nil {
			return fmt.Errorf("%w: blit target", ErrInconsistentTargets)
		}
		if err := c.basePass(scene, outgoing, c.targets.Blit); err != nil {
			return err
		}
		return c.renderToTextureAndDisplay(c.targets.Blit)
	default:
		return c.basePass(scene, outgoing, c.dev.Display())
	}
}

func (c *choreographer) basePass(scene, outgoing renderpass.Scene, output device.RenderTarget) error {
	if err := c.base.Render(scene, outgoing, renderpass.NewInputOutput(output), c.ctx); err != nil {
		return fmt.Errorf("choreographer: base pass: %w", err)
	}
	return nil
}

func (c *choreographer) renderHDRBloom(scene, outgoing renderpass.Scene) error {
	t := c.targets
	if t.HDR == nil || t.BlurA == nil || t.BlurB == nil || t.PostProcess == nil {
		return fmt.Errorf("%w: bloom targets", ErrInconsistentTargets)
	}
	if c.blur == nil || c.additiveBlend == nil || c.toneMapping == nil {
		return fmt.Errorf("%w: bloom passes", ErrInconsistentTargets)
	}

	if err := c.basePass(scene, outgoing, t.HDR); err != nil {
		return err
	}

	// The finished blur lands in BlurB.
	io := renderpass.NewInputOutput(t.BlurB)
	io.Targets[renderpass.GaussianInput] = t.HDR
	io.Targets[renderpass.GaussianPingPong] = t.BlurA
	if err := c.blur.Render(scene, outgoing, io, c.ctx); err != nil {
		return fmt.Errorf("choreographer: gaussian blur: %w", err)
	}

	if err := c.additiveBlend.Blit([]device.Texture{t.HDR.Texture(0), t.BlurB.Texture(0)}, t.PostProcess); err != nil {
		return fmt.Errorf("choreographer: additive blend: %w", err)
	}

	result, err := c.applyStage(t.PostProcess, t.HDR)
	if err != nil {
		return err
	}
	return c.toneMap(scene, outgoing, result.Texture(0))
}

func (c *choreographer) renderHDR(scene, outgoing renderpass.Scene) error {
	t := c.targets
	if t.HDR == nil || t.PostProcess == nil || c.toneMapping == nil {
		return fmt.Errorf("%w: hdr targets", ErrInconsistentTargets)
	}

	if err := c.basePass(scene, outgoing, t.HDR); err != nil {
		return err
	}
	result, err := c.applyStage(t.HDR, t.PostProcess)
	if err != nil {
		return err
	}
	return c.toneMap(scene, outgoing, result.Texture(0))
}

// applyStage runs the post-process stage and returns the target holding the image to tone map.
func (c *choreographer) applyStage(input, output device.RenderTarget) (device.RenderTarget, error) {
	res, err := c.stage.Apply(input, output)
	if err != nil {
		return nil, fmt.Errorf("choreographer: post-process stage: %w", err)
	}
	if !res.Applied || res.Output == nil {
		return input, nil
	}
	return res.Output, nil
}

// toneMap compresses hdr into the blit target when rendering to texture, otherwise the display.
func (c *choreographer) toneMap(scene, outgoing renderpass.Scene, hdr device.Texture) error {
	output := c.dev.Display()
	if c.flags.RenderToTexture {
		if c.targets.Blit == nil {
			return fmt.Errorf("%w: blit target", ErrInconsistentTargets)
		}
		output = c.targets.Blit
	}

	io := renderpass.NewInputOutput(output)
	io.Textures[renderpass.ToneMappingHDRInput] = hdr
	if err := c.toneMapping.Render(scene, outgoing, io, c.ctx); err != nil {
		return fmt.Errorf("choreographer: tone mapping: %w", err)
	}

	if c.flags.RenderToTexture {
		return c.renderToTextureAndDisplay(c.targets.Blit)
	}
	return nil
}
