package choreographer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-choreo/common"
	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
	"github.com/Carmen-Shannon/oxy-choreo/engine/renderpass"
)

// RenderTargetSet is the offscreen targets of the current configuration. A nil field is a target
// the configuration does not need.
type RenderTargetSet struct {
	// Blit receives the final image when rendering to texture. Present with MRT.
	Blit device.RenderTarget
	// RenderToTexture receives the flipped copy of Blit. Present with MRT.
	RenderToTexture device.RenderTarget
	// HDR receives the scene in floating point. Two attachments with bloom, one without.
	HDR device.RenderTarget
	// PostProcess is the second HDR-stage target. Present with HDR.
	PostProcess device.RenderTarget
	// BlurA and BlurB are the bloom blur targets, rendered at reduced resolution.
	BlurA device.RenderTarget
	BlurB device.RenderTarget
}

// All returns the non-nil targets.
//
// Returns:
//   - []device.RenderTarget: the allocated targets
func (s RenderTargetSet) All() []device.RenderTarget {
	var out []device.RenderTarget
	for _, t := range []device.RenderTarget{s.Blit, s.RenderToTexture, s.HDR, s.PostProcess, s.BlurA, s.BlurB} {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// isBlurTarget reports whether t renders at the blur scale.
func (s RenderTargetSet) isBlurTarget(t device.RenderTarget) bool {
	return t != nil && (t == s.BlurA || t == s.BlurB)
}

const blitSampler = "source_texture"

func blitCode() []string {
	return []string{"frag_color = textureSample(source_texture, source_texture_sampler, v_texcoord);"}
}

func additiveBlendCode() []string {
	return []string{
		"let hdr_rgba = textureSample(hdr_texture, hdr_texture_sampler, v_texcoord);",
		"let bloom_rgba = textureSample(bloom_texture, bloom_texture_sampler, v_texcoord);",
		"frag_color = hdr_rgba + bloom_rgba;",
	}
}

// rebuild releases every target, pass and preprocess and recreates the set the current flags
// need. On failure everything created so far is released and the set is left invalid.
func (c *choreographer) rebuild() error {
	c.releaseTargets()

	logger := common.Logger()
	logger.Info("creating render targets",
		"mrt", c.caps.MRT,
		"shadows", c.flags.Shadows,
		"hdr_supported", c.caps.HDR, "hdr", c.flags.HDR,
		"pbr_supported", c.caps.PBR, "pbr", c.flags.PBR,
		"bloom_supported", c.caps.Bloom, "bloom", c.flags.Bloom,
	)

	if err := c.createTargets(); err != nil {
		c.releaseTargets()
		logger.Error("render target rebuild failed", "error", err)
		return fmt.Errorf("choreographer: rebuild render targets: %w", err)
	}
	c.valid = true

	if c.viewport != nil {
		if err := c.broadcastViewport(*c.viewport); err != nil {
			c.releaseTargets()
			logger.Error("render target rebuild failed", "error", err)
			return fmt.Errorf("choreographer: rebuild render targets: %w", err)
		}
	}
	c.broadcastClearColor()

	if c.renderTexture != nil && c.targets.RenderToTexture != nil {
		// A texture that no longer fits the rebuilt target is dropped; the target keeps its own.
		if err := c.targets.RenderToTexture.AttachTexture(c.renderTexture, 0); err != nil {
			logger.Warn("render texture detached", "target", c.targets.RenderToTexture.Type().String(), "error", err)
			c.renderTexture = nil
		}
	}

	if c.profiler != nil {
		c.profiler.RecordRebuild()
	}
	return nil
}

func (c *choreographer) createTargets() error {
	dev := c.dev
	colorType := device.RenderTargetTypeColorTexture
	if c.flags.HDR {
		colorType = device.RenderTargetTypeColorTextureHDR16
	}

	var err error
	if c.caps.MRT {
		if c.blitPost, err = dev.NewImagePostProcess([]string{blitSampler}, blitCode()); err != nil {
			return fmt.Errorf("blit program: %w", err)
		}
		if c.targets.Blit, err = dev.NewRenderTarget(colorType, 1, 1, false); err != nil {
			return fmt.Errorf("blit target: %w", err)
		}
		if c.targets.RenderToTexture, err = dev.NewRenderTarget(colorType, 1, 1, false); err != nil {
			return fmt.Errorf("render-to-texture target: %w", err)
		}

		if c.flags.Shadows {
			c.preprocesses = append(c.preprocesses, renderpass.NewShadowPreprocess(dev, c.shadowOptions...))
		}
		if c.flags.PBR {
			ibl, err := renderpass.NewIBLPreprocess(dev)
			if err != nil {
				return err
			}
			c.preprocesses = append(c.preprocesses, ibl)
		}
	}

	if !c.flags.HDR {
		return nil
	}

	if c.targets.PostProcess, err = dev.NewRenderTarget(colorType, 1, 1, false); err != nil {
		return fmt.Errorf("post-process target: %w", err)
	}
	if c.flags.Bloom {
		// The second attachment receives the bright-pass mask.
		if c.targets.HDR, err = dev.NewRenderTarget(device.RenderTargetTypeColorTextureHDR16, 2, 1, false); err != nil {
			return fmt.Errorf("hdr target: %w", err)
		}
		if c.targets.BlurA, err = dev.NewRenderTarget(device.RenderTargetTypeColorTextureHDR16, 1, 1, false); err != nil {
			return fmt.Errorf("blur target a: %w", err)
		}
		if c.targets.BlurB, err = dev.NewRenderTarget(device.RenderTargetTypeColorTextureHDR16, 1, 1, false); err != nil {
			return fmt.Errorf("blur target b: %w", err)
		}
		if c.blur, err = renderpass.NewGaussianBlurPass(dev, c.blurOptions...); err != nil {
			return err
		}
		if c.additiveBlend, err = dev.NewImagePostProcess([]string{"hdr_texture", "bloom_texture"}, additiveBlendCode()); err != nil {
			return fmt.Errorf("additive blend program: %w", err)
		}
	} else {
		if c.targets.HDR, err = dev.NewRenderTarget(device.RenderTargetTypeColorTextureHDR16, 1, 1, false); err != nil {
			return fmt.Errorf("hdr target: %w", err)
		}
	}

	softwareGamma := dev.ColorRenderingMode() == device.ColorRenderingModeLinearSoftware
	if c.toneMapping, err = renderpass.NewToneMappingPass(dev, c.toneMethod, softwareGamma, c.toneOptions...); err != nil {
		return err
	}
	return nil
}

// releaseTargets frees everything rebuild creates and marks the set invalid.
func (c *choreographer) releaseTargets() {
	for _, t := range c.targets.All() {
		t.Release()
	}
	c.targets = RenderTargetSet{}

	if c.blitPost != nil {
		c.blitPost.Release()
		c.blitPost = nil
	}
	if c.additiveBlend != nil {
		c.additiveBlend.Release()
		c.additiveBlend = nil
	}
	if c.blur != nil {
		c.blur.Release()
		c.blur = nil
	}
	if c.toneMapping != nil {
		c.toneMapping.Release()
		c.toneMapping = nil
	}
	for _, p := range c.preprocesses {
		p.Release()
	}
	c.preprocesses = nil
	c.valid = false
}

func (c *choreographer) SetViewport(v common.Viewport) error {
	c.viewport = &v
	if err := c.broadcastViewport(v); err != nil {
		common.Logger().Error("viewport update failed", "viewport", v.String(), "error", err)
		return fmt.Errorf("choreographer: set viewport: %w", err)
	}
	return nil
}

// broadcastViewport gives the display the full viewport, offscreen targets the untranslated one,
// and the blur targets the untranslated one scaled by the blur scale.
func (c *choreographer) broadcastViewport(v common.Viewport) error {
	if err := c.dev.Display().SetViewport(v); err != nil {
		return err
	}
	offscreen := v.Untranslated()
	blur := offscreen.Scaled(c.blurScale)
	for _, t := range c.targets.All() {
		target := offscreen
		if c.targets.isBlurTarget(t) {
			target = blur
		}
		if err := t.SetViewport(target); err != nil {
			return err
		}
	}
	common.Logger().Debug("viewport broadcast", "display", v.String(), "offscreen", offscreen.String(), "blur", blur.String())
	return nil
}

func (c *choreographer) SetClearColor(color common.Color) {
	c.clearColor = color
	c.broadcastClearColor()
}

func (c *choreographer) broadcastClearColor() {
	c.dev.Display().SetClearColor(c.clearColor)
	for _, t := range c.targets.All() {
		t.SetClearColor(c.clearColor)
	}
}
