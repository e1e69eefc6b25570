package choreographer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-choreo/common"
	"github.com/Carmen-Shannon/oxy-choreo/engine/capability"
)

// FeatureFlags is the set of features currently enabled. Shadows, HDR, PBR and Bloom are only
// ever true when the hardware supports them; RenderToTexture has no hardware gate.
type FeatureFlags struct {
	Shadows         bool
	HDR             bool
	PBR             bool
	Bloom           bool
	RenderToTexture bool
}

// String summarizes the flags for logging.
func (f FeatureFlags) String() string {
	return fmt.Sprintf("shadows=%t hdr=%t pbr=%t bloom=%t rtt=%t", f.Shadows, f.HDR, f.PBR, f.Bloom, f.RenderToTexture)
}

// affectsTargets reports whether moving from f to o changes which render targets, passes or
// preprocesses exist. Render-to-texture only changes which branch runs.
func (f FeatureFlags) affectsTargets(o FeatureFlags) bool {
	return f.Shadows != o.Shadows || f.HDR != o.HDR || f.PBR != o.PBR || f.Bloom != o.Bloom
}

// RendererConfiguration is the set of features requested at construction. A feature is enabled
// only when it is both requested and supported.
type RendererConfiguration struct {
	EnableShadows bool
	EnableHDR     bool
	EnablePBR     bool
	EnableBloom   bool
}

// DefaultRendererConfiguration requests every feature.
//
// Returns:
//   - RendererConfiguration: a configuration with every feature requested
func DefaultRendererConfiguration() RendererConfiguration {
	return RendererConfiguration{
		EnableShadows: true,
		EnableHDR:     true,
		EnablePBR:     true,
		EnableBloom:   true,
	}
}

// initialFlags intersects the requested configuration with the negotiated capabilities.
func initialFlags(caps capability.Capabilities, cfg RendererConfiguration) FeatureFlags {
	return FeatureFlags{
		Shadows: caps.Shadows() && cfg.EnableShadows,
		HDR:     caps.HDR && cfg.EnableHDR,
		PBR:     caps.PBR && cfg.EnablePBR,
		Bloom:   caps.Bloom && cfg.EnableBloom,
	}
}

func (c *choreographer) SetShadowsEnabled(enabled bool) bool {
	return c.toggle("shadows", enabled, c.caps.Shadows(), func(f *FeatureFlags) *bool { return &f.Shadows })
}

func (c *choreographer) SetHDREnabled(enabled bool) bool {
	return c.toggle("hdr", enabled, c.caps.HDR, func(f *FeatureFlags) *bool { return &f.HDR })
}

func (c *choreographer) SetPBREnabled(enabled bool) bool {
	return c.toggle("pbr", enabled, c.caps.PBR, func(f *FeatureFlags) *bool { return &f.PBR })
}

func (c *choreographer) SetBloomEnabled(enabled bool) bool {
	return c.toggle("bloom", enabled, c.caps.Bloom, func(f *FeatureFlags) *bool { return &f.Bloom })
}

func (c *choreographer) SetRenderToTextureEnabled(enabled bool) {
	if c.pending.RenderToTexture == enabled {
		return
	}
	next := c.pending
	next.RenderToTexture = enabled
	c.requestReconfigure(next)
}

// toggle stages a change of one gated feature. Enabling an unsupported feature is refused
// without touching any state; enabling a supported one always marks the configuration dirty.
func (c *choreographer) toggle(name string, enabled, supported bool, field func(*FeatureFlags) *bool) bool {
	if enabled && !supported {
		common.Logger().Warn("feature not supported by this device", "feature", name, "capabilities", c.caps.String())
		return false
	}

	next := c.pending
	staged := field(&next)
	if !enabled && !*staged {
		return true
	}
	*staged = enabled
	c.requestReconfigure(next)
	return true
}

// requestReconfigure stages flags to be applied at the start of the next frame.
func (c *choreographer) requestReconfigure(flags FeatureFlags) {
	c.pending = flags
	c.dirty = true
}

// applyPendingReconfiguration makes the staged flags current. Render targets are rebuilt only
// when the change affects them or the previous rebuild failed. On failure the configuration
// stays dirty so the next frame tries again.
func (c *choreographer) applyPendingReconfiguration() error {
	if !c.dirty {
		return nil
	}
	rebuild := !c.valid || c.pending.affectsTargets(c.flags)
	c.flags = c.pending
	if rebuild {
		if err := c.rebuild(); err != nil {
			return err
		}
	}
	c.dirty = false
	return nil
}
