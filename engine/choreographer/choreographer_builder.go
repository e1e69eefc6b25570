package choreographer

import (
	"github.com/Carmen-Shannon/oxy-choreo/common"
	"github.com/Carmen-Shannon/oxy-choreo/engine/postprocess"
	"github.com/Carmen-Shannon/oxy-choreo/engine/profiler"
	"github.com/Carmen-Shannon/oxy-choreo/engine/renderpass"
)

// DefaultBlurScale is the fraction of the viewport the bloom blur targets render at.
const DefaultBlurScale float32 = 0.25

// ChoreographerBuilderOption is a functional option for configuring a Choreographer.
// Use the With* functions to create options that are applied directly to the choreographer instance.
type ChoreographerBuilderOption func(*choreographer)

// WithRendererConfiguration sets the features requested at construction. Requested features the
// device cannot support stay disabled. Defaults to DefaultRendererConfiguration.
//
// Parameters:
//   - cfg: the requested features
//
// Returns:
//   - ChoreographerBuilderOption: option function to apply
func WithRendererConfiguration(cfg RendererConfiguration) ChoreographerBuilderOption {
	return func(c *choreographer) {
		c.config = cfg
	}
}

// WithRenderToTexture sets whether render-to-texture starts enabled.
//
// Parameters:
//   - enabled: the initial render-to-texture state
//
// Returns:
//   - ChoreographerBuilderOption: option function to apply
func WithRenderToTexture(enabled bool) ChoreographerBuilderOption {
	return func(c *choreographer) {
		c.initialRTT = enabled
	}
}

// WithBlurScaling sets the fraction of the viewport the bloom blur targets render at.
// Values outside (0, 1] are ignored.
//
// Parameters:
//   - scale: the blur target scale (default 0.25)
//
// Returns:
//   - ChoreographerBuilderOption: option function to apply
func WithBlurScaling(scale float32) ChoreographerBuilderOption {
	return func(c *choreographer) {
		if scale > 0 && scale <= 1 {
			c.blurScale = scale
		}
	}
}

// WithToneMapping sets the tone curve and its parameters.
//
// Parameters:
//   - method: the tone curve (default HableLuminanceOnly)
//   - options: options passed to the tone-mapping pass on every rebuild
//
// Returns:
//   - ChoreographerBuilderOption: option function to apply
func WithToneMapping(method renderpass.ToneMappingMethod, options ...renderpass.ToneMappingBuilderOption) ChoreographerBuilderOption {
	return func(c *choreographer) {
		c.toneMethod = method
		c.toneOptions = options
	}
}

// WithGaussianBlurOptions sets the options passed to the bloom blur pass on every rebuild.
//
// Parameters:
//   - options: the blur options
//
// Returns:
//   - ChoreographerBuilderOption: option function to apply
func WithGaussianBlurOptions(options ...renderpass.GaussianBlurBuilderOption) ChoreographerBuilderOption {
	return func(c *choreographer) {
		c.blurOptions = options
	}
}

// WithShadowOptions sets the options passed to the shadow preprocess on every rebuild.
//
// Parameters:
//   - options: the shadow options
//
// Returns:
//   - ChoreographerBuilderOption: option function to apply
func WithShadowOptions(options ...renderpass.ShadowBuilderOption) ChoreographerBuilderOption {
	return func(c *choreographer) {
		c.shadowOptions = options
	}
}

// WithBaseRenderPass sets the pass that draws the scene. Defaults to renderpass.NewScenePass.
//
// Parameters:
//   - pass: the base pass
//
// Returns:
//   - ChoreographerBuilderOption: option function to apply
func WithBaseRenderPass(pass renderpass.RenderPass) ChoreographerBuilderOption {
	return func(c *choreographer) {
		if pass != nil {
			c.base = pass
		}
	}
}

// WithPostProcessStage sets the stage run on the HDR image before tone mapping.
// Defaults to the built-in effect factory.
//
// Parameters:
//   - stage: the post-process stage
//
// Returns:
//   - ChoreographerBuilderOption: option function to apply
func WithPostProcessStage(stage postprocess.Stage) ChoreographerBuilderOption {
	return func(c *choreographer) {
		c.stage = stage
	}
}

// WithProfiler sets the profiler that receives frame and rebuild counts.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - ChoreographerBuilderOption: option function to apply
func WithProfiler(p *profiler.Profiler) ChoreographerBuilderOption {
	return func(c *choreographer) {
		c.profiler = p
	}
}

// WithClearColor sets the initial clear color. Defaults to opaque black.
//
// Parameters:
//   - color: the clear color
//
// Returns:
//   - ChoreographerBuilderOption: option function to apply
func WithClearColor(color common.Color) ChoreographerBuilderOption {
	return func(c *choreographer) {
		c.clearColor = color
	}
}

// WithViewport sets the initial viewport, applied when the first targets are created.
//
// Parameters:
//   - v: the viewport
//
// Returns:
//   - ChoreographerBuilderOption: option function to apply
func WithViewport(v common.Viewport) ChoreographerBuilderOption {
	return func(c *choreographer) {
		c.viewport = &v
	}
}
