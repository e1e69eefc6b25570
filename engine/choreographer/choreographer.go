// Package choreographer decides, for every eye of every frame, which sequence of render passes
// runs and on which intermediate render targets, based on what the GPU supports and which
// features the application has enabled.
package choreographer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-choreo/common"
	"github.com/Carmen-Shannon/oxy-choreo/engine/capability"
	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
	"github.com/Carmen-Shannon/oxy-choreo/engine/postprocess"
	"github.com/Carmen-Shannon/oxy-choreo/engine/profiler"
	"github.com/Carmen-Shannon/oxy-choreo/engine/renderpass"
)

var (
	// ErrNilDevice is returned by New when no device is given.
	ErrNilDevice = errors.New("choreographer: nil device")
	// ErrInconsistentTargets is returned when a frame needs a target or pass the current
	// configuration did not create.
	ErrInconsistentTargets = errors.New("choreographer: render targets inconsistent with configuration")
	// ErrRenderToTextureUnavailable is returned by SetRenderTexture when the device has no
	// render-to-texture target.
	ErrRenderToTextureUnavailable = errors.New("choreographer: render-to-texture target unavailable")
)

// Choreographer sequences the render passes of each frame. All methods must be called from the
// render thread. Feature toggles are staged and take effect at the start of the next frame.
type Choreographer interface {
	// Render renders one eye of a frame. A call for EyeLeft or EyeMonocular starts a new frame:
	// staged feature changes are applied and the preprocesses run. EyeRight reuses their results.
	//
	// Parameters:
	//   - eye: the eye being rendered
	//   - scene: the scene to render
	//   - outgoing: the scene being transitioned away from, or nil
	//   - metadata: per-frame facts about the scene, may be nil
	//
	// Returns:
	//   - error: the first error of the frame; the rest of the frame is skipped
	Render(eye common.EyeType, scene, outgoing renderpass.Scene, metadata renderpass.RenderMetadata) error

	// SetViewport sets the viewport. The display receives v unchanged, offscreen targets receive
	// it moved to the origin and the blur targets additionally scaled by the blur scale. The
	// viewport is re-applied after every rebuild.
	//
	// Parameters:
	//   - v: the new viewport
	//
	// Returns:
	//   - error: an error if a target could not be resized
	SetViewport(v common.Viewport) error

	// SetClearColor sets the clear color of the display and every offscreen target. The color is
	// re-applied after every rebuild.
	//
	// Parameters:
	//   - color: the new clear color
	SetClearColor(color common.Color)

	// SetShadowsEnabled stages enabling or disabling dynamic shadows.
	//
	// Parameters:
	//   - enabled: the requested state
	//
	// Returns:
	//   - bool: false if enabling was refused because the device cannot support it
	SetShadowsEnabled(enabled bool) bool

	// SetHDREnabled stages enabling or disabling HDR rendering.
	//
	// Parameters:
	//   - enabled: the requested state
	//
	// Returns:
	//   - bool: false if enabling was refused because the device cannot support it
	SetHDREnabled(enabled bool) bool

	// SetPBREnabled stages enabling or disabling physically-based lighting.
	//
	// Parameters:
	//   - enabled: the requested state
	//
	// Returns:
	//   - bool: false if enabling was refused because the device cannot support it
	SetPBREnabled(enabled bool) bool

	// SetBloomEnabled stages enabling or disabling bloom.
	//
	// Parameters:
	//   - enabled: the requested state
	//
	// Returns:
	//   - bool: false if enabling was refused because the device cannot support it
	SetBloomEnabled(enabled bool) bool

	// SetRenderToTextureEnabled stages enabling or disabling render-to-texture. It has no hardware
	// gate, but without MRT support frames keep rendering directly to the display.
	//
	// Parameters:
	//   - enabled: the requested state
	SetRenderToTextureEnabled(enabled bool)

	// SetRenderToTextureObserver sets the function receiving the render-to-texture target's texture
	// after each frame is copied into it.
	//
	// Parameters:
	//   - observer: the observer, or nil to remove it
	SetRenderToTextureObserver(observer func(device.Texture))

	// SetRenderToTextureCallback sets the function called after a render-to-texture frame has also
	// been written to the display.
	//
	// Parameters:
	//   - callback: the callback, or nil to remove it
	SetRenderToTextureCallback(callback func())

	// SetRenderTexture attaches a caller-owned texture as the render-to-texture target's color
	// attachment. The texture stays attached across rebuilds until a rebuild changes the target
	// format (HDR on or off); it is then detached with a warning and the target renders into its
	// own texture again. Passing nil forgets the texture.
	//
	// Parameters:
	//   - tex: the texture to render into
	//
	// Returns:
	//   - error: ErrRenderToTextureUnavailable without MRT, or the device error
	SetRenderTexture(tex device.Texture) error

	// AttachPostProcessStage replaces the stage run on the HDR image before tone mapping.
	//
	// Parameters:
	//   - stage: the stage, or nil to restore the built-in effect factory
	AttachPostProcessStage(stage postprocess.Stage)

	// SetBaseRenderPass replaces the pass that draws the scene.
	//
	// Parameters:
	//   - pass: the pass, or nil to restore the default scene pass
	SetBaseRenderPass(pass renderpass.RenderPass)

	// PostProcessFactory returns the built-in effect factory.
	//
	// Returns:
	//   - postprocess.Factory: the factory, owned by the choreographer
	PostProcessFactory() postprocess.Factory

	// ToneMapping returns the current tone-mapping pass.
	//
	// Returns:
	//   - *renderpass.ToneMappingPass: the pass, or nil when HDR is disabled
	ToneMapping() *renderpass.ToneMappingPass

	// Capabilities returns what the device supports.
	//
	// Returns:
	//   - capability.Capabilities: the negotiated capabilities
	Capabilities() capability.Capabilities

	// Flags returns the features the current frame renders with.
	//
	// Returns:
	//   - FeatureFlags: the active flags
	Flags() FeatureFlags

	// PendingFlags returns the staged flags the next frame will render with.
	//
	// Returns:
	//   - FeatureFlags: the staged flags
	PendingFlags() FeatureFlags

	// Dirty reports whether staged changes are waiting for the next frame.
	//
	// Returns:
	//   - bool: true if the next frame applies a reconfiguration
	Dirty() bool

	// Targets returns the current offscreen render targets.
	//
	// Returns:
	//   - RenderTargetSet: the targets, owned by the choreographer
	Targets() RenderTargetSet

	// LastVariant returns the variant of the last rendered eye.
	//
	// Returns:
	//   - Variant: the variant
	LastVariant() Variant

	// Release frees every target, pass and program held by the choreographer.
	Release()
}

// choreographer implements the Choreographer interface.
type choreographer struct {
	dev      device.Device
	caps     capability.Capabilities
	config   RendererConfiguration
	flags    FeatureFlags
	pending  FeatureFlags
	dirty    bool
	valid    bool
	profiler *profiler.Profiler

	targets       RenderTargetSet
	blitPost      device.ImagePostProcess
	additiveBlend device.ImagePostProcess
	blur          *renderpass.GaussianBlurPass
	toneMapping   *renderpass.ToneMappingPass
	preprocesses  []renderpass.Preprocess

	base    renderpass.RenderPass
	factory postprocess.Factory
	stage   postprocess.Stage

	blurScale     float32
	blurOptions   []renderpass.GaussianBlurBuilderOption
	shadowOptions []renderpass.ShadowBuilderOption
	toneMethod    renderpass.ToneMappingMethod
	toneOptions   []renderpass.ToneMappingBuilderOption

	viewport      *common.Viewport
	clearColor    common.Color
	initialRTT    bool
	renderTexture device.Texture
	rttObserver   func(device.Texture)
	rttCallback   func()

	ctx         *renderpass.Context
	lastVariant Variant
}

var _ Choreographer = &choreographer{}

// New negotiates the device capabilities, enables every requested feature the device supports
// and allocates the initial render targets.
//
// Parameters:
//   - dev: the graphics device
//   - options: variadic list of ChoreographerBuilderOption functions
//
// Returns:
//   - Choreographer: the new choreographer
//   - error: ErrNilDevice, or an error if the initial targets could not be allocated
func New(dev device.Device, options ...ChoreographerBuilderOption) (Choreographer, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}

	c := &choreographer{
		dev:        dev,
		config:     DefaultRendererConfiguration(),
		base:       renderpass.NewScenePass(),
		blurScale:  DefaultBlurScale,
		toneMethod: renderpass.ToneMappingHableLuminanceOnly,
		clearColor: common.Black,
		ctx:        &renderpass.Context{Device: dev},
	}
	for _, opt := range options {
		opt(c)
	}

	c.caps = capability.Negotiate(dev)
	c.flags = initialFlags(c.caps, c.config)
	c.flags.RenderToTexture = c.initialRTT
	c.pending = c.flags

	c.factory = postprocess.NewFactory(dev)
	if c.stage == nil {
		c.stage = c.factory
	}

	common.Logger().Info("negotiated capabilities",
		"gpu", dev.GPUType().String(),
		"color_mode", dev.ColorRenderingMode().String(),
		"capabilities", c.caps.String(),
		"enabled", c.flags.String(),
	)

	if err := c.rebuild(); err != nil {
		c.factory.Release()
		return nil, err
	}
	return c, nil
}

func (c *choreographer) Render(eye common.EyeType, scene, outgoing renderpass.Scene, metadata renderpass.RenderMetadata) error {
	logger := common.Logger()

	if eye.StartsFrame() {
		if err := c.applyPendingReconfiguration(); err != nil {
			logger.Error("frame aborted", "eye", eye.String(), "error", err)
			return err
		}

		c.ctx.Frame++
		c.ctx.Eye = eye
		c.ctx.PBREnabled = c.flags.HDR && c.flags.PBR
		c.ctx.ShadowMaps = nil
		c.ctx.Irradiance = nil
		for _, p := range c.preprocesses {
			if err := p.Execute(scene, c.ctx); err != nil {
				logger.Error("frame aborted", "eye", eye.String(), "preprocess", p.Name(), "error", err)
				return fmt.Errorf("choreographer: %s preprocess: %w", p.Name(), err)
			}
		}
	}
	c.ctx.Eye = eye

	variant := SelectVariant(c.flags, c.caps, metadata)
	c.lastVariant = variant
	logger.Debug("rendering frame", "frame", c.ctx.Frame, "eye", eye.String(), "variant", variant.String())

	if err := c.renderVariant(variant, scene, outgoing); err != nil {
		logger.Error("frame aborted", "eye", eye.String(), "variant", variant.String(), "error", err)
		return err
	}

	if c.profiler != nil && eye.StartsFrame() {
		c.profiler.RecordFrame(variant.String())
	}
	return nil
}

func (c *choreographer) AttachPostProcessStage(stage postprocess.Stage) {
	if stage == nil {
		stage = c.factory
	}
	c.stage = stage
}

func (c *choreographer) SetBaseRenderPass(pass renderpass.RenderPass) {
	if pass == nil {
		pass = renderpass.NewScenePass()
	}
	c.base = pass
}

func (c *choreographer) PostProcessFactory() postprocess.Factory {
	return c.factory
}

func (c *choreographer) ToneMapping() *renderpass.ToneMappingPass {
	return c.toneMapping
}

func (c *choreographer) Capabilities() capability.Capabilities {
	return c.caps
}

func (c *choreographer) Flags() FeatureFlags {
	return c.flags
}

func (c *choreographer) PendingFlags() FeatureFlags {
	return c.pending
}

func (c *choreographer) Dirty() bool {
	return c.dirty
}

func (c *choreographer) Targets() RenderTargetSet {
	return c.targets
}

func (c *choreographer) LastVariant() Variant {
	return c.lastVariant
}

func (c *choreographer) Release() {
	c.releaseTargets()
	c.factory.Release()
}
