package renderpass

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-choreo/common"
	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
)

const (
	// ShadowMapResolution is the default width and height in texels of each shadow depth target.
	ShadowMapResolution = 2048
	// DefaultMaxShadowLights caps how many lights get a shadow map per frame.
	DefaultMaxShadowLights = 4
)

// ShadowCaster is implemented by scenes whose lights cast dynamic shadows.
type ShadowCaster interface {
	// ShadowLightCount returns how many lights cast shadows this frame.
	//
	// Returns:
	//   - int: the number of shadow-casting lights
	ShadowLightCount() int

	// RenderShadowMap renders the depth of the scene as seen from one light into target.
	//
	// Parameters:
	//   - ctx: the per-frame render context
	//   - light: the index of the light, in [0, ShadowLightCount())
	//   - target: the depth target to render into
	//
	// Returns:
	//   - error: an error if the shadow map could not be rendered
	RenderShadowMap(ctx *Context, light int, target device.RenderTarget) error
}

// ShadowBuilderOption is a functional option applied to a ShadowPreprocess during construction.
type ShadowBuilderOption func(*ShadowPreprocess)

// WithShadowMapResolution sets the edge length of each shadow map. Values < 1 are ignored.
//
// Parameters:
//   - resolution: width and height in texels
//
// Returns:
//   - ShadowBuilderOption: a function that applies the option
func WithShadowMapResolution(resolution int) ShadowBuilderOption {
	return func(p *ShadowPreprocess) {
		if resolution >= 1 {
			p.resolution = resolution
		}
	}
}

// WithMaxShadowLights caps the number of shadow maps rendered per frame. Values < 1 are ignored.
//
// Parameters:
//   - n: the maximum number of shadow-casting lights
//
// Returns:
//   - ShadowBuilderOption: a function that applies the option
func WithMaxShadowLights(n int) ShadowBuilderOption {
	return func(p *ShadowPreprocess) {
		if n >= 1 {
			p.maxLights = n
		}
	}
}

// ShadowPreprocess renders one depth map per shadow-casting light and publishes them on the
// context as Context.ShadowMaps. Depth targets are created on first use and kept until Release.
type ShadowPreprocess struct {
	dev        device.Device
	resolution int
	maxLights  int
	targets    []device.RenderTarget
}

var _ Preprocess = &ShadowPreprocess{}

// NewShadowPreprocess creates the shadow preprocess. No GPU resources are allocated until the
// first frame with a shadow-casting scene.
//
// Parameters:
//   - dev: the device to allocate depth targets on
//   - options: variadic list of ShadowBuilderOption functions
//
// Returns:
//   - *ShadowPreprocess: the new preprocess
func NewShadowPreprocess(dev device.Device, options ...ShadowBuilderOption) *ShadowPreprocess {
	p := &ShadowPreprocess{
		dev:        dev,
		resolution: ShadowMapResolution,
		maxLights:  DefaultMaxShadowLights,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *ShadowPreprocess) Name() string { return "shadow" }

// Resolution returns the edge length of each shadow map in texels.
func (p *ShadowPreprocess) Resolution() int { return p.resolution }

func (p *ShadowPreprocess) Execute(scene Scene, ctx *Context) error {
	ctx.ShadowMaps = ctx.ShadowMaps[:0]
	caster, ok := scene.(ShadowCaster)
	if !ok || caster == nil {
		return nil
	}

	count := min(caster.ShadowLightCount(), p.maxLights)
	for i := 0; i < count; i++ {
		target, err := p.target(i)
		if err != nil {
			return err
		}
		if err := caster.RenderShadowMap(ctx, i, target); err != nil {
			return fmt.Errorf("renderpass: shadow map %d: %w", i, err)
		}
		ctx.ShadowMaps = append(ctx.ShadowMaps, target.Texture(0))
	}
	return nil
}

func (p *ShadowPreprocess) target(i int) (device.RenderTarget, error) {
	if i < len(p.targets) {
		return p.targets[i], nil
	}
	target, err := p.dev.NewRenderTarget(device.RenderTargetTypeDepthTexture, 1, 1, false)
	if err != nil {
		return nil, fmt.Errorf("renderpass: shadow target %d: %w", i, err)
	}
	if err := target.SetViewport(common.Viewport{Width: p.resolution, Height: p.resolution}); err != nil {
		target.Release()
		return nil, fmt.Errorf("renderpass: shadow target %d viewport: %w", i, err)
	}
	p.targets = append(p.targets, target)
	return target, nil
}

func (p *ShadowPreprocess) Release() {
	for _, t := range p.targets {
		t.Release()
	}
	p.targets = nil
}
