package renderpass

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-choreo/common"
	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
)

// IrradianceResolution is the edge length of the diffuse irradiance map in texels.
const IrradianceResolution = 32

// LightingEnvironment is implemented by scenes lit by an environment map.
type LightingEnvironment interface {
	// LightingEnvironment returns the equirectangular environment texture, or nil when the scene
	// has none this frame.
	//
	// Returns:
	//   - device.Texture: the environment map
	LightingEnvironment() device.Texture
}

// IBLPreprocess convolves the scene's lighting environment into a diffuse irradiance map and
// publishes it as Context.Irradiance. The map is only recomputed when the environment changes.
type IBLPreprocess struct {
	dev    device.Device
	post   device.ImagePostProcess
	target device.RenderTarget
	source device.Texture
}

var _ Preprocess = &IBLPreprocess{}

// NewIBLPreprocess creates the IBL preprocess and compiles its convolution program.
//
// Parameters:
//   - dev: the device to create the program and irradiance target on
//
// Returns:
//   - *IBLPreprocess: the new preprocess
//   - error: an error if the program could not be created
func NewIBLPreprocess(dev device.Device) (*IBLPreprocess, error) {
	post, err := dev.NewImagePostProcess([]string{"environment"}, irradianceCode())
	if err != nil {
		return nil, fmt.Errorf("renderpass: irradiance program: %w", err)
	}
	return &IBLPreprocess{dev: dev, post: post}, nil
}

func (p *IBLPreprocess) Name() string { return "ibl" }

func (p *IBLPreprocess) Execute(scene Scene, ctx *Context) error {
	ctx.Irradiance = nil
	env, ok := scene.(LightingEnvironment)
	if !ok || env == nil {
		return nil
	}
	source := env.LightingEnvironment()
	if source == nil {
		return nil
	}

	if p.target == nil {
		target, err := p.dev.NewRenderTarget(device.RenderTargetTypeColorTextureHDR16, 1, 1, false)
		if err != nil {
			return fmt.Errorf("renderpass: irradiance target: %w", err)
		}
		if err := target.SetViewport(common.Viewport{Width: IrradianceResolution, Height: IrradianceResolution}); err != nil {
			target.Release()
			return fmt.Errorf("renderpass: irradiance target viewport: %w", err)
		}
		p.target = target
	}

	if source != p.source {
		if err := p.post.Blit([]device.Texture{source}, p.target); err != nil {
			return fmt.Errorf("renderpass: irradiance convolution: %w", err)
		}
		p.source = source
	}
	ctx.Irradiance = p.target.Texture(0)
	return nil
}

func (p *IBLPreprocess) Release() {
	if p.target != nil {
		p.target.Release()
		p.target = nil
	}
	if p.post != nil {
		p.post.Release()
		p.post = nil
	}
	p.source = nil
}

// irradianceCode integrates the environment over the hemisphere around the direction of each
// output texel, in equirectangular coordinates.
func irradianceCode() []string {
	return []string{
		"let pi = 3.14159265;",
		"let phi = (v_texcoord.x * 2.0 - 1.0) * pi;",
		"let theta = v_texcoord.y * pi;",
		"let n = vec3<f32>(sin(theta) * cos(phi), cos(theta), sin(theta) * sin(phi));",
		"var sum = vec3<f32>(0.0);",
		"var weight = 0.0;",
		"for (var i = 0u; i < 16u; i = i + 1u) {",
		"  for (var j = 0u; j < 8u; j = j + 1u) {",
		"    let sp = (f32(i) + 0.5) / 16.0 * 2.0 * pi - pi;",
		"    let st = (f32(j) + 0.5) / 8.0 * pi;",
		"    let d = vec3<f32>(sin(st) * cos(sp), cos(st), sin(st) * sin(sp));",
		"    let c = max(dot(n, d), 0.0) * sin(st);",
		"    let uv = vec2<f32>((sp / pi + 1.0) * 0.5, st / pi);",
		"    sum = sum + textureSampleLevel(environment, environment_sampler, uv, 0.0).rgb * c;",
		"    weight = weight + c;",
		"  }",
		"}",
		"frag_color = vec4<f32>(sum / max(weight, 0.0001), 1.0);",
	}
}
