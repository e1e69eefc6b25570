// Package scene provides the procedural sky scenes the demo renders: a gradient sky, an HDR sun
// that drives bloom, and a ground plane lit from the sky's irradiance when PBR is on.
package scene

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-choreo/common"
	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
	"github.com/Carmen-Shannon/oxy-choreo/engine/renderpass"
)

// EnvironmentWidth and EnvironmentHeight size the equirectangular sky rendered for IBL.
const (
	EnvironmentWidth  = 64
	EnvironmentHeight = 32
)

// horizonLine is the texture-space height of the horizon, measured from the top.
const horizonLine = 0.65

// Scene is a procedural sky scene. It is drawn by the base render pass and feeds the IBL preprocess
// through its environment map.
type Scene interface {
	renderpass.Drawer
	renderpass.RenderMetadata
	renderpass.LightingEnvironment

	// Name returns the scene name.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Release frees the scene's programs and environment map.
	Release()
}

// scene is the implementation of the Scene interface.
type scene struct {
	name string

	horizon, zenith common.Color
	ground          common.Color
	sunPosition     [2]float32
	sunColor        common.Color
	sunIntensity    float32
	sunRadius       float32

	unlit       device.ImagePostProcess
	lit         device.ImagePostProcess
	sky         device.ImagePostProcess
	environment device.RenderTarget
}

var _ Scene = &scene{}

// NewScene creates a scene and renders its environment map.
//
// Parameters:
//   - dev: the device the scene draws with
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the new scene
//   - error: an error if a program or the environment map could not be created
func NewScene(dev device.Device, options ...SceneBuilderOption) (Scene, error) {
	s := &scene{
		name:         "dusk",
		horizon:      common.Color{R: 0.9, G: 0.45, B: 0.2, A: 1},
		zenith:       common.Color{R: 0.1, G: 0.15, B: 0.4, A: 1},
		ground:       common.Color{R: 0.25, G: 0.22, B: 0.2, A: 1},
		sunPosition:  [2]float32{0.7, 0.55},
		sunColor:     common.Color{R: 1, G: 0.8, B: 0.5, A: 1},
		sunIntensity: 8,
		sunRadius:    0.05,
	}
	for _, opt := range options {
		opt(s)
	}

	var err error
	if s.unlit, err = dev.NewImagePostProcess(nil, s.code(false)); err != nil {
		return nil, fmt.Errorf("scene %s: %w", s.name, err)
	}
	if s.lit, err = dev.NewImagePostProcess([]string{"irradiance"}, s.code(true)); err != nil {
		s.Release()
		return nil, fmt.Errorf("scene %s: %w", s.name, err)
	}
	if s.sky, err = dev.NewImagePostProcess(nil, s.skyCode()); err != nil {
		s.Release()
		return nil, fmt.Errorf("scene %s: %w", s.name, err)
	}
	if err := s.renderEnvironment(dev); err != nil {
		s.Release()
		return nil, fmt.Errorf("scene %s: environment map: %w", s.name, err)
	}
	return s, nil
}

func (s *scene) renderEnvironment(dev device.Device) error {
	target, err := dev.NewRenderTarget(device.RenderTargetTypeColorTextureHDR16, 1, 1, false)
	if err != nil {
		return err
	}
	s.environment = target
	if err := target.SetViewport(common.Viewport{Width: EnvironmentWidth, Height: EnvironmentHeight}); err != nil {
		return err
	}
	return s.sky.Blit(nil, target)
}

func (s *scene) Name() string {
	return s.name
}

// Draw picks the irradiance-lit program when PBR is active and the IBL preprocess produced a map.
func (s *scene) Draw(ctx *renderpass.Context, target device.RenderTarget) error {
	if ctx.PBREnabled && ctx.Irradiance != nil {
		return s.lit.Blit([]device.Texture{ctx.Irradiance}, target)
	}
	return s.unlit.Blit(nil, target)
}

// RequiresBloomPass is true while the sun is bright enough to exceed the displayable range.
func (s *scene) RequiresBloomPass() bool {
	return s.sunIntensity > 1
}

func (s *scene) LightingEnvironment() device.Texture {
	if s.environment == nil {
		return nil
	}
	return s.environment.Texture(0)
}

func (s *scene) Release() {
	for _, p := range []device.ImagePostProcess{s.unlit, s.lit, s.sky} {
		if p != nil {
			p.Release()
		}
	}
	if s.environment != nil {
		s.environment.Release()
	}
	s.unlit, s.lit, s.sky, s.environment = nil, nil, nil, nil
}

func vec3(c common.Color) string {
	return fmt.Sprintf("vec3<f32>(%f, %f, %f)", c.R, c.G, c.B)
}

// skyLines computes `sky` (the gradient plus sun) at texture coordinate uv.
func (s *scene) skyLines(uv string) []string {
	return []string{
		fmt.Sprintf("let up = clamp((%f - %s.y) / %f, 0.0, 1.0);", horizonLine, uv, horizonLine),
		fmt.Sprintf("let gradient = mix(%s, %s, pow(up, 0.6));", vec3(s.horizon), vec3(s.zenith)),
		fmt.Sprintf("let sun_distance = distance(%s, vec2<f32>(%f, %f));", uv, s.sunPosition[0], s.sunPosition[1]),
		fmt.Sprintf("let sun_glow = 1.0 - smoothstep(0.0, %f, sun_distance);", s.sunRadius),
		fmt.Sprintf("let sky = gradient + %s * (%f * sun_glow);", vec3(s.sunColor), s.sunIntensity),
	}
}

func (s *scene) skyCode() []string {
	return append(s.skyLines("v_texcoord"), "frag_color = vec4<f32>(sky, 1.0);")
}

func (s *scene) code(lit bool) []string {
	code := s.skyLines("v_texcoord")
	ground := vec3(s.ground)
	if lit {
		code = append(code,
			"let irradiance_rgb = textureSample(irradiance, irradiance_sampler, vec2<f32>(v_texcoord.x, 0.25)).rgb;")
		ground = ground + " * irradiance_rgb"
	}
	code = append(code,
		fmt.Sprintf("let depth = clamp((v_texcoord.y - %f) / %f, 0.0, 1.0);", horizonLine, 1-horizonLine),
		fmt.Sprintf("let ground = %s * (0.6 + 0.4 * depth);", ground),
		fmt.Sprintf("let color = select(sky, ground, v_texcoord.y > %f);", horizonLine),
		"frag_color = vec4<f32>(color, 1.0);",
		"bloom_color = vec4<f32>(max(color - vec3<f32>(1.0), vec3<f32>(0.0)), 1.0);",
	)
	return code
}
