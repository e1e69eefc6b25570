// Package config loads the renderer settings from a TOML file and applies them to a
// choreographer, either at construction or live when the file changes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-choreo/common"
	"github.com/Carmen-Shannon/oxy-choreo/engine/choreographer"
	"github.com/Carmen-Shannon/oxy-choreo/engine/postprocess"
	"github.com/Carmen-Shannon/oxy-choreo/engine/renderpass"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the full settings file.
type Config struct {
	Renderer RendererConfig `toml:"renderer"`
	Window   WindowConfig   `toml:"window"`
	Device   DeviceConfig   `toml:"device"`
}

// RendererConfig holds the choreographer settings.
type RendererConfig struct {
	Shadows         bool `toml:"shadows"`
	HDR             bool `toml:"hdr"`
	PBR             bool `toml:"pbr"`
	Bloom           bool `toml:"bloom"`
	RenderToTexture bool `toml:"render_to_texture"`

	// BlurScaling is the fraction of the viewport the bloom blur renders at. Construction only.
	BlurScaling float32 `toml:"blur_scaling"`
	// ClearColor is a "#rrggbb" sRGB hex color.
	ClearColor string `toml:"clear_color"`
	// ToneMapping is a tone curve name. Construction only.
	ToneMapping string  `toml:"tone_mapping"`
	Exposure    float32 `toml:"exposure"`
	WhitePoint  float32 `toml:"white_point"`

	// PostProcessEffects are effect names, applied in order.
	PostProcessEffects []string `toml:"post_process_effects"`
}

// WindowConfig holds the demo window settings.
type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// DeviceConfig holds the GPU device settings.
type DeviceConfig struct {
	ForceSoftware bool `toml:"force_software"`
	MSAA          int  `toml:"msaa"`
}

// Default returns the settings used for anything a file leaves out.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	return Config{
		Renderer: RendererConfig{
			Shadows:     true,
			HDR:         true,
			PBR:         true,
			Bloom:       true,
			BlurScaling: choreographer.DefaultBlurScale,
			ClearColor:  "#000000",
			ToneMapping: renderpass.ToneMappingHableLuminanceOnly.String(),
			Exposure:    renderpass.DefaultExposure,
			WhitePoint:  renderpass.DefaultWhitePoint,
		},
		Window: WindowConfig{
			Title:  "oxy-choreo",
			Width:  1280,
			Height: 720,
		},
		Device: DeviceConfig{
			MSAA: 4,
		},
	}
}

// Parse decodes TOML over the defaults and validates the result. Unknown keys are rejected.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the decoded configuration
//   - error: a decode or validation error
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses a settings file.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Config: the decoded configuration
//   - error: a read, decode or validation error
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Marshal encodes the configuration as TOML.
//
// Returns:
//   - []byte: the TOML document
//   - error: an encoding error
func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// Validate checks every value that is not checked by the type system.
//
// Returns:
//   - error: an error wrapping ErrInvalid describing the first bad value
func (c Config) Validate() error {
	r := c.Renderer
	if r.BlurScaling <= 0 || r.BlurScaling > 1 {
		return fmt.Errorf("%w: blur_scaling %v not in (0, 1]", ErrInvalid, r.BlurScaling)
	}
	if r.Exposure <= 0 {
		return fmt.Errorf("%w: exposure must be positive", ErrInvalid)
	}
	if r.WhitePoint <= 0 {
		return fmt.Errorf("%w: white_point must be positive", ErrInvalid)
	}
	if _, err := r.ClearColorValue(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := r.ToneMappingMethod(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := r.Effects(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Window.Width, c.Window.Height)
	}
	switch c.Device.MSAA {
	case 1, 4:
	default:
		return fmt.Errorf("%w: msaa must be 1 or 4, got %d", ErrInvalid, c.Device.MSAA)
	}
	return nil
}

// ClearColorValue converts the hex clear color into a linear color.
//
// Returns:
//   - common.Color: the linear clear color, fully opaque
//   - error: an error if the hex string is malformed
func (r RendererConfig) ClearColorValue() (common.Color, error) {
	c, err := colorful.Hex(r.ClearColor)
	if err != nil {
		return common.Color{}, fmt.Errorf("clear_color %q: %w", r.ClearColor, err)
	}
	lr, lg, lb := c.LinearRgb()
	return common.Color{R: float32(lr), G: float32(lg), B: float32(lb), A: 1}, nil
}

// ToneMappingMethod parses the tone curve name.
//
// Returns:
//   - renderpass.ToneMappingMethod: the tone curve
//   - error: an error if the name is unknown
func (r RendererConfig) ToneMappingMethod() (renderpass.ToneMappingMethod, error) {
	return renderpass.ParseToneMappingMethod(r.ToneMapping)
}

// Effects parses the post-process effect names.
//
// Returns:
//   - []postprocess.Effect: the effects in order
//   - error: an error naming the first unknown effect
func (r RendererConfig) Effects() ([]postprocess.Effect, error) {
	effects := make([]postprocess.Effect, 0, len(r.PostProcessEffects))
	for _, name := range r.PostProcessEffects {
		e, err := postprocess.ParseEffect(name)
		if err != nil {
			return nil, err
		}
		effects = append(effects, e)
	}
	return effects, nil
}

// RendererConfiguration returns the features requested at construction.
//
// Returns:
//   - choreographer.RendererConfiguration: the requested features
func (r RendererConfig) RendererConfiguration() choreographer.RendererConfiguration {
	return choreographer.RendererConfiguration{
		EnableShadows: r.Shadows,
		EnableHDR:     r.HDR,
		EnablePBR:     r.PBR,
		EnableBloom:   r.Bloom,
	}
}

// Options converts the renderer settings into choreographer construction options.
// The configuration must have been validated.
//
// Returns:
//   - []choreographer.ChoreographerBuilderOption: the options
func (r RendererConfig) Options() []choreographer.ChoreographerBuilderOption {
	method, _ := r.ToneMappingMethod()
	clearColor, _ := r.ClearColorValue()
	return []choreographer.ChoreographerBuilderOption{
		choreographer.WithRendererConfiguration(r.RendererConfiguration()),
		choreographer.WithRenderToTexture(r.RenderToTexture),
		choreographer.WithBlurScaling(r.BlurScaling),
		choreographer.WithClearColor(clearColor),
		choreographer.WithToneMapping(method,
			renderpass.WithExposure(r.Exposure),
			renderpass.WithWhitePoint(r.WhitePoint),
		),
	}
}

// Apply pushes the live-adjustable settings onto a running choreographer: feature toggles, clear
// color and the post-process effect chain. Toggles take effect at the next frame. Tone mapping
// and blur scaling are only read at construction.
//
// Parameters:
//   - c: the choreographer, called from the render thread
//
// Returns:
//   - []string: the features the device refused to enable
//   - error: an error if the settings are invalid or an effect could not be created
func (r RendererConfig) Apply(c choreographer.Choreographer) ([]string, error) {
	clearColor, err := r.ClearColorValue()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	effects, err := r.Effects()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var rejected []string
	toggles := []struct {
		name    string
		enabled bool
		set     func(bool) bool
	}{
		{"shadows", r.Shadows, c.SetShadowsEnabled},
		{"hdr", r.HDR, c.SetHDREnabled},
		{"pbr", r.PBR, c.SetPBREnabled},
		{"bloom", r.Bloom, c.SetBloomEnabled},
	}
	for _, t := range toggles {
		if !t.set(t.enabled) {
			rejected = append(rejected, t.name)
		}
	}
	c.SetRenderToTextureEnabled(r.RenderToTexture)
	c.SetClearColor(clearColor)

	factory := c.PostProcessFactory()
	factory.DisableAll()
	for _, e := range effects {
		if err := factory.Enable(e); err != nil {
			return rejected, fmt.Errorf("config: %w", err)
		}
	}

	if len(rejected) > 0 {
		common.Logger().Warn("requested features not supported", "features", rejected)
	}
	return rejected, nil
}
