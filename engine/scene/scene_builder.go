package scene

import "github.com/Carmen-Shannon/oxy-choreo/common"

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options that are applied directly to the scene instance.
type SceneBuilderOption func(*scene)

// Preset is a named sky configuration.
type Preset struct {
	Name         string
	Horizon      common.Color
	Zenith       common.Color
	Ground       common.Color
	SunPosition  [2]float32
	SunColor     common.Color
	SunIntensity float32
}

// Presets are the skies the demo cycles through. Night has no HDR highlights, so it exercises
// the frames where bloom is enabled but not needed.
var Presets = []Preset{
	{
		Name:         "dusk",
		Horizon:      common.Color{R: 0.9, G: 0.45, B: 0.2, A: 1},
		Zenith:       common.Color{R: 0.1, G: 0.15, B: 0.4, A: 1},
		Ground:       common.Color{R: 0.25, G: 0.22, B: 0.2, A: 1},
		SunPosition:  [2]float32{0.7, 0.55},
		SunColor:     common.Color{R: 1, G: 0.8, B: 0.5, A: 1},
		SunIntensity: 8,
	},
	{
		Name:         "noon",
		Horizon:      common.Color{R: 0.7, G: 0.85, B: 1, A: 1},
		Zenith:       common.Color{R: 0.2, G: 0.45, B: 0.9, A: 1},
		Ground:       common.Color{R: 0.3, G: 0.45, B: 0.2, A: 1},
		SunPosition:  [2]float32{0.5, 0.15},
		SunColor:     common.Color{R: 1, G: 1, B: 0.95, A: 1},
		SunIntensity: 20,
	},
	{
		Name:         "night",
		Horizon:      common.Color{R: 0.05, G: 0.07, B: 0.15, A: 1},
		Zenith:       common.Color{R: 0.01, G: 0.01, B: 0.04, A: 1},
		Ground:       common.Color{R: 0.03, G: 0.03, B: 0.04, A: 1},
		SunPosition:  [2]float32{0.3, 0.2},
		SunColor:     common.Color{R: 0.8, G: 0.85, B: 1, A: 1},
		SunIntensity: 0.6,
	},
}

// WithPreset applies every field of a preset.
//
// Parameters:
//   - p: the preset
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithPreset(p Preset) SceneBuilderOption {
	return func(s *scene) {
		s.name = p.Name
		s.horizon, s.zenith, s.ground = p.Horizon, p.Zenith, p.Ground
		s.sunPosition = p.SunPosition
		s.sunColor = p.SunColor
		s.sunIntensity = p.SunIntensity
	}
}

// WithName sets the scene name.
//
// Parameters:
//   - name: the name used in logs
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithName(name string) SceneBuilderOption {
	return func(s *scene) {
		s.name = name
	}
}

// WithSun places the sun. Intensities above 1 exceed the display range and request bloom.
//
// Parameters:
//   - x, y: the sun center in texture space, origin top-left
//   - intensity: the HDR multiplier on the sun color
//   - radius: the glow radius in texture space
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithSun(x, y, intensity, radius float32) SceneBuilderOption {
	return func(s *scene) {
		s.sunPosition = [2]float32{x, y}
		if intensity >= 0 {
			s.sunIntensity = intensity
		}
		if radius > 0 {
			s.sunRadius = radius
		}
	}
}
