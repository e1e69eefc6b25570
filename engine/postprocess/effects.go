package postprocess

import (
	"fmt"
	"strings"
)

// Effect is a built-in full-screen image effect.
type Effect int

const (
	// EffectEmpty copies the image unchanged.
	EffectEmpty Effect = iota
	// EffectGrayscale converts to luminance.
	EffectGrayscale
	// EffectSepia applies a warm brown tint.
	EffectSepia
	// EffectSinCity keeps strong reds and converts everything else to grayscale.
	EffectSinCity
	// EffectBarrelDistortion bulges the image outward from the center.
	EffectBarrelDistortion
	// EffectPincushionDistortion pinches the image toward the center.
	EffectPincushionDistortion
	// EffectThermalVision maps luminance onto a blue-to-red heat ramp.
	EffectThermalVision
	// EffectCrosshatch draws luminance-dependent hatching lines.
	EffectCrosshatch
	// EffectToon posterizes color into flat bands.
	EffectToon
)

var effectNames = []string{
	EffectEmpty:                "empty",
	EffectGrayscale:            "grayscale",
	EffectSepia:                "sepia",
	EffectSinCity:              "sincity",
	EffectBarrelDistortion:     "barrel_distortion",
	EffectPincushionDistortion: "pincushion_distortion",
	EffectThermalVision:        "thermal_vision",
	EffectCrosshatch:           "crosshatch",
	EffectToon:                 "toon",
}

func (e Effect) String() string {
	if e >= 0 && int(e) < len(effectNames) {
		return effectNames[e]
	}
	return fmt.Sprintf("effect(%d)", int(e))
}

// ParseEffect parses an effect name as produced by String.
//
// Parameters:
//   - name: the effect name, case-insensitive
//
// Returns:
//   - Effect: the parsed effect
//   - error: an error if the name is unknown
func ParseEffect(name string) (Effect, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range effectNames {
		if n == name {
			return Effect(i), nil
		}
	}
	return EffectEmpty, fmt.Errorf("postprocess: unknown effect %q", name)
}

// Effects returns every built-in effect.
func Effects() []Effect {
	out := make([]Effect, len(effectNames))
	for i := range effectNames {
		out[i] = Effect(i)
	}
	return out
}

// sourceSampler is the single input every effect program declares.
const sourceSampler = "source_texture"

const sample = "textureSample(source_texture, source_texture_sampler, v_texcoord)"

func distortion(k string) []string {
	return []string{
		"let centered = v_texcoord * 2.0 - vec2<f32>(1.0);",
		"let r2 = dot(centered, centered);",
		fmt.Sprintf("let uv = (centered * (1.0 + %s * r2)) * 0.5 + vec2<f32>(0.5);", k),
		"let c = textureSample(source_texture, source_texture_sampler, clamp(uv, vec2<f32>(0.0), vec2<f32>(1.0)));",
		"let inside = all(uv >= vec2<f32>(0.0)) && all(uv <= vec2<f32>(1.0));",
		"frag_color = select(vec4<f32>(0.0, 0.0, 0.0, 1.0), c, inside);",
	}
}

// code returns the fragment body of the effect.
func (e Effect) code() []string {
	switch e {
	case EffectGrayscale:
		return []string{
			"let c = " + sample + ";",
			"let l = dot(c.rgb, vec3<f32>(0.2126, 0.7152, 0.0722));",
			"frag_color = vec4<f32>(vec3<f32>(l), c.a);",
		}
	case EffectSepia:
		return []string{
			"let c = " + sample + ";",
			"let r = dot(c.rgb, vec3<f32>(0.393, 0.769, 0.189));",
			"let g = dot(c.rgb, vec3<f32>(0.349, 0.686, 0.168));",
			"let b = dot(c.rgb, vec3<f32>(0.272, 0.534, 0.131));",
			"frag_color = vec4<f32>(r, g, b, c.a);",
		}
	case EffectSinCity:
		return []string{
			"let c = " + sample + ";",
			"let l = dot(c.rgb, vec3<f32>(0.2126, 0.7152, 0.0722));",
			"if (c.r > 0.5 && c.g < 0.35 && c.b < 0.35) {",
			"  frag_color = vec4<f32>(c.r, 0.0, 0.0, c.a);",
			"} else {",
			"  frag_color = vec4<f32>(vec3<f32>(l), c.a);",
			"}",
		}
	case EffectBarrelDistortion:
		return distortion("0.15")
	case EffectPincushionDistortion:
		return distortion("-0.15")
	case EffectThermalVision:
		return []string{
			"let c = " + sample + ";",
			"let l = clamp(dot(c.rgb, vec3<f32>(0.2126, 0.7152, 0.0722)), 0.0, 1.0);",
			"let cold = mix(vec3<f32>(0.0, 0.0, 1.0), vec3<f32>(1.0, 1.0, 0.0), l * 2.0);",
			"let hot = mix(vec3<f32>(1.0, 1.0, 0.0), vec3<f32>(1.0, 0.0, 0.0), l * 2.0 - 1.0);",
			"frag_color = vec4<f32>(select(hot, cold, l < 0.5), c.a);",
		}
	case EffectCrosshatch:
		return []string{
			"let c = " + sample + ";",
			"let l = dot(c.rgb, vec3<f32>(0.2126, 0.7152, 0.0722));",
			"let p = v_texcoord * vec2<f32>(textureDimensions(source_texture, 0));",
			"var ink = 1.0;",
			"if (l < 0.8 && fract((p.x + p.y) / 10.0) < 0.1) { ink = 0.0; }",
			"if (l < 0.6 && fract((p.x - p.y) / 10.0) < 0.1) { ink = 0.0; }",
			"if (l < 0.4 && fract((p.x + p.y - 5.0) / 10.0) < 0.1) { ink = 0.0; }",
			"if (l < 0.2 && fract((p.x - p.y - 5.0) / 10.0) < 0.1) { ink = 0.0; }",
			"frag_color = vec4<f32>(vec3<f32>(ink), c.a);",
		}
	case EffectToon:
		return []string{
			"let c = " + sample + ";",
			"let bands = 4.0;",
			"frag_color = vec4<f32>(floor(c.rgb * bands + vec3<f32>(0.5)) / bands, c.a);",
		}
	default:
		return []string{"frag_color = " + sample + ";"}
	}
}
