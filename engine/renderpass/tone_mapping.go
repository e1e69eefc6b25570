package renderpass

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
)

// ToneMappingMethod is the curve used to compress HDR color into display range.
type ToneMappingMethod int

const (
	// ToneMappingDisabled clamps without compressing.
	ToneMappingDisabled ToneMappingMethod = iota
	// ToneMappingExponential applies 1 - exp(-x).
	ToneMappingExponential
	// ToneMappingReinhard applies x / (x + 1).
	ToneMappingReinhard
	// ToneMappingHable applies the Uncharted 2 filmic curve per channel.
	ToneMappingHable
	// ToneMappingHableLuminanceOnly applies the filmic curve to luminance and rescales the color,
	// which preserves hue. This is the default.
	ToneMappingHableLuminanceOnly
)

var toneMappingNames = map[ToneMappingMethod]string{
	ToneMappingDisabled:           "disabled",
	ToneMappingExponential:        "exponential",
	ToneMappingReinhard:           "reinhard",
	ToneMappingHable:              "hable",
	ToneMappingHableLuminanceOnly: "hable_luminance_only",
}

// String returns the snake_case name of the method.
func (m ToneMappingMethod) String() string {
	if name, ok := toneMappingNames[m]; ok {
		return name
	}
	return fmt.Sprintf("tone_mapping(%d)", int(m))
}

// ParseToneMappingMethod parses a method name as produced by String.
//
// Parameters:
//   - name: the method name, case-insensitive
//
// Returns:
//   - ToneMappingMethod: the parsed method
//   - error: an error if the name is unknown
func ParseToneMappingMethod(name string) (ToneMappingMethod, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for m, n := range toneMappingNames {
		if n == name {
			return m, nil
		}
	}
	return ToneMappingDisabled, fmt.Errorf("renderpass: unknown tone mapping method %q", name)
}

const (
	// DefaultExposure scales HDR color before the curve is applied.
	DefaultExposure float32 = 1.5
	// DefaultWhitePoint is the linear value mapped to pure white by the Hable curves.
	DefaultWhitePoint float32 = 11.2
	// displayGamma is applied in the shader when the surface cannot apply gamma itself.
	displayGamma float32 = 2.2
)

// ToneMappingBuilderOption is a functional option applied to a ToneMappingPass during construction.
type ToneMappingBuilderOption func(*ToneMappingPass)

// WithExposure sets the exposure multiplier. Values <= 0 are ignored.
//
// Parameters:
//   - exposure: the multiplier applied to HDR color
//
// Returns:
//   - ToneMappingBuilderOption: a function that applies the option
func WithExposure(exposure float32) ToneMappingBuilderOption {
	return func(p *ToneMappingPass) {
		if exposure > 0 {
			p.exposure = exposure
		}
	}
}

// WithWhitePoint sets the linear white point of the Hable curves. Values <= 0 are ignored.
//
// Parameters:
//   - white: the linear value mapped to white
//
// Returns:
//   - ToneMappingBuilderOption: a function that applies the option
func WithWhitePoint(white float32) ToneMappingBuilderOption {
	return func(p *ToneMappingPass) {
		if white > 0 {
			p.whitePoint = white
		}
	}
}

// ToneMappingPass compresses the HDR input texture into display range, applying gamma correction
// in the shader when the display surface does not.
type ToneMappingPass struct {
	method        ToneMappingMethod
	softwareGamma bool
	exposure      float32
	whitePoint    float32

	post device.ImagePostProcess
}

var _ RenderPass = &ToneMappingPass{}

// NewToneMappingPass creates the tone-mapping pass.
//
// Parameters:
//   - dev: the device to compile the program on
//   - method: the tone curve
//   - softwareGamma: true when the display needs gamma applied in the shader
//   - options: variadic list of ToneMappingBuilderOption functions
//
// Returns:
//   - *ToneMappingPass: the new pass
//   - error: an error if the program could not be created
func NewToneMappingPass(dev device.Device, method ToneMappingMethod, softwareGamma bool, options ...ToneMappingBuilderOption) (*ToneMappingPass, error) {
	p := &ToneMappingPass{
		method:        method,
		softwareGamma: softwareGamma,
		exposure:      DefaultExposure,
		whitePoint:    DefaultWhitePoint,
	}
	for _, opt := range options {
		opt(p)
	}

	post, err := dev.NewImagePostProcess([]string{"hdr_texture"}, p.code())
	if err != nil {
		return nil, fmt.Errorf("renderpass: tone mapping program: %w", err)
	}
	p.post = post
	return p, nil
}

// Method returns the tone curve.
func (p *ToneMappingPass) Method() ToneMappingMethod { return p.method }

// SoftwareGamma reports whether gamma is applied in the shader.
func (p *ToneMappingPass) SoftwareGamma() bool { return p.softwareGamma }

// Exposure returns the exposure multiplier.
func (p *ToneMappingPass) Exposure() float32 { return p.exposure }

// WhitePoint returns the linear white point.
func (p *ToneMappingPass) WhitePoint() float32 { return p.whitePoint }

func (p *ToneMappingPass) Render(scene, outgoing Scene, io InputOutput, ctx *Context) error {
	input := io.Textures[ToneMappingHDRInput]
	if input == nil {
		return fmt.Errorf("%w: %s", ErrMissingInput, ToneMappingHDRInput)
	}
	if io.Output == nil {
		return ErrMissingOutput
	}
	if err := p.post.Blit([]device.Texture{input}, io.Output); err != nil {
		return fmt.Errorf("renderpass: tone mapping: %w", err)
	}
	return nil
}

// Release returns the program to the device.
func (p *ToneMappingPass) Release() {
	if p.post != nil {
		p.post.Release()
	}
}

// hable is the Uncharted 2 filmic curve written as a WGSL expression over x.
func hable(x string) string {
	const a, b, c, d, e, f = "0.15", "0.50", "0.10", "0.20", "0.02", "0.30"
	return fmt.Sprintf("((%[1]s * (%[2]s * %[1]s + %[4]s * %[3]s) + %[5]s * %[6]s) / (%[1]s * (%[2]s * %[1]s + %[3]s) + %[5]s * %[7]s) - %[6]s / %[7]s)",
		x, a, b, c, d, e, f)
}

func (p *ToneMappingPass) code() []string {
	code := []string{
		fmt.Sprintf("let hdr = textureSample(hdr_texture, hdr_texture_sampler, v_texcoord).rgb * %f;", p.exposure),
	}
	white := fmt.Sprintf("%f", p.whitePoint)

	switch p.method {
	case ToneMappingExponential:
		code = append(code, "var mapped = vec3<f32>(1.0) - exp(-hdr);")
	case ToneMappingReinhard:
		code = append(code, "var mapped = hdr / (hdr + vec3<f32>(1.0));")
	case ToneMappingHable:
		code = append(code,
			fmt.Sprintf("var mapped = %s / %s;", hable("hdr"), hable(fmt.Sprintf("vec3<f32>(%s)", white))))
	case ToneMappingHableLuminanceOnly:
		code = append(code,
			"let luminance = dot(hdr, vec3<f32>(0.2126, 0.7152, 0.0722));",
			fmt.Sprintf("let mapped_luminance = %s / %s;", hable("luminance"), hable(white)),
			"var mapped = hdr * (mapped_luminance / max(luminance, 0.0001));")
	default:
		code = append(code, "var mapped = clamp(hdr, vec3<f32>(0.0), vec3<f32>(1.0));")
	}

	if p.softwareGamma {
		code = append(code, fmt.Sprintf("mapped = pow(mapped, vec3<f32>(1.0 / %f));", displayGamma))
	}
	return append(code, "frag_color = vec4<f32>(mapped, 1.0);")
}
