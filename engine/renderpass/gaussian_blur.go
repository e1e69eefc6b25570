package renderpass

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
	"github.com/chewxy/math32"
)

const (
	// DefaultBlurIterations is the number of horizontal+vertical pass pairs.
	DefaultBlurIterations = 5
	// DefaultBlurRadius is the number of taps on each side of the center texel.
	DefaultBlurRadius = 4
	// DefaultBlurSigma is the standard deviation of the kernel, in texels.
	DefaultBlurSigma float32 = 2.0
)

// GaussianBlurBuilderOption is a functional option applied to a GaussianBlurPass during construction.
type GaussianBlurBuilderOption func(*GaussianBlurPass)

// WithBlurIterations sets how many horizontal+vertical pass pairs are run. Values < 1 are ignored.
//
// Parameters:
//   - n: the number of pass pairs
//
// Returns:
//   - GaussianBlurBuilderOption: a function that applies the option
func WithBlurIterations(n int) GaussianBlurBuilderOption {
	return func(p *GaussianBlurPass) {
		if n >= 1 {
			p.iterations = n
		}
	}
}

// WithBlurKernel sets the kernel radius in taps and its standard deviation in texels.
//
// Parameters:
//   - radius: taps on each side of the center (>= 1)
//   - sigma: the standard deviation (> 0)
//
// Returns:
//   - GaussianBlurBuilderOption: a function that applies the option
func WithBlurKernel(radius int, sigma float32) GaussianBlurBuilderOption {
	return func(p *GaussianBlurPass) {
		if radius >= 1 && sigma > 0 {
			p.radius = radius
			p.sigma = sigma
		}
	}
}

// GaussianBlurPass blurs the bloom mask with a separable gaussian, ping-ponging between the scratch
// target and the output. The finished result always lands in the output target.
type GaussianBlurPass struct {
	iterations int
	radius     int
	sigma      float32

	horizontal device.ImagePostProcess
	vertical   device.ImagePostProcess
}

var _ RenderPass = &GaussianBlurPass{}

// NewGaussianBlurPass creates the blur pass and compiles its two directional programs.
//
// Parameters:
//   - dev: the device to create the programs on
//   - options: variadic list of GaussianBlurBuilderOption functions
//
// Returns:
//   - *GaussianBlurPass: the new pass
//   - error: an error if either program could not be created
func NewGaussianBlurPass(dev device.Device, options ...GaussianBlurBuilderOption) (*GaussianBlurPass, error) {
	p := &GaussianBlurPass{
		iterations: DefaultBlurIterations,
		radius:     DefaultBlurRadius,
		sigma:      DefaultBlurSigma,
	}
	for _, opt := range options {
		opt(p)
	}

	weights := GaussianWeights(p.radius, p.sigma)
	var err error
	p.horizontal, err = dev.NewImagePostProcess([]string{"image"}, blurCode(weights, true))
	if err != nil {
		return nil, fmt.Errorf("renderpass: horizontal blur program: %w", err)
	}
	p.vertical, err = dev.NewImagePostProcess([]string{"image"}, blurCode(weights, false))
	if err != nil {
		p.horizontal.Release()
		return nil, fmt.Errorf("renderpass: vertical blur program: %w", err)
	}
	return p, nil
}

// Iterations returns the number of horizontal+vertical pass pairs.
func (p *GaussianBlurPass) Iterations() int { return p.iterations }

func (p *GaussianBlurPass) Render(scene, outgoing Scene, io InputOutput, ctx *Context) error {
	input := io.Targets[GaussianInput]
	pingPong := io.Targets[GaussianPingPong]
	if input == nil {
		return fmt.Errorf("%w: %s", ErrMissingInput, GaussianInput)
	}
	if pingPong == nil {
		return fmt.Errorf("%w: %s", ErrMissingInput, GaussianPingPong)
	}
	if io.Output == nil {
		return ErrMissingOutput
	}

	// The scene pass writes the bright-pass mask into the second attachment.
	src := input.Texture(0)
	if input.AttachmentCount() > 1 {
		src = input.Texture(1)
	}

	for i := 0; i < p.iterations; i++ {
		if err := p.horizontal.Blit([]device.Texture{src}, pingPong); err != nil {
			return fmt.Errorf("renderpass: horizontal blur %d: %w", i, err)
		}
		if err := p.vertical.Blit([]device.Texture{pingPong.Texture(0)}, io.Output); err != nil {
			return fmt.Errorf("renderpass: vertical blur %d: %w", i, err)
		}
		src = io.Output.Texture(0)
	}
	return nil
}

// Release returns both programs to the device.
func (p *GaussianBlurPass) Release() {
	if p.horizontal != nil {
		p.horizontal.Release()
	}
	if p.vertical != nil {
		p.vertical.Release()
	}
}

// GaussianWeights returns the normalized one-sided kernel weights: index 0 is the center tap and
// index i is applied to both the +i and -i taps.
//
// Parameters:
//   - radius: taps on each side of the center
//   - sigma: the standard deviation in texels
//
// Returns:
//   - []float32: radius+1 weights whose two-sided sum is 1
func GaussianWeights(radius int, sigma float32) []float32 {
	weights := make([]float32, radius+1)
	var sum float32
	for i := range weights {
		x := float32(i)
		weights[i] = math32.Exp(-(x * x) / (2 * sigma * sigma))
		if i == 0 {
			sum += weights[i]
		} else {
			sum += 2 * weights[i]
		}
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

func blurCode(weights []float32, horizontal bool) []string {
	axis := "vec2<f32>(0.0, texel.y)"
	if horizontal {
		axis = "vec2<f32>(texel.x, 0.0)"
	}
	code := []string{
		"let texel = 1.0 / vec2<f32>(textureDimensions(image, 0));",
		fmt.Sprintf("var sum = textureSample(image, image_sampler, v_texcoord) * %f;", weights[0]),
	}
	for i := 1; i < len(weights); i++ {
		offset := fmt.Sprintf("%s * %d.0", axis, i)
		code = append(code,
			fmt.Sprintf("sum += textureSample(image, image_sampler, v_texcoord + %s) * %f;", offset, weights[i]),
			fmt.Sprintf("sum += textureSample(image, image_sampler, v_texcoord - %s) * %f;", offset, weights[i]),
		)
	}
	return append(code, "frag_color = sum;")
}
