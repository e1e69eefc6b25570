// Package postprocess holds the user-selectable image effects run on the HDR image between scene
// rendering and tone mapping.
package postprocess

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-choreo/common"
	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
)

// ErrNilTarget is returned when Apply is given a nil input or output.
var ErrNilTarget = errors.New("postprocess: nil render target")

// Result reports what a Stage did with its input.
type Result struct {
	// Applied is true when at least one effect ran.
	Applied bool
	// Output is the target holding the finished image: the stage output when Applied, the
	// untouched input otherwise.
	Output device.RenderTarget
}

// Stage is a post-processing step between scene rendering and tone mapping.
type Stage interface {
	// Apply runs the stage. input holds the scene image; output is free to be overwritten.
	//
	// Parameters:
	//   - input: the target holding the image to process
	//   - output: the scratch target to write into
	//
	// Returns:
	//   - Result: whether anything ran and where the result lives
	//   - error: an error if an effect could not be run
	Apply(input, output device.RenderTarget) (Result, error)
}

// StageFunc adapts a function to the Stage interface.
type StageFunc func(input, output device.RenderTarget) (Result, error)

func (f StageFunc) Apply(input, output device.RenderTarget) (Result, error) {
	return f(input, output)
}

// Factory is the default Stage: an ordered list of enabled built-in effects. Programs are compiled
// the first time their effect is enabled and released when it is disabled.
type Factory interface {
	Stage

	// Enable appends an effect to the chain. Enabling an effect twice has no effect.
	//
	// Parameters:
	//   - e: the effect to enable
	//
	// Returns:
	//   - error: an error if the effect program could not be created
	Enable(e Effect) error

	// Disable removes an effect from the chain and releases its program.
	//
	// Parameters:
	//   - e: the effect to disable
	//
	// Returns:
	//   - bool: true if the effect was enabled
	Disable(e Effect) bool

	// DisableAll removes every effect.
	DisableAll()

	// Enabled returns the enabled effects in application order.
	//
	// Returns:
	//   - []Effect: a copy of the effect chain
	Enabled() []Effect

	// Release frees every program held by the factory.
	Release()
}

type factory struct {
	dev         device.Device
	order       []Effect
	programs    map[Effect]device.ImagePostProcess
	passthrough device.ImagePostProcess
}

var _ Factory = &factory{}

// NewFactory creates an empty effect factory.
//
// Parameters:
//   - dev: the device effect programs are compiled on
//
// Returns:
//   - Factory: the new factory
func NewFactory(dev device.Device) Factory {
	return &factory{
		dev:      dev,
		programs: make(map[Effect]device.ImagePostProcess),
	}
}

func (f *factory) Enable(e Effect) error {
	if _, ok := f.programs[e]; ok {
		return nil
	}
	p, err := f.dev.NewImagePostProcess([]string{sourceSampler}, e.code())
	if err != nil {
		return fmt.Errorf("postprocess: %s program: %w", e, err)
	}
	f.programs[e] = p
	f.order = append(f.order, e)
	common.Logger().Debug("post-process effect enabled", "effect", e.String(), "chain", len(f.order))
	return nil
}

func (f *factory) Disable(e Effect) bool {
	p, ok := f.programs[e]
	if !ok {
		return false
	}
	p.Release()
	delete(f.programs, e)
	f.order = slices.DeleteFunc(f.order, func(o Effect) bool { return o == e })
	return true
}

func (f *factory) DisableAll() {
	for _, p := range f.programs {
		p.Release()
	}
	clear(f.programs)
	f.order = nil
}

func (f *factory) Enabled() []Effect {
	return slices.Clone(f.order)
}

func (f *factory) Apply(input, output device.RenderTarget) (Result, error) {
	if input == nil || output == nil {
		return Result{}, ErrNilTarget
	}
	if len(f.order) == 0 {
		return Result{Output: input}, nil
	}

	src, dst := input, output
	for _, e := range f.order {
		if err := f.programs[e].Blit([]device.Texture{src.Texture(0)}, dst); err != nil {
			return Result{}, fmt.Errorf("postprocess: %s: %w", e, err)
		}
		src, dst = dst, src
	}

	// An even chain finishes in input; copy it across so callers can always read output.
	if src != output {
		if f.passthrough == nil {
			p, err := f.dev.NewImagePostProcess([]string{sourceSampler}, EffectEmpty.code())
			if err != nil {
				return Result{}, fmt.Errorf("postprocess: copy program: %w", err)
			}
			f.passthrough = p
		}
		if err := f.passthrough.Blit([]device.Texture{src.Texture(0)}, output); err != nil {
			return Result{}, fmt.Errorf("postprocess: copy: %w", err)
		}
	}
	return Result{Applied: true, Output: output}, nil
}

func (f *factory) Release() {
	f.DisableAll()
	if f.passthrough != nil {
		f.passthrough.Release()
		f.passthrough = nil
	}
}
