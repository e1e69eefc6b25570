// Package renderpass defines the units of GPU work the choreographer sequences each frame:
// render passes that read named inputs and write one output target, and preprocesses that run
// once per frame ahead of them.
package renderpass

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-choreo/common"
	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
)

// Input keys used by the built-in passes.
const (
	// GaussianInput is the target whose bloom attachment (or only attachment) is blurred.
	GaussianInput = "gaussian_input"
	// GaussianPingPong is the scratch target the blur alternates with.
	GaussianPingPong = "gaussian_ping_pong"
	// ToneMappingHDRInput is the HDR texture compressed by the tone-mapping pass.
	ToneMappingHDRInput = "tone_mapping_hdr_input"
)

var (
	// ErrMissingOutput is returned by a pass that was given no output target.
	ErrMissingOutput = errors.New("renderpass: missing output target")
	// ErrMissingInput is returned by a pass whose named input is absent.
	ErrMissingInput = errors.New("renderpass: missing input")
)

// Scene is an opaque reference to the scene being rendered. Passes discover what they can do with
// it through the optional capability interfaces Drawer, ShadowCaster and LightingEnvironment.
type Scene any

// Drawer is implemented by scenes that can draw themselves into a render target.
type Drawer interface {
	// Draw renders the scene into target.
	//
	// Parameters:
	//   - ctx: the per-frame render context
	//   - target: the target to draw into
	//
	// Returns:
	//   - error: an error if drawing failed
	Draw(ctx *Context, target device.RenderTarget) error
}

// RenderMetadata carries per-frame facts about the scene that only the scene layer can decide.
type RenderMetadata interface {
	// RequiresBloomPass reports whether anything visible this frame emits bloom.
	//
	// Returns:
	//   - bool: true if the bloom branch should run this frame
	RequiresBloomPass() bool
}

// Context is the state shared by every pass of a frame. Preprocess outputs stored here on the
// first eye of a frame are reused for the second eye.
type Context struct {
	// Eye is the eye being rendered by the current call.
	Eye common.EyeType
	// Frame is the frame counter, incremented at the start of each frame.
	Frame uint64
	// PBREnabled is true when physically-based lighting is active (HDR and PBR enabled).
	PBREnabled bool
	// ShadowMaps holds the shadow depth textures produced this frame, one per shadow-casting light.
	ShadowMaps []device.Texture
	// Irradiance is the image-based lighting irradiance map, nil if IBL did not run.
	Irradiance device.Texture
	// Device is the graphics device the frame is rendered with.
	Device device.Device
}

// InputOutput names the inputs of a pass and the target it writes.
type InputOutput struct {
	Targets  map[string]device.RenderTarget
	Textures map[string]device.Texture
	Output   device.RenderTarget
}

// NewInputOutput creates an InputOutput writing into output with empty input maps.
//
// Parameters:
//   - output: the target the pass writes into
//
// Returns:
//   - InputOutput: the input/output description
func NewInputOutput(output device.RenderTarget) InputOutput {
	return InputOutput{
		Targets:  make(map[string]device.RenderTarget),
		Textures: make(map[string]device.Texture),
		Output:   output,
	}
}

// RenderPass is a unit of GPU work that reads named inputs and writes one output target.
type RenderPass interface {
	// Render executes the pass.
	//
	// Parameters:
	//   - scene: the scene being rendered
	//   - outgoing: the scene being transitioned away from, or nil
	//   - io: the named inputs and the output target
	//   - ctx: the per-frame render context
	//
	// Returns:
	//   - error: an error if the pass could not be executed
	Render(scene, outgoing Scene, io InputOutput, ctx *Context) error
}

// RenderPassFunc adapts a function to the RenderPass interface.
type RenderPassFunc func(scene, outgoing Scene, io InputOutput, ctx *Context) error

func (f RenderPassFunc) Render(scene, outgoing Scene, io InputOutput, ctx *Context) error {
	return f(scene, outgoing, io, ctx)
}

// Preprocess is work that runs once per frame before any render pass, whose results are shared by
// both eyes of a stereo frame.
type Preprocess interface {
	// Name identifies the preprocess in logs.
	Name() string

	// Execute runs the preprocess against the scene and stores its results on ctx.
	//
	// Parameters:
	//   - scene: the incoming scene
	//   - ctx: the per-frame render context
	//
	// Returns:
	//   - error: an error if the preprocess failed
	Execute(scene Scene, ctx *Context) error

	// Release frees any GPU resources the preprocess holds.
	Release()
}

// scenePass is the default base pass: it draws the outgoing scene (during a transition) and then
// the incoming scene into the output target.
type scenePass struct{}

// NewScenePass creates the default base render pass. Scenes that do not implement Drawer are
// skipped, leaving the output at its clear color.
//
// Returns:
//   - RenderPass: the base pass
func NewScenePass() RenderPass {
	return scenePass{}
}

func (scenePass) Render(scene, outgoing Scene, io InputOutput, ctx *Context) error {
	if io.Output == nil {
		return ErrMissingOutput
	}
	for _, s := range []Scene{outgoing, scene} {
		d, ok := s.(Drawer)
		if !ok || d == nil {
			continue
		}
		if err := d.Draw(ctx, io.Output); err != nil {
			return fmt.Errorf("renderpass: scene draw failed: %w", err)
		}
	}
	return nil
}
