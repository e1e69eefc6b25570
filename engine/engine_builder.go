package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-choreo/engine/renderpass"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithScene sets the scene rendered from the first frame.
//
// Parameters:
//   - s: the initial scene
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(s renderpass.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scene = s
	}
}

// WithStereo renders every frame as a side-by-side stereo pair.
//
// Parameters:
//   - stereo: true for stereo rendering
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithStereo(stereo bool) EngineBuilderOption {
	return func(e *engine) {
		e.stereo = stereo
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps > 0 {
			e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
		}
	}
}

// WithUpdateCallback registers the function called before each frame.
//
// Parameters:
//   - callback: function receiving the delta time in seconds
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithUpdateCallback(callback func(deltaTime float32)) EngineBuilderOption {
	return func(e *engine) {
		e.updateCallback = callback
	}
}
