// Package engine runs the frame loop: it polls the window, renders every eye of a frame through
// the choreographer and presents the result. Everything runs on the calling goroutine, which
// owns both the window and the GPU device.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-choreo/common"
	"github.com/Carmen-Shannon/oxy-choreo/engine/choreographer"
	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
	"github.com/Carmen-Shannon/oxy-choreo/engine/renderpass"
	"github.com/Carmen-Shannon/oxy-choreo/engine/window"
)

// Engine is the main entry point of the demo. It orchestrates the frame loop and window events.
type Engine interface {
	// Window returns the window the engine presents into.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Device returns the GPU device frames are rendered with.
	//
	// Returns:
	//   - device.GPUDevice: the device
	Device() device.GPUDevice

	// Choreographer returns the choreographer that sequences each eye.
	//
	// Returns:
	//   - choreographer.Choreographer: the choreographer
	Choreographer() choreographer.Choreographer

	// SetScene replaces the rendered scene. The previous scene is passed as the outgoing scene
	// for the next frame only.
	//
	// Parameters:
	//   - s: the new scene
	SetScene(s renderpass.Scene)

	// Scene returns the scene currently rendered.
	//
	// Returns:
	//   - renderpass.Scene: the scene
	Scene() renderpass.Scene

	// SetStereo switches between one monocular view and a side-by-side stereo pair.
	//
	// Parameters:
	//   - stereo: true to render a left and a right eye per frame
	SetStereo(stereo bool)

	// Stereo reports whether frames are rendered as a stereo pair.
	//
	// Returns:
	//   - bool: true in stereo mode
	Stereo() bool

	// SetUpdateCallback registers the function called before each frame on the render thread.
	// Use it to apply input and configuration changes.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetUpdateCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional frame rate cap in frames per second.
	//
	// Parameters:
	//   - fps: maximum frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run executes the frame loop until the window closes or Quit is called.
	Run()

	// Quit stops the frame loop after the current frame. Safe to call multiple times and from
	// any goroutine.
	Quit()
}

// engine implements the Engine interface.
type engine struct {
	window        window.Window
	device        device.GPUDevice
	choreographer choreographer.Choreographer

	scene    renderpass.Scene
	outgoing renderpass.Scene
	stereo   bool

	width, height int
	viewport      common.Viewport

	updateCallback   func(deltaTime float32)
	renderFrameLimit time.Duration

	quitChannel chan struct{}
	quitOnce    sync.Once
}

var _ Engine = &engine{}

// NewEngine creates an engine over an open window, its device and a choreographer built on
// that device.
//
// Parameters:
//   - w: the window to present into
//   - dev: the device created for the window surface
//   - c: the choreographer rendering with dev
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(w window.Window, dev device.GPUDevice, c choreographer.Choreographer, options ...EngineBuilderOption) Engine {
	e := &engine{
		window:        w,
		device:        dev,
		choreographer: c,
		quitChannel:   make(chan struct{}),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Device() device.GPUDevice {
	return e.device
}

func (e *engine) Choreographer() choreographer.Choreographer {
	return e.choreographer
}

func (e *engine) SetScene(s renderpass.Scene) {
	e.outgoing = e.scene
	e.scene = s
}

func (e *engine) Scene() renderpass.Scene {
	return e.scene
}

func (e *engine) SetStereo(stereo bool) {
	e.stereo = stereo
}

func (e *engine) Stereo() bool {
	return e.stereo
}

func (e *engine) SetUpdateCallback(callback func(deltaTime float32)) {
	e.updateCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) Run() {
	e.window.SetResizeCallback(e.resize)
	e.resize(e.window.Width(), e.window.Height())

	lastRender := time.Now()
	for e.window.PollEvents() {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		if e.updateCallback != nil {
			e.updateCallback(dt)
		}
		if err := e.renderFrame(); err != nil {
			common.Logger().Error("frame failed", "error", err)
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// resize reconfigures the surface. A zero size (minimized window) is ignored until the window
// is restored.
func (e *engine) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	if err := e.device.ConfigureSurface(width, height); err != nil {
		common.Logger().Error("surface reconfiguration failed", "width", width, "height", height, "error", err)
		return
	}
	e.width, e.height = width, height
}

// eyeViewport returns the display region of an eye: the full surface for a monocular view, the
// left or right half in stereo. Both halves share one size so the offscreen targets are not
// reallocated between eyes.
func (e *engine) eyeViewport(eye common.EyeType) common.Viewport {
	switch eye {
	case common.EyeLeft:
		return common.Viewport{Width: e.width / 2, Height: e.height}
	case common.EyeRight:
		return common.Viewport{X: e.width / 2, Width: e.width / 2, Height: e.height}
	default:
		return common.Viewport{Width: e.width, Height: e.height}
	}
}

func (e *engine) renderFrame() error {
	if e.width == 0 || e.height == 0 {
		return nil
	}
	if err := e.device.BeginFrame(); err != nil {
		return err
	}

	eyes := []common.EyeType{common.EyeMonocular}
	if e.stereo {
		eyes = []common.EyeType{common.EyeLeft, common.EyeRight}
	}
	metadata, _ := e.scene.(renderpass.RenderMetadata)

	var errs []error
	for _, eye := range eyes {
		if v := e.eyeViewport(eye); v != e.viewport {
			if err := e.choreographer.SetViewport(v); err != nil {
				errs = append(errs, err)
			} else {
				e.viewport = v
			}
		}
		if err := e.choreographer.Render(eye, e.scene, e.outgoing, metadata); err != nil {
			errs = append(errs, fmt.Errorf("engine: render %s eye: %w", eye, err))
		}
	}
	e.outgoing = nil

	if err := e.device.EndFrame(); err != nil {
		errs = append(errs, err)
	}
	e.device.Present()
	return errors.Join(errs...)
}
