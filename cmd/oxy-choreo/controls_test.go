package main

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-choreo/engine"
	"github.com/Carmen-Shannon/oxy-choreo/engine/choreographer"
	"github.com/Carmen-Shannon/oxy-choreo/engine/config"
	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
	"github.com/Carmen-Shannon/oxy-choreo/engine/device/devicetest"
	"github.com/Carmen-Shannon/oxy-choreo/engine/postprocess"
	"github.com/Carmen-Shannon/oxy-choreo/engine/renderpass"
	"github.com/Carmen-Shannon/oxy-choreo/engine/scene"
	"github.com/Carmen-Shannon/oxy-choreo/engine/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEngine records what the controls change without running a frame loop.
type stubEngine struct {
	c      choreographer.Choreographer
	scene  renderpass.Scene
	stereo bool
}

func (e *stubEngine) Window() window.Window                      { return nil }
func (e *stubEngine) Device() device.GPUDevice                   { return nil }
func (e *stubEngine) Choreographer() choreographer.Choreographer { return e.c }
func (e *stubEngine) SetScene(s renderpass.Scene)                { e.scene = s }
func (e *stubEngine) Scene() renderpass.Scene                    { return e.scene }
func (e *stubEngine) SetStereo(stereo bool)                      { e.stereo = stereo }
func (e *stubEngine) Stereo() bool                               { return e.stereo }
func (e *stubEngine) SetUpdateCallback(func(deltaTime float32))  {}
func (e *stubEngine) SetRenderFrameLimit(float64)                {}
func (e *stubEngine) Run()                                       {}
func (e *stubEngine) Quit()                                      {}

var _ engine.Engine = &stubEngine{}

func newControlsHarness(t *testing.T) (*controls, *stubEngine, []scene.Scene) {
	t.Helper()
	d := devicetest.New()
	c, err := choreographer.New(d)
	require.NoError(t, err)
	t.Cleanup(c.Release)

	scenes := make([]scene.Scene, 0, len(scene.Presets))
	for _, p := range scene.Presets {
		s, err := scene.NewScene(d, scene.WithPreset(p))
		require.NoError(t, err)
		t.Cleanup(s.Release)
		scenes = append(scenes, s)
	}

	e := &stubEngine{c: c, scene: scenes[0]}
	return newControls(e, scenes), e, scenes
}

func TestRenderToTextureKeyTogglesPendingFlag(t *testing.T) {
	ctl, e, _ := newControlsHarness(t)
	before := e.c.PendingFlags().RenderToTexture

	ctl.handleKey(window.KeyR)
	assert.Equal(t, !before, e.c.PendingFlags().RenderToTexture)

	ctl.handleKey(window.KeyR)
	assert.Equal(t, before, e.c.PendingFlags().RenderToTexture)
}

func TestSceneKeyCyclesPresets(t *testing.T) {
	ctl, e, scenes := newControlsHarness(t)

	for i := 1; i <= len(scenes); i++ {
		ctl.handleKey(window.KeyT)
		assert.Same(t, scenes[i%len(scenes)], e.scene)
	}
}

func TestSpaceTogglesStereo(t *testing.T) {
	ctl, e, _ := newControlsHarness(t)

	ctl.handleKey(window.KeySpace)
	assert.True(t, e.stereo)
	ctl.handleKey(window.KeySpace)
	assert.False(t, e.stereo)
}

func TestEffectKeyCyclesThroughEveryEffect(t *testing.T) {
	ctl, e, _ := newControlsHarness(t)
	factory := e.c.PostProcessFactory()

	for _, want := range postprocess.Effects() {
		ctl.handleKey(window.KeyE)
		assert.Equal(t, []postprocess.Effect{want}, factory.Enabled())
	}
	ctl.handleKey(window.KeyE)
	assert.Empty(t, factory.Enabled())
}

func TestDrainAppliesReloadedSettings(t *testing.T) {
	ctl, e, _ := newControlsHarness(t)
	updates := make(chan config.Config, 1)
	errs := make(chan error, 1)

	cfg := config.Default()
	cfg.Renderer.RenderToTexture = !e.c.PendingFlags().RenderToTexture
	cfg.Renderer.PostProcessEffects = []string{postprocess.Effects()[0].String()}
	updates <- cfg

	ctl.drain(updates, errs)
	assert.Equal(t, cfg.Renderer.RenderToTexture, e.c.PendingFlags().RenderToTexture)
	assert.Equal(t, []postprocess.Effect{postprocess.Effects()[0]}, e.c.PostProcessFactory().Enabled())
}

func TestDrainDoesNotBlockWhenIdle(t *testing.T) {
	ctl, _, _ := newControlsHarness(t)
	errs := make(chan error, 1)
	errs <- errors.New("bad file")

	assert.NotPanics(t, func() {
		ctl.drain(nil, errs)
		ctl.drain(nil, errs)
	})
	assert.Empty(t, errs)
}
