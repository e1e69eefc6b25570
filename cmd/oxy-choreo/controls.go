package main

import (
	"github.com/Carmen-Shannon/oxy-choreo/common"
	"github.com/Carmen-Shannon/oxy-choreo/engine"
	"github.com/Carmen-Shannon/oxy-choreo/engine/config"
	"github.com/Carmen-Shannon/oxy-choreo/engine/postprocess"
	"github.com/Carmen-Shannon/oxy-choreo/engine/scene"
	"github.com/Carmen-Shannon/oxy-choreo/engine/window"
)

// controls maps key presses and settings reloads onto the running engine. Everything runs on
// the render thread, between frames.
type controls struct {
	eng    engine.Engine
	scenes []scene.Scene
	scene  int
	// effect indexes postprocess.Effects(); -1 means no effect.
	effect int
}

func newControls(eng engine.Engine, scenes []scene.Scene) *controls {
	return &controls{eng: eng, scenes: scenes, effect: -1}
}

func (c *controls) handleKey(key window.Key) {
	ch := c.eng.Choreographer()
	pending := ch.PendingFlags()
	logger := common.Logger()

	switch key {
	case window.KeyH:
		c.report("hdr", !pending.HDR, ch.SetHDREnabled(!pending.HDR))
	case window.KeyB:
		c.report("bloom", !pending.Bloom, ch.SetBloomEnabled(!pending.Bloom))
	case window.KeyS:
		c.report("shadows", !pending.Shadows, ch.SetShadowsEnabled(!pending.Shadows))
	case window.KeyP:
		c.report("pbr", !pending.PBR, ch.SetPBREnabled(!pending.PBR))
	case window.KeyR:
		ch.SetRenderToTextureEnabled(!pending.RenderToTexture)
		c.report("render_to_texture", !pending.RenderToTexture, true)
	case window.KeyE:
		c.nextEffect()
	case window.KeyT:
		if len(c.scenes) == 0 {
			return
		}
		c.scene = (c.scene + 1) % len(c.scenes)
		c.eng.SetScene(c.scenes[c.scene])
		logger.Info("scene changed", "scene", c.scenes[c.scene].Name())
	case window.KeySpace:
		c.eng.SetStereo(!c.eng.Stereo())
		logger.Info("stereo toggled", "stereo", c.eng.Stereo())
	}
}

func (c *controls) report(feature string, enabled, accepted bool) {
	if !accepted {
		return
	}
	common.Logger().Info("feature toggled", "feature", feature, "enabled", enabled)
}

// nextEffect steps through the effect list, wrapping back to no effect after the last one.
func (c *controls) nextEffect() {
	factory := c.eng.Choreographer().PostProcessFactory()
	factory.DisableAll()

	effects := postprocess.Effects()
	c.effect++
	if c.effect >= len(effects) {
		c.effect = -1
		common.Logger().Info("post-process effect", "effect", "none")
		return
	}
	e := effects[c.effect]
	if err := factory.Enable(e); err != nil {
		common.Logger().Error("post-process effect failed", "effect", e, "error", err)
		c.effect = -1
		return
	}
	common.Logger().Info("post-process effect", "effect", e)
}

// drain applies the newest reloaded settings, if any, without blocking the frame.
func (c *controls) drain(updates <-chan config.Config, errs <-chan error) {
	select {
	case cfg := <-updates:
		if _, err := cfg.Renderer.Apply(c.eng.Choreographer()); err != nil {
			common.Logger().Error("applying reloaded settings failed", "error", err)
		}
	case err := <-errs:
		common.Logger().Warn("settings file rejected", "error", err)
	default:
	}
}
