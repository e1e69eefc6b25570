package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
	"github.com/Carmen-Shannon/oxy-choreo/engine/device/devicetest"
	"github.com/Carmen-Shannon/oxy-choreo/engine/renderpass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSceneRendersEnvironment(t *testing.T) {
	d := devicetest.New()
	s, err := NewScene(d, WithPreset(Presets[1]))
	require.NoError(t, err)
	defer s.Release()

	assert.Equal(t, "noon", s.Name())
	require.Len(t, d.Targets, 1)
	env := d.Targets[0]
	assert.Equal(t, device.RenderTargetTypeColorTextureHDR16, env.Type())
	assert.Equal(t, EnvironmentWidth, env.Viewport().Width)
	assert.Equal(t, EnvironmentHeight, env.Viewport().Height)
	assert.Same(t, env.Texture(0), s.LightingEnvironment())

	require.Len(t, d.Recorder.Events, 1)
	assert.Equal(t, devicetest.EventBlit, d.Recorder.Events[0].Kind)
	assert.Same(t, env, d.Recorder.Events[0].Dst)
}

func TestDrawSelectsLitProgram(t *testing.T) {
	d := devicetest.New()
	s, err := NewScene(d)
	require.NoError(t, err)
	defer s.Release()

	out, err := d.NewRenderTarget(device.RenderTargetTypeColorTextureHDR16, 2, 1, false)
	require.NoError(t, err)
	d.Recorder.Events = nil

	ctx := &renderpass.Context{Device: d}
	require.NoError(t, s.Draw(ctx, out))
	require.Len(t, d.Recorder.Events, 1)
	assert.Empty(t, d.Recorder.Events[0].Inputs)

	irradiance := d.Targets[0].Texture(0)
	ctx.PBREnabled = true
	ctx.Irradiance = irradiance
	require.NoError(t, s.Draw(ctx, out))
	require.Len(t, d.Recorder.Events, 2)
	assert.Equal(t, "irradiance", d.Recorder.Events[1].Name)
	assert.Equal(t, []device.Texture{irradiance}, d.Recorder.Events[1].Inputs)
}

func TestRequiresBloomFollowsSunIntensity(t *testing.T) {
	d := devicetest.New()
	for _, p := range Presets {
		s, err := NewScene(d, WithPreset(p))
		require.NoError(t, err)
		assert.Equal(t, p.SunIntensity > 1, s.RequiresBloomPass(), p.Name)
		s.Release()
	}

	s, err := NewScene(d, WithSun(0.5, 0.5, 0.5, 0.1))
	require.NoError(t, err)
	defer s.Release()
	assert.False(t, s.RequiresBloomPass())
}

func TestNewSceneProgramFailure(t *testing.T) {
	d := devicetest.New()
	d.FailPostProcess = devicetest.ErrInjected
	_, err := NewScene(d)
	assert.ErrorIs(t, err, devicetest.ErrInjected)
}

func TestReleaseFreesResources(t *testing.T) {
	d := devicetest.New()
	s, err := NewScene(d)
	require.NoError(t, err)
	s.Release()

	for _, p := range d.PostProcesses {
		assert.True(t, p.Released)
	}
	assert.True(t, d.Targets[0].Released)
	assert.Nil(t, s.LightingEnvironment())
}
