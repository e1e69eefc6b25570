package postprocess

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
	"github.com/Carmen-Shannon/oxy-choreo/engine/device/devicetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func targets(t *testing.T, d *devicetest.Device) (device.RenderTarget, device.RenderTarget) {
	t.Helper()
	in, err := d.NewRenderTarget(device.RenderTargetTypeColorTextureHDR16, 1, 1, false)
	require.NoError(t, err)
	out, err := d.NewRenderTarget(device.RenderTargetTypeColorTextureHDR16, 1, 1, false)
	require.NoError(t, err)
	return in, out
}

func TestEffectNames(t *testing.T) {
	for _, e := range Effects() {
		parsed, err := ParseEffect(e.String())
		require.NoError(t, err)
		assert.Equal(t, e, parsed)
		assert.NotEmpty(t, e.code())
	}

	_, err := ParseEffect("vignette")
	assert.Error(t, err)
}

func TestApplyWithoutEffectsPassesInputThrough(t *testing.T) {
	d := devicetest.New()
	f := NewFactory(d)
	in, out := targets(t, d)

	res, err := f.Apply(in, out)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, in, res.Output)
	assert.Empty(t, d.Recorder.Events)
}

func TestApplySingleEffectWritesOutput(t *testing.T) {
	d := devicetest.New()
	f := NewFactory(d)
	in, out := targets(t, d)
	require.NoError(t, f.Enable(EffectGrayscale))

	res, err := f.Apply(in, out)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, out, res.Output)

	require.Len(t, d.Recorder.Events, 1)
	assert.Equal(t, []device.Texture{in.Texture(0)}, d.Recorder.Events[0].Inputs)
	assert.Equal(t, out, d.Recorder.Events[0].Dst)
}

func TestApplyEvenChainEndsInOutput(t *testing.T) {
	d := devicetest.New()
	f := NewFactory(d)
	in, out := targets(t, d)
	require.NoError(t, f.Enable(EffectSepia))
	require.NoError(t, f.Enable(EffectToon))

	res, err := f.Apply(in, out)
	require.NoError(t, err)
	assert.Equal(t, out, res.Output)

	events := d.Recorder.Events
	require.Len(t, events, 3)
	assert.Equal(t, out, events[0].Dst)
	assert.Equal(t, in, events[1].Dst)
	assert.Equal(t, []device.Texture{in.Texture(0)}, events[2].Inputs)
	assert.Equal(t, out, events[2].Dst)
}

func TestEnableDisable(t *testing.T) {
	d := devicetest.New()
	f := NewFactory(d)

	require.NoError(t, f.Enable(EffectSepia))
	require.NoError(t, f.Enable(EffectThermalVision))
	require.NoError(t, f.Enable(EffectSepia))
	assert.Equal(t, []Effect{EffectSepia, EffectThermalVision}, f.Enabled())
	assert.Len(t, d.PostProcesses, 2)

	assert.True(t, f.Disable(EffectSepia))
	assert.False(t, f.Disable(EffectSepia))
	assert.Equal(t, []Effect{EffectThermalVision}, f.Enabled())
	assert.Len(t, d.LivePostProcesses(), 1)

	f.DisableAll()
	assert.Empty(t, f.Enabled())
	assert.Empty(t, d.LivePostProcesses())
}

func TestEnableFailure(t *testing.T) {
	d := devicetest.New()
	d.FailPostProcess = devicetest.ErrInjected
	f := NewFactory(d)

	err := f.Enable(EffectToon)
	assert.ErrorIs(t, err, devicetest.ErrInjected)
	assert.Empty(t, f.Enabled())
}

func TestApplyBlitFailure(t *testing.T) {
	d := devicetest.New()
	f := NewFactory(d)
	in, out := targets(t, d)
	require.NoError(t, f.Enable(EffectToon))
	d.FailBlit = devicetest.ErrInjected

	_, err := f.Apply(in, out)
	assert.ErrorIs(t, err, devicetest.ErrInjected)

	_, err = f.Apply(nil, out)
	assert.ErrorIs(t, err, ErrNilTarget)
}

func TestReleaseFreesCopyProgram(t *testing.T) {
	d := devicetest.New()
	f := NewFactory(d)
	in, out := targets(t, d)
	require.NoError(t, f.Enable(EffectSepia))
	require.NoError(t, f.Enable(EffectToon))
	_, err := f.Apply(in, out)
	require.NoError(t, err)
	assert.Len(t, d.LivePostProcesses(), 3)

	f.Release()
	assert.Empty(t, d.LivePostProcesses())
}
