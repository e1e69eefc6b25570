package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-choreo/common"
	"github.com/Carmen-Shannon/oxy-choreo/engine/choreographer"
	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
	"github.com/Carmen-Shannon/oxy-choreo/engine/device/devicetest"
	"github.com/Carmen-Shannon/oxy-choreo/engine/postprocess"
	"github.com/Carmen-Shannon/oxy-choreo/engine/renderpass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
[renderer]
bloom = false
render_to_texture = true
blur_scaling = 0.5
clear_color = "#ff0000"
tone_mapping = "reinhard"
post_process_effects = ["grayscale", "toon"]

[window]
width = 800
height = 600
`

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	r := cfg.Renderer
	assert.True(t, r.HDR)
	assert.True(t, r.Shadows)
	assert.False(t, r.Bloom)
	assert.True(t, r.RenderToTexture)
	assert.Equal(t, float32(0.5), r.BlurScaling)
	assert.Equal(t, renderpass.DefaultExposure, r.Exposure)
	assert.Equal(t, 800, cfg.Window.Width)
	assert.Equal(t, "oxy-choreo", cfg.Window.Title)
	assert.Equal(t, 4, cfg.Device.MSAA)

	method, err := r.ToneMappingMethod()
	require.NoError(t, err)
	assert.Equal(t, renderpass.ToneMappingReinhard, method)

	effects, err := r.Effects()
	require.NoError(t, err)
	assert.Equal(t, []postprocess.Effect{postprocess.EffectGrayscale, postprocess.EffectToon}, effects)

	color, err := r.ClearColorValue()
	require.NoError(t, err)
	assert.Equal(t, common.Color{R: 1, A: 1}, color)
}

func TestParseRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"unknown key":    "[renderer]\nhdrr = true\n",
		"blur scaling":   "[renderer]\nblur_scaling = 2.0\n",
		"clear color":    "[renderer]\nclear_color = \"red\"\n",
		"tone mapping":   "[renderer]\ntone_mapping = \"aces\"\n",
		"effect":         "[renderer]\npost_process_effects = [\"vignette\"]\n",
		"window size":    "[window]\nwidth = 0\n",
		"msaa":           "[device]\nmsaa = 2\n",
		"malformed toml": "[renderer\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("[renderer]\nexposure = -1.0\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestMarshalRoundTripsThroughParse(t *testing.T) {
	cfg := Default()
	cfg.Renderer.PostProcessEffects = []string{"sepia"}
	data, err := cfg.Marshal()
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, parsed)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOptionsConfigureChoreographer(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	d := devicetest.New()
	c, err := choreographer.New(d, cfg.Renderer.Options()...)
	require.NoError(t, err)
	defer c.Release()

	assert.Equal(t, choreographer.FeatureFlags{Shadows: true, HDR: true, PBR: true, RenderToTexture: true}, c.Flags())
	assert.Equal(t, renderpass.ToneMappingReinhard, c.ToneMapping().Method())
	assert.Equal(t, common.Color{R: 1, A: 1}, d.DisplayTarget().ClearColor())
}

func TestApplyStagesTogglesAndEffects(t *testing.T) {
	d := devicetest.New()
	d.GPU = device.GPUTypeNormal
	d.Bloom = false
	c, err := choreographer.New(d, choreographer.WithRendererConfiguration(choreographer.RendererConfiguration{}))
	require.NoError(t, err)
	defer c.Release()

	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)
	cfg.Renderer.Bloom = true

	rejected, err := cfg.Renderer.Apply(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"bloom"}, rejected)
	assert.True(t, c.Dirty())
	assert.Equal(t, choreographer.FeatureFlags{Shadows: true, HDR: true, PBR: true, RenderToTexture: true}, c.PendingFlags())
	assert.Equal(t, []postprocess.Effect{postprocess.EffectGrayscale, postprocess.EffectToon}, c.PostProcessFactory().Enabled())

	// Re-applying replaces the effect chain.
	cfg.Renderer.PostProcessEffects = []string{"sepia"}
	_, err = cfg.Renderer.Apply(c)
	require.NoError(t, err)
	assert.Equal(t, []postprocess.Effect{postprocess.EffectSepia}, c.PostProcessFactory().Enabled())
}

func TestWatchDeliversReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oxy.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	w, err := Watch(path)
	require.NoError(t, err)
	defer w.Close()

	// A rewrite can surface as several events, including one for the truncated file.
	require.NoError(t, os.WriteFile(path, []byte("[renderer]\nhdr = false\n"), 0o644))
	timeout := time.After(5 * time.Second)
	for reloaded := false; !reloaded; {
		select {
		case cfg := <-w.Updates():
			reloaded = !cfg.Renderer.HDR
		case <-timeout:
			t.Fatal("timed out waiting for reload")
		}
	}

	require.NoError(t, os.WriteFile(path, []byte("[renderer\n"), 0o644))
	select {
	case err := <-w.Errors():
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload error")
	}

	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
