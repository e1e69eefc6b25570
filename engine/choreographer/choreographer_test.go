package choreographer

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-choreo/common"
	"github.com/Carmen-Shannon/oxy-choreo/engine/capability"
	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
	"github.com/Carmen-Shannon/oxy-choreo/engine/device/devicetest"
	"github.com/Carmen-Shannon/oxy-choreo/engine/postprocess"
	"github.com/Carmen-Shannon/oxy-choreo/engine/profiler"
	"github.com/Carmen-Shannon/oxy-choreo/engine/renderpass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPass is a base pass that logs itself to the device recorder.
type recordingPass struct {
	rec  *devicetest.Recorder
	ctx  renderpass.Context
	fail error
}

func (p *recordingPass) Render(scene, outgoing renderpass.Scene, io renderpass.InputOutput, ctx *renderpass.Context) error {
	if p.fail != nil {
		return p.fail
	}
	p.ctx = *ctx
	p.rec.Record(devicetest.Event{Kind: devicetest.EventPass, Name: "base", Dst: io.Output})
	return nil
}

type bloomMetadata bool

func (b bloomMetadata) RequiresBloomPass() bool { return bool(b) }

type shadowScene struct {
	renders int
}

func (s *shadowScene) ShadowLightCount() int { return 1 }

func (s *shadowScene) RenderShadowMap(ctx *renderpass.Context, light int, target device.RenderTarget) error {
	s.renders++
	return nil
}

var noFeatures = RendererConfiguration{}

func newChoreographer(t *testing.T, d *devicetest.Device, options ...ChoreographerBuilderOption) (Choreographer, *recordingPass) {
	t.Helper()
	base := &recordingPass{rec: d.Recorder}
	c, err := New(d, append([]ChoreographerBuilderOption{WithBaseRenderPass(base)}, options...)...)
	require.NoError(t, err)
	t.Cleanup(c.Release)
	d.Recorder.Reset()
	return c, base
}

// sequence returns every recorded event name in order.
func sequence(rec *devicetest.Recorder) []string {
	var names []string
	for _, e := range rec.Events {
		names = append(names, e.Name)
	}
	return names
}

func assertMembership(t *testing.T, c Choreographer) {
	t.Helper()
	caps, flags, targets := c.Capabilities(), c.Flags(), c.Targets()

	assert.Equal(t, caps.MRT, targets.Blit != nil, "blit target")
	assert.Equal(t, caps.MRT, targets.RenderToTexture != nil, "render-to-texture target")
	assert.Equal(t, flags.HDR, targets.PostProcess != nil, "post-process target")
	assert.Equal(t, flags.HDR, targets.HDR != nil, "hdr target")
	assert.Equal(t, flags.HDR && flags.Bloom, targets.BlurA != nil, "blur target a")
	assert.Equal(t, flags.HDR && flags.Bloom, targets.BlurB != nil, "blur target b")
	if targets.HDR != nil {
		want := 1
		if flags.Bloom {
			want = 2
		}
		assert.Equal(t, want, targets.HDR.AttachmentCount())
	}
	assert.Equal(t, flags.HDR, c.ToneMapping() != nil, "tone mapping pass")
}

func TestNewRequiresDevice(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilDevice)
}

func TestNewEnablesRequestedAndSupported(t *testing.T) {
	d := devicetest.New()
	d.Bloom = false
	c, _ := newChoreographer(t, d)

	assert.Equal(t, FeatureFlags{Shadows: true, HDR: true, PBR: true}, c.Flags())
	assert.False(t, c.Dirty())
	assertMembership(t, c)
	assert.Equal(t, renderpass.ToneMappingHableLuminanceOnly, c.ToneMapping().Method())
	assert.False(t, c.ToneMapping().SoftwareGamma())
}

func TestNewSoftwareGamma(t *testing.T) {
	d := devicetest.New()
	d.Mode = device.ColorRenderingModeLinearSoftware
	c, _ := newChoreographer(t, d)

	require.NotNil(t, c.ToneMapping())
	assert.True(t, c.ToneMapping().SoftwareGamma())
}

func TestNewTargetTypes(t *testing.T) {
	d := devicetest.New()
	c, _ := newChoreographer(t, d)
	targets := c.Targets()
	assert.Equal(t, device.RenderTargetTypeColorTextureHDR16, targets.Blit.Type())
	assert.Equal(t, device.RenderTargetTypeColorTextureHDR16, targets.RenderToTexture.Type())

	d2 := devicetest.New()
	c2, _ := newChoreographer(t, d2, WithRendererConfiguration(noFeatures))
	assert.Equal(t, device.RenderTargetTypeColorTexture, c2.Targets().Blit.Type())
}

func TestNewAllocationFailure(t *testing.T) {
	d := devicetest.New()
	d.FailTargetAt = 3

	_, err := New(d)
	assert.ErrorIs(t, err, devicetest.ErrInjected)
	assert.Empty(t, d.LiveTargets())
	assert.Empty(t, d.LivePostProcesses())
}

func TestWithoutMRTNothingIsSupported(t *testing.T) {
	d := devicetest.New()
	d.GPU = device.GPUTypeAdreno330OrOlder
	c, base := newChoreographer(t, d)

	caps := c.Capabilities()
	assert.False(t, caps.HDR)
	assert.False(t, caps.PBR)
	assert.False(t, caps.Bloom)

	before := c.PendingFlags()
	assert.False(t, c.SetShadowsEnabled(true))
	assert.False(t, c.SetBloomEnabled(true))
	assert.False(t, c.SetHDREnabled(true))
	assert.False(t, c.SetPBREnabled(true))
	assert.Equal(t, before, c.PendingFlags())
	assert.False(t, c.Dirty())
	assert.Empty(t, c.Targets().All())

	// Render-to-texture is accepted but cannot take effect without MRT.
	c.SetRenderToTextureEnabled(true)
	require.NoError(t, c.Render(common.EyeMonocular, nil, nil, nil))
	assert.Equal(t, VariantDirect, c.LastVariant())
	assert.Same(t, d.DisplayTarget(), base.rec.Events[0].Dst)

	assert.ErrorIs(t, c.SetRenderTexture(&devicetest.Texture{}), ErrRenderToTextureUnavailable)
}

func TestDisablingAlwaysSucceeds(t *testing.T) {
	for _, gpu := range []device.GPUType{device.GPUTypeNormal, device.GPUTypeAdreno330OrOlder} {
		d := devicetest.New()
		d.GPU = gpu
		c, _ := newChoreographer(t, d, WithRendererConfiguration(noFeatures))

		assert.True(t, c.SetShadowsEnabled(false))
		assert.True(t, c.SetHDREnabled(false))
		assert.True(t, c.SetPBREnabled(false))
		assert.True(t, c.SetBloomEnabled(false))
		// Nothing was enabled, so nothing is staged.
		assert.False(t, c.Dirty())
	}

	d := devicetest.New()
	c, _ := newChoreographer(t, d)
	assert.True(t, c.SetBloomEnabled(false))
	assert.True(t, c.Dirty())
	assert.False(t, c.PendingFlags().Bloom)
	assert.True(t, c.Flags().Bloom)
}

func TestEnablingRebuildsBeforeAnyPass(t *testing.T) {
	d := devicetest.New()
	c, base := newChoreographer(t, d, WithRendererConfiguration(noFeatures))
	assertMembership(t, c)
	old := c.Targets()

	assert.True(t, c.SetHDREnabled(true))
	assert.True(t, c.Dirty())
	assert.Nil(t, c.Targets().HDR)

	require.NoError(t, c.Render(common.EyeMonocular, nil, nil, nil))
	assert.False(t, c.Dirty())
	assert.True(t, c.Flags().HDR)
	assertMembership(t, c)
	assert.True(t, old.Blit.(*devicetest.RenderTarget).Released)

	// The first pass of the frame already wrote into the rebuilt HDR target.
	require.NotEmpty(t, d.Recorder.Events)
	assert.Equal(t, "base", d.Recorder.Events[0].Name)
	assert.Same(t, c.Targets().HDR, d.Recorder.Events[0].Dst)
	assert.False(t, base.ctx.PBREnabled)

	assert.True(t, c.SetBloomEnabled(true))
	assert.True(t, c.SetPBREnabled(true))
	require.NoError(t, c.Render(common.EyeMonocular, nil, nil, bloomMetadata(true)))
	assertMembership(t, c)
	assert.Equal(t, VariantHDRBloom, c.LastVariant())
	assert.True(t, base.ctx.PBREnabled)
}

func TestRenderToTextureToggleDoesNotRebuild(t *testing.T) {
	d := devicetest.New()
	c, _ := newChoreographer(t, d, WithRendererConfiguration(noFeatures))
	before := c.Targets()
	created := len(d.Targets)

	c.SetRenderToTextureEnabled(true)
	assert.True(t, c.Dirty())
	require.NoError(t, c.Render(common.EyeMonocular, nil, nil, nil))

	assert.False(t, c.Dirty())
	assert.True(t, c.Flags().RenderToTexture)
	assert.Equal(t, before, c.Targets())
	assert.Len(t, d.Targets, created)
	assert.Equal(t, VariantRenderToTexture, c.LastVariant())
}

func TestStereoFrameRunsPreprocessesOnce(t *testing.T) {
	d := devicetest.New()
	c, base := newChoreographer(t, d)
	scene := &shadowScene{}

	require.NoError(t, c.Render(common.EyeLeft, scene, nil, nil))
	require.NoError(t, c.Render(common.EyeRight, scene, nil, nil))
	assert.Equal(t, 1, scene.renders)
	assert.Equal(t, uint64(1), base.ctx.Frame)
	assert.Equal(t, common.EyeRight, base.ctx.Eye)
	// The right eye sees the left eye's shadow maps.
	assert.Len(t, base.ctx.ShadowMaps, 1)

	require.NoError(t, c.Render(common.EyeLeft, scene, nil, nil))
	assert.Equal(t, 2, scene.renders)
	assert.Equal(t, uint64(2), base.ctx.Frame)
}

func TestDirectScenario(t *testing.T) {
	d := devicetest.New()
	c, _ := newChoreographer(t, d, WithRendererConfiguration(noFeatures))

	require.NoError(t, c.Render(common.EyeMonocular, nil, nil, bloomMetadata(true)))
	assert.Equal(t, []string{"base"}, sequence(d.Recorder))
	assert.Same(t, d.DisplayTarget(), d.Recorder.Events[0].Dst)
	assert.Equal(t, VariantDirect, c.LastVariant())
}

func TestHDRScenario(t *testing.T) {
	d := devicetest.New()
	c, _ := newChoreographer(t, d, WithRendererConfiguration(RendererConfiguration{EnableHDR: true}))
	targets := c.Targets()

	require.NoError(t, c.Render(common.EyeMonocular, nil, nil, bloomMetadata(true)))
	assert.Equal(t, VariantHDR, c.LastVariant())
	assert.Equal(t, []string{"base", "hdr_texture"}, sequence(d.Recorder))

	events := d.Recorder.Events
	assert.Same(t, targets.HDR, events[0].Dst)
	assert.Equal(t, []device.Texture{targets.HDR.Texture(0)}, events[1].Inputs)
	assert.Same(t, d.DisplayTarget(), events[1].Dst)
}

func TestHDRScenarioWithEffects(t *testing.T) {
	d := devicetest.New()
	c, _ := newChoreographer(t, d, WithRendererConfiguration(RendererConfiguration{EnableHDR: true}))
	targets := c.Targets()
	require.NoError(t, c.PostProcessFactory().Enable(postprocess.EffectGrayscale))

	require.NoError(t, c.Render(common.EyeMonocular, nil, nil, nil))
	assert.Equal(t, []string{"base", "source_texture", "hdr_texture"}, sequence(d.Recorder))

	events := d.Recorder.Events
	assert.Same(t, targets.PostProcess, events[1].Dst)
	assert.Equal(t, []device.Texture{targets.PostProcess.Texture(0)}, events[2].Inputs)
}

func TestHDRBloomScenario(t *testing.T) {
	d := devicetest.New()
	c, _ := newChoreographer(t, d,
		WithRendererConfiguration(RendererConfiguration{EnableHDR: true, EnableBloom: true}),
		WithGaussianBlurOptions(renderpass.WithBlurIterations(1)),
		WithViewport(common.Viewport{X: 100, Y: 50, Width: 1920, Height: 1080}),
	)
	targets := c.Targets()

	require.NoError(t, c.Render(common.EyeMonocular, nil, nil, bloomMetadata(true)))
	assert.Equal(t, VariantHDRBloom, c.LastVariant())
	assert.Equal(t, []string{"base", "image", "image", "hdr_texture,bloom_texture", "hdr_texture"}, sequence(d.Recorder))

	events := d.Recorder.Events
	assert.Same(t, targets.HDR, events[0].Dst)
	assert.Equal(t, 2, targets.HDR.AttachmentCount())
	assert.Equal(t, []device.Texture{targets.HDR.Texture(1)}, events[1].Inputs)
	assert.Same(t, targets.BlurA, events[1].Dst)
	assert.Same(t, targets.BlurB, events[2].Dst)
	assert.Equal(t, []device.Texture{targets.HDR.Texture(0), targets.BlurB.Texture(0)}, events[3].Inputs)
	assert.Same(t, targets.PostProcess, events[3].Dst)
	// No effects ran, so the blended image is tone mapped.
	assert.Equal(t, []device.Texture{targets.PostProcess.Texture(0)}, events[4].Inputs)
	assert.Same(t, d.DisplayTarget(), events[4].Dst)

	blur := common.Viewport{Width: 480, Height: 270}
	assert.Equal(t, blur, targets.BlurA.Viewport())
	assert.Equal(t, blur, targets.BlurB.Viewport())
	assert.Equal(t, common.Viewport{Width: 1920, Height: 1080}, targets.HDR.Viewport())
	assert.Equal(t, common.Viewport{X: 100, Y: 50, Width: 1920, Height: 1080}, d.DisplayTarget().Viewport())
}

func TestHDRBloomWithoutBloomDemandFallsBackToHDR(t *testing.T) {
	d := devicetest.New()
	c, _ := newChoreographer(t, d, WithRendererConfiguration(RendererConfiguration{EnableHDR: true, EnableBloom: true}))

	require.NoError(t, c.Render(common.EyeMonocular, nil, nil, bloomMetadata(false)))
	assert.Equal(t, VariantHDR, c.LastVariant())
	assert.Equal(t, []string{"base", "hdr_texture"}, sequence(d.Recorder))
}

func TestHDRBloomPostProcessStageOutput(t *testing.T) {
	d := devicetest.New()
	c, _ := newChoreographer(t, d, WithRendererConfiguration(RendererConfiguration{EnableHDR: true, EnableBloom: true}))
	targets := c.Targets()

	var gotIn, gotOut device.RenderTarget
	c.AttachPostProcessStage(postprocess.StageFunc(func(in, out device.RenderTarget) (postprocess.Result, error) {
		gotIn, gotOut = in, out
		return postprocess.Result{Applied: true, Output: out}, nil
	}))

	require.NoError(t, c.Render(common.EyeMonocular, nil, nil, bloomMetadata(true)))
	assert.Same(t, targets.PostProcess, gotIn)
	assert.Same(t, targets.HDR, gotOut)
	last := d.Recorder.Events[len(d.Recorder.Events)-1]
	assert.Equal(t, []device.Texture{targets.HDR.Texture(0)}, last.Inputs)
}

func TestRenderToTextureScenario(t *testing.T) {
	d := devicetest.New()
	c, _ := newChoreographer(t, d, WithRendererConfiguration(noFeatures), WithRenderToTexture(true))
	targets := c.Targets()

	var observed []device.Texture
	callbacks := 0
	c.SetRenderToTextureObserver(func(tex device.Texture) { observed = append(observed, tex) })
	c.SetRenderToTextureCallback(func() { callbacks++ })

	require.NoError(t, c.Render(common.EyeMonocular, nil, nil, nil))
	assert.Equal(t, VariantRenderToTexture, c.LastVariant())
	assert.Equal(t, []string{"base", "blit-color", "source_texture"}, sequence(d.Recorder))

	events := d.Recorder.Events
	assert.Same(t, targets.Blit, events[0].Dst)
	assert.Same(t, targets.Blit, events[1].Src)
	assert.Same(t, targets.RenderToTexture, events[1].Dst)
	assert.True(t, events[1].FlipY)
	assert.Equal(t, []device.Texture{targets.Blit.Texture(0)}, events[2].Inputs)
	assert.Same(t, d.DisplayTarget(), events[2].Dst)

	assert.Equal(t, []device.Texture{targets.RenderToTexture.Texture(0)}, observed)
	assert.Equal(t, 1, callbacks)
}

func TestHDRRenderToTexture(t *testing.T) {
	d := devicetest.New()
	c, _ := newChoreographer(t, d, WithRendererConfiguration(RendererConfiguration{EnableHDR: true}), WithRenderToTexture(true))
	targets := c.Targets()

	require.NoError(t, c.Render(common.EyeMonocular, nil, nil, nil))
	assert.Equal(t, VariantHDR, c.LastVariant())
	assert.Equal(t, []string{"base", "hdr_texture", "blit-color", "source_texture"}, sequence(d.Recorder))
	assert.Same(t, targets.Blit, d.Recorder.Events[1].Dst)
}

func TestMidFrameToggleWaitsForNextFrame(t *testing.T) {
	d := devicetest.New()
	c, _ := newChoreographer(t, d, WithRendererConfiguration(noFeatures))
	before := c.Targets()

	require.NoError(t, c.Render(common.EyeLeft, nil, nil, nil))
	assert.True(t, c.SetHDREnabled(true))
	require.NoError(t, c.Render(common.EyeRight, nil, nil, nil))

	assert.Equal(t, before, c.Targets())
	assert.False(t, c.Flags().HDR)
	assert.Equal(t, VariantDirect, c.LastVariant())

	require.NoError(t, c.Render(common.EyeLeft, nil, nil, nil))
	assert.True(t, c.Flags().HDR)
	assert.NotNil(t, c.Targets().HDR)
	assert.Equal(t, VariantHDR, c.LastVariant())
}

func TestRebuildFailureRetriesNextFrame(t *testing.T) {
	d := devicetest.New()
	c, _ := newChoreographer(t, d, WithRendererConfiguration(noFeatures))

	assert.True(t, c.SetHDREnabled(true))
	d.FailTargetAt = len(d.Targets) + 3

	err := c.Render(common.EyeMonocular, nil, nil, nil)
	assert.ErrorIs(t, err, devicetest.ErrInjected)
	assert.True(t, c.Dirty())
	assert.Empty(t, c.Targets().All())
	assert.Empty(t, d.LiveTargets())
	assert.Empty(t, d.Recorder.Names(devicetest.EventPass))

	// A right eye after a failed frame start reports the missing targets.
	err = c.Render(common.EyeRight, nil, nil, nil)
	assert.ErrorIs(t, err, ErrInconsistentTargets)

	d.FailTargetAt = 0
	require.NoError(t, c.Render(common.EyeMonocular, nil, nil, nil))
	assert.False(t, c.Dirty())
	assertMembership(t, c)
}

func TestPassFailureAbortsFrame(t *testing.T) {
	d := devicetest.New()
	c, base := newChoreographer(t, d, WithRendererConfiguration(RendererConfiguration{EnableHDR: true}))
	boom := errors.New("boom")
	base.fail = boom

	err := c.Render(common.EyeMonocular, nil, nil, nil)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, d.Recorder.Events)

	base.fail = nil
	d.FailBlit = devicetest.ErrInjected
	err = c.Render(common.EyeMonocular, nil, nil, nil)
	assert.ErrorIs(t, err, devicetest.ErrInjected)
	assert.Equal(t, []string{"base"}, sequence(d.Recorder))
}

func TestViewportAndClearColorBroadcast(t *testing.T) {
	d := devicetest.New()
	c, _ := newChoreographer(t, d, WithBlurScaling(0.5))
	red := common.Color{R: 1, A: 1}

	v := common.Viewport{X: 10, Y: 20, Width: 800, Height: 601}
	require.NoError(t, c.SetViewport(v))
	c.SetClearColor(red)

	assert.Equal(t, v, d.DisplayTarget().Viewport())
	assert.Equal(t, red, d.DisplayTarget().ClearColor())
	targets := c.Targets()
	for _, rt := range targets.All() {
		assert.Equal(t, red, rt.ClearColor())
		if rt == targets.BlurA || rt == targets.BlurB {
			assert.Equal(t, common.Viewport{Width: 400, Height: 300}, rt.Viewport())
		} else {
			assert.Equal(t, common.Viewport{Width: 800, Height: 601}, rt.Viewport())
		}
	}

	// Both are re-applied to rebuilt targets.
	assert.True(t, c.SetBloomEnabled(false))
	require.NoError(t, c.Render(common.EyeMonocular, nil, nil, nil))
	for _, rt := range c.Targets().All() {
		assert.Equal(t, red, rt.ClearColor())
		assert.Equal(t, common.Viewport{Width: 800, Height: 601}, rt.Viewport())
	}
}

func TestSetRenderTextureSurvivesRebuild(t *testing.T) {
	d := devicetest.New()
	c, _ := newChoreographer(t, d, WithRendererConfiguration(noFeatures))
	tex := &devicetest.Texture{W: 256, H: 256}

	require.NoError(t, c.SetRenderTexture(tex))
	assert.Same(t, tex, c.Targets().RenderToTexture.Texture(0))

	assert.True(t, c.SetHDREnabled(true))
	require.NoError(t, c.Render(common.EyeMonocular, nil, nil, nil))
	assert.Same(t, tex, c.Targets().RenderToTexture.Texture(0))
}

func TestRenderTextureOfWrongFormatIsDetachedOnRebuild(t *testing.T) {
	d := devicetest.New()
	d.CheckAttachFormat = true
	c, _ := newChoreographer(t, d, WithRendererConfiguration(noFeatures))
	tex := &devicetest.Texture{Type: device.RenderTargetTypeColorTexture, W: 256, H: 256}

	require.NoError(t, c.SetRenderTexture(tex))
	assert.Same(t, tex, c.Targets().RenderToTexture.Texture(0))

	// HDR switches the render-to-texture target to a half-float format the texture can't match.
	assert.True(t, c.SetHDREnabled(true))
	for frame := 0; frame < 3; frame++ {
		require.NoError(t, c.Render(common.EyeMonocular, nil, nil, nil))
		assert.False(t, c.Dirty())
		assertMembership(t, c)
		assert.NotSame(t, tex, c.Targets().RenderToTexture.Texture(0))
	}

	// The dropped texture is not reattached when the format would fit again.
	assert.True(t, c.SetHDREnabled(false))
	require.NoError(t, c.Render(common.EyeMonocular, nil, nil, nil))
	assert.NotSame(t, tex, c.Targets().RenderToTexture.Texture(0))
}

func TestRenderTextureOfMatchingFormatSurvivesRebuild(t *testing.T) {
	d := devicetest.New()
	d.CheckAttachFormat = true
	c, _ := newChoreographer(t, d)
	tex := &devicetest.Texture{Type: device.RenderTargetTypeColorTextureHDR16, W: 256, H: 256}

	require.NoError(t, c.SetRenderTexture(tex))
	assert.True(t, c.SetBloomEnabled(false))
	require.NoError(t, c.Render(common.EyeMonocular, nil, nil, nil))
	assert.Same(t, tex, c.Targets().RenderToTexture.Texture(0))

	assert.ErrorIs(t, c.SetRenderTexture(&devicetest.Texture{Type: device.RenderTargetTypeColorTexture}), device.ErrTextureFormatMismatch)
}

func TestEnablingEnabledFeatureMarksDirty(t *testing.T) {
	tests := []struct {
		name string
		set  func(Choreographer) bool
	}{
		{"shadows", func(c Choreographer) bool { return c.SetShadowsEnabled(true) }},
		{"hdr", func(c Choreographer) bool { return c.SetHDREnabled(true) }},
		{"pbr", func(c Choreographer) bool { return c.SetPBREnabled(true) }},
		{"bloom", func(c Choreographer) bool { return c.SetBloomEnabled(true) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := devicetest.New()
			c, _ := newChoreographer(t, d)
			flags := c.Flags()
			targets := c.Targets()
			require.False(t, c.Dirty())

			assert.True(t, tt.set(c))
			assert.True(t, c.Dirty())
			assert.Equal(t, flags, c.PendingFlags())

			// No net change: the next frame consumes the flag and keeps the same targets.
			require.NoError(t, c.Render(common.EyeMonocular, nil, nil, nil))
			assert.False(t, c.Dirty())
			assert.Equal(t, flags, c.Flags())
			assert.Equal(t, targets, c.Targets())
			assertMembership(t, c)
		})
	}
}

// litScene casts one shadow and provides a lighting environment, logging both to the recorder.
type litScene struct {
	rec *devicetest.Recorder
	env device.Texture
}

func (s *litScene) ShadowLightCount() int { return 1 }

func (s *litScene) RenderShadowMap(ctx *renderpass.Context, light int, target device.RenderTarget) error {
	s.rec.Record(devicetest.Event{Kind: devicetest.EventPass, Name: "shadow-map", Dst: target})
	return nil
}

func (s *litScene) LightingEnvironment() device.Texture { return s.env }

func TestPreprocessOrder(t *testing.T) {
	tests := []struct {
		name string
		cfg  RendererConfiguration
		want []string
	}{
		{"shadows and pbr", RendererConfiguration{EnableShadows: true, EnableHDR: true, EnablePBR: true}, []string{"shadow-map", "environment", "base"}},
		{"shadows only", RendererConfiguration{EnableShadows: true, EnableHDR: true}, []string{"shadow-map", "base"}},
		{"pbr only", RendererConfiguration{EnableHDR: true, EnablePBR: true}, []string{"environment", "base"}},
		{"neither", RendererConfiguration{EnableHDR: true}, []string{"base"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := devicetest.New()
			c, _ := newChoreographer(t, d, WithRendererConfiguration(tt.cfg))
			scene := &litScene{rec: d.Recorder, env: &devicetest.Texture{W: 64, H: 32}}

			require.NoError(t, c.Render(common.EyeMonocular, scene, nil, nil))
			got := sequence(d.Recorder)
			require.GreaterOrEqual(t, len(got), len(tt.want))
			assert.Equal(t, tt.want, got[:len(tt.want)])
		})
	}
}

func TestProfilerCountsFramesAndRebuilds(t *testing.T) {
	d := devicetest.New()
	p := profiler.NewProfiler(profiler.WithInterval(time.Hour))
	c, _ := newChoreographer(t, d, WithProfiler(p), WithRendererConfiguration(noFeatures))

	require.NoError(t, c.Render(common.EyeLeft, nil, nil, nil))
	require.NoError(t, c.Render(common.EyeRight, nil, nil, nil))
	assert.Equal(t, uint64(1), p.TotalFrames())
}

func TestReleaseFreesEverything(t *testing.T) {
	d := devicetest.New()
	c, err := New(d)
	require.NoError(t, err)
	require.NoError(t, c.PostProcessFactory().Enable(postprocess.EffectSepia))
	require.NoError(t, c.Render(common.EyeMonocular, &shadowScene{}, nil, bloomMetadata(true)))

	c.Release()
	assert.Empty(t, d.LiveTargets())
	assert.Empty(t, d.LivePostProcesses())
}

func TestSelectVariant(t *testing.T) {
	full := FeatureFlags{HDR: true, Bloom: true, RenderToTexture: true}

	tests := []struct {
		name     string
		flags    FeatureFlags
		mrt      bool
		metadata renderpass.RenderMetadata
		want     Variant
	}{
		{"bloom", full, true, bloomMetadata(true), VariantHDRBloom},
		{"bloom not needed", full, true, bloomMetadata(false), VariantHDR},
		{"nil metadata", full, true, nil, VariantHDR},
		{"hdr", FeatureFlags{HDR: true}, true, bloomMetadata(true), VariantHDR},
		{"rtt", FeatureFlags{RenderToTexture: true}, true, nil, VariantRenderToTexture},
		{"rtt without mrt", FeatureFlags{RenderToTexture: true}, false, nil, VariantDirect},
		{"direct", FeatureFlags{}, true, bloomMetadata(true), VariantDirect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := capability.Capabilities{MRT: tt.mrt, HDR: tt.mrt, PBR: tt.mrt, Bloom: tt.mrt}
			assert.Equal(t, tt.want, SelectVariant(tt.flags, caps, tt.metadata))
		})
	}
}
