package device

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-choreo/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuTexture is a single-sampled 2D texture and its default view.
type wgpuTexture struct {
	texture       *wgpu.Texture
	view          *wgpu.TextureView
	width, height int
	format        wgpu.TextureFormat

	// writer is the target this texture is attached to, nil while detached.
	writer *renderTarget
}

var _ OwnedTexture = &wgpuTexture{}

func (t *wgpuTexture) Width() int {
	return t.width
}

func (t *wgpuTexture) Height() int {
	return t.height
}

func (t *wgpuTexture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

// passTarget is implemented by the targets a full-screen pass can draw into.
type passTarget interface {
	RenderTarget

	// pipelineFormat describes the color attachments a pipeline must be built for.
	pipelineFormat() (format wgpu.TextureFormat, attachments int, samples uint32, err error)

	// beginPass starts a render pass over every attachment with the viewport applied.
	beginPass(enc *wgpu.CommandEncoder) (*wgpu.RenderPassEncoder, error)
}

// clearState decides between clearing and loading an attachment. A target is cleared by the
// first pass of each frame and by the first pass after its contents were sampled, so passes that
// add to a target within one step (the outgoing and incoming scenes of a transition, the eyes of
// a stereo frame on the display) accumulate instead of overwriting each other.
type clearState struct {
	clearedFrame uint64
	consumed     bool
	everCleared  bool
}

func (c *clearState) loadOp(frame uint64) wgpu.LoadOp {
	if !c.everCleared || c.consumed || c.clearedFrame != frame {
		c.everCleared = true
		c.consumed = false
		c.clearedFrame = frame
		return wgpu.LoadOpClear
	}
	return wgpu.LoadOpLoad
}

// written records a full overwrite that did not go through a render pass.
func (c *clearState) written(frame uint64) {
	c.everCleared = true
	c.consumed = false
	c.clearedFrame = frame
}

// renderTarget is an offscreen RenderTarget.
type renderTarget struct {
	dev        *wgpuDevice
	targetType RenderTargetType
	format     wgpu.TextureFormat

	// owned holds the textures allocated by the target, attachments the ones currently bound.
	// They differ only where a caller texture was attached.
	owned       []*wgpuTexture
	attachments []*wgpuTexture

	viewport   common.Viewport
	clearColor common.Color
	clear      clearState
}

var _ passTarget = &renderTarget{}

func (t *renderTarget) allocate(count, width, height int) error {
	textures := make([]*wgpuTexture, 0, count)
	for i := 0; i < count; i++ {
		tex, err := t.dev.createTexture(t.format, width, height, fmt.Sprintf("%s attachment %d", t.targetType, i))
		if err != nil {
			for _, created := range textures {
				created.Release()
			}
			return err
		}
		tex.writer = t
		textures = append(textures, tex)
	}

	old := t.owned
	t.owned = textures
	if t.attachments == nil {
		t.attachments = make([]*wgpuTexture, count)
	}
	for i := range t.attachments {
		if t.attachments[i] == nil || (i < len(old) && t.attachments[i] == old[i]) {
			t.attachments[i] = textures[i]
		}
	}
	for _, tex := range old {
		tex.Release()
	}
	t.clear = clearState{}
	return nil
}

func (t *renderTarget) Type() RenderTargetType {
	return t.targetType
}

func (t *renderTarget) AttachmentCount() int {
	return len(t.attachments)
}

func (t *renderTarget) Viewport() common.Viewport {
	return t.viewport
}

func (t *renderTarget) SetViewport(v common.Viewport) error {
	width, height := max(v.Width, 1), max(v.Height, 1)
	if len(t.owned) > 0 && t.owned[0].width == width && t.owned[0].height == height {
		t.viewport = v
		return nil
	}
	if err := t.allocate(len(t.attachments), width, height); err != nil {
		return fmt.Errorf("device: resize %s target to %dx%d: %w", t.targetType, width, height, err)
	}
	t.viewport = v
	return nil
}

func (t *renderTarget) ClearColor() common.Color {
	return t.clearColor
}

func (t *renderTarget) SetClearColor(c common.Color) {
	t.clearColor = c
}

func (t *renderTarget) Texture(attachment int) Texture {
	if attachment < 0 || attachment >= len(t.attachments) {
		return nil
	}
	return t.attachments[attachment]
}

func (t *renderTarget) AttachTexture(tex Texture, attachment int) error {
	if attachment < 0 || attachment >= len(t.attachments) {
		return ErrAttachmentOutOfRange
	}
	wt, ok := tex.(*wgpuTexture)
	if !ok {
		return fmt.Errorf("device: cannot attach %T to a wgpu render target", tex)
	}
	if wt.format != t.format {
		return fmt.Errorf("%w: format %d on %s target", ErrTextureFormatMismatch, uint32(wt.format), t.targetType)
	}
	if prev := t.attachments[attachment]; prev != nil && prev != t.owned[attachment] {
		prev.writer = nil
	}
	wt.writer = t
	t.attachments[attachment] = wt
	t.clear = clearState{}
	return nil
}

func (t *renderTarget) BlitColor(dst RenderTarget, flipY bool) error {
	src := t.attachments[0]
	if flipY || !t.copyCompatible(dst) {
		p, err := t.dev.blitProgram(flipY)
		if err != nil {
			return err
		}
		return p.Blit([]Texture{src}, dst)
	}

	other := dst.(*renderTarget)
	d := t.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	enc, err := d.commandEncoder()
	if err != nil {
		return err
	}
	enc.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{Texture: src.texture, Origin: wgpu.Origin3D{}, Aspect: wgpu.TextureAspectAll},
		&wgpu.ImageCopyTexture{Texture: other.attachments[0].texture, Origin: wgpu.Origin3D{}, Aspect: wgpu.TextureAspectAll},
		&wgpu.Extent3D{Width: uint32(src.width), Height: uint32(src.height), DepthOrArrayLayers: 1},
	)
	t.clear.consumed = true
	other.clear.written(d.frame)
	return nil
}

// copyCompatible reports whether a raw texture copy can serve a blit into dst.
func (t *renderTarget) copyCompatible(dst RenderTarget) bool {
	other, ok := dst.(*renderTarget)
	if !ok || t.targetType == RenderTargetTypeDepthTexture || other.targetType == RenderTargetTypeDepthTexture || len(other.attachments) == 0 {
		return false
	}
	src, out := t.attachments[0], other.attachments[0]
	return src.format == out.format && src.width == out.width && src.height == out.height
}

func (t *renderTarget) Release() {
	for i, tex := range t.attachments {
		if tex != nil && tex != t.owned[i] {
			tex.writer = nil
		}
	}
	for _, tex := range t.owned {
		tex.Release()
	}
	t.owned = nil
	t.attachments = nil
}

func (t *renderTarget) pipelineFormat() (wgpu.TextureFormat, int, uint32, error) {
	if t.targetType == RenderTargetTypeDepthTexture {
		return 0, 0, 0, errors.New("device: depth targets cannot be written by an image post-process")
	}
	if len(t.attachments) == 0 {
		return 0, 0, 0, errors.New("device: render target used after release")
	}
	return t.format, len(t.attachments), 1, nil
}

func (t *renderTarget) beginPass(enc *wgpu.CommandEncoder) (*wgpu.RenderPassEncoder, error) {
	load := t.clear.loadOp(t.dev.frame)
	colors := make([]wgpu.RenderPassColorAttachment, len(t.attachments))
	for i, tex := range t.attachments {
		value := wgpu.Color{}
		if i == 0 {
			value = t.clearColor.WGPU()
		}
		colors[i] = wgpu.RenderPassColorAttachment{
			View:       tex.view,
			LoadOp:     load,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: value,
		}
	}
	pass := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label:            t.targetType.String() + " pass",
		ColorAttachments: colors,
	})
	setViewport(pass, t.viewport, t.attachments[0].width, t.attachments[0].height)
	return pass, nil
}

// displayTarget renders into the surface texture of the current frame, through a multisampled
// buffer when MSAA is on.
type displayTarget struct {
	dev           *wgpuDevice
	width, height int
	msaa          *wgpu.Texture
	msaaView      *wgpu.TextureView
	viewport      common.Viewport
	clearColor    common.Color
	clear         clearState
}

var _ passTarget = &displayTarget{}

func (t *displayTarget) resize(width, height int) error {
	t.releaseBuffer()
	t.width, t.height = width, height
	t.clear = clearState{}
	if t.dev.sampleCount == MSAAOff {
		return nil
	}
	tex, err := t.dev.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "display msaa buffer",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   uint32(t.dev.sampleCount),
		Dimension:     wgpu.TextureDimension2D,
		Format:        t.dev.surfaceFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("device: create msaa buffer: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return fmt.Errorf("device: create msaa view: %w", err)
	}
	t.msaa, t.msaaView = tex, view
	return nil
}

func (t *displayTarget) releaseBuffer() {
	if t.msaaView != nil {
		t.msaaView.Release()
		t.msaaView = nil
	}
	if t.msaa != nil {
		t.msaa.Release()
		t.msaa = nil
	}
}

func (t *displayTarget) Type() RenderTargetType {
	return RenderTargetTypeDisplay
}

func (t *displayTarget) AttachmentCount() int {
	return 1
}

func (t *displayTarget) Viewport() common.Viewport {
	return t.viewport
}

// SetViewport only records the region; the surface is sized by ConfigureSurface.
func (t *displayTarget) SetViewport(v common.Viewport) error {
	t.viewport = v
	return nil
}

func (t *displayTarget) ClearColor() common.Color {
	return t.clearColor
}

func (t *displayTarget) SetClearColor(c common.Color) {
	t.clearColor = c
}

// Texture is always nil: the surface texture cannot be sampled.
func (t *displayTarget) Texture(int) Texture {
	return nil
}

func (t *displayTarget) AttachTexture(Texture, int) error {
	return errors.New("device: textures cannot be attached to the display")
}

func (t *displayTarget) BlitColor(RenderTarget, bool) error {
	return errors.New("device: the display cannot be copied from")
}

// Release is a no-op; the display lives as long as the device.
func (t *displayTarget) Release() {}

func (t *displayTarget) pipelineFormat() (wgpu.TextureFormat, int, uint32, error) {
	return t.dev.surfaceFormat, 1, uint32(t.dev.sampleCount), nil
}

func (t *displayTarget) beginPass(enc *wgpu.CommandEncoder) (*wgpu.RenderPassEncoder, error) {
	if t.dev.surface == nil {
		return nil, ErrNoSurface
	}
	if t.dev.surfaceView == nil {
		return nil, ErrNoFrame
	}

	attachment := wgpu.RenderPassColorAttachment{
		View:       t.dev.surfaceView,
		LoadOp:     t.clear.loadOp(t.dev.frame),
		StoreOp:    wgpu.StoreOpStore,
		ClearValue: t.clearColor.WGPU(),
	}
	if t.msaaView != nil {
		attachment.View = t.msaaView
		attachment.ResolveTarget = t.dev.surfaceView
	}
	pass := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label:            "display pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{attachment},
	})
	setViewport(pass, t.viewport, t.width, t.height)
	return pass, nil
}

// setViewport applies a lower-left origin viewport to a pass whose framebuffer origin is the
// top-left corner. An empty viewport covers the whole attachment.
func setViewport(pass *wgpu.RenderPassEncoder, v common.Viewport, width, height int) {
	if v.Width <= 0 || v.Height <= 0 {
		v = common.Viewport{Width: width, Height: height}
	}
	x := min(max(v.X, 0), width)
	y := min(max(height-(v.Y+v.Height), 0), height)
	w := min(v.Width, width-x)
	h := min(v.Height, height-y)
	if w <= 0 || h <= 0 {
		return
	}
	pass.SetViewport(float32(x), float32(y), float32(w), float32(h), 0, 1)
}
