package device

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-choreo/common"
	"github.com/Carmen-Shannon/oxy-choreo/engine/program"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrNoSurface is returned when the display is written on a device created without a window.
	ErrNoSurface = errors.New("device: no presentation surface")

	// ErrNoFrame is returned when the display is written outside BeginFrame/EndFrame.
	ErrNoFrame = errors.New("device: display written outside of a frame")
)

// qualcommVendorID is the PCI vendor id reported by Adreno GPUs.
const qualcommVendorID = 0x5143

// GPUDevice is a WebGPU backed Device that owns a presentation surface and drives the frame loop.
// All methods must be called from the thread that created the device.
type GPUDevice interface {
	Device

	// ConfigureSurface (re)configures the presentation surface and the multisampled display buffer.
	// Must be called once before the first frame and again whenever the window is resized.
	//
	// Parameters:
	//   - width: surface width in pixels
	//   - height: surface height in pixels
	//
	// Returns:
	//   - error: an error if the display buffer could not be allocated
	ConfigureSurface(width, height int) error

	// BeginFrame acquires the next surface texture. Offscreen work encoded before the first
	// BeginFrame is submitted with the first frame.
	//
	// Returns:
	//   - error: an error if the surface texture could not be acquired
	BeginFrame() error

	// EndFrame submits every pass encoded since the last submission.
	//
	// Returns:
	//   - error: an error if the command buffer could not be finished
	EndFrame() error

	// Present shows the surface texture acquired by BeginFrame.
	Present()

	// NewTexture creates a caller-owned texture that can be attached to a render target and
	// sampled by image post-processes.
	//
	// Parameters:
	//   - targetType: the texture format, RenderTargetTypeColorTexture or RenderTargetTypeColorTextureHDR16
	//   - width: width in texels
	//   - height: height in texels
	//
	// Returns:
	//   - OwnedTexture: the new texture, released by the caller
	//   - error: an error if the texture could not be allocated
	NewTexture(targetType RenderTargetType, width, height int) (OwnedTexture, error)

	// AdapterName returns the name the driver reports for the GPU.
	//
	// Returns:
	//   - string: the adapter name
	AdapterName() string

	// Release frees every GPU resource owned by the device, including cached programs.
	Release()
}

// OwnedTexture is a texture created by the caller through GPUDevice.NewTexture.
type OwnedTexture interface {
	Texture

	// Release frees the texture. It must not be attached to a target afterwards.
	Release()
}

// wgpuDevice is the implementation of the GPUDevice interface.
type wgpuDevice struct {
	mu sync.Mutex

	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	forceFallback bool
	sampleCount   MSAASampleCount
	presentMode   wgpu.PresentMode
	gpuOverride   *GPUType
	modeOverride  *ColorRenderingMode
	bloomDisabled bool

	adapterName string
	adapterType wgpu.AdapterType
	gpuType     GPUType
	colorMode   ColorRenderingMode

	surfaceFormat wgpu.TextureFormat
	sampler       *wgpu.Sampler
	pipelines     *program.Pool[*imagePipeline]
	flip          ImagePostProcess
	straight      ImagePostProcess
	display       *displayTarget

	encoder        *wgpu.CommandEncoder
	transient      []program.Releaser
	surfaceTexture *wgpu.Texture
	surfaceView    *wgpu.TextureView

	// frame increments on every BeginFrame and drives the per-frame target clears.
	frame uint64
}

var _ GPUDevice = &wgpuDevice{}

// NewWGPUDevice creates a WebGPU device. When descriptor is nil the device is headless: every
// offscreen feature works and writing the display fails with ErrNoSurface.
//
// Parameters:
//   - descriptor: the window surface descriptor, or nil for a headless device
//   - options: functional options to configure the device
//
// Returns:
//   - GPUDevice: the new device
//   - error: an error if no adapter or device could be obtained
func NewWGPUDevice(descriptor *wgpu.SurfaceDescriptor, options ...DeviceBuilderOption) (GPUDevice, error) {
	// wgpu-native requires all calls on one OS thread.
	runtime.LockOSThread()

	d := &wgpuDevice{
		sampleCount: MSAA4x,
		presentMode: wgpu.PresentModeImmediate,
		pipelines:   program.NewPool[*imagePipeline](),
	}
	for _, opt := range options {
		opt(d)
	}

	d.instance = wgpu.CreateInstance(nil)
	if descriptor != nil {
		d.surface = d.instance.CreateSurface(descriptor)
	}

	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallback,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("device: request adapter: %w", err)
	}
	d.adapter = adapter

	info := adapter.GetInfo()
	d.adapterName = info.Name
	d.adapterType = info.AdapterType
	d.gpuType = classifyGPU(info.VendorId, info.Name)

	limits := wgpu.DefaultLimits()
	dev, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "oxy-choreo device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("device: request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	d.sampler, err = d.createSampler(common.SamplerStagingData{})
	if err != nil {
		d.Release()
		return nil, err
	}

	d.surfaceFormat = wgpu.TextureFormatBGRA8Unorm
	if d.surface != nil {
		caps := d.surface.GetCapabilities(d.adapter)
		if len(caps.Formats) > 0 {
			d.surfaceFormat = caps.Formats[0]
		}
	}
	d.colorMode = colorModeFor(d.surfaceFormat)
	d.display = &displayTarget{dev: d, clearColor: common.Black}

	common.Logger().Info("gpu device created",
		"adapter", d.adapterName,
		"gpu", d.GPUType(),
		"color_mode", d.ColorRenderingMode(),
		"surface_format", uint32(d.surfaceFormat),
		"msaa", uint32(d.sampleCount),
		"headless", d.surface == nil,
	)
	return d, nil
}

// classifyGPU maps the adapter identity onto the GPU classes that change feature support.
// Adreno 3xx parts and older cannot be trusted with multiple render targets.
func classifyGPU(vendorID uint32, name string) GPUType {
	lower := strings.ToLower(name)
	idx := strings.Index(lower, "adreno")
	if vendorID != qualcommVendorID || idx < 0 {
		return GPUTypeNormal
	}
	var model int
	if _, err := fmt.Sscanf(strings.TrimLeft(lower[idx+len("adreno"):], " (tm)"), "%d", &model); err != nil {
		return GPUTypeNormal
	}
	if model <= 330 {
		return GPUTypeAdreno330OrOlder
	}
	return GPUTypeNormal
}

// colorModeFor reports whether the surface applies gamma on write.
func colorModeFor(format wgpu.TextureFormat) ColorRenderingMode {
	switch format {
	case wgpu.TextureFormatRGBA8UnormSrgb, wgpu.TextureFormatBGRA8UnormSrgb:
		return ColorRenderingModeLinear
	default:
		return ColorRenderingModeLinearSoftware
	}
}

func (d *wgpuDevice) GPUType() GPUType {
	if d.gpuOverride != nil {
		return *d.gpuOverride
	}
	return d.gpuType
}

func (d *wgpuDevice) ColorRenderingMode() ColorRenderingMode {
	if d.modeOverride != nil {
		return *d.modeOverride
	}
	return d.colorMode
}

// IsBloomSupported reports float target support. RGBA16Float is renderable and filterable on
// every WebGPU adapter, so only the software fallback, which is too slow for the blur, opts out.
func (d *wgpuDevice) IsBloomSupported() bool {
	if d.bloomDisabled {
		return false
	}
	return d.adapterType != wgpu.AdapterTypeCPU
}

func (d *wgpuDevice) AdapterName() string {
	return d.adapterName
}

func (d *wgpuDevice) Display() RenderTarget {
	return d.display
}

func (d *wgpuDevice) NewRenderTarget(targetType RenderTargetType, attachments, samples int, stencil bool) (RenderTarget, error) {
	if targetType == RenderTargetTypeDisplay {
		return nil, errors.New("device: the display target is owned by the device")
	}
	if stencil {
		return nil, errors.New("device: stencil attachments are not supported on offscreen targets")
	}
	if samples != 1 {
		return nil, fmt.Errorf("device: offscreen targets are single-sampled, got %d samples", samples)
	}
	if attachments < 1 || (targetType == RenderTargetTypeDepthTexture && attachments != 1) {
		return nil, fmt.Errorf("device: %d attachments invalid for a %s target", attachments, targetType)
	}

	t := &renderTarget{
		dev:        d,
		targetType: targetType,
		format:     textureFormat(targetType),
		clearColor: common.Black,
		viewport:   common.Viewport{Width: 1, Height: 1},
	}
	if err := t.allocate(attachments, 1, 1); err != nil {
		return nil, err
	}
	return t, nil
}

func (d *wgpuDevice) NewTexture(targetType RenderTargetType, width, height int) (OwnedTexture, error) {
	switch targetType {
	case RenderTargetTypeColorTexture, RenderTargetTypeColorTextureHDR16:
	default:
		return nil, fmt.Errorf("device: cannot create a standalone %s texture", targetType)
	}
	return d.createTexture(textureFormat(targetType), width, height, "attached texture")
}

func (d *wgpuDevice) NewImagePostProcess(samplers []string, code []string) (ImagePostProcess, error) {
	for _, name := range samplers {
		if !isIdentifier(name) {
			return nil, fmt.Errorf("device: sampler name %q is not a valid identifier", name)
		}
	}
	return &wgpuImagePostProcess{
		dev:      d,
		samplers: append([]string(nil), samplers...),
		code:     strings.Join(code, "\n"),
		keys:     make(map[program.Fingerprint]struct{}),
	}, nil
}

func (d *wgpuDevice) ConfigureSurface(width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.surface == nil {
		return nil
	}
	if width <= 0 || height <= 0 {
		return nil
	}

	caps := d.surface.GetCapabilities(d.adapter)
	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: d.presentMode,
		AlphaMode:   caps.AlphaModes[0],
	})
	return d.display.resize(width, height)
}

func (d *wgpuDevice) BeginFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.frame++
	if d.surface == nil {
		return nil
	}

	tex, err := d.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("device: acquire surface texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return fmt.Errorf("device: create surface view: %w", err)
	}
	d.surfaceTexture = tex
	d.surfaceView = view
	return nil
}

func (d *wgpuDevice) EndFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submit()
}

func (d *wgpuDevice) Present() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.surfaceTexture == nil {
		return
	}
	d.surface.Present()
	d.surfaceView.Release()
	d.surfaceTexture.Release()
	d.surfaceView = nil
	d.surfaceTexture = nil
}

func (d *wgpuDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.releaseTransient()
	if d.encoder != nil {
		d.encoder.Release()
		d.encoder = nil
	}
	for _, p := range []*ImagePostProcess{&d.flip, &d.straight} {
		if *p != nil {
			(*p).Release()
			*p = nil
		}
	}
	d.pipelines.Clear()
	if d.display != nil {
		d.display.releaseBuffer()
	}
	if d.surfaceView != nil {
		d.surfaceView.Release()
		d.surfaceView = nil
	}
	if d.surfaceTexture != nil {
		d.surfaceTexture.Release()
		d.surfaceTexture = nil
	}
	if d.sampler != nil {
		d.sampler.Release()
		d.sampler = nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.surface != nil {
		d.surface.Release()
		d.surface = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

// createSampler builds a sampler from staging data, filling zero fields with clamped linear
// filtering.
func (d *wgpuDevice) createSampler(data common.SamplerStagingData) (*wgpu.Sampler, error) {
	sampler, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "post-process sampler",
		AddressModeU:  common.Coalesce(data.AddressModeU, wgpu.AddressModeClampToEdge),
		AddressModeV:  common.Coalesce(data.AddressModeV, wgpu.AddressModeClampToEdge),
		AddressModeW:  common.Coalesce(data.AddressModeW, wgpu.AddressModeClampToEdge),
		MagFilter:     common.Coalesce(data.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(data.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(data.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   data.LodMinClamp,
		LodMaxClamp:   common.Coalesce(data.LodMaxClamp, 32),
		MaxAnisotropy: common.Coalesce(data.MaxAnisotropy, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("device: create sampler: %w", err)
	}
	return sampler, nil
}

func (d *wgpuDevice) createTexture(format wgpu.TextureFormat, width, height int, label string) (*wgpuTexture, error) {
	usage := wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding
	if format != wgpu.TextureFormatDepth32Float {
		usage |= wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst
	}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("device: create %dx%d texture: %w", width, height, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("device: create texture view: %w", err)
	}
	return &wgpuTexture{texture: tex, view: view, width: width, height: height, format: format}, nil
}

// commandEncoder returns the encoder collecting the passes of the current submission.
func (d *wgpuDevice) commandEncoder() (*wgpu.CommandEncoder, error) {
	if d.encoder != nil {
		return d.encoder, nil
	}
	enc, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("device: create command encoder: %w", err)
	}
	d.encoder = enc
	return enc, nil
}

// keepAlive holds r until the current submission has been handed to the queue.
func (d *wgpuDevice) keepAlive(r program.Releaser) {
	d.transient = append(d.transient, r)
}

func (d *wgpuDevice) submit() error {
	if d.encoder == nil {
		return nil
	}
	cmd, err := d.encoder.Finish(nil)
	d.encoder.Release()
	d.encoder = nil
	if err != nil {
		d.releaseTransient()
		return fmt.Errorf("device: finish command buffer: %w", err)
	}
	d.queue.Submit(cmd)
	cmd.Release()
	d.releaseTransient()
	return nil
}

func (d *wgpuDevice) releaseTransient() {
	for _, r := range d.transient {
		r.Release()
	}
	d.transient = d.transient[:0]
}

// blitProgram returns the shader BlitColor falls back to when a raw copy cannot be used.
func (d *wgpuDevice) blitProgram(flipY bool) (ImagePostProcess, error) {
	slot, coord := &d.straight, "v_texcoord"
	if flipY {
		slot, coord = &d.flip, "vec2<f32>(v_texcoord.x, 1.0 - v_texcoord.y)"
	}
	if *slot == nil {
		p, err := d.NewImagePostProcess([]string{"source_texture"}, []string{
			"frag_color = textureSample(source_texture, source_texture_sampler, " + coord + ");",
		})
		if err != nil {
			return nil, err
		}
		*slot = p
	}
	return *slot, nil
}

func textureFormat(t RenderTargetType) wgpu.TextureFormat {
	switch t {
	case RenderTargetTypeColorTextureHDR16:
		return wgpu.TextureFormatRGBA16Float
	case RenderTargetTypeDepthTexture:
		return wgpu.TextureFormatDepth32Float
	default:
		return wgpu.TextureFormatRGBA8Unorm
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
