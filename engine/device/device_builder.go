package device

import "github.com/cogentcore/webgpu/wgpu"

// MSAASampleCount is the multisample count of the display target.
type MSAASampleCount uint32

const (
	// MSAAOff renders the display without multisampling.
	MSAAOff MSAASampleCount = 1
	// MSAA4x renders the display with 4 samples per pixel, resolved on present.
	MSAA4x MSAASampleCount = 4
)

// DeviceBuilderOption is a functional option for configuring a GPUDevice.
// Use the With* functions to create options that are applied directly to the device instance.
type DeviceBuilderOption func(*wgpuDevice)

// WithForceSoftwareDevice requests the fallback (software) adapter. Useful on machines without a
// usable GPU and in CI.
//
// Parameters:
//   - force: if true, request the fallback adapter
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithForceSoftwareDevice(force bool) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.forceFallback = force
	}
}

// WithMSAA sets the display multisample count. Only MSAAOff and MSAA4x are supported by every
// adapter; anything else falls back to MSAA4x.
//
// Parameters:
//   - count: the sample count
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithMSAA(count MSAASampleCount) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		if count != MSAAOff {
			count = MSAA4x
		}
		d.sampleCount = count
	}
}

// WithVSync selects FIFO presentation instead of the default uncapped immediate mode.
//
// Parameters:
//   - enabled: if true, present on vertical sync
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithVSync(enabled bool) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		if enabled {
			d.presentMode = wgpu.PresentModeFifo
		} else {
			d.presentMode = wgpu.PresentModeImmediate
		}
	}
}

// WithGPUType overrides the detected GPU class, for exercising low-end code paths on capable
// hardware.
//
// Parameters:
//   - t: the GPU class to report
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithGPUType(t GPUType) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.gpuOverride = &t
	}
}

// WithColorRenderingMode overrides the color rendering mode derived from the surface format.
//
// Parameters:
//   - m: the color rendering mode to report
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithColorRenderingMode(m ColorRenderingMode) DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.modeOverride = &m
	}
}

// WithBloomDisabled makes the device report no bloom support.
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithBloomDisabled() DeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.bloomDisabled = true
	}
}
