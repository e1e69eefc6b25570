// Package capability derives which advanced rendering features the current GPU and driver can
// support. Negotiation happens once, when the choreographer is constructed, and never changes.
package capability

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
)

// Querier is the capability-query slice of the graphics device.
type Querier interface {
	GPUType() device.GPUType
	ColorRenderingMode() device.ColorRenderingMode
	IsBloomSupported() bool
}

// Capabilities is the set of features the hardware can support.
// Invariants: PBR implies HDR, Bloom implies MRT and HDR.
type Capabilities struct {
	// MRT is multiple render target support, the gate for every offscreen feature.
	MRT bool
	// HDR is floating-point scene rendering with tone mapping.
	HDR bool
	// PBR is physically-based lighting. It needs HDR.
	PBR bool
	// Bloom is the blurred bright-pass glow. It needs MRT, HDR and driver support.
	Bloom bool
}

// Shadows reports whether dynamic shadows can be supported. Shadow maps only need MRT.
//
// Returns:
//   - bool: true when MRT is supported
func (c Capabilities) Shadows() bool {
	return c.MRT
}

// String summarizes the capabilities for logging.
func (c Capabilities) String() string {
	return fmt.Sprintf("mrt=%t shadows=%t hdr=%t pbr=%t bloom=%t", c.MRT, c.Shadows(), c.HDR, c.PBR, c.Bloom)
}

// Negotiate computes the supported features from the device, in dependency order:
// MRT, then HDR, then PBR, then bloom. An unrecognized GPU negotiates nothing.
//
// Parameters:
//   - q: the device capability queries
//
// Returns:
//   - Capabilities: the supported features
func Negotiate(q Querier) Capabilities {
	var c Capabilities
	// Adreno 330 and older lack usable MRT; anything unrecognized is treated the same way.
	if q.GPUType() != device.GPUTypeNormal {
		return c
	}

	c.MRT = true
	c.HDR = c.MRT && q.ColorRenderingMode() != device.ColorRenderingModeNonLinear
	c.PBR = c.HDR
	c.Bloom = c.MRT && c.HDR && q.IsBloomSupported()
	return c
}
