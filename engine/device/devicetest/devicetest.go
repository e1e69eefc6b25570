// Package devicetest provides a recording, GPU-free implementation of device.Device for tests.
// Every blit, copy and (through Recorder) every pass is appended to an ordered event log so tests
// can assert on the exact sequence a frame produced.
package devicetest

import (
	"errors"
	"strings"

	"github.com/Carmen-Shannon/oxy-choreo/common"
	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
)

// ErrInjected is the default error returned by injected failures.
var ErrInjected = errors.New("devicetest: injected failure")

// EventKind classifies a recorded event.
type EventKind int

const (
	// EventBlit is an image post-process writing into a target.
	EventBlit EventKind = iota
	// EventBlitColor is a target-to-target copy.
	EventBlitColor
	// EventPass is recorded by test passes through Recorder.Record.
	EventPass
)

// Event is one recorded GPU operation.
type Event struct {
	Kind EventKind
	// Name is the pass name for EventPass, or the comma-joined sampler list for EventBlit.
	Name    string
	Program *PostProcess
	Inputs  []device.Texture
	Src     device.RenderTarget
	Dst     device.RenderTarget
	FlipY   bool
}

// Recorder is an ordered event log shared between the fake device and test passes.
type Recorder struct {
	Events []Event
}

// Record appends an event to the log.
func (r *Recorder) Record(e Event) {
	r.Events = append(r.Events, e)
}

// Names returns the Name of every event of the given kind, in order.
func (r *Recorder) Names(kind EventKind) []string {
	var names []string
	for _, e := range r.Events {
		if e.Kind == kind {
			names = append(names, e.Name)
		}
	}
	return names
}

// Reset clears the log.
func (r *Recorder) Reset() {
	r.Events = nil
}

// Texture is a fake attachment texture. Type stands in for the texture format.
type Texture struct {
	Target     *RenderTarget
	Attachment int
	Type       device.RenderTargetType
	W, H       int
}

func (t *Texture) Width() int  { return t.W }
func (t *Texture) Height() int { return t.H }

// RenderTarget is a fake render target that tracks its configuration and release state.
type RenderTarget struct {
	ID          int
	TargetType  device.RenderTargetType
	Attachments int
	Samples     int
	Stencil     bool
	Released    bool

	dev      *Device
	viewport common.Viewport
	clear    common.Color
	textures []*Texture
}

var _ device.RenderTarget = &RenderTarget{}

func newRenderTarget(d *Device, id int, t device.RenderTargetType, attachments, samples int, stencil bool) *RenderTarget {
	rt := &RenderTarget{
		ID:          id,
		TargetType:  t,
		Attachments: attachments,
		Samples:     samples,
		Stencil:     stencil,
		dev:         d,
		viewport:    common.Viewport{Width: 1, Height: 1},
	}
	for i := 0; i < attachments; i++ {
		rt.textures = append(rt.textures, &Texture{Target: rt, Attachment: i, Type: t, W: 1, H: 1})
	}
	return rt
}

func (r *RenderTarget) Type() device.RenderTargetType { return r.TargetType }
func (r *RenderTarget) AttachmentCount() int          { return r.Attachments }
func (r *RenderTarget) Viewport() common.Viewport     { return r.viewport }
func (r *RenderTarget) ClearColor() common.Color      { return r.clear }
func (r *RenderTarget) SetClearColor(c common.Color)  { r.clear = c }

func (r *RenderTarget) SetViewport(v common.Viewport) error {
	r.viewport = v
	for _, t := range r.textures {
		t.W, t.H = v.Width, v.Height
	}
	return nil
}

func (r *RenderTarget) Texture(attachment int) device.Texture {
	if attachment < 0 || attachment >= len(r.textures) {
		return nil
	}
	return r.textures[attachment]
}

func (r *RenderTarget) AttachTexture(tex device.Texture, attachment int) error {
	if attachment < 0 || attachment >= len(r.textures) {
		return device.ErrAttachmentOutOfRange
	}
	ft, ok := tex.(*Texture)
	if !ok {
		return errors.New("devicetest: foreign texture")
	}
	if r.dev.CheckAttachFormat && ft.Type != r.TargetType {
		return device.ErrTextureFormatMismatch
	}
	r.textures[attachment] = ft
	return nil
}

func (r *RenderTarget) BlitColor(dst device.RenderTarget, flipY bool) error {
	if r.dev.FailBlitColor != nil {
		return r.dev.FailBlitColor
	}
	r.dev.Recorder.Record(Event{Kind: EventBlitColor, Name: "blit-color", Src: r, Dst: dst, FlipY: flipY})
	return nil
}

func (r *RenderTarget) Release() {
	r.Released = true
}

// PostProcess is a fake image post-process.
type PostProcess struct {
	Samplers []string
	Code     []string
	Released bool

	dev *Device
}

var _ device.ImagePostProcess = &PostProcess{}

// Name returns the comma-joined sampler list.
func (p *PostProcess) Name() string {
	return strings.Join(p.Samplers, ",")
}

func (p *PostProcess) Blit(inputs []device.Texture, dst device.RenderTarget) error {
	if p.dev.FailBlit != nil {
		return p.dev.FailBlit
	}
	p.dev.Recorder.Record(Event{Kind: EventBlit, Name: p.Name(), Program: p, Inputs: inputs, Dst: dst})
	return nil
}

func (p *PostProcess) Release() {
	p.Released = true
}

// Device is a fake device.Device.
type Device struct {
	GPU   device.GPUType
	Mode  device.ColorRenderingMode
	Bloom bool

	// FailTargetAt makes the n-th (1-based) NewRenderTarget call fail with ErrInjected. 0 disables.
	FailTargetAt int
	// FailPostProcess, when set, is returned by every NewImagePostProcess call.
	FailPostProcess error
	// FailBlit, when set, is returned by every image post-process Blit.
	FailBlit error
	// FailBlitColor, when set, is returned by every BlitColor.
	FailBlitColor error
	// CheckAttachFormat makes AttachTexture reject textures whose Type differs from the target's.
	CheckAttachFormat bool

	Recorder      *Recorder
	Targets       []*RenderTarget
	PostProcesses []*PostProcess

	display *RenderTarget
	nextID  int
}

var _ device.Device = &Device{}

// New creates a fake device reporting a capable GPU: MRT, linear color and bloom support.
func New() *Device {
	d := &Device{
		GPU:      device.GPUTypeNormal,
		Mode:     device.ColorRenderingModeLinear,
		Bloom:    true,
		Recorder: &Recorder{},
	}
	d.display = newRenderTarget(d, 0, device.RenderTargetTypeDisplay, 1, 4, true)
	return d
}

func (d *Device) GPUType() device.GPUType                       { return d.GPU }
func (d *Device) ColorRenderingMode() device.ColorRenderingMode { return d.Mode }
func (d *Device) IsBloomSupported() bool                        { return d.Bloom }
func (d *Device) Display() device.RenderTarget                  { return d.display }

// DisplayTarget returns the display as its concrete fake type.
func (d *Device) DisplayTarget() *RenderTarget { return d.display }

func (d *Device) NewRenderTarget(t device.RenderTargetType, attachments, samples int, stencil bool) (device.RenderTarget, error) {
	d.nextID++
	if d.FailTargetAt > 0 && d.nextID == d.FailTargetAt {
		return nil, ErrInjected
	}
	rt := newRenderTarget(d, d.nextID, t, attachments, samples, stencil)
	d.Targets = append(d.Targets, rt)
	return rt, nil
}

func (d *Device) NewImagePostProcess(samplers []string, code []string) (device.ImagePostProcess, error) {
	if d.FailPostProcess != nil {
		return nil, d.FailPostProcess
	}
	p := &PostProcess{Samplers: samplers, Code: code, dev: d}
	d.PostProcesses = append(d.PostProcesses, p)
	return p, nil
}

// LiveTargets returns every created target that has not been released.
func (d *Device) LiveTargets() []*RenderTarget {
	var live []*RenderTarget
	for _, t := range d.Targets {
		if !t.Released {
			live = append(live, t)
		}
	}
	return live
}

// LivePostProcesses returns every created post-process that has not been released.
func (d *Device) LivePostProcesses() []*PostProcess {
	var live []*PostProcess
	for _, p := range d.PostProcesses {
		if !p.Released {
			live = append(live, p)
		}
	}
	return live
}
