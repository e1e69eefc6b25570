package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-choreo/engine/program"
	"github.com/cogentcore/webgpu/wgpu"
)

const fullScreenVertex = `struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) texcoord: vec2<f32>,
};

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOutput {
    var out: VertexOutput;
    let uv = vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u));
    out.position = vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0);
    out.texcoord = vec2<f32>(uv.x, 1.0 - uv.y);
    return out;
}
`

// imagePipeline is a compiled full-screen program for one attachment layout.
type imagePipeline struct {
	module         *wgpu.ShaderModule
	bindLayout     *wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	pipeline       *wgpu.RenderPipeline
}

func (p *imagePipeline) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
	}
	if p.pipelineLayout != nil {
		p.pipelineLayout.Release()
	}
	if p.bindLayout != nil {
		p.bindLayout.Release()
	}
	if p.module != nil {
		p.module.Release()
	}
}

// wgpuImagePostProcess compiles one pipeline per destination layout it is blitted into. Pipelines
// with identical source and layout are shared between post-processes through the device pool.
type wgpuImagePostProcess struct {
	dev      *wgpuDevice
	samplers []string
	code     string
	keys     map[program.Fingerprint]struct{}
}

var _ ImagePostProcess = &wgpuImagePostProcess{}

func (p *wgpuImagePostProcess) Blit(inputs []Texture, dst RenderTarget) error {
	if len(inputs) != len(p.samplers) {
		return fmt.Errorf("device: post-process declares %d samplers, got %d inputs", len(p.samplers), len(inputs))
	}
	target, ok := dst.(passTarget)
	if !ok {
		return fmt.Errorf("device: cannot render into %T", dst)
	}
	textures := make([]*wgpuTexture, len(inputs))
	for i, in := range inputs {
		tex, ok := in.(*wgpuTexture)
		if !ok || tex == nil || tex.view == nil {
			return fmt.Errorf("device: input %q is not a live texture", p.samplers[i])
		}
		textures[i] = tex
	}

	format, attachments, samples, err := target.pipelineFormat()
	if err != nil {
		return err
	}

	d := p.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	pipe, err := p.pipeline(format, attachments, samples)
	if err != nil {
		return err
	}

	var bindGroup *wgpu.BindGroup
	if len(textures) > 0 {
		entries := make([]wgpu.BindGroupEntry, 0, 2*len(textures))
		for i, tex := range textures {
			entries = append(entries,
				wgpu.BindGroupEntry{Binding: uint32(2 * i), TextureView: tex.view},
				wgpu.BindGroupEntry{Binding: uint32(2*i + 1), Sampler: d.sampler},
			)
		}
		bindGroup, err = d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   "post-process bind group",
			Layout:  pipe.bindLayout,
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("device: create bind group: %w", err)
		}
		d.keepAlive(bindGroup)
	}

	enc, err := d.commandEncoder()
	if err != nil {
		return err
	}
	pass, err := target.beginPass(enc)
	if err != nil {
		return err
	}
	pass.SetPipeline(pipe.pipeline)
	if bindGroup != nil {
		pass.SetBindGroup(0, bindGroup, nil)
	}
	pass.Draw(3, 1, 0, 0)
	pass.End()
	pass.Release()

	for _, tex := range textures {
		if tex.writer != nil {
			tex.writer.clear.consumed = true
		}
	}
	return nil
}

func (p *wgpuImagePostProcess) Release() {
	for key := range p.keys {
		p.dev.pipelines.Release(key)
	}
	clear(p.keys)
}

// pipeline returns the program compiled for the destination layout, acquiring it from the pool
// the first time this post-process sees that layout.
func (p *wgpuImagePostProcess) pipeline(format wgpu.TextureFormat, attachments int, samples uint32) (*imagePipeline, error) {
	key := program.FingerprintOf(
		strings.Join(p.samplers, ","),
		p.code,
		strconv.FormatUint(uint64(format), 10),
		strconv.Itoa(attachments),
		strconv.FormatUint(uint64(samples), 10),
	)
	_, held := p.keys[key]
	pipe, err := p.dev.pipelines.Acquire(key, func() (*imagePipeline, error) {
		return p.dev.compile(p.samplers, p.code, format, attachments, samples)
	})
	if err != nil {
		return nil, err
	}
	if held {
		// Only one reference per layout is kept per post-process.
		p.dev.pipelines.Release(key)
	}
	p.keys[key] = struct{}{}
	return pipe, nil
}

func (d *wgpuDevice) compile(samplers []string, code string, format wgpu.TextureFormat, attachments int, samples uint32) (*imagePipeline, error) {
	source := shaderSource(samplers, code, attachments)
	pipe := &imagePipeline{}

	var err error
	pipe.module, err = d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "post-process shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: source,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("device: compile post-process shader: %w", err)
	}

	var layouts []*wgpu.BindGroupLayout
	if len(samplers) > 0 {
		entries := make([]wgpu.BindGroupLayoutEntry, 0, 2*len(samplers))
		for i := range samplers {
			tex := wgpu.BindGroupLayoutEntry{Binding: uint32(2 * i), Visibility: wgpu.ShaderStageFragment}
			tex.Texture.SampleType = wgpu.TextureSampleTypeFloat
			tex.Texture.ViewDimension = wgpu.TextureViewDimension2D
			smp := wgpu.BindGroupLayoutEntry{Binding: uint32(2*i + 1), Visibility: wgpu.ShaderStageFragment}
			smp.Sampler.Type = wgpu.SamplerBindingTypeFiltering
			entries = append(entries, tex, smp)
		}
		pipe.bindLayout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   "post-process bind group layout",
			Entries: entries,
		})
		if err != nil {
			pipe.Release()
			return nil, fmt.Errorf("device: create bind group layout: %w", err)
		}
		layouts = append(layouts, pipe.bindLayout)
	}

	pipe.pipelineLayout, err = d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "post-process pipeline layout",
		BindGroupLayouts: layouts,
	})
	if err != nil {
		pipe.Release()
		return nil, fmt.Errorf("device: create pipeline layout: %w", err)
	}

	targets := make([]wgpu.ColorTargetState, attachments)
	for i := range targets {
		targets[i] = wgpu.ColorTargetState{Format: format, WriteMask: wgpu.ColorWriteMaskAll}
	}
	pipe.pipeline, err = d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "post-process pipeline",
		Layout: pipe.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     pipe.module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     pipe.module,
			EntryPoint: "fs_main",
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: samples,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		pipe.Release()
		return nil, fmt.Errorf("device: create post-process pipeline: %w", err)
	}
	return pipe, nil
}

// shaderSource wraps a fragment body into a complete WGSL module. Every sampler N is bound as the
// texture N and the sampler N_sampler; the body sees v_texcoord and writes frag_color, plus
// bloom_color when the destination has a second attachment.
func shaderSource(samplers []string, code string, attachments int) string {
	var b strings.Builder
	b.WriteString(fullScreenVertex)
	b.WriteString("\n")
	for i, name := range samplers {
		fmt.Fprintf(&b, "@group(0) @binding(%d) var %s: texture_2d<f32>;\n", 2*i, name)
		fmt.Fprintf(&b, "@group(0) @binding(%d) var %s_sampler: sampler;\n", 2*i+1, name)
	}

	b.WriteString("\nstruct FragmentOutput {\n    @location(0) color: vec4<f32>,\n")
	if attachments > 1 {
		b.WriteString("    @location(1) bloom: vec4<f32>,\n")
	}
	b.WriteString("};\n\n@fragment\nfn fs_main(in: VertexOutput) -> FragmentOutput {\n")
	b.WriteString("    let v_texcoord = in.texcoord;\n")
	b.WriteString("    var frag_color = vec4<f32>(0.0, 0.0, 0.0, 1.0);\n")
	b.WriteString("    var bloom_color = vec4<f32>(0.0, 0.0, 0.0, 1.0);\n")
	for _, line := range strings.Split(code, "\n") {
		b.WriteString("    ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("    var out: FragmentOutput;\n    out.color = frag_color;\n")
	if attachments > 1 {
		b.WriteString("    out.bloom = bloom_color;\n")
	}
	b.WriteString("    return out;\n}\n")
	return b.String()
}
