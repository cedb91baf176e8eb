package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/model"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	depthFormat = wgpu.TextureFormatDepth24Plus

	// Depth is reversed: the projection maps the near plane to the largest depth value,
	// so the buffer clears to 0 and nearer fragments compare Greater.
	depthClearValue = 0.0
	depthCompare    = wgpu.CompareFunctionGreater

	cameraBinding = 0
)

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	alphaMode     wgpu.CompositeAlphaMode
	presentMode   wgpu.PresentMode // defaults to PresentModeFifo (VSync)
	clearColor    wgpu.Color

	cameraLayout *wgpu.BindGroupLayout

	depthTexture     *wgpu.Texture
	depthTextureView *wgpu.TextureView
	slots            []*frameSlot

	// Held surface texture between AcquireTarget and SubmitTarget/DiscardTarget
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

// frameSlot holds the resources written by the CPU for one in-flight frame.
// A slot is only rewritten after the fence of its previous frame has signalled.
type frameSlot struct {
	camera    bind_group_provider.BindGroupProvider
	instances map[uint64]*instanceBuffer
}

// instanceBuffer is a slot's copy of one object's instance data.
type instanceBuffer struct {
	buffer     *wgpu.Buffer
	size       uint64
	generation uint64
}

type wgpuRendererBackend interface {
	RendererBackend

	Device() *wgpu.Device
	Queue() *wgpu.Queue
	Instance() *wgpu.Instance
	Adapter() *wgpu.Adapter
	Surface() *wgpu.Surface
}

var _ wgpuRendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, clearColor wgpu.Color) wgpuRendererBackend {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:            &sync.Mutex{},
		instance:      wgpu.CreateInstance(nil),
		presentMode:   wgpu.PresentModeFifo,
		clearColor:    clearColor,
		surfaceFormat: wgpu.TextureFormatUndefined,
	}
	w.surface = w.instance.CreateSurface(surfaceDescriptor)

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		panic(err)
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
	})
	if err != nil {
		panic(err)
	}
	w.device = d
	w.queue = d.GetQueue()

	w.surfaceFormat, w.alphaMode, err = surfaceDefaults(w.surface.GetCapabilities(w.adapter))
	if err != nil {
		panic(err)
	}

	w.cameraLayout, err = d.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Camera Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    cameraBinding,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: uint64((&camera.GPUCameraUniform{}).Size()),
				},
			},
		},
	})
	if err != nil {
		panic(err)
	}

	return w
}

func (b *wgpuRendererBackendImpl) SurfaceFormat() wgpu.TextureFormat {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.surfaceFormat
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeUncapped:
		b.presentMode = wgpu.PresentModeImmediate
	case PresentModeVSync:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeFifo
	}
}

func (b *wgpuRendererBackendImpl) ConfigureTargets(extent common.Extent, count int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if extent.Empty() {
		return ErrExtentUnsupported
	}
	limits := wgpu.DefaultLimits()
	if extent.Width > limits.MaxTextureDimension2D || extent.Height > limits.MaxTextureDimension2D {
		return fmt.Errorf("%w: %dx%d exceeds %d", ErrExtentUnsupported, extent.Width, extent.Height, limits.MaxTextureDimension2D)
	}

	b.releaseFrame()
	b.device.Poll(true, nil)

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       extent.Width,
		Height:      extent.Height,
		PresentMode: b.presentMode,
		AlphaMode:   b.alphaMode,
	})

	depthTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              extent.Width,
			Height:             extent.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return err
	}
	depthView, err := depthTexture.CreateView(nil)
	if err != nil {
		depthTexture.Release()
		return err
	}
	b.releaseDepth()
	b.depthTexture = depthTexture
	b.depthTextureView = depthView

	b.releaseSlots()
	b.slots = make([]*frameSlot, count)
	for i := range b.slots {
		slot, slotErr := b.newFrameSlot(i)
		if slotErr != nil {
			b.releaseSlots()
			return slotErr
		}
		b.slots[i] = slot
	}
	return nil
}

func (b *wgpuRendererBackendImpl) newFrameSlot(index int) (*frameSlot, error) {
	provider := bind_group_provider.NewBindGroupProvider(fmt.Sprintf("Camera Slot %d", index))

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: provider.Label() + " Buffer",
		Size:  uint64((&camera.GPUCameraUniform{}).Size()),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	provider.SetBuffer(cameraBinding, buf)

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  provider.Label() + " Bind Group",
		Layout: b.cameraLayout,
		Entries: []wgpu.BindGroupEntry{
			{
				Binding: cameraBinding,
				Buffer:  buf,
				Offset:  0,
				Size:    wgpu.WholeSize,
			},
		},
	})
	if err != nil {
		provider.Release()
		return nil, err
	}
	provider.SetBindGroup(bindGroup)

	return &frameSlot{
		camera:    provider,
		instances: make(map[uint64]*instanceBuffer),
	}, nil
}

// surfaceDefaults picks the preferred colour format and alpha mode, the first of each the surface reports.
func surfaceDefaults(capabilities wgpu.SurfaceCapabilities) (wgpu.TextureFormat, wgpu.CompositeAlphaMode, error) {
	if len(capabilities.Formats) == 0 {
		return 0, 0, errors.New("renderer: surface reports no supported formats")
	}
	if len(capabilities.AlphaModes) == 0 {
		return 0, 0, errors.New("renderer: surface reports no supported alpha modes")
	}
	return capabilities.Formats[0], capabilities.AlphaModes[0], nil
}

// AcquireTarget never reports suboptimal: GetCurrentTexture folds the surface status into its error,
// so a stale surface surfaces as ErrTargetsOutOfDate instead.
func (b *wgpuRendererBackendImpl) AcquireTarget() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface != nil {
		return false, errors.New("previous surface texture is still held")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrTargetsOutOfDate, err)
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return false, err
	}

	b.frameSurface = surfaceTexture
	b.frameView = view
	return false, nil
}

func (b *wgpuRendererBackendImpl) DiscardTarget() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseFrame()
}

func (b *wgpuRendererBackendImpl) SubmitTarget(slotIndex int, sub *Submission, _ Fence) (Fence, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return nil, errors.New("no surface texture acquired")
	}
	defer b.releaseFrame()

	if slotIndex < 0 || slotIndex >= len(b.slots) {
		return nil, fmt.Errorf("slot %d out of range [0, %d)", slotIndex, len(b.slots))
	}
	slot := b.slots[slotIndex]

	cameraWrite := []bind_group_provider.BufferWrite{
		{Provider: slot.camera, Binding: cameraBinding, Offset: 0, Data: sub.Camera},
	}
	if err := b.writeBuffers(cameraWrite); err != nil {
		return nil, fmt.Errorf("failed to write camera uniform: %w", err)
	}

	used := make(map[uint64]bool, len(sub.Draws))
	for _, d := range sub.Draws {
		if d.Batch.InstanceCount == 0 {
			continue
		}
		if err := b.uploadInstances(slot, d.Batch); err != nil {
			return nil, err
		}
		used[d.Batch.ObjectID] = true
	}
	for id, ib := range slot.instances {
		if !used[id] {
			ib.buffer.Release()
			delete(slot.instances, id)
		}
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       b.frameView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: b.clearColor,
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthTextureView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: depthClearValue,
		},
	})

	var current pipeline.Handle
	for _, d := range sub.Draws {
		if d.Batch.InstanceCount == 0 {
			continue
		}
		if d.Pipeline != current {
			current = d.Pipeline
			vp := current.Descriptor().Viewport
			pass.SetPipeline(current.Pipeline().(*wgpu.RenderPipeline))
			pass.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
			pass.SetBindGroup(0, slot.camera.BindGroup(), nil)
		}

		mesh := d.Batch.Mesh.(*wgpuMesh)
		ib := slot.instances[d.Batch.ObjectID]
		pass.SetVertexBuffer(0, mesh.provider.VertexBuffer(), 0, wgpu.WholeSize)
		pass.SetVertexBuffer(1, ib.buffer, 0, uint64(len(d.Batch.Instances)))
		pass.SetIndexBuffer(mesh.provider.IndexBuffer(), wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(mesh.IndexCount(), d.Batch.InstanceCount, 0, 0, 0)
	}

	if err := pass.End(); err != nil {
		pass.Release()
		return nil, err
	}
	pass.Release()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	defer commandBuffer.Release()

	// Queue submissions execute in order, so the previous frame's fence needs no explicit wait here.
	index := b.queue.Submit(commandBuffer)
	b.surface.Present()

	return &wgpuFence{
		mu:     &sync.Mutex{},
		device: b.device,
		queue:  b.queue,
		index:  index,
	}, nil
}

// writeBuffers writes staged buffer writes to the queue. Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) writeBuffers(writes []bind_group_provider.BufferWrite) error {
	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			return fmt.Errorf("%s has no buffer at binding %d", w.Provider.Label(), w.Binding)
		}
		if err := b.queue.WriteBuffer(buf, w.Offset, w.Data); err != nil {
			return err
		}
	}
	return nil
}

// uploadInstances makes the slot's copy of batch current, growing the buffer when needed.
// Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) uploadInstances(slot *frameSlot, batch *DrawBatch) error {
	size := uint64(len(batch.Instances))
	ib := slot.instances[batch.ObjectID]
	if ib != nil && ib.size >= size && ib.generation == batch.Generation {
		return nil
	}

	if ib == nil || ib.size < size {
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: batch.Label + " Instance Buffer",
			Size:  size,
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("failed to create instance buffer for %s: %w", batch.Label, err)
		}
		if ib != nil {
			ib.buffer.Release()
		}
		ib = &instanceBuffer{buffer: buf, size: size}
		slot.instances[batch.ObjectID] = ib
	}

	if err := b.queue.WriteBuffer(ib.buffer, 0, batch.Instances); err != nil {
		return fmt.Errorf("failed to write instances for %s: %w", batch.Label, err)
	}
	ib.generation = batch.Generation
	return nil
}

func (b *wgpuRendererBackendImpl) CreateRenderPipeline(key string, desc pipeline.Descriptor) (pipeline.Handle, error) {
	vertexProgram := desc.Programs.Vertex
	fragmentProgram := desc.Programs.Fragment

	vs, err := b.device.CreateShaderModule(vertexProgram.Module())
	if err != nil {
		return nil, err
	}
	fs, err := b.device.CreateShaderModule(fragmentProgram.Module())
	if err != nil {
		vs.Release()
		return nil, err
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            key,
		BindGroupLayouts: []*wgpu.BindGroupLayout{b.cameraLayout},
	})
	if err != nil {
		vs.Release()
		fs.Release()
		return nil, err
	}

	compare := depthCompare
	if !desc.DepthTestEnabled {
		compare = wgpu.CompareFunctionAlways
	}

	target := wgpu.ColorTargetState{
		Format:    desc.Format,
		WriteMask: desc.WriteMask,
	}
	if desc.BlendEnabled {
		target.Blend = desc.BlendState
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  key + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexProgram.EntryPoint(),
			Buffers:    vertexProgram.VertexLayouts(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentProgram.EntryPoint(),
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  desc.Topology,
			FrontFace: desc.FrontFace,
			CullMode:  desc.CullMode,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: desc.DepthWriteEnabled,
			DepthCompare:      compare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		pipelineLayout.Release()
		vs.Release()
		fs.Release()
		return nil, err
	}

	return &wgpuPipeline{
		key:      key,
		desc:     desc,
		pipeline: created,
		layout:   pipelineLayout,
		modules:  []*wgpu.ShaderModule{vs, fs},
	}, nil
}

func (b *wgpuRendererBackendImpl) CreateMesh(m model.Model) (Mesh, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	provider := bind_group_provider.NewBindGroupProvider(m.Name(), bind_group_provider.WithIndexCount(m.IndexCount()))

	vertexData := m.VertexData()
	vb, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            provider.Label() + " Vertex Buffer",
		Size:             uint64(len(vertexData)),
		Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, err
	}
	provider.SetVertexBuffer(vb)
	if err := b.queue.WriteBuffer(vb, 0, vertexData); err != nil {
		provider.Release()
		return nil, err
	}

	indexData := m.IndexData()
	ib, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            provider.Label() + " Index Buffer",
		Size:             uint64(len(indexData)),
		Usage:            wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		provider.Release()
		return nil, err
	}
	provider.SetIndexBuffer(ib)
	if err := b.queue.WriteBuffer(ib, 0, indexData); err != nil {
		provider.Release()
		return nil, err
	}

	return &wgpuMesh{provider: provider}, nil
}

func (b *wgpuRendererBackendImpl) WaitIdle() {
	b.device.Poll(true, nil)
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.releaseFrame()
	b.releaseSlots()
	b.releaseDepth()
	if b.cameraLayout != nil {
		b.cameraLayout.Release()
		b.cameraLayout = nil
	}
	b.queue.Release()
	b.device.Release()
	b.surface.Release()
	b.adapter.Release()
	b.instance.Release()
}

// releaseFrame drops the held surface texture. Caller must hold the mutex.
func (b *wgpuRendererBackendImpl) releaseFrame() {
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuRendererBackendImpl) releaseDepth() {
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
		b.depthTextureView = nil
	}
	if b.depthTexture != nil {
		b.depthTexture.Release()
		b.depthTexture = nil
	}
}

func (b *wgpuRendererBackendImpl) releaseSlots() {
	for _, slot := range b.slots {
		if slot == nil {
			continue
		}
		slot.camera.Release()
		for _, ib := range slot.instances {
			ib.buffer.Release()
		}
	}
	b.slots = nil
}

func (b *wgpuRendererBackendImpl) Device() *wgpu.Device {
	return b.device
}

func (b *wgpuRendererBackendImpl) Queue() *wgpu.Queue {
	return b.queue
}

func (b *wgpuRendererBackendImpl) Instance() *wgpu.Instance {
	return b.instance
}

func (b *wgpuRendererBackendImpl) Adapter() *wgpu.Adapter {
	return b.adapter
}

func (b *wgpuRendererBackendImpl) Surface() *wgpu.Surface {
	return b.surface
}

// wgpuFence waits on a queue submission index.
type wgpuFence struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue
	index  wgpu.SubmissionIndex
	done   bool
}

var _ Fence = &wgpuFence{}

func (f *wgpuFence) Wait() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return nil
	}
	f.device.Poll(true, &wgpu.WrappedSubmissionIndex{
		Queue:           f.queue,
		SubmissionIndex: f.index,
	})
	f.done = true
	return nil
}

func (f *wgpuFence) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.done && f.device.Poll(false, nil) {
		f.done = true
	}
	return f.done
}

// wgpuPipeline is the wgpu implementation of pipeline.Handle.
type wgpuPipeline struct {
	key      string
	desc     pipeline.Descriptor
	pipeline *wgpu.RenderPipeline
	layout   *wgpu.PipelineLayout
	modules  []*wgpu.ShaderModule
}

var _ pipeline.Handle = &wgpuPipeline{}

func (p *wgpuPipeline) Key() string {
	return p.key
}

func (p *wgpuPipeline) Descriptor() pipeline.Descriptor {
	return p.desc
}

func (p *wgpuPipeline) Pipeline() any {
	return p.pipeline
}

func (p *wgpuPipeline) Release() {
	if p.pipeline == nil {
		return
	}
	p.pipeline.Release()
	p.layout.Release()
	for _, m := range p.modules {
		m.Release()
	}
	p.pipeline = nil
	p.layout = nil
	p.modules = nil
}

// wgpuMesh is the wgpu implementation of Mesh, backed by a BindGroupProvider holding the vertex and index buffers.
type wgpuMesh struct {
	provider bind_group_provider.BindGroupProvider
}

var _ Mesh = &wgpuMesh{}

func (m *wgpuMesh) Label() string {
	return m.provider.Label()
}

func (m *wgpuMesh) IndexCount() uint32 {
	return uint32(m.provider.IndexCount())
}

func (m *wgpuMesh) Release() {
	m.provider.Release()
}
