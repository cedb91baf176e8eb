package scene

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/model"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrUnknownGroup is returned when a group name is not registered in the scene.
	ErrUnknownGroup = errors.New("scene: unknown group")

	// ErrUnknownObject is returned when an object name is not registered in the group.
	ErrUnknownObject = errors.New("scene: unknown object")

	// ErrUnknownInstance is returned when an instance name is not registered in the object.
	ErrUnknownInstance = errors.New("scene: unknown instance")
)

// Device is the part of the renderer a scene needs to create GPU resources for its groups and objects.
type Device interface {
	CreatePipeline(desc pipeline.Descriptor) (pipeline.Handle, error)
	CreateMesh(m model.Model) (renderer.Mesh, error)
}

// Stats are the rebuild counters of every cache level of a scene. Group and object counters are summed
// over the currently registered groups and objects.
type Stats struct {
	CameraBuilds     uint64
	SubmissionBuilds uint64
	BatchListBuilds  uint64
	DrawBatchBuilds  uint64
	Groups           int
	Objects          int
	Instances        int
}

// submissionCache is the scene level cache entry, tagged with the target set generation it was built for.
type submissionCache struct {
	generation  uint64
	submissions []*renderer.Submission
}

type scene struct {
	mu *sync.Mutex

	name   string
	device Device
	cam    camera.UniformCamera

	groups      map[string]*renderGroup
	submissions common.Memo[submissionCache]

	rebuildWorkers int
	rebuildPool    worker.DynamicWorkerPool
}

// Scene is the top of the draw hierarchy: named render groups plus one camera. It caches one submission
// per presentation target and rebuilds it whenever anything below it, or the camera, changes.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Camera returns the scene camera. Access invalidates the submission list and every group batch list,
	// since the caller may mutate the camera through the handle. Mutations through a retained handle do the same.
	//
	// Returns:
	//   - camera.UniformCamera: the camera
	Camera() camera.UniformCamera

	// CreateGroup builds a pipeline for the program pair and registers a group under name,
	// replacing any group of the same name.
	//
	// Parameters:
	//   - name: the group name
	//   - programs: the vertex and fragment program pair shared by the group's objects
	//   - format: the render target format
	//   - viewport: the viewport the pipeline draws into
	//   - options: pipeline options applied to the descriptor
	//
	// Returns:
	//   - RenderGroup: the new group
	//   - error: an error if the descriptor is invalid or the pipeline cannot be built
	CreateGroup(name string, programs shader.ProgramPair, format wgpu.TextureFormat, viewport common.Viewport, options ...pipeline.PipelineBuilderOption) (RenderGroup, error)

	// Group looks up a group by name.
	//
	// Parameters:
	//   - name: the group name
	//
	// Returns:
	//   - RenderGroup: the group
	//   - error: ErrUnknownGroup if no group has that name
	Group(name string) (RenderGroup, error)

	// RemoveGroup unregisters a group and releases its pipeline and meshes.
	//
	// Parameters:
	//   - name: the group name
	//
	// Returns:
	//   - error: ErrUnknownGroup if no group has that name
	RemoveGroup(name string) error

	// Groups returns the group names in ascending order.
	Groups() []string

	// SubmissionList returns one submission per target of targets, rebuilding every stale level below on a miss.
	// A list built for another target set generation is stale. The submissions must be treated as read-only.
	//
	// Parameters:
	//   - targets: the current target set
	//
	// Returns:
	//   - []*renderer.Submission: submission i is recorded into target i
	SubmissionList(targets renderer.TargetSet) []*renderer.Submission

	// RecreatePipelines rebuilds every group's pipeline for a new target format and viewport.
	//
	// Parameters:
	//   - format: the new render target format
	//   - viewport: the new viewport
	//
	// Returns:
	//   - error: the joined errors of every group that failed
	RecreatePipelines(format wgpu.TextureFormat, viewport common.Viewport) error

	// Valid reports whether the submission list cache is currently valid.
	Valid() bool

	// Stats returns the rebuild counters of every cache level.
	Stats() Stats

	// Release frees every group and stops the rebuild workers.
	Release()
}

var _ Scene = &scene{}

// NewScene creates a new empty Scene. The device is required and NewScene panics if it is nil.
//
// Parameters:
//   - name: the name of the scene
//   - device: creates pipelines and meshes for the scene's groups (must not be nil)
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, device Device, options ...SceneBuilderOption) Scene {
	if device == nil {
		panic("scene: NewScene requires a non-nil Device")
	}

	s := &scene{
		mu:             &sync.Mutex{},
		name:           name,
		device:         device,
		groups:         make(map[string]*renderGroup),
		rebuildWorkers: 1,
	}

	for _, option := range options {
		option(s)
	}

	if s.cam == nil {
		s.cam = camera.NewUniformCamera()
	}
	s.cam.SetOnChange(s.invalidateAll)

	// Initialize the rebuild pool after options so WithRebuildWorkers can override the default.
	if s.rebuildWorkers > 1 {
		s.rebuildPool = worker.NewDynamicWorkerPool(s.rebuildWorkers, 256, 1*time.Second)
	}

	return s
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Camera() camera.UniformCamera {
	s.invalidateAll()
	return s.cam
}

func (s *scene) CreateGroup(name string, programs shader.ProgramPair, format wgpu.TextureFormat, viewport common.Viewport, options ...pipeline.PipelineBuilderOption) (RenderGroup, error) {
	desc := pipeline.NewDescriptor(name, programs, format, viewport, options...)
	g, err := newRenderGroup(name, s.device, desc, s.invalidate)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	old := s.groups[name]
	s.groups[name] = g
	s.submissions.Invalidate()
	s.mu.Unlock()

	if old != nil {
		old.detach()
		old.release()
	}
	return g, nil
}

func (s *scene) Group(name string) (RenderGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
	}
	return g, nil
}

func (s *scene) RemoveGroup(name string) error {
	s.mu.Lock()
	g, ok := s.groups[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownGroup, name)
	}
	delete(s.groups, name)
	s.submissions.Invalidate()
	s.mu.Unlock()

	g.detach()
	g.release()
	return nil
}

func (s *scene) Groups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.groups)
}

func (s *scene) SubmissionList(targets renderer.TargetSet) []*renderer.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.submissions.Peek(); ok && cached.generation != targets.Generation {
		s.submissions.Invalidate()
	}
	return s.submissions.Get(func() submissionCache {
		return s.buildSubmissions(targets)
	}).submissions
}

// buildSubmissions assembles the per-target submissions from every group's batch list.
// Caller must hold the mutex.
func (s *scene) buildSubmissions(targets renderer.TargetSet) submissionCache {
	if s.rebuildPool != nil {
		s.rebuildStaleObjects()
	}

	payload := s.cam.Payload()

	var draws []renderer.Draw
	for _, name := range sortedKeys(s.groups) {
		list := s.groups[name].BatchList()
		for _, batch := range list.Batches {
			draws = append(draws, renderer.Draw{
				Pipeline: list.Pipeline,
				Batch:    batch,
			})
		}
	}

	submissions := make([]*renderer.Submission, targets.Count)
	for i := range submissions {
		submissions[i] = &renderer.Submission{
			Target:     i,
			Generation: targets.Generation,
			Camera:     payload,
			Draws:      draws,
		}
	}
	return submissionCache{
		generation:  targets.Generation,
		submissions: submissions,
	}
}

// rebuildStaleObjects rebuilds every stale object batch on the worker pool and blocks until all are done.
// Caller must hold the mutex.
func (s *scene) rebuildStaleObjects() {
	var stale []*drawableObject
	for _, name := range sortedKeys(s.groups) {
		stale = append(stale, s.groups[name].staleObjects()...)
	}
	if len(stale) < 2 {
		return
	}

	// A WaitGroup provides the barrier; pool.Wait() blocks until workers go idle which is unsuitable here.
	var wg sync.WaitGroup
	for i, obj := range stale {
		wg.Add(1)
		o := obj
		s.rebuildPool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				return o.DrawBatch(), nil
			},
		})
	}
	wg.Wait()
}

func (s *scene) RecreatePipelines(format wgpu.TextureFormat, viewport common.Viewport) error {
	s.mu.Lock()
	groups := make([]*renderGroup, 0, len(s.groups))
	for _, name := range sortedKeys(s.groups) {
		groups = append(groups, s.groups[name])
	}
	s.mu.Unlock()

	var errs []error
	for _, g := range groups {
		if err := g.RecreatePipeline(format, viewport); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *scene) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submissions.Valid()
}

func (s *scene) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		CameraBuilds:     s.cam.Builds(),
		SubmissionBuilds: s.submissions.Builds(),
		Groups:           len(s.groups),
	}
	for _, g := range s.groups {
		stats.BatchListBuilds += g.Builds()
		stats.DrawBatchBuilds += g.drawBatchBuilds()
		for _, name := range g.Objects() {
			obj, err := g.Object(name)
			if err != nil {
				continue
			}
			stats.Objects++
			stats.Instances += obj.InstanceCount()
		}
	}
	return stats
}

func (s *scene) Release() {
	s.cam.SetOnChange(nil)

	s.mu.Lock()
	groups := s.groups
	s.groups = make(map[string]*renderGroup)
	s.submissions.Invalidate()
	s.mu.Unlock()

	for _, g := range groups {
		g.detach()
		g.release()
	}
	if s.rebuildPool != nil {
		s.rebuildPool.Stop()
		s.rebuildPool = nil
	}
}

// invalidate marks the submission list stale.
func (s *scene) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions.Invalidate()
}

// invalidateAll marks the submission list and every group batch list stale. Object batches are untouched.
func (s *scene) invalidateAll() {
	s.mu.Lock()
	s.submissions.Invalidate()
	groups := make([]*renderGroup, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, g)
	}
	s.mu.Unlock()

	for _, g := range groups {
		g.invalidate()
	}
}
