// Package draw accumulates per-frame draw requests and groups them into
// instanced batches.
package draw

import (
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/rendox/internal/engine/guard"
	"github.com/Faultbox/rendox/internal/engine/resource"
	"github.com/Faultbox/rendox/internal/logger"
)

// White is the color used when a submission supplies none.
var White = mgl32.Vec3{1, 1, 1}

// Resolver maps a descriptor to materialized resources.
// *resource.Registry implements it.
type Resolver interface {
	Resolve(md resource.MeshDescriptor) (*resource.Mesh, *resource.Material, *resource.Shader, error)
}

type entry struct {
	colors     []mgl32.Vec3
	transforms []mgl32.Mat4
}

// Queue groups submissions by descriptor. Colors and transforms of one
// descriptor are kept as parallel arrays in submission order.
type Queue struct {
	busy    guard.Flag
	log     *zap.Logger
	order   []resource.MeshDescriptor
	entries map[resource.MeshDescriptor]*entry
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		log:     logger.Named("draw"),
		entries: make(map[resource.MeshDescriptor]*entry),
	}
}

func (q *Queue) acquire(op string, md resource.MeshDescriptor) bool {
	if q.busy.TryAcquire() {
		return true
	}
	q.log.Warn("draw queue busy, submission dropped",
		zap.String("op", op),
		zap.String("mesh", md.Name),
	)
	return false
}

func (q *Queue) entry(md resource.MeshDescriptor) *entry {
	e, ok := q.entries[md]
	if !ok {
		e = &entry{}
		q.entries[md] = e
		q.order = append(q.order, md)
	}
	return e
}

// Submit adds one instance of md. It reports false when the queue is being
// flushed by the caller's own frame.
func (q *Queue) Submit(md resource.MeshDescriptor, color mgl32.Vec3, transform mgl32.Mat4) bool {
	if !q.acquire("Submit", md) {
		return false
	}
	defer q.busy.Release()

	e := q.entry(md)
	e.colors = append(e.colors, color)
	e.transforms = append(e.transforms, transform)
	return true
}

// SubmitMany adds one instance of md per transform. Colors are cycled to
// match the transform count; with no colors every instance is White.
func (q *Queue) SubmitMany(md resource.MeshDescriptor, transforms []mgl32.Mat4, colors []mgl32.Vec3) bool {
	if !q.acquire("SubmitMany", md) {
		return false
	}
	defer q.busy.Release()

	if len(transforms) == 0 {
		return true
	}
	if len(colors) == 0 {
		colors = []mgl32.Vec3{White}
	}

	e := q.entry(md)
	for i, t := range transforms {
		e.colors = append(e.colors, colors[i%len(colors)])
		e.transforms = append(e.transforms, t)
	}
	return true
}

// Len returns the number of distinct descriptors queued. It reports 0
// while a flush is in progress.
func (q *Queue) Len() int {
	if !q.busy.TryAcquire() {
		return 0
	}
	defer q.busy.Release()
	return len(q.order)
}

// Instances returns the total number of queued instances, or 0 while a
// flush is in progress.
func (q *Queue) Instances() int {
	if !q.busy.TryAcquire() {
		return 0
	}
	defer q.busy.Release()

	n := 0
	for _, e := range q.entries {
		n += len(e.transforms)
	}
	return n
}

// Flush resolves every queued descriptor and returns one batch per
// descriptor, in order of first submission. Descriptors that do not
// resolve are logged and dropped. The queue is empty afterwards.
func (q *Queue) Flush(r Resolver) []Batch {
	if !q.busy.TryAcquire() {
		q.log.Warn("draw queue busy, flush skipped")
		return nil
	}
	defer q.busy.Release()

	order, entries := q.order, q.entries
	q.order = nil
	q.entries = make(map[resource.MeshDescriptor]*entry, len(entries))

	batches := make([]Batch, 0, len(order))
	for _, md := range order {
		e := entries[md]
		mesh, material, shader, err := r.Resolve(md)
		if err != nil {
			q.log.Warn("draw call dropped",
				zap.String("mesh", md.Name),
				zap.Uint32("slot", uint32(md.Mesh)),
				zap.Int("instances", len(e.transforms)),
				zap.Error(err),
			)
			continue
		}
		batches = append(batches, Batch{
			Descriptor: md,
			Mesh:       mesh,
			Material:   material,
			Shader:     shader,
			Colors:     e.colors,
			Transforms: e.transforms,
		})
	}
	return batches
}
