package jobs

import (
	"github.com/google/uuid"

	"github.com/printbed/vitrine/server/mesh"
)

// State tracks a job through the pipeline.
type State int

const (
	StateQueued State = iota
	StateNormalizing
	StateBoundsScan
	StateRendering
	StateEncoding
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateNormalizing:
		return "normalizing"
	case StateBoundsScan:
		return "scanning bounds"
	case StateRendering:
		return "rendering"
	case StateEncoding:
		return "encoding"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Job is one thumbnail request in flight. Created on dequeue, gone after one
// pipeline pass; never persisted.
type Job struct {
	ID        uuid.UUID
	MeshPath  string
	ThumbPath string
	State     State
}

func newJob(meshPath string) *Job {
	return &Job{
		ID:        uuid.New(),
		MeshPath:  meshPath,
		ThumbPath: mesh.ThumbnailPath(meshPath),
		State:     StateQueued,
	}
}
