package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/printbed/vitrine/server/containers"
	"github.com/printbed/vitrine/server/core"
	"github.com/printbed/vitrine/server/mesh"
	"github.com/printbed/vitrine/server/pngenc"
	"github.com/printbed/vitrine/server/raster"
	"github.com/printbed/vitrine/server/storage"
)

// DefaultQueueCapacity bounds the number of pending thumbnail requests.
const DefaultQueueCapacity = 128

// How long the drain loop sleeps when nothing is queued.
const idlePause = 50 * time.Millisecond

// Scheduler drains the bounded job queue one job at a time, driving each
// through normalize, bounds scan, render and encode. The framebuffer is
// reused across jobs; at most one job is ever in flight, which is what makes
// that sharing safe.
type Scheduler struct {
	volume storage.Volume
	yield  core.YieldFunc
	fb     *raster.FrameBuffer
	clock  *core.Clock

	mu       sync.Mutex
	queue    *containers.RingQueue[string]
	progress ProgressRecord
}

func NewScheduler(volume storage.Volume, capacity int, yield core.YieldFunc) *Scheduler {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if yield == nil {
		yield = core.Yield
	}
	return &Scheduler{
		volume: volume,
		yield:  yield,
		fb:     raster.NewFrameBuffer(),
		clock:  core.NewClock(),
		queue:  containers.NewRingQueue[string](capacity),
	}
}

// Enqueue canonicalizes the path and appends it to the queue. Best effort:
// when the queue is full the request is dropped without an error to the
// producer.
func (s *Scheduler) Enqueue(path string) {
	canon := mesh.CanonicalPath(path)

	s.mu.Lock()
	err := s.queue.Enqueue(canon)
	s.mu.Unlock()

	if err != nil {
		core.LogDebug("queue full, dropping %s", canon)
		return
	}
	core.LogDebug("queued thumbnail for %s", canon)
}

// Pending returns the number of queued requests.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Snapshot returns a copy of the current progress state.
func (s *Scheduler) Snapshot() ProgressRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Run drains the queue until the context is done.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		if !s.RunOne() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idlePause):
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// RunOne dequeues a single job and drives it through the whole pipeline.
// Returns false when the queue was empty. The first failing stage aborts the
// job; nothing downstream runs and the condition is only logged.
func (s *Scheduler) RunOne() bool {
	s.mu.Lock()
	path, err := s.queue.Dequeue()
	s.mu.Unlock()
	if err != nil {
		return false
	}

	job := newJob(path)
	s.clock.Start()

	if err := s.runPipeline(job); err != nil {
		job.State = StateFailed
		core.LogError("thumbnail %s (job %s): %s", job.MeshPath, job.ID, err.Error())
	} else {
		job.State = StateDone
		s.clock.Update()
		core.LogInfo("thumbnail %s -> %s (%.2fs)", job.MeshPath, job.ThumbPath, s.clock.ElapsedSeconds())
	}

	s.setIdle()
	return true
}

func (s *Scheduler) runPipeline(job *Job) error {
	job.State = StateNormalizing
	s.publish(job, 0)
	if err := mesh.Normalize(s.volume, job.MeshPath, s.yield); err != nil {
		return err
	}
	s.publish(job, pctNormalizeEnd)

	job.State = StateBoundsScan
	bounds, err := mesh.ScanBounds(s.volume, job.MeshPath, s.yield)
	if err != nil {
		return err
	}
	s.publish(job, pctBoundsEnd)

	job.State = StateRendering
	renderProgress := func(p int) {
		s.publish(job, pctBoundsEnd+p*(pctRenderEnd-pctBoundsEnd)/100)
	}
	if err := raster.Render(s.volume, job.MeshPath, bounds, s.fb, renderProgress, s.yield); err != nil {
		return err
	}
	s.publish(job, pctRenderEnd)

	job.State = StateEncoding
	if err := pngenc.EncodeFile(s.volume, job.ThumbPath, s.fb); err != nil {
		return err
	}
	s.publish(job, pctDone)
	return nil
}

func (s *Scheduler) publish(job *Job, percent int) {
	s.mu.Lock()
	s.progress = ProgressRecord{
		Busy:    true,
		Task:    "thumbnail",
		File:    job.MeshPath,
		Percent: percent,
		Status:  job.State.String(),
		JobID:   job.ID.String(),
	}
	s.mu.Unlock()
}

func (s *Scheduler) setIdle() {
	s.mu.Lock()
	s.progress = ProgressRecord{}
	s.mu.Unlock()
}
