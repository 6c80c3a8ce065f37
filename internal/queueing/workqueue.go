package queueing

import (
	"math"
	"sync"

	"github.com/serverledge-faas/gpu-dispatch/internal/characteristics"
	"github.com/serverledge-faas/gpu-dispatch/internal/compute"
	"github.com/serverledge-faas/gpu-dispatch/internal/function"
)

const defaultCapacity = 1024

// pendingJob is a queued invocation along with the runtime we expected for
// it at enqueue time.
type pendingJob struct {
	fqdn        string
	tid         string
	expectedSec float64
}

// WorkQueue is a per-device-class FIFO of pending invocations. It does not
// execute anything; it tracks the backlog so that completion-time estimates
// reflect the work already admitted. Expected runtimes come from the
// characteristics store for the queue's device class.
type WorkQueue struct {
	sync.Mutex
	device      compute.Compute
	cmap        *characteristics.CharMap
	concurrency float64

	data        []pendingJob
	capacity    int
	head        int
	tail        int
	size        int
	pendingWork float64 // seconds of expected work currently queued
}

func NewWorkQueue(device compute.Compute, cmap *characteristics.CharMap, concurrency int) *WorkQueue {
	if concurrency < 1 {
		concurrency = 1
	}
	return &WorkQueue{
		device:      device,
		cmap:        cmap,
		concurrency: float64(concurrency),
		data:        make([]pendingJob, defaultCapacity),
		capacity:    defaultCapacity,
	}
}

// expectedRuntime looks up the average execution time recorded for the
// function on this device class; unknown functions get a conservative 1s.
func (q *WorkQueue) expectedRuntime(f *function.Function) float64 {
	metric := characteristics.CpuExecTime
	if q.device == compute.GPU {
		metric = characteristics.GpuExecTime
	}
	est := q.cmap.GetAvg(f.FQDN(), metric)
	if math.IsNaN(est) || math.IsInf(est, 0) || est <= 0 {
		return 1.0
	}
	return est
}

// EstCompletionTime implements DeviceQueue. The estimate is the backlog
// drained at the queue's parallelism plus the job's own expected runtime.
func (q *WorkQueue) EstCompletionTime(f *function.Function, tid string) (float64, float64) {
	runtime := q.expectedRuntime(f)

	q.Lock()
	defer q.Unlock()
	load := q.pendingWork
	est := load/q.concurrency + runtime
	return est, load
}

// Enqueue implements DeviceQueue. Returns false when the queue is full.
func (q *WorkQueue) Enqueue(f *function.Function, tid string) bool {
	runtime := q.expectedRuntime(f)

	q.Lock()
	defer q.Unlock()
	if q.size == q.capacity {
		return false
	}
	q.data[q.tail] = pendingJob{fqdn: f.FQDN(), tid: tid, expectedSec: runtime}
	q.tail = (q.tail + 1) % q.capacity
	q.size++
	q.pendingWork += runtime
	return true
}

// Complete implements DeviceQueue. The observed execution time is fed back
// into the characteristics store for future estimates.
func (q *WorkQueue) Complete(execTime float64) {
	q.Lock()
	if q.size == 0 {
		q.Unlock()
		return
	}
	job := q.data[q.head]
	q.head = (q.head + 1) % q.capacity
	q.size--
	q.pendingWork -= job.expectedSec
	if q.pendingWork < 0 {
		q.pendingWork = 0
	}
	q.Unlock()

	if execTime > 0 {
		metric := characteristics.CpuExecTime
		if q.device == compute.GPU {
			metric = characteristics.GpuExecTime
		}
		q.cmap.Update(job.fqdn, metric, execTime)
	}
}

// Len implements DeviceQueue.
func (q *WorkQueue) Len() int {
	q.Lock()
	defer q.Unlock()
	return q.size
}
