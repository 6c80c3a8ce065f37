package queueing

import (
	"github.com/serverledge-faas/gpu-dispatch/internal/compute"
	"github.com/serverledge-faas/gpu-dispatch/internal/function"
)

// DeviceQueue is the handle a dispatch policy holds for one device class.
type DeviceQueue interface {
	// EstCompletionTime returns the estimated completion time (seconds) for
	// the given function if enqueued now, and the queue's current load
	// (seconds of pending work).
	EstCompletionTime(f *function.Function, tid string) (float64, float64)
	// Enqueue records a job as pending on this queue.
	Enqueue(f *function.Function, tid string) bool
	// Complete removes the oldest pending job and reports its execution time.
	Complete(execTime float64)
	// Len returns the number of pending jobs.
	Len() int
}

// QueueMap holds the available device queues. A missing entry means the
// device class is not available on this node.
type QueueMap map[compute.Compute]DeviceQueue

func (m QueueMap) Get(c compute.Compute) (DeviceQueue, bool) {
	q, found := m[c]
	return q, found
}
