package dispatch

import (
	"github.com/serverledge-faas/gpu-dispatch/internal/compute"
	"github.com/serverledge-faas/gpu-dispatch/internal/function"
)

// NoEstimate marks a load or completion figure as unavailable. Real
// estimates are always nonnegative.
const NoEstimate = -1.0

// Policy decides which device class executes an invocation.
// Implementations must be safe for concurrent use by multiple
// invocation-handling goroutines.
type Policy interface {
	// Choose returns the selected device class together with the chosen
	// queue's current load and estimated completion time (NoEstimate when
	// unavailable). A decision is always produced; missing device queues
	// degrade the decision, they never fail it.
	Choose(f *function.Function, tid string) (compute.Compute, float64, float64)
}
