package dispatch

import (
	"math/rand"

	"github.com/serverledge-faas/gpu-dispatch/internal/clock"
	"github.com/serverledge-faas/gpu-dispatch/internal/compute"
	"github.com/serverledge-faas/gpu-dispatch/internal/config"
	"github.com/serverledge-faas/gpu-dispatch/internal/function"
	"github.com/serverledge-faas/gpu-dispatch/internal/metrics"
)

// WeightedRandom is the baseline policy: route to the GPU with a configured
// probability, otherwise to the CPU. It computes no load or completion
// estimates and only records its outcome in the shared dispatch context.
type WeightedRandom struct {
	ctx   *Context
	clock clock.Clock
	sink  EventSink
	roll  func() float64 // uniform draw in [0,1), replaceable in tests
}

// NewWeightedRandom fails only when the system time source cannot be
// acquired.
func NewWeightedRandom(ctx *Context, sink EventSink) (*WeightedRandom, error) {
	clk, err := clock.NewSystem()
	if err != nil {
		return nil, err
	}
	return newWeightedRandom(ctx, sink, clk, rand.Float64), nil
}

func newWeightedRandom(ctx *Context, sink EventSink, clk clock.Clock, roll func() float64) *WeightedRandom {
	return &WeightedRandom{
		ctx:   ctx,
		clock: clk,
		sink:  sink,
		roll:  roll,
	}
}

// Choose implements Policy.
func (p *WeightedRandom) Choose(f *function.Function, tid string) (compute.Compute, float64, float64) {
	gpuProbability := config.GetFloat(config.DISPATCHER_GPU_PROBABILITY, 0.85)

	roll := p.roll()
	selected := compute.CPU
	if roll < gpuProbability {
		selected = compute.GPU
	}

	p.sink.Event("WR_DECIDE: output", map[string]interface{}{
		"tid":             tid,
		"fqdn":            f.FQDN(),
		"gpu_probability": gpuProbability,
		"roll":            roll,
		"device":          selected.String(),
	})
	metrics.AddDispatchDecision(f.FQDN(), selected.String(), "weightedrandom")

	p.ctx.SelectDeviceForFunction(f.FQDN(), selected, p.clock.Now())

	return selected, NoEstimate, NoEstimate
}
