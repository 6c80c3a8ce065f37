package dispatch

import (
	"math"
	"sync"
	"time"

	"github.com/serverledge-faas/gpu-dispatch/internal/characteristics"
	"github.com/serverledge-faas/gpu-dispatch/internal/clock"
	"github.com/serverledge-faas/gpu-dispatch/internal/compute"
	"github.com/serverledge-faas/gpu-dispatch/internal/config"
	"github.com/serverledge-faas/gpu-dispatch/internal/function"
	"github.com/serverledge-faas/gpu-dispatch/internal/metrics"
	"github.com/serverledge-faas/gpu-dispatch/internal/queueing"
)

// miceState is mutated only inside the controller's critical section.
type miceState struct {
	tau        float64 // dispatch threshold: jobs with size < tau go to the GPU
	gpuWork    float64 // workload mass routed to the GPU during the current epoch
	cpuWork    float64 // workload mass routed to the CPU during the current epoch
	count      uint64  // decisions taken during the current epoch
	lastUpdate time.Time
}

// Mice is an adaptive-threshold dispatch policy: the GPU is the primary
// server and the CPU is backup. Jobs with estimated GPU execution time below
// τ go to the GPU, the rest to the CPU. Every m decisions τ is adjusted by
// ±ε to drive the observed GPU load toward ρ + α·ρ⁴·(1−ρ).
type Mice struct {
	queues queueing.QueueMap
	cmap   *characteristics.CharMap
	clock  clock.Clock
	sink   EventSink

	m       uint64  // epoch length (decisions per threshold update)
	epsilon float64 // threshold step size (seconds)
	alpha   float64 // α parameter of the target-load formula

	mu    sync.Mutex
	state miceState
}

// NewMice builds the policy with tuning constants read from configuration.
// It fails only when the system time source cannot be acquired.
func NewMice(cmap *characteristics.CharMap, queues queueing.QueueMap, sink EventSink) (*Mice, error) {
	clk, err := clock.NewSystem()
	if err != nil {
		return nil, err
	}
	return newMice(cmap, queues, sink, clk), nil
}

func newMice(cmap *characteristics.CharMap, queues queueing.QueueMap, sink EventSink, clk clock.Clock) *Mice {
	return &Mice{
		queues:  queues,
		cmap:    cmap,
		clock:   clk,
		sink:    sink,
		m:       uint64(config.GetInt(config.DISPATCHER_MICE_EPOCH, 100)),
		epsilon: config.GetFloat(config.DISPATCHER_MICE_EPSILON, 0.1),
		alpha:   config.GetFloat(config.DISPATCHER_MICE_ALPHA, 0.8),
		state: miceState{
			tau:        config.GetFloat(config.DISPATCHER_MICE_TAU0, 10.0),
			lastUpdate: clk.Now(),
		},
	}
}

func positiveFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// gpuEstimate refines the per-function GPU execution-time estimate with a
// Kalman-like blend of the previous estimate, the raw queue estimate and the
// residual against the observed end-to-end time. Returns the filtered
// estimate and the residual (diagnostic only).
func (p *Mice) gpuEstimate(fqdn string, rawEst float64) (float64, float64) {
	// Prior filtered estimate and prior observed E2E time, read from the
	// same snapshot of the store.
	prevEstRaw, prevE2eRaw := p.cmap.Get2(fqdn,
		characteristics.EstGpu, characteristics.Avg,
		characteristics.E2EGpu, characteristics.Avg)

	// Repair missing or non-positive inputs so we never learn sentinels.
	prevEst := prevEstRaw
	if !positiveFinite(prevEst) {
		prevEst = math.Max(rawEst, 0)
	}
	prevE2e := prevE2eRaw
	if !positiveFinite(prevE2e) {
		prevE2e = math.Max(rawEst, 0)
	}
	obs := rawEst
	if !positiveFinite(obs) {
		obs = prevEst
	}

	z := prevE2e - prevEst // residual
	const alpha = 0.1
	const beta = 0.7
	k := 1.0 - (beta + alpha) // = 0.2
	xhat := (alpha * prevEst) + (beta * obs) + k*z

	p.cmap.Update(fqdn, characteristics.EstGpu, xhat)

	p.sink.Event("MICE_EST: gpu_estimator_update", map[string]interface{}{
		"fqdn":     fqdn,
		"raw_est":  rawEst,
		"obs":      obs,
		"prev_est": prevEst,
		"prev_e2e": prevE2e,
		"residual": z,
		"xhat":     xhat,
		"alpha":    alpha,
		"beta":     beta,
		"k":        k,
	})

	return xhat, z
}

// jobSize resolves the job-size proxy used for routing: the filtered GPU
// estimate when usable, otherwise the recorded raw GPU execution time,
// otherwise a conservative 1.0.
func (p *Mice) jobSize(fqdn string, filteredGpuEst float64) float64 {
	if positiveFinite(filteredGpuEst) {
		return filteredGpuEst
	}
	est := p.cmap.GetAvg(fqdn, characteristics.GpuExecTime)
	if positiveFinite(est) {
		return est
	}
	return 1.0
}

// Choose implements Policy.
func (p *Mice) Choose(f *function.Function, tid string) (compute.Compute, float64, float64) {
	fqdn := f.FQDN()

	// Pull queue estimates for GPU/CPU.
	gpuEst, gpuLoad := NoEstimate, NoEstimate
	if q, ok := p.queues.Get(compute.GPU); ok {
		gpuEst, gpuLoad = q.EstCompletionTime(f, tid)
	} else {
		p.sink.Warn("MICE_WARN: gpu_queue_missing", map[string]interface{}{"tid": tid, "fqdn": fqdn})
		metrics.AddMissingQueue(compute.GPU.String())
	}
	cpuEst, cpuLoad := NoEstimate, NoEstimate
	if q, ok := p.queues.Get(compute.CPU); ok {
		cpuEst, cpuLoad = q.EstCompletionTime(f, tid)
	} else {
		p.sink.Warn("MICE_WARN: cpu_queue_missing", map[string]interface{}{"tid": tid, "fqdn": fqdn})
		metrics.AddMissingQueue(compute.CPU.String())
	}

	// Smooth the GPU execution-time estimate and resolve the job size.
	gpuEstExec, _ := p.gpuEstimate(fqdn, gpuEst)
	size := p.jobSize(fqdn, gpuEstExec)
	metrics.ObserveJobSize(fqdn, size)

	// GPU is always the first server in the sequential order for this
	// policy: route to GPU iff size < τ, else to CPU. Without a GPU queue,
	// fall back to the CPU regardless of size.
	now := p.clock.Now()
	_, gpuAvailable := p.queues.Get(compute.GPU)

	p.mu.Lock()
	useGpu := gpuAvailable && size < p.state.tau

	p.sink.Event("MICE_DECIDE: inputs", map[string]interface{}{
		"tid":                tid,
		"fqdn":               fqdn,
		"tau":                p.state.tau,
		"job_size":           size,
		"gpu_available":      gpuAvailable,
		"est_gpu_completion": gpuEst,
		"est_cpu_completion": cpuEst,
		"gpu_load":           gpuLoad,
		"cpu_load":           cpuLoad,
	})

	// Update per-epoch workload counters using the job-size proxy.
	if useGpu {
		p.state.gpuWork += size
	} else {
		p.state.cpuWork += size
	}
	p.state.count++

	// End of epoch? Adjust τ using the target-load rule ρ̃ = ρ + α·ρ⁴·(1−ρ).
	if p.state.count >= p.m && p.state.lastUpdate.Before(now) {
		dt := math.Max(now.Sub(p.state.lastUpdate).Seconds(), 1e-6)
		rhoGpu := p.state.gpuWork / dt
		rhoCpu := p.state.cpuWork / dt
		rho := rhoGpu + rhoCpu

		targetGpu := rho + p.alpha*math.Pow(rho, 4)*(1.0-rho)

		tauOld := p.state.tau
		if rhoGpu < targetGpu {
			p.state.tau += p.epsilon
		} else {
			p.state.tau = math.Max(p.state.tau-p.epsilon, 0)
		}

		p.sink.Event("MICE_EPOCH: threshold_update", map[string]interface{}{
			"tid":        tid,
			"epoch_m":    p.m,
			"dt":         dt,
			"rho_total":  rho,
			"rho_gpu":    rhoGpu,
			"rho_cpu":    rhoCpu,
			"alpha":      p.alpha,
			"epsilon":    p.epsilon,
			"target_gpu": targetGpu,
			"tau_old":    tauOld,
			"tau_new":    p.state.tau,
			"gpu_work":   p.state.gpuWork,
			"cpu_work":   p.state.cpuWork,
		})
		metrics.AddEpochUpdate(p.state.tau)

		p.state.gpuWork = 0
		p.state.cpuWork = 0
		p.state.count = 0
		p.state.lastUpdate = now
	}
	tauCurrent := p.state.tau
	p.mu.Unlock()

	dev, load, est := compute.CPU, cpuLoad, cpuEst
	if useGpu {
		dev, load, est = compute.GPU, gpuLoad, gpuEst
	}

	p.sink.Event("MICE_DECIDE: output", map[string]interface{}{
		"tid":                   tid,
		"fqdn":                  fqdn,
		"device":                dev.String(),
		"job_size":              size,
		"tau_current":           tauCurrent,
		"chosen_load":           load,
		"chosen_est_completion": est,
	})
	metrics.AddDispatchDecision(fqdn, dev.String(), "mice")

	return dev, load, est
}

// Tau returns the current threshold. Exposed for the status API.
func (p *Mice) Tau() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.tau
}
