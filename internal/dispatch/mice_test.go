package dispatch

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/serverledge-faas/gpu-dispatch/internal/characteristics"
	"github.com/serverledge-faas/gpu-dispatch/internal/clock"
	"github.com/serverledge-faas/gpu-dispatch/internal/compute"
	"github.com/serverledge-faas/gpu-dispatch/internal/config"
	"github.com/serverledge-faas/gpu-dispatch/internal/function"
	"github.com/serverledge-faas/gpu-dispatch/internal/queueing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQueue struct {
	est  float64
	load float64
}

func (q *stubQueue) EstCompletionTime(f *function.Function, tid string) (float64, float64) {
	return q.est, q.load
}
func (q *stubQueue) Enqueue(f *function.Function, tid string) bool { return true }
func (q *stubQueue) Complete(execTime float64)                     {}
func (q *stubQueue) Len() int                                      { return 0 }

type recordedEvent struct {
	name   string
	fields map[string]interface{}
}

type recordingSink struct {
	mu     sync.Mutex
	events []recordedEvent
	warns  []recordedEvent
}

func (s *recordingSink) Event(name string, fields map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{name: name, fields: fields})
}

func (s *recordingSink) Warn(name string, fields map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warns = append(s.warns, recordedEvent{name: name, fields: fields})
}

func (s *recordingSink) countEvents(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.name == name {
			n++
		}
	}
	return n
}

const epochEventName = "MICE_EPOCH: threshold_update"

func setMiceConfig(tau0 float64, m int, epsilon float64, alpha float64) {
	config.Set(config.DISPATCHER_MICE_TAU0, tau0)
	config.Set(config.DISPATCHER_MICE_EPOCH, m)
	config.Set(config.DISPATCHER_MICE_EPSILON, epsilon)
	config.Set(config.DISPATCHER_MICE_ALPHA, alpha)
}

func testFunction(name string) *function.Function {
	return &function.Function{Name: name, Runtime: "python310", MemoryMB: 128}
}

func TestMiceEstimatorNumericExample(t *testing.T) {
	setMiceConfig(10.0, 100, 0.1, 0.8)
	cmap := characteristics.New(characteristics.DefaultWindow)
	cmap.Update("f", characteristics.EstGpu, 5.0)
	cmap.Update("f", characteristics.E2EGpu, 6.0)

	sink := &recordingSink{}
	p := newMice(cmap, queueing.QueueMap{}, sink, clock.NewFake(time.Now()))

	xhat, z := p.gpuEstimate("f", 5.0)
	assert.InDelta(t, 1.0, z, 1e-9)
	assert.InDelta(t, 4.2, xhat, 1e-9)

	// the filtered estimate must be persisted for the next decision
	assert.InDelta(t, (5.0+4.2)/2, cmap.GetAvg("f", characteristics.EstGpu), 1e-9)
}

func TestMiceJobSizeFallbackChain(t *testing.T) {
	setMiceConfig(10.0, 100, 0.1, 0.8)
	cmap := characteristics.New(characteristics.DefaultWindow)
	sink := &recordingSink{}
	p := newMice(cmap, queueing.QueueMap{}, sink, clock.NewFake(time.Now()))

	// no filtered estimate, no recorded average: conservative 1.0
	assert.Equal(t, 1.0, p.jobSize("unknown", 0.0))

	// a recorded raw GPU execution time takes precedence over the fallback
	cmap.Update("g", characteristics.GpuExecTime, 2.5)
	assert.Equal(t, 2.5, p.jobSize("g", 0.0))

	// a usable filtered estimate wins
	assert.Equal(t, 0.7, p.jobSize("g", 0.7))
}

func TestMiceRoutingDeterminism(t *testing.T) {
	setMiceConfig(10.0, 100, 0.1, 0.8)
	cmap := characteristics.New(characteristics.DefaultWindow)
	sink := &recordingSink{}
	queues := queueing.QueueMap{
		compute.GPU: &stubQueue{est: 5.0, load: 2.0},
		compute.CPU: &stubQueue{est: 8.0, load: 3.0},
	}
	p := newMice(cmap, queues, sink, clock.NewFake(time.Now()))

	// empty char map and raw estimate 5.0: xhat = 0.8*5 = 4 < tau
	dev, load, est := p.Choose(testFunction("small"), "t1")
	assert.Equal(t, compute.GPU, dev)
	assert.Equal(t, 2.0, load)
	assert.Equal(t, 5.0, est)

	// raw estimate 20.0 gives size 16 >= tau: CPU
	queues[compute.GPU] = &stubQueue{est: 20.0, load: 2.0}
	dev, load, est = p.Choose(testFunction("large"), "t2")
	assert.Equal(t, compute.CPU, dev)
	assert.Equal(t, 3.0, load)
	assert.Equal(t, 8.0, est)
}

func TestMiceMissingGpuQueueForcesCpu(t *testing.T) {
	setMiceConfig(10.0, 100, 0.1, 0.8)
	cmap := characteristics.New(characteristics.DefaultWindow)
	sink := &recordingSink{}
	queues := queueing.QueueMap{
		compute.CPU: &stubQueue{est: 8.0, load: 3.0},
	}
	p := newMice(cmap, queues, sink, clock.NewFake(time.Now()))

	// a tiny job still goes to the CPU when no GPU queue exists
	cmap.Update("f", characteristics.EstGpu, 0.01)
	cmap.Update("f", characteristics.E2EGpu, 0.01)
	dev, load, est := p.Choose(testFunction("f"), "t1")
	assert.Equal(t, compute.CPU, dev)
	assert.Equal(t, 3.0, load)
	assert.Equal(t, 8.0, est)

	require.Len(t, sink.warns, 1)
	assert.Equal(t, "MICE_WARN: gpu_queue_missing", sink.warns[0].name)

	// the job size is still accounted, against the CPU accumulator
	p.mu.Lock()
	assert.Zero(t, p.state.gpuWork)
	assert.Greater(t, p.state.cpuWork, 0.0)
	assert.Equal(t, uint64(1), p.state.count)
	p.mu.Unlock()
}

func TestMiceMissingBothQueuesStillDecides(t *testing.T) {
	setMiceConfig(10.0, 100, 0.1, 0.8)
	cmap := characteristics.New(characteristics.DefaultWindow)
	sink := &recordingSink{}
	p := newMice(cmap, queueing.QueueMap{}, sink, clock.NewFake(time.Now()))

	dev, load, est := p.Choose(testFunction("f"), "t1")
	assert.Equal(t, compute.CPU, dev)
	assert.Equal(t, NoEstimate, load)
	assert.Equal(t, NoEstimate, est)
	assert.Len(t, sink.warns, 2)
}

func TestMiceEpochAtomicity(t *testing.T) {
	setMiceConfig(10.0, 3, 0.1, 0.8)
	cmap := characteristics.New(characteristics.DefaultWindow)
	sink := &recordingSink{}
	queues := queueing.QueueMap{
		compute.GPU: &stubQueue{est: 1.0, load: 0.0},
		compute.CPU: &stubQueue{est: 1.0, load: 0.0},
	}
	fake := clock.NewFake(time.Now())
	p := newMice(cmap, queues, sink, fake)
	fake.Advance(time.Second)

	for i := 0; i < 3; i++ {
		p.Choose(testFunction(fmt.Sprintf("f%d", i)), fmt.Sprintf("t%d", i))
	}

	// exactly one threshold adjustment, accumulators reset
	assert.Equal(t, 1, sink.countEvents(epochEventName))
	p.mu.Lock()
	assert.Zero(t, p.state.gpuWork)
	assert.Zero(t, p.state.cpuWork)
	assert.Zero(t, p.state.count)
	p.mu.Unlock()

	// the next decision does not close another epoch
	p.Choose(testFunction("f"), "t")
	assert.Equal(t, 1, sink.countEvents(epochEventName))
}

func TestMiceEpochFreshnessGuard(t *testing.T) {
	setMiceConfig(10.0, 2, 0.1, 0.8)
	cmap := characteristics.New(characteristics.DefaultWindow)
	sink := &recordingSink{}
	queues := queueing.QueueMap{compute.GPU: &stubQueue{est: 1.0}}
	fake := clock.NewFake(time.Now())
	p := newMice(cmap, queues, sink, fake)

	// with a frozen clock the epoch cannot close even at count >= m
	for i := 0; i < 5; i++ {
		p.Choose(testFunction("f"), "t")
	}
	assert.Equal(t, 0, sink.countEvents(epochEventName))

	// once time advances, the first decision closes it
	fake.Advance(time.Second)
	p.Choose(testFunction("f"), "t")
	assert.Equal(t, 1, sink.countEvents(epochEventName))
}

func TestMiceAdjustmentDirection(t *testing.T) {
	// All work routed to the GPU with rho > 1: the target falls below
	// rho_gpu, so tau must tighten.
	setMiceConfig(10.0, 2, 0.1, 0.8)
	cmap := characteristics.New(characteristics.DefaultWindow)
	sink := &recordingSink{}
	queues := queueing.QueueMap{
		compute.GPU: &stubQueue{est: 2.0}, // size = 0.8*2 = 1.6 on first decision
		compute.CPU: &stubQueue{est: 2.0},
	}
	fake := clock.NewFake(time.Now())
	p := newMice(cmap, queues, sink, fake)
	fake.Advance(time.Second)

	p.Choose(testFunction("g1"), "t1")
	p.Choose(testFunction("g2"), "t2")
	assert.InDelta(t, 9.9, p.Tau(), 1e-9)

	// All work routed to the CPU with rho < 1: rho_gpu = 0 is below the
	// target, so tau must open up.
	setMiceConfig(0.0, 2, 0.1, 0.8)
	sink2 := &recordingSink{}
	queues2 := queueing.QueueMap{
		compute.GPU: &stubQueue{est: 0.1}, // size 0.08, but tau = 0 blocks the GPU
		compute.CPU: &stubQueue{est: 0.1},
	}
	fake2 := clock.NewFake(time.Now())
	p2 := newMice(cmap, queues2, sink2, fake2)
	fake2.Advance(time.Second)

	p2.Choose(testFunction("c1"), "t1")
	p2.Choose(testFunction("c2"), "t2")
	assert.InDelta(t, 0.1, p2.Tau(), 1e-9)
}

func TestMiceThresholdNeverNegative(t *testing.T) {
	// Heavy CPU-side load with tau = 0: every epoch tries to tighten an
	// already-zero threshold.
	setMiceConfig(0.0, 2, 0.1, 0.8)
	cmap := characteristics.New(characteristics.DefaultWindow)
	sink := &recordingSink{}
	queues := queueing.QueueMap{
		compute.GPU: &stubQueue{est: 5.0},
		compute.CPU: &stubQueue{est: 5.0},
	}
	fake := clock.NewFake(time.Now())
	p := newMice(cmap, queues, sink, fake)

	for i := 0; i < 10; i++ {
		fake.Advance(100 * time.Millisecond)
		p.Choose(testFunction("f"), "t")
		assert.GreaterOrEqual(t, p.Tau(), 0.0)
	}
}

func TestMiceConcurrentDecisions(t *testing.T) {
	setMiceConfig(10.0, 100, 0.1, 0.8)
	cmap := characteristics.New(characteristics.DefaultWindow)
	sink := &recordingSink{}
	queues := queueing.QueueMap{
		compute.GPU: &stubQueue{est: 1.0},
		compute.CPU: &stubQueue{est: 1.0},
	}
	clk, err := clock.NewSystem()
	require.NoError(t, err)
	p := newMice(cmap, queues, sink, clk)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			f := testFunction(fmt.Sprintf("f%d", g))
			for i := 0; i < 500; i++ {
				p.Choose(f, "t")
				if p.Tau() < 0 {
					t.Error("threshold went negative")
					return
				}
			}
		}(g)
	}
	wg.Wait()

	// 4000 decisions with m=100 can close at most 40 epochs, and the
	// freshness guard ensures no double-close.
	assert.LessOrEqual(t, sink.countEvents(epochEventName), 40)
	assert.GreaterOrEqual(t, p.Tau(), 0.0)
}
