package dispatch

import (
	"math/rand"
	"testing"
	"time"

	"github.com/serverledge-faas/gpu-dispatch/internal/clock"
	"github.com/serverledge-faas/gpu-dispatch/internal/compute"
	"github.com/serverledge-faas/gpu-dispatch/internal/config"
	"github.com/stretchr/testify/assert"
)

const wrTrials = 10000

func newTestWeightedRandom(ctx *Context, seed int64) (*WeightedRandom, *clock.Fake) {
	fake := clock.NewFake(time.Now())
	rng := rand.New(rand.NewSource(seed))
	return newWeightedRandom(ctx, &recordingSink{}, fake, rng.Float64), fake
}

func TestWeightedRandomAlwaysGpu(t *testing.T) {
	config.Set(config.DISPATCHER_GPU_PROBABILITY, 1.0)
	p, _ := newTestWeightedRandom(NewContext(), 1)

	f := testFunction("f")
	for i := 0; i < wrTrials; i++ {
		dev, load, est := p.Choose(f, "t")
		assert.Equal(t, compute.GPU, dev)
		assert.Equal(t, NoEstimate, load)
		assert.Equal(t, NoEstimate, est)
	}
}

func TestWeightedRandomAlwaysCpu(t *testing.T) {
	config.Set(config.DISPATCHER_GPU_PROBABILITY, 0.0)
	p, _ := newTestWeightedRandom(NewContext(), 1)

	f := testFunction("f")
	for i := 0; i < wrTrials; i++ {
		dev, _, _ := p.Choose(f, "t")
		assert.Equal(t, compute.CPU, dev)
	}
}

func TestWeightedRandomFraction(t *testing.T) {
	config.Set(config.DISPATCHER_GPU_PROBABILITY, 0.5)
	p, _ := newTestWeightedRandom(NewContext(), 42)

	f := testFunction("f")
	gpu := 0
	for i := 0; i < wrTrials; i++ {
		if dev, _, _ := p.Choose(f, "t"); dev == compute.GPU {
			gpu++
		}
	}
	fraction := float64(gpu) / float64(wrTrials)
	assert.InDelta(t, 0.5, fraction, 0.02)
}

func TestWeightedRandomDefaultProbability(t *testing.T) {
	// unset key: the baseline prefers the GPU with p = 0.85
	config.Set(config.DISPATCHER_GPU_PROBABILITY, nil)
	p, _ := newTestWeightedRandom(NewContext(), 7)

	f := testFunction("f")
	gpu := 0
	for i := 0; i < wrTrials; i++ {
		if dev, _, _ := p.Choose(f, "t"); dev == compute.GPU {
			gpu++
		}
	}
	fraction := float64(gpu) / float64(wrTrials)
	assert.InDelta(t, 0.85, fraction, 0.02)
}

func TestWeightedRandomRecordsContext(t *testing.T) {
	config.Set(config.DISPATCHER_GPU_PROBABILITY, 1.0)
	ctx := NewContext()
	p, fake := newTestWeightedRandom(ctx, 1)

	f := testFunction("f")
	dev, _, _ := p.Choose(f, "t1")
	entry, found := ctx.Get(f.FQDN())
	assert.True(t, found)
	assert.Equal(t, dev, entry.Device)
	assert.Equal(t, fake.Now(), entry.Time)
}
