package dispatch

import (
	"log"

	"github.com/serverledge-faas/gpu-dispatch/internal/characteristics"
	"github.com/serverledge-faas/gpu-dispatch/internal/config"
	"github.com/serverledge-faas/gpu-dispatch/internal/queueing"
)

// CreatePolicy builds the dispatch policy selected in the configuration.
func CreatePolicy(cmap *characteristics.CharMap, queues queueing.QueueMap) (Policy, error) {
	name := config.GetString(config.DISPATCHER_POLICY, "mice")
	log.Printf("Using dispatch policy: %s", name)

	switch name {
	case "weightedrandom":
		return NewWeightedRandom(SharedContext, LogSink{})
	case "mice":
		fallthrough
	default:
		return NewMice(cmap, queues, LogSink{})
	}
}
