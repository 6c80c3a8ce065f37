package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/serverledge-faas/gpu-dispatch/internal/api"
	"github.com/serverledge-faas/gpu-dispatch/internal/characteristics"
	"github.com/serverledge-faas/gpu-dispatch/internal/compute"
	"github.com/serverledge-faas/gpu-dispatch/internal/config"
	"github.com/serverledge-faas/gpu-dispatch/internal/dispatch"
	"github.com/serverledge-faas/gpu-dispatch/internal/metrics"
	"github.com/serverledge-faas/gpu-dispatch/internal/node"
	"github.com/serverledge-faas/gpu-dispatch/internal/queueing"
	"github.com/serverledge-faas/gpu-dispatch/internal/telemetry"

	_ "go.uber.org/automaxprocs"
)

func main() {
	configFileName := ""
	if len(os.Args) > 1 {
		configFileName = os.Args[1]
	}
	config.ReadConfiguration(configFileName)

	node.LocalNode = node.NewIdentifier("DEFAULT")
	log.Printf("Node identifier: %s", node.LocalNode)

	metrics.Init()

	if config.GetBool(config.TRACING_ENABLED, false) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		tracesOutfile := config.GetString(config.TRACING_OUTFILE, "")
		if len(tracesOutfile) < 1 {
			tracesOutfile = fmt.Sprintf("traces-%s.json", time.Now().Format("20060102-150405"))
		}
		log.Printf("Enabling tracing to %s\n", tracesOutfile)
		otelShutdown, err := telemetry.SetupOTelSDK(ctx, tracesOutfile)
		if err != nil {
			log.Fatal(err)
		}
		// Handle shutdown properly so nothing leaks.
		defer func() {
			err = errors.Join(err, otelShutdown(context.Background()))
		}()
	}

	cmap := characteristics.New(config.GetInt(config.CHARACTERISTICS_WINDOW, characteristics.DefaultWindow))

	queues := queueing.QueueMap{
		compute.CPU: queueing.NewWorkQueue(compute.CPU, cmap, config.GetInt(config.QUEUE_CPU_CONCURRENCY, 4)),
	}
	if config.GetBool(config.QUEUE_GPU_ENABLED, true) {
		queues[compute.GPU] = queueing.NewWorkQueue(compute.GPU, cmap, config.GetInt(config.QUEUE_GPU_CONCURRENCY, 1))
	} else {
		log.Println("GPU queue disabled: all invocations will be routed to the CPU")
	}

	policyName := config.GetString(config.DISPATCHER_POLICY, "mice")
	policy, err := dispatch.CreatePolicy(cmap, queues)
	if err != nil {
		log.Fatal(err)
	}

	if metrics.Enabled {
		go metrics.RunRetriever(cmap)
	}

	e := echo.New()
	api.RegisterTerminationHandler(e)
	api.Init(policy, queues, policyName)
	api.StartAPIServer(e)
}
