package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/serverledge-faas/gpu-dispatch/internal/config"
	"github.com/serverledge-faas/gpu-dispatch/internal/dispatch"
	"github.com/serverledge-faas/gpu-dispatch/internal/metrics"
	"github.com/serverledge-faas/gpu-dispatch/internal/queueing"
)

var dispatcher dispatch.Policy
var queues queueing.QueueMap
var policyName string

// Init wires the active dispatch policy and queues into the API handlers.
func Init(p dispatch.Policy, q queueing.QueueMap, policy string) {
	dispatcher = p
	queues = q
	policyName = policy
}

func StartAPIServer(e *echo.Echo) {
	e.Use(middleware.Recover())

	// Routes
	e.POST("/dispatch/:fun", DispatchFunction)
	e.POST("/create", CreateOrUpdateFunction)
	e.POST("/delete", DeleteFunction)
	e.GET("/function", GetFunctions)
	e.GET("/context/:fun", GetDispatchContext)
	e.GET("/status", GetServerStatus)

	if config.GetBool(config.METRICS_ENABLED, false) {
		e.GET("/metrics", func(c echo.Context) error {
			metrics.ScrapingHandler.ServeHTTP(c.Response(), c.Request())
			return nil
		})
	}

	// Start server
	portNumber := config.GetInt(config.API_PORT, 1323)
	e.HideBanner = true

	if err := e.Start(fmt.Sprintf(":%d", portNumber)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		e.Logger.Fatal("shutting down the server")
	}
}

// RegisterTerminationHandler shuts the server down cleanly on SIGINT.
func RegisterTerminationHandler(e *echo.Echo) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		sig := <-c
		fmt.Printf("Got %s signal. Terminating...\n", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
}
