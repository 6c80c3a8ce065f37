package api

import (
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/buger/jsonparser"
	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid"
	"github.com/serverledge-faas/gpu-dispatch/internal/client"
	"github.com/serverledge-faas/gpu-dispatch/internal/dispatch"
	"github.com/serverledge-faas/gpu-dispatch/internal/function"
	"github.com/serverledge-faas/gpu-dispatch/internal/node"
	"github.com/serverledge-faas/gpu-dispatch/internal/telemetry"
)

// DispatchFunction runs the active dispatch policy for a function and
// returns the routing decision to the enqueueing layer.
func DispatchFunction(c echo.Context) error {
	funName := c.Param("fun")
	f, ok := function.Get(funName)
	if !ok {
		log.Printf("Dropping dispatch request for unknown function '%s'", funName)
		return c.JSON(http.StatusNotFound, "function unknown")
	}

	// A transaction id may be supplied by the caller; otherwise we mint one.
	tid := ""
	if body, err := io.ReadAll(c.Request().Body); err == nil && len(body) > 0 {
		tid, _ = jsonparser.GetString(body, "tid")
	}
	if tid == "" {
		tid = shortuuid.New()
	}

	if telemetry.DefaultTracer != nil {
		_, span := telemetry.DefaultTracer.Start(c.Request().Context(), "dispatch")
		defer span.End()
	}

	device, load, est := dispatcher.Choose(f, tid)

	// Record the job against the chosen queue so that later estimates see
	// the admitted backlog.
	if q, found := queues.Get(device); found {
		if !q.Enqueue(f, tid) {
			log.Printf("[%s] Queue for %s is full", tid, device)
		}
	}

	return c.JSON(http.StatusOK, client.DispatchResponse{
		Function:      f.FQDN(),
		Tid:           tid,
		Device:        device,
		DeviceName:    device.String(),
		Load:          load,
		EstCompletion: est,
	})
}

func CreateOrUpdateFunction(c echo.Context) error {
	var req client.FunctionCreationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, "invalid function specification")
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, "function name is mandatory")
	}

	f := function.Function{
		Name:      req.Name,
		Namespace: req.Namespace,
		Runtime:   req.Runtime,
		MemoryMB:  req.MemoryMB,
		CPUDemand: req.CPUDemand,
		GPUDemand: req.GPUDemand,
		Handler:   req.Handler,
	}
	if err := f.Save(); err != nil {
		log.Printf("Could not save function %s: %v", f.FQDN(), err)
		return c.JSON(http.StatusServiceUnavailable, "could not save the function")
	}
	return c.JSON(http.StatusOK, fmt.Sprintf("created %s", f.FQDN()))
}

func DeleteFunction(c echo.Context) error {
	var req client.FunctionCreationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, "invalid request")
	}
	f := function.Function{Name: req.Name, Namespace: req.Namespace}
	if err := function.Delete(f.FQDN()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, "could not delete the function")
	}
	return c.JSON(http.StatusOK, fmt.Sprintf("deleted %s", f.FQDN()))
}

func GetFunctions(c echo.Context) error {
	return c.JSON(http.StatusOK, function.List())
}

// GetDispatchContext returns the last recorded decision for a function.
func GetDispatchContext(c echo.Context) error {
	funName := c.Param("fun")
	entry, found := dispatch.SharedContext.Get(funName)
	if !found {
		return c.JSON(http.StatusNotFound, "no decision recorded yet")
	}
	return c.JSON(http.StatusOK, entry)
}

func GetServerStatus(c echo.Context) error {
	lengths := make(map[string]int)
	for device, q := range queues {
		lengths[device.String()] = q.Len()
	}
	return c.JSON(http.StatusOK, node.StatusInformation{
		NodeID:       node.LocalNode.String(),
		LoadAvg:      node.LoadAverages(),
		QueueLengths: lengths,
		Policy:       policyName,
	})
}
