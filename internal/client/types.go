package client

import (
	"github.com/serverledge-faas/gpu-dispatch/internal/compute"
)

// DispatchRequest is an external dispatch query for a function (from API or CLI)
type DispatchRequest struct {
	Tid string `json:"tid,omitempty"`
}

// DispatchResponse reports the routing decision for one invocation.
type DispatchResponse struct {
	Function      string          `json:"function"`
	Tid           string          `json:"tid"`
	Device        compute.Compute `json:"device"`
	DeviceName    string          `json:"deviceName"`
	Load          float64         `json:"load"`
	EstCompletion float64         `json:"estCompletion"`
}

// FunctionCreationRequest registers or updates a function definition.
type FunctionCreationRequest struct {
	Name      string  `json:"name"`
	Namespace string  `json:"namespace,omitempty"`
	Runtime   string  `json:"runtime"`
	MemoryMB  int64   `json:"memoryMB"`
	CPUDemand float64 `json:"cpuDemand"`
	GPUDemand float64 `json:"gpuDemand"`
	Handler   string  `json:"handler"`
}
