package function

import "fmt"

// A registered serverless Function. Immutable for the duration of a dispatch
// decision.
type Function struct {
	Name      string
	Namespace string
	Runtime   string  // example: python310
	MemoryMB  int64   // MB
	CPUDemand float64 // 1.0 -> 1 core
	GPUDemand float64 // fraction of a GPU, 0 if CPU-only
	Handler   string  // example: "module.function_name"
}

// FQDN returns the fully-qualified identity used as the dispatch key.
func (f *Function) FQDN() string {
	if f.Namespace == "" {
		return f.Name
	}
	return fmt.Sprintf("%s.%s", f.Namespace, f.Name)
}

func (f *Function) String() string {
	return f.FQDN()
}
