package compute

import "fmt"

// Compute identifies a device class on which an invocation can execute.
type Compute int64

const (
	CPU Compute = 0
	GPU Compute = 1
)

func (c Compute) String() string {
	switch c {
	case CPU:
		return "cpu"
	case GPU:
		return "gpu"
	}
	return fmt.Sprintf("compute(%d)", int64(c))
}

// Parse maps a configuration string to a Compute value.
func Parse(s string) (Compute, error) {
	switch s {
	case "cpu", "CPU":
		return CPU, nil
	case "gpu", "GPU":
		return GPU, nil
	}
	return CPU, fmt.Errorf("unknown compute class: %s", s)
}
