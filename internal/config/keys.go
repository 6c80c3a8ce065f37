package config

// Etcd server hostname
const ETCD_ADDRESS = "etcd.address"

// exposed port for worker APIs
const API_PORT = "api.port"
const API_IP = "api.ip"

// enable metrics system
const METRICS_ENABLED = "metrics.enabled"

// Port used by Prometheus server
const METRICS_PROMETHEUS_PORT = "metrics.prometheus.port"

// Prometheus IP address / hostname
const METRICS_PROMETHEUS_HOST = "metrics.prometheus.host"

// Interval (in seconds) for metrics retriever
const METRICS_RETRIEVER_INTERVAL = "metrics.retriever.interval"

// Enables tracing
const TRACING_ENABLED = "tracing.enabled"

// Custom output file for traces
const TRACING_OUTFILE = "tracing.outfile"

// default policy is to persist registered functions on etcd (boolean).
// Use false in localonly deployments
const REGISTRY_PERSISTENCE = "registry.persistence"

// Dispatch policy to use
// Possible values: "mice", "weightedrandom"
const DISPATCHER_POLICY = "dispatcher.policy"

// Probability of selecting the GPU in the weighted-random policy
const DISPATCHER_GPU_PROBABILITY = "dispatcher.gpu.probability"

// Initial GPU-admission threshold (seconds) for the Mice policy
const DISPATCHER_MICE_TAU0 = "dispatcher.mice.tau0"

// Number of dispatch decisions per threshold-tuning epoch
const DISPATCHER_MICE_EPOCH = "dispatcher.mice.epoch"

// Threshold step size (seconds) applied at each epoch boundary
const DISPATCHER_MICE_EPSILON = "dispatcher.mice.epsilon"

// Alpha parameter of the target-load formula
const DISPATCHER_MICE_ALPHA = "dispatcher.mice.alpha"

// Degree of parallelism assumed for the CPU work queue
const QUEUE_CPU_CONCURRENCY = "queue.cpu.concurrency"

// Degree of parallelism assumed for the GPU work queue
const QUEUE_GPU_CONCURRENCY = "queue.gpu.concurrency"

// Whether a GPU queue is present on this node at all
const QUEUE_GPU_ENABLED = "queue.gpu.enabled"

// Number of samples retained per function characteristic
const CHARACTERISTICS_WINDOW = "characteristics.window"
