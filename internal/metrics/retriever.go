package metrics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/common/model"
	"github.com/serverledge-faas/gpu-dispatch/internal/characteristics"
	"github.com/serverledge-faas/gpu-dispatch/internal/config"

	promapi "github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
)

type metricSample struct {
	Value  float64
	Labels map[string]string
}
type metricProcessor[T any] func(samples []metricSample) (T, error)

func executeQuery(query string, api v1.API, ctx context.Context) (model.Vector, error) {
	result, warnings, err := api.Query(ctx, query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed query: %v", err)
	}

	if len(warnings) > 0 {
		log.Printf("received warnings in the execution: %v", warnings)
	}

	vector, ok := result.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("could not convert the result of the query: %v", result)
	}

	return vector, nil
}

func extractSampleWithLabels(sample *model.Sample, requiredLabels []string) (*metricSample, error) {
	labels := make(map[string]string)

	for _, labelName := range requiredLabels {
		labelValue, found := sample.Metric[model.LabelName(labelName)]
		if !found {
			return nil, fmt.Errorf("could not find the %s label in the result: %v", labelName, sample)
		}
		labels[labelName] = string(labelValue)
	}

	return &metricSample{
		Value:  float64(sample.Value),
		Labels: labels,
	}, nil
}

func retrieveMetrics[T any](query string, api v1.API, ctx context.Context, requiredLabels []string, processor metricProcessor[T]) (T, error) {
	var zero T

	vector, err := executeQuery(query, api, ctx)
	if err != nil {
		return zero, err
	}

	var samples []metricSample
	for _, sample := range vector {
		extracted, err := extractSampleWithLabels(sample, requiredLabels)
		if err != nil {
			log.Printf("skipping sample: %v", err)
			continue
		}
		samples = append(samples, *extracted)
	}

	return processor(samples)
}

func avgByFunction(samples []metricSample) (map[string]float64, error) {
	averages := make(map[string]float64)
	for _, s := range samples {
		averages[s.Labels["function"]] = s.Value
	}
	return averages, nil
}

// RunRetriever periodically queries the Prometheus server for the average
// end-to-end time observed on the GPU path of each function and feeds the
// values back into the characteristics store, closing the estimator's
// feedback loop.
func RunRetriever(cmap *characteristics.CharMap) {
	host := config.GetString(config.METRICS_PROMETHEUS_HOST, "localhost")
	port := config.GetInt(config.METRICS_PROMETHEUS_PORT, 9090)
	client, err := promapi.NewClient(promapi.Config{
		Address: fmt.Sprintf("http://%s:%d", host, port),
	})
	if err != nil {
		log.Printf("Could not create Prometheus client: %v", err)
		return
	}
	api := v1.NewAPI(client)

	interval := time.Duration(config.GetInt(config.METRICS_RETRIEVER_INTERVAL, 30)) * time.Second
	window := int(interval.Minutes()) + 1
	query := fmt.Sprintf(
		"rate(%s_sum{device=\"gpu\"}[%dm]) / rate(%s_count{device=\"gpu\"}[%dm])",
		E2E_TIME, window, E2E_TIME, window)

	for {
		time.Sleep(interval)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		averages, err := retrieveMetrics(query, api, ctx, []string{"function"}, avgByFunction)
		cancel()
		if err != nil {
			log.Printf("Metrics retrieval failed: %v", err)
			continue
		}

		for fqdn, avg := range averages {
			cmap.Update(fqdn, characteristics.E2EGpu, avg)
		}
	}
}
