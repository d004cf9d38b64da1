package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric names published by the gateway.
const (
	MetricHTTPRequests = "HTTPRequests"
	MetricHTTPErrors   = "HTTPErrors"
	MetricHTTPLatency  = "HTTPLatency"
	MetricHTTP4xx      = "HTTP4xxErrors"
	MetricHTTP5xx      = "HTTP5xxErrors"

	MetricDocumentsCreated = "DocumentsCreated"
	MetricDocumentsUpdated = "DocumentsUpdated"
	MetricCartsCreated     = "CartsCreated"
	MetricDatabaseLatency  = "DatabaseLatency"
	MetricCacheHits        = "CacheHits"
	MetricCacheMisses      = "CacheMisses"
)

// CloudWatch accepts at most this many data points per PutMetricData call.
const maxDatumsPerCall = 1000

// Datum is one data point.
type Datum struct {
	Name       string
	Value      float64
	Unit       types.StandardUnit
	Dimensions map[string]string
}

// Count is a single-increment counter datum.
func Count(name string, dims map[string]string) Datum {
	return Datum{Name: name, Value: 1, Unit: types.StandardUnitCount, Dimensions: dims}
}

// Latency is a millisecond duration datum.
func Latency(name string, d time.Duration, dims map[string]string) Datum {
	return Datum{Name: name, Value: float64(d.Milliseconds()), Unit: types.StandardUnitMilliseconds, Dimensions: dims}
}

// MetricsClient publishes custom metrics under one namespace. A nil or
// disabled client accepts every call and does nothing.
type MetricsClient struct {
	client    *cloudwatch.Client
	namespace string
	enabled   bool
}

func NewMetricsClient(cfg sdkaws.Config, enabled bool, namespace string) *MetricsClient {
	return &MetricsClient{
		client:    cloudwatch.NewFromConfig(cfg),
		namespace: namespace,
		enabled:   enabled,
	}
}

// IsEnabled reports whether calls reach CloudWatch.
func (m *MetricsClient) IsEnabled() bool {
	return m != nil && m.enabled
}

// Put sends data in as few PutMetricData calls as possible.
func (m *MetricsClient) Put(ctx context.Context, data ...Datum) error {
	if !m.IsEnabled() || len(data) == 0 {
		return nil
	}

	now := time.Now()
	for start := 0; start < len(data); start += maxDatumsPerCall {
		end := start + maxDatumsPerCall
		if end > len(data) {
			end = len(data)
		}

		batch := make([]types.MetricDatum, 0, end-start)
		for _, d := range data[start:end] {
			batch = append(batch, types.MetricDatum{
				MetricName: sdkaws.String(d.Name),
				Value:      sdkaws.Float64(d.Value),
				Unit:       d.Unit,
				Timestamp:  sdkaws.Time(now),
				Dimensions: dimensions(d.Dimensions),
			})
		}

		if _, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  sdkaws.String(m.namespace),
			MetricData: batch,
		}); err != nil {
			return fmt.Errorf("failed to put metrics: %w", err)
		}
	}
	return nil
}

// RecordCount increments a counter metric
func (m *MetricsClient) RecordCount(ctx context.Context, metricName string, dims map[string]string) error {
	return m.Put(ctx, Count(metricName, dims))
}

// RecordLatency records a latency metric in milliseconds
func (m *MetricsClient) RecordLatency(ctx context.Context, metricName string, d time.Duration, dims map[string]string) error {
	return m.Put(ctx, Latency(metricName, d, dims))
}

func dimensions(dims map[string]string) []types.Dimension {
	out := make([]types.Dimension, 0, len(dims))
	for k, v := range dims {
		out = append(out, types.Dimension{Name: sdkaws.String(k), Value: sdkaws.String(v)})
	}
	return out
}
