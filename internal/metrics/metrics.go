// Package metrics records client telemetry through OpenTelemetry. Metrics are
// exported by whatever meter provider the host application installs; with the
// default no-op provider every recording is free.
package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("s3client")

	// opKey tags samples with the client operation that produced them
	// (e.g. put_object, put_object_single).
	opKey = attribute.Key("op")

	opOptionCache sync.Map

	initOnce sync.Once

	uploadThroughput metric.Float64Histogram
	uploadedBytes    metric.Int64Counter
)

func opAttrOption(op string) metric.MeasurementOption {
	v, ok := opOptionCache.Load(op)
	if !ok {
		v, _ = opOptionCache.LoadOrStore(op,
			metric.WithAttributeSet(attribute.NewSet(opKey.String(op))))
	}
	return v.(metric.MeasurementOption)
}

func instruments() (metric.Float64Histogram, metric.Int64Counter) {
	initOnce.Do(func() {
		var err error
		uploadThroughput, err = meter.Float64Histogram("s3client/upload_throughput",
			metric.WithDescription("The distribution of whole-object upload throughput."),
			metric.WithUnit("MiBy/s"))
		if err != nil {
			otel.Handle(err)
		}
		uploadedBytes, err = meter.Int64Counter("s3client/uploaded_bytes",
			metric.WithDescription("The cumulative number of object bytes uploaded."),
			metric.WithUnit("By"))
		if err != nil {
			otel.Handle(err)
		}
	})
	return uploadThroughput, uploadedBytes
}

// RecordUpload records one completed upload: its total size and the
// throughput over the whole transfer. Called once per successful upload.
func RecordUpload(ctx context.Context, op string, totalBytes uint64, elapsed time.Duration) {
	throughput, bytes := instruments()
	attrs := opAttrOption(op)
	if bytes != nil {
		bytes.Add(ctx, int64(totalBytes), attrs)
	}
	if throughput != nil && elapsed > 0 {
		mib := float64(totalBytes) / (1024 * 1024)
		throughput.Record(ctx, mib/elapsed.Seconds(), attrs)
	}
}
