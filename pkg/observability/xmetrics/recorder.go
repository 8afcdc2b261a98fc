package xmetrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// =============================================================================
// 常量与错误
// =============================================================================

const (
	defaultInstrumentationName = "github.com/omeyang/xcorr/xmetrics"

	MetricRequests        = "xcorr.requests"
	MetricRequestDuration = "xcorr.request.duration"

	AttrTransport  = "transport"
	AttrMethod     = "method"
	AttrRoute      = "route"
	AttrStatusCode = "status_code"
	AttrOutcome    = "outcome"

	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

var (
	// ErrCreateInstrument 创建 OTel 指标失败
	ErrCreateInstrument = errors.New("xmetrics: create instrument failed")

	// ErrInvalidBuckets Histogram 桶边界必须非空且严格递增
	ErrInvalidBuckets = errors.New("xmetrics: invalid histogram buckets")
)

// DefaultBuckets 默认耗时桶边界（ms）
var DefaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// =============================================================================
// 接口
// =============================================================================

// RequestRecord 一次请求的指标数据
type RequestRecord struct {
	Transport string // http / grpc
	Method    string
	Route     string
	Status    int // HTTP 状态码或 gRPC code
	Failed    bool
	Duration  time.Duration
}

// Recorder 请求指标记录器，实现必须并发安全
type Recorder interface {
	RecordRequest(ctx context.Context, rec RequestRecord)
}

// NoopRecorder 丢弃所有记录
type NoopRecorder struct{}

// RecordRequest 空操作
func (NoopRecorder) RecordRequest(context.Context, RequestRecord) {}

// =============================================================================
// OTel 实现
// =============================================================================

type otelConfig struct {
	instrumentationName string
	meterProvider       metric.MeterProvider
	buckets             []float64
}

// Option OTel Recorder 配置选项
type Option func(*otelConfig)

// WithInstrumentationName 设置 instrumentation 名称
func WithInstrumentationName(name string) Option {
	return func(cfg *otelConfig) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithMeterProvider 设置 MeterProvider，默认使用 otel 全局 provider
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// WithBuckets 设置耗时 Histogram 的桶边界（ms）
func WithBuckets(buckets ...float64) Option {
	return func(cfg *otelConfig) {
		cfg.buckets = buckets
	}
}

type otelRecorder struct {
	total    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewOTelRecorder 创建基于 OpenTelemetry 的 Recorder
func NewOTelRecorder(opts ...Option) (Recorder, error) {
	cfg := &otelConfig{
		instrumentationName: defaultInstrumentationName,
		meterProvider:       otel.GetMeterProvider(),
		buckets:             DefaultBuckets,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if len(cfg.buckets) == 0 || !isStrictlyIncreasing(cfg.buckets) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBuckets, cfg.buckets)
	}

	meter := cfg.meterProvider.Meter(cfg.instrumentationName)

	total, err := meter.Int64Counter(
		MetricRequests,
		metric.WithDescription("handled requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateInstrument, err)
	}

	duration, err := meter.Float64Histogram(
		MetricRequestDuration,
		metric.WithDescription("request handling duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(cfg.buckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateInstrument, err)
	}

	return &otelRecorder{total: total, duration: duration}, nil
}

func isStrictlyIncreasing(b []float64) bool {
	for i := 1; i < len(b); i++ {
		if b[i] <= b[i-1] {
			return false
		}
	}
	return true
}

func (r *otelRecorder) RecordRequest(ctx context.Context, rec RequestRecord) {
	if ctx == nil {
		ctx = context.Background()
	}
	outcome := OutcomeCompleted
	if rec.Failed {
		outcome = OutcomeFailed
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrTransport, rec.Transport),
		attribute.String(AttrMethod, rec.Method),
		attribute.String(AttrRoute, rec.Route),
		attribute.Int(AttrStatusCode, rec.Status),
		attribute.String(AttrOutcome, outcome),
	)
	r.total.Add(ctx, 1, attrs)
	r.duration.Record(ctx, float64(rec.Duration)/float64(time.Millisecond), attrs)
}
