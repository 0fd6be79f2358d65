package otel

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics 指标接口
type Metrics interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
	Gauge(name string) Gauge
}

// Counter 计数器
type Counter interface {
	Add(ctx context.Context, value int64, attrs ...Attr)
}

// Histogram 直方图
type Histogram interface {
	Record(ctx context.Context, value float64, attrs ...Attr)
}

// Gauge 仪表
type Gauge interface {
	Set(ctx context.Context, value float64, attrs ...Attr)
}

// Attr 指标属性
type Attr struct {
	Key   string
	Value any
}

// NewAttr 创建指标属性
func NewAttr(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func (a Attr) keyValue() attribute.KeyValue {
	switch v := a.Value.(type) {
	case string:
		return attribute.String(a.Key, v)
	case bool:
		return attribute.Bool(a.Key, v)
	case int:
		return attribute.Int(a.Key, v)
	case int64:
		return attribute.Int64(a.Key, v)
	case float64:
		return attribute.Float64(a.Key, v)
	default:
		return attribute.String(a.Key, fmt.Sprint(v))
	}
}

func metricOpts(attrs []Attr) metric.MeasurementOption {
	kvs := make([]attribute.KeyValue, len(attrs))
	for i, a := range attrs {
		kvs[i] = a.keyValue()
	}
	return metric.WithAttributes(kvs...)
}

// OTelMetrics 基于 OpenTelemetry Meter 的指标实现
//
// 仪器按名称懒创建并缓存；创建失败时退化为空实现。
type OTelMetrics struct {
	meter      metric.Meter
	counters   map[string]Counter
	histograms map[string]Histogram
	gauges     map[string]Gauge
	mu         sync.Mutex
}

// NewOTelMetrics 创建 OpenTelemetry 指标
func NewOTelMetrics(meter metric.Meter) *OTelMetrics {
	return &OTelMetrics{
		meter:      meter,
		counters:   make(map[string]Counter),
		histograms: make(map[string]Histogram),
		gauges:     make(map[string]Gauge),
	}
}

// Counter 返回或创建计数器
func (m *OTelMetrics) Counter(name string) Counter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.counters[name]; ok {
		return c
	}
	var c Counter = &NoopCounter{}
	if inst, err := m.meter.Int64Counter(name, describe(name)...); err == nil {
		c = &otelCounter{inst: inst}
	}
	m.counters[name] = c
	return c
}

// Histogram 返回或创建直方图
func (m *OTelMetrics) Histogram(name string) Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.histograms[name]; ok {
		return h
	}
	var h Histogram = &NoopHistogram{}
	if inst, err := m.meter.Float64Histogram(name, histogramDescribe(name)...); err == nil {
		h = &otelHistogram{inst: inst}
	}
	m.histograms[name] = h
	return h
}

// Gauge 返回或创建仪表
func (m *OTelMetrics) Gauge(name string) Gauge {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g, ok := m.gauges[name]; ok {
		return g
	}
	var g Gauge = &NoopGauge{}
	if inst, err := m.meter.Float64Gauge(name, gaugeDescribe(name)...); err == nil {
		g = &otelGauge{inst: inst}
	}
	m.gauges[name] = g
	return g
}

type otelCounter struct{ inst metric.Int64Counter }

func (c *otelCounter) Add(ctx context.Context, value int64, attrs ...Attr) {
	c.inst.Add(ctx, value, metricOpts(attrs))
}

type otelHistogram struct{ inst metric.Float64Histogram }

func (h *otelHistogram) Record(ctx context.Context, value float64, attrs ...Attr) {
	h.inst.Record(ctx, value, metricOpts(attrs))
}

type otelGauge struct{ inst metric.Float64Gauge }

func (g *otelGauge) Set(ctx context.Context, value float64, attrs ...Attr) {
	g.inst.Record(ctx, value, metricOpts(attrs))
}

// InMemoryMetrics 内存指标实现（测试用）
type InMemoryMetrics struct {
	counters   map[string]*InMemoryCounter
	histograms map[string]*InMemoryHistogram
	gauges     map[string]*InMemoryGauge
	mu         sync.Mutex
}

// NewInMemoryMetrics 创建内存指标
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		counters:   make(map[string]*InMemoryCounter),
		histograms: make(map[string]*InMemoryHistogram),
		gauges:     make(map[string]*InMemoryGauge),
	}
}

func (m *InMemoryMetrics) Counter(name string) Counter     { return m.counter(name) }
func (m *InMemoryMetrics) Histogram(name string) Histogram { return m.histogram(name) }
func (m *InMemoryMetrics) Gauge(name string) Gauge         { return m.gauge(name) }

// CounterValue 计数器当前值
func (m *InMemoryMetrics) CounterValue(name string) int64 {
	return m.counter(name).Value()
}

// GaugeValue 仪表当前值
func (m *InMemoryMetrics) GaugeValue(name string) float64 {
	return m.gauge(name).Value()
}

// HistogramValues 直方图记录值
func (m *InMemoryMetrics) HistogramValues(name string) []float64 {
	return m.histogram(name).Values()
}

func (m *InMemoryMetrics) counter(name string) *InMemoryCounter {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counters[name]
	if !ok {
		c = &InMemoryCounter{}
		m.counters[name] = c
	}
	return c
}

func (m *InMemoryMetrics) histogram(name string) *InMemoryHistogram {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.histograms[name]
	if !ok {
		h = &InMemoryHistogram{}
		m.histograms[name] = h
	}
	return h
}

func (m *InMemoryMetrics) gauge(name string) *InMemoryGauge {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gauges[name]
	if !ok {
		g = &InMemoryGauge{}
		m.gauges[name] = g
	}
	return g
}

// InMemoryCounter 内存计数器
type InMemoryCounter struct {
	value int64
	mu    sync.Mutex
}

func (c *InMemoryCounter) Add(_ context.Context, value int64, _ ...Attr) {
	c.mu.Lock()
	c.value += value
	c.mu.Unlock()
}

// Value 当前值
func (c *InMemoryCounter) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// InMemoryHistogram 内存直方图
type InMemoryHistogram struct {
	values []float64
	mu     sync.Mutex
}

func (h *InMemoryHistogram) Record(_ context.Context, value float64, _ ...Attr) {
	h.mu.Lock()
	h.values = append(h.values, value)
	h.mu.Unlock()
}

// Values 所有记录值的副本
func (h *InMemoryHistogram) Values() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]float64, len(h.values))
	copy(out, h.values)
	return out
}

// InMemoryGauge 内存仪表
type InMemoryGauge struct {
	value float64
	mu    sync.Mutex
}

func (g *InMemoryGauge) Set(_ context.Context, value float64, _ ...Attr) {
	g.mu.Lock()
	g.value = value
	g.mu.Unlock()
}

// Value 当前值
func (g *InMemoryGauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// NoopMetrics 空实现指标
type NoopMetrics struct{}

// NewNoopMetrics 创建空实现指标
func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (m *NoopMetrics) Counter(string) Counter     { return &NoopCounter{} }
func (m *NoopMetrics) Histogram(string) Histogram { return &NoopHistogram{} }
func (m *NoopMetrics) Gauge(string) Gauge         { return &NoopGauge{} }

type NoopCounter struct{}

func (c *NoopCounter) Add(context.Context, int64, ...Attr) {}

type NoopHistogram struct{}

func (h *NoopHistogram) Record(context.Context, float64, ...Attr) {}

type NoopGauge struct{}

func (g *NoopGauge) Set(context.Context, float64, ...Attr) {}

// compile-time interface check
var (
	_ Metrics = (*OTelMetrics)(nil)
	_ Metrics = (*InMemoryMetrics)(nil)
	_ Metrics = (*NoopMetrics)(nil)
)
