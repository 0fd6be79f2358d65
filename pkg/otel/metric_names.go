package otel

import "go.opentelemetry.io/otel/metric"

// 预定义的指标名称
const (
	MetricToolFetches       = "tool.fetches"        // 计数器: 工具调用次数
	MetricToolFetchDuration = "tool.fetch.duration" // 直方图: 工具调用耗时(ms)
	MetricToolErrors        = "tool.errors"         // 计数器: 工具失败次数
	MetricRateWaitDuration  = "rate.wait.duration"  // 直方图: 限流等待时间(ms)
	MetricRateInFlight      = "rate.inflight"       // 仪表: 当前占用的并发槽位
	MetricCacheHits         = "cache.hits"          // 计数器: 缓存命中
	MetricCacheMisses       = "cache.misses"        // 计数器: 缓存未命中
	MetricLLMRequests       = "llm.requests"        // 计数器: 模型请求次数
	MetricLLMDuration       = "llm.request.duration"
	MetricLLMTimeouts       = "llm.timeouts"  // 计数器: 超时次数
	MetricLLMFallbacks      = "llm.fallbacks" // 计数器: 回退次数
	MetricLLMErrors         = "llm.errors"
	MetricContextChars      = "context.chars" // 直方图: 组装后的上下文字符数
)

// MetricDescription 指标描述
type MetricDescription struct {
	Name        string
	Description string
	Unit        string
}

// PredefinedMetrics 预定义指标列表
var PredefinedMetrics = []MetricDescription{
	{MetricToolFetches, "Number of tool fetches", "1"},
	{MetricToolFetchDuration, "Duration of tool fetches", "ms"},
	{MetricToolErrors, "Number of failed tool fetches", "1"},
	{MetricRateWaitDuration, "Time spent waiting for the rate gate", "ms"},
	{MetricRateInFlight, "Slots currently held on the rate gate", "1"},
	{MetricCacheHits, "Number of result cache hits", "1"},
	{MetricCacheMisses, "Number of result cache misses", "1"},
	{MetricLLMRequests, "Number of live model calls", "1"},
	{MetricLLMDuration, "Duration of live model calls", "ms"},
	{MetricLLMTimeouts, "Number of model calls that hit the deadline", "1"},
	{MetricLLMFallbacks, "Number of fallback responses served", "1"},
	{MetricLLMErrors, "Number of failed model calls", "1"},
	{MetricContextChars, "Characters in the assembled context", "By"},
}

func lookup(name string) (MetricDescription, bool) {
	for _, d := range PredefinedMetrics {
		if d.Name == name {
			return d, true
		}
	}
	return MetricDescription{}, false
}

func describe(name string) []metric.Int64CounterOption {
	d, ok := lookup(name)
	if !ok {
		return nil
	}
	return []metric.Int64CounterOption{metric.WithDescription(d.Description), metric.WithUnit(d.Unit)}
}

func histogramDescribe(name string) []metric.Float64HistogramOption {
	d, ok := lookup(name)
	if !ok {
		return nil
	}
	return []metric.Float64HistogramOption{metric.WithDescription(d.Description), metric.WithUnit(d.Unit)}
}

func gaugeDescribe(name string) []metric.Float64GaugeOption {
	d, ok := lookup(name)
	if !ok {
		return nil
	}
	return []metric.Float64GaugeOption{metric.WithDescription(d.Description), metric.WithUnit(d.Unit)}
}
