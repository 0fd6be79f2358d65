package otel

import "go.opentelemetry.io/otel/attribute"

// 语义属性键
const (
	AttrToolName      = "tool.name"
	AttrToolOK        = "tool.ok"
	AttrToolChars     = "tool.chars"
	AttrLLMProvider   = "llm.provider"
	AttrLLMModel      = "llm.model"
	AttrLLMOrigin     = "llm.origin"
	AttrCacheHit      = "cache.hit"
	AttrContextDocs   = "context.documents"
	AttrContextChars  = "context.chars"
	AttrContextBudget = "context.budget"
	AttrRunID         = "run.id"
)

// ToolName 工具名称属性
func ToolName(name string) attribute.KeyValue {
	return attribute.String(AttrToolName, name)
}

// LLMProvider 模型提供商属性
func LLMProvider(provider string) attribute.KeyValue {
	return attribute.String(AttrLLMProvider, provider)
}

// LLMModel 模型名称属性
func LLMModel(model string) attribute.KeyValue {
	return attribute.String(AttrLLMModel, model)
}

// CacheHit 缓存命中属性
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// RunID 编排运行 ID 属性
func RunID(id string) attribute.KeyValue {
	return attribute.String(AttrRunID, id)
}
