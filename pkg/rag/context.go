package rag

import (
	"fmt"
	"strings"
	"sync"

	"github.com/easyops/ragcontext-go/pkg/core/errors"
)

// MultiDocumentContext 多文档上下文
//
// 条目保持追加顺序，同一来源的 ID 不可重复，响应最多设置一次。
// 所有访问方法返回副本。
type MultiDocumentContext struct {
	// Prompt 用户问题
	Prompt string
	// Instructions 系统指令
	Instructions string
	mu         sync.RWMutex
	cacheKey   string
	structured any
	contexts []IndividualContext
	keys     map[string]struct{}
	response *string
	debug    []string
}

// NewMultiDocumentContext 创建上下文
func NewMultiDocumentContext(prompt, instructions string) *MultiDocumentContext {
	return &MultiDocumentContext{
		Prompt:       prompt,
		Instructions: instructions,
		keys:         make(map[string]struct{}),
	}
}

// Append 追加一个条目；(Source, ID) 重复时返回 ErrDuplicateContext
func (m *MultiDocumentContext) Append(ic IndividualContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.keys == nil {
		m.keys = make(map[string]struct{})
	}

	key := ic.Source + "\x00" + ic.ID
	if ic.ID == "" && ic.Failed() {
		// 失败且无 ID 的条目按槽位区分
		key = fmt.Sprintf("%s\x00#%d", ic.Source, len(m.contexts))
	}
	if _, ok := m.keys[key]; ok {
		return fmt.Errorf("%w: source=%s id=%s", errors.ErrDuplicateContext, ic.Source, ic.ID)
	}

	m.keys[key] = struct{}{}
	m.contexts = append(m.contexts, ic)
	return nil
}

// SetResponse 设置模型响应，只能设置一次
func (m *MultiDocumentContext) SetResponse(s string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.response != nil {
		return errors.ErrResponseAlreadySet
	}
	m.response = &s
	return nil
}

// Response 返回响应及是否已设置
func (m *MultiDocumentContext) Response() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.response == nil {
		return "", false
	}
	return *m.response, true
}

// Contexts 返回条目副本
func (m *MultiDocumentContext) Contexts() []IndividualContext {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]IndividualContext, len(m.contexts))
	copy(out, m.contexts)
	return out
}

// IDs 返回条目 ID，顺序与条目一致
func (m *MultiDocumentContext) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, len(m.contexts))
	for i, c := range m.contexts {
		ids[i] = c.ID
	}
	return ids
}

// TotalLength 所有条目正文长度之和
func (m *MultiDocumentContext) TotalLength() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, c := range m.contexts {
		total += len(c.Text)
	}
	return total
}

// CombinedDocument 按顺序拼接所有非空条目，每段以引用标题开头
func (m *MultiDocumentContext) CombinedDocument() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sb strings.Builder
	for _, c := range m.contexts {
		if c.Text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		header := c.Citation
		if header == "" {
			header = c.Source
		}
		fmt.Fprintf(&sb, "--- %s ---\n%s", header, c.Text)
	}
	return sb.String()
}

// WithDebug 追加一行调试信息并返回自身
func (m *MultiDocumentContext) WithDebug(line string) *MultiDocumentContext {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.debug = append(m.debug, line)
	return m
}

// Debug 返回全部调试信息，每行一条
func (m *MultiDocumentContext) Debug() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return strings.Join(m.debug, "\n")
}

// SetCacheKey 记录模型调用的缓存键
func (m *MultiDocumentContext) SetCacheKey(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheKey = key
}

// CacheKey 模型调用的缓存键，未调用模型时为空
func (m *MultiDocumentContext) CacheKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cacheKey
}

// SetStructured 记录响应的结构化解析结果
func (m *MultiDocumentContext) SetStructured(v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.structured = v
}

// Structured 结构化解析结果
func (m *MultiDocumentContext) Structured() any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.structured
}
