// Package rag 定义检索文档与多文档上下文。
package rag

import (
	"fmt"
	"time"

	"github.com/easyops/ragcontext-go/pkg/core/errors"
)

// Document 数据源返回的一篇文档，获取后不再修改
type Document struct {
	// ID 来源内唯一标识，可为空
	ID string `json:"id,omitempty"`
	// Link 原文链接
	Link string `json:"link,omitempty"`
	// LinkText 链接显示文本
	LinkText string `json:"link_text,omitempty"`
	// Text 正文
	Text string `json:"text"`
	// Source 来源工具名
	Source string `json:"source"`
	// FetchedAt 获取时间
	FetchedAt time.Time `json:"fetched_at"`
	// Metadata 附加元数据
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate 校验文档
func (d Document) Validate() error {
	if d.Source == "" {
		return errors.Validationf("document source is required")
	}
	return nil
}

// Citation 渲染为 [LinkText](Link)，缺省时退回 ID 或来源
func (d Document) Citation() string {
	label := d.LinkText
	if label == "" {
		label = d.ID
	}
	if label == "" {
		label = d.Source
	}
	if d.Link == "" {
		return label
	}
	return fmt.Sprintf("[%s](%s)", label, d.Link)
}

// RankedSpan 文档中的一个已打分片段
type RankedSpan struct {
	Text  string
	Start int
	End   int
	Score float64
	// Rank 从 1 开始的名次
	Rank int
}

// IndividualContext 单个工具贡献的上下文
type IndividualContext struct {
	ID       string `json:"id,omitempty"`
	Source   string `json:"source"`
	Link     string `json:"link,omitempty"`
	Citation string `json:"citation,omitempty"`
	// Text 裁剪后的正文
	Text string `json:"text"`
	// Original 裁剪前的长度
	Original int `json:"original"`
	// Err 获取失败原因，成功时为空
	Err            string   `json:"error,omitempty"`
	KeywordMatches []string `json:"keyword_matches,omitempty"`
}

// NewIndividualContext 由文档与裁剪后的正文构造上下文条目
func NewIndividualContext(doc Document, text string, matches []string) IndividualContext {
	return IndividualContext{
		ID:             doc.ID,
		Source:         doc.Source,
		Link:           doc.Link,
		Citation:       doc.Citation(),
		Text:           text,
		Original:       len(doc.Text),
		KeywordMatches: matches,
	}
}

// FailedContext 构造获取失败的上下文条目
func FailedContext(source string, err error) IndividualContext {
	return IndividualContext{Source: source, Err: err.Error()}
}

// Failed 是否获取失败
func (c IndividualContext) Failed() bool {
	return c.Err != ""
}
