package trim

import (
	"sort"
	"strings"
	"unicode/utf8"
)

type section struct {
	start, end int
	keywords   map[string]struct{}
}

// KeywordWindows 返回文档中围绕关键词的片段。
//
// 每次命中（不区分大小写的精确匹配）以命中位置为中心取 sectionLength 长度的窗口，
// 重叠窗口合并后按出现顺序以空格连接。没有关键词、sectionLength <= 0 或无命中时返回整篇文档。
// 第二个返回值是命中的关键词，按字典序排列。
func KeywordWindows(document string, keywords []string, sectionLength int) (string, []string) {
	if document == "" {
		return "", nil
	}
	if len(keywords) == 0 || sectionLength <= 0 {
		return document, nil
	}

	var sections []section
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		for _, pos := range indexAllFold(document, kw) {
			sections = append(sections, section{
				start:    max(0, pos-sectionLength/2),
				end:      min(pos+sectionLength/2, len(document)),
				keywords: map[string]struct{}{kw: {}},
			})
		}
	}
	if len(sections) == 0 {
		return document, nil
	}

	merged := mergeSections(sections)
	parts := make([]string, 0, len(merged))
	matched := make(map[string]struct{})
	for _, s := range merged {
		start, end := s.start, s.end
		for start > 0 && !utf8.RuneStart(document[start]) {
			start--
		}
		for end < len(document) && !utf8.RuneStart(document[end]) {
			end++
		}
		parts = append(parts, strings.TrimSpace(document[start:end]))
		for kw := range s.keywords {
			matched[kw] = struct{}{}
		}
	}

	found := make([]string, 0, len(matched))
	for kw := range matched {
		found = append(found, kw)
	}
	sort.Strings(found)
	return strings.Join(parts, " "), found
}

// mergeSections 合并重叠或相接的窗口，结果按起点排序
func mergeSections(sections []section) []section {
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].start < sections[j].start
	})

	merged := []section{sections[0]}
	for _, s := range sections[1:] {
		last := &merged[len(merged)-1]
		if s.start <= last.end {
			last.end = max(last.end, s.end)
			for kw := range s.keywords {
				last.keywords[kw] = struct{}{}
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// indexAllFold 返回 sub 在 s 中所有不区分大小写的起始字节位置
func indexAllFold(s, sub string) []int {
	var positions []int
	for i := 0; i+len(sub) <= len(s); {
		if strings.EqualFold(s[i:i+len(sub)], sub) {
			positions = append(positions, i)
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return positions
}
