// Package trim 将异构文本裁剪到固定的字符预算内。
//
// 长度统一按 len(string) 计算，与字符预算的口径一致。
package trim

import "unicode/utf8"

// Trim 返回累计长度不超过 limit 的最长前缀。
//
// limit <= 0 时返回空切片；全部放得下时原样返回 items。
func Trim(items []string, limit int) []string {
	if limit <= 0 {
		return []string{}
	}

	total := 0
	for i, item := range items {
		total += len(item)
		if total > limit {
			return items[:i:i]
		}
	}
	return items
}

// Cut 在不超过 limit 字节的最近 rune 边界处截断
func Cut(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
