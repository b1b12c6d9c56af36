// 本文件用于分隔符识别与带引号字段拆分
package ingest

import (
	"strings"
)

// candidateDelimiters 按优先级排列 计数相同时靠前者胜出
var candidateDelimiters = []rune{',', ';', '\t', '，'}

// quotePairs 记录开引号对应的闭引号 同时支持 ASCII 与全角引号
var quotePairs = map[rune]rune{
	'"': '"',
	'“': '”',
	'”': '”',
	'＂': '＂',
}

// DetectDelimiter 统计表头中引号外各候选分隔符的出现次数 取最多者
func DetectDelimiter(header string) rune {
	best := ','
	bestCount := 0
	for _, delim := range candidateDelimiters {
		count := countOutsideQuotes(header, delim)
		if count > bestCount {
			best = delim
			bestCount = count
		}
	}
	return best
}

func countOutsideQuotes(line string, target rune) int {
	count := 0
	var closing rune
	atFieldStart := true
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if closing != 0 {
			if r == closing {
				if i+1 < len(runes) && runes[i+1] == closing {
					i++
					continue
				}
				closing = 0
			}
			continue
		}
		if c, ok := quotePairs[r]; ok && atFieldStart {
			closing = c
			continue
		}
		if r == target {
			count++
			atFieldStart = true
			continue
		}
		if r != ' ' && r != '\t' {
			atFieldStart = false
		}
	}
	return count
}

// SplitLine 按分隔符拆分一行 引号内的分隔符保留 连续两个闭引号表示一个字面引号
// 引号只在字段开头生效 字段中间出现的引号按普通字符处理
func SplitLine(line string, delim rune) []string {
	line = strings.TrimRight(line, "\r\n")
	fields := make([]string, 0, 8)
	var cur strings.Builder
	var closing rune
	quoted := false
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if closing != 0 {
			if r == closing {
				if i+1 < len(runes) && runes[i+1] == closing {
					cur.WriteRune(r)
					i++
					continue
				}
				closing = 0
				continue
			}
			cur.WriteRune(r)
			continue
		}
		if c, ok := quotePairs[r]; ok && !quoted && strings.TrimSpace(cur.String()) == "" {
			cur.Reset()
			closing = c
			quoted = true
			continue
		}
		if r == delim {
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
			quoted = false
			continue
		}
		cur.WriteRune(r)
	}
	fields = append(fields, strings.TrimSpace(cur.String()))
	return fields
}

// splitLines 拆分文本行 兼容 \r\n 与 \r 换行
func splitLines(content string) []string {
	content = strings.TrimPrefix(content, "\uFEFF")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	return strings.Split(content, "\n")
}

// isBlankRow 判断拆分后的行是否所有字段为空
func isBlankRow(fields []string) bool {
	for _, field := range fields {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
