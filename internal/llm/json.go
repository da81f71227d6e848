package llm

import (
	"regexp"
	"strings"
)

var codeFenceRe = regexp.MustCompile("```(?:json)?\n?|\n?```")

// CleanModelOutput 清理模型返回的文本：去除BOM与Markdown代码围栏
// 模型偶尔会把JSON包在 ```json ... ``` 中，解析前必须剥掉
func CleanModelOutput(content string) string {
	content = strings.TrimPrefix(content, "\ufeff")
	content = codeFenceRe.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}

// ExtractJSONObject 从文本中提取第一个配平的JSON对象
// 第二个返回值表示是否找到了完整对象
func ExtractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", false
	}
	level := 0
	inStr := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inStr = !inStr
		case inStr:
			// 字符串内部的花括号不计数
		case c == '{':
			level++
		case c == '}':
			level--
			if level == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// SanitizeJSON 修复字符串字面量内部未转义的双引号
// 通过检查下一个非空白字符是否为 :, ], }, 或 , 来判断某个 " 是否为字符串的真正结束，
// 否则将其改写为 \" 以保证整体可反序列化
func SanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		if c == '"' && !escaped {
			if !inStr {
				inStr = true
				b.WriteByte(c)
			} else {
				j := i + 1
				for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
					j++
				}
				if j < len(src) && (src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}') {
					inStr = false
					b.WriteByte(c)
				} else {
					b.WriteString("\\\"")
				}
			}
			escaped = false
		} else if c == '\\' && !escaped {
			escaped = true
			b.WriteByte(c)
		} else {
			b.WriteByte(c)
			escaped = false
		}
	}

	return b.String()
}
