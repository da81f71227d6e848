package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCleanModelOutput 测试代码围栏与BOM的清理
func TestCleanModelOutput(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, CleanModelOutput("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, CleanModelOutput("```\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, CleanModelOutput("  {\"a\": 1}  "))
	assert.Equal(t, `{"a": 1}`, CleanModelOutput("\ufeff{\"a\": 1}"))
}

// TestExtractJSONObject 测试配平JSON对象的提取
func TestExtractJSONObject(t *testing.T) {
	obj, ok := ExtractJSONObject(`Here is the result: {"a": {"b": 2}} trailing`)
	require.True(t, ok)
	assert.Equal(t, `{"a": {"b": 2}}`, obj)

	// 字符串内部的花括号不影响配平
	obj, ok = ExtractJSONObject(`{"text": "brace } inside"}`)
	require.True(t, ok)
	assert.Equal(t, `{"text": "brace } inside"}`, obj)

	_, ok = ExtractJSONObject("no json here")
	assert.False(t, ok)

	_, ok = ExtractJSONObject(`{"unbalanced": 1`)
	assert.False(t, ok)
}

// TestSanitizeJSON 测试字符串内未转义引号的修复
func TestSanitizeJSON(t *testing.T) {
	broken := `{"reasoning": "the "best" candidate"}`
	repaired := SanitizeJSON(broken)

	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(repaired), &out))
	assert.Equal(t, `the "best" candidate`, out["reasoning"])

	// 合法JSON保持不变
	valid := `{"a": "clean value", "b": 2}`
	assert.Equal(t, valid, SanitizeJSON(valid))
}
