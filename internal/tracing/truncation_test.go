package tracing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMaskPII 测试敏感信息的掩码处理
func TestMaskPII(t *testing.T) {
	assert.Equal(t, "", MaskPII(""))
	assert.Equal(t, "*", MaskPII("张"))
	assert.Equal(t, "张*", MaskPII("张三"))
	assert.Equal(t, "王*明", MaskPII("王小明"))
	assert.Equal(t, "13*******78", MaskPII("13812345678"))
}

// TestSafeAttributeValue 敏感属性名触发掩码，普通属性名只截断
func TestSafeAttributeValue(t *testing.T) {
	masked := SafeAttributeValue("profile.name", "Alice Zhang", DefaultMaxLength)
	assert.NotEqual(t, "Alice Zhang", masked)
	assert.Contains(t, masked, "*")

	plain := SafeAttributeValue("job.title", "Backend Engineer", DefaultMaxLength)
	assert.Equal(t, "Backend Engineer", plain)
}

// TestTruncateString 超长字符串中间截断并加省略号
func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))

	long := strings.Repeat("a", 50) + strings.Repeat("b", 50)
	out := TruncateString(long, 21)
	assert.Contains(t, out, "...")
	assert.LessOrEqual(t, len([]rune(out)), 21)
}
