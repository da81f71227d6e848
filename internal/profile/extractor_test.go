package profile

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-ranker-go/internal/llm"
	"resume-ranker-go/internal/types"
)

// MockChatModel 模拟补全模型，返回固定内容
type MockChatModel struct {
	content      string
	err          error
	lastMessages []*schema.Message
}

func (m *MockChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	m.lastMessages = messages
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.content, nil), nil
}

func (m *MockChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func (m *MockChatModel) BindTools(tools []*schema.ToolInfo) error {
	return nil
}

const validProfileJSON = `{
  "name": "Alice Zhang",
  "email": "alice@example.com",
  "phone": "13800000000",
  "education": [{"degree": "BSc Computer Science", "institution": "Tsinghua", "year": "2018"}],
  "skills": ["Go", "MySQL", "Redis"],
  "experience": 5,
  "certifications": [],
  "projects": [{"name": "ATS", "description": "resume system", "technologies": ["Go"]}]
}`

// TestExtractProfile 测试画像提取的正常路径
func TestExtractProfile(t *testing.T) {
	mock := &MockChatModel{content: validProfileJSON}
	extractor, err := NewLLMProfileExtractor(mock)
	require.NoError(t, err)

	text := types.ExtractedText{Text: "Alice Zhang\nSoftware Engineer with 5 years..."}
	profile, err := extractor.Extract(context.Background(), text, "alice.pdf")
	require.NoError(t, err)

	assert.Equal(t, "Alice Zhang", profile.Name)
	assert.Equal(t, "alice@example.com", profile.Email)
	assert.Equal(t, 5, profile.Experience)
	assert.Equal(t, []string{"Go", "MySQL", "Redis"}, profile.Skills)
	require.Len(t, profile.Education, 1)
	assert.Equal(t, "Tsinghua", profile.Education[0].Institution)

	// 提示词包含简历原文
	require.Len(t, mock.lastMessages, 2)
	assert.Equal(t, schema.System, mock.lastMessages[0].Role)
	assert.Contains(t, mock.lastMessages[1].Content, "Parse this resume:\n\nAlice Zhang")
}

// TestExtractProfileStripsCodeFence 模型输出带markdown代码围栏时仍能解析
func TestExtractProfileStripsCodeFence(t *testing.T) {
	mock := &MockChatModel{content: "```json\n" + validProfileJSON + "\n```"}
	extractor, err := NewLLMProfileExtractor(mock)
	require.NoError(t, err)

	profile, err := extractor.Extract(context.Background(), types.ExtractedText{Text: "some resume"}, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Alice Zhang", profile.Name)
}

// TestExtractProfileMalformedOutput 非JSON输出映射到 ErrMalformedModelOutput
func TestExtractProfileMalformedOutput(t *testing.T) {
	mock := &MockChatModel{content: "Sorry, I cannot parse this resume."}
	extractor, err := NewLLMProfileExtractor(mock)
	require.NoError(t, err)

	_, err = extractor.Extract(context.Background(), types.ExtractedText{Text: "x"}, "b.pdf")
	assert.ErrorIs(t, err, llm.ErrMalformedModelOutput)
}

// TestExtractProfileModelError 模型调用错误原样向上传递
func TestExtractProfileModelError(t *testing.T) {
	mock := &MockChatModel{err: llm.NewRateLimitedError("complete", "m", "429")}
	extractor, err := NewLLMProfileExtractor(mock)
	require.NoError(t, err)

	_, err = extractor.Extract(context.Background(), types.ExtractedText{Text: "x"}, "c.pdf")
	assert.ErrorIs(t, err, llm.ErrModelRateLimited)
}

// TestNormalizeProfile 负经验年数与nil切片在解析阶段被规范化
func TestNormalizeProfile(t *testing.T) {
	mock := &MockChatModel{content: `{"name": "Bob", "experience": -2}`}
	extractor, err := NewLLMProfileExtractor(mock)
	require.NoError(t, err)

	profile, err := extractor.Extract(context.Background(), types.ExtractedText{Text: "x"}, "d.pdf")
	require.NoError(t, err)
	assert.Equal(t, 0, profile.Experience)
	assert.NotNil(t, profile.Skills)
	assert.NotNil(t, profile.Education)
	assert.NotNil(t, profile.Certifications)
	assert.NotNil(t, profile.Projects)
}
