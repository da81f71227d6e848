package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"resume-ranker-go/internal/llm"
	"resume-ranker-go/internal/types"
)

// 画像提取的系统提示词，固定输出JSON结构
// 字段名与 types.CandidateProfile 的JSON标签一一对应，改动需同步
const profileSystemPrompt = `You are an expert resume parser. Extract structured information from resumes and return ONLY valid JSON.

Return format:
{
  "name": "Full Name",
  "email": "email@example.com",
  "phone": "phone number or null",
  "education": [{"degree": "...", "institution": "...", "year": "..."}],
  "skills": ["skill1", "skill2"],
  "experience": 5,
  "certifications": ["cert1", "cert2"],
  "projects": [{"name": "...", "description": "...", "technologies": []}]
}

Extraction rules:
- Extract all information that is present in the text; never null out a field that is clearly stated.
- "experience" is the total years of professional experience, summed across all work, internship and project date ranges. Use 0 for candidates with no work history (e.g. current students).

Return ONLY the JSON object, no markdown formatting, no explanations.`

// LLMProfileExtractor 通过补全服务将简历文本解析为结构化候选人画像
type LLMProfileExtractor struct {
	model  model.ChatModel
	logger *log.Logger
}

// ExtractorOption 画像提取器的配置选项
type ExtractorOption func(*LLMProfileExtractor)

// WithLogger 配置自定义日志记录器
func WithLogger(logger *log.Logger) ExtractorOption {
	return func(e *LLMProfileExtractor) {
		e.logger = logger
	}
}

// NewLLMProfileExtractor 创建画像提取器
func NewLLMProfileExtractor(chatModel model.ChatModel, options ...ExtractorOption) (*LLMProfileExtractor, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chatModel 不能为 nil")
	}

	e := &LLMProfileExtractor{
		model:  chatModel,
		logger: log.New(io.Discard, "", 0),
	}

	for _, option := range options {
		option(e)
	}

	return e, nil
}

// Extract 从提取文本构建候选人画像
// 模型输出非法时返回 ErrMalformedModelOutput，绝不静默回退为默认画像
func (e *LLMProfileExtractor) Extract(ctx context.Context, text types.ExtractedText, fileName string) (*types.CandidateProfile, error) {
	startTime := time.Now()
	e.logger.Printf("开始解析简历: %s (%d 个字符)", fileName, len(text.Text))

	messages := []*schema.Message{
		schema.SystemMessage(profileSystemPrompt),
		schema.UserMessage(fmt.Sprintf("Parse this resume:\n\n%s", text.Text)),
	}

	resp, err := e.model.Generate(ctx, messages)
	if err != nil {
		return nil, err
	}

	profile, err := parseProfileJSON(resp.Content)
	if err != nil {
		e.logger.Printf("画像解析失败: %s: %v", fileName, err)
		return nil, llm.NewMalformedOutputError("profile_extract", "", err.Error())
	}

	e.logger.Printf("简历解析完成: %s (技能 %d 项, 经验 %d 年, 用时 %.2f秒)",
		fileName, len(profile.Skills), profile.Experience, time.Since(startTime).Seconds())
	return profile, nil
}

// parseProfileJSON 清洗并解析模型返回的画像JSON
func parseProfileJSON(raw string) (*types.CandidateProfile, error) {
	cleaned := llm.CleanModelOutput(raw)

	jsonStr, ok := llm.ExtractJSONObject(cleaned)
	if !ok {
		return nil, fmt.Errorf("响应中未找到JSON对象")
	}

	var profile types.CandidateProfile
	if err := json.Unmarshal([]byte(jsonStr), &profile); err != nil {
		// 尝试修复常见的引号问题后重试一次
		repaired := llm.SanitizeJSON(jsonStr)
		if err2 := json.Unmarshal([]byte(repaired), &profile); err2 != nil {
			return nil, fmt.Errorf("JSON反序列化失败: %w", err)
		}
	}

	normalizeProfile(&profile)
	return &profile, nil
}

// normalizeProfile 规范化画像字段
// 经验年数不允许为负，列表字段统一为非nil切片
func normalizeProfile(p *types.CandidateProfile) {
	if p.Experience < 0 {
		p.Experience = 0
	}
	if p.Education == nil {
		p.Education = []types.EducationEntry{}
	}
	if p.Skills == nil {
		p.Skills = []string{}
	}
	if p.Certifications == nil {
		p.Certifications = []string{}
	}
	if p.Projects == nil {
		p.Projects = []types.Project{}
	}
}
