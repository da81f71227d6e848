package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"resume-ranker-go/internal/llm"
	"resume-ranker-go/internal/types"
)

// 语义子分的上限，模型输出超出时必须钳制
const SemanticScoreMax = 30.0

// 语义评分的系统提示词
const semanticSystemPrompt = "You are an expert recruiter. Return only valid JSON."

// semanticUserPromptTemplate 语义评分的用户提示词模板
// 约束模型只返回 {"aiScore": <number 0-30>, "reasoning": "<brief explanation>"}
const semanticUserPromptTemplate = `You are an expert recruiter. Analyze the semantic match between this candidate and job.

Job: %s
Description: %s
Required Skills: %s

Candidate:
Name: %s
Skills: %s
Experience: %d years
Education: %s

Rate the semantic fit on a scale of 0-30 points. Consider:
- Transferable skills
- Industry relevance
- Career trajectory
- Education alignment

Return ONLY a JSON object:
{
  "aiScore": <number 0-30>,
  "reasoning": "<brief explanation>"
}`

// SemanticVerdict 语义评分的模型输出
type SemanticVerdict struct {
	AIScore   float64 `json:"aiScore"`
	Reasoning string  `json:"reasoning"`
}

// LLMSemanticScorer 通过补全服务进行语义匹配评分
// 模型的数值边界按不可信处理，返回前必须钳回 [0,30]
type LLMSemanticScorer struct {
	model  model.ChatModel
	logger *log.Logger
}

// SemanticScorerOption 语义评分器的配置选项
type SemanticScorerOption func(*LLMSemanticScorer)

// WithScorerLogger 配置自定义日志记录器
func WithScorerLogger(logger *log.Logger) SemanticScorerOption {
	return func(s *LLMSemanticScorer) {
		s.logger = logger
	}
}

// NewLLMSemanticScorer 创建语义评分器
func NewLLMSemanticScorer(chatModel model.ChatModel, options ...SemanticScorerOption) (*LLMSemanticScorer, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chatModel 不能为 nil")
	}

	s := &LLMSemanticScorer{
		model:  chatModel,
		logger: log.New(io.Discard, "", 0),
	}

	for _, option := range options {
		option(s)
	}

	return s, nil
}

// Score 对候选人与岗位做语义匹配，返回 [0,30] 的子分和简短理由
func (s *LLMSemanticScorer) Score(ctx context.Context, job types.JobRequirement, profile *types.CandidateProfile) (*SemanticVerdict, error) {
	startTime := time.Now()

	userPrompt, err := buildSemanticPrompt(job, profile)
	if err != nil {
		return nil, fmt.Errorf("构建语义评分提示词失败: %w", err)
	}

	messages := []*schema.Message{
		schema.SystemMessage(semanticSystemPrompt),
		schema.UserMessage(userPrompt),
	}

	resp, err := s.model.Generate(ctx, messages)
	if err != nil {
		return nil, err
	}

	verdict, err := parseSemanticVerdict(resp.Content)
	if err != nil {
		s.logger.Printf("语义评分解析失败: %v", err)
		return nil, llm.NewMalformedOutputError("semantic_score", "", err.Error())
	}

	s.logger.Printf("语义评分完成: %.1f/30 (用时 %.2f秒)", verdict.AIScore, time.Since(startTime).Seconds())
	return verdict, nil
}

// buildSemanticPrompt 构建语义评分的用户提示词
// 技能统一转小写，教育经历序列化为JSON，与评分契约保持一致
func buildSemanticPrompt(job types.JobRequirement, profile *types.CandidateProfile) (string, error) {
	eduJSON, err := json.Marshal(profile.Education)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(semanticUserPromptTemplate,
		job.Title,
		job.Description,
		strings.Join(lowerAll(job.RequiredSkills), ", "),
		profile.Name,
		strings.Join(lowerAll(profile.Skills), ", "),
		profile.Experience,
		string(eduJSON),
	), nil
}

// parseSemanticVerdict 清洗并解析模型返回的评分JSON，并钳制分值
func parseSemanticVerdict(raw string) (*SemanticVerdict, error) {
	cleaned := llm.CleanModelOutput(raw)

	jsonStr, ok := llm.ExtractJSONObject(cleaned)
	if !ok {
		return nil, fmt.Errorf("响应中未找到JSON对象")
	}

	var verdict SemanticVerdict
	if err := json.Unmarshal([]byte(jsonStr), &verdict); err != nil {
		repaired := llm.SanitizeJSON(jsonStr)
		if err2 := json.Unmarshal([]byte(repaired), &verdict); err2 != nil {
			return nil, fmt.Errorf("JSON反序列化失败: %w", err)
		}
	}

	verdict.AIScore = ClampSemanticScore(verdict.AIScore)
	return &verdict, nil
}

// ClampSemanticScore 将语义子分钳回 [0,30]
func ClampSemanticScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > SemanticScoreMax {
		return SemanticScoreMax
	}
	return score
}
