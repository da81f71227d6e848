package scoring

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"strings"

	"resume-ranker-go/internal/types"
)

// SemanticScorer 语义评分能力的抽象，便于用确定性替身做测试
type SemanticScorer interface {
	Score(ctx context.Context, job types.JobRequirement, profile *types.CandidateProfile) (*SemanticVerdict, error)
}

// Engine 排名引擎：组合规则评分与语义评分，产出最终得分和解释文本
type Engine struct {
	semantic SemanticScorer
	logger   *log.Logger
}

// EngineOption 排名引擎的配置选项
type EngineOption func(*Engine)

// WithEngineLogger 配置自定义日志记录器
func WithEngineLogger(logger *log.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine 创建排名引擎
func NewEngine(semantic SemanticScorer, options ...EngineOption) (*Engine, error) {
	if semantic == nil {
		return nil, fmt.Errorf("semantic 评分器不能为 nil")
	}

	e := &Engine{
		semantic: semantic,
		logger:   log.New(io.Discard, "", 0),
	}

	for _, option := range options {
		option(e)
	}

	return e, nil
}

// Rank 对单个候选人画像做完整评分
// 先计算确定性的规则子分，再请求语义子分，最后合成结果
func (e *Engine) Rank(ctx context.Context, job types.JobRequirement, profile *types.CandidateProfile) (types.ScoreBreakdown, *types.RankingResult, error) {
	breakdown := EvaluateRules(profile.Experience, job.RequiredExperience, profile.Skills, job.RequiredSkills)

	verdict, err := e.semantic.Score(ctx, job, profile)
	if err != nil {
		return breakdown, nil, err
	}

	breakdown.SemanticScore = ClampSemanticScore(verdict.AIScore)
	breakdown.SemanticReasoning = verdict.Reasoning

	result := Compose(breakdown)
	e.logger.Printf("排名完成: %s -> %d/100 (规则 %.1f, 语义 %.1f)",
		job.Title, result.Score, breakdown.RuleScore, breakdown.SemanticScore)

	return breakdown, result, nil
}

// Compose 将评分明细合成为最终结果
// 纯函数：解释文本不含时间戳或随机成分，相同输入逐字节一致
func Compose(b types.ScoreBreakdown) *types.RankingResult {
	semantic := ClampSemanticScore(b.SemanticScore)

	final := int(math.Round(b.RuleScore + semantic))
	if final > 100 {
		final = 100
	}
	if final < 0 {
		final = 0
	}

	return &types.RankingResult{
		Score:         final,
		Explanation:   buildExplanation(final, b, semantic),
		MatchedSkills: len(b.MatchedSkills),
		TotalSkills:   b.RequiredSkillCount,
	}
}

// buildExplanation 生成固定格式的解释文本
// 该文本会被持久化并原样展示给最终用户，格式改动属于破坏性变更
func buildExplanation(final int, b types.ScoreBreakdown, semantic float64) string {
	expMark := "✗"
	if b.CandidateExperience >= b.RequiredExperience {
		expMark = "✓"
	}

	penaltyBlock := ""
	if len(b.Penalties) > 0 {
		var lines []string
		for _, p := range b.Penalties {
			lines = append(lines, "- "+p)
		}
		penaltyBlock = "\n**Issues:**\n" + strings.Join(lines, "\n")
	}

	matchedList := strings.Join(b.MatchedSkills, ", ")
	if matchedList == "" {
		matchedList = "None"
	}

	missingBlock := ""
	if len(b.MatchedSkills) < b.RequiredSkillCount {
		missingBlock = fmt.Sprintf("\n**Missing Skills:** %s", strings.Join(b.MissingSkills, ", "))
	}

	explanation := fmt.Sprintf(`
**Overall Score: %d/100**

**Rule-Based Analysis (%d/70):**
- Experience Match: %s (%d vs %d years required)
- Skills Match: %d/%d required skills
%s

**AI Semantic Analysis (%d/30):**
%s

**Matched Skills:** %s
%s
`,
		final,
		int(math.Round(b.RuleScore)),
		expMark,
		b.CandidateExperience,
		b.RequiredExperience,
		len(b.MatchedSkills),
		b.RequiredSkillCount,
		penaltyBlock,
		int(math.Round(semantic)),
		b.SemanticReasoning,
		matchedList,
		missingBlock,
	)

	return strings.TrimSpace(explanation)
}
