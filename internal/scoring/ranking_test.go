package scoring

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-ranker-go/internal/types"
)

// MockSemanticScorer 模拟语义评分器
type MockSemanticScorer struct {
	verdict *SemanticVerdict
	err     error
}

func (m *MockSemanticScorer) Score(ctx context.Context, job types.JobRequirement, profile *types.CandidateProfile) (*SemanticVerdict, error) {
	return m.verdict, m.err
}

// TestEngineRank 测试完整的评分合成流程
func TestEngineRank(t *testing.T) {
	engine, err := NewEngine(&MockSemanticScorer{
		verdict: &SemanticVerdict{AIScore: 25, Reasoning: "Strong match for the role."},
	})
	require.NoError(t, err)

	job := types.JobRequirement{
		Title:              "Backend Engineer",
		RequiredSkills:     []string{"Go", "MySQL"},
		RequiredExperience: 3,
	}
	profile := &types.CandidateProfile{
		Name:       "Alice",
		Skills:     []string{"Go", "MySQL", "Redis"},
		Experience: 5,
	}

	breakdown, result, err := engine.Rank(context.Background(), job, profile)
	require.NoError(t, err)
	assert.Equal(t, 70.0, breakdown.RuleScore)
	assert.Equal(t, 25.0, breakdown.SemanticScore)
	assert.Equal(t, 95, result.Score)
	assert.Equal(t, 2, result.MatchedSkills)
	assert.Equal(t, 2, result.TotalSkills)
	assert.Contains(t, result.Explanation, "**Overall Score: 95/100**")
	assert.Contains(t, result.Explanation, "Strong match for the role.")
}

// TestEngineRankSemanticError 语义评分失败时整体评分失败
func TestEngineRankSemanticError(t *testing.T) {
	wantErr := errors.New("上游不可用")
	engine, err := NewEngine(&MockSemanticScorer{err: wantErr})
	require.NoError(t, err)

	_, result, err := engine.Rank(context.Background(), types.JobRequirement{}, &types.CandidateProfile{})
	assert.ErrorIs(t, err, wantErr)
	assert.Nil(t, result)
}

// TestComposeClampsSemanticScore 语义子分越界时必须钳回 [0,30]
func TestComposeClampsSemanticScore(t *testing.T) {
	b := types.ScoreBreakdown{RuleScore: 70, SemanticScore: 95}
	result := Compose(b)
	assert.Equal(t, 100, result.Score, "语义分被钳到30后总分应为100")

	b.SemanticScore = -10
	result = Compose(b)
	assert.Equal(t, 70, result.Score, "负语义分应被钳到0")
}

// TestComposeScoreBounds 总分钳制在 [0,100]
func TestComposeScoreBounds(t *testing.T) {
	result := Compose(types.ScoreBreakdown{RuleScore: 70, SemanticScore: 30})
	assert.Equal(t, 100, result.Score)

	result = Compose(types.ScoreBreakdown{RuleScore: 0, SemanticScore: 0})
	assert.Equal(t, 0, result.Score)

	// 四舍五入
	result = Compose(types.ScoreBreakdown{RuleScore: 49.5, SemanticScore: 10.1})
	assert.Equal(t, 60, result.Score)
}

// TestComposeExplanationDeterministic 解释文本对相同输入逐字节一致
func TestComposeExplanationDeterministic(t *testing.T) {
	b := types.ScoreBreakdown{
		RuleScore:           45,
		SemanticScore:       18,
		Penalties:           []string{"2 years less experience than required", "Missing skills: kubernetes"},
		MatchedSkills:       []string{"go"},
		MissingSkills:       []string{"kubernetes"},
		SemanticReasoning:   "Partial fit.",
		CandidateExperience: 3,
		RequiredExperience:  5,
		RequiredSkillCount:  2,
	}

	first := Compose(b)
	for i := 0; i < 5; i++ {
		again := Compose(b)
		assert.Equal(t, first.Explanation, again.Explanation)
	}
}

// TestComposeExplanationFormat 解释文本包含所有固定段落
func TestComposeExplanationFormat(t *testing.T) {
	b := types.ScoreBreakdown{
		RuleScore:           45,
		SemanticScore:       18,
		Penalties:           []string{"2 years less experience than required", "Missing skills: kubernetes"},
		MatchedSkills:       []string{"go"},
		MissingSkills:       []string{"kubernetes"},
		SemanticReasoning:   "Partial fit.",
		CandidateExperience: 3,
		RequiredExperience:  5,
		RequiredSkillCount:  2,
	}

	result := Compose(b)
	exp := result.Explanation

	assert.True(t, strings.HasPrefix(exp, "**Overall Score: 63/100**"), "解释文本应以总分开头: %q", exp)
	assert.Contains(t, exp, "**Rule-Based Analysis (45/70):**")
	assert.Contains(t, exp, "- Experience Match: ✗ (3 vs 5 years required)")
	assert.Contains(t, exp, "- Skills Match: 1/2 required skills")
	assert.Contains(t, exp, "**Issues:**\n- 2 years less experience than required\n- Missing skills: kubernetes")
	assert.Contains(t, exp, "**AI Semantic Analysis (18/30):**\nPartial fit.")
	assert.Contains(t, exp, "**Matched Skills:** go")
	assert.Contains(t, exp, "**Missing Skills:** kubernetes")
}

// TestComposeExplanationNoPenalties 无扣分项时不出现Issues段
func TestComposeExplanationNoPenalties(t *testing.T) {
	b := types.ScoreBreakdown{
		RuleScore:           70,
		SemanticScore:       28,
		MatchedSkills:       []string{"go", "mysql"},
		SemanticReasoning:   "Excellent fit.",
		CandidateExperience: 5,
		RequiredExperience:  3,
		RequiredSkillCount:  2,
	}

	result := Compose(b)
	assert.NotContains(t, result.Explanation, "**Issues:**")
	assert.NotContains(t, result.Explanation, "**Missing Skills:**")
	assert.Contains(t, result.Explanation, "- Experience Match: ✓ (5 vs 3 years required)")
}

// TestComposeExplanationNoMatchedSkills 无匹配技能时显示None
func TestComposeExplanationNoMatchedSkills(t *testing.T) {
	b := types.ScoreBreakdown{
		RuleScore:          20,
		MissingSkills:      []string{"go"},
		RequiredSkillCount: 1,
	}
	result := Compose(b)
	assert.Contains(t, result.Explanation, "**Matched Skills:** None")
	assert.Contains(t, result.Explanation, "**Missing Skills:** go")
}
