package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestEvaluateRulesExperience 测试经验分量的计算
func TestEvaluateRulesExperience(t *testing.T) {
	// 经验满足要求得满分30
	b := EvaluateRules(5, 5, nil, nil)
	assert.Equal(t, 50.0, b.RuleScore, "5年经验满足5年要求应得 30+20(中性技能分)")
	assert.Empty(t, b.Penalties)

	// 超出要求同样是满分，不加分
	b = EvaluateRules(10, 5, nil, nil)
	assert.Equal(t, 50.0, b.RuleScore)

	// 每缺一年扣5分
	b = EvaluateRules(3, 5, nil, nil)
	assert.Equal(t, 40.0, b.RuleScore, "缺2年应得 30-10+20")
	assert.Equal(t, []string{"2 years less experience than required"}, b.Penalties)

	// 缺口超过6年时经验分量清零而不是负数
	b = EvaluateRules(0, 10, nil, nil)
	assert.Equal(t, 20.0, b.RuleScore, "经验分量最低为0")
}

// TestEvaluateRulesSkills 测试技能分量的计算
func TestEvaluateRulesSkills(t *testing.T) {
	// 全部匹配得40
	b := EvaluateRules(5, 5, []string{"Go", "MySQL"}, []string{"go", "mysql"})
	assert.Equal(t, 70.0, b.RuleScore)
	assert.Equal(t, []string{"go", "mysql"}, b.MatchedSkills)
	assert.Empty(t, b.MissingSkills)

	// 部分匹配按比例计分
	b = EvaluateRules(5, 5, []string{"Go"}, []string{"Go", "Kubernetes"})
	assert.Equal(t, 50.0, b.RuleScore, "匹配1/2应得 30+20")
	assert.Equal(t, []string{"kubernetes"}, b.MissingSkills)
	assert.Contains(t, b.Penalties, "Missing skills: kubernetes")

	// 未定义必备技能时给中性分20
	b = EvaluateRules(5, 5, []string{"Go"}, nil)
	assert.Equal(t, 50.0, b.RuleScore)
	assert.Equal(t, 0, b.RequiredSkillCount)
}

// TestEvaluateRulesSkillSubstringMatch 测试大小写不敏感的双向子串匹配
func TestEvaluateRulesSkillSubstringMatch(t *testing.T) {
	// "React" 匹配候选人的 "React.js"
	b := EvaluateRules(5, 0, []string{"React.js"}, []string{"React"})
	assert.Equal(t, []string{"react"}, b.MatchedSkills)

	// 候选人的 "SQL" 匹配要求的 "MySQL"（反向子串）
	b = EvaluateRules(5, 0, []string{"SQL"}, []string{"MySQL"})
	assert.Equal(t, []string{"mysql"}, b.MatchedSkills)

	// "python developer" 匹配要求的 "Python"，"sql" 精确匹配
	b = EvaluateRules(5, 5, []string{"python developer", "sql"}, []string{"Python", "SQL"})
	assert.Equal(t, 70.0, b.RuleScore, "双向子串匹配应全部命中")
	assert.Empty(t, b.MissingSkills)

	// 完全不相关的技能不匹配
	b = EvaluateRules(5, 0, []string{"Photoshop"}, []string{"Go"})
	assert.Empty(t, b.MatchedSkills)
	assert.Equal(t, []string{"go"}, b.MissingSkills)
}

// TestEvaluateRulesNegativeInputs 负数输入按0处理
func TestEvaluateRulesNegativeInputs(t *testing.T) {
	b := EvaluateRules(-3, -1, nil, nil)
	assert.Equal(t, 0, b.CandidateExperience)
	assert.Equal(t, 0, b.RequiredExperience)
	assert.Equal(t, 50.0, b.RuleScore)
}

// TestEvaluateRulesDeterminism 相同输入必须产生相同输出
func TestEvaluateRulesDeterminism(t *testing.T) {
	first := EvaluateRules(3, 5, []string{"Go", "Redis"}, []string{"Go", "MySQL", "Redis"})
	for i := 0; i < 10; i++ {
		again := EvaluateRules(3, 5, []string{"Go", "Redis"}, []string{"Go", "MySQL", "Redis"})
		assert.Equal(t, first, again)
	}
}
