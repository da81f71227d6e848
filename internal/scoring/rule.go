package scoring

import (
	"fmt"
	"math"
	"strings"

	"resume-ranker-go/internal/types"
)

// 规则评分的分值常量
// 经验与技能两个分量合计构成 [0,70] 的规则子分
const (
	experienceFullScore   = 30.0 // 经验满足要求时的满分
	experienceYearPenalty = 5.0  // 每缺一年经验的扣分
	skillsFullScore       = 40.0 // 技能全部匹配时的满分
	skillsNeutralScore    = 20.0 // 岗位未定义必备技能时的中性分
)

// EvaluateRules 计算确定性的规则子分
// 纯函数，无I/O，相同输入必然产生相同输出
func EvaluateRules(candidateExp, requiredExp int, candidateSkills, requiredSkills []string) types.ScoreBreakdown {
	if candidateExp < 0 {
		candidateExp = 0
	}
	if requiredExp < 0 {
		requiredExp = 0
	}

	ruleScore := 0.0
	penalties := []string{}

	// 经验分量 [0,30]：满足要求得满分，否则按每年5分线性扣减
	if candidateExp >= requiredExp {
		ruleScore += experienceFullScore
	} else {
		diff := requiredExp - candidateExp
		penalties = append(penalties, fmt.Sprintf("%d years less experience than required", diff))
		ruleScore += math.Max(0, experienceFullScore-float64(diff)*experienceYearPenalty)
	}

	// 技能分量 [0,40]：大小写不敏感的双向子串匹配
	// "React" 可以匹配 "React.js"，容忍措辞差异而不要求词表完全一致
	lowerCandidate := lowerAll(candidateSkills)
	lowerRequired := lowerAll(requiredSkills)

	matched := []string{}
	missing := []string{}
	for _, rs := range lowerRequired {
		if skillMatches(rs, lowerCandidate) {
			matched = append(matched, rs)
		} else {
			missing = append(missing, rs)
		}
	}

	if len(lowerRequired) > 0 {
		ruleScore += float64(len(matched)) / float64(len(lowerRequired)) * skillsFullScore
	} else {
		// 无法判断技能匹配度时给中性的半分
		ruleScore += skillsNeutralScore
	}

	if len(missing) > 0 {
		penalties = append(penalties, fmt.Sprintf("Missing skills: %s", strings.Join(missing, ", ")))
	}

	return types.ScoreBreakdown{
		RuleScore:           ruleScore,
		Penalties:           penalties,
		MatchedSkills:       matched,
		MissingSkills:       missing,
		CandidateExperience: candidateExp,
		RequiredExperience:  requiredExp,
		RequiredSkillCount:  len(lowerRequired),
	}
}

// skillMatches 判断必备技能是否与任一候选技能双向子串匹配
func skillMatches(required string, candidateSkills []string) bool {
	for _, cs := range candidateSkills {
		if strings.Contains(cs, required) || strings.Contains(required, cs) {
			return true
		}
	}
	return false
}

func lowerAll(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, strings.ToLower(s))
	}
	return out
}
