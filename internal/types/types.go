package types

import (
	"strings"
)

// MediaType 文档的声明媒体类型
type MediaType string

const (
	MediaTypePDF   MediaType = "application/pdf"
	MediaTypeDOCX  MediaType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaTypeDOC   MediaType = "application/msword"
	MediaTypePlain MediaType = "text/plain"
)

// ParseMediaType 将MIME字符串或文件扩展名归一化为已知媒体类型
// 未识别的类型原样返回，由提取器决定是否拒绝
func ParseMediaType(s string) MediaType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "application/pdf", ".pdf", "pdf":
		return MediaTypePDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document", ".docx", "docx":
		return MediaTypeDOCX
	case "application/msword", ".doc", "doc":
		return MediaTypeDOC
	case "text/plain", ".txt", "txt":
		return MediaTypePlain
	}
	return MediaType(s)
}

// RawDocument 原始简历文档：未处理的文件字节加上声明的媒体类型
// 由调用方在提取前创建，文本产出后即不再需要
type RawDocument struct {
	Content   []byte    `json:"-"`
	MediaType MediaType `json:"media_type"`
	FileName  string    `json:"file_name"`
}

// ExtractedText 从RawDocument提取出的纯文本及其元数据
type ExtractedText struct {
	Text string `json:"text"`

	// Metadata 提取过程的附加信息（来源格式、耗时、置信度等）
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// LowConfidence 标记降级提取路径（如老式.doc的原始解码回退）的产出
	LowConfidence bool `json:"low_confidence,omitempty"`
}

// EducationEntry 教育经历条目，所有字段均可为空
type EducationEntry struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Year        string `json:"year"`
}

// Project 项目经历条目
type Project struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
}

// CandidateProfile LLM从简历文本中提取的结构化候选人画像
// 每份文档只生成一次，生成后不可变，返回调用方后由调用方持有
// JSON标签与模型输出契约严格一致，不得改动
type CandidateProfile struct {
	Name           string           `json:"name"`
	Email          string           `json:"email"`
	Phone          string           `json:"phone"`
	Education      []EducationEntry `json:"education"`
	Skills         []string         `json:"skills"`
	Experience     int              `json:"experience"`
	Certifications []string         `json:"certifications"`
	Projects       []Project        `json:"projects"`
}

// JobRequirement 岗位要求，由调用方提供，核心流程只读
type JobRequirement struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	RequiredSkills     []string `json:"required_skills"`
	RequiredExperience int      `json:"required_experience"`
	RequiredDegree     string   `json:"required_degree,omitempty"`
}

// ScoreBreakdown 评分中间结果：规则子分与语义子分及其依据
type ScoreBreakdown struct {
	// RuleScore 规则子分 [0,70]
	RuleScore float64 `json:"rule_score"`

	// SemanticScore 语义子分 [0,30]，已被调用方钳制
	SemanticScore float64 `json:"semantic_score"`

	Penalties     []string `json:"penalties"`
	MatchedSkills []string `json:"matched_skills"`
	MissingSkills []string `json:"missing_skills"`

	// SemanticReasoning 语义评分的简短理由
	SemanticReasoning string `json:"semantic_reasoning"`

	// 解释文本所需的原始输入
	CandidateExperience int `json:"candidate_experience"`
	RequiredExperience  int `json:"required_experience"`
	RequiredSkillCount  int `json:"required_skill_count"`
}

// RankingResult 最终排名结果，返回调用方后由调用方负责持久化
type RankingResult struct {
	// Score 最终得分，整数 [0,100]
	Score int `json:"score"`

	// Explanation 解释文本，相同输入必须逐字节可复现
	Explanation string `json:"explanation"`

	MatchedSkills int `json:"matched_skills"`
	TotalSkills   int `json:"total_skills"`
}

// ItemState 批处理单项的状态机取值
type ItemState string

const (
	ItemStatePending    ItemState = "pending"
	ItemStateExtracting ItemState = "extracting"
	ItemStateProfiling  ItemState = "profiling"
	ItemStateScoring    ItemState = "scoring"
	ItemStateSuccess    ItemState = "success"
	ItemStateError      ItemState = "error"
)

// Terminal 判断状态是否为终态
func (s ItemState) Terminal() bool {
	return s == ItemStateSuccess || s == ItemStateError
}

// BatchItemStatus 批处理中单份文档的处理状态
// 仅由编排器写入，进度只增不减
type BatchItemStatus struct {
	ItemID   string    `json:"item_id"`
	FileName string    `json:"file_name"`
	State    ItemState `json:"state"`

	// Progress 粗粒度进度 [0,100]，单调递增
	Progress int `json:"progress"`

	// Error 进入error终态时携带的触发错误信息
	Error string `json:"error,omitempty"`

	Score   *int              `json:"score,omitempty"`
	Profile *CandidateProfile `json:"profile,omitempty"`
	Result  *RankingResult    `json:"result,omitempty"`
}

// BatchReport 批处理完成后的汇总报告
type BatchReport struct {
	BatchID   string             `json:"batch_id"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Items     []*BatchItemStatus `json:"items"`
}
