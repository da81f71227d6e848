package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"resume-ranker-go/internal/storage"
	"resume-ranker-go/internal/storage/models"
	"resume-ranker-go/internal/types"
)

// JobHandler 岗位管理
type JobHandler struct {
	storage *storage.Storage
}

// NewJobHandler 创建岗位处理器
func NewJobHandler(s *storage.Storage) *JobHandler {
	return &JobHandler{storage: s}
}

// CreateJobRequest 创建岗位的请求体
type CreateJobRequest struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	RequiredSkills     []string `json:"required_skills"`
	RequiredExperience int      `json:"required_experience"`
	RequiredDegree     string   `json:"required_degree"`
}

// CreateJob 创建岗位
func (h *JobHandler) CreateJob(ctx context.Context, req *CreateJobRequest) (*models.Job, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("岗位标题不能为空")
	}
	if req.RequiredExperience < 0 {
		return nil, fmt.Errorf("要求经验年数不能为负")
	}

	skillsJSON, err := json.Marshal(req.RequiredSkills)
	if err != nil {
		return nil, fmt.Errorf("序列化技能列表失败: %w", err)
	}

	job := &models.Job{
		JobID:              uuid.New().String(),
		Title:              req.Title,
		Description:        req.Description,
		RequiredSkillsJSON: datatypes.JSON(skillsJSON),
		RequiredExperience: req.RequiredExperience,
		RequiredDegree:     req.RequiredDegree,
		Status:             "ACTIVE",
	}

	if err := h.storage.MySQL.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob 按ID查询岗位
func (h *JobHandler) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return h.storage.MySQL.GetJobByID(ctx, jobID)
}

// ListJobs 分页列出岗位
func (h *JobHandler) ListJobs(ctx context.Context, limit, offset int) ([]models.Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return h.storage.MySQL.ListJobs(ctx, limit, offset)
}

// DeleteJob 删除岗位
func (h *JobHandler) DeleteJob(ctx context.Context, jobID string) error {
	return h.storage.MySQL.DeleteJob(ctx, jobID)
}

// JobToRequirement 将岗位记录转换为评分用的岗位要求
func JobToRequirement(job *models.Job) (types.JobRequirement, error) {
	var skills []string
	if len(job.RequiredSkillsJSON) > 0 {
		if err := json.Unmarshal(job.RequiredSkillsJSON, &skills); err != nil {
			return types.JobRequirement{}, fmt.Errorf("解析岗位技能列表失败: %w", err)
		}
	}

	return types.JobRequirement{
		Title:              job.Title,
		Description:        job.Description,
		RequiredSkills:     skills,
		RequiredExperience: job.RequiredExperience,
		RequiredDegree:     job.RequiredDegree,
	}, nil
}
