package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"resume-ranker-go/internal/batch"
	"resume-ranker-go/internal/config"
	"resume-ranker-go/internal/logger"
	"resume-ranker-go/internal/storage"
	"resume-ranker-go/internal/storage/models"
	"resume-ranker-go/internal/types"
)

// BatchHandler 批量评分：对岗位下的全部简历顺序跑完整流水线
type BatchHandler struct {
	cfg      *config.Config
	storage  *storage.Storage
	pipeline batch.Components
}

// NewBatchHandler 创建批量评分处理器
func NewBatchHandler(cfg *config.Config, s *storage.Storage, pipeline batch.Components) *BatchHandler {
	return &BatchHandler{
		cfg:      cfg,
		storage:  s,
		pipeline: pipeline,
	}
}

// RankJobBatch 对岗位下未评分的简历执行批量评分
// 编排器严格串行处理，单份简历失败不影响其余简历
func (b *BatchHandler) RankJobBatch(ctx context.Context, jobID string) (*types.BatchReport, error) {
	logger.Ctx(ctx).Info().Str("job_id", jobID).Msg("开始批量评分")

	job, err := b.storage.MySQL.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	requirement, err := JobToRequirement(job)
	if err != nil {
		return nil, err
	}

	resumes, err := b.storage.MySQL.ListResumesByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(resumes) == 0 {
		return nil, fmt.Errorf("岗位 %s 下没有简历", jobID)
	}

	items := make([]batch.Item, 0, len(resumes))
	for i := range resumes {
		r := &resumes[i]
		fileBytes, err := b.storage.MinIO.GetResumeFile(ctx, r.FilePathOSS)
		if err != nil {
			// 文件缺失的简历直接标记失败，不进入批次
			logger.Warn().Err(err).Str("resume_id", r.ResumeID).Msg("下载简历文件失败，跳过该简历")
			b.persistItemError(ctx, r.ResumeID, err.Error())
			continue
		}
		items = append(items, batch.Item{
			ID: r.ResumeID,
			Document: types.RawDocument{
				Content:   fileBytes,
				MediaType: types.MediaType(r.MediaType),
				FileName:  r.OriginalFilename,
			},
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("岗位 %s 下没有可处理的简历文件", jobID)
	}

	orchestrator, err := batch.NewOrchestrator(b.pipeline,
		batch.WithLogger(logger.StdLogger("batch")),
		batch.WithUpdateCallback(func(st types.BatchItemStatus) {
			b.persistItemStatus(ctx, jobID, st)
		}),
	)
	if err != nil {
		return nil, err
	}

	report, runErr := orchestrator.Run(ctx, requirement, items)
	if runErr != nil {
		logger.Warn().Err(runErr).Str("job_id", jobID).Msg("批量评分被中断")
	}

	logger.Info().
		Str("job_id", jobID).
		Str("batch_id", report.BatchID).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("批量评分完成")
	return report, runErr
}

// persistItemStatus 把编排器的状态变化同步到数据库
// 只处理需要落库的里程碑，持久化失败不反压批处理
func (b *BatchHandler) persistItemStatus(ctx context.Context, jobID string, st types.BatchItemStatus) {
	switch st.State {
	case types.ItemStateExtracting:
		if err := b.storage.MySQL.UpdateResumeFields(ctx, st.ItemID, map[string]interface{}{
			"status": models.ResumeStatusProcessing,
		}); err != nil {
			logger.Warn().Err(err).Str("resume_id", st.ItemID).Msg("更新简历处理状态失败")
		}

	case types.ItemStateSuccess:
		if err := b.persistItemSuccess(ctx, jobID, st); err != nil {
			logger.Warn().Err(err).Str("resume_id", st.ItemID).Msg("持久化评分结果失败")
		}

	case types.ItemStateError:
		b.persistItemError(ctx, st.ItemID, st.Error)

	default:
		// profiling/scoring是纯内存状态推进，不落库
		logger.Debug().Str("resume_id", st.ItemID).
			Str("state", string(st.State)).Int("progress", st.Progress).
			Msg("批处理进度推进")
	}
}

func (b *BatchHandler) persistItemSuccess(ctx context.Context, jobID string, st types.BatchItemStatus) error {
	if st.Profile == nil || st.Result == nil {
		return fmt.Errorf("success状态缺少画像或评分结果")
	}

	profileJSON, err := json.Marshal(st.Profile)
	if err != nil {
		return fmt.Errorf("序列化候选人画像失败: %w", err)
	}

	if err := b.storage.MySQL.UpdateResumeFields(ctx, st.ItemID, map[string]interface{}{
		"profile_json":  datatypes.JSON(profileJSON),
		"status":        models.ResumeStatusRanked,
		"error_message": "",
	}); err != nil {
		return err
	}

	return b.storage.MySQL.SaveRankingLog(ctx, &models.RankingLog{
		ResumeID:      st.ItemID,
		JobID:         jobID,
		Score:         st.Result.Score,
		Explanation:   st.Result.Explanation,
		MatchedSkills: st.Result.MatchedSkills,
		TotalSkills:   st.Result.TotalSkills,
		RankedAt:      time.Now(),
	})
}

func (b *BatchHandler) persistItemError(ctx context.Context, resumeID, errMsg string) {
	if err := b.storage.MySQL.UpdateResumeFields(ctx, resumeID, map[string]interface{}{
		"status":        models.ResumeStatusFailed,
		"error_message": errMsg,
	}); err != nil {
		logger.Warn().Err(err).Str("resume_id", resumeID).Msg("更新简历失败状态时出错")
	}
}

// ListRankings 按分数倒序列出岗位下的评分记录
func (b *BatchHandler) ListRankings(ctx context.Context, jobID string, limit, offset int) ([]models.RankingLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return b.storage.MySQL.ListRankingsByJob(ctx, jobID, limit, offset)
}
