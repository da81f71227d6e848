package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"resume-ranker-go/internal/batch"
	"resume-ranker-go/internal/config"
	"resume-ranker-go/internal/logger"
	"resume-ranker-go/internal/storage"
	"resume-ranker-go/internal/storage/models"
	"resume-ranker-go/internal/types"
)

// 简历上传响应状态
const (
	UploadStatusAccepted      = "ACCEPTED"
	UploadStatusDuplicateFile = "DUPLICATE_FILE_SKIPPED"
)

// 评分结果缓存的保留时长
const rankingCacheTTL = time.Hour

// resumeObjectStore 简历对象存储的最小依赖面
type resumeObjectStore interface {
	UploadResumeFile(ctx context.Context, resumeID, fileExt string, data []byte) (string, error)
	GetResumeFile(ctx context.Context, objectName string) ([]byte, error)
	UploadParsedText(ctx context.Context, resumeID string, text string) (string, error)
	GetParsedText(ctx context.Context, objectName string) (string, error)
	GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	DeleteFile(ctx context.Context, objectName string) error
	DeleteParsedText(ctx context.Context, objectName string) error
}

// resumeMetaStore 简历元数据存储的最小依赖面
type resumeMetaStore interface {
	CreateResume(ctx context.Context, resume *models.Resume) error
	GetResumeByID(ctx context.Context, resumeID string) (*models.Resume, error)
	GetJobByID(ctx context.Context, jobID string) (*models.Job, error)
	UpdateResumeFields(ctx context.Context, resumeID string, updates map[string]interface{}) error
	SaveRankingLog(ctx context.Context, rankingLog *models.RankingLog) error
	DeleteResume(ctx context.Context, resumeID string) error
}

// dedupCache 去重登记与评分缓存的最小依赖面
type dedupCache interface {
	GetRawFileMD5(ctx context.Context, md5Hex string) (string, error)
	RegisterRawFileMD5(ctx context.Context, md5Hex, resumeID string) error
	CheckAndSetTextMD5(ctx context.Context, md5Hex, resumeID string) (bool, string, error)
	RemoveTextMD5(ctx context.Context, md5Hex string) error
	CacheRanking(ctx context.Context, resumeID, jobID string, resultJSON string, ttl time.Duration) error
	GetCachedRanking(ctx context.Context, resumeID, jobID string) (string, error)
}

// ResumeHandler 简历上传与评分的协调层
// 核心流水线组件只计算不落库，本层负责对象存储和数据库的持久化
type ResumeHandler struct {
	cfg      *config.Config
	objects  resumeObjectStore
	db       resumeMetaStore
	dedup    dedupCache // Redis是可选依赖，未配置时为nil
	pipeline batch.Components
}

// NewResumeHandler 创建简历处理器
func NewResumeHandler(cfg *config.Config, s *storage.Storage, pipeline batch.Components) *ResumeHandler {
	h := &ResumeHandler{
		cfg:      cfg,
		objects:  s.MinIO,
		db:       s.MySQL,
		pipeline: pipeline,
	}
	if s.Redis != nil {
		h.dedup = s.Redis
	}
	return h
}

// ResumeUploadResponse 简历上传响应
type ResumeUploadResponse struct {
	ResumeID string `json:"resume_id"`
	Status   string `json:"status"`
	// DuplicateOf 重复文件时给出首次上传的简历ID
	DuplicateOf string `json:"duplicate_of,omitempty"`
}

// HandleResumeUpload 处理简历上传：文件MD5去重、对象存储落盘、创建数据库记录
// 去重键在持久化全部成功后才登记，失败的上传不能留下指向幽灵简历的去重记录
func (h *ResumeHandler) HandleResumeUpload(ctx context.Context, fileBytes []byte, filename, jobID string) (*ResumeUploadResponse, error) {
	if len(fileBytes) == 0 {
		return nil, fmt.Errorf("上传文件内容为空")
	}

	resumeID := uuid.New().String()

	// 文件级去重：完全相同的文件不再入库
	var fileMD5 string
	if h.dedup != nil {
		fileMD5 = storage.BytesMD5(fileBytes)
		firstID, err := h.dedup.GetRawFileMD5(ctx, fileMD5)
		if err != nil {
			logger.Error().Err(err).Str("md5", fileMD5).Msg("查询文件MD5去重记录失败")
			return nil, fmt.Errorf("检查文件重复性失败: %w", err)
		}
		if firstID != "" {
			logger.Info().Str("md5", fileMD5).Str("filename", filename).
				Str("duplicate_of", firstID).Msg("检测到重复文件，跳过处理")
			return &ResumeUploadResponse{
				Status:      UploadStatusDuplicateFile,
				DuplicateOf: firstID,
			}, nil
		}
	}

	ext := filepath.Ext(filename)
	objectPath, err := h.objects.UploadResumeFile(ctx, resumeID, ext, fileBytes)
	if err != nil {
		return nil, err
	}

	var jobRef *string
	if jobID != "" {
		jobRef = &jobID
	}

	resume := &models.Resume{
		ResumeID:         resumeID,
		JobID:            jobRef,
		OriginalFilename: filename,
		MediaType:        string(types.ParseMediaType(ext)),
		FilePathOSS:      objectPath,
		Status:           models.ResumeStatusPending,
	}
	if err := h.db.CreateResume(ctx, resume); err != nil {
		return nil, err
	}

	// 登记失败只降级为无去重，不影响已完成的上传
	if h.dedup != nil {
		if err := h.dedup.RegisterRawFileMD5(ctx, fileMD5, resumeID); err != nil {
			logger.Warn().Err(err).Str("md5", fileMD5).Str("resume_id", resumeID).
				Msg("登记文件MD5去重记录失败")
		}
	}

	logger.Info().Str("resume_id", resumeID).Str("filename", filename).Msg("简历上传完成")
	return &ResumeUploadResponse{
		ResumeID: resumeID,
		Status:   UploadStatusAccepted,
	}, nil
}

// GetResume 按ID查询简历记录
func (h *ResumeHandler) GetResume(ctx context.Context, resumeID string) (*models.Resume, error) {
	return h.db.GetResumeByID(ctx, resumeID)
}

// GetResumeText 读取简历的解析文本
func (h *ResumeHandler) GetResumeText(ctx context.Context, resumeID string) (string, error) {
	resume, err := h.db.GetResumeByID(ctx, resumeID)
	if err != nil {
		return "", err
	}
	if resume.ParsedTextPath == "" {
		return "", fmt.Errorf("简历 %s 尚未解析出文本", resumeID)
	}
	return h.objects.GetParsedText(ctx, resume.ParsedTextPath)
}

// GetResumeDownloadURL 签发原始简历的临时下载链接
func (h *ResumeHandler) GetResumeDownloadURL(ctx context.Context, resumeID string) (string, error) {
	resume, err := h.db.GetResumeByID(ctx, resumeID)
	if err != nil {
		return "", err
	}
	return h.objects.GetPresignedURL(ctx, resume.FilePathOSS, 15*time.Minute)
}

// DeleteResume 删除简历：对象存储文件、去重登记与数据库记录一并清理
// 对象与去重记录的清理失败只告警，数据库记录的删除是唯一硬性步骤
func (h *ResumeHandler) DeleteResume(ctx context.Context, resumeID string) error {
	resume, err := h.db.GetResumeByID(ctx, resumeID)
	if err != nil {
		return err
	}

	if resume.FilePathOSS != "" {
		if err := h.objects.DeleteFile(ctx, resume.FilePathOSS); err != nil {
			logger.Warn().Err(err).Str("resume_id", resumeID).Msg("删除原始简历文件失败")
		}
	}
	if resume.ParsedTextPath != "" {
		if err := h.objects.DeleteParsedText(ctx, resume.ParsedTextPath); err != nil {
			logger.Warn().Err(err).Str("resume_id", resumeID).Msg("删除解析文本失败")
		}
	}
	if h.dedup != nil && resume.RawTextMD5 != "" {
		if err := h.dedup.RemoveTextMD5(ctx, resume.RawTextMD5); err != nil {
			logger.Warn().Err(err).Str("resume_id", resumeID).Msg("移除文本MD5去重记录失败")
		}
	}

	if err := h.db.DeleteResume(ctx, resumeID); err != nil {
		return err
	}

	logger.Info().Str("resume_id", resumeID).Msg("简历已删除")
	return nil
}

// RankResumeResponse 单份简历评分响应
type RankResumeResponse struct {
	ResumeID string                  `json:"resume_id"`
	JobID    string                  `json:"job_id"`
	Profile  *types.CandidateProfile `json:"profile"`
	Result   *types.RankingResult    `json:"result"`
}

// RankResume 对单份简历执行完整流水线并持久化结果
// 显式走 提取 -> 画像 -> 评分 三个阶段，文本与画像在阶段间落库
// TTL内评过的同一简历-岗位组合直接命中缓存，force为true时强制重新评分
func (h *ResumeHandler) RankResume(ctx context.Context, resumeID, jobID string, force bool) (*RankResumeResponse, error) {
	resume, err := h.db.GetResumeByID(ctx, resumeID)
	if err != nil {
		return nil, err
	}
	if jobID == "" && resume.JobID != nil {
		jobID = *resume.JobID
	}
	if jobID == "" {
		return nil, fmt.Errorf("简历未关联岗位，且请求未指定岗位")
	}

	if !force {
		if resp := h.cachedRanking(ctx, resume, resumeID, jobID); resp != nil {
			return resp, nil
		}
	}

	job, err := h.db.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	requirement, err := JobToRequirement(job)
	if err != nil {
		return nil, err
	}

	fileBytes, err := h.objects.GetResumeFile(ctx, resume.FilePathOSS)
	if err != nil {
		return nil, err
	}

	if err := h.db.UpdateResumeFields(ctx, resumeID, map[string]interface{}{
		"status": models.ResumeStatusProcessing,
	}); err != nil {
		logger.Warn().Err(err).Str("resume_id", resumeID).Msg("更新简历处理状态失败")
	}

	doc := types.RawDocument{
		Content:   fileBytes,
		MediaType: types.MediaType(resume.MediaType),
		FileName:  resume.OriginalFilename,
	}

	text, err := h.pipeline.Extractor.Extract(ctx, doc)
	if err != nil {
		h.markFailed(ctx, resumeID, err)
		return nil, err
	}

	// 解析文本持久化与同内容去重
	h.persistParsedText(ctx, resumeID, text.Text)

	profile, err := h.pipeline.Profiler.Extract(ctx, text, resume.OriginalFilename)
	if err != nil {
		h.markFailed(ctx, resumeID, err)
		return nil, err
	}

	breakdown, result, err := h.pipeline.Ranker.Rank(ctx, requirement, profile)
	if err != nil {
		h.markFailed(ctx, resumeID, err)
		return nil, err
	}

	if err := h.persistRanking(ctx, resumeID, jobID, profile, breakdown, result); err != nil {
		return nil, err
	}

	return &RankResumeResponse{
		ResumeID: resumeID,
		JobID:    jobID,
		Profile:  profile,
		Result:   result,
	}, nil
}

// cachedRanking 查询评分缓存，命中时组装完整响应
// 缓存未命中、读取失败或内容损坏都返回nil，由调用方走完整流水线
func (h *ResumeHandler) cachedRanking(ctx context.Context, resume *models.Resume, resumeID, jobID string) *RankResumeResponse {
	if h.dedup == nil {
		return nil
	}

	cached, err := h.dedup.GetCachedRanking(ctx, resumeID, jobID)
	if err != nil {
		logger.Warn().Err(err).Str("resume_id", resumeID).Msg("读取评分缓存失败")
		return nil
	}
	if cached == "" {
		return nil
	}

	var result types.RankingResult
	if err := json.Unmarshal([]byte(cached), &result); err != nil {
		logger.Warn().Err(err).Str("resume_id", resumeID).Msg("评分缓存内容损坏，回落到完整评分")
		return nil
	}

	resp := &RankResumeResponse{
		ResumeID: resumeID,
		JobID:    jobID,
		Result:   &result,
	}
	if len(resume.ProfileJSON) > 0 {
		var p types.CandidateProfile
		if err := json.Unmarshal(resume.ProfileJSON, &p); err == nil {
			resp.Profile = &p
		}
	}

	logger.Info().Str("resume_id", resumeID).Str("job_id", jobID).Msg("评分缓存命中，跳过重新评分")
	return resp
}

// persistParsedText 上传解析文本并登记MD5去重记录
// 持久化失败不阻断流水线，只记录告警
func (h *ResumeHandler) persistParsedText(ctx context.Context, resumeID, text string) {
	updates := map[string]interface{}{}

	if path, err := h.objects.UploadParsedText(ctx, resumeID, text); err != nil {
		logger.Warn().Err(err).Str("resume_id", resumeID).Msg("上传解析文本失败")
	} else {
		updates["parsed_text_path"] = path
	}

	textMD5 := storage.TextMD5(text)
	updates["raw_text_md5"] = textMD5

	if h.dedup != nil {
		if exists, firstID, err := h.dedup.CheckAndSetTextMD5(ctx, textMD5, resumeID); err != nil {
			logger.Warn().Err(err).Str("resume_id", resumeID).Msg("登记解析文本MD5失败")
		} else if exists && firstID != resumeID {
			logger.Info().Str("resume_id", resumeID).Str("duplicate_of", firstID).
				Msg("解析文本与既有简历重复")
		}
	}

	if err := h.db.UpdateResumeFields(ctx, resumeID, updates); err != nil {
		logger.Warn().Err(err).Str("resume_id", resumeID).Msg("更新解析文本字段失败")
	}
}

// persistRanking 落库画像、评分记录并刷新简历状态
func (h *ResumeHandler) persistRanking(ctx context.Context, resumeID, jobID string,
	profile *types.CandidateProfile, breakdown types.ScoreBreakdown, result *types.RankingResult) error {

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("序列化候选人画像失败: %w", err)
	}
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return fmt.Errorf("序列化评分明细失败: %w", err)
	}

	if err := h.db.UpdateResumeFields(ctx, resumeID, map[string]interface{}{
		"profile_json":  datatypes.JSON(profileJSON),
		"status":        models.ResumeStatusRanked,
		"error_message": "",
	}); err != nil {
		return err
	}

	rankingLog := &models.RankingLog{
		ResumeID:      resumeID,
		JobID:         jobID,
		Score:         result.Score,
		Explanation:   result.Explanation,
		MatchedSkills: result.MatchedSkills,
		TotalSkills:   result.TotalSkills,
		BreakdownJSON: datatypes.JSON(breakdownJSON),
		RankedAt:      time.Now(),
	}
	if err := h.db.SaveRankingLog(ctx, rankingLog); err != nil {
		return err
	}

	// 评分结果入缓存，TTL内的重复评分请求直接命中
	if h.dedup != nil {
		if resultJSON, err := json.Marshal(result); err == nil {
			if err := h.dedup.CacheRanking(ctx, resumeID, jobID, string(resultJSON), rankingCacheTTL); err != nil {
				logger.Warn().Err(err).Str("resume_id", resumeID).Msg("缓存评分结果失败")
			}
		}
	}

	return nil
}

// markFailed 将简历记录置为失败态
func (h *ResumeHandler) markFailed(ctx context.Context, resumeID string, cause error) {
	if err := h.db.UpdateResumeFields(ctx, resumeID, map[string]interface{}{
		"status":        models.ResumeStatusFailed,
		"error_message": cause.Error(),
	}); err != nil {
		logger.Warn().Err(err).Str("resume_id", resumeID).Msg("更新简历失败状态时出错")
	}
}
