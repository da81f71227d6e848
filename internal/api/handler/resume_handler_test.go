package handler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"resume-ranker-go/internal/batch"
	"resume-ranker-go/internal/storage"
	"resume-ranker-go/internal/storage/models"
	"resume-ranker-go/internal/types"
)

// fakeObjectStore 对象存储替身，记录操作顺序
type fakeObjectStore struct {
	ops *[]string

	uploadErr    error
	files        map[string][]byte
	parsedText   map[string]string
	deletedFiles []string
	deletedTexts []string
}

func (f *fakeObjectStore) UploadResumeFile(ctx context.Context, resumeID, fileExt string, data []byte) (string, error) {
	*f.ops = append(*f.ops, "upload_file")
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	path := "resumes/" + resumeID + fileExt
	if f.files == nil {
		f.files = make(map[string][]byte)
	}
	f.files[path] = data
	return path, nil
}

func (f *fakeObjectStore) GetResumeFile(ctx context.Context, objectName string) ([]byte, error) {
	data, ok := f.files[objectName]
	if !ok {
		return nil, errors.New("对象不存在: " + objectName)
	}
	return data, nil
}

func (f *fakeObjectStore) UploadParsedText(ctx context.Context, resumeID string, text string) (string, error) {
	*f.ops = append(*f.ops, "upload_text")
	return "parsed/" + resumeID + ".txt", nil
}

func (f *fakeObjectStore) GetParsedText(ctx context.Context, objectName string) (string, error) {
	text, ok := f.parsedText[objectName]
	if !ok {
		return "", errors.New("解析文本不存在: " + objectName)
	}
	return text, nil
}

func (f *fakeObjectStore) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	return "https://minio.test/" + objectName, nil
}

func (f *fakeObjectStore) DeleteFile(ctx context.Context, objectName string) error {
	f.deletedFiles = append(f.deletedFiles, objectName)
	return nil
}

func (f *fakeObjectStore) DeleteParsedText(ctx context.Context, objectName string) error {
	f.deletedTexts = append(f.deletedTexts, objectName)
	return nil
}

// fakeMetaStore 数据库替身
type fakeMetaStore struct {
	ops *[]string

	createErr error
	// processingUpdateErr 只让 PROCESSING 状态更新失败，其他更新照常
	processingUpdateErr error

	resumes     map[string]*models.Resume
	jobs        map[string]*models.Job
	rankingLogs []*models.RankingLog
	deleted     []string
}

func (f *fakeMetaStore) CreateResume(ctx context.Context, resume *models.Resume) error {
	*f.ops = append(*f.ops, "create_resume")
	if f.createErr != nil {
		return f.createErr
	}
	if f.resumes == nil {
		f.resumes = make(map[string]*models.Resume)
	}
	f.resumes[resume.ResumeID] = resume
	return nil
}

func (f *fakeMetaStore) GetResumeByID(ctx context.Context, resumeID string) (*models.Resume, error) {
	r, ok := f.resumes[resumeID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r, nil
}

func (f *fakeMetaStore) GetJobByID(ctx context.Context, jobID string) (*models.Job, error) {
	j, ok := f.jobs[jobID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return j, nil
}

func (f *fakeMetaStore) UpdateResumeFields(ctx context.Context, resumeID string, updates map[string]interface{}) error {
	if f.processingUpdateErr != nil && len(updates) == 1 {
		if st, ok := updates["status"]; ok && st == models.ResumeStatusProcessing {
			return f.processingUpdateErr
		}
	}
	if r, ok := f.resumes[resumeID]; ok {
		if st, ok := updates["status"].(string); ok {
			r.Status = st
		}
	}
	return nil
}

func (f *fakeMetaStore) SaveRankingLog(ctx context.Context, rankingLog *models.RankingLog) error {
	f.rankingLogs = append(f.rankingLogs, rankingLog)
	return nil
}

func (f *fakeMetaStore) DeleteResume(ctx context.Context, resumeID string) error {
	f.deleted = append(f.deleted, resumeID)
	delete(f.resumes, resumeID)
	return nil
}

// fakeDedup 去重与评分缓存替身
type fakeDedup struct {
	ops *[]string

	rawMD5         map[string]string
	textMD5        map[string]string
	removedTextMD5 []string
	cache          map[string]string
	cacheWrites    int
}

func (f *fakeDedup) GetRawFileMD5(ctx context.Context, md5Hex string) (string, error) {
	return f.rawMD5[md5Hex], nil
}

func (f *fakeDedup) RegisterRawFileMD5(ctx context.Context, md5Hex, resumeID string) error {
	*f.ops = append(*f.ops, "register_md5")
	if f.rawMD5 == nil {
		f.rawMD5 = make(map[string]string)
	}
	if _, exists := f.rawMD5[md5Hex]; !exists {
		f.rawMD5[md5Hex] = resumeID
	}
	return nil
}

func (f *fakeDedup) CheckAndSetTextMD5(ctx context.Context, md5Hex, resumeID string) (bool, string, error) {
	if f.textMD5 == nil {
		f.textMD5 = make(map[string]string)
	}
	if firstID, exists := f.textMD5[md5Hex]; exists {
		return true, firstID, nil
	}
	f.textMD5[md5Hex] = resumeID
	return false, resumeID, nil
}

func (f *fakeDedup) RemoveTextMD5(ctx context.Context, md5Hex string) error {
	f.removedTextMD5 = append(f.removedTextMD5, md5Hex)
	delete(f.textMD5, md5Hex)
	return nil
}

func (f *fakeDedup) CacheRanking(ctx context.Context, resumeID, jobID string, resultJSON string, ttl time.Duration) error {
	if f.cache == nil {
		f.cache = make(map[string]string)
	}
	f.cache[jobID+":"+resumeID] = resultJSON
	f.cacheWrites++
	return nil
}

func (f *fakeDedup) GetCachedRanking(ctx context.Context, resumeID, jobID string) (string, error) {
	return f.cache[jobID+":"+resumeID], nil
}

// 流水线替身，记录调用次数
type countingExtractor struct{ calls int }

func (c *countingExtractor) Extract(ctx context.Context, doc types.RawDocument) (types.ExtractedText, error) {
	c.calls++
	return types.ExtractedText{Text: "十年后端开发经验，精通Go与分布式系统"}, nil
}

type countingProfiler struct{ calls int }

func (c *countingProfiler) Extract(ctx context.Context, text types.ExtractedText, fileName string) (*types.CandidateProfile, error) {
	c.calls++
	return &types.CandidateProfile{Name: "张三", Experience: 10, Skills: []string{"go"}}, nil
}

type countingRanker struct{ calls int }

func (c *countingRanker) Rank(ctx context.Context, job types.JobRequirement, profile *types.CandidateProfile) (types.ScoreBreakdown, *types.RankingResult, error) {
	c.calls++
	return types.ScoreBreakdown{RuleScore: 50, SemanticScore: 25}, &types.RankingResult{
		Score:         75,
		Explanation:   "**Overall Score: 75/100**",
		MatchedSkills: 1,
		TotalSkills:   1,
	}, nil
}

type handlerFixture struct {
	ops       []string
	objects   *fakeObjectStore
	db        *fakeMetaStore
	dedup     *fakeDedup
	extractor *countingExtractor
	profiler  *countingProfiler
	ranker    *countingRanker
	handler   *ResumeHandler
}

func newHandlerFixture() *handlerFixture {
	fx := &handlerFixture{
		extractor: &countingExtractor{},
		profiler:  &countingProfiler{},
		ranker:    &countingRanker{},
	}
	fx.objects = &fakeObjectStore{ops: &fx.ops}
	fx.db = &fakeMetaStore{ops: &fx.ops, resumes: make(map[string]*models.Resume), jobs: make(map[string]*models.Job)}
	fx.dedup = &fakeDedup{ops: &fx.ops}
	fx.handler = &ResumeHandler{
		objects: fx.objects,
		db:      fx.db,
		dedup:   fx.dedup,
		pipeline: batch.Components{
			Extractor: fx.extractor,
			Profiler:  fx.profiler,
			Ranker:    fx.ranker,
		},
	}
	return fx
}

func (fx *handlerFixture) addJob(jobID string) {
	fx.db.jobs[jobID] = &models.Job{
		JobID:              jobID,
		Title:              "Go后端工程师",
		RequiredSkillsJSON: []byte(`["go"]`),
		RequiredExperience: 5,
	}
}

func (fx *handlerFixture) addResume(resumeID, jobID string) *models.Resume {
	fx.objects.files = map[string][]byte{"resumes/" + resumeID + ".txt": []byte("resume body")}
	r := &models.Resume{
		ResumeID:         resumeID,
		JobID:            &jobID,
		OriginalFilename: "resume.txt",
		MediaType:        string(types.MediaTypePlain),
		FilePathOSS:      "resumes/" + resumeID + ".txt",
		Status:           models.ResumeStatusPending,
	}
	fx.db.resumes[resumeID] = r
	return r
}

// TestHandleResumeUploadRegistersDedupAfterPersist 去重键在持久化全部成功后才登记
func TestHandleResumeUploadRegistersDedupAfterPersist(t *testing.T) {
	fx := newHandlerFixture()

	resp, err := fx.handler.HandleResumeUpload(context.Background(), []byte("resume body"), "resume.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, UploadStatusAccepted, resp.Status)

	require.Equal(t, []string{"upload_file", "create_resume", "register_md5"}, fx.ops,
		"去重登记必须排在对象存储与数据库持久化之后")
	assert.Equal(t, resp.ResumeID, fx.dedup.rawMD5[storage.BytesMD5([]byte("resume body"))])
}

// TestHandleResumeUploadFailedPersistLeavesNoDedupEntry 失败的上传不得留下去重记录，重试必须成功
func TestHandleResumeUploadFailedPersistLeavesNoDedupEntry(t *testing.T) {
	fileBytes := []byte("resume body")

	t.Run("对象存储失败", func(t *testing.T) {
		fx := newHandlerFixture()
		fx.objects.uploadErr = errors.New("minio写入失败")

		_, err := fx.handler.HandleResumeUpload(context.Background(), fileBytes, "resume.pdf", "")
		require.Error(t, err)
		assert.Empty(t, fx.dedup.rawMD5, "失败的上传不应登记去重键")

		// 同一文件重试应被接受，而不是被幽灵去重记录拒绝
		fx.objects.uploadErr = nil
		resp, err := fx.handler.HandleResumeUpload(context.Background(), fileBytes, "resume.pdf", "")
		require.NoError(t, err)
		assert.Equal(t, UploadStatusAccepted, resp.Status)
		assert.NotEmpty(t, resp.ResumeID)
	})

	t.Run("数据库写入失败", func(t *testing.T) {
		fx := newHandlerFixture()
		fx.db.createErr = errors.New("mysql写入失败")

		_, err := fx.handler.HandleResumeUpload(context.Background(), fileBytes, "resume.pdf", "")
		require.Error(t, err)
		assert.Empty(t, fx.dedup.rawMD5)

		fx.db.createErr = nil
		resp, err := fx.handler.HandleResumeUpload(context.Background(), fileBytes, "resume.pdf", "")
		require.NoError(t, err)
		assert.Equal(t, UploadStatusAccepted, resp.Status)
	})
}

// TestHandleResumeUploadDuplicateFile 重复文件直接跳过，不触碰对象存储
func TestHandleResumeUploadDuplicateFile(t *testing.T) {
	fx := newHandlerFixture()
	fileBytes := []byte("resume body")

	first, err := fx.handler.HandleResumeUpload(context.Background(), fileBytes, "resume.pdf", "")
	require.NoError(t, err)

	fx.ops = nil
	second, err := fx.handler.HandleResumeUpload(context.Background(), fileBytes, "copy.pdf", "")
	require.NoError(t, err)

	assert.Equal(t, UploadStatusDuplicateFile, second.Status)
	assert.Equal(t, first.ResumeID, second.DuplicateOf)
	assert.Empty(t, fx.ops, "重复文件不应产生任何持久化操作")
}

// TestRankResumeCacheHit TTL内已有评分结果时直接命中缓存，不重跑流水线
func TestRankResumeCacheHit(t *testing.T) {
	fx := newHandlerFixture()
	fx.addJob("job-1")
	resume := fx.addResume("resume-1", "job-1")

	cached := types.RankingResult{Score: 88, Explanation: "**Overall Score: 88/100**", MatchedSkills: 1, TotalSkills: 1}
	cachedJSON, err := json.Marshal(cached)
	require.NoError(t, err)
	require.NoError(t, fx.dedup.CacheRanking(context.Background(), "resume-1", "job-1", string(cachedJSON), time.Hour))

	profileJSON, err := json.Marshal(&types.CandidateProfile{Name: "李四", Experience: 8})
	require.NoError(t, err)
	resume.ProfileJSON = profileJSON

	resp, err := fx.handler.RankResume(context.Background(), "resume-1", "", false)
	require.NoError(t, err)

	assert.Equal(t, 88, resp.Result.Score)
	require.NotNil(t, resp.Profile)
	assert.Equal(t, "李四", resp.Profile.Name)
	assert.Zero(t, fx.extractor.calls, "缓存命中时不应重跑提取")
	assert.Zero(t, fx.ranker.calls, "缓存命中时不应重跑评分")
}

// TestRankResumeForceBypassesCache force=true 绕过缓存强制重评并刷新缓存
func TestRankResumeForceBypassesCache(t *testing.T) {
	fx := newHandlerFixture()
	fx.addJob("job-1")
	fx.addResume("resume-1", "job-1")

	stale := `{"score":10,"explanation":"stale"}`
	require.NoError(t, fx.dedup.CacheRanking(context.Background(), "resume-1", "job-1", stale, time.Hour))
	fx.dedup.cacheWrites = 0

	resp, err := fx.handler.RankResume(context.Background(), "resume-1", "", true)
	require.NoError(t, err)

	assert.Equal(t, 75, resp.Result.Score)
	assert.Equal(t, 1, fx.extractor.calls)
	assert.Equal(t, 1, fx.ranker.calls)
	assert.Equal(t, 1, fx.dedup.cacheWrites, "重评后应刷新缓存")
	assert.NotEqual(t, stale, fx.dedup.cache["job-1:resume-1"])
}

// TestRankResumeProcessingStatusUpdateFailureDoesNotAbort 状态更新失败不中断评分流程
func TestRankResumeProcessingStatusUpdateFailureDoesNotAbort(t *testing.T) {
	fx := newHandlerFixture()
	fx.addJob("job-1")
	fx.addResume("resume-1", "job-1")
	fx.db.processingUpdateErr = errors.New("mysql连接中断")

	resp, err := fx.handler.RankResume(context.Background(), "resume-1", "", true)
	require.NoError(t, err)
	assert.Equal(t, 75, resp.Result.Score)
	require.Len(t, fx.db.rankingLogs, 1)
}

// TestDeleteResume 删除简历时清理对象存储与去重登记
func TestDeleteResume(t *testing.T) {
	fx := newHandlerFixture()
	resume := fx.addResume("resume-1", "job-1")
	resume.ParsedTextPath = "parsed/resume-1.txt"
	resume.RawTextMD5 = "abc123"

	require.NoError(t, fx.handler.DeleteResume(context.Background(), "resume-1"))

	assert.Equal(t, []string{"resumes/resume-1.txt"}, fx.objects.deletedFiles)
	assert.Equal(t, []string{"parsed/resume-1.txt"}, fx.objects.deletedTexts)
	assert.Equal(t, []string{"abc123"}, fx.dedup.removedTextMD5)
	assert.Equal(t, []string{"resume-1"}, fx.db.deleted)
}

// TestDeleteResumeNotFound 不存在的简历返回ErrRecordNotFound
func TestDeleteResumeNotFound(t *testing.T) {
	fx := newHandlerFixture()

	err := fx.handler.DeleteResume(context.Background(), "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Empty(t, fx.objects.deletedFiles)
	assert.Empty(t, fx.db.deleted)
}

// TestGetResumeText 读取解析文本，未解析时报错
func TestGetResumeText(t *testing.T) {
	fx := newHandlerFixture()
	resume := fx.addResume("resume-1", "job-1")

	_, err := fx.handler.GetResumeText(context.Background(), "resume-1")
	assert.Error(t, err, "尚未解析的简历应报错")

	resume.ParsedTextPath = "parsed/resume-1.txt"
	fx.objects.parsedText = map[string]string{"parsed/resume-1.txt": "十年后端开发经验"}

	text, err := fx.handler.GetResumeText(context.Background(), "resume-1")
	require.NoError(t, err)
	assert.Equal(t, "十年后端开发经验", text)
}
