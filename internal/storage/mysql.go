package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"resume-ranker-go/internal/config"
	"resume-ranker-go/internal/storage/models"
	"resume-ranker-go/internal/tracing"
)

var mysqlTracer = otel.Tracer("resume-ranker-go/storage/mysql")

// ErrRecordNotFound 记录不存在
var ErrRecordNotFound = gorm.ErrRecordNotFound

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	// 配置GORM日志级别
	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Warn
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	// 设置连接池参数
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	m := &MySQL{
		db:  db,
		cfg: cfg,
	}

	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	return m.db.AutoMigrate(
		&models.Job{},
		&models.Resume{},
		&models.RankingLog{},
	)
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateJob 创建岗位记录
func (m *MySQL) CreateJob(ctx context.Context, job *models.Job) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.CreateJob",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("job.id", job.JobID)))
	defer span.End()

	if err := m.db.WithContext(ctx).Create(job).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("创建岗位失败: %w", err)
	}
	return nil
}

// GetJobByID 按ID取岗位，不存在时返回 ErrRecordNotFound
func (m *MySQL) GetJobByID(ctx context.Context, jobID string) (*models.Job, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.GetJobByID",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("job.id", jobID)))
	defer span.End()

	var job models.Job
	err := m.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
		}
		return nil, err
	}
	return &job, nil
}

// ListJobs 按创建时间倒序列出岗位
func (m *MySQL) ListJobs(ctx context.Context, limit, offset int) ([]models.Job, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.ListJobs", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var jobs []models.Job
	err := m.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("查询岗位列表失败: %w", err)
	}
	return jobs, nil
}

// DeleteJob 删除岗位记录
func (m *MySQL) DeleteJob(ctx context.Context, jobID string) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.DeleteJob",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("job.id", jobID)))
	defer span.End()

	if err := m.db.WithContext(ctx).Where("job_id = ?", jobID).Delete(&models.Job{}).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("删除岗位失败: %w", err)
	}
	return nil
}

// CreateResume 创建简历记录
func (m *MySQL) CreateResume(ctx context.Context, resume *models.Resume) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.CreateResume",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("resume.id", resume.ResumeID)))
	defer span.End()

	if err := m.db.WithContext(ctx).Create(resume).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("创建简历记录失败: %w", err)
	}
	return nil
}

// GetResumeByID 按ID取简历，不存在时返回 ErrRecordNotFound
func (m *MySQL) GetResumeByID(ctx context.Context, resumeID string) (*models.Resume, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.GetResumeByID",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("resume.id", resumeID)))
	defer span.End()

	var resume models.Resume
	err := m.db.WithContext(ctx).Where("resume_id = ?", resumeID).First(&resume).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
		}
		return nil, err
	}
	return &resume, nil
}

// ListResumesByJob 列出岗位下的全部简历
func (m *MySQL) ListResumesByJob(ctx context.Context, jobID string) ([]models.Resume, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.ListResumesByJob",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("job.id", jobID)))
	defer span.End()

	var resumes []models.Resume
	err := m.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at DESC").
		Find(&resumes).Error
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("查询简历列表失败: %w", err)
	}
	return resumes, nil
}

// DeleteResume 删除简历记录，评分记录随外键级联删除
func (m *MySQL) DeleteResume(ctx context.Context, resumeID string) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.DeleteResume",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("resume.id", resumeID)))
	defer span.End()

	if err := m.db.WithContext(ctx).Where("resume_id = ?", resumeID).Delete(&models.Resume{}).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("删除简历失败: %w", err)
	}
	return nil
}

// UpdateResumeFields 按字段更新简历记录
func (m *MySQL) UpdateResumeFields(ctx context.Context, resumeID string, updates map[string]interface{}) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.UpdateResumeFields",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("resume.id", resumeID),
			attribute.Int("update.field_count", len(updates)),
		))
	defer span.End()

	result := m.db.WithContext(ctx).
		Model(&models.Resume{}).
		Where("resume_id = ?", resumeID).
		Updates(updates)
	if result.Error != nil {
		tracing.RecordError(span, result.Error, tracing.ErrorTypeDB)
		return fmt.Errorf("更新简历记录失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SaveRankingLog 保存或更新评分记录
// 同一简历-岗位组合的重复评分覆盖旧记录
func (m *MySQL) SaveRankingLog(ctx context.Context, rankingLog *models.RankingLog) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.SaveRankingLog",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("resume.id", rankingLog.ResumeID),
			attribute.String("job.id", rankingLog.JobID),
			attribute.Int("ranking.score", rankingLog.Score),
		))
	defer span.End()

	err := m.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "resume_id"}, {Name: "job_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"score", "explanation", "matched_skills", "total_skills", "breakdown_json", "ranked_at",
			}),
		}).
		Create(rankingLog).Error
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("保存评分记录失败: %w", err)
	}
	return nil
}

// ListRankingsByJob 按分数倒序列出岗位下的评分记录
func (m *MySQL) ListRankingsByJob(ctx context.Context, jobID string, limit, offset int) ([]models.RankingLog, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.ListRankingsByJob",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("job.id", jobID)))
	defer span.End()

	var rankings []models.RankingLog
	err := m.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("score DESC, ranked_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rankings).Error
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("查询评分记录失败: %w", err)
	}
	return rankings, nil
}
