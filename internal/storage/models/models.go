package models

import (
	"time"

	"gorm.io/datatypes"
)

// Job 岗位信息表
type Job struct {
	JobID              string         `gorm:"type:char(36);primaryKey"`
	Title              string         `gorm:"type:varchar(255);not null"`
	Description        string         `gorm:"type:text;not null"`
	RequiredSkillsJSON datatypes.JSON `gorm:"type:json"`
	RequiredExperience int            `gorm:"type:int;default:0"`
	RequiredDegree     string         `gorm:"type:varchar(255)"`
	Status             string         `gorm:"type:varchar(50);default:'ACTIVE';index:idx_jobs_status"`
	CreatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Job) TableName() string {
	return "jobs"
}

// 简历处理状态取值
const (
	ResumeStatusPending    = "PENDING"
	ResumeStatusProcessing = "PROCESSING"
	ResumeStatusRanked     = "RANKED"
	ResumeStatusFailed     = "FAILED"
)

// Resume 简历提交表
// 原始文件与解析文本存于对象存储，表里只记录路径
type Resume struct {
	ResumeID         string         `gorm:"type:char(36);primaryKey"`
	JobID            *string        `gorm:"type:char(36);index:idx_resumes_job_id"`
	OriginalFilename string         `gorm:"type:varchar(255)"`
	MediaType        string         `gorm:"type:varchar(100)"`
	FilePathOSS      string         `gorm:"type:varchar(1024)"`
	ParsedTextPath   string         `gorm:"type:varchar(1024)"`
	RawTextMD5       string         `gorm:"type:char(32);index:idx_resumes_raw_text_md5"`
	ProfileJSON      datatypes.JSON `gorm:"type:json"`
	Status           string         `gorm:"type:varchar(50);default:'PENDING';index:idx_resumes_status"`
	ErrorMessage     string         `gorm:"type:text"`
	CreatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Job *Job `gorm:"foreignKey:JobID;references:JobID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (Resume) TableName() string {
	return "resumes"
}

// RankingLog 岗位-简历评分记录表
// 解释文本按生成时的字节原样保存，展示层不得再加工
type RankingLog struct {
	RankingID       uint64         `gorm:"primaryKey;autoIncrement"`
	ResumeID        string         `gorm:"type:char(36);not null;index:idx_rl_resume_id;uniqueIndex:idx_rl_resume_job_unique,priority:1"`
	JobID           string         `gorm:"type:char(36);not null;index:idx_rl_job_id_score,priority:1;uniqueIndex:idx_rl_resume_job_unique,priority:2"`
	Score           int            `gorm:"type:int;not null;index:idx_rl_job_id_score,priority:2"`
	Explanation     string         `gorm:"type:text"`
	MatchedSkills   int            `gorm:"type:int;default:0"`
	TotalSkills     int            `gorm:"type:int;default:0"`
	BreakdownJSON   datatypes.JSON `gorm:"type:json"`
	RankedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`

	Resume *Resume `gorm:"foreignKey:ResumeID;references:ResumeID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Job    *Job    `gorm:"foreignKey:JobID;references:JobID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (RankingLog) TableName() string {
	return "ranking_logs"
}
