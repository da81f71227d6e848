package router

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"gorm.io/gorm"

	"resume-ranker-go/internal/api/handler"
	"resume-ranker-go/internal/extractor"
	"resume-ranker-go/internal/llm"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz,
	jobHandler *handler.JobHandler,
	resumeHandler *handler.ResumeHandler,
	batchHandler *handler.BatchHandler,
) {
	api := h.Group("/api/v1")

	// 岗位管理
	api.POST("/jobs", func(c context.Context, ctx *app.RequestContext) {
		var req handler.CreateJobRequest
		if err := ctx.BindJSON(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
			return
		}
		job, err := jobHandler.CreateJob(c, &req)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusCreated, job)
	})

	api.GET("/jobs", func(c context.Context, ctx *app.RequestContext) {
		limit, offset := pagination(ctx)
		jobs, err := jobHandler.ListJobs(c, limit, offset)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"jobs": jobs})
	})

	api.GET("/jobs/:job_id", func(c context.Context, ctx *app.RequestContext) {
		job, err := jobHandler.GetJob(c, ctx.Param("job_id"))
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, job)
	})

	api.DELETE("/jobs/:job_id", func(c context.Context, ctx *app.RequestContext) {
		if err := jobHandler.DeleteJob(c, ctx.Param("job_id")); err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"status": "deleted"})
	})

	// 简历上传与查询
	api.POST("/resumes/upload", func(c context.Context, ctx *app.RequestContext) {
		fileHeader, err := ctx.FormFile("file")
		if err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到"})
			return
		}
		jobID := ctx.PostForm("job_id")

		file, err := fileHeader.Open()
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败"})
			return
		}
		defer file.Close()

		fileBytes, err := io.ReadAll(file)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "读取文件失败"})
			return
		}

		resp, err := resumeHandler.HandleResumeUpload(c, fileBytes, fileHeader.Filename, jobID)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.GET("/resumes/:resume_id", func(c context.Context, ctx *app.RequestContext) {
		resume, err := resumeHandler.GetResume(c, ctx.Param("resume_id"))
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resume)
	})

	api.GET("/resumes/:resume_id/text", func(c context.Context, ctx *app.RequestContext) {
		text, err := resumeHandler.GetResumeText(c, ctx.Param("resume_id"))
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"text": text})
	})

	api.GET("/resumes/:resume_id/download_url", func(c context.Context, ctx *app.RequestContext) {
		url, err := resumeHandler.GetResumeDownloadURL(c, ctx.Param("resume_id"))
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"url": url})
	})

	api.DELETE("/resumes/:resume_id", func(c context.Context, ctx *app.RequestContext) {
		if err := resumeHandler.DeleteResume(c, ctx.Param("resume_id")); err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"status": "deleted"})
	})

	// 单份简历评分，force=true 绕过评分缓存强制重评
	api.POST("/resumes/:resume_id/rank", func(c context.Context, ctx *app.RequestContext) {
		jobID := ctx.Query("job_id")
		force := ctx.Query("force") == "true"
		resp, err := resumeHandler.RankResume(c, ctx.Param("resume_id"), jobID, force)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	// 批量评分与排名查询
	api.POST("/jobs/:job_id/rank_batch", func(c context.Context, ctx *app.RequestContext) {
		report, err := batchHandler.RankJobBatch(c, ctx.Param("job_id"))
		if err != nil && report == nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		// 批次被取消时仍返回已有的部分结果
		ctx.JSON(consts.StatusOK, report)
	})

	api.GET("/jobs/:job_id/rankings", func(c context.Context, ctx *app.RequestContext) {
		limit, offset := pagination(ctx)
		rankings, err := batchHandler.ListRankings(c, ctx.Param("job_id"), limit, offset)
		if err != nil {
			ctx.JSON(statusForError(err), utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"rankings": rankings})
	})

	// 健康检查
	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})
}

// pagination 解析limit/offset查询参数
func pagination(ctx *app.RequestContext) (int, int) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	return limit, offset
}

// statusForError 把领域错误映射为HTTP状态码
// 限流与配额错误保留上游语义，调用方据此决定退避或充值
func statusForError(err error) int {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return consts.StatusNotFound
	case errors.Is(err, llm.ErrModelRateLimited):
		return consts.StatusTooManyRequests
	case errors.Is(err, llm.ErrModelQuotaExceeded):
		return consts.StatusPaymentRequired
	case errors.Is(err, extractor.ErrUnsupportedFormat),
		errors.Is(err, extractor.ErrEmptyContent),
		errors.Is(err, extractor.ErrCorruptDocument):
		return consts.StatusUnprocessableEntity
	default:
		return consts.StatusInternalServerError
	}
}
