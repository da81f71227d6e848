package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"

	"resume-ranker-go/internal/api/handler"
	"resume-ranker-go/internal/api/router"
	"resume-ranker-go/internal/batch"
	"resume-ranker-go/internal/config"
	"resume-ranker-go/internal/extractor"
	"resume-ranker-go/internal/llm"
	appCoreLogger "resume-ranker-go/internal/logger"
	"resume-ranker-go/internal/profile"
	"resume-ranker-go/internal/scoring"
	"resume-ranker-go/internal/storage"
)

var (
	version     = "1.0.0"
	serviceName = "resume-ranker"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("加载配置失败")
	}

	initLogger(cfg)
	glog.Infof("%s v%s 配置加载成功", serviceName, version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	pipeline, err := buildPipeline(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化流水线失败: %v", err)
	}
	glog.Info("评分流水线初始化成功")

	jobHandler := handler.NewJobHandler(storageManager)
	resumeHandler := handler.NewResumeHandler(cfg, storageManager, pipeline)
	batchHandler := handler.NewBatchHandler(cfg, storageManager, pipeline)

	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		// 请求上下文携带结构化日志实例，处理层通过 logger.Ctx 取用
		c = appCoreLogger.WithContext(c)
		glog.CtxInfof(c, "Request: %s %s", string(ctx.Method()), string(ctx.Path()))
		ctx.Next(c)
		glog.CtxInfof(c, "Response: status %d", ctx.Response.StatusCode())
	})

	router.RegisterRoutes(h, jobHandler, resumeHandler, batchHandler)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// buildPipeline 组装 提取 -> 画像 -> 评分 流水线
func buildPipeline(ctx context.Context, cfg *config.Config) (batch.Components, error) {
	var components batch.Components

	// PDF解析后端按配置选择
	var pdfBackend extractor.PDFBackend
	if cfg.Extractor.PDFBackend == "tika" && cfg.Tika.ServerURL != "" {
		pdfBackend = extractor.NewTikaPDFBackend(cfg.Tika.ServerURL,
			extractor.WithTikaTimeout(time.Duration(cfg.Tika.TimeoutSeconds)*time.Second),
			extractor.WithTikaLogger(appCoreLogger.StdLogger("tika")),
		)
		glog.Info("使用Tika PDF解析后端")
	} else {
		einoBackend, err := extractor.NewEinoPDFBackend(ctx,
			extractor.WithEinoLogger(appCoreLogger.StdLogger("pdf")))
		if err != nil {
			return components, err
		}
		pdfBackend = einoBackend
		glog.Info("使用Eino PDF解析后端")
	}

	components.Extractor = extractor.NewDocumentExtractor(pdfBackend,
		extractor.WithMinTextLength(cfg.Extractor.MinTextLength),
		extractor.WithLogger(appCoreLogger.StdLogger("extractor")),
	)

	// 补全请求的超时由配置决定，两个模型客户端共用同一个HTTP客户端
	llmHTTPClient := &http.Client{Timeout: cfg.LLM.Timeout()}

	profileModel, err := llm.NewChatClient(cfg.LLM.APIKey, cfg.GetModelForTask("profile_extract"), cfg.LLM.APIURL,
		llm.WithHTTPClient(llmHTTPClient),
		llm.WithClientLogger(appCoreLogger.StdLogger("llm")))
	if err != nil {
		return components, err
	}
	components.Profiler, err = profile.NewLLMProfileExtractor(profileModel,
		profile.WithLogger(appCoreLogger.StdLogger("profile")))
	if err != nil {
		return components, err
	}

	scoreModel, err := llm.NewChatClient(cfg.LLM.APIKey, cfg.GetModelForTask("semantic_score"), cfg.LLM.APIURL,
		llm.WithHTTPClient(llmHTTPClient),
		llm.WithClientLogger(appCoreLogger.StdLogger("llm")))
	if err != nil {
		return components, err
	}
	semanticScorer, err := scoring.NewLLMSemanticScorer(scoreModel,
		scoring.WithScorerLogger(appCoreLogger.StdLogger("semantic")))
	if err != nil {
		return components, err
	}
	components.Ranker, err = scoring.NewEngine(semanticScorer,
		scoring.WithEngineLogger(appCoreLogger.StdLogger("ranking")))
	if err != nil {
		return components, err
	}

	return components, nil
}

func initLogger(cfg *config.Config) {
	appCoreLogger.Init(appCoreLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})

	// Hertz 的全局日志走同一个zerolog实例
	hertzCompatibleLogger := hertzadapter.From(appCoreLogger.Logger)
	glog.SetLogger(hertzCompatibleLogger)
}
