package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"resume-ranker-go/internal/batch"
	"resume-ranker-go/internal/config"
	"resume-ranker-go/internal/extractor"
	"resume-ranker-go/internal/llm"
	appCoreLogger "resume-ranker-go/internal/logger"
	"resume-ranker-go/internal/profile"
	"resume-ranker-go/internal/scoring"
	"resume-ranker-go/internal/types"
)

const usageText = `rankctl - 简历解析与评分命令行工具

用法:
  rankctl extract <resume-file>            提取简历纯文本
  rankctl profile <resume-file>            提取候选人画像(JSON)
  rankctl rank <resume-file> [flags]       对一份简历执行完整评分

rank 子命令参数:
  --title        岗位名称 (必填)
  --desc         岗位描述
  --skills       必备技能，逗号分隔
  --experience   要求工作年限
  --degree       要求学历

全局参数:
  -c, --config   配置文件路径
`

func main() {
	var (
		configPath string
		jobTitle   string
		jobDesc    string
		jobSkills  string
		jobExp     int
		jobDegree  string
	)
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.StringVar(&jobTitle, "title", "", "Job title")
	pflag.StringVar(&jobDesc, "desc", "", "Job description")
	pflag.StringVar(&jobSkills, "skills", "", "Required skills, comma separated")
	pflag.IntVar(&jobExp, "experience", 0, "Required years of experience")
	pflag.StringVar(&jobDegree, "degree", "", "Required degree")
	pflag.Parse()

	args := pflag.Args()
	if len(args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
	command, filePath := args[0], args[1]

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fatalf("加载配置失败: %v", err)
	}
	appCoreLogger.Init(appCoreLogger.Config{Level: "warn", Format: "pretty"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	doc, err := readDocument(filePath)
	if err != nil {
		fatalf("读取文件失败: %v", err)
	}

	switch command {
	case "extract":
		err = runExtract(ctx, cfg, doc)
	case "profile":
		err = runProfile(ctx, cfg, doc)
	case "rank":
		if jobTitle == "" {
			fatalf("rank 子命令需要 --title 参数")
		}
		job := types.JobRequirement{
			Title:              jobTitle,
			Description:        jobDesc,
			RequiredSkills:     splitSkills(jobSkills),
			RequiredExperience: jobExp,
			RequiredDegree:     jobDegree,
		}
		err = runRank(ctx, cfg, doc, job)
	default:
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
	if err != nil {
		fatalf("%v", err)
	}
}

func runExtract(ctx context.Context, cfg *config.Config, doc types.RawDocument) error {
	docExtractor, err := buildExtractor(ctx, cfg)
	if err != nil {
		return err
	}
	text, err := docExtractor.Extract(ctx, doc)
	if err != nil {
		return err
	}
	fmt.Println(text.Text)
	return nil
}

func runProfile(ctx context.Context, cfg *config.Config, doc types.RawDocument) error {
	docExtractor, err := buildExtractor(ctx, cfg)
	if err != nil {
		return err
	}
	text, err := docExtractor.Extract(ctx, doc)
	if err != nil {
		return err
	}
	profiler, err := buildProfiler(cfg)
	if err != nil {
		return err
	}
	candidate, err := profiler.Extract(ctx, text, doc.FileName)
	if err != nil {
		return err
	}
	return printJSON(candidate)
}

func runRank(ctx context.Context, cfg *config.Config, doc types.RawDocument, job types.JobRequirement) error {
	docExtractor, err := buildExtractor(ctx, cfg)
	if err != nil {
		return err
	}
	text, err := docExtractor.Extract(ctx, doc)
	if err != nil {
		return err
	}
	profiler, err := buildProfiler(cfg)
	if err != nil {
		return err
	}
	candidate, err := profiler.Extract(ctx, text, doc.FileName)
	if err != nil {
		return err
	}
	ranker, err := buildRanker(cfg)
	if err != nil {
		return err
	}
	breakdown, result, err := ranker.Rank(ctx, job, candidate)
	if err != nil {
		return err
	}
	fmt.Println(result.Explanation)
	fmt.Println()
	return printJSON(map[string]interface{}{
		"final_score": result.Score,
		"breakdown":   breakdown,
	})
}

func buildExtractor(ctx context.Context, cfg *config.Config) (*extractor.DocumentExtractor, error) {
	var pdfBackend extractor.PDFBackend
	if cfg.Extractor.PDFBackend == "tika" && cfg.Tika.ServerURL != "" {
		pdfBackend = extractor.NewTikaPDFBackend(cfg.Tika.ServerURL,
			extractor.WithTikaTimeout(time.Duration(cfg.Tika.TimeoutSeconds)*time.Second))
	} else {
		einoBackend, err := extractor.NewEinoPDFBackend(ctx)
		if err != nil {
			return nil, err
		}
		pdfBackend = einoBackend
	}
	return extractor.NewDocumentExtractor(pdfBackend,
		extractor.WithMinTextLength(cfg.Extractor.MinTextLength)), nil
}

func buildProfiler(cfg *config.Config) (batch.ProfileExtractor, error) {
	chatModel, err := llm.NewChatClient(cfg.LLM.APIKey, cfg.GetModelForTask("profile_extract"), cfg.LLM.APIURL,
		llm.WithHTTPClient(&http.Client{Timeout: cfg.LLM.Timeout()}))
	if err != nil {
		return nil, err
	}
	return profile.NewLLMProfileExtractor(chatModel)
}

func buildRanker(cfg *config.Config) (*scoring.Engine, error) {
	chatModel, err := llm.NewChatClient(cfg.LLM.APIKey, cfg.GetModelForTask("semantic_score"), cfg.LLM.APIURL,
		llm.WithHTTPClient(&http.Client{Timeout: cfg.LLM.Timeout()}))
	if err != nil {
		return nil, err
	}
	semanticScorer, err := scoring.NewLLMSemanticScorer(chatModel)
	if err != nil {
		return nil, err
	}
	return scoring.NewEngine(semanticScorer)
}

func readDocument(filePath string) (types.RawDocument, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return types.RawDocument{}, err
	}
	return types.RawDocument{
		Content:   data,
		MediaType: types.ParseMediaType(filepath.Ext(filePath)),
		FileName:  filepath.Base(filePath),
	}, nil
}

func splitSkills(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	skills := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			skills = append(skills, trimmed)
		}
	}
	return skills
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
