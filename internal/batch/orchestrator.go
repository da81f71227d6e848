package batch

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-ranker-go/internal/tracing"
	"resume-ranker-go/internal/types"
)

var tracer = otel.Tracer("batch")

// 各阶段完成后的进度里程碑
// 数值本身是实现选择，单项内的单调递增是硬约束
const (
	progressPending    = 0
	progressExtracting = 10
	progressProfiling  = 40
	progressScoring    = 70
	progressDone       = 100
)

// TextExtractor 文本提取阶段的依赖
type TextExtractor interface {
	Extract(ctx context.Context, doc types.RawDocument) (types.ExtractedText, error)
}

// ProfileExtractor 画像提取阶段的依赖
type ProfileExtractor interface {
	Extract(ctx context.Context, text types.ExtractedText, fileName string) (*types.CandidateProfile, error)
}

// Ranker 评分阶段的依赖
type Ranker interface {
	Rank(ctx context.Context, job types.JobRequirement, profile *types.CandidateProfile) (types.ScoreBreakdown, *types.RankingResult, error)
}

// Item 批处理的输入条目
// ID 为空时由编排器生成
type Item struct {
	ID       string
	Document types.RawDocument
}

// Components 聚合编排器的全部流水线依赖，便于集中管理和测试替换
type Components struct {
	Extractor TextExtractor
	Profiler  ProfileExtractor
	Ranker    Ranker
}

// Orchestrator 批处理编排器
// 严格串行处理条目以尊重外部模型服务的限流，这是刻意的吞吐换健壮性
// 状态表仅由编排器自身写入（单写者），外部通过快照只读访问
type Orchestrator struct {
	components Components
	logger     *log.Logger

	mu       sync.RWMutex
	statuses map[string]*types.BatchItemStatus

	// onUpdate 每次状态变化后回调一份状态副本，供调用方渲染实时进度
	onUpdate func(types.BatchItemStatus)
}

// Option 编排器的配置选项
type Option func(*Orchestrator)

// WithLogger 配置自定义日志记录器
func WithLogger(logger *log.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithUpdateCallback 配置状态变化回调
func WithUpdateCallback(fn func(types.BatchItemStatus)) Option {
	return func(o *Orchestrator) {
		o.onUpdate = fn
	}
}

// NewOrchestrator 创建批处理编排器
func NewOrchestrator(components Components, options ...Option) (*Orchestrator, error) {
	if components.Extractor == nil || components.Profiler == nil || components.Ranker == nil {
		return nil, fmt.Errorf("编排器依赖不完整")
	}

	o := &Orchestrator{
		components: components,
		logger:     log.New(io.Discard, "", 0),
		statuses:   make(map[string]*types.BatchItemStatus),
	}

	for _, option := range options {
		option(o)
	}

	return o, nil
}

// Run 对一批文档依次执行 提取 -> 画像 -> 评分 的完整流水线
// 单个条目的失败只终结该条目（error终态），后续条目照常执行
// 上下文取消只在条目间生效，进行中的外部调用允许完成或超时
func (o *Orchestrator) Run(ctx context.Context, job types.JobRequirement, items []Item) (*types.BatchReport, error) {
	batchID := uuid.New().String()

	ctx, span := tracer.Start(ctx, "Orchestrator.Run",
		trace.WithAttributes(
			attribute.String("batch.id", batchID),
			attribute.Int("batch.size", len(items)),
			attribute.String("job.title", job.Title),
		))
	defer span.End()

	o.logger.Printf("开始批处理 %s: %d 份文档, 岗位 %q", batchID, len(items), job.Title)

	// 先注册全部条目，调用方从一开始就能看到完整的批次视图
	ids := make([]string, len(items))
	for i := range items {
		id := items[i].ID
		if id == "" {
			id = uuid.New().String()
		}
		ids[i] = id
		o.register(id, items[i].Document.FileName)
	}

	var canceled error
	for i, item := range items {
		// 取消检查只在条目间进行
		if err := ctx.Err(); err != nil {
			o.logger.Printf("批处理 %s 在第 %d 项前被取消", batchID, i+1)
			span.AddEvent("batch canceled between items")
			canceled = err
			break
		}
		o.processItem(ctx, job, ids[i], item.Document)
	}

	report := o.buildReport(batchID, ids)
	span.SetAttributes(
		attribute.Int("batch.succeeded", report.Succeeded),
		attribute.Int("batch.failed", report.Failed),
	)
	o.logger.Printf("批处理 %s 完成: 成功 %d, 失败 %d", batchID, report.Succeeded, report.Failed)

	return report, canceled
}

// processItem 执行单个条目的完整流水线
// 任一阶段失败即进入error终态并携带触发错误的信息，错误不在内部重试
func (o *Orchestrator) processItem(ctx context.Context, job types.JobRequirement, itemID string, doc types.RawDocument) {
	ctx, span := tracer.Start(ctx, "Orchestrator.processItem",
		trace.WithAttributes(
			attribute.String("item.id", itemID),
			attribute.String("item.file_name", doc.FileName),
		))
	defer span.End()

	o.transition(itemID, types.ItemStateExtracting, progressExtracting)
	text, err := o.components.Extractor.Extract(ctx, doc)
	if err != nil {
		o.fail(itemID, span, "文本提取失败", tracing.ErrorTypeExtraction, err)
		return
	}
	span.AddEvent("text extracted")
	span.SetAttributes(attribute.String("item.text_preview", tracing.SafeResumeContent(text.Text)))

	o.transition(itemID, types.ItemStateProfiling, progressProfiling)
	profile, err := o.components.Profiler.Extract(ctx, text, doc.FileName)
	if err != nil {
		o.fail(itemID, span, "画像提取失败", tracing.ErrorTypeLLM, err)
		return
	}
	span.AddEvent("profile extracted")
	span.SetAttributes(attribute.String("profile.name",
		tracing.SafeAttributeValue("profile.name", profile.Name, tracing.DefaultMaxLength)))

	o.transition(itemID, types.ItemStateScoring, progressScoring)
	_, result, err := o.components.Ranker.Rank(ctx, job, profile)
	if err != nil {
		o.fail(itemID, span, "评分失败", tracing.ErrorTypeLLM, err)
		return
	}
	span.AddEvent("ranking complete")

	o.succeed(itemID, profile, result)
	span.SetAttributes(
		attribute.Int("item.score", result.Score),
		attribute.String("item.explanation", tracing.TruncateString(result.Explanation, tracing.MaxExplanationLength)),
	)
}

// Snapshot 返回指定条目的状态副本，条目不存在时第二个返回值为false
func (o *Orchestrator) Snapshot(itemID string) (types.BatchItemStatus, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	st, ok := o.statuses[itemID]
	if !ok {
		return types.BatchItemStatus{}, false
	}
	return *st, true
}

// register 注册新条目，初始为pending态
func (o *Orchestrator) register(itemID, fileName string) {
	o.mu.Lock()
	st := &types.BatchItemStatus{
		ItemID:   itemID,
		FileName: fileName,
		State:    types.ItemStatePending,
		Progress: progressPending,
	}
	o.statuses[itemID] = st
	o.mu.Unlock()

	o.notify(st)
}

// transition 推进条目到新状态，进度只增不减
// 终态不可离开：success和error之后的状态推进会被忽略
func (o *Orchestrator) transition(itemID string, state types.ItemState, progress int) {
	o.mu.Lock()
	st := o.statuses[itemID]
	if st.State.Terminal() {
		o.mu.Unlock()
		return
	}
	st.State = state
	if progress > st.Progress {
		st.Progress = progress
	}
	o.mu.Unlock()

	o.notify(st)
}

// succeed 将条目置为success终态并记录结果
func (o *Orchestrator) succeed(itemID string, profile *types.CandidateProfile, result *types.RankingResult) {
	o.mu.Lock()
	st := o.statuses[itemID]
	st.State = types.ItemStateSuccess
	st.Progress = progressDone
	st.Profile = profile
	st.Result = result
	score := result.Score
	st.Score = &score
	o.mu.Unlock()

	o.logger.Printf("条目 %s 处理成功: %d/100", itemID, result.Score)
	o.notify(st)
}

// fail 将条目置为error终态并记录触发错误
func (o *Orchestrator) fail(itemID string, span trace.Span, stage string, errorType tracing.ErrorType, err error) {
	tracing.RecordError(span, err, errorType)

	o.mu.Lock()
	st := o.statuses[itemID]
	st.State = types.ItemStateError
	st.Error = err.Error()
	o.mu.Unlock()

	o.logger.Printf("条目 %s %s: %v", itemID, stage, err)
	o.notify(st)
}

// buildReport 汇总本批次条目的终态统计
// 状态表跨批次留存以支持事后查询，报告只统计本次运行的条目
func (o *Orchestrator) buildReport(batchID string, ids []string) *types.BatchReport {
	o.mu.RLock()
	defer o.mu.RUnlock()

	report := &types.BatchReport{BatchID: batchID}
	for _, id := range ids {
		st, ok := o.statuses[id]
		if !ok {
			continue
		}
		copied := *st
		report.Items = append(report.Items, &copied)
		switch st.State {
		case types.ItemStateSuccess:
			report.Succeeded++
		case types.ItemStateError:
			report.Failed++
		}
	}
	return report
}

func (o *Orchestrator) notify(st *types.BatchItemStatus) {
	if o.onUpdate == nil {
		return
	}
	o.mu.RLock()
	copied := *st
	o.mu.RUnlock()
	o.onUpdate(copied)
}
