package extractor

import (
	"context"
	"io"
	"log"
	"strings"

	"resume-ranker-go/internal/types"
)

// 默认的最小有效文本长度，低于该长度视为提取失败
// 过短的文本会让下游画像提取凭空编造字段，宁可失败也不传播噪声
const DefaultMinTextLength = 25

// TextExtractor 文本提取器接口
// 输入原始文档字节与声明的媒体类型，输出纯文本
type TextExtractor interface {
	Extract(ctx context.Context, doc types.RawDocument) (types.ExtractedText, error)
}

// PDFBackend PDF解析后端接口，便于在Eino与Tika之间切换
type PDFBackend interface {
	ExtractTextFromBytes(ctx context.Context, data []byte, uri string, options interface{}) (string, map[string]interface{}, error)
}

// DocumentExtractor 按媒体类型分发的文本提取器
type DocumentExtractor struct {
	pdfBackend    PDFBackend
	minTextLength int
	logger        *log.Logger
}

// Option DocumentExtractor的配置选项
type Option func(*DocumentExtractor)

// WithMinTextLength 配置最小有效文本长度
func WithMinTextLength(n int) Option {
	return func(d *DocumentExtractor) {
		if n > 0 {
			d.minTextLength = n
		}
	}
}

// WithLogger 配置自定义日志记录器
func WithLogger(logger *log.Logger) Option {
	return func(d *DocumentExtractor) {
		d.logger = logger
	}
}

// NewDocumentExtractor 创建文档提取器
// pdfBackend 为必选依赖，其余走默认值
func NewDocumentExtractor(pdfBackend PDFBackend, options ...Option) *DocumentExtractor {
	d := &DocumentExtractor{
		pdfBackend:    pdfBackend,
		minTextLength: DefaultMinTextLength,
		logger:        log.New(io.Discard, "", 0),
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// Extract 实现TextExtractor接口
// 失败时返回 ErrUnsupportedFormat / ErrCorruptDocument / ErrEmptyContent 三类可区分错误
func (d *DocumentExtractor) Extract(ctx context.Context, doc types.RawDocument) (types.ExtractedText, error) {
	if len(doc.Content) == 0 {
		return types.ExtractedText{}, NewEmptyContentError(doc.FileName, 0, d.minTextLength)
	}

	var (
		text          string
		metadata      map[string]interface{}
		lowConfidence bool
		err           error
	)

	switch doc.MediaType {
	case types.MediaTypePlain:
		text = strings.TrimPrefix(string(doc.Content), "\ufeff")
		metadata = map[string]interface{}{"extraction_method": "plain"}

	case types.MediaTypePDF:
		text, metadata, err = d.pdfBackend.ExtractTextFromBytes(ctx, doc.Content, doc.FileName, nil)
		if err != nil {
			d.logger.Printf("PDF提取失败: %s: %v", doc.FileName, err)
			return types.ExtractedText{}, NewCorruptDocumentError(doc.FileName, "pdf", err)
		}
		// 无文本层的PDF（加密或纯扫描件）归为损坏文档而非空内容
		if strings.TrimSpace(text) == "" {
			return types.ExtractedText{}, NewCorruptDocumentError(doc.FileName, "pdf", errNoTextLayer)
		}

	case types.MediaTypeDOCX:
		text, err = extractDOCXText(doc.Content)
		if err != nil {
			d.logger.Printf("DOCX提取失败: %s: %v", doc.FileName, err)
			return types.ExtractedText{}, NewCorruptDocumentError(doc.FileName, "docx", err)
		}
		metadata = map[string]interface{}{"extraction_method": "docx"}

	case types.MediaTypeDOC:
		// 旧版二进制格式没有可靠的解析库，退化为可打印文本打捞
		// 结果标记为低置信度，调用方不应将其等同于格式感知解析
		text = salvageBinaryText(doc.Content)
		metadata = map[string]interface{}{"extraction_method": "doc_salvage"}
		lowConfidence = true

	default:
		return types.ExtractedText{}, NewUnsupportedFormatError(doc.FileName, string(doc.MediaType))
	}

	trimmed := strings.TrimSpace(text)
	if len(trimmed) < d.minTextLength {
		d.logger.Printf("提取文本过短: %s (长度 %d)", doc.FileName, len(trimmed))
		return types.ExtractedText{}, NewEmptyContentError(doc.FileName, len(trimmed), d.minTextLength)
	}

	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	metadata["text_length"] = len(trimmed)

	d.logger.Printf("提取完成: %s (%d 个字符, 低置信度=%v)", doc.FileName, len(trimmed), lowConfidence)

	return types.ExtractedText{
		Text:          trimmed,
		Metadata:      metadata,
		LowConfidence: lowConfidence,
	}, nil
}

var _ TextExtractor = (*DocumentExtractor)(nil)
