package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
)

// EinoPDFBackend 使用 Eino PDF Parser 提取文本
type EinoPDFBackend struct {
	parser *pdf.PDFParser
	logger *log.Logger
}

// EinoPDFOption PDF后端的配置选项
type EinoPDFOption func(*EinoPDFBackend)

// WithEinoLogger 配置自定义日志记录器
func WithEinoLogger(logger *log.Logger) EinoPDFOption {
	return func(e *EinoPDFBackend) {
		e.logger = logger
	}
}

// NewEinoPDFBackend 初始化 Eino PDF 解析后端
// 默认配置为不按页面分割，以获取整个文档的连续文本
func NewEinoPDFBackend(ctx context.Context, options ...EinoPDFOption) (*EinoPDFBackend, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false, // 非常重要：我们希望获取整个PDF的文本作为单个字符串
	})
	if err != nil {
		return nil, fmt.Errorf("创建 Eino PDF parser 失败: %w", err)
	}

	backend := &EinoPDFBackend{
		parser: p,
		logger: log.New(io.Discard, "", 0),
	}

	for _, option := range options {
		option(backend)
	}

	return backend, nil
}

// ExtractTextFromBytes 实现PDFBackend接口，从字节数组提取文本
func (e *EinoPDFBackend) ExtractTextFromBytes(ctx context.Context, data []byte, uri string, options interface{}) (string, map[string]interface{}, error) {
	return e.extractFromReader(ctx, bytes.NewReader(data), uri)
}

// extractFromReader 从 io.Reader 中提取文本
func (e *EinoPDFBackend) extractFromReader(ctx context.Context, reader io.Reader, uri string) (string, map[string]interface{}, error) {
	startTime := time.Now()
	e.logger.Printf("开始提取PDF文本 (URI: %s)", uri)

	// 单个文档的解析不应无限阻塞
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	docs, err := e.parser.Parse(ctx, reader, einoParser.WithURI(uri))

	duration := time.Since(startTime)
	if err != nil {
		e.logger.Printf("PDF提取失败: %s (用时 %.2f秒)", err, duration.Seconds())
		return "", nil, fmt.Errorf("eino PDF parser 解析失败 (URI %s): %w", uri, err)
	}

	if len(docs) == 0 {
		e.logger.Printf("PDF解析无结果 (用时 %.2f秒)", duration.Seconds())
		return "", nil, fmt.Errorf("eino PDF parser 未返回任何文档 (URI %s)", uri)
	}

	// 合并所有文档的内容（以防万一返回了多个）
	var fullContent string
	for i, doc := range docs {
		fullContent += doc.Content
		if i < len(docs)-1 {
			fullContent += "\n\n"
		}
	}

	metadata := make(map[string]interface{})
	if docs[0].MetaData != nil {
		for k, v := range docs[0].MetaData {
			metadata[k] = v
		}
	}
	metadata["extraction_method"] = "eino_pdf"
	metadata["document_count"] = len(docs)
	metadata["processing_duration_ms"] = duration.Milliseconds()

	e.logger.Printf("PDF提取完成: 提取了 %d 个字符 (用时 %.2f秒)", len(fullContent), duration.Seconds())
	return fullContent, metadata, nil
}

var _ PDFBackend = (*EinoPDFBackend)(nil)
