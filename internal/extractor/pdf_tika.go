package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// TikaPDFBackend 基于Apache Tika服务器的PDF解析后端
// 部署了Tika时可替代内置的Eino后端，对扫描件之外的PDF兼容性更好
type TikaPDFBackend struct {
	serverURL string
	client    *http.Client
	logger    *log.Logger
}

// TikaOption Tika后端的配置选项
type TikaOption func(*TikaPDFBackend)

// WithTikaTimeout 配置HTTP客户端超时时间
func WithTikaTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaPDFBackend) {
		e.client.Timeout = timeout
	}
}

// WithTikaLogger 配置自定义日志记录器
func WithTikaLogger(logger *log.Logger) TikaOption {
	return func(e *TikaPDFBackend) {
		e.logger = logger
	}
}

// NewTikaPDFBackend 创建Tika解析后端
func NewTikaPDFBackend(serverURL string, options ...TikaOption) *TikaPDFBackend {
	backend := &TikaPDFBackend{
		serverURL: serverURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: log.New(io.Discard, "", 0),
	}

	for _, option := range options {
		option(backend)
	}

	return backend
}

// ExtractTextFromBytes 实现PDFBackend接口
// 以纯文本模式PUT到Tika的 /tika 端点
func (e *TikaPDFBackend) ExtractTextFromBytes(ctx context.Context, data []byte, uri string, options interface{}) (string, map[string]interface{}, error) {
	startTime := time.Now()

	url := fmt.Sprintf("%s/tika", e.serverURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}

	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Accept", "text/plain")
	if uri != "" {
		req.Header.Set("X-Tika-Resource-Name", uri)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}

	textBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("读取Tika响应失败: %w", err)
	}

	text := string(textBytes)
	duration := time.Since(startTime)

	metadata := map[string]interface{}{
		"extraction_method":      "tika",
		"text_length":            len(text),
		"processing_duration_ms": duration.Milliseconds(),
	}

	e.logger.Printf("Tika提取完成: %s (%d 个字符, 用时 %.2f秒)", uri, len(text), duration.Seconds())
	return text, metadata, nil
}

var _ PDFBackend = (*TikaPDFBackend)(nil)
