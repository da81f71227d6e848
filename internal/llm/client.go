package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	// OpenAI兼容的chat completions端点
	defaultCompletionAPIURL = "https://ai.gateway.lovable.dev/v1/chat/completions"
	defaultModelName        = "google/gemini-2.5-flash"
)

// ChatClient 通过OpenAI兼容的chat completions API访问外部补全服务
// 画像提取与语义评分共用同一个客户端，只是提示词不同
// 实现了 eino 的 model.ChatModel 接口，便于用确定性替身做测试
type ChatClient struct {
	apiKey     string
	modelName  string
	apiURL     string
	httpClient *http.Client
	logger     *log.Logger
}

// ChatClientOption ChatClient的配置选项
type ChatClientOption func(*ChatClient)

// WithHTTPClient 配置自定义HTTP客户端（超时、代理等）
func WithHTTPClient(c *http.Client) ChatClientOption {
	return func(cc *ChatClient) {
		cc.httpClient = c
	}
}

// WithClientLogger 配置自定义日志记录器
func WithClientLogger(logger *log.Logger) ChatClientOption {
	return func(cc *ChatClient) {
		cc.logger = logger
	}
}

// NewChatClient 创建补全服务客户端
func NewChatClient(apiKey, modelName, apiURL string, options ...ChatClientOption) (*ChatClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}

	mn := modelName
	if strings.TrimSpace(mn) == "" {
		mn = defaultModelName
	}

	url := apiURL
	if strings.TrimSpace(url) == "" {
		url = defaultCompletionAPIURL
	}

	c := &ChatClient{
		apiKey:    apiKey,
		modelName: mn,
		apiURL:    url,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: log.New(io.Discard, "", 0),
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// --- OpenAI兼容的请求/响应结构 ---

type chatCompletionRequest struct {
	Model    string            `json:"model"`
	Messages []*schema.Message `json:"messages"` // schema.Message 的 role/content 字段与API兼容
}

type chatChoiceMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type chatChoice struct {
	Index        int               `json:"index"`
	Message      chatChoiceMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type chatCompletionResponse struct {
	Id      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

// Generate 实现 model.ChatModel 接口
// HTTP层失败按状态码映射到可区分的错误类型：
// 429 -> ErrModelRateLimited, 402 -> ErrModelQuotaExceeded, 其余 -> ErrModelUnavailable
func (c *ChatClient) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	for _, opt := range options {
		_ = opt // 本客户端无需处理通用选项
	}

	reqPayload := chatCompletionRequest{
		Model:    c.modelName,
		Messages: messages,
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Printf("[ChatClient] 发送请求到 %s，模型 %s，消息数 %d", c.apiURL, c.modelName, len(messages))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewUnavailableError("complete", c.modelName, 0, err.Error())
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewUnavailableError("complete", c.modelName, httpResp.StatusCode, fmt.Sprintf("读取响应体失败: %v", err))
	}

	switch httpResp.StatusCode {
	case http.StatusOK:
		// 继续解析
	case http.StatusTooManyRequests:
		return nil, NewRateLimitedError("complete", c.modelName, string(bodyBytes))
	case http.StatusPaymentRequired:
		return nil, NewQuotaExceededError("complete", c.modelName, string(bodyBytes))
	default:
		return nil, NewUnavailableError("complete", c.modelName, httpResp.StatusCode, string(bodyBytes))
	}

	var apiResp chatCompletionResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, NewUnavailableError("complete", c.modelName, httpResp.StatusCode, fmt.Sprintf("反序列化 API 响应失败: %v", err))
	}

	if len(apiResp.Choices) == 0 {
		return nil, NewUnavailableError("complete", c.modelName, httpResp.StatusCode, "API 返回空选项")
	}

	apiMessage := apiResp.Choices[0].Message
	responseContent := ""
	if apiMessage.Content != nil {
		responseContent = *apiMessage.Content
	}
	if responseContent == "" {
		return nil, NewUnavailableError("complete", c.modelName, httpResp.StatusCode, "API 响应中无内容")
	}

	resultMessage := &schema.Message{
		Role:    schema.RoleType(apiMessage.Role),
		Content: responseContent,
	}
	if resultMessage.Role == "" {
		resultMessage.Role = schema.Assistant
	}

	return resultMessage, nil
}

// Stream 实现 model.ChatModel 接口（本服务不使用流式输出）
func (c *ChatClient) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("ChatClient 的 Stream 方法未实现")
}

// BindTools 实现 model.ChatModel 接口
// 画像提取与语义评分都不依赖工具调用，绑定请求被忽略
func (c *ChatClient) BindTools(tools []*schema.ToolInfo) error {
	if len(tools) > 0 {
		c.logger.Printf("[ChatClient] 忽略 %d 个工具绑定请求，本客户端不支持工具调用", len(tools))
	}
	return nil
}

var _ model.ChatModel = (*ChatClient)(nil)
