package llm

import (
	"errors"
	"fmt"
)

// 定义模型调用的基础错误类型
// 限流(429)与配额耗尽(402)需要与一般性不可用区分开，
// 以便调用方决定是稍后重试整个批次还是视为永久失败
var (
	ErrModelRateLimited     = errors.New("模型服务限流")
	ErrModelQuotaExceeded   = errors.New("模型服务配额耗尽")
	ErrModelUnavailable     = errors.New("模型服务不可用")
	ErrMalformedModelOutput = errors.New("模型输出格式非法")
)

// ModelCallError 包含详细上下文的模型调用错误
type ModelCallError struct {
	Op         string
	Model      string
	StatusCode int
	Detail     string
	BaseErr    error
}

func (e *ModelCallError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (操作:%s, 模型:%s, 状态码:%d): %s", e.BaseErr, e.Op, e.Model, e.StatusCode, e.Detail)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 模型:%s): %s", e.BaseErr, e.Op, e.Model, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 模型:%s)", e.BaseErr, e.Op, e.Model)
}

func (e *ModelCallError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 以支持对基础错误的比较
func (e *ModelCallError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数

func NewRateLimitedError(op, model, detail string) error {
	return &ModelCallError{Op: op, Model: model, StatusCode: 429, Detail: detail, BaseErr: ErrModelRateLimited}
}

func NewQuotaExceededError(op, model, detail string) error {
	return &ModelCallError{Op: op, Model: model, StatusCode: 402, Detail: detail, BaseErr: ErrModelQuotaExceeded}
}

func NewUnavailableError(op, model string, statusCode int, detail string) error {
	return &ModelCallError{Op: op, Model: model, StatusCode: statusCode, Detail: detail, BaseErr: ErrModelUnavailable}
}

func NewMalformedOutputError(op, model, detail string) error {
	return &ModelCallError{Op: op, Model: model, Detail: detail, BaseErr: ErrMalformedModelOutput}
}
