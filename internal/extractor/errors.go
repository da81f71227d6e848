package extractor

import (
	"errors"
	"fmt"
)

// 文本提取阶段的错误类型
// 上游编排器根据这些错误决定单个条目的终态，不做内部重试
var (
	// ErrUnsupportedFormat 声明的媒体类型没有对应的提取器
	ErrUnsupportedFormat = errors.New("不支持的文档格式")

	// ErrCorruptDocument 文档损坏或无法解析（加密PDF、纯扫描件等）
	ErrCorruptDocument = errors.New("文档损坏或无法解析")

	// ErrEmptyContent 提取结果为空或低于最小长度阈值
	ErrEmptyContent = errors.New("提取内容为空")

	// errNoTextLayer PDF解析成功但没有任何文本，常见于纯扫描件
	errNoTextLayer = errors.New("PDF中没有可提取的文本层")
)

// DocumentError 带上下文的文档提取错误
type DocumentError struct {
	FileName string // 原始文件名
	Op       string // 失败的操作
	BaseErr  error  // 基础错误类型
	Detail   string // 详细信息
}

// Error 实现error接口
func (e *DocumentError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("文件 %s 在 %s 阶段失败: %v (%s)", e.FileName, e.Op, e.BaseErr, e.Detail)
	}
	return fmt.Sprintf("文件 %s 在 %s 阶段失败: %v", e.FileName, e.Op, e.BaseErr)
}

// Unwrap 支持errors.Is/errors.As
func (e *DocumentError) Unwrap() error {
	return e.BaseErr
}

// Is 支持errors.Is直接比较基础错误
func (e *DocumentError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// NewUnsupportedFormatError 创建不支持格式的错误
func NewUnsupportedFormatError(fileName, mediaType string) *DocumentError {
	return &DocumentError{
		FileName: fileName,
		Op:       "dispatch",
		BaseErr:  ErrUnsupportedFormat,
		Detail:   fmt.Sprintf("媒体类型: %s", mediaType),
	}
}

// NewCorruptDocumentError 创建文档损坏的错误
func NewCorruptDocumentError(fileName, op string, cause error) *DocumentError {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &DocumentError{
		FileName: fileName,
		Op:       op,
		BaseErr:  ErrCorruptDocument,
		Detail:   detail,
	}
}

// NewEmptyContentError 创建内容为空的错误
func NewEmptyContentError(fileName string, gotLen, minLen int) *DocumentError {
	return &DocumentError{
		FileName: fileName,
		Op:       "postcheck",
		BaseErr:  ErrEmptyContent,
		Detail:   fmt.Sprintf("提取文本长度 %d，低于最小阈值 %d", gotLen, minLen),
	}
}
