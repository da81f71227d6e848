package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-ranker-go/internal/config"
	"resume-ranker-go/internal/tracing"
)

var minioTracer = otel.Tracer("resume-ranker-go/storage/minio")

// MinIO 对象存储客户端
// 原始简历与解析文本分桶存放
type MinIO struct {
	client *minio.Client
	cfg    *config.MinIOConfig
	logger *log.Logger
}

// NewMinIO 创建MinIO客户端并确保存储桶存在
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{
		client: client,
		cfg:    cfg,
		logger: logger,
	}

	for _, bucket := range []string{cfg.ResumesBucket, cfg.ParsedTextBucket} {
		if bucket == "" {
			continue
		}
		if err := m.ensureBucketExists(bucket, cfg.Location); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ensureBucketExists 确保存储桶存在，不存在则创建
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	ctx := context.Background()

	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 失败: %w", bucketName, err)
	}
	if exists {
		return nil
	}

	err = m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location})
	if err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
	}

	m.logger.Printf("已创建存储桶: %s", bucketName)
	return nil
}

// UploadResumeFile 上传原始简历文件，返回对象路径
func (m *MinIO) UploadResumeFile(ctx context.Context, resumeID, fileExt string, data []byte) (string, error) {
	ctx, span := minioTracer.Start(ctx, "MinIO.UploadResumeFile",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("resume.id", resumeID),
			attribute.Int("file.size", len(data)),
		))
	defer span.End()

	objectName := fmt.Sprintf("resumes/%s%s", resumeID, normalizeExt(fileExt))
	contentType := getContentType(fileExt)

	_, err := m.client.PutObject(ctx, m.cfg.ResumesBucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return "", fmt.Errorf("上传简历文件失败: %w", err)
	}

	m.logger.Printf("简历文件已上传: %s (%d 字节)", objectName, len(data))
	return objectName, nil
}

// GetResumeFile 下载原始简历文件
func (m *MinIO) GetResumeFile(ctx context.Context, objectName string) ([]byte, error) {
	ctx, span := minioTracer.Start(ctx, "MinIO.GetResumeFile",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("object.name", objectName)))
	defer span.End()

	obj, err := m.client.GetObject(ctx, m.cfg.ResumesBucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return nil, fmt.Errorf("获取简历文件失败: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return nil, fmt.Errorf("读取简历文件失败: %w", err)
	}

	span.SetAttributes(attribute.Int("file.size", len(data)))
	return data, nil
}

// UploadParsedText 上传解析后的纯文本，返回对象路径
func (m *MinIO) UploadParsedText(ctx context.Context, resumeID string, text string) (string, error) {
	ctx, span := minioTracer.Start(ctx, "MinIO.UploadParsedText",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("resume.id", resumeID)))
	defer span.End()

	objectName := fmt.Sprintf("parsed/%s.txt", resumeID)

	_, err := m.client.PutObject(ctx, m.cfg.ParsedTextBucket, objectName,
		strings.NewReader(text), int64(len(text)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return "", fmt.Errorf("上传解析文本失败: %w", err)
	}

	return objectName, nil
}

// GetParsedText 下载解析后的纯文本
func (m *MinIO) GetParsedText(ctx context.Context, objectName string) (string, error) {
	ctx, span := minioTracer.Start(ctx, "MinIO.GetParsedText",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("object.name", objectName)))
	defer span.End()

	obj, err := m.client.GetObject(ctx, m.cfg.ParsedTextBucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return "", fmt.Errorf("获取解析文本失败: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return "", fmt.Errorf("读取解析文本失败: %w", err)
	}

	return string(data), nil
}

// GetPresignedURL 签发原始简历文件的临时下载链接
func (m *MinIO) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	ctx, span := minioTracer.Start(ctx, "MinIO.GetPresignedURL",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("object.name", objectName)))
	defer span.End()

	reqParams := make(url.Values)
	presignedURL, err := m.client.PresignedGetObject(ctx, m.cfg.ResumesBucket, objectName, expiry, reqParams)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return "", fmt.Errorf("生成预签名URL失败: %w", err)
	}

	return presignedURL.String(), nil
}

// DeleteFile 删除原始简历文件
func (m *MinIO) DeleteFile(ctx context.Context, objectName string) error {
	ctx, span := minioTracer.Start(ctx, "MinIO.DeleteFile",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("object.name", objectName)))
	defer span.End()

	err := m.client.RemoveObject(ctx, m.cfg.ResumesBucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return fmt.Errorf("删除文件失败: %w", err)
	}
	return nil
}

// DeleteParsedText 删除解析后的文本对象
func (m *MinIO) DeleteParsedText(ctx context.Context, objectName string) error {
	ctx, span := minioTracer.Start(ctx, "MinIO.DeleteParsedText",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("object.name", objectName)))
	defer span.End()

	err := m.client.RemoveObject(ctx, m.cfg.ParsedTextBucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStore)
		return fmt.Errorf("删除解析文本失败: %w", err)
	}
	return nil
}

// normalizeExt 规范化文件扩展名，保证以点开头
func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// getContentType 根据扩展名推断Content-Type
func getContentType(ext string) string {
	switch normalizeExt(ext) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
