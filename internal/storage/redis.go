package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-ranker-go/internal/config"
	"resume-ranker-go/internal/tracing"
)

var redisTracer = otel.Tracer("resume-ranker-go/storage/redis")

// Redis键前缀
const (
	// keyRawFileMD5 原始文件MD5 -> 首次出现的简历ID，上传阶段去重
	keyRawFileMD5 = "resume_ranker:raw_file_md5:"
	// keyParsedTextMD5 解析文本MD5 -> 首次出现的简历ID，同内容不同文件的去重
	keyParsedTextMD5 = "resume_ranker:parsed_text_md5:"
	// keyRankingCache 评分结果缓存
	keyRankingCache = "resume_ranker:ranking:"
)

// Redis 键值存储客户端，承担解析文本去重与评分结果缓存
type Redis struct {
	Client *redis.Client
	cfg    *config.RedisConfig
}

// NewRedis 创建Redis客户端
func NewRedis(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("Redis配置不能为空")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接Redis失败: %w", err)
	}

	return &Redis{
		Client: client,
		cfg:    cfg,
	}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	return r.Client.Close()
}

// Ping 检查Redis连接
func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

// MD5ExpireDuration 去重记录的保留时长
func (r *Redis) MD5ExpireDuration() time.Duration {
	return time.Duration(r.cfg.MD5RecordExpireDays) * 24 * time.Hour
}

// BytesMD5 计算字节内容的MD5十六进制摘要
func BytesMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// TextMD5 计算解析文本的MD5十六进制摘要
func TextMD5(text string) string {
	return BytesMD5([]byte(text))
}

// GetRawFileMD5 查询原始文件MD5的登记记录
// 未登记时返回空串，调用方据此判断文件是否重复
func (r *Redis) GetRawFileMD5(ctx context.Context, md5Hex string) (string, error) {
	ctx, span := redisTracer.Start(ctx, "Redis.GetRawFileMD5",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("dedup.md5", tracing.SafeRedisKey(md5Hex))))
	defer span.End()

	firstID, err := r.Client.Get(ctx, keyRawFileMD5+md5Hex).Result()
	if err == redis.Nil {
		span.SetAttributes(attribute.Bool("dedup.duplicate", false))
		return "", nil
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return "", fmt.Errorf("查询文件MD5记录失败: %w", err)
	}

	span.SetAttributes(attribute.Bool("dedup.duplicate", true))
	return firstID, nil
}

// RegisterRawFileMD5 登记原始文件的MD5
// 必须在简历完成持久化后才调用，否则失败的上传会留下指向幽灵简历的去重记录
// SETNX保证并发上传同一文件时首个完成持久化的简历胜出
func (r *Redis) RegisterRawFileMD5(ctx context.Context, md5Hex, resumeID string) error {
	ctx, span := redisTracer.Start(ctx, "Redis.RegisterRawFileMD5",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("dedup.md5", tracing.SafeRedisKey(md5Hex)),
			attribute.String("resume.id", resumeID),
		))
	defer span.End()

	if err := r.Client.SetNX(ctx, keyRawFileMD5+md5Hex, resumeID, r.MD5ExpireDuration()).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("登记文件MD5失败: %w", err)
	}
	return nil
}

// CheckAndSetTextMD5 原子地检查并登记解析文本的MD5
// SETNX保证并发安全：只有第一次出现的摘要会登记成功
// 返回 (是否已存在, 首次出现的简历ID)
func (r *Redis) CheckAndSetTextMD5(ctx context.Context, md5Hex, resumeID string) (bool, string, error) {
	ctx, span := redisTracer.Start(ctx, "Redis.CheckAndSetTextMD5",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("dedup.md5", tracing.SafeRedisKey(md5Hex)),
			attribute.String("resume.id", resumeID),
		))
	defer span.End()

	key := keyParsedTextMD5 + md5Hex

	ok, err := r.Client.SetNX(ctx, key, resumeID, r.MD5ExpireDuration()).Result()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return false, "", fmt.Errorf("登记文本MD5失败: %w", err)
	}
	if ok {
		// 首次出现
		span.SetAttributes(attribute.Bool("dedup.duplicate", false))
		return false, resumeID, nil
	}

	// 已存在，取首次登记的简历ID
	firstID, err := r.Client.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return true, "", fmt.Errorf("查询已登记的简历ID失败: %w", err)
	}

	span.SetAttributes(attribute.Bool("dedup.duplicate", true))
	return true, firstID, nil
}

// RemoveTextMD5 移除去重记录（简历被删除时调用）
func (r *Redis) RemoveTextMD5(ctx context.Context, md5Hex string) error {
	ctx, span := redisTracer.Start(ctx, "Redis.RemoveTextMD5",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if err := r.Client.Del(ctx, keyParsedTextMD5+md5Hex).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("移除文本MD5记录失败: %w", err)
	}
	return nil
}

// CacheRanking 缓存简历-岗位的评分结果JSON
func (r *Redis) CacheRanking(ctx context.Context, resumeID, jobID string, resultJSON string, ttl time.Duration) error {
	ctx, span := redisTracer.Start(ctx, "Redis.CacheRanking",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("resume.id", resumeID),
			attribute.String("job.id", jobID),
		))
	defer span.End()

	key := fmt.Sprintf("%s%s:%s", keyRankingCache, jobID, resumeID)
	if err := r.Client.Set(ctx, key, resultJSON, ttl).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("缓存评分结果失败: %w", err)
	}
	return nil
}

// GetCachedRanking 读取缓存的评分结果，未命中时返回空串
func (r *Redis) GetCachedRanking(ctx context.Context, resumeID, jobID string) (string, error) {
	ctx, span := redisTracer.Start(ctx, "Redis.GetCachedRanking",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("resume.id", resumeID),
			attribute.String("job.id", jobID),
		))
	defer span.End()

	key := fmt.Sprintf("%s%s:%s", keyRankingCache, jobID, resumeID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return "", nil
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return "", fmt.Errorf("读取评分缓存失败: %w", err)
	}

	span.SetAttributes(attribute.Bool("cache.hit", true))
	return val, nil
}
