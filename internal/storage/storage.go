package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"resume-ranker-go/internal/config"
)

// Storage 存储管理器，聚合所有存储相关依赖
type Storage struct {
	// 对象存储
	MinIO *MinIO

	// 关系型数据库
	MySQL *MySQL

	// 键值存储
	Redis *Redis
}

// NewStorage 创建存储管理器
// MinIO为必选依赖；MySQL与Redis按配置初始化，失败只告警不中断
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	storage := &Storage{}
	var err error

	var minioLogger *log.Logger
	if cfg.Logger.Level == "debug" {
		minioLogger = log.New(os.Stderr, "[MinIOStorage] ", log.LstdFlags|log.Lshortfile)
	} else {
		minioLogger = log.New(io.Discard, "", 0)
	}

	storage.MinIO, err = NewMinIO(&cfg.MinIO, minioLogger)
	if err != nil {
		return nil, fmt.Errorf("初始化MinIO失败: %w", err)
	}
	log.Println("MinIO客户端初始化成功")

	if cfg.MySQL.Host != "" {
		storage.MySQL, err = NewMySQL(&cfg.MySQL)
		if err != nil {
			log.Printf("警告: 初始化MySQL失败: %v", err)
		}
	}

	if cfg.Redis.Address != "" {
		storage.Redis, err = NewRedis(&cfg.Redis)
		if err != nil {
			log.Printf("警告: 初始化Redis失败: %v", err)
		} else {
			log.Println("Redis客户端初始化成功")
		}
	}

	return storage, nil
}

// Close 释放所有存储连接
func (s *Storage) Close() error {
	var firstErr error

	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
