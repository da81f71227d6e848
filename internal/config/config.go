package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig 补全服务配置
type LLMConfig struct {
	APIKey string `yaml:"api_key"`
	APIURL string `yaml:"api_url"`
	Model  string `yaml:"model"`
	// 任务专用模型，键为任务名（profile_extract / semantic_score）
	TaskModels     map[string]string `yaml:"task_models"`
	TimeoutSeconds int               `yaml:"timeout_seconds"` // 单次补全请求超时(秒)
}

// ExtractorConfig 文本提取配置
type ExtractorConfig struct {
	// PDFBackend PDF解析后端: "eino" 或 "tika"
	PDFBackend string `yaml:"pdf_backend"`
	// MinTextLength 最小有效文本长度，低于该值视为提取失败
	MinTextLength int `yaml:"min_text_length"`
}

// TikaConfig Tika服务器配置结构
type TikaConfig struct {
	ServerURL      string `yaml:"server_url"`      // Tika服务器URL
	TimeoutSeconds int    `yaml:"timeout_seconds"` // 超时时间(秒)
}

// MinIOConfig MinIO配置结构
type MinIOConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UseSSL          bool   `yaml:"useSSL"`
	Location        string `yaml:"location"` // 可选，存储桶区域
	// 存储桶名称
	ResumesBucket    string `yaml:"resumesBucket"`    // 原始简历存储桶
	ParsedTextBucket string `yaml:"parsedTextBucket"` // 解析文本存储桶
}

// MySQLConfig MySQL配置结构
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	// 连接池设置
	MaxIdleConns int `yaml:"max_idle_conns"` // 最大空闲连接数
	MaxOpenConns int `yaml:"max_open_conns"` // 最大打开连接数
	// 连接生命周期
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"` // 连接最大生命周期(分钟)
	// 日志设置
	LogLevel int `yaml:"log_level"` // 日志级别(1-4)
}

// RedisConfig Redis配置结构
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// 连接池设置
	PoolSize     int `yaml:"pool_size"`      // 连接池大小
	MinIdleConns int `yaml:"min_idle_conns"` // 最小空闲连接数
	// 文本MD5去重记录的过期时间(天)
	MD5RecordExpireDays int `yaml:"md5_record_expire_days"`
}

// ServerConfig 定义服务器配置
type ServerConfig struct {
	Address string `yaml:"address"` // 例如 ":8080" or "0.0.0.0:8080"
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level        string `yaml:"level"`         // debug, info, warn, error
	Format       string `yaml:"format"`        // json, pretty
	TimeFormat   string `yaml:"time_format"`   // 时间格式
	ReportCaller bool   `yaml:"report_caller"` // 是否报告调用位置
}

// Config 应用程序配置
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Tika      TikaConfig      `yaml:"tika"`
	MinIO     MinIOConfig     `yaml:"minio"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Server    ServerConfig    `yaml:"server"`
	Logger    LoggerConfig    `yaml:"logger"`
}

// LoadConfig 从文件加载配置
// 未指定路径时在常见位置查找，环境变量可覆盖敏感项
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		searchPaths := []string{
			"config.yaml",
			"./config.yaml",
			"../config.yaml",
			filepath.Join(os.Getenv("HOME"), ".resume-ranker", "config.yaml"),
		}

		if execPath, err := os.Executable(); err == nil {
			execDir := filepath.Dir(execPath)
			searchPaths = append(searchPaths,
				filepath.Join(execDir, "config.yaml"),
				filepath.Join(execDir, "..", "config.yaml"),
			)
		}

		for _, path := range searchPaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}

		if configPath == "" {
			configPath = "config.yaml"
		}
	}

	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("配置文件不存在: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 从环境变量覆盖配置（如果存在）
	if envKey := os.Getenv("LLM_API_KEY"); envKey != "" {
		config.LLM.APIKey = envKey
	}
	if envURL := os.Getenv("LLM_API_URL"); envURL != "" {
		config.LLM.APIURL = envURL
	}
	if envModel := os.Getenv("LLM_MODEL"); envModel != "" {
		config.LLM.Model = envModel
	}
	if envPwd := os.Getenv("MYSQL_PASSWORD"); envPwd != "" {
		config.MySQL.Password = envPwd
	}
	if envPwd := os.Getenv("REDIS_PASSWORD"); envPwd != "" {
		config.Redis.Password = envPwd
	}

	config.applyDefaults()

	return &config, nil
}

// applyDefaults 填充缺失项的默认值
func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Extractor.PDFBackend == "" {
		c.Extractor.PDFBackend = "eino"
	}
	if c.Extractor.MinTextLength <= 0 {
		c.Extractor.MinTextLength = 25
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 120
	}
	if c.Tika.TimeoutSeconds <= 0 {
		c.Tika.TimeoutSeconds = 60
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Redis.MD5RecordExpireDays <= 0 {
		c.Redis.MD5RecordExpireDays = 30
	}
}

// Timeout 单次补全请求的超时时长
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetModelForTask 按任务名取模型，未配置时回落到全局模型
func (c *Config) GetModelForTask(taskName string) string {
	if c.LLM.TaskModels != nil {
		if m, ok := c.LLM.TaskModels[taskName]; ok && m != "" {
			return m
		}
	}
	return c.LLM.Model
}

// DSN 拼接GORM使用的数据源名称
func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

// GetDuration 将字符串解析为时长，解析失败时返回默认值
func GetDuration(durationStr string, defaultDuration time.Duration) time.Duration {
	if durationStr == "" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return defaultDuration
	}
	return d
}
