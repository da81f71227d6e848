package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestLoadConfig 测试配置文件的加载与默认值填充
func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, `
llm:
  api_key: "sk-test"
  model: "test-model"
  task_models:
    profile_extract: "model-a"
extractor:
  pdf_backend: "tika"
tika:
  server_url: "http://localhost:9998"
mysql:
  host: "db.local"
  port: 3306
  username: "app"
  password: "secret"
  database: "resume_ranker"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "tika", cfg.Extractor.PDFBackend)
	assert.Equal(t, "http://localhost:9998", cfg.Tika.ServerURL)

	// 未显式指定的字段走默认值
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 25, cfg.Extractor.MinTextLength)
	assert.Equal(t, 120, cfg.LLM.TimeoutSeconds)
	assert.Equal(t, 30, cfg.Redis.MD5RecordExpireDays)
}

// TestLoadConfigEnvOverride 环境变量覆盖敏感配置项
func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeTempConfig(t, `
llm:
  api_key: "from-file"
mysql:
  password: "file-password"
`)

	t.Setenv("LLM_API_KEY", "from-env")
	t.Setenv("MYSQL_PASSWORD", "env-password")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.Equal(t, "env-password", cfg.MySQL.Password)
}

// TestGetModelForTask 任务专用模型回退到全局模型
func TestGetModelForTask(t *testing.T) {
	cfg := &Config{LLM: LLMConfig{
		Model:      "global-model",
		TaskModels: map[string]string{"profile_extract": "task-model"},
	}}

	assert.Equal(t, "task-model", cfg.GetModelForTask("profile_extract"))
	assert.Equal(t, "global-model", cfg.GetModelForTask("semantic_score"))
}

// TestMySQLDSN 测试DSN的拼接
func TestMySQLDSN(t *testing.T) {
	cfg := &MySQLConfig{
		Host:     "db.local",
		Port:     3307,
		Username: "app",
		Password: "secret",
		Database: "resume_ranker",
	}
	dsn := cfg.DSN()
	assert.Contains(t, dsn, "app:secret@tcp(db.local:3307)/resume_ranker")
	assert.Contains(t, dsn, "charset=utf8mb4")
	assert.Contains(t, dsn, "parseTime=True")
}

// TestGetDuration 测试时长解析与默认值回退
func TestGetDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, GetDuration("5s", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("not-a-duration", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("", time.Minute))
}

// TestLLMTimeout 测试补全请求超时的换算
func TestLLMTimeout(t *testing.T) {
	cfg := &LLMConfig{TimeoutSeconds: 45}
	assert.Equal(t, 45*time.Second, cfg.Timeout())
}
