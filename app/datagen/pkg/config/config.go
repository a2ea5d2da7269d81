package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 项目配置结构体
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Judge       JudgeConfig       `yaml:"judge"`
	Generation  GenerationConfig  `yaml:"generation"`
	Export      ExportConfig      `yaml:"export"`
	Paths       PathsConfig       `yaml:"paths"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	DB          DBConfig          `yaml:"db"`
	Server      ServerConfig      `yaml:"server"`
}

// LLMConfig 默认的 OpenAI 兼容端点
type LLMConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxTokens      int    `yaml:"max_tokens"`
}

// Timeout 单次调用的超时时间
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// JudgeConfig 裁判模型配置
type JudgeConfig struct {
	Model        string  `yaml:"model"`
	Temperature  float32 `yaml:"temperature"`
	MaxRetries   int     `yaml:"max_retries"`
	RetryDelayMS int     `yaml:"retry_delay_ms"`
	// Multiplier 大于 1 时按指数退避
	Multiplier float64 `yaml:"multiplier"`
}

// RetryDelay 重试间隔
func (c JudgeConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// ModelEndpoint 单个生成模型的端点配置，留空的字段继承 llm 段
type ModelEndpoint struct {
	Name    string `yaml:"name"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// GenerationConfig 数据生成相关配置
type GenerationConfig struct {
	SelfPlay   SelfPlayConfig `yaml:"selfplay"`
	Batch      BatchGenConfig `yaml:"batch"`
	CandidateA ModelEndpoint  `yaml:"candidate_a"`
	CandidateB ModelEndpoint  `yaml:"candidate_b"`
}

// SelfPlayConfig 自博弈生成配置
type SelfPlayConfig struct {
	UserModel       string  `yaml:"user_model"`
	CompanionModel  string  `yaml:"companion_model"`
	Rounds          int     `yaml:"rounds"`
	Temperature     float32 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
	UserPrompt      string  `yaml:"user_prompt"`
	CompanionPrompt string  `yaml:"companion_prompt"`
	Output          string  `yaml:"output"`
}

// BatchGenConfig 多模型批量生成配置
type BatchGenConfig struct {
	Models      []ModelEndpoint `yaml:"models"`
	Generations int             `yaml:"generations"`
	Temperature float32         `yaml:"temperature"`
	MaxTokens   int             `yaml:"max_tokens"`
	Prompt      string          `yaml:"prompt"`
}

// ExportConfig 训练数据导出配置
type ExportConfig struct {
	MinScore float64 `yaml:"min_score"`
	TopK     int     `yaml:"top_k"`
}

// PathsConfig 各阶段默认输入输出目录
type PathsConfig struct {
	Questions string `yaml:"questions"`
	Raw       string `yaml:"raw"`
	Clean     string `yaml:"clean"`
	Extracted string `yaml:"extracted"`
	Judged    string `yaml:"judged"`
	Final     string `yaml:"final"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS     int `yaml:"qps"`
	RPM     int `yaml:"rpm"`
	Workers int `yaml:"workers"`
}

// DBConfig 数据库相关配置，Host 为空表示不落库
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// ServerConfig 展示服务配置
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	Timeout string `yaml:"timeout"`
}

// LoadConfig 从指定路径加载配置，支持 ${ENV} 形式的环境变量引用
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse 解析 YAML 配置并补全默认值
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回只包含默认值的配置
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults 补全未设置的字段
func (c *Config) ApplyDefaults() {
	if c.LLM.Model == "" {
		c.LLM.Model = "qwen-max-latest"
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 120
	}

	if c.Judge.Model == "" {
		c.Judge.Model = "qwen-max-latest"
	}
	if c.Judge.MaxRetries <= 0 {
		c.Judge.MaxRetries = 2
	}
	if c.Judge.RetryDelayMS < 0 {
		c.Judge.RetryDelayMS = 0
	}

	sp := &c.Generation.SelfPlay
	if sp.UserModel == "" {
		sp.UserModel = "qwen-max-latest"
	}
	if sp.CompanionModel == "" {
		sp.CompanionModel = "turing/deepseek-v3.1"
	}
	if sp.Rounds <= 0 {
		sp.Rounds = 20
	}
	if sp.Temperature == 0 {
		sp.Temperature = 0.8
	}
	if sp.MaxTokens <= 0 {
		sp.MaxTokens = 1000
	}
	if sp.Output == "" {
		sp.Output = "data_scheme_A.jsonl"
	}

	bg := &c.Generation.Batch
	if bg.Generations <= 0 {
		bg.Generations = 10
	}
	if bg.Temperature == 0 {
		bg.Temperature = 0.7
	}
	if bg.MaxTokens <= 0 {
		bg.MaxTokens = 4000
	}

	if c.Generation.CandidateA.Name == "" {
		c.Generation.CandidateA.Name = "Qwen"
	}
	if c.Generation.CandidateA.Model == "" {
		c.Generation.CandidateA.Model = "qwen-max-latest"
	}
	if c.Generation.CandidateB.Name == "" {
		c.Generation.CandidateB.Name = "DeepSeek"
	}
	if c.Generation.CandidateB.Model == "" {
		c.Generation.CandidateB.Model = "turing/deepseek-v3.1"
	}

	if c.Export.MinScore == 0 {
		c.Export.MinScore = 8
	}

	p := &c.Paths
	if p.Questions == "" {
		p.Questions = filepath.Join("inputs", "questions.txt")
	}
	if p.Raw == "" {
		p.Raw = filepath.Join("outputs", "raw")
	}
	if p.Clean == "" {
		p.Clean = filepath.Join("outputs", "clean")
	}
	if p.Extracted == "" {
		p.Extracted = filepath.Join("outputs", "extracted")
	}
	if p.Judged == "" {
		p.Judged = filepath.Join("outputs", "judged")
	}
	if p.Final == "" {
		p.Final = filepath.Join("outputs", "final")
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Concurrency.RPM <= 0 {
		c.Concurrency.RPM = 120
	}
	if c.Concurrency.QPS <= 0 {
		c.Concurrency.QPS = 1
	}
	if c.Concurrency.Workers <= 0 {
		c.Concurrency.Workers = 1
	}

	if c.DB.Port == 0 {
		c.DB.Port = 5432
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.Timeout == "" {
		c.Server.Timeout = "10s"
	}
}

// Validate 校验配置的取值范围
func (c *Config) Validate() error {
	var errs []error
	if c.Judge.Temperature < 0 || c.Judge.Temperature > 2 {
		errs = append(errs, fmt.Errorf("judge.temperature out of range: %v", c.Judge.Temperature))
	}
	if c.Export.MinScore < 0 || c.Export.MinScore > 10 {
		errs = append(errs, fmt.Errorf("export.min_score out of range: %v", c.Export.MinScore))
	}
	if c.Export.TopK < 0 {
		errs = append(errs, errors.New("export.top_k must be >= 0"))
	}
	if _, err := time.ParseDuration(c.Server.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("server.timeout: %w", err))
	}
	for i, m := range c.Generation.Batch.Models {
		if m.Name == "" || m.Model == "" {
			errs = append(errs, fmt.Errorf("generation.batch.models[%d]: name and model are required", i))
		}
	}
	return errors.Join(errs...)
}

// Endpoint 把生成模型端点与默认 llm 段合并
func (c *Config) Endpoint(m ModelEndpoint) LLMConfig {
	out := c.LLM
	if m.Model != "" {
		out.Model = m.Model
	}
	if m.BaseURL != "" {
		out.BaseURL = m.BaseURL
	}
	if m.APIKey != "" {
		out.APIKey = m.APIKey
	}
	return out
}
