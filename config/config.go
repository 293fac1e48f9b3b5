// Package config provides unified configuration loading for the voice agent.
// Priority: defaults → YAML file → environment variables.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("GCPASSIST").
//	    Load()
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for the voice agent process.
type Config struct {
	// Server settings for the control API and WebSocket transport.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Redis backs the reward store and the knowledge index.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// STT speech-to-text service settings.
	STT STTConfig `yaml:"stt" env:"STT"`

	// LLM language model service settings.
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// TTS text-to-speech service settings.
	TTS TTSConfig `yaml:"tts" env:"TTS"`

	// Embedding provider settings for knowledge retrieval.
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// Agent prompt and turn settings.
	Agent AgentConfig `yaml:"agent" env:"AGENT"`

	// Log settings.
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ServerConfig configures the listening surfaces.
type ServerConfig struct {
	// WebSocket host/port the pipeline transport listens on.
	WSHost string `yaml:"ws_host" env:"WS_HOST"`
	WSPort int    `yaml:"ws_port" env:"WS_PORT"`

	// Control API port (context updates, reward queries, metrics).
	ControlPort int `yaml:"control_port" env:"CONTROL_PORT"`

	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	// Control API rate limit.
	RateLimitRPS   int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`

	// OpTimeout bounds each reward-store call; on expiry the aggregator
	// falls back to in-memory recording.
	OpTimeout time.Duration `yaml:"op_timeout" env:"OP_TIMEOUT"`
}

// STTConfig configures the speech-to-text service.
type STTConfig struct {
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	Model   string        `yaml:"model" env:"MODEL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LLMConfig configures the language model service.
type LLMConfig struct {
	APIKey      string        `yaml:"api_key" env:"API_KEY"`
	BaseURL     string        `yaml:"base_url" env:"BASE_URL"`
	Model       string        `yaml:"model" env:"MODEL"`
	Temperature float64       `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens   int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// TTSConfig configures the text-to-speech service.
type TTSConfig struct {
	APIKey     string        `yaml:"api_key" env:"API_KEY"`
	BaseURL    string        `yaml:"base_url" env:"BASE_URL"`
	Model      string        `yaml:"model" env:"MODEL"`
	Voice      string        `yaml:"voice" env:"VOICE"`
	SampleRate int           `yaml:"sample_rate" env:"SAMPLE_RATE"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// EmbeddingConfig configures the embedding provider used by retrieval.
type EmbeddingConfig struct {
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	Model   string        `yaml:"model" env:"MODEL"`
	// Dimensions of the knowledge index vectors.
	Dimensions int           `yaml:"dimensions" env:"DIMENSIONS"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// AgentConfig configures prompt assembly and retrieval behavior.
type AgentConfig struct {
	Name string `yaml:"name" env:"NAME"`

	// PromptTemplate must contain the {rag_context} placeholder.
	PromptTemplate string `yaml:"prompt_template" env:"PROMPT_TEMPLATE"`

	// KnowledgeIndex is the Redis search index holding knowledge chunks.
	KnowledgeIndex string `yaml:"knowledge_index" env:"KNOWLEDGE_INDEX"`

	// RetrievalTopK is the number of chunks fetched per transcript.
	RetrievalTopK int `yaml:"retrieval_top_k" env:"RETRIEVAL_TOP_K"`

	// LogsDir is where conversation JSONL files are written.
	LogsDir string `yaml:"logs_dir" env:"LOGS_DIR"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console.
	Format string `yaml:"format" env:"FORMAT"`
}

// Loader loads configuration using the builder pattern.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a configuration loader with the default env prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "GCPASSIST",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a validation function run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves configuration. Priority: defaults → YAML file → env.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// Validate checks the configuration for startup-blocking problems.
// Missing API keys are fatal here: transient dependency failures degrade
// at runtime, but credential gaps surface immediately.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.WSPort <= 0 || c.Server.WSPort > 65535 {
		errs = append(errs, "invalid websocket port")
	}
	if c.Server.ControlPort <= 0 || c.Server.ControlPort > 65535 {
		errs = append(errs, "invalid control port")
	}
	if c.Redis.Addr == "" {
		errs = append(errs, "redis addr is required")
	}
	if c.STT.APIKey == "" {
		errs = append(errs, "STT api_key is required")
	}
	if c.LLM.APIKey == "" {
		errs = append(errs, "LLM api_key is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "LLM temperature must be in [0, 2]")
	}
	if !strings.Contains(c.Agent.PromptTemplate, PromptPlaceholder) {
		errs = append(errs, "agent prompt_template must contain "+PromptPlaceholder)
	}
	if c.Agent.RetrievalTopK <= 0 {
		errs = append(errs, "retrieval_top_k must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// MustLoad loads configuration and panics on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}
