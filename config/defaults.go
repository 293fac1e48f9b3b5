package config

import "time"

// PromptPlaceholder is the substring of the prompt template replaced with
// the current RAG context on every turn.
const PromptPlaceholder = "{rag_context}"

// DefaultPromptTemplate is the system prompt used when none is configured.
const DefaultPromptTemplate = `You are a helpful GCP assistant with access to specialized knowledge.

Current Context:
{rag_context}

Instructions:
- Use the provided context to answer questions accurately
- If the context is empty or irrelevant, rely on your general knowledge
- Be conversational and natural in your responses
- Keep responses concise (2-3 sentences unless more detail is requested)
- If you don't know something, say so honestly

Remember: You are in a voice conversation, so keep your answers brief and easy to understand when spoken aloud.`

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Redis:     DefaultRedisConfig(),
		STT:       DefaultSTTConfig(),
		LLM:       DefaultLLMConfig(),
		TTS:       DefaultTTSConfig(),
		Embedding: DefaultEmbeddingConfig(),
		Agent:     DefaultAgentConfig(),
		Log:       DefaultLogConfig(),
	}
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		WSHost:          "localhost",
		WSPort:          8765,
		ControlPort:     8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    50,
		RateLimitBurst:  100,
	}
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		OpTimeout:    2 * time.Second,
	}
}

// DefaultSTTConfig returns the default speech-to-text configuration.
func DefaultSTTConfig() STTConfig {
	return STTConfig{
		BaseURL: "https://api.deepgram.com",
		Model:   "nova-2",
		Timeout: 60 * time.Second,
	}
}

// DefaultLLMConfig returns the default language model configuration.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   150,
		Timeout:     30 * time.Second,
	}
}

// DefaultTTSConfig returns the default text-to-speech configuration.
func DefaultTTSConfig() TTSConfig {
	return TTSConfig{
		BaseURL:    "https://api.cartesia.ai",
		Model:      "sonic-english",
		Voice:      "79a125e8-cd45-4c13-8a67-188112f4dd22",
		SampleRate: 24000,
		Timeout:    30 * time.Second,
	}
}

// DefaultEmbeddingConfig returns the default embedding configuration.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		BaseURL:    "https://generativelanguage.googleapis.com/v1beta",
		Model:      "models/embedding-001",
		Dimensions: 768,
		Timeout:    30 * time.Second,
	}
}

// DefaultAgentConfig returns the default agent configuration.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Name:           "gcp-assistant",
		PromptTemplate: DefaultPromptTemplate,
		KnowledgeIndex: "iam_knowledge",
		RetrievalTopK:  2,
		LogsDir:        "./logs",
	}
}

// DefaultLogConfig returns the default log configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "json",
	}
}
