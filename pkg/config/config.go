package config

import (
	"fmt"
	"strings"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config represents the main configuration for the RAG engine.
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Google AI configuration (chat + embedding model, shared provider settings)
	GoogleAI GoogleAIConfig `mapstructure:"google_ai"`

	// OpenAI configuration; cmd/regulations-rag does not read it and registers no OpenAI provider
	OpenAI OpenAIConfig `mapstructure:"openai"`

	// TursoDB configuration for the libSQL-based corpus index; cmd/regulations-rag does not read it
	TursoDB TursoDBConfig `mapstructure:"turso_db"`

	// VectorStore names the corpus index backend; cmd/regulations-rag always builds the
	// in-memory index regardless of this setting
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`

	// Retrieval holds the reranking/token-budget knobs shared by every document
	Retrieval RetrievalConfig `mapstructure:"retrieval"`

	// RAG holds session-level answering behavior
	RAG RAGConfig `mapstructure:"rag"`

	// Retry configures exponential backoff applied to provider calls
	Retry RetryConfig `mapstructure:"retry"`

	// Session management configuration
	Session SessionConfig `mapstructure:"session"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`

	// Metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig represents server-specific configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// GoogleAIConfig represents Google AI API configuration, the primary chat and
// embedding provider.
type GoogleAIConfig struct {
	APIKey              string  `mapstructure:"api_key"`
	ChatModel           string  `mapstructure:"chat_model"`
	EmbeddingModel      string  `mapstructure:"embedding_model"`
	EmbeddingDimensions int     `mapstructure:"embedding_dimensions"`
	Temperature         float32 `mapstructure:"temperature"`
	MaxOutputTokens     int     `mapstructure:"max_output_tokens"`
	RequestTimeout      int     `mapstructure:"request_timeout"`
}

// OpenAIConfig holds OpenAI provider settings. Nothing in this module registers an
// OpenAI provider from them, set or unset; every request goes to Google AI.
type OpenAIConfig struct {
	APIKey    string `mapstructure:"api_key"`
	ChatModel string `mapstructure:"chat_model"`
}

// TursoDBConfig represents TursoDB configuration
type TursoDBConfig struct {
	DatabaseURL    string `mapstructure:"database_url"`
	AuthToken      string `mapstructure:"auth_token"`
	MaxConnections int    `mapstructure:"max_connections"`
	IdleTimeout    int    `mapstructure:"idle_timeout"`
	ConnTimeout    int    `mapstructure:"conn_timeout"`
}

// VectorStoreConfig selects the corpus index backend and names its tables.
type VectorStoreConfig struct {
	Backend          string `mapstructure:"backend"` // "memory" or "turso"
	DefinitionsTable string `mapstructure:"definitions_table"`
	SectionsTable    string `mapstructure:"sections_table"`
	WorkflowTable    string `mapstructure:"workflow_table"`
}

// RetrievalConfig bounds how many candidate sections are considered and how much of
// the answering model's context window they may consume, and which reranking
// strategy thins them down to that budget.
type RetrievalConfig struct {
	SectionThreshold     float32 `mapstructure:"section_threshold"`
	DefinitionThreshold  float32 `mapstructure:"definition_threshold"`
	InitialSectionCap    int     `mapstructure:"initial_section_cap"`
	FinalTokenCap        int     `mapstructure:"final_token_cap"`
	RerankStrategy       string  `mapstructure:"rerank_strategy"` // "none", "most_common", "llm"
	TokenLimitForHistory int     `mapstructure:"token_limit_for_history"`
}

// RAGConfig represents session-level answering behavior.
type RAGConfig struct {
	PrimaryDocumentKey string `mapstructure:"primary_document_key"`
	CorpusDescription  string `mapstructure:"corpus_description"`
	StrictRAG          bool   `mapstructure:"strict_rag"`
}

// RetryConfig configures exponential backoff for provider calls.
type RetryConfig struct {
	MaxRetries  int `mapstructure:"max_retries"`
	BaseDelayMs int `mapstructure:"base_delay_ms"`
	MaxDelayMs  int `mapstructure:"max_delay_ms"`
}

// SessionConfig represents session management configuration
type SessionConfig struct {
	Storage         string `mapstructure:"storage"`
	TTL             int    `mapstructure:"ttl"`
	CleanupInterval int    `mapstructure:"cleanup_interval"`
	MaxSessions     int    `mapstructure:"max_sessions"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Structured bool   `mapstructure:"structured"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Provider  string `mapstructure:"provider"`
	Endpoint  string `mapstructure:"endpoint"`
	Namespace string `mapstructure:"namespace"`
}

// Manager loads, validates and holds the application configuration
type Manager struct {
	viper  *viper.Viper
	config *Config
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	v := viper.New()

	// Set default values
	setDefaults(v)

	return &Manager{
		viper:  v,
		config: &Config{},
	}
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.idle_timeout", 120)

	// Google AI defaults
	v.SetDefault("google_ai.chat_model", "gemini-2.0-flash")
	v.SetDefault("google_ai.embedding_model", "text-embedding-004")
	v.SetDefault("google_ai.embedding_dimensions", 768)
	v.SetDefault("google_ai.temperature", 0.0)
	v.SetDefault("google_ai.max_output_tokens", 1500)
	v.SetDefault("google_ai.request_timeout", 30)

	// TursoDB defaults
	v.SetDefault("turso_db.max_connections", 10)
	v.SetDefault("turso_db.idle_timeout", 300)
	v.SetDefault("turso_db.conn_timeout", 10)

	// Vector store defaults
	v.SetDefault("vector_store.backend", "memory")
	v.SetDefault("vector_store.definitions_table", "definitions")
	v.SetDefault("vector_store.sections_table", "sections")
	v.SetDefault("vector_store.workflow_table", "workflow")

	// Retrieval defaults, matching rerank.DefaultParams()
	v.SetDefault("retrieval.section_threshold", 0.25)
	v.SetDefault("retrieval.definition_threshold", 0.2)
	v.SetDefault("retrieval.initial_section_cap", 15)
	v.SetDefault("retrieval.final_token_cap", 3500)
	v.SetDefault("retrieval.rerank_strategy", "most_common")
	v.SetDefault("retrieval.token_limit_for_history", 6000)

	// RAG defaults
	v.SetDefault("rag.strict_rag", false)

	// Retry defaults
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay_ms", 500)
	v.SetDefault("retry.max_delay_ms", 8000)

	// Session defaults
	v.SetDefault("session.storage", "memory")
	v.SetDefault("session.ttl", 3600)
	v.SetDefault("session.cleanup_interval", 300)
	v.SetDefault("session.max_sessions", 10000)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.structured", true)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.provider", "prometheus")
	v.SetDefault("metrics.namespace", "regulations_rag")
}

// Load loads configuration from files and environment variables
func (m *Manager) Load() error {
	// Set configuration file settings
	m.viper.SetConfigName("config")
	m.viper.SetConfigType("yaml")
	m.viper.AddConfigPath(".")
	m.viper.AddConfigPath("./config")
	m.viper.AddConfigPath("$HOME/.regulations-rag")
	m.viper.AddConfigPath("/etc/regulations-rag")

	// Enable environment variable support
	m.viper.AutomaticEnv()
	m.viper.SetEnvPrefix("REGULATIONS_RAG")
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Try to read configuration file
	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errbuilder.GenericErr("failed to read config file", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Unmarshal into config struct
	if err := m.viper.Unmarshal(m.config); err != nil {
		return errbuilder.GenericErr("failed to unmarshal config", err)
	}

	return nil
}

// Get returns the full configuration
func (m *Manager) Get() *Config {
	return m.config
}

// GetString returns a string configuration value
func (m *Manager) GetString(key string) string {
	return m.viper.GetString(key)
}

// GetInt returns an integer configuration value
func (m *Manager) GetInt(key string) int {
	return m.viper.GetInt(key)
}

// GetFloat32 returns a float32 configuration value
func (m *Manager) GetFloat32(key string) float32 {
	return float32(m.viper.GetFloat64(key))
}

// GetBool returns a boolean configuration value
func (m *Manager) GetBool(key string) bool {
	return m.viper.GetBool(key)
}

// GetStringMap returns a map configuration value
func (m *Manager) GetStringMap(key string) map[string]interface{} {
	return m.viper.GetStringMap(key)
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	if m.config.GoogleAI.APIKey == "" {
		return errbuilder.NewErrBuilder().WithMsg("Google AI API key is required")
	}

	if m.config.GoogleAI.ChatModel == "" {
		return errbuilder.NewErrBuilder().WithMsg("chat model is required")
	}

	if m.config.GoogleAI.EmbeddingModel == "" {
		return errbuilder.NewErrBuilder().WithMsg("embedding model is required")
	}

	if m.config.GoogleAI.EmbeddingDimensions <= 0 {
		return errbuilder.NewErrBuilder().WithMsg("embedding dimensions must be positive")
	}

	// Validate vector store backend
	validBackends := []string{"memory", "turso"}
	backend := m.config.VectorStore.Backend
	valid := false
	for _, b := range validBackends {
		if backend == b {
			valid = true
			break
		}
	}
	if !valid {
		return errbuilder.NewErrBuilder().WithMsg("invalid vector store backend")
	}

	if backend == "turso" {
		if m.config.TursoDB.DatabaseURL == "" {
			return errbuilder.NewErrBuilder().WithMsg("TursoDB database URL is required when vector_store.backend is turso")
		}
		if m.config.TursoDB.AuthToken == "" {
			return errbuilder.NewErrBuilder().WithMsg("TursoDB auth token is required when vector_store.backend is turso")
		}
	}

	// Validate rerank strategy
	validStrategies := []string{"none", "most_common", "llm"}
	strategy := m.config.Retrieval.RerankStrategy
	valid = false
	for _, s := range validStrategies {
		if strategy == s {
			valid = true
			break
		}
	}
	if !valid {
		return errbuilder.NewErrBuilder().WithMsg("invalid rerank strategy")
	}

	if m.config.Retrieval.InitialSectionCap <= 0 {
		return errbuilder.NewErrBuilder().WithMsg("retrieval.initial_section_cap must be positive")
	}

	if m.config.Retrieval.FinalTokenCap <= 0 {
		return errbuilder.NewErrBuilder().WithMsg("retrieval.final_token_cap must be positive")
	}

	return nil
}

// Set sets a configuration value
func (m *Manager) Set(key string, value interface{}) {
	m.viper.Set(key, value)
}

// Watch watches for configuration changes
func (m *Manager) Watch(callback func(key string, value interface{})) error {
	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		// Reload the configuration
		if err := m.viper.Unmarshal(m.config); err != nil {
			// Log error but don't fail
			fmt.Printf("Error reloading config: %v\n", err)
			return
		}
		callback("config", m.config)
	})
	return nil
}
