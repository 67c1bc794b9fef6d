package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type ASRConfig struct {
	Mode            string `yaml:"mode"` // mock, exec
	Command         string `yaml:"command"`
	ModelPath       string `yaml:"model_path"`
	Language        string `yaml:"language"`
	SampleRate      int    `yaml:"sample_rate"`
	FrameDurationMS int    `yaml:"frame_duration_ms"`
	PartialEveryMS  int    `yaml:"partial_every_ms"`
}

type LLMConfig struct {
	Mode             string  `yaml:"mode"` // mock, ollama, gemini
	Endpoint         string  `yaml:"endpoint"`
	APIKey           string  `yaml:"api_key"`
	Model            string  `yaml:"model"`
	SummarizerModel  string  `yaml:"summarizer_model"`
	MaxTokens        int     `yaml:"max_tokens"`
	Temperature      float64 `yaml:"temperature"`
	SummaryMaxTokens int     `yaml:"summary_max_tokens"`
}

type TTSConfig struct {
	Mode       string `yaml:"mode"` // mock, exec
	Command    string `yaml:"command"`
	Voice      string `yaml:"voice"`
	SampleRate int    `yaml:"sample_rate"`
}

type RAGConfig struct {
	Enabled       bool    `yaml:"enabled"`
	QdrantURL     string  `yaml:"qdrant_url"`
	QdrantAPIKey  string  `yaml:"qdrant_api_key"`
	Collection    string  `yaml:"collection"`
	EmbedEndpoint string  `yaml:"embed_endpoint"`
	EmbedModel    string  `yaml:"embed_model"`
	TopK          int     `yaml:"top_k"`
	MinScore      float64 `yaml:"min_score"`
}

type SessionConfig struct {
	DefaultLanguage    string `yaml:"default_language"`
	DefaultCharacter   string `yaml:"default_character"`
	DefaultScript      string `yaml:"default_script"`
	SummarizeThreshold int    `yaml:"summarize_threshold"`
	KeepLogEntries     int    `yaml:"keep_log_entries"`
}

type PersonaConfig struct {
	DataDir string `yaml:"data_dir"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	ASR         ASRConfig        `yaml:"asr"`
	LLM         LLMConfig        `yaml:"llm"`
	TTS         TTSConfig        `yaml:"tts"`
	RAG         RAGConfig        `yaml:"rag"`
	Session     SessionConfig    `yaml:"session"`
	Persona     PersonaConfig    `yaml:"persona"`
}

func Default() Config {
	return Config{
		RuntimeName: "vocata-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/vocata-events.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		ASR: ASRConfig{
			Mode:            "mock",
			Language:        "en-US",
			SampleRate:      16000,
			FrameDurationMS: 10,
			PartialEveryMS:  800,
		},
		LLM: LLMConfig{
			Mode:             "mock",
			Endpoint:         "http://localhost:11434",
			Model:            "gemini-2.5-flash-lite",
			SummarizerModel:  "gemini-2.5-flash",
			MaxTokens:        500,
			Temperature:      0.7,
			SummaryMaxTokens: 1000,
		},
		TTS: TTSConfig{
			Mode:       "mock",
			Voice:      "en-US-Neural2-D",
			SampleRate: 16000,
		},
		RAG: RAGConfig{
			Enabled:       false,
			Collection:    "vocata-knowledge",
			EmbedEndpoint: "http://localhost:11434",
			EmbedModel:    "nomic-embed-text",
			TopK:          4,
			MinScore:      0.4,
		},
		Session: SessionConfig{
			DefaultLanguage:    "ENG",
			DefaultCharacter:   "model_5",
			DefaultScript:      "script_1",
			SummarizeThreshold: 6,
			KeepLogEntries:     2,
		},
		Persona: PersonaConfig{
			DataDir: "./data",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "VOCATA_RUNTIME_NAME")
	overrideString(&cfg.Environment, "VOCATA_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "VOCATA_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VOCATA_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "VOCATA_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VOCATA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VOCATA_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "VOCATA_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "VOCATA_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "VOCATA_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "VOCATA_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "VOCATA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VOCATA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VOCATA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VOCATA_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VOCATA_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VOCATA_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "VOCATA_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "VOCATA_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "VOCATA_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "VOCATA_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "VOCATA_EVENT_STORE_VACUUM_ON_START")
	overrideString(&cfg.ASR.Mode, "VOCATA_ASR_MODE")
	overrideString(&cfg.ASR.Command, "VOCATA_ASR_COMMAND")
	overrideString(&cfg.ASR.ModelPath, "VOCATA_ASR_MODEL_PATH")
	overrideString(&cfg.ASR.Language, "VOCATA_ASR_LANGUAGE")
	overrideInt(&cfg.ASR.SampleRate, "VOCATA_ASR_SAMPLE_RATE")
	overrideInt(&cfg.ASR.FrameDurationMS, "VOCATA_ASR_FRAME_DURATION_MS")
	overrideInt(&cfg.ASR.PartialEveryMS, "VOCATA_ASR_PARTIAL_EVERY_MS")
	overrideString(&cfg.LLM.Mode, "VOCATA_LLM_MODE")
	overrideString(&cfg.LLM.Endpoint, "VOCATA_LLM_ENDPOINT")
	overrideString(&cfg.LLM.APIKey, "VOCATA_LLM_API_KEY")
	overrideString(&cfg.LLM.Model, "VOCATA_LLM_MODEL")
	overrideString(&cfg.LLM.SummarizerModel, "VOCATA_LLM_SUMMARIZER_MODEL")
	overrideInt(&cfg.LLM.MaxTokens, "VOCATA_LLM_MAX_TOKENS")
	overrideFloat(&cfg.LLM.Temperature, "VOCATA_LLM_TEMPERATURE")
	overrideInt(&cfg.LLM.SummaryMaxTokens, "VOCATA_LLM_SUMMARY_MAX_TOKENS")
	overrideString(&cfg.TTS.Mode, "VOCATA_TTS_MODE")
	overrideString(&cfg.TTS.Command, "VOCATA_TTS_COMMAND")
	overrideString(&cfg.TTS.Voice, "VOCATA_TTS_VOICE")
	overrideInt(&cfg.TTS.SampleRate, "VOCATA_TTS_SAMPLE_RATE")
	overrideBool(&cfg.RAG.Enabled, "VOCATA_RAG_ENABLED")
	overrideString(&cfg.RAG.QdrantURL, "VOCATA_RAG_QDRANT_URL")
	overrideString(&cfg.RAG.QdrantAPIKey, "VOCATA_RAG_QDRANT_API_KEY")
	overrideString(&cfg.RAG.Collection, "VOCATA_RAG_COLLECTION")
	overrideString(&cfg.RAG.EmbedEndpoint, "VOCATA_RAG_EMBED_ENDPOINT")
	overrideString(&cfg.RAG.EmbedModel, "VOCATA_RAG_EMBED_MODEL")
	overrideInt(&cfg.RAG.TopK, "VOCATA_RAG_TOP_K")
	overrideString(&cfg.Session.DefaultLanguage, "VOCATA_SESSION_DEFAULT_LANGUAGE")
	overrideString(&cfg.Session.DefaultCharacter, "VOCATA_SESSION_DEFAULT_CHARACTER")
	overrideString(&cfg.Session.DefaultScript, "VOCATA_SESSION_DEFAULT_SCRIPT")
	overrideInt(&cfg.Session.SummarizeThreshold, "VOCATA_SESSION_SUMMARIZE_THRESHOLD")
	overrideInt(&cfg.Session.KeepLogEntries, "VOCATA_SESSION_KEEP_LOG_ENTRIES")
	overrideString(&cfg.Persona.DataDir, "VOCATA_PERSONA_DATA_DIR")
}

func overrideString(target *string, key string) {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideStringSlice(target *[]string, key string) {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			*target = out
		}
	}
}

func overrideInt(target *int, key string) {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, key string) {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, key string) {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port %d", cfg.HTTP.Port)
	}
	if cfg.Bus.Enabled && len(cfg.Bus.Servers) == 0 {
		return fmt.Errorf("bus enabled but no servers configured")
	}
	switch cfg.ASR.Mode {
	case "mock", "exec":
	default:
		return fmt.Errorf("unknown asr mode %q", cfg.ASR.Mode)
	}
	switch cfg.LLM.Mode {
	case "mock", "ollama", "gemini":
	default:
		return fmt.Errorf("unknown llm mode %q", cfg.LLM.Mode)
	}
	switch cfg.TTS.Mode {
	case "mock", "exec":
	default:
		return fmt.Errorf("unknown tts mode %q", cfg.TTS.Mode)
	}
	if cfg.ASR.Mode == "exec" && strings.TrimSpace(cfg.ASR.Command) == "" {
		return fmt.Errorf("asr mode exec requires a command")
	}
	if cfg.TTS.Mode == "exec" && strings.TrimSpace(cfg.TTS.Command) == "" {
		return fmt.Errorf("tts mode exec requires a command")
	}
	if cfg.LLM.Mode == "gemini" && strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return fmt.Errorf("llm mode gemini requires an api key")
	}
	if cfg.RAG.Enabled && strings.TrimSpace(cfg.RAG.QdrantURL) == "" {
		return fmt.Errorf("rag enabled but qdrant url missing")
	}
	if cfg.Session.SummarizeThreshold <= 0 {
		return fmt.Errorf("summarize threshold must be positive")
	}
	return nil
}
