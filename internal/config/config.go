package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath      = "config.toml"
	DefaultHTTPAddr        = ":4000"
	DefaultSessionsDir     = "sessions"
	DefaultGatewayURL      = "ws://127.0.0.1:3001"
	DefaultJWTExpiresIn    = "24h"
	DefaultPGHost          = "127.0.0.1"
	DefaultPGPort          = 5432
	DefaultPGUser          = "postgres"
	DefaultPGDatabase      = "attend"
	DefaultPGSSLMode       = "disable"
	DefaultLLMBaseURL      = "https://api.openai.com/v1"
	DefaultLLMModel        = "gpt-4.1-nano"
	DefaultSpeechLanguage  = "pt"
	DefaultTimeoutSeconds  = 30
	DefaultPendingTTLMin   = 30
	DefaultDedupWindowMin  = 5
	DefaultInboundQueueLen = 64
)

type Config struct {
	Log           LogConfig           `toml:"log"`
	Server        ServerConfig        `toml:"server"`
	Admin         AdminConfig         `toml:"admin"`
	Auth          AuthConfig          `toml:"auth"`
	Postgres      PostgresConfig      `toml:"postgres"`
	Channel       ChannelConfig       `toml:"channel"`
	LLM           LLMConfig           `toml:"llm"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Speech        SpeechConfig        `toml:"speech"`
	Reservation   ReservationConfig   `toml:"reservation"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AdminConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// ChannelConfig configures the per-branch messaging sessions.
type ChannelConfig struct {
	GatewayURL      string `toml:"gateway_url"`
	SessionsDir     string `toml:"sessions_dir"`
	InboundQueueLen int    `toml:"inbound_queue_len"`
	DedupWindowMin  int    `toml:"dedup_window_min"`
}

type LLMConfig struct {
	BaseURL        string  `toml:"base_url"`
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

type TranscriptionConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	FFmpegPath     string `toml:"ffmpeg_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type SpeechConfig struct {
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Disabled       bool   `toml:"disabled"`
}

type ReservationConfig struct {
	PendingTTLMin int `toml:"pending_ttl_min"`
}

// Load reads the TOML config at path, applying defaults first so a
// missing file or partial file still yields a usable configuration.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Admin: AdminConfig{
			Username: "admin",
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Channel: ChannelConfig{
			GatewayURL:      DefaultGatewayURL,
			SessionsDir:     DefaultSessionsDir,
			InboundQueueLen: DefaultInboundQueueLen,
			DedupWindowMin:  DefaultDedupWindowMin,
		},
		LLM: LLMConfig{
			BaseURL:        DefaultLLMBaseURL,
			Model:          DefaultLLMModel,
			Temperature:    0.8,
			MaxTokens:      1000,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Transcription: TranscriptionConfig{
			BaseURL:        DefaultLLMBaseURL,
			Model:          "whisper-1",
			FFmpegPath:     "ffmpeg",
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Speech: SpeechConfig{
			Language:       DefaultSpeechLanguage,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Reservation: ReservationConfig{
			PendingTTLMin: DefaultPendingTTLMin,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
