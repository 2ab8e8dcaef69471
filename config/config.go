package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

//go:embed default_config.json
var defaultConfigJSON []byte

type AppConfig struct {
	Server ServerConfig `json:"server"`

	// Secret; never sent to browsers.
	CommunicationServicesConnectionString string `json:"communicationServicesConnectionString" env:"VV_COMMUNICATION_SERVICES_CONNECTION_STRING"`
	// Signs development tokens when no connection string is configured.
	LocalTokenSecret string   `json:"localTokenSecret" env:"VV_LOCAL_TOKEN_SECRET"`
	TokenScopes      []string `json:"tokenScopes" env:"VV_TOKEN_SCOPES" envSeparator:","`

	MicrosoftBookingsURL string         `json:"microsoftBookingsUrl" env:"VV_MICROSOFT_BOOKINGS_URL"`
	ChatEnabled          bool           `json:"chatEnabled" env:"VV_CHAT_ENABLED"`
	ScreenShareEnabled   bool           `json:"screenShareEnabled" env:"VV_SCREENSHARE_ENABLED"`
	CompanyName          string         `json:"companyName" env:"VV_COMPANY_NAME"`
	ColorPalette         string         `json:"colorPalette" env:"VV_COLOR_PALETTE"`
	WaitingTitle         string         `json:"waitingTitle" env:"VV_WAITING_TITLE"`
	WaitingSubtitle      string         `json:"waitingSubtitle" env:"VV_WAITING_SUBTITLE"`
	LogoURL              string         `json:"logoUrl" env:"VV_LOGO_URL"`
	PostCall             PostCallConfig `json:"postCall"`

	CallAutomation CallAutomationConfig `json:"callAutomation"`
	Mongo          MongoConfig          `json:"mongo"`
	Redis          RedisConfig          `json:"redis"`
	Kafka          KafkaConfig          `json:"kafka"`
}

type ServerConfig struct {
	Port     string `json:"port" env:"PORT"`
	LogLevel string `json:"logLevel" env:"LOG_LEVEL"`
}

type PostCallConfig struct {
	Survey SurveyConfig `json:"survey"`
}

type SurveyConfig struct {
	Type    string         `json:"type" env:"VV_POSTCALL_SURVEY_TYPE"`
	Options map[string]any `json:"options"`
}

type CallAutomationConfig struct {
	// Public base URL the platform reaches this server on.
	CallbackBaseURL     string `json:"callbackBaseUrl" env:"VV_CALLBACK_BASE_URL"`
	TranscriptionLocale string `json:"transcriptionLocale" env:"VV_TRANSCRIPTION_LOCALE"`
}

type MongoConfig struct {
	URI      string `json:"uri" env:"VV_MONGO_URI"`
	Database string `json:"database" env:"VV_MONGO_DB"`
}

type RedisConfig struct {
	Addr    string `json:"addr" env:"REDIS_ADDR"`
	Channel string `json:"channel" env:"VV_NOTIFICATION_CHANNEL"`
}

type KafkaConfig struct {
	Brokers []string `json:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `json:"topic" env:"KAFKA_TRANSCRIPT_TOPIC"`
}

// Load layers the embedded defaults, the optional VV_CONFIG_FILE, and the
// environment (including a .env file), in that order.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}
	if path := os.Getenv("VV_CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.merge(b); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("environment variables are invalid: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Defaults() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := cfg.merge(defaultConfigJSON); err != nil {
		return nil, fmt.Errorf("embedded defaults: %w", err)
	}
	return cfg, nil
}

// merge overlays the fields present in b.
func (c *AppConfig) merge(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	return dec.Decode(c)
}

func (c *AppConfig) Validate() error {
	if c.Server.Port == "" {
		return errors.New("PORT is required")
	}
	if c.CommunicationServicesConnectionString == "" && c.LocalTokenSecret == "" {
		return errors.New("VV_COMMUNICATION_SERVICES_CONNECTION_STRING or VV_LOCAL_TOKEN_SECRET is required")
	}
	if !c.UsesLocalIdentity() && c.CallAutomation.CallbackBaseURL == "" {
		return errors.New("VV_CALLBACK_BASE_URL is required when a communication services connection string is set")
	}
	if c.CallAutomation.CallbackBaseURL != "" {
		u, err := url.Parse(c.CallAutomation.CallbackBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("VV_CALLBACK_BASE_URL must be an absolute http(s) URL, got %q", c.CallAutomation.CallbackBaseURL)
		}
	}
	if c.Mongo.URI != "" && c.Mongo.Database == "" {
		return errors.New("VV_MONGO_DB is required when VV_MONGO_URI is set")
	}
	return nil
}

// UsesLocalIdentity reports whether tokens are minted locally instead of by the platform.
func (c *AppConfig) UsesLocalIdentity() bool {
	return c.CommunicationServicesConnectionString == ""
}

func (c *AppConfig) CallbackURI() string {
	return strings.TrimRight(c.CallAutomation.CallbackBaseURL, "/") + "/api/callAutomationEvent"
}

// TranscriptionTransportURL is the websocket endpoint handed to the platform at connect time.
func (c *AppConfig) TranscriptionTransportURL() string {
	base := strings.TrimRight(c.CallAutomation.CallbackBaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws/transcription"
}

// ClientConfig is the browser-safe view served on /api/config.
type ClientConfig struct {
	MicrosoftBookingsURL  string         `json:"microsoftBookingsUrl"`
	ChatEnabled           bool           `json:"chatEnabled"`
	ScreenShareEnabled    bool           `json:"screenShareEnabled"`
	CompanyName           string         `json:"companyName"`
	ColorPalette          string         `json:"colorPalette"`
	WaitingTitle          string         `json:"waitingTitle"`
	WaitingSubtitle       string         `json:"waitingSubtitle"`
	LogoURL               string         `json:"logoUrl"`
	CommunicationEndpoint string         `json:"communicationEndpoint,omitempty"`
	PostCall              PostCallConfig `json:"postCall"`
}

func (c *AppConfig) Client() ClientConfig {
	return ClientConfig{
		MicrosoftBookingsURL:  c.MicrosoftBookingsURL,
		ChatEnabled:           c.ChatEnabled,
		ScreenShareEnabled:    c.ScreenShareEnabled,
		CompanyName:           c.CompanyName,
		ColorPalette:          c.ColorPalette,
		WaitingTitle:          c.WaitingTitle,
		WaitingSubtitle:       c.WaitingSubtitle,
		LogoURL:               c.LogoURL,
		CommunicationEndpoint: c.communicationEndpoint(),
		PostCall:              c.PostCall,
	}
}

func (c *AppConfig) communicationEndpoint() string {
	for _, part := range strings.Split(c.CommunicationServicesConnectionString, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && strings.EqualFold(k, "endpoint") {
			return v
		}
	}
	return ""
}
