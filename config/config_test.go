package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Defaults()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, []string{"voip"}, cfg.TokenScopes)
	require.Equal(t, "en-US", cfg.CallAutomation.TranscriptionLocale)
	require.Equal(t, "onequestionpoll", cfg.PostCall.Survey.Type)
	require.Equal(t, "virtualvisits", cfg.Mongo.Database)
	require.True(t, cfg.UsesLocalIdentity())
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"companyName": "Contoso Clinic",
		"chatEnabled": false,
		"callAutomation": {"callbackBaseUrl": "https://file.example.com"}
	}`), 0o600))

	t.Setenv("VV_CONFIG_FILE", path)
	t.Setenv("VV_LOCAL_TOKEN_SECRET", "dev")
	t.Setenv("VV_CALLBACK_BASE_URL", "https://env.example.com/")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PORT", "9000")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "Contoso Clinic", cfg.CompanyName)
	require.False(t, cfg.ChatEnabled)
	require.True(t, cfg.ScreenShareEnabled)
	require.Equal(t, "9000", cfg.Server.Port)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, "https://env.example.com/", cfg.CallAutomation.CallbackBaseURL)
	require.Equal(t, "https://env.example.com/api/callAutomationEvent", cfg.CallbackURI())
	require.Equal(t, "wss://env.example.com/ws/transcription", cfg.TranscriptionTransportURL())
}

func TestLoadRejectsUnknownFileFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"companyNmae": "typo"}`), 0o600))
	t.Setenv("VV_CONFIG_FILE", path)
	t.Setenv("VV_LOCAL_TOKEN_SECRET", "dev")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *AppConfig {
		cfg, err := Defaults()
		require.NoError(t, err)
		cfg.LocalTokenSecret = "dev"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"missing port", func(c *AppConfig) { c.Server.Port = "" }},
		{"no identity", func(c *AppConfig) { c.LocalTokenSecret = "" }},
		{"relative callback", func(c *AppConfig) { c.CallAutomation.CallbackBaseURL = "/api" }},
		{"wrong scheme", func(c *AppConfig) { c.CallAutomation.CallbackBaseURL = "ftp://x" }},
		{"mongo without db", func(c *AppConfig) { c.Mongo.URI = "mongodb://x"; c.Mongo.Database = "" }},
		{"platform without callback url", func(c *AppConfig) {
			c.CommunicationServicesConnectionString = "endpoint=https://contoso.communication.azure.com/;accesskey=c2VjcmV0"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestValidatePlatformWithCallbackURL(t *testing.T) {
	cfg, err := Defaults()
	require.NoError(t, err)
	cfg.CommunicationServicesConnectionString = "endpoint=https://contoso.communication.azure.com/;accesskey=c2VjcmV0"
	cfg.CallAutomation.CallbackBaseURL = "https://vv.example.com"
	require.NoError(t, cfg.Validate())
}

func TestClientConfigHidesSecrets(t *testing.T) {
	cfg, err := Defaults()
	require.NoError(t, err)
	cfg.CommunicationServicesConnectionString = "endpoint=https://contoso.communication.azure.com/;accesskey=c2VjcmV0"
	cfg.LocalTokenSecret = "dev"

	cc := cfg.Client()
	require.Equal(t, "https://contoso.communication.azure.com/", cc.CommunicationEndpoint)
	require.Equal(t, cfg.CompanyName, cc.CompanyName)
	require.Equal(t, "onequestionpoll", cc.PostCall.Survey.Type)
	require.False(t, cfg.UsesLocalIdentity())
}

func TestTransportURLForPlainHTTP(t *testing.T) {
	cfg := &AppConfig{CallAutomation: CallAutomationConfig{CallbackBaseURL: "http://localhost:8080"}}
	require.Equal(t, "ws://localhost:8080/ws/transcription", cfg.TranscriptionTransportURL())
}
