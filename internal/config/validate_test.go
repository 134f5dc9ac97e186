package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValid(t *testing.T) {
	cfg := Defaults()
	cfg.Chat.ServiceURL = "https://chat.example.com"
	issues := Validate(&cfg)
	assert.Empty(t, issues)
}

func TestValidateInvalidPort(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 99999
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "server.port", issues[0].Path)
}

func TestValidateInvalidBind(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Bind = "everywhere"
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "server.bind", issues[0].Path)
}

func TestValidateBadServiceURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"no scheme", "chat.example.com"},
		{"wrong scheme", "ftp://chat.example.com"},
		{"no host", "https://"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Chat.ServiceURL = tt.url
			issues := Validate(&cfg)
			require.Len(t, issues, 1)
			assert.Equal(t, "chat.serviceUrl", issues[0].Path)
		})
	}
}

func TestValidateInvalidLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.Logging.Level = "loud"
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "logging.level", issues[0].Path)
}

func TestBindHost(t *testing.T) {
	assert.Equal(t, "127.0.0.1", BindHost("loopback"))
	assert.Equal(t, "127.0.0.1", BindHost(""))
	assert.Equal(t, "0.0.0.0", BindHost("lan"))
	assert.Equal(t, "0.0.0.0", BindHost("auto"))
}
