package config

// Config is the root configuration for Voxhall.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Chat    ChatConfig    `yaml:"chat,omitempty"`
	Store   StoreConfig   `yaml:"store,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP/WebSocket server.
type ServerConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "lan" | "auto"
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// ChatConfig points at the upstream chat service.
type ChatConfig struct {
	ServiceURL     string `yaml:"serviceUrl,omitempty"`
	APIKey         string `yaml:"apiKey,omitempty"` // may be stored as ${ENV_VAR}
	UserID         string `yaml:"userId,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"` // per-request timeout for non-streaming calls
}

// StoreConfig controls the conversation database.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"` // sqlite file path; empty means <data dir>/voxhall.db
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // zerolog level name
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}
