package config

import (
	"fmt"
	"time"
)

// Config represents the main application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	DB      DBConfig      `yaml:"db"`
	Redis   RedisConfig   `yaml:"redis"`
	FS      FSConfig      `yaml:"fs"`
	MCP     MCPConfig     `yaml:"mcp"`
	Agent   AgentConfig   `yaml:"agent"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               int    `yaml:"port"`
	Env                string `yaml:"env"`
	ProductionSafeMode bool   `yaml:"production_safe_mode"`
}

// LLMConfig holds settings for the local LLM backend.
type LLMConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Model         string        `yaml:"model"`
	Temperature   float32       `yaml:"temperature"`
	ContextLength int           `yaml:"context_length"`
	Timeout       time.Duration `yaml:"timeout"`
}

// DBConfig holds PostgreSQL connection settings for the db_* tools.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// DSN returns the lib/pq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

// RedisConfig holds Redis connection settings for the kv_* / queue_* tools.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Addr returns the host:port address.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// FSConfig holds filesystem tool settings.
type FSConfig struct {
	AllowedPath string `yaml:"allowed_path"`
}

// MCPConfig holds external tool-server settings.
type MCPConfig struct {
	ConfigPath     string        `yaml:"config_path"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	WatchConfig    bool          `yaml:"watch_config"`
}

// AgentConfig holds reasoning loop settings.
type AgentConfig struct {
	MaxIterations  int `yaml:"max_iterations"`
	HistoryWindow  int `yaml:"history_window"`
	RecentSessions int `yaml:"recent_sessions"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
