package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration: defaults, then the optional yaml file,
// then environment overrides. Environment always wins.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = "hub.yaml"
	}
	if err := loadFromFile(cfg, path); err != nil {
		return nil, err
	}

	loadFromEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	return &Config{
		Server: ServerConfig{
			Port: 4000,
			Env:  "development",
		},
		LLM: LLMConfig{
			BaseURL:       "http://localhost:11434",
			Model:         "llama3.1",
			Temperature:   0.1,
			ContextLength: 4096,
			Timeout:       60 * time.Second,
		},
		DB: DBConfig{
			Host: "localhost",
			Port: 5432,
			User: "postgres",
			Name: "postgres",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		FS: FSConfig{
			AllowedPath: cwd,
		},
		MCP: MCPConfig{
			ConfigPath:     filepath.Join(cwd, "mcp-servers.json"),
			RequestTimeout: 30 * time.Second,
		},
		Agent: AgentConfig{
			MaxIterations:  6,
			HistoryWindow:  8,
			RecentSessions: 50,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func loadFromEnv(cfg *Config) {
	setInt(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.Env, "NODE_ENV")
	setBool(&cfg.Server.ProductionSafeMode, "PRODUCTION_SAFE_MODE")

	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setFloat32(&cfg.LLM.Temperature, "LLM_TEMPERATURE")
	setInt(&cfg.LLM.ContextLength, "LLM_CONTEXT_LENGTH")
	setMillis(&cfg.LLM.Timeout, "LLM_TIMEOUT_MS")

	setString(&cfg.DB.Host, "DB_HOST")
	setInt(&cfg.DB.Port, "DB_PORT")
	setString(&cfg.DB.User, "DB_USER")
	setString(&cfg.DB.Password, "DB_PASSWORD")
	setString(&cfg.DB.Name, "DB_NAME")

	setString(&cfg.Redis.Host, "REDIS_HOST")
	setInt(&cfg.Redis.Port, "REDIS_PORT")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")

	setString(&cfg.FS.AllowedPath, "FS_ALLOWED_PATH")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setFloat32(dst *float32, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			*dst = float32(f)
		}
	}
}

func setMillis(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Millisecond
		}
	}
}
