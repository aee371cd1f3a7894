package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "foodguard"
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/foodguard.db"
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = "127.0.0.1:8090"
	}
	if cfg.Agent.MaxSteps == 0 {
		cfg.Agent.MaxSteps = 25
	}
	if cfg.Agent.StreamDeadline == 0 {
		cfg.Agent.StreamDeadline = 5 * time.Minute
	}
	if cfg.Agent.QuickDeadline == 0 {
		cfg.Agent.QuickDeadline = 60 * time.Second
	}
	if cfg.Agent.ChatDeadline == 0 {
		cfg.Agent.ChatDeadline = 30 * time.Second
	}
	if cfg.DataSource.WeatherBaseURL == "" {
		cfg.DataSource.WeatherBaseURL = "https://api.openweathermap.org"
	}
	if cfg.DataSource.MarketBaseURL == "" {
		cfg.DataSource.MarketBaseURL = "https://api.worldbank.org"
	}
	if cfg.DataSource.NASABaseURL == "" {
		cfg.DataSource.NASABaseURL = "https://power.larc.nasa.gov"
	}
}

func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.API.Token == "" {
		return fmt.Errorf("api.token is required")
	}
	if envVarPattern.MatchString(cfg.API.Token) {
		matches := envVarPattern.FindStringSubmatch(cfg.API.Token)
		if len(matches) > 1 {
			return fmt.Errorf("api.token: environment variable ${%s} is not set", matches[1])
		}
	}
	if cfg.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	if cfg.LLM.APIKey == "" && cfg.LLM.Provider != "ollama" {
		return fmt.Errorf("llm.api_key is required")
	}
	if envVarPattern.MatchString(cfg.LLM.APIKey) {
		matches := envVarPattern.FindStringSubmatch(cfg.LLM.APIKey)
		if len(matches) > 1 {
			return fmt.Errorf("llm.api_key: environment variable ${%s} is not set", matches[1])
		}
	}
	if envVarPattern.MatchString(cfg.DataSource.WeatherAPIKey) {
		matches := envVarPattern.FindStringSubmatch(cfg.DataSource.WeatherAPIKey)
		if len(matches) > 1 {
			return fmt.Errorf("datasource.weather_api_key: environment variable ${%s} is not set", matches[1])
		}
	}
	if cfg.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be positive")
	}
	return nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}
