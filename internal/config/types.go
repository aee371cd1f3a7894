package config

import "time"

// Config represents the complete foodguard configuration.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Database   DatabaseConfig   `yaml:"database"`
	API        APIConfig        `yaml:"api"`
	LLM        LLMConfig        `yaml:"llm"`
	Agent      AgentConfig      `yaml:"agent"`
	DataSource DataSourceConfig `yaml:"datasource"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig defines SQLite storage settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Listen string `yaml:"listen"`
	Token  string `yaml:"token"`
}

// LLMConfig defines the LLM provider settings.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

// AgentConfig defines analysis run behavior.
type AgentConfig struct {
	MaxSteps       int           `yaml:"max_steps"`
	StreamDeadline time.Duration `yaml:"stream_deadline"`
	QuickDeadline  time.Duration `yaml:"quick_deadline"`
	ChatDeadline   time.Duration `yaml:"chat_deadline"`
}

// DataSourceConfig defines the external data-source endpoints the tools hit.
// Base URLs are overridable so tests can point tools at local fakes.
type DataSourceConfig struct {
	WeatherAPIKey  string `yaml:"weather_api_key"`
	WeatherBaseURL string `yaml:"weather_base_url"`
	MarketBaseURL  string `yaml:"market_base_url"`
	NASABaseURL    string `yaml:"nasa_base_url"`
}
