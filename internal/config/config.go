// Package config loads and persists the service configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	Timezone      string `json:"timezone"`
	MaxConcurrent int    `json:"max_concurrent"`
	MaxTurnRounds int    `json:"max_turn_rounds"`
	LLM           struct {
		Provider         string  `json:"provider"`
		BaseURL          string  `json:"base_url"`
		APIKey           string  `json:"api_key"`
		Model            string  `json:"model"`
		MaxTokens        int     `json:"max_tokens"`
		Temperature      float32 `json:"temperature"`
		MaxContextTokens int     `json:"max_context_tokens"`
		OutputReserve    int     `json:"output_reserve"`
	} `json:"llm"`
	Brave struct {
		APIKey string `json:"api_key"`
	} `json:"brave"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
	Webhook struct {
		Addr string `json:"addr"`
	} `json:"webhook"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".concierge"),
		MaxConcurrent: 2,
	}
	cfg.LogLevel = "info"
	cfg.Timezone = "Asia/Ho_Chi_Minh"
	cfg.MaxTurnRounds = 10
	cfg.LLM.Provider = "openai"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.MaxTokens = 2000
	cfg.LLM.Temperature = 0.7
	cfg.LLM.MaxContextTokens = 128000
	cfg.LLM.OutputReserve = 4096
	cfg.Webhook.Addr = ":8090"

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if braveKey := os.Getenv("BRAVE_API_KEY"); braveKey != "" {
		cfg.Brave.APIKey = braveKey
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}
	if tz := os.Getenv("CONCIERGE_TIMEZONE"); tz != "" {
		cfg.Timezone = tz
	}

	return cfg, nil
}

// Location resolves the configured reference timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Paths under DataDir for the persistent stores.
func (c *Config) CalendarDBPath() string { return filepath.Join(c.DataDir, "calendar.db") }
func (c *Config) FinanceDBPath() string  { return filepath.Join(c.DataDir, "finance.db") }
func (c *Config) NotesPath() string      { return filepath.Join(c.DataDir, "notes.jsonl") }
func (c *Config) ThreadsDir() string     { return c.DataDir }
func (c *Config) TasksDir() string       { return filepath.Join(c.DataDir, "tasks") }
