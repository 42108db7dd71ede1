package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the client configuration (~/.courier/config.toml).
type Config struct {
	ServerURL string `toml:"server_url"`
	SocketURL string `toml:"socket_url"`
	LogPath   string `toml:"log_path"`

	ReconnectSeconds        int `toml:"reconnect_seconds"`
	UserSearchDebounceMs    int `toml:"user_search_debounce_ms"`
	MessageSearchDebounceMs int `toml:"message_search_debounce_ms"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		ServerURL:               "http://localhost:8000/api",
		SocketURL:               "ws://localhost:8000/api/chats/ws",
		LogPath:                 filepath.Join(home, ".courier", "courierd.log"),
		ReconnectSeconds:        3,
		UserSearchDebounceMs:    500,
		MessageSearchDebounceMs: 300,
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ReconnectDelay returns the channel reconnect delay.
func (c *Config) ReconnectDelay() time.Duration {
	if c.ReconnectSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.ReconnectSeconds) * time.Second
}

// UserSearchDebounce returns the debounce window for user search queries.
func (c *Config) UserSearchDebounce() time.Duration {
	if c.UserSearchDebounceMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.UserSearchDebounceMs) * time.Millisecond
}

// MessageSearchDebounce returns the debounce window for in-chat message search.
func (c *Config) MessageSearchDebounce() time.Duration {
	if c.MessageSearchDebounceMs <= 0 {
		return 300 * time.Millisecond
	}
	return time.Duration(c.MessageSearchDebounceMs) * time.Millisecond
}
