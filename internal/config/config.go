// Package config handles external configuration loading from JSON, .env files and environment variables
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Debug     bool      `json:"debug"`
	Server    Server    `json:"server"`
	Database  Database  `json:"database"`
	Backend   Backend   `json:"backend"`
	Session   Session   `json:"session"`
	Realtime  Realtime  `json:"realtime"`
	Tickets   Tickets   `json:"tickets"`
	Telemetry Telemetry `json:"telemetry"`
}

// Server holds HTTP server configuration
type Server struct {
	Port         int    `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"readTimeout"`
	WriteTimeout int    `json:"writeTimeout"`
}

// Database holds database configuration
type Database struct {
	Path string `json:"path"`
}

// Backend describes the remote REST/WebSocket API the dashboard fronts
type Backend struct {
	BaseURL        string `json:"baseUrl"`
	RealtimePath   string `json:"realtimePath"`
	PageSize       int    `json:"pageSize"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	// Search origin for the nearby-locations endpoint
	Longitude   float64 `json:"longitude"`
	Latitude    float64 `json:"latitude"`
	MaxDistance int     `json:"maxDistance"`
}

// Session holds browser session configuration
type Session struct {
	Secret     string `json:"secret"`
	CookieName string `json:"cookieName"`
	TTLHours   int    `json:"ttlHours"`
}

// Realtime holds notification channel configuration
type Realtime struct {
	Enabled               bool `json:"enabled"`
	ReconnectDelaySeconds int  `json:"reconnectDelaySeconds"`
	HeartbeatSeconds      int  `json:"heartbeatSeconds"`
	FeedSize              int  `json:"feedSize"`
}

// Tickets holds ticket board options
type Tickets struct {
	// LegacyOverlap puts every PAID ticket in Up Coming, On Service and
	// Overdue at once, the way the first dashboard release did
	LegacyOverlap bool `json:"legacyOverlap"`
}

// Telemetry holds tracing configuration
type Telemetry struct {
	ServiceName string `json:"serviceName"`
}

// Load reads configuration from the specified JSON file, then a .env file, and overrides with environment variables
func Load(configPath string) (*Config, error) {
	var cfg Config

	cleanPath := filepath.Clean(configPath)

	data, err := os.ReadFile(cleanPath)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	// If file doesn't exist, we continue with empty config and rely on Env Vars

	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides overrides config values with environment variables if set
func (c *Config) applyEnvOverrides() {
	if debug := os.Getenv("DEBUG"); debug != "" {
		c.Debug = debug == "true" || debug == "1"
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}

	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		c.Database.Path = dbPath
	}

	if baseURL := os.Getenv("BACKEND_BASE_URL"); baseURL != "" {
		c.Backend.BaseURL = baseURL
	}

	// Session secret (critical for production)
	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		c.Session.Secret = secret
	}

	if enabled := os.Getenv("REALTIME_ENABLED"); enabled != "" {
		c.Realtime.Enabled = enabled == "true" || enabled == "1"
	}

	if legacy := os.Getenv("TICKETS_LEGACY_OVERLAP"); legacy != "" {
		c.Tickets.LegacyOverlap = legacy == "true" || legacy == "1"
	}
}

// applyDefaults fills in values a purely env-based deployment may leave out
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/parkadmin.db"
	}
	if c.Backend.RealtimePath == "" {
		c.Backend.RealtimePath = "/app-data-service/ws/websocket"
	}
	if c.Backend.PageSize == 0 {
		c.Backend.PageSize = 100
	}
	if c.Backend.TimeoutSeconds == 0 {
		c.Backend.TimeoutSeconds = 20
	}
	if c.Backend.MaxDistance == 0 {
		c.Backend.MaxDistance = 100
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "parkadmin_session"
	}
	if c.Session.TTLHours == 0 {
		c.Session.TTLHours = 12
	}
	if c.Realtime.ReconnectDelaySeconds == 0 {
		c.Realtime.ReconnectDelaySeconds = 5
	}
	if c.Realtime.HeartbeatSeconds == 0 {
		c.Realtime.HeartbeatSeconds = 10
	}
	if c.Realtime.FeedSize == 0 {
		c.Realtime.FeedSize = 50
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "parkadmin"
	}
}

// validate checks that all required configuration values are present
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	cleanDBPath := filepath.Clean(c.Database.Path)
	if !filepath.IsLocal(cleanDBPath) && !filepath.IsAbs(cleanDBPath) {
		return fmt.Errorf("invalid database path: potential path traversal detected")
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend base URL is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend base URL: %q", c.Backend.BaseURL)
	}

	if c.Backend.PageSize < 1 {
		return fmt.Errorf("backend page size must be positive: %d", c.Backend.PageSize)
	}

	if c.Session.Secret == "" || c.Session.Secret == "CHANGE_THIS_SECRET_IN_PRODUCTION" {
		if !c.Debug {
			return fmt.Errorf("session secret must be changed for production")
		}
		if c.Session.Secret == "" {
			c.Session.Secret = "debug-only-session-secret"
		}
	}

	return nil
}

// Address returns the full server address (host:port)
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetDatabasePath returns the cleaned and validated database path
func (c *Config) GetDatabasePath() string {
	return filepath.Clean(c.Database.Path)
}

// BackendTimeout returns the per-request timeout for backend calls
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// SessionTTL returns how long a browser session stays valid
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLHours) * time.Hour
}

// ReconnectDelay returns the fixed delay between realtime reconnect attempts
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Realtime.ReconnectDelaySeconds) * time.Second
}

// Heartbeat returns the STOMP heartbeat interval in both directions
func (c *Config) Heartbeat() time.Duration {
	return time.Duration(c.Realtime.HeartbeatSeconds) * time.Second
}
