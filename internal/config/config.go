// Package config handles loading and managing taudash configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	BindAddr        string   `toml:"bind_addr"`        // Listen address (default: 127.0.0.1)
	APIPort         int      `toml:"api_port"`         // HTTP server port (default: 8080)
	APIKey          string   `toml:"api_key"`          // API authentication key
	CORSOrigins     []string `toml:"cors_origins"`     // Allowed browser origins (empty disables CORS)
	CORSCredentials bool     `toml:"cors_credentials"` // Allow credentialed CORS requests
	CORSMaxAge      int      `toml:"cors_max_age"`     // Preflight cache seconds
	RateLimitRPS    float64  `toml:"rate_limit_rps"`
	RateLimitBurst  int      `toml:"rate_limit_burst"`
	SessionTTL      string   `toml:"session_ttl"`   // Idle login session lifetime (Go duration)
	SessionSweep    string   `toml:"session_sweep"` // Cron expression for idle session cleanup
	AllowInsecure   bool     `toml:"allow_insecure"`
}

// DatasourceConfig holds default connection values offered at login.
type DatasourceConfig struct {
	Driver  string `toml:"driver"` // sqlite3 or duckdb
	DBHost  string `toml:"dbhost"`
	DBName  string `toml:"dbname"`
	DBUser  string `toml:"dbuser"`
	DataDir string `toml:"data_dir"` // Resolves relative database file names
}

// ClientConfig holds settings for the terminal client talking to a server.
type ClientConfig struct {
	URL                string `toml:"url"`
	APIKey             string `toml:"api_key"`
	AllowInsecure      bool   `toml:"allow_insecure"` // Permit http:// to non-loopback servers
	Timeout            string `toml:"timeout"`
	ProfileLimit       int    `toml:"profile_limit"`
	LegacyStaleResults bool   `toml:"legacy_stale_results"` // Apply fetch results issued for an older selection (last arrival wins)
}

// Config represents the taudash configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Datasource DatasourceConfig `toml:"datasource"`
	Client     ClientConfig     `toml:"client"`

	// Computed paths (not from config file)
	HomeDir    string `toml:"-"`
	configPath string
}

// DefaultHome returns the default taudash home directory.
// Respects TAUDASH_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("TAUDASH_HOME"); h != "" {
		return expandPath(h)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taudash"
	}
	return filepath.Join(home, ".taudash")
}

func defaults(homeDir string) *Config {
	return &Config{
		HomeDir: homeDir,
		Server: ServerConfig{
			BindAddr:       "127.0.0.1",
			APIPort:        8080,
			RateLimitRPS:   10,
			RateLimitBurst: 20,
			SessionTTL:     "12h",
			SessionSweep:   "*/10 * * * *",
		},
		Datasource: DatasourceConfig{
			Driver:  "sqlite3",
			DBHost:  "localhost",
			DBName:  "taudb.db",
			DataDir: homeDir,
		},
		Client: ClientConfig{
			URL:          "http://127.0.0.1:8080",
			Timeout:      "30s",
			ProfileLimit: 100,
		},
	}
}

// Load reads the configuration from the specified file.
// If path is empty, uses <home>/config.toml. homeOverride, when set, takes
// precedence over TAUDASH_HOME.
func Load(path, homeOverride string) (*Config, error) {
	homeDir := DefaultHome()
	if homeOverride != "" {
		homeDir = expandPath(homeOverride)
	}

	if path == "" {
		path = filepath.Join(homeDir, "config.toml")
	}
	path = expandPath(path)

	cfg := defaults(homeDir)
	cfg.configPath = path

	// Config file is optional - use defaults if not present
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Datasource.DataDir = expandPath(cfg.Datasource.DataDir)
	if cfg.Datasource.DataDir == "" {
		cfg.Datasource.DataDir = homeDir
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := c.SessionTTL(); err != nil {
		return err
	}
	if _, err := c.ClientTimeout(); err != nil {
		return err
	}
	switch c.Datasource.Driver {
	case "sqlite3", "duckdb":
	default:
		return fmt.Errorf("datasource.driver %q: want sqlite3 or duckdb", c.Datasource.Driver)
	}
	if c.Client.ProfileLimit < 1 {
		return fmt.Errorf("client.profile_limit must be positive, got %d", c.Client.ProfileLimit)
	}
	return nil
}

// ConfigFilePath returns the path config was (or would be) loaded from.
func (c *Config) ConfigFilePath() string {
	if c.configPath != "" {
		return c.configPath
	}
	return filepath.Join(c.HomeDir, "config.toml")
}

// EnsureHomeDir creates the home directory if missing.
func (c *Config) EnsureHomeDir() error {
	return os.MkdirAll(c.HomeDir, 0700)
}

// Save writes the configuration back to ConfigFilePath.
func (c *Config) Save() error {
	if err := c.EnsureHomeDir(); err != nil {
		return fmt.Errorf("create home dir: %w", err)
	}
	f, err := os.OpenFile(c.ConfigFilePath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// StateDBPath returns the path of the client-side state database (saved
// connection profiles and cached selections).
func (c *Config) StateDBPath() string {
	return filepath.Join(c.HomeDir, "client_state.db")
}

// LogFilePath returns where the terminal client writes its log.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.HomeDir, "taudash.log")
}

// SessionTTL parses server.session_ttl.
func (c *Config) SessionTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.Server.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("server.session_ttl %q: %w", c.Server.SessionTTL, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("server.session_ttl must be positive, got %s", d)
	}
	return d, nil
}

// ClientTimeout parses client.timeout.
func (c *Config) ClientTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Client.Timeout)
	if err != nil {
		return 0, fmt.Errorf("client.timeout %q: %w", c.Client.Timeout, err)
	}
	return d, nil
}

// ValidateSecure refuses to expose an unauthenticated API on a non-loopback
// address unless allow_insecure is set.
func (s ServerConfig) ValidateSecure() error {
	if s.APIKey != "" || s.AllowInsecure {
		return nil
	}
	addr := s.BindAddr
	if addr == "" || addr == "localhost" {
		return nil
	}
	if ip := net.ParseIP(addr); ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("refusing to bind %s without [server] api_key; set api_key or allow_insecure = true", addr)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
