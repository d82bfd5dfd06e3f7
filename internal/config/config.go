package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// WarrenConfig represents the top-level warren.yml configuration
type WarrenConfig struct {
	Version  string          `yaml:"version"`
	Instance string          `yaml:"instance"` // Namespaces all Redis keys; one instance per deployment
	Redis    RedisConfig     `yaml:"redis"`
	Platform PlatformConfig  `yaml:"platform"`
	Sync     *SyncConfig     `yaml:"sync,omitempty"`
	Digest   *DigestConfig   `yaml:"digest,omitempty"`
	Messages *MessagesConfig `yaml:"messages,omitempty"`
}

// RedisConfig specifies the share store connection
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// PlatformConfig specifies the conversation platform API connection
type PlatformConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIToken string `yaml:"api_token,omitempty"` // Falls back to WARREN_API_TOKEN
}

// SyncConfig specifies file fan-out behavior
type SyncConfig struct {
	TargetTimeoutSeconds *int `yaml:"target_timeout_seconds,omitempty"` // Per-conversation copy timeout (default 30)
}

// DigestConfig specifies background digest refresh behavior
type DigestConfig struct {
	QueueSize   *int `yaml:"queue_size,omitempty"`   // Pending refresh jobs (default 64)
	MaxMessages *int `yaml:"max_messages,omitempty"` // Trailing messages summarized (default 20)
}

// MessagesConfig specifies welcome templates and message mirroring
type MessagesConfig struct {
	CoordinatorWelcome     string `yaml:"coordinator_welcome,omitempty"` // One %s placeholder for the share URL
	TeamWelcome            string `yaml:"team_welcome,omitempty"`
	MaxCoordinatorMessages *int   `yaml:"max_coordinator_messages,omitempty"` // Mirrored message cap (default 50)
}

// Defaults applied by Validate when sections or fields are omitted.
const (
	DefaultTargetTimeoutSeconds   = 30
	DefaultDigestQueueSize        = 64
	DefaultDigestMaxMessages      = 20
	DefaultMaxCoordinatorMessages = 50

	DefaultCoordinatorWelcome = "Welcome! This conversation coordinates a shared workspace. Invite your team with this link: %s"
	DefaultTeamWelcome        = "Welcome to the team workspace. Shared files and the knowledge brief are kept in sync for you."
)

// Validate performs strict validation on the configuration and fills in
// defaults for omitted sections
func (c *WarrenConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: instance name, used as a Redis key namespace
	if c.Instance == "" {
		return fmt.Errorf("instance name is required")
	}
	if strings.ContainsAny(c.Instance, ": \t\n") {
		return fmt.Errorf("invalid instance name %q: must not contain colons or whitespace", c.Instance)
	}

	// Required: redis address
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0, got %d", c.Redis.DB)
	}

	// Required: platform base URL; token may come from the environment
	if c.Platform.BaseURL == "" {
		return fmt.Errorf("platform.base_url is required")
	}
	if c.Platform.APIToken == "" {
		c.Platform.APIToken = os.Getenv("WARREN_API_TOKEN")
	}

	// Apply default sync config if missing
	if c.Sync == nil {
		c.Sync = &SyncConfig{}
	}
	if c.Sync.TargetTimeoutSeconds == nil {
		defaultTimeout := DefaultTargetTimeoutSeconds
		c.Sync.TargetTimeoutSeconds = &defaultTimeout
	}
	if *c.Sync.TargetTimeoutSeconds < 1 {
		return fmt.Errorf("sync.target_timeout_seconds must be >= 1, got %d", *c.Sync.TargetTimeoutSeconds)
	}

	// Apply default digest config if missing
	if c.Digest == nil {
		c.Digest = &DigestConfig{}
	}
	if c.Digest.QueueSize == nil {
		defaultQueue := DefaultDigestQueueSize
		c.Digest.QueueSize = &defaultQueue
	}
	if *c.Digest.QueueSize < 1 {
		return fmt.Errorf("digest.queue_size must be >= 1, got %d", *c.Digest.QueueSize)
	}
	if c.Digest.MaxMessages == nil {
		defaultMax := DefaultDigestMaxMessages
		c.Digest.MaxMessages = &defaultMax
	}
	if *c.Digest.MaxMessages < 0 {
		return fmt.Errorf("digest.max_messages must be >= 0 (0 = all), got %d", *c.Digest.MaxMessages)
	}

	// Apply default message config if missing
	if c.Messages == nil {
		c.Messages = &MessagesConfig{}
	}
	if c.Messages.CoordinatorWelcome == "" {
		c.Messages.CoordinatorWelcome = DefaultCoordinatorWelcome
	}
	if !strings.Contains(c.Messages.CoordinatorWelcome, "%s") {
		return fmt.Errorf("messages.coordinator_welcome must contain a %%s placeholder for the share URL")
	}
	if c.Messages.TeamWelcome == "" {
		c.Messages.TeamWelcome = DefaultTeamWelcome
	}
	if c.Messages.MaxCoordinatorMessages == nil {
		defaultMax := DefaultMaxCoordinatorMessages
		c.Messages.MaxCoordinatorMessages = &defaultMax
	}
	if *c.Messages.MaxCoordinatorMessages < 1 {
		return fmt.Errorf("messages.max_coordinator_messages must be >= 1, got %d", *c.Messages.MaxCoordinatorMessages)
	}

	return nil
}

// Load reads and validates warren.yml from the specified path
func Load(path string) (*WarrenConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config WarrenConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
