package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "warren.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func validConfig() *WarrenConfig {
	return &WarrenConfig{
		Version:  "1.0",
		Instance: "my-instance",
		Redis:    RedisConfig{Addr: "localhost:6379"},
		Platform: PlatformConfig{BaseURL: "https://platform.example.com", APIToken: "secret"},
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
instance: my-instance
redis:
  addr: "localhost:6379"
platform:
  base_url: "https://platform.example.com"
  api_token: "secret"
messages:
  team_welcome: "Hello team!"
`)

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "1.0", config.Version)
	assert.Equal(t, "my-instance", config.Instance)
	assert.Equal(t, "localhost:6379", config.Redis.Addr)
	assert.Equal(t, "Hello team!", config.Messages.TeamWelcome)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/warren.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
redis:
  - this is invalid
    yaml syntax
`)

	config, err := Load(configPath)
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidate_UnsupportedVersion(t *testing.T) {
	config := validConfig()
	config.Version = "2.0"

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported version: 2.0")
}

func TestValidate_MissingInstance(t *testing.T) {
	config := validConfig()
	config.Instance = ""

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "instance name is required")
}

func TestValidate_InstanceWithColon(t *testing.T) {
	config := validConfig()
	config.Instance = "bad:name"

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must not contain colons")
}

func TestValidate_MissingRedisAddr(t *testing.T) {
	config := validConfig()
	config.Redis.Addr = ""

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis.addr is required")
}

func TestValidate_MissingPlatformURL(t *testing.T) {
	config := validConfig()
	config.Platform.BaseURL = ""

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "platform.base_url is required")
}

func TestValidate_TokenFromEnvironment(t *testing.T) {
	t.Setenv("WARREN_API_TOKEN", "env-token")

	config := validConfig()
	config.Platform.APIToken = ""

	require.NoError(t, config.Validate())
	assert.Equal(t, "env-token", config.Platform.APIToken)
}

func TestValidate_AppliesDefaults(t *testing.T) {
	config := validConfig()

	require.NoError(t, config.Validate())

	assert.Equal(t, DefaultTargetTimeoutSeconds, *config.Sync.TargetTimeoutSeconds)
	assert.Equal(t, DefaultDigestQueueSize, *config.Digest.QueueSize)
	assert.Equal(t, DefaultDigestMaxMessages, *config.Digest.MaxMessages)
	assert.Equal(t, DefaultMaxCoordinatorMessages, *config.Messages.MaxCoordinatorMessages)
	assert.Equal(t, DefaultCoordinatorWelcome, config.Messages.CoordinatorWelcome)
	assert.Equal(t, DefaultTeamWelcome, config.Messages.TeamWelcome)
}

func TestValidate_KeepsExplicitValues(t *testing.T) {
	timeout := 5
	config := validConfig()
	config.Sync = &SyncConfig{TargetTimeoutSeconds: &timeout}

	require.NoError(t, config.Validate())
	assert.Equal(t, 5, *config.Sync.TargetTimeoutSeconds)
}

func TestValidate_RejectsBadRanges(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*WarrenConfig)
		wantErr string
	}{
		{
			name: "zero sync timeout",
			mutate: func(c *WarrenConfig) {
				zero := 0
				c.Sync = &SyncConfig{TargetTimeoutSeconds: &zero}
			},
			wantErr: "sync.target_timeout_seconds must be >= 1",
		},
		{
			name: "zero digest queue",
			mutate: func(c *WarrenConfig) {
				zero := 0
				c.Digest = &DigestConfig{QueueSize: &zero}
			},
			wantErr: "digest.queue_size must be >= 1",
		},
		{
			name: "negative digest window",
			mutate: func(c *WarrenConfig) {
				negative := -1
				c.Digest = &DigestConfig{MaxMessages: &negative}
			},
			wantErr: "digest.max_messages must be >= 0",
		},
		{
			name: "zero mirrored message cap",
			mutate: func(c *WarrenConfig) {
				zero := 0
				c.Messages = &MessagesConfig{MaxCoordinatorMessages: &zero}
			},
			wantErr: "messages.max_coordinator_messages must be >= 1",
		},
		{
			name: "negative redis db",
			mutate: func(c *WarrenConfig) {
				c.Redis.DB = -1
			},
			wantErr: "redis.db must be >= 0",
		},
		{
			name: "coordinator welcome without placeholder",
			mutate: func(c *WarrenConfig) {
				c.Messages = &MessagesConfig{CoordinatorWelcome: "Welcome, no link here"}
			},
			wantErr: "must contain a %s placeholder",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(config)

			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
