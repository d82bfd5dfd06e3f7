package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/warrenhq/warren/internal/config"
)

var (
	version string
	commit  string
	date    string

	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warren",
	Short: "Warren - Cross-conversation knowledge share coordinator",
	Long: `Warren keeps a coordinator conversation, its shareable template and every
redeemed team conversation in step: coordinator-authored files, the knowledge
brief and the digest are replicated one way into team conversations, with an
append-only audit log per share.

State lives in Redis; the conversation platform is reached over its REST API.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	// A missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "warren.yml", "Path to the warren configuration file")
}

// loadConfig reads and validates the configured warren.yml.
func loadConfig() (*config.WarrenConfig, error) {
	return config.Load(configPath)
}
