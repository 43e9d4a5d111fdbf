package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "mentormatch"
)

type Config struct {
	DatabaseURL string          `mapstructure:"database-url"`
	MediaRoot   string          `mapstructure:"media-root"`
	Listen      string          `mapstructure:"listen"`
	Matching    *MatchingConfig `mapstructure:"matching"`
	AI          *AIConfig       `mapstructure:"ai"`
}

type MatchingConfig struct {
	CandidateLimit int `mapstructure:"candidate-limit"`
	RolePoolLimit  int `mapstructure:"role-pool-limit"`
	TopicPoolLimit int `mapstructure:"topic-pool-limit"`
}

type AIConfig struct {
	Provider    string        `mapstructure:"provider"`
	Temperature float64       `mapstructure:"temperature"`
	OpenAI      *OpenAIConfig `mapstructure:"openai"`
	Gemini      *GeminiConfig `mapstructure:"gemini"`
}

type OpenAIConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	BaseURL      string `mapstructure:"base-url"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "mentormatch ranks thesis topic, role, student and supervisor matches with an LLM",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

// envBindings maps config keys to the environment variables the deployment
// sets. The proxy variables configure the OpenAI-compatible endpoint.
var envBindings = map[string]string{
	"database-url":       "DATABASE_URL",
	"media-root":         "MEDIA_ROOT",
	"listen":             "LISTEN_ADDR",
	"ai.temperature":     "MATCHING_LLM_TEMPERATURE",
	"ai.openai.api-key":  "PROXY_API_KEY",
	"ai.openai.base-url": "PROXY_BASE_URL",
	"ai.openai.model":    "PROXY_MODEL",
	"ai.gemini.api-key":  "GEMINI_API_KEY",
}

func init() {
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is mentormatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// The config file is optional: everything can come from the environment.
	// An explicitly requested file must still parse.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}
	if config.Listen == "" {
		config.Listen = ":8000"
	}
	return config, nil
}
