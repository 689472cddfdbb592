// Package cfg loads service configuration from a YAML file or from
// environment variables, validates it, and hands out immutable Settings.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"airdiscount/internal/common"
)

type Settings struct {
	HTTPPort      int
	DatabasePath  string
	DataDir       string
	ModelPath     string
	SynthBin      string
	SynthModelDir string
	SynthTimeout  time.Duration
	SynthMaxRows  int
	LogLevel      string
}

type ConfigFile struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	ML struct {
		ModelPath string `yaml:"modelPath"`
	} `yaml:"ml"`

	Synth struct {
		Bin      string `yaml:"bin"`
		ModelDir string `yaml:"modelDir"`
		Timeout  string `yaml:"timeout"`
		MaxRows  int    `yaml:"maxRows"`
	} `yaml:"synth"`

	System struct {
		DataDir  string `yaml:"dataDir"`
		LogLevel string `yaml:"logLevel"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// A .env file supplements the environment in development setups.
	_ = godotenv.Load()

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	synthTimeout, err := time.ParseDuration(config.Synth.Timeout)
	if err != nil {
		synthTimeout = common.DefaultSynthTimeout
	}

	// Environment variables override file values when both are present.
	settings := Settings{
		HTTPPort:      getIntFromEnvOrConfig(common.EnvHTTPPort, config.Server.Port, common.DefaultHTTPPort),
		DatabasePath:  getStringFromEnvOrConfig(common.EnvDatabasePath, config.Database.Path, common.DefaultDatabasePath),
		DataDir:       getStringFromEnvOrConfig(common.EnvDataDir, config.System.DataDir, common.DefaultDataDir),
		ModelPath:     getStringFromEnvOrConfig(common.EnvModelPath, config.ML.ModelPath, common.DefaultModelPath),
		SynthBin:      getStringFromEnvOrConfig(common.EnvSynthBin, config.Synth.Bin, ""),
		SynthModelDir: getStringFromEnvOrConfig(common.EnvSynthModelDir, config.Synth.ModelDir, common.DefaultSynthModelDir),
		SynthTimeout:  getDurationOrDefault(common.EnvSynthTimeout, synthTimeout),
		SynthMaxRows:  getIntFromEnvOrConfig(common.EnvSynthMaxRows, config.Synth.MaxRows, common.DefaultSynthMaxRows),
		LogLevel:      getStringFromEnvOrConfig(common.EnvLogLevel, config.System.LogLevel, common.DefaultLogLevel),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		HTTPPort:      getIntOrDefault(common.EnvHTTPPort, common.DefaultHTTPPort),
		DatabasePath:  getEnvOrDefault(common.EnvDatabasePath, common.DefaultDatabasePath),
		DataDir:       getEnvOrDefault(common.EnvDataDir, common.DefaultDataDir),
		ModelPath:     getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		SynthBin:      os.Getenv(common.EnvSynthBin), // optional, PATH lookup otherwise
		SynthModelDir: getEnvOrDefault(common.EnvSynthModelDir, common.DefaultSynthModelDir),
		SynthTimeout:  getDurationOrDefault(common.EnvSynthTimeout, common.DefaultSynthTimeout),
		SynthMaxRows:  getIntOrDefault(common.EnvSynthMaxRows, common.DefaultSynthMaxRows),
		LogLevel:      getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getStringFromEnvOrConfig(key, configValue, defaultValue string) string {
	if env := os.Getenv(key); env != "" {
		return env
	}
	if configValue != "" {
		return configValue
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings performs range validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.HTTPPort < common.MinHTTPPort || settings.HTTPPort > common.MaxHTTPPort {
		return fmt.Errorf("HTTP port must be between %d and %d, got %d", common.MinHTTPPort, common.MaxHTTPPort, settings.HTTPPort)
	}
	if settings.DatabasePath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if settings.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}
	if settings.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}
	if settings.SynthModelDir == "" {
		return fmt.Errorf("synth model directory cannot be empty")
	}
	if settings.SynthTimeout < time.Second || settings.SynthTimeout > 30*time.Minute {
		return fmt.Errorf("synth timeout must be between 1s and 30m, got %v", settings.SynthTimeout)
	}
	if settings.SynthMaxRows < common.MinSynthRows || settings.SynthMaxRows > common.MaxSynthRows {
		return fmt.Errorf("synth max rows must be between %d and %d, got %d", common.MinSynthRows, common.MaxSynthRows, settings.SynthMaxRows)
	}
	if settings.LogLevel == "" {
		return fmt.Errorf("log level cannot be empty")
	}
	return nil
}
