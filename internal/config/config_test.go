package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/llavacap/internal/domain"
)

func envFrom(values map[string]string) LookupEnvFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(&LoadOptions{LookupEnv: envFrom(nil)})
	require.NoError(t, err)

	assert.Equal(t, domain.ModelOllama, cfg.Model)
	assert.Equal(t, 0.0, cfg.Temperature)
	assert.Equal(t, -1, cfg.GPULayers)
	assert.True(t, cfg.Preprocess)
	assert.False(t, cfg.SecondaryCaption)
	assert.False(t, cfg.DirectCaption)
	assert.Equal(t, "127.0.0.1:11434", cfg.OllamaAddress)
	assert.Equal(t, ".png", cfg.Files.ImageExt)
	assert.Equal(t, ".txt", cfg.Files.TextExt)
	assert.Equal(t, 5*time.Minute, cfg.RequestTimeout)
	assert.Equal(t, domain.ModePromptComparison, cfg.Mode())
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentOverridesDefaults(t *testing.T) {
	cfg, err := Load(&LoadOptions{LookupEnv: envFrom(map[string]string{
		"LLAVA_PROCESSOR":   "HFModel",
		"TEMPERATURE":       "0.9",
		"N_GPU_LAYERS":      "20",
		"PREPROCESSOR":      "false",
		"SECONDARY_CAPTION": "true",
		"OLLAMA_REMOTEHOST": "gpu-box:11434",
		"DIRECT_CAPTION":    "1",
		"HF_TOKEN":          "hf_secret",
		"REQUEST_TIMEOUT":   "30s",
	})})
	require.NoError(t, err)

	assert.Equal(t, domain.ModelHosted, cfg.Model)
	assert.Equal(t, 0.9, cfg.Temperature)
	assert.Equal(t, 20, cfg.GPULayers)
	assert.False(t, cfg.Preprocess)
	assert.True(t, cfg.SecondaryCaption)
	assert.True(t, cfg.DirectCaption)
	assert.Equal(t, "gpu-box:11434", cfg.OllamaAddress)
	assert.Equal(t, "hf_secret", cfg.Hosted.Token)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestLoad_FlagOverridesEnvironment(t *testing.T) {
	fs := parseFlags(t, "--temperature", "0.2", "--model", "LCPModel", "--no-preprocess")
	cfg, err := Load(&LoadOptions{
		Flags: fs,
		LookupEnv: envFrom(map[string]string{
			"TEMPERATURE":     "0.9",
			"LLAVA_PROCESSOR": "HFModel",
			"PREPROCESSOR":    "true",
			"N_GPU_LAYERS":    "12",
		}),
	})
	require.NoError(t, err)

	assert.Equal(t, 0.2, cfg.Temperature)
	assert.Equal(t, domain.ModelLlamaCpp, cfg.Model)
	assert.False(t, cfg.Preprocess)
	// Unchanged flags fall through to the environment.
	assert.Equal(t, 12, cfg.GPULayers)
}

func TestLoad_UnchangedFlagsKeepDefaults(t *testing.T) {
	fs := parseFlags(t)
	cfg, err := Load(&LoadOptions{Flags: fs, LookupEnv: envFrom(nil)})
	require.NoError(t, err)

	assert.True(t, cfg.Preprocess)
	assert.Equal(t, -1, cfg.GPULayers)
	assert.Equal(t, domain.ModelOllama, cfg.Model)
}

func TestLoad_ConfigFileBelowEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llavacap.yaml")
	content := []byte("model: VisionModel\ntemperature: 0.5\nollama:\n  model: llava:13b\nfiles:\n  image_ext: .jpg\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(&LoadOptions{
		ConfigPath: path,
		LookupEnv:  envFrom(map[string]string{"TEMPERATURE": "0.7"}),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ModelVision, cfg.Model)
	assert.Equal(t, 0.7, cfg.Temperature)
	assert.Equal(t, "llava:13b", cfg.Ollama.Model)
	assert.Equal(t, ".jpg", cfg.Files.ImageExt)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(&LoadOptions{
		ConfigPath: filepath.Join(t.TempDir(), "absent.yaml"),
		LookupEnv:  envFrom(nil),
	})
	require.Error(t, err)
}

func TestValidate_UnknownModel(t *testing.T) {
	fs := parseFlags(t, "--model", "Bogus")
	cfg, err := Load(&LoadOptions{Flags: fs, LookupEnv: envFrom(nil)})
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownModel))
	assert.Contains(t, err.Error(), "Bogus")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(&LoadOptions{LookupEnv: envFrom(nil)})
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative temperature", func(c *Config) { c.Temperature = -0.1 }},
		{"gpu layers below sentinel", func(c *Config) { c.GPULayers = -2 }},
		{"extension without dot", func(c *Config) { c.Files.ImageExt = "png" }},
		{"same extensions", func(c *Config) { c.Files.TextExt = ".png" }},
		{"zero max size", func(c *Config) { c.Files.MaxImageSize = 0 }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"unknown journal driver", func(c *Config) { c.Journal.DSN = "x"; c.Journal.Driver = "mysql" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLogLevel(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "warn", cfg.LogLevel())
	cfg.Logging = true
	assert.Equal(t, "debug", cfg.LogLevel())
}
