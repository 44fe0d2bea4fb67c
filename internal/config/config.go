package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/timmy/llavacap/internal/domain"
)

// ErrUnknownModel is returned by Validate when the model selector names no known backend.
var ErrUnknownModel = errors.New("unknown model")

// Config is the immutable settings bag for one run.
type Config struct {
	Model            domain.ModelKind `mapstructure:"model"`
	Temperature      float64          `mapstructure:"temperature"`
	GPULayers        int              `mapstructure:"gpu_layers"`
	Preprocess       bool             `mapstructure:"preprocess"`
	SecondaryCaption bool             `mapstructure:"secondary_caption"`
	Logging          bool             `mapstructure:"logging"`
	SysLogging       bool             `mapstructure:"sys_logging"`
	OllamaAddress    string           `mapstructure:"ollama_address"`
	DirectCaption    bool             `mapstructure:"direct_caption"`
	FailFast         bool             `mapstructure:"fail_fast"`
	RequestTimeout   time.Duration    `mapstructure:"request_timeout"`

	Ollama   OllamaConfig   `mapstructure:"ollama"`
	Hosted   HostedConfig   `mapstructure:"hosted"`
	Vision   VisionConfig   `mapstructure:"vision"`
	LlamaCpp LlamaCppConfig `mapstructure:"llama_cpp"`
	MLX      MLXConfig      `mapstructure:"mlx"`
	Files    FilesConfig    `mapstructure:"files"`
	Log      LogConfig      `mapstructure:"log"`
	Journal  JournalConfig  `mapstructure:"journal"`
}

type OllamaConfig struct {
	Model string `mapstructure:"model"`
}

type HostedConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type VisionConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type LlamaCppConfig struct {
	Binary string `mapstructure:"binary"`
	Model  string `mapstructure:"model"`
	MMProj string `mapstructure:"mmproj"`
}

type MLXConfig struct {
	Python string `mapstructure:"python"`
	Model  string `mapstructure:"model"`
}

type FilesConfig struct {
	ImageExt     string `mapstructure:"image_ext"`
	TextExt      string `mapstructure:"text_ext"`
	MaxImageSize int    `mapstructure:"max_image_size"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type JournalConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// LookupEnvFunc resolves an environment variable, reporting whether it is set.
type LookupEnvFunc func(key string) (string, bool)

// LoadOptions controls where configuration values come from.
type LoadOptions struct {
	ConfigPath string         // optional YAML/TOML/JSON file
	Flags      *pflag.FlagSet // parsed CLI flags; only changed flags override
	LookupEnv  LookupEnvFunc  // nil loads .env and uses os.LookupEnv
}

// envBindings maps config keys to their environment variable.
var envBindings = map[string]string{
	"model":                "LLAVA_PROCESSOR",
	"temperature":          "TEMPERATURE",
	"gpu_layers":           "N_GPU_LAYERS",
	"preprocess":           "PREPROCESSOR",
	"secondary_caption":    "SECONDARY_CAPTION",
	"logging":              "LOGGING",
	"sys_logging":          "SYS_LOGGING",
	"ollama_address":       "OLLAMA_REMOTEHOST",
	"direct_caption":       "DIRECT_CAPTION",
	"fail_fast":            "FAIL_FAST",
	"request_timeout":      "REQUEST_TIMEOUT",
	"ollama.model":         "OLLAMA_MODEL",
	"hosted.token":         "HF_TOKEN",
	"hosted.base_url":      "HF_BASE_URL",
	"hosted.model":         "HF_MODEL",
	"vision.base_url":      "VISION_BASE_URL",
	"vision.model":         "VISION_MODEL",
	"llama_cpp.binary":     "LLAMA_CPP_BIN",
	"llama_cpp.model":      "LLAMA_CPP_MODEL",
	"llama_cpp.mmproj":     "LLAMA_CPP_MMPROJ",
	"mlx.python":           "MLX_PYTHON",
	"mlx.model":            "MLX_MODEL",
	"files.image_ext":      "IMAGE_EXT",
	"files.text_ext":       "TEXT_EXT",
	"files.max_image_size": "IMAGE_MAX_SIZE",
	"log.format":           "LOG_FORMAT",
	"log.file":             "LOG_FILE",
	"journal.driver":       "JOURNAL_DRIVER",
	"journal.dsn":          "JOURNAL_DSN",
}

// flagBindings maps config keys to the CLI flag that overrides them.
// --no-preprocess is inverted and handled separately.
var flagBindings = map[string]string{
	"model":             FlagModel,
	"temperature":       FlagTemperature,
	"gpu_layers":        FlagGPULayers,
	"secondary_caption": FlagSecondaryCaption,
	"logging":           FlagLogging,
	"sys_logging":       FlagSysLogging,
	"ollama_address":    FlagOllamaAddress,
	"direct_caption":    FlagDirectCaption,
	"fail_fast":         FlagFailFast,
	"journal.dsn":       FlagJournal,
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model", string(domain.ModelOllama))
	v.SetDefault("temperature", 0.0)
	v.SetDefault("gpu_layers", -1)
	v.SetDefault("preprocess", true)
	v.SetDefault("secondary_caption", false)
	v.SetDefault("logging", false)
	v.SetDefault("sys_logging", false)
	v.SetDefault("ollama_address", "127.0.0.1:11434")
	v.SetDefault("direct_caption", false)
	v.SetDefault("fail_fast", false)
	v.SetDefault("request_timeout", "5m")
	v.SetDefault("ollama.model", "llava")
	v.SetDefault("hosted.token", "")
	v.SetDefault("hosted.base_url", "https://router.huggingface.co/v1")
	v.SetDefault("hosted.model", "meta-llama/Llama-3.2-11B-Vision-Instruct")
	v.SetDefault("vision.base_url", "https://router.huggingface.co/hf-inference/models")
	v.SetDefault("vision.model", "Salesforce/blip-image-captioning-large")
	v.SetDefault("llama_cpp.binary", "llama-mtmd-cli")
	v.SetDefault("llama_cpp.model", "./models/llava-v1.6-mistral-7b.Q4_K_M.gguf")
	v.SetDefault("llama_cpp.mmproj", "./models/mmproj-model-f16.gguf")
	v.SetDefault("mlx.python", "python3")
	v.SetDefault("mlx.model", "mlx-community/llava-1.5-7b-4bit")
	v.SetDefault("files.image_ext", ".png")
	v.SetDefault("files.text_ext", ".txt")
	v.SetDefault("files.max_image_size", 1024)
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("journal.driver", "sqlite")
	v.SetDefault("journal.dsn", "")
}

// Load builds a Config with the precedence CLI flag > environment > config file > built-in default.
// Parameters:
//   - opts: value sources; nil uses the process environment only.
//
// Returns:
//   - *Config: resolved configuration (not yet validated).
//   - error: non-nil if the config file or a value cannot be decoded.
func Load(opts *LoadOptions) (*Config, error) {
	if opts == nil {
		opts = &LoadOptions{}
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		// Load .env file if exists; real environment variables win
		_ = godotenv.Load()
		lookup = os.LookupEnv
	}

	v := viper.New()
	setDefaults(v)

	// Later SetDefault calls replace earlier ones, so layering file then env
	// gives env precedence over the file.
	if opts.ConfigPath != "" {
		file := viper.New()
		file.SetConfigFile(opts.ConfigPath)
		if err := file.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		for _, key := range file.AllKeys() {
			v.SetDefault(key, file.Get(key))
		}
	}

	for key, env := range envBindings {
		if val, ok := lookup(env); ok && strings.TrimSpace(val) != "" {
			v.SetDefault(key, strings.TrimSpace(val))
		}
	}

	if opts.Flags != nil {
		for key, name := range flagBindings {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
		if opts.Flags.Changed(FlagNoPreprocess) {
			disabled, err := opts.Flags.GetBool(FlagNoPreprocess)
			if err != nil {
				return nil, fmt.Errorf("failed to read flag %s: %w", FlagNoPreprocess, err)
			}
			v.Set("preprocess", !disabled)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration before any backend is constructed.
// Returns an error describing the first validation failure, or nil if valid.
func (c *Config) Validate() error {
	if !c.Model.Valid() {
		return fmt.Errorf("%w: model class %s does not exist (choose one of %s)",
			ErrUnknownModel, c.Model, strings.Join(domain.ModelKindNames(), ", "))
	}
	if c.Temperature < 0 {
		return fmt.Errorf("temperature must not be negative, got %v", c.Temperature)
	}
	if c.GPULayers < -1 {
		return fmt.Errorf("gpu layers must be -1 (all) or a non-negative count, got %d", c.GPULayers)
	}
	if !strings.HasPrefix(c.Files.ImageExt, ".") || !strings.HasPrefix(c.Files.TextExt, ".") {
		return fmt.Errorf("file extensions must start with a dot (image %q, text %q)", c.Files.ImageExt, c.Files.TextExt)
	}
	if c.Files.ImageExt == c.Files.TextExt {
		return fmt.Errorf("image and text extensions must differ, both are %q", c.Files.ImageExt)
	}
	if c.Files.MaxImageSize <= 0 {
		return fmt.Errorf("max image size must be positive, got %d", c.Files.MaxImageSize)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.Journal.DSN != "" {
		switch c.Journal.Driver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("journal: unknown driver %q", c.Journal.Driver)
		}
	}
	return nil
}

// Mode returns the directory processing mode selected by DirectCaption.
func (c *Config) Mode() domain.CaptionMode {
	if c.DirectCaption {
		return domain.ModeDirect
	}
	return domain.ModePromptComparison
}

// LogLevel returns the logger level implied by the logging flags.
func (c *Config) LogLevel() string {
	if c.Logging {
		return "debug"
	}
	return "warn"
}
