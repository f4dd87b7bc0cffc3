package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/vbonduro/nutriai/internal/domain"
	"github.com/vbonduro/nutriai/internal/gateway"
)

// DefaultFile is read when no explicit config path is given and it exists.
const DefaultFile = "nutriai.yaml"

const envPrefix = "NUTRIAI_"

type Config struct {
	ListenAddr      string          `koanf:"listen_addr" yaml:"listen_addr"`
	DBPath          string          `koanf:"db_path" yaml:"db_path"`
	DefaultProvider string          `koanf:"default_provider" yaml:"default_provider"`
	Tracing         bool            `koanf:"tracing" yaml:"tracing"`
	Log             LogConfig       `koanf:"log" yaml:"log"`
	Gateway         GatewayConfig   `koanf:"gateway" yaml:"gateway"`
	Providers       ProvidersConfig `koanf:"providers" yaml:"providers"`
}

type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	File   string `koanf:"file" yaml:"file"`
	Format string `koanf:"format" yaml:"format"`
}

type GatewayConfig struct {
	TextTimeout       time.Duration `koanf:"text_timeout" yaml:"text_timeout"`
	VisionTimeout     time.Duration `koanf:"vision_timeout" yaml:"vision_timeout"`
	MaxCalories       int           `koanf:"max_calories" yaml:"max_calories"`
	JPEGQuality       int           `koanf:"jpeg_quality" yaml:"jpeg_quality"`
	MaxImageDimension int           `koanf:"max_image_dimension" yaml:"max_image_dimension"`
	MaxImagePixels    int           `koanf:"max_image_pixels" yaml:"max_image_pixels"`
	RecipeCount       int           `koanf:"recipe_count" yaml:"recipe_count"`
	PromptLogLimit    int           `koanf:"prompt_log_limit" yaml:"prompt_log_limit"`
	ResultLogLimit    int           `koanf:"result_log_limit" yaml:"result_log_limit"`
}

type ProvidersConfig struct {
	OpenAI   ProviderConfig `koanf:"openai" yaml:"openai"`
	Gemini   ProviderConfig `koanf:"gemini" yaml:"gemini"`
	DeepSeek ProviderConfig `koanf:"deepseek" yaml:"deepseek"`
}

type ProviderConfig struct {
	APIKey  string `koanf:"api_key" yaml:"api_key"`
	BaseURL string `koanf:"base_url" yaml:"base_url"`
	Model   string `koanf:"model" yaml:"model"`
}

// fallbackKeyEnv names the conventional variables consulted when a provider
// key is not set through the file or NUTRIAI_ variables.
var fallbackKeyEnv = map[domain.Provider]string{
	domain.OpenAI:   "OPENAI_API_KEY",
	domain.Gemini:   "GEMINI_API_KEY",
	domain.DeepSeek: "DEEPSEEK_API_KEY",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func Default() *Config {
	return &Config{
		ListenAddr:      ":8080",
		DBPath:          "nutriai.db",
		DefaultProvider: string(domain.OpenAI),
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Gateway: GatewayConfig{
			TextTimeout:       gateway.DefaultTextTimeout,
			VisionTimeout:     gateway.DefaultVisionTimeout,
			MaxCalories:       gateway.DefaultMaxCalories,
			JPEGQuality:       gateway.DefaultJPEGQuality,
			MaxImageDimension: gateway.DefaultMaxImageDim,
			MaxImagePixels:    gateway.DefaultMaxImagePixels,
			RecipeCount:       gateway.DefaultRecipeCount,
			PromptLogLimit:    gateway.DefaultPromptLogLimit,
			ResultLogLimit:    gateway.DefaultResultLogLimit,
		},
	}
}

// Load layers defaults, then the YAML file at path, then NUTRIAI_ variables.
// An empty path reads DefaultFile when present. A path that was asked for
// explicitly must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	for _, p := range domain.Providers() {
		pc := cfg.provider(p)
		pc.APIKey = substituteEnvVars(pc.APIKey)
		if pc.APIKey == "" {
			pc.APIKey = os.Getenv(fallbackKeyEnv[p])
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Config) Validate() error {
	var errs []error
	if _, err := domain.ParseProvider(c.DefaultProvider); err != nil {
		errs = append(errs, fmt.Errorf("default_provider: %w", err))
	}
	g := c.Gateway
	if g.TextTimeout <= 0 {
		errs = append(errs, errors.New("gateway.text_timeout must be positive"))
	}
	if g.VisionTimeout <= 0 {
		errs = append(errs, errors.New("gateway.vision_timeout must be positive"))
	}
	if g.JPEGQuality < 0 || g.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("gateway.jpeg_quality must be within 0..100, got %d", g.JPEGQuality))
	}
	if g.MaxCalories <= 0 {
		errs = append(errs, errors.New("gateway.max_calories must be positive"))
	}
	if g.MaxImageDimension < 0 {
		errs = append(errs, errors.New("gateway.max_image_dimension must not be negative"))
	}
	if g.MaxImagePixels <= 0 {
		errs = append(errs, errors.New("gateway.max_image_pixels must be positive"))
	}
	if g.RecipeCount <= 0 {
		errs = append(errs, errors.New("gateway.recipe_count must be positive"))
	}
	if g.PromptLogLimit <= 0 || g.ResultLogLimit <= 0 {
		errs = append(errs, errors.New("gateway log limits must be positive"))
	}
	switch c.Log.Format {
	case "json", "text", "auto":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json, text or auto, got %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Provider returns the configured default provider.
func (c *Config) Provider() domain.Provider {
	return domain.Provider(strings.ToLower(c.DefaultProvider))
}

func (c *Config) provider(p domain.Provider) *ProviderConfig {
	switch p {
	case domain.OpenAI:
		return &c.Providers.OpenAI
	case domain.Gemini:
		return &c.Providers.Gemini
	case domain.DeepSeek:
		return &c.Providers.DeepSeek
	}
	return &ProviderConfig{}
}

func (c *Config) APIKey(p domain.Provider) string  { return c.provider(p).APIKey }
func (c *Config) BaseURL(p domain.Provider) string { return c.provider(p).BaseURL }
func (c *Config) Model(p domain.Provider) string   { return c.provider(p).Model }

// GatewayOptions translates the gateway section into gateway options.
func (c *Config) GatewayOptions() []gateway.Option {
	g := c.Gateway
	return []gateway.Option{
		gateway.WithTimeouts(g.TextTimeout, g.VisionTimeout),
		gateway.WithMaxCalories(g.MaxCalories),
		gateway.WithJPEGQuality(g.JPEGQuality),
		gateway.WithMaxImageDimension(g.MaxImageDimension),
		gateway.WithMaxImagePixels(g.MaxImagePixels),
		gateway.WithRecipeCount(g.RecipeCount),
		gateway.WithLogLimits(g.PromptLogLimit, g.ResultLogLimit),
	}
}

// Redacted returns a copy with API keys masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	for _, p := range domain.Providers() {
		pc := out.provider(p)
		pc.APIKey = redact(pc.APIKey)
	}
	return &out
}

func redact(key string) string {
	switch {
	case key == "":
		return ""
	case len(key) <= 8:
		return "****"
	}
	return key[:4] + "****"
}
