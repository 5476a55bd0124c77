// Package config loads door-studio configuration from defaults, an optional
// YAML file and DOOR_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ironsheep/door-ai-studio/internal/detection"
	"github.com/ironsheep/door-ai-studio/internal/imaging"
	"github.com/ironsheep/door-ai-studio/internal/relay"
)

// EnvPrefix prefixes every environment variable the studio reads, except
// the provider key fallbacks and LOG_LEVEL.
const EnvPrefix = "DOOR"

// ErrMissingAPIKey is returned by RequireProviderKey when no key is set.
var ErrMissingAPIKey = errors.New("provider API key is not configured")

var defaultModels = map[string]string{
	relay.ProviderOpenAI: "dall-e-2",
	relay.ProviderGemini: "gemini-2.5-flash-image",
}

// Config is the complete studio configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Provider ProviderConfig `mapstructure:"provider"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Canvas   CanvasConfig   `mapstructure:"canvas"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	BodyLimit       string        `mapstructure:"body_limit" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// ProviderConfig selects and authenticates the image-editing provider.
type ProviderConfig struct {
	Name    string        `mapstructure:"name" validate:"oneof=openai gemini"`
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url" validate:"omitempty,url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// RelayConfig mirrors relay.Options.
type RelayConfig struct {
	RequireMask    bool   `mapstructure:"require_mask"`
	ResponseFormat string `mapstructure:"response_format" validate:"oneof=url b64_json"`
	DefaultPrompt  string `mapstructure:"default_prompt" validate:"required"`
	DefaultSize    string `mapstructure:"default_size" validate:"required"`
	MaskPolarity   string `mapstructure:"mask_polarity" validate:"oneof=keep invert"`
}

// CanvasConfig contains compositor geometry: canvas edge, letterbox fill
// and the protected box slider range. MaxSourcePixels bounds the
// width×height of any uploaded photo or mask before it is decoded.
type CanvasConfig struct {
	Size            int     `mapstructure:"size" validate:"min=64,max=4096"`
	MaxSourcePixels int64   `mapstructure:"max_source_pixels" validate:"min=1"`
	Fill            string  `mapstructure:"fill" validate:"required"`
	MinWidth        float64 `mapstructure:"min_width" validate:"gt=0,lte=1"`
	MaxWidth        float64 `mapstructure:"max_width" validate:"gtefield=MinWidth,lte=1"`
	MinHeight       float64 `mapstructure:"min_height" validate:"gt=0,lte=1"`
	MaxHeight       float64 `mapstructure:"max_height" validate:"gtefield=MinHeight,lte=1"`
	DefaultWidth    float64 `mapstructure:"default_width"`
	DefaultHeight   float64 `mapstructure:"default_height"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
}

// Load reads configuration. cfgFile may be empty, in which case
// door-studio.yaml is looked up in the working directory and
// $HOME/.config/door-studio, and a missing file is not an error.
//
// overrides maps config keys such as "server.addr" to values that win over
// every other source. The CLI passes explicitly set flags here.
func Load(cfgFile string, overrides map[string]any) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("door-studio")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/door-studio")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvAliases(v)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Provider.Name = strings.ToLower(strings.TrimSpace(cfg.Provider.Name))
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = providerKey(cfg.Provider.Name)
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = defaultModels[cfg.Provider.Name]
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// LoadDotEnv loads variables from the given .env files, or ./.env when none
// are named, without overriding variables already set. A missing file is
// not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// bindEnvAliases maps the short variable names documented for operators onto
// config keys. The first name set wins.
func bindEnvAliases(v *viper.Viper) {
	_ = v.BindEnv("provider.name", "DOOR_PROVIDER", "DOOR_PROVIDER_NAME")
	_ = v.BindEnv("provider.model", "DOOR_MODEL", "DOOR_PROVIDER_MODEL")
	_ = v.BindEnv("server.addr", "DOOR_ADDR", "DOOR_SERVER_ADDR")
	_ = v.BindEnv("logging.level", "DOOR_LOG_LEVEL", "LOG_LEVEL")
}

func setDefaults(v *viper.Viper) {
	d := relay.DefaultOptions()
	bounds := detection.DefaultBounds()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.body_limit", "20M")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("provider.name", relay.ProviderOpenAI)
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.timeout", 120*time.Second)

	v.SetDefault("relay.require_mask", d.RequireMask)
	v.SetDefault("relay.response_format", string(d.ResponseFormat))
	v.SetDefault("relay.default_prompt", d.DefaultPrompt)
	v.SetDefault("relay.default_size", d.DefaultSize)
	v.SetDefault("relay.mask_polarity", string(d.MaskPolarity))

	v.SetDefault("canvas.size", imaging.DefaultCanvasSize)
	v.SetDefault("canvas.max_source_pixels", imaging.DefaultMaxSourcePixels)
	v.SetDefault("canvas.fill", "#FFFFFF")
	v.SetDefault("canvas.min_width", bounds.MinWidth)
	v.SetDefault("canvas.max_width", bounds.MaxWidth)
	v.SetDefault("canvas.min_height", bounds.MinHeight)
	v.SetDefault("canvas.max_height", bounds.MaxHeight)
	v.SetDefault("canvas.default_width", bounds.Default.WidthFraction)
	v.SetDefault("canvas.default_height", bounds.Default.HeightFraction)

	v.SetDefault("logging.level", "info")
}

// Validate checks struct constraints, the fill color and that the default
// box lies within the slider range.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return err
	}
	if !relay.ValidSize(c.Relay.DefaultSize) {
		return fmt.Errorf("relay.default_size: %q is not WIDTHxHEIGHT", c.Relay.DefaultSize)
	}
	if _, err := imaging.ParseHexColor(c.Canvas.Fill); err != nil {
		return fmt.Errorf("canvas.fill: %w", err)
	}
	if err := c.BoxBounds().Check(c.BoxBounds().Default); err != nil {
		return fmt.Errorf("canvas default box: %w", err)
	}
	return nil
}

// RequireProviderKey fails when no API key is configured. Only commands that
// call the provider need one.
func (c *Config) RequireProviderKey() error {
	if c.Provider.APIKey == "" {
		return fmt.Errorf("%w: set DOOR_PROVIDER_API_KEY or %s", ErrMissingAPIKey, providerKeyEnv(c.Provider.Name))
	}
	return nil
}

// RelayOptions converts the relay section into relay.Options.
func (c *Config) RelayOptions() relay.Options {
	return relay.Options{
		RequireMask:    c.Relay.RequireMask,
		ResponseFormat: relay.ResponseFormat(c.Relay.ResponseFormat),
		DefaultPrompt:  c.Relay.DefaultPrompt,
		DefaultSize:    c.Relay.DefaultSize,
		Model:          c.Provider.Model,
		CanvasSize:     c.Canvas.Size,
		MaskPolarity:   relay.MaskPolarity(c.Relay.MaskPolarity),
	}
}

// BoxBounds returns the protected box slider range.
func (c *Config) BoxBounds() detection.BoxBounds {
	return detection.BoxBounds{
		MinWidth:  c.Canvas.MinWidth,
		MaxWidth:  c.Canvas.MaxWidth,
		MinHeight: c.Canvas.MinHeight,
		MaxHeight: c.Canvas.MaxHeight,
		Default: imaging.Box{
			WidthFraction:  c.Canvas.DefaultWidth,
			HeightFraction: c.Canvas.DefaultHeight,
		},
	}
}

// FillColor returns the parsed letterbox fill, or white if it does not
// parse. Validate rejects unparsable fills.
func (c *Config) FillColor() color.NRGBA {
	fill, err := imaging.ParseHexColor(c.Canvas.Fill)
	if err != nil {
		return imaging.DefaultFill
	}
	return fill
}

// providerKey resolves the API key from the generic variable first and the
// provider's conventional one second, each with _FILE indirection.
func providerKey(provider string) string {
	if key := getEnv("DOOR_PROVIDER_API_KEY", ""); key != "" {
		return key
	}
	return getEnv(providerKeyEnv(provider), "")
}

func providerKeyEnv(provider string) string {
	if provider == relay.ProviderGemini {
		return "GEMINI_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// getEnv retrieves an environment variable or returns a fallback value.
// KEY_FILE, when set and readable, takes precedence over KEY.
func getEnv(key, fallback string) string {
	if path := os.Getenv(key + "_FILE"); path != "" {
		content, err := os.ReadFile(path)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

func formatValidationErrors(errs validator.ValidationErrors) error {
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		field := strings.ToLower(strings.TrimPrefix(e.Namespace(), "Config."))
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of [%s], got %q", field, e.Param(), e.Value()))
		case "gtefield":
			messages = append(messages, fmt.Sprintf("%s must not be below %s", field, strings.ToLower(e.Param())))
		default:
			messages = append(messages, fmt.Sprintf("%s failed %s=%s (got %v)", field, e.Tag(), e.Param(), e.Value()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
}
