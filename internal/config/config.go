package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"mindgate/internal/core"
)

// Config is the process-wide configuration, built once at startup
type Config struct {
	Server       ServerConfig                    `mapstructure:"server"`
	Log          LogConfig                       `mapstructure:"log"`
	Auth         AuthConfig                      `mapstructure:"auth"`
	Upstream     UpstreamConfig                  `mapstructure:"upstream"`
	Credentials  []string                        `mapstructure:"credentials"`
	Models       map[string]core.ModelDescriptor `mapstructure:"models"`
	DefaultModel string                          `mapstructure:"default_model"`
	ImageModel   string                          `mapstructure:"image_model"`
	Video        VideoConfig                     `mapstructure:"video"`
	Polling      PollingConfig                   `mapstructure:"polling"`
	Metrics      MetricsConfig                   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthConfig holds the caller-facing master key; "" or "1" disables the check
type AuthConfig struct {
	MasterKey string `mapstructure:"master_key"`
}

// UpstreamConfig describes the asynchronous generation provider
type UpstreamConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	AppKey    string        `mapstructure:"app_key"`
	Version   string        `mapstructure:"version"`
	Lang      string        `mapstructure:"lang"`
	Origin    string        `mapstructure:"origin"`
	Referer   string        `mapstructure:"referer"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// VideoConfig holds the fixed parameters of video jobs
type VideoConfig struct {
	Seconds int    `mapstructure:"seconds"`
	Size    string `mapstructure:"size"`
}

// PollPolicy bounds one polling loop
type PollPolicy struct {
	Interval time.Duration `mapstructure:"interval"`
	Deadline time.Duration `mapstructure:"deadline"`
}

type PollingConfig struct {
	Stream   PollPolicy `mapstructure:"stream"`
	Blocking PollPolicy `mapstructure:"blocking"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AuthDisabled reports whether inbound requests skip the bearer check
func (c *Config) AuthDisabled() bool {
	return c.Auth.MasterKey == "" || c.Auth.MasterKey == "1"
}

// Init 初始化配置，加载 .env 和 config.yaml
func Init(cfgFile string) {
	// Load .env file (ignore if not exists)
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("MINDGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	}
}

// SetDefaults registers every default on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("auth.master_key", "")

	v.SetDefault("upstream.base_url", "https://api.mindvideo.ai/api")
	v.SetDefault("upstream.app_key", "s#c_120*AB")
	v.SetDefault("upstream.version", "1.0.8")
	v.SetDefault("upstream.lang", "zh-CN")
	v.SetDefault("upstream.origin", "https://www.mindvideo.ai")
	v.SetDefault("upstream.referer", "https://www.mindvideo.ai/")
	v.SetDefault("upstream.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36")
	v.SetDefault("upstream.timeout", 30*time.Second)

	v.SetDefault("models", map[string]interface{}{
		"sora-2-free":    map[string]interface{}{"id": 153, "type": 1, "category": "video", "name": "Sora-2 Video (文生视频)"},
		"gemini-3-image": map[string]interface{}{"id": 190, "type": 8, "category": "image", "name": "Gemini-3 Pro (文生图)"},
		"gemini-3-i2i":   map[string]interface{}{"id": 191, "type": 9, "category": "image", "name": "Gemini-3 I2I (图生图)"},
	})
	v.SetDefault("default_model", "sora-2-free")
	v.SetDefault("image_model", "gemini-3-image")

	v.SetDefault("video.seconds", 15)
	v.SetDefault("video.size", "1280x720")

	v.SetDefault("polling.stream.interval", 5*time.Second)
	v.SetDefault("polling.stream.deadline", 600*time.Second)
	v.SetDefault("polling.blocking.interval", 3*time.Second)
	v.SetDefault("polling.blocking.deadline", 120*time.Second)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load initialises viper from cfgFile and returns the validated configuration
func Load(cfgFile string) (*Config, error) {
	Init(cfgFile)
	return FromViper(viper.GetViper())
}

// FromViper decodes and validates the configuration held by v
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Credentials = splitCredentials(v.GetStringSlice("credentials"))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the gateway relies on
func (c *Config) Validate() error {
	var errs []error
	if len(c.Credentials) == 0 {
		errs = append(errs, errors.New("at least one upstream credential is required (credentials / MINDGATE_CREDENTIALS)"))
	}
	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("upstream.base_url is required"))
	}
	if c.Upstream.AppKey == "" {
		errs = append(errs, errors.New("upstream.app_key is required"))
	}
	if _, ok := c.Models[c.DefaultModel]; !ok {
		errs = append(errs, fmt.Errorf("default_model %q is not in models", c.DefaultModel))
	}
	if desc, ok := c.Models[c.ImageModel]; !ok {
		errs = append(errs, fmt.Errorf("image_model %q is not in models", c.ImageModel))
	} else if desc.Category != core.CategoryImage {
		errs = append(errs, fmt.Errorf("image_model %q is a %s model", c.ImageModel, desc.Category))
	}
	for name, p := range map[string]PollPolicy{"stream": c.Polling.Stream, "blocking": c.Polling.Blocking} {
		if p.Interval <= 0 || p.Deadline <= 0 {
			errs = append(errs, fmt.Errorf("polling.%s interval and deadline must be positive", name))
		}
	}
	return errors.Join(errs...)
}

// splitCredentials accepts both list values and a comma separated env string
func splitCredentials(raw []string) []string {
	var out []string
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			if token := strings.TrimSpace(part); token != "" {
				out = append(out, token)
			}
		}
	}
	return out
}
