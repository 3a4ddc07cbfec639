package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Embed      EmbedConfig      `yaml:"embed" mapstructure:"embed"`
	Generators GeneratorsConfig `yaml:"generators" mapstructure:"generators"`
	Fusion     FusionConfig     `yaml:"fusion" mapstructure:"fusion"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// EmbedConfig holds embedding-service settings for the semantic generator.
type EmbedConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GeneratorsConfig carries per-detector enable flags and local floors.
type GeneratorsConfig struct {
	Substring     bool    `yaml:"substring" mapstructure:"substring"`
	Fuzzy         bool    `yaml:"fuzzy" mapstructure:"fuzzy"`
	NER           bool    `yaml:"ner" mapstructure:"ner"`
	Semantic      bool    `yaml:"semantic" mapstructure:"semantic"`
	FuzzyFloor    float64 `yaml:"fuzzy_floor" mapstructure:"fuzzy_floor"`
	SemanticFloor float64 `yaml:"semantic_floor" mapstructure:"semantic_floor"`
}

// FusionConfig configures signal fusion and the confirmation policy.
// Mode "max" takes the weighted maximum over methods; "additive" sums
// weighted contributions capped at 1.0 and trades precision for recall.
type FusionConfig struct {
	Mode      string             `yaml:"mode" mapstructure:"mode"`
	Weights   map[string]float64 `yaml:"weights" mapstructure:"weights"`
	Threshold float64            `yaml:"threshold" mapstructure:"threshold"`
}

// PipelineConfig configures orchestrator behavior.
type PipelineConfig struct {
	Concurrency          int `yaml:"concurrency" mapstructure:"concurrency"`
	GeneratorTimeoutSecs int `yaml:"generator_timeout_secs" mapstructure:"generator_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NEWSDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "newsdesk.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("embed.base_url", "http://localhost:8091")
	v.SetDefault("embed.model", "paraphrase-multilingual-MiniLM-L12-v2")
	v.SetDefault("embed.rate_per_sec", 10)
	v.SetDefault("embed.timeout_secs", 10)
	v.SetDefault("generators.substring", true)
	v.SetDefault("generators.fuzzy", true)
	v.SetDefault("generators.ner", true)
	v.SetDefault("generators.semantic", false)
	v.SetDefault("generators.fuzzy_floor", 0.75)
	v.SetDefault("generators.semantic_floor", 0.6)
	v.SetDefault("fusion.mode", "max")
	v.SetDefault("fusion.weights", map[string]float64{
		"substring": 1.0,
		"fuzzy":     0.8,
		"ner":       0.9,
		"semantic":  0.7,
	})
	v.SetDefault("fusion.threshold", 0.75)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.generator_timeout_secs", 15)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations that would corrupt scoring. Invalid
// thresholds or weights are fatal before any article is processed.
func (c *Config) Validate() error {
	if c.Fusion.Threshold < 0 || c.Fusion.Threshold > 1 {
		return eris.Errorf("config: fusion.threshold %.2f out of range [0,1]", c.Fusion.Threshold)
	}
	if c.Fusion.Mode != "max" && c.Fusion.Mode != "additive" {
		return eris.Errorf("config: fusion.mode %q must be max or additive", c.Fusion.Mode)
	}
	for method, w := range c.Fusion.Weights {
		switch method {
		case "substring", "fuzzy", "ner", "semantic":
		default:
			return eris.Errorf("config: fusion.weights has unknown method %q", method)
		}
		if w < 0 || w > 1 {
			return eris.Errorf("config: fusion.weights[%s] %.2f out of range [0,1]", method, w)
		}
	}
	if c.Generators.FuzzyFloor < 0 || c.Generators.FuzzyFloor > 1 {
		return eris.Errorf("config: generators.fuzzy_floor %.2f out of range [0,1]", c.Generators.FuzzyFloor)
	}
	if c.Generators.SemanticFloor < 0 || c.Generators.SemanticFloor > 1 {
		return eris.Errorf("config: generators.semantic_floor %.2f out of range [0,1]", c.Generators.SemanticFloor)
	}
	if c.Pipeline.Concurrency < 1 {
		return eris.Errorf("config: pipeline.concurrency %d must be positive", c.Pipeline.Concurrency)
	}
	if c.Pipeline.GeneratorTimeoutSecs < 1 {
		return eris.Errorf("config: pipeline.generator_timeout_secs %d must be positive", c.Pipeline.GeneratorTimeoutSecs)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
