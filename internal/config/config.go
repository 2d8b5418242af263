// Package config loads visage configuration from defaults, an optional
// YAML file, and VISAGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tjamescouch/visage/internal/animation"
	"github.com/tjamescouch/visage/internal/logging"
	"github.com/tjamescouch/visage/internal/sentiment"
)

const EnvPrefix = "VISAGE"

type Config struct {
	Engine    EngineConfig            `mapstructure:"engine"`
	Blender   animation.BlenderConfig `mapstructure:"blender"`
	Idle      animation.IdleConfig    `mapstructure:"idle"`
	Sentiment sentiment.Config        `mapstructure:"sentiment"`
	LipSync   LipSyncConfig           `mapstructure:"lipsync"`
	Files     FilesConfig             `mapstructure:"files"`
	Sinks     SinksConfig             `mapstructure:"sinks"`
	Bridge    BridgeConfig            `mapstructure:"bridge"`
	Metrics   MetricsConfig           `mapstructure:"metrics"`
	Logging   logging.Config          `mapstructure:"logging"`
}

type EngineConfig struct {
	FPS              float64 `mapstructure:"fps"`
	MailboxSize      int     `mapstructure:"mailbox_size"`
	DefaultIntensity float64 `mapstructure:"default_intensity"`
	MaxStep          float64 `mapstructure:"max_step"` // seconds
}

type LipSyncConfig struct {
	FPS float64 `mapstructure:"fps"`
}

// FilesConfig names optional override documents. Empty paths use built-in
// tables.
type FilesConfig struct {
	Presets string `mapstructure:"presets"`
	Lexicon string `mapstructure:"lexicon"`
	Effects string `mapstructure:"effects"`
	Style   string `mapstructure:"style"`
	Watch   bool   `mapstructure:"watch"`
}

type SinksConfig struct {
	Stdout bool        `mapstructure:"stdout"`
	Relay  RelayConfig `mapstructure:"relay"`
	Redis  RedisConfig `mapstructure:"redis"`
}

type RelayConfig struct {
	URL          string        `mapstructure:"url"`
	ReconnectMin time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type BridgeConfig struct {
	URL string `mapstructure:"url"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the endpoint
}

func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			FPS:              60,
			MailboxSize:      256,
			DefaultIntensity: 0.8,
			MaxStep:          0.05,
		},
		Blender:   animation.DefaultBlenderConfig(),
		Idle:      animation.DefaultIdleConfig(),
		Sentiment: sentiment.DefaultConfig(),
		LipSync:   LipSyncConfig{FPS: 30},
		Sinks: SinksConfig{
			Stdout: true,
			Relay: RelayConfig{
				ReconnectMin: 3 * time.Second,
				ReconnectMax: 60 * time.Second,
				WriteTimeout: 2 * time.Second,
			},
			Redis: RedisConfig{
				Addr:    "localhost:6379",
				Channel: "visage:frames",
			},
		},
		Logging: logging.DefaultConfig(),
	}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("engine.fps", cfg.Engine.FPS)
	v.SetDefault("engine.mailbox_size", cfg.Engine.MailboxSize)
	v.SetDefault("engine.default_intensity", cfg.Engine.DefaultIntensity)
	v.SetDefault("engine.max_step", cfg.Engine.MaxStep)

	v.SetDefault("blender.baseline_weight", cfg.Blender.BaselineWeight)
	v.SetDefault("blender.prune_threshold", cfg.Blender.PruneThreshold)
	v.SetDefault("blender.smoothing", cfg.Blender.Smoothing)
	v.SetDefault("blender.expression_decay", cfg.Blender.ExpressionDecay)
	v.SetDefault("blender.sentiment_decay", cfg.Blender.SentimentDecay)
	v.SetDefault("blender.sentiment_minimum", cfg.Blender.SentimentMinimum)

	v.SetDefault("idle.seed", cfg.Idle.Seed)
	v.SetDefault("idle.breath_amplitude", cfg.Idle.BreathAmplitude)
	v.SetDefault("idle.breath_rate", cfg.Idle.BreathRate)
	v.SetDefault("idle.blink_min", cfg.Idle.BlinkMin)
	v.SetDefault("idle.blink_max", cfg.Idle.BlinkMax)
	v.SetDefault("idle.blink_duration", cfg.Idle.BlinkDuration)
	v.SetDefault("idle.blink_closure", cfg.Idle.BlinkClosure)
	v.SetDefault("idle.drift_radius", cfg.Idle.DriftRadius)
	v.SetDefault("idle.drift_smoothing", cfg.Idle.DriftSmoothing)
	v.SetDefault("idle.talk_amplitude", cfg.Idle.TalkAmplitude)
	v.SetDefault("idle.talk_frequency", cfg.Idle.TalkFrequency)

	v.SetDefault("sentiment.window_size", cfg.Sentiment.WindowSize)
	v.SetDefault("sentiment.retention_per_second", cfg.Sentiment.RetentionPerSecond)
	v.SetDefault("sentiment.recency_rate", cfg.Sentiment.RecencyRate)
	v.SetDefault("sentiment.talk_timeout", cfg.Sentiment.TalkTimeout)
	v.SetDefault("sentiment.silence_onset", cfg.Sentiment.SilenceOnset)
	v.SetDefault("sentiment.silence_ramp", cfg.Sentiment.SilenceRamp)
	v.SetDefault("sentiment.silence_multiplier", cfg.Sentiment.SilenceMultiplier)

	v.SetDefault("lipsync.fps", cfg.LipSync.FPS)

	v.SetDefault("files.presets", cfg.Files.Presets)
	v.SetDefault("files.lexicon", cfg.Files.Lexicon)
	v.SetDefault("files.effects", cfg.Files.Effects)
	v.SetDefault("files.style", cfg.Files.Style)
	v.SetDefault("files.watch", cfg.Files.Watch)

	v.SetDefault("sinks.stdout", cfg.Sinks.Stdout)
	v.SetDefault("sinks.relay.url", cfg.Sinks.Relay.URL)
	v.SetDefault("sinks.relay.reconnect_min", cfg.Sinks.Relay.ReconnectMin)
	v.SetDefault("sinks.relay.reconnect_max", cfg.Sinks.Relay.ReconnectMax)
	v.SetDefault("sinks.relay.write_timeout", cfg.Sinks.Relay.WriteTimeout)
	v.SetDefault("sinks.redis.enabled", cfg.Sinks.Redis.Enabled)
	v.SetDefault("sinks.redis.addr", cfg.Sinks.Redis.Addr)
	v.SetDefault("sinks.redis.password", cfg.Sinks.Redis.Password)
	v.SetDefault("sinks.redis.db", cfg.Sinks.Redis.DB)
	v.SetDefault("sinks.redis.channel", cfg.Sinks.Redis.Channel)

	v.SetDefault("bridge.url", cfg.Bridge.URL)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)

	v.SetDefault("logging.dir", cfg.Logging.LogDir)
	v.SetDefault("logging.level", string(cfg.Logging.Level))
	v.SetDefault("logging.max_history", cfg.Logging.MaxHistory)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.json", cfg.Logging.JSON)
}

// Dir is the per-user configuration directory, ~/.visage.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".visage"), nil
}

// Load builds the configuration. An explicit path must exist; without one,
// config.yaml is looked up in ~/.visage and the working directory, and a
// missing file just means defaults.
func Load(path string) (*Config, *viper.Viper, error) {
	cfg := DefaultConfig()
	v := viper.New()
	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return cfg, v, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return cfg, v, fmt.Errorf("decode config: %w", err)
	}
	return cfg, v, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.FPS <= 0 || c.Engine.FPS > 240 {
		errs = append(errs, fmt.Errorf("engine.fps must be in (0, 240], got %v", c.Engine.FPS))
	}
	if c.Engine.MailboxSize <= 0 {
		errs = append(errs, fmt.Errorf("engine.mailbox_size must be positive, got %d", c.Engine.MailboxSize))
	}
	if c.LipSync.FPS <= 0 {
		errs = append(errs, fmt.Errorf("lipsync.fps must be positive, got %v", c.LipSync.FPS))
	}
	if c.Sinks.Relay.ReconnectMax < c.Sinks.Relay.ReconnectMin {
		errs = append(errs, errors.New("sinks.relay.reconnect_max is below reconnect_min"))
	}
	return errors.Join(errs...)
}
