// Package config loads the single configuration surface that governs a
// rakugaki server instance (spec.md §6). Configuration is immutable once
// loaded (spec.md §9: "treated as immutable after startup").
package config

import (
	"time"

	"github.com/spf13/viper"
)

// HakuLimits mirrors the haku_limits table named in spec.md §6.
type HakuLimits struct {
	MaxSourceCodeLen      int `mapstructure:"max_source_code_len"`
	MaxSourceChunks       int `mapstructure:"max_chunks"`
	MaxDefs               int `mapstructure:"max_defs"`
	MaxTokens             int `mapstructure:"max_tokens"`
	MaxParserEvents       int `mapstructure:"max_parser_events"`
	ASTCapacity           int `mapstructure:"ast_capacity"`
	ChunkCapacity         int `mapstructure:"chunk_capacity"`
	StackCapacity         int `mapstructure:"stack_capacity"`
	CallStackCapacity     int `mapstructure:"call_stack_capacity"`
	RefCapacity           int `mapstructure:"ref_capacity"`
	Fuel                  int `mapstructure:"fuel"`
	Memory                int `mapstructure:"memory"`
	PixmapStackCapacity   int `mapstructure:"pixmap_stack_capacity"`
	TransformStackCapacity int `mapstructure:"transform_stack_capacity"`
}

// AutoSave configures the wall store's autosave cadence.
type AutoSave struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// Config is the full configuration surface enumerated in spec.md §6.
type Config struct {
	Port        int        `mapstructure:"port"`
	MaxChunks   int        `mapstructure:"max_chunks"`
	MaxSessions int        `mapstructure:"max_sessions"`
	ChunkSize   int        `mapstructure:"chunk_size"`
	PaintArea   float64    `mapstructure:"paint_area"`
	AutoSave    AutoSave   `mapstructure:"auto_save"`
	HakuLimits  HakuLimits `mapstructure:"haku_limits"`
	DBRoot      string     `mapstructure:"db_root"`
}

// AutoSaveInterval returns the configured autosave interval as a Duration.
// Nothing in this repository starts a timer with it.
func (c *Config) AutoSaveInterval() time.Duration {
	return time.Duration(c.AutoSave.IntervalSeconds) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("max_chunks", 1<<16)
	v.SetDefault("max_sessions", 64)
	v.SetDefault("chunk_size", 168)
	v.SetDefault("paint_area", 8)
	v.SetDefault("auto_save.interval_seconds", 10)
	v.SetDefault("db_root", "db")

	v.SetDefault("haku_limits.max_source_code_len", 1<<16)
	v.SetDefault("haku_limits.max_chunks", 1<<10)
	v.SetDefault("haku_limits.max_defs", 256)
	v.SetDefault("haku_limits.max_tokens", 1<<16)
	v.SetDefault("haku_limits.max_parser_events", 1<<18)
	v.SetDefault("haku_limits.ast_capacity", 1<<15)
	v.SetDefault("haku_limits.chunk_capacity", 1<<16)
	v.SetDefault("haku_limits.stack_capacity", 1024)
	v.SetDefault("haku_limits.call_stack_capacity", 256)
	v.SetDefault("haku_limits.ref_capacity", 4096)
	v.SetDefault("haku_limits.fuel", 65536)
	v.SetDefault("haku_limits.memory", 1<<20)
	v.SetDefault("haku_limits.pixmap_stack_capacity", 8)
	v.SetDefault("haku_limits.transform_stack_capacity", 64)
}

// Load reads configuration from path (if non-empty) overlaid by
// RAKUGAKI_-prefixed environment variables, falling back to defaults for
// anything unset.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("RAKUGAKI")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
