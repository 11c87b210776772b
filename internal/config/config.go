// Package config handles viewer configuration loading and management.
package config

import "time"

// Config holds all viewer settings.
type Config struct {
	Window   WindowConfig   `yaml:"window"`
	Renderer RendererConfig `yaml:"renderer"`
	Assets   AssetsConfig   `yaml:"assets"`
	Scene    SceneConfig    `yaml:"scene"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// WindowConfig holds display settings.
type WindowConfig struct {
	Title      string `yaml:"title"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Fullscreen bool   `yaml:"fullscreen"`
	VSync      bool   `yaml:"vsync"`
	FPSLimit   int    `yaml:"fps_limit"`
}

// RendererConfig holds GPU-side settings.
type RendererConfig struct {
	ClearColor     [4]float32 `yaml:"clear_color"`
	MaxTextureSize int        `yaml:"max_texture_size"` // 0 = no limit
	Wireframe      bool       `yaml:"wireframe"`
	FOV            float32    `yaml:"fov"` // degrees
}

// AssetsConfig holds asset search and hot reload settings.
type AssetsConfig struct {
	Roots     []string      `yaml:"roots"`     // Search directories, last wins
	Meshes    []string      `yaml:"meshes"`    // Meshes loaded at startup
	Shader    string        `yaml:"shader"`    // Fragment shader applied to loaded meshes
	Materials string        `yaml:"materials"` // Material manifest
	Watch     bool          `yaml:"watch"`
	Debounce  time.Duration `yaml:"debounce"`
}

// SceneConfig controls the demo layout of loaded meshes.
type SceneConfig struct {
	Instances int     `yaml:"instances"` // Per mesh, laid out on a grid
	Spacing   float32 `yaml:"spacing"`
	SpinSpeed float32 `yaml:"spin_speed"` // radians per second
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	JSON    bool   `yaml:"json"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "rendox",
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Renderer: RendererConfig{
			ClearColor:     [4]float32{0.1, 0.1, 0.15, 1.0},
			MaxTextureSize: 2048,
			FOV:            60,
		},
		Assets: AssetsConfig{
			Roots:    []string{"assets"},
			Debounce: 100 * time.Millisecond,
		},
		Scene: SceneConfig{
			Instances: 1,
			Spacing:   2.5,
			SpinSpeed: 0.5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
