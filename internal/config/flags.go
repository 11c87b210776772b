package config

import (
	"flag"
	"strings"
)

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagWindowed   = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
	flagRoot       = flag.String("root", "", "Extra asset root, searched first")
	flagShader     = flag.String("shader", "", "Fragment shader for loaded meshes")
	flagInstances  = flag.Int("instances", 0, "Instances per mesh")
	flagWatch      = flag.Bool("watch", false, "Reload assets when files change")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// MeshArgs returns the positional arguments, which name meshes to load.
func MeshArgs() []string {
	return flag.Args()
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config, meshes []string) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagWindowed {
		cfg.Window.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Window.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Window.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Window.Height = *flagHeight
	}
	if root := strings.TrimSpace(*flagRoot); root != "" {
		cfg.Assets.Roots = append(cfg.Assets.Roots, root)
	}
	if *flagShader != "" {
		cfg.Assets.Shader = *flagShader
	}
	if *flagInstances > 0 {
		cfg.Scene.Instances = *flagInstances
	}
	if *flagWatch {
		cfg.Assets.Watch = true
	}
	if len(meshes) > 0 {
		cfg.Assets.Meshes = meshes
	}
}
