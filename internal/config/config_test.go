package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Window.Width != 1280 {
		t.Errorf("expected width 1280, got %d", cfg.Window.Width)
	}
	if cfg.Window.Height != 720 {
		t.Errorf("expected height 720, got %d", cfg.Window.Height)
	}
	if cfg.Window.Fullscreen {
		t.Error("expected fullscreen to be false by default")
	}
	if !cfg.Window.VSync {
		t.Error("expected vsync to be true by default")
	}

	if cfg.Renderer.MaxTextureSize != 2048 {
		t.Errorf("expected max texture size 2048, got %d", cfg.Renderer.MaxTextureSize)
	}
	if cfg.Renderer.FOV != 60 {
		t.Errorf("expected fov 60, got %f", cfg.Renderer.FOV)
	}

	if len(cfg.Assets.Roots) != 1 || cfg.Assets.Roots[0] != "assets" {
		t.Errorf("expected roots [assets], got %v", cfg.Assets.Roots)
	}
	if cfg.Assets.Watch {
		t.Error("expected watch to be false by default")
	}
	if cfg.Assets.Debounce != 100*time.Millisecond {
		t.Errorf("expected debounce 100ms, got %v", cfg.Assets.Debounce)
	}

	if cfg.Scene.Instances != 1 {
		t.Errorf("expected 1 instance, got %d", cfg.Scene.Instances)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
window:
  width: 1920
  height: 1080
  fullscreen: true
  vsync: false
  fps_limit: 144

renderer:
  clear_color: [0, 0, 0, 1]
  max_texture_size: 512
  wireframe: true

assets:
  roots: ["base", "mods"]
  meshes: ["meshes/cube.obj", "meshes/teapot.obj"]
  shader: "shaders/lit.frag"
  materials: "materials.yaml"
  watch: true
  debounce: 250ms

scene:
  instances: 9
  spacing: 3

logging:
  level: "debug"
  log_file: "rendox.log"
  json: true
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Window.Width != 1920 || cfg.Window.Height != 1080 {
		t.Errorf("expected 1920x1080, got %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
	if !cfg.Window.Fullscreen {
		t.Error("expected fullscreen to be true")
	}
	if cfg.Window.VSync {
		t.Error("expected vsync to be false")
	}
	if cfg.Window.Title != "rendox" {
		t.Errorf("expected default title to survive, got %q", cfg.Window.Title)
	}

	if cfg.Renderer.ClearColor != [4]float32{0, 0, 0, 1} {
		t.Errorf("unexpected clear color %v", cfg.Renderer.ClearColor)
	}
	if cfg.Renderer.MaxTextureSize != 512 {
		t.Errorf("expected max texture size 512, got %d", cfg.Renderer.MaxTextureSize)
	}

	if len(cfg.Assets.Roots) != 2 || cfg.Assets.Roots[1] != "mods" {
		t.Errorf("unexpected roots %v", cfg.Assets.Roots)
	}
	if len(cfg.Assets.Meshes) != 2 {
		t.Errorf("expected 2 meshes, got %v", cfg.Assets.Meshes)
	}
	if cfg.Assets.Shader != "shaders/lit.frag" {
		t.Errorf("unexpected shader %s", cfg.Assets.Shader)
	}
	if !cfg.Assets.Watch {
		t.Error("expected watch to be true")
	}
	if cfg.Assets.Debounce != 250*time.Millisecond {
		t.Errorf("expected debounce 250ms, got %v", cfg.Assets.Debounce)
	}

	if cfg.Scene.Instances != 9 {
		t.Errorf("expected 9 instances, got %d", cfg.Scene.Instances)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if !cfg.Logging.JSON {
		t.Error("expected json logging")
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
window:
  width: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero width", func(c *Config) { c.Window.Width = 0 }, false},
		{"negative texture size", func(c *Config) { c.Renderer.MaxTextureSize = -1 }, false},
		{"no texture limit", func(c *Config) { c.Renderer.MaxTextureSize = 0 }, true},
		{"flat fov", func(c *Config) { c.Renderer.FOV = 180 }, false},
		{"negative instances", func(c *Config) { c.Scene.Instances = -2 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("expected valid config, got %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	os.Chdir(tmpDir)

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "rendox.yaml")
	if err := os.WriteFile(configPath, []byte("window:\n  width: 800\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if path := findConfigFile(); path == "" {
		t.Error("expected to find rendox.yaml in current directory")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		meshes   []string
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "fullscreen flag",
			setup: func() { *flagFullscreen = true },
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Window.Fullscreen {
					t.Error("expected fullscreen to be true with fullscreen flag")
				}
			},
			teardown: func() { *flagFullscreen = false },
		},
		{
			name: "width and height flags",
			setup: func() {
				*flagWidth = 2560
				*flagHeight = 1440
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Window.Width != 2560 || cfg.Window.Height != 1440 {
					t.Errorf("expected 2560x1440, got %dx%d", cfg.Window.Width, cfg.Window.Height)
				}
			},
			teardown: func() {
				*flagWidth = 0
				*flagHeight = 0
			},
		},
		{
			name:  "root flag appends highest priority root",
			setup: func() { *flagRoot = "override" },
			verify: func(t *testing.T, cfg *Config) {
				roots := cfg.Assets.Roots
				if len(roots) != 2 || roots[1] != "override" {
					t.Errorf("expected override appended, got %v", roots)
				}
			},
			teardown: func() { *flagRoot = "" },
		},
		{
			name: "shader instances and watch",
			setup: func() {
				*flagShader = "shaders/toon.frag"
				*flagInstances = 16
				*flagWatch = true
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Assets.Shader != "shaders/toon.frag" {
					t.Errorf("unexpected shader %s", cfg.Assets.Shader)
				}
				if cfg.Scene.Instances != 16 {
					t.Errorf("expected 16 instances, got %d", cfg.Scene.Instances)
				}
				if !cfg.Assets.Watch {
					t.Error("expected watch enabled")
				}
			},
			teardown: func() {
				*flagShader = ""
				*flagInstances = 0
				*flagWatch = false
			},
		},
		{
			name:   "positional meshes replace configured meshes",
			setup:  func() {},
			meshes: []string{"a.obj", "b.obj"},
			verify: func(t *testing.T, cfg *Config) {
				if len(cfg.Assets.Meshes) != 2 || cfg.Assets.Meshes[0] != "a.obj" {
					t.Errorf("unexpected meshes %v", cfg.Assets.Meshes)
				}
			},
			teardown: func() {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg, tt.meshes)

			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
window:
  width: 1600
  height: 900
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagWidth = 1920
	defer func() {
		*flagConfig = ""
		*flagWidth = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Width comes from the flag, height from the file.
	if cfg.Window.Width != 1920 {
		t.Errorf("expected width 1920 from flag, got %d", cfg.Window.Width)
	}
	if cfg.Window.Height != 900 {
		t.Errorf("expected height 900 from file, got %d", cfg.Window.Height)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Assets.Meshes = []string{"cube.obj"}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if len(loaded.Assets.Meshes) != 1 || loaded.Assets.Meshes[0] != "cube.obj" {
		t.Errorf("meshes not preserved: %v", loaded.Assets.Meshes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved file: %v", err)
	}
	if !strings.HasPrefix(string(data), fileHeader) {
		t.Errorf("saved file lacks header: %q", data[:min(len(data), 40)])
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("failed to list dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only config.yaml, found %d entries", len(entries))
	}
}
